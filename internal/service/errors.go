package service

import "errors"

// Errors returned by Service. Callers match them with errors.Is; the
// wrapped message carries the detail.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidState   = errors.New("invalid state transition")
	ErrBusy           = errors.New("another decision for this post is in progress")
	ErrUpstream       = errors.New("upstream service failure")
	ErrConfiguration  = errors.New("configuration error")
	ErrValidation     = errors.New("validation error")
	ErrMissingContent = errors.New("article has no usable content")
)
