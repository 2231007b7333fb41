// Package summary turns an article's title, description and link into the
// text of a single tweet.
package summary

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	// MaxLength is the hard tweet limit, counted in runes.
	MaxLength = 280
	// DefaultSoftCap is the preferred length of the summary body.
	DefaultSoftCap = 180

	ellipsis = "..."
)

var (
	ErrEmptyTitle = errors.New("article has no usable title")
	ErrEmptyURL   = errors.New("article has no url")
	ErrURLTooLong = errors.New("article url does not fit in a tweet")
)

var (
	urlPattern        = regexp.MustCompile(`(?i)\bhttps?://\S+|\bwww\.\S+`)
	disallowedPattern = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?;:'"()&%$-]`)
	periodRunPattern  = regexp.MustCompile(`\.{2,}`)
)

// HashtagExtractor picks hashtags for a piece of text.
type HashtagExtractor interface {
	Extract(text string) []string
}

// Draft is a composed tweet together with the parts it was built from.
type Draft struct {
	Text     string
	Body     string
	Hashtags []string
}

// Summarizer builds tweet text. It holds no mutable state and is safe for
// concurrent use.
type Summarizer struct {
	extractor HashtagExtractor
	softCap   int
}

// New returns a Summarizer. A softCap outside (len(ellipsis), MaxLength] is
// replaced by DefaultSoftCap. extractor may be nil, in which case no hashtags
// are added.
func New(extractor HashtagExtractor, softCap int) *Summarizer {
	if softCap <= len(ellipsis) || softCap > MaxLength {
		softCap = DefaultSoftCap
	}
	return &Summarizer{extractor: extractor, softCap: softCap}
}

// Summarize returns the tweet text for an article. The result is at most
// MaxLength runes and contains url verbatim.
func (s *Summarizer) Summarize(title, description, url string) (string, error) {
	d, err := s.Draft(title, description, url)
	if err != nil {
		return "", err
	}
	return d.Text, nil
}

// Draft is Summarize but also returns the body and the hashtags used.
func (s *Summarizer) Draft(title, description, url string) (Draft, error) {
	url = strings.TrimSpace(url)
	cleanTitle := Normalize(title)
	if cleanTitle == "" {
		return Draft{}, ErrEmptyTitle
	}
	if url == "" {
		return Draft{}, ErrEmptyURL
	}
	if runeLen(url) > MaxLength {
		return Draft{}, ErrURLTooLong
	}

	cleanDesc := Normalize(description)
	body := s.body(cleanTitle, FirstSentence(cleanDesc))

	var tags []string
	if s.extractor != nil {
		tags = s.extractor.Extract(cleanTitle + " " + cleanDesc)
	}
	return assemble(body, url, tags), nil
}

// body picks the first candidate that fits the soft cap, in the order
// "title: sentence", "title", "sentence".
func (s *Summarizer) body(title, sentence string) string {
	candidates := make([]string, 0, 3)
	if sentence != "" && !strings.Contains(strings.ToLower(title), strings.ToLower(sentence)) {
		candidates = append(candidates, strings.TrimRight(title, ".,;:")+": "+sentence)
	}
	candidates = append(candidates, title)
	if sentence != "" {
		candidates = append(candidates, sentence)
	}

	for _, c := range candidates {
		if runeLen(c) <= s.softCap {
			return c
		}
	}
	return shorten(candidates[0], s.softCap-len(ellipsis))
}

func assemble(body, url string, tags []string) Draft {
	tagText := strings.Join(tags, " ")
	if len(tags) > 0 && runeLen(url)+1+runeLen(tagText) > MaxLength {
		tags, tagText = nil, ""
	}

	build := func(b string) string {
		parts := make([]string, 0, 3)
		if b != "" {
			parts = append(parts, b)
		}
		parts = append(parts, url)
		if tagText != "" {
			parts = append(parts, tagText)
		}
		return strings.Join(parts, " ")
	}

	text := build(body)
	if over := runeLen(text) - MaxLength; over > 0 {
		keep := runeLen(body) - over - len(ellipsis)
		if keep > 0 {
			body = shorten(body, keep)
		} else {
			body = ""
		}
		text = build(body)
	}

	if tags == nil {
		tags = []string{}
	}
	return Draft{Text: text, Body: body, Hashtags: tags}
}

// Normalize strips markup and links from s, replaces unusual characters
// with spaces, and collapses repeated periods and whitespace.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = stripMarkup(s)
	s = urlPattern.ReplaceAllString(s, " ")
	s = disallowedPattern.ReplaceAllString(s, " ")
	s = periodRunPattern.ReplaceAllString(s, ".")
	return strings.Join(strings.Fields(s), " ")
}

func stripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}

// FirstSentence returns s up to the earliest ". ", "! " or "? ". Without a
// terminator the whole of s is returned, minus one trailing period.
func FirstSentence(s string) string {
	idx := -1
	for _, sep := range []string{". ", "! ", "? "} {
		if i := strings.Index(s, sep); i >= 0 && (idx < 0 || i < idx) {
			idx = i
		}
	}
	if idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(strings.TrimSuffix(s, "."))
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimRight(string(r[:n]), " ")
}

// shorten cuts s to n runes and appends an ellipsis, dropping trailing
// spaces and periods so the result never ends in "....".
func shorten(s string, n int) string {
	return strings.TrimRight(truncate(s, n), " .") + ellipsis
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
