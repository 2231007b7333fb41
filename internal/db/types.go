package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringSlice stores a []string as a JSON array in a TEXT column. Postgres
// and SQLite both hand the value back as either string or []byte.
type StringSlice []string

// Scan implements sql.Scanner.
func (s *StringSlice) Scan(src any) error {
	if s == nil {
		return fmt.Errorf("db: Scan on nil *StringSlice")
	}

	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = StringSlice{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("db: cannot scan type %T into StringSlice", src)
	}

	if len(raw) == 0 {
		*s = StringSlice{}
		return nil
	}
	out := []string{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("db: decode StringSlice: %w", err)
	}
	*s = out
	return nil
}

// Value implements driver.Valuer. A nil slice is written as "[]".
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
