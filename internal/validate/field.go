package validate

import (
	"html"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// FieldError is one failed rule on one input field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`    // e.g. "required", "too_short", "too_long", "charset", "invalid_date"
	Message string `json:"message"` // human readable
}

// Checker collects field errors across a whole input. The first failure per
// field is kept; later fields are still checked.
type Checker struct {
	errs   []FieldError
	failed map[string]bool
}

func New() *Checker {
	return &Checker{failed: map[string]bool{}}
}

func (c *Checker) Valid() bool { return len(c.errs) == 0 }

func (c *Checker) Errors() []FieldError { return c.errs }

func (c *Checker) Add(field, code, message string) {
	if c.failed[field] {
		return
	}
	c.failed[field] = true
	c.errs = append(c.errs, FieldError{Field: field, Code: code, Message: message})
}

// Check adds an error when ok is false.
func (c *Checker) Check(ok bool, field, code, message string) {
	if !ok {
		c.Add(field, code, message)
	}
}

// Field starts a rule chain on one raw value. Rules run in call order and
// stop for this field after its first failure.
func (c *Checker) Field(name, raw string) *Field {
	return &Field{c: c, name: name, val: raw}
}

// Optional starts a chain on a value that may be absent.
func (c *Checker) Optional(name string, raw *string) *Field {
	if raw == nil {
		return &Field{c: c, name: name}
	}
	return c.Field(name, *raw)
}

type Field struct {
	c    *Checker
	name string
	val  string
}

func (f *Field) ok() bool { return !f.c.failed[f.name] }

func (f *Field) fail(code, msg string) *Field {
	f.c.Add(f.name, code, msg)
	return f
}

// Trim strips surrounding whitespace and NUL bytes.
func (f *Field) Trim() *Field {
	f.val = strings.TrimSpace(strings.ReplaceAll(f.val, "\x00", ""))
	return f
}

func (f *Field) Required(msg string) *Field {
	if f.ok() && f.val == "" {
		return f.fail("required", msg)
	}
	return f
}

// Length enforces rune-count bounds; max <= 0 means unbounded.
func (f *Field) Length(min, max int) *Field {
	if !f.ok() {
		return f
	}
	n := utf8.RuneCountInString(f.val)
	if n < min {
		return f.fail("too_short", f.name+" must be at least "+strconv.Itoa(min)+" characters")
	}
	if max > 0 && n > max {
		return f.fail("too_long", f.name+" must be at most "+strconv.Itoa(max)+" characters")
	}
	return f
}

// Alnum rejects anything but letters and digits (any script).
func (f *Field) Alnum(msg string) *Field {
	if !f.ok() {
		return f
	}
	for _, r := range f.val {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return f.fail("charset", msg)
		}
	}
	return f
}

// Escape neutralizes markup so the value is safe to render.
func (f *Field) Escape() *Field {
	f.val = html.EscapeString(f.val)
	return f
}

func (f *Field) Value() string { return f.val }

// Date parses an ISO-8601 date (or RFC 3339 timestamp). Empty values are
// skipped and return nil.
func (f *Field) Date() *time.Time {
	if !f.ok() || f.val == "" {
		return nil
	}
	t, err := ParseDate(f.val)
	if err != nil {
		f.fail("invalid_date", f.name+" must be an ISO-8601 date")
		return nil
	}
	return &t
}

// ParseDate accepts "2006-01-02" and RFC 3339; results are UTC.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// SplitList turns "a, b,a" into []{"a","b"} (trimmed, deduped, order kept).
func SplitList(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, p := range strings.Split(csv, ",") {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
