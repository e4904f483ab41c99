package post

import (
	"fmt"
	"strings"
)

// Record is one post extracted from a feed page.
type Record struct {
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Time        string   `json:"time"`
	Likes       int      `json:"likes"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// KeyScheme selects which fields make up a record's natural key.
type KeyScheme string

const (
	// KeyTitleAuthor keys records by title and author.
	KeyTitleAuthor KeyScheme = "title_author"

	// KeyTitleTimeAuthor keys records by title, normalized time and author.
	// Relative times ("3分钟前") drift between passes, so this scheme is only
	// stable on pages that print absolute dates.
	KeyTitleTimeAuthor KeyScheme = "title_time_author"
)

// keySeparator cannot appear in extracted text, which has its whitespace and
// control characters collapsed.
const keySeparator = "\x1f"

// ParseKeyScheme validates a key scheme name. An empty name selects
// KeyTitleAuthor.
func ParseKeyScheme(name string) (KeyScheme, error) {
	switch KeyScheme(strings.TrimSpace(name)) {
	case "", KeyTitleAuthor:
		return KeyTitleAuthor, nil
	case KeyTitleTimeAuthor:
		return KeyTitleTimeAuthor, nil
	default:
		return "", fmt.Errorf("unknown key scheme: %q", name)
	}
}

// Key returns the natural key of the record under the given scheme.
func (r Record) Key(scheme KeyScheme) string {
	if scheme == KeyTitleTimeAuthor {
		return r.Title + keySeparator + r.Time + keySeparator + r.Author
	}
	return r.Title + keySeparator + r.Author
}
