// Package extract turns one snapshot of a feed page into post records.
//
// An Extractor runs a single pass: it resolves the profile's container
// selectors, drops cards that are not rendered, and pulls each field out of a
// card with the profile's strategy lists. The same pass serves both callers
// that accumulate records across scroll ticks and callers that want one
// complete listing; Mode selects how cards without a title are handled.
package extract

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/pevans/pagecat/normalize"
	"github.com/pevans/pagecat/page"
	"github.com/pevans/pagecat/post"
	"github.com/pevans/pagecat/scraper"
)

// PlaceholderTitle prefixes the synthetic title of untitled cards in a full
// pass. Cards whose title starts with it are never accumulated.
const PlaceholderTitle = "无标题项目"

// MismatchMessage is the Diagnostic error text.
const MismatchMessage = "Could not find structured items. Page content extraction needs specific selectors for this site."

// pageTextLimit bounds the body text copied into a Diagnostic.
const pageTextLimit = 2000

// Mode selects the policy for cards without a usable title.
type Mode struct {
	// KeepPlaceholders labels untitled cards "无标题项目 N" instead of
	// dropping them, so callers can see which positions failed.
	KeepPlaceholders bool
}

var (
	// Accumulate drops untitled cards. Used while scrolling.
	Accumulate = Mode{}

	// FullPass keeps untitled cards under a positional placeholder title.
	FullPass = Mode{KeepPlaceholders: true}
)

// ParseMode maps "full" and "accumulate" to their modes. An empty name
// selects FullPass.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "full":
		return FullPass, nil
	case "accumulate":
		return Accumulate, nil
	default:
		return Mode{}, fmt.Errorf("unknown extraction mode: %q", name)
	}
}

// Diagnostic describes a page on which no container selector matched.
type Diagnostic struct {
	Error       string   `json:"error"`
	PageTitle   string   `json:"pageTitle"`
	PageText    string   `json:"pageText"`
	URL         string   `json:"url"`
	Selectors   []string `json:"selectors"`
	BodyClasses string   `json:"bodyClasses"`
	BodyID      string   `json:"bodyId"`
}

// MismatchError is returned by callers that need to surface a Diagnostic as
// a failure.
type MismatchError struct {
	Diagnostic *Diagnostic
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s (tried %s on %s)",
		e.Diagnostic.Error, strings.Join(e.Diagnostic.Selectors, ", "), e.Diagnostic.URL)
}

// Result is the outcome of one pass. Exactly one of Records and Diagnostic
// is meaningful: a nil Diagnostic with no Records means the selectors
// matched but nothing usable was rendered.
type Result struct {
	Records    []post.Record
	Diagnostic *Diagnostic

	// Candidates is the number of elements the selectors matched.
	Candidates int
	// Hidden is the number of candidates skipped for having no rendered box.
	Hidden int
}

// Extractor extracts records using one profile.
type Extractor struct {
	profile scraper.Profile
	union   string
	now     func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock sets the instant relative dates are resolved against.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// New creates an extractor. Container selectors that do not compile are
// ignored so that one bad entry does not disable the rest.
func New(profile scraper.Profile, opts ...Option) *Extractor {
	if profile.SiblingRadius == 0 {
		profile.SiblingRadius = scraper.DefaultSiblingRadius
	}

	var valid []string
	for _, s := range profile.ContainerSelectors {
		if _, err := cascadia.Compile(s); err == nil {
			valid = append(valid, s)
		}
	}

	e := &Extractor{
		profile: profile,
		union:   strings.Join(valid, ", "),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Selectors returns the container selectors a pass tries.
func (e *Extractor) Selectors() []string {
	return e.profile.ContainerSelectors
}

// ExtractNew runs an accumulation pass.
func (e *Extractor) ExtractNew(snap *page.Snapshot) Result {
	return e.Extract(snap, Accumulate)
}

// ExtractAll runs a full pass.
func (e *Extractor) ExtractAll(snap *page.Snapshot) Result {
	return e.Extract(snap, FullPass)
}

// Extract runs one pass over snap.
func (e *Extractor) Extract(snap *page.Snapshot, mode Mode) Result {
	cards := e.candidates(snap)
	if cards.Length() == 0 {
		return Result{Diagnostic: e.diagnose(snap)}
	}

	result := Result{Candidates: cards.Length()}
	seen := make(map[string]bool)
	now := e.now()

	cards.Each(func(i int, card *goquery.Selection) {
		if mode.KeepPlaceholders {
			id := identity(card)
			if seen[id] {
				return
			}
			seen[id] = true
		}

		if box, known := page.BoxOf(card); known && box.Empty() {
			result.Hidden++
			return
		}

		title := firstMatch(card, e.profile.Title)
		if mode.KeepPlaceholders {
			if title == "" {
				title = fmt.Sprintf("%s %d", PlaceholderTitle, i+1)
			}
		} else if title == "" || strings.HasPrefix(title, PlaceholderTitle) {
			return
		}

		rec := post.Record{
			Title:       title,
			Author:      firstMatch(card, e.profile.Author),
			Time:        normalizeTime(firstMatch(card, e.profile.Time), now),
			Likes:       normalize.Number(firstMatch(card, e.profile.Likes)),
			URL:         snap.ResolveURL(e.link(card)),
			Description: firstMatch(card, e.profile.Description),
			Tags:        e.tags(card),
		}
		result.Records = append(result.Records, rec)
	})

	return result
}

// candidates matches the selector group in document order, like
// querySelectorAll, so a card matched by two selectors appears once.
func (e *Extractor) candidates(snap *page.Snapshot) *goquery.Selection {
	if e.union == "" {
		return snap.Document.Selection.Slice(0, 0)
	}
	return snap.Document.Find(e.union)
}

func (e *Extractor) diagnose(snap *page.Snapshot) *Diagnostic {
	body := snap.Document.Find("body").First()
	classes, _ := body.Attr("class")
	id, _ := body.Attr("id")

	d := &Diagnostic{
		Error:       MismatchMessage,
		PageTitle:   snap.Title,
		PageText:    truncateRunes(snap.BodyText(), pageTextLimit),
		Selectors:   append([]string(nil), e.profile.ContainerSelectors...),
		BodyClasses: classes,
		BodyID:      id,
	}
	if snap.URL != nil {
		d.URL = snap.URL.String()
	}
	return d
}

func (e *Extractor) tags(card *goquery.Selection) []string {
	tags := []string{}
	if e.profile.TagSelector == "" {
		return tags
	}
	card.Find(e.profile.TagSelector).Each(func(_ int, s *goquery.Selection) {
		if text := collapse(s.Text()); text != "" {
			tags = append(tags, text)
		}
	})
	return tags
}

// identity distinguishes cards in a full pass. Virtualized feeds number
// their cards with data-index; without it the markup itself is compared.
func identity(card *goquery.Selection) string {
	if idx, ok := card.Attr("data-index"); ok && idx != "" {
		return "index:" + idx
	}
	html, err := goquery.OuterHtml(card)
	if err != nil {
		return ""
	}
	return "html:" + html
}

func normalizeTime(raw string, now time.Time) string {
	if raw == "" {
		return normalize.UnknownTime
	}
	return normalize.DateAt(raw, now)
}

// firstMatch returns the first non-empty value produced by strategies.
func firstMatch(card *goquery.Selection, strategies []scraper.Strategy) string {
	for _, st := range strategies {
		if st.Selector == "" {
			continue
		}
		m := card.Find(st.Selector).First()
		if m.Length() == 0 {
			continue
		}

		var value string
		if st.Attr != "" {
			value, _ = m.Attr(st.Attr)
		} else {
			value = m.Text()
		}

		if value = collapse(value); value != "" {
			return value
		}
	}
	return ""
}

// collapse trims s and folds every whitespace run into one space.
// collapse folds runs of whitespace and control characters into single
// spaces.
func collapse(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
