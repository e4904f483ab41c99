// Package page defines the capability set the extractor and scroll driver
// need from a host page: a parsed snapshot of the rendered document with
// element geometry, the document height, and a scroll command. Live browser
// tabs, recorded frames and test fakes all implement it.
package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrOffline is reported when the page loses network connectivity.
	ErrOffline = errors.New("network connection lost")

	// ErrPageScript is reported when the host page throws an uncaught error.
	ErrPageScript = errors.New("page error occurred during scrolling")
)

// Attributes carrying the rendered box of candidate elements in a snapshot.
// Implementations that know the layout write them onto every element that
// matches the requested selectors.
const (
	BoxWidthAttr  = "data-box-width"
	BoxHeightAttr = "data-box-height"
)

// Page is a continuously mutating host page.
type Page interface {
	// Snapshot returns the document as currently rendered. Elements matching
	// any of selectors carry their rendered box.
	Snapshot(ctx context.Context, selectors []string) (*Snapshot, error)

	// ScrollHeight returns the current document scroll height in pixels.
	ScrollHeight(ctx context.Context) (float64, error)

	// ScrollTo scrolls the viewport so that top is the first visible pixel.
	ScrollTo(ctx context.Context, top float64) error
}

// FaultReporter is implemented by pages that can observe fatal conditions
// outside of any call, such as an uncaught script error or the browser going
// offline. A scroll session calls Faults when it starts; faults raised before
// that call belong to no session and may be dropped. The channel is never
// closed while the page is open.
type FaultReporter interface {
	Faults() <-chan error
}

// Opener opens a page at a URL. Pages that hold resources, such as browser
// tabs, also implement io.Closer.
type Opener interface {
	Open(ctx context.Context, url string) (Page, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, url string) (Page, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, url string) (Page, error) {
	return f(ctx, url)
}

// Snapshot is a parsed copy of the rendered document.
type Snapshot struct {
	Document *goquery.Document
	URL      *url.URL
	Title    string
}

// Box is the rendered size of an element.
type Box struct {
	Width  float64
	Height float64
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// BoxOf returns the rendered box recorded on sel. The second result is false
// when the snapshot carries no layout information for the element, as is the
// case for documents that were never rendered.
func BoxOf(sel *goquery.Selection) (Box, bool) {
	if style, ok := sel.Attr("style"); ok && hidesElement(style) {
		return Box{}, true
	}

	w, okW := sel.Attr(BoxWidthAttr)
	h, okH := sel.Attr(BoxHeightAttr)
	if !okW || !okH {
		return Box{}, false
	}

	width, errW := strconv.ParseFloat(strings.TrimSpace(w), 64)
	height, errH := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if errW != nil || errH != nil {
		return Box{}, false
	}
	return Box{Width: width, Height: height}, true
}

func hidesElement(style string) bool {
	compact := strings.ReplaceAll(strings.ToLower(style), " ", "")
	return strings.Contains(compact, "display:none")
}

// NewSnapshot parses an HTML document. base is used to resolve relative
// links and may be empty.
func NewSnapshot(r io.Reader, base string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	snap := &Snapshot{
		Document: doc,
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
	}

	if base != "" {
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid page URL: %w", err)
		}
		snap.URL = u
		doc.Url = u
	}

	return snap, nil
}

// ResolveURL converts href into an absolute URL against the snapshot's
// location. Unresolvable hrefs are returned trimmed but otherwise unchanged.
func (s *Snapshot) ResolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if s.URL == nil {
		return ref.String()
	}
	return s.URL.ResolveReference(ref).String()
}

// BodyText returns the whitespace-collapsed text of the body element.
func (s *Snapshot) BodyText() string {
	return strings.Join(strings.Fields(s.Document.Find("body").Text()), " ")
}
