// Package replay implements page.Page over a fixed sequence of recorded
// frames. Every scroll away from the top shows the next frame, which lets a
// scroll session be re-run offline against saved markup.
package replay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pevans/pagecat/page"
)

// HeightAttr may be set on a recorded frame's html element to give its
// scroll height.
const HeightAttr = "data-scroll-height"

// Frame is the page as rendered after some number of scrolls.
type Frame struct {
	HTML   string
	Height float64
}

// Page replays frames. It is safe for concurrent use.
type Page struct {
	mu      sync.Mutex
	base    string
	frames  []Frame
	pos     int
	top     float64
	scrolls int

	failAt  map[int]error
	faults  chan error
	visited []int
}

// New creates a page that starts on the first frame. base is the URL the
// frames were recorded from and may be empty.
func New(base string, frames ...Frame) *Page {
	return &Page{
		base:   base,
		frames: frames,
		failAt: make(map[int]error),
		faults: make(chan error, 1),
	}
}

// LoadDir reads every .html file in dir, in name order, as one frame each.
// A frame's height comes from HeightAttr on its html element, or grows by
// 1000px per frame when absent.
func LoadDir(dir, base string) (*Page, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no .html frames in %s", dir)
	}
	sort.Strings(matches)

	frames := make([]Frame, 0, len(matches))
	for i, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}

		frame := Frame{HTML: string(data), Height: float64(i+1) * 1000}
		snap, err := page.NewSnapshot(strings.NewReader(frame.HTML), "")
		if err != nil {
			return nil, fmt.Errorf("failed to parse frame %s: %w", filepath.Base(path), err)
		}
		if h, ok := snap.Document.Find("html").Attr(HeightAttr); ok {
			if v, err := strconv.ParseFloat(strings.TrimSpace(h), 64); err == nil {
				frame.Height = v
			}
		}
		frames = append(frames, frame)
	}

	return New(base, frames...), nil
}

// FailScroll makes the n-th call to ScrollTo (1-based) return err.
func (p *Page) FailScroll(n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failAt[n] = err
}

// Fault reports err on the fault channel, as a browser would for an
// uncaught script error or lost connectivity.
func (p *Page) Fault(err error) {
	select {
	case p.faults <- err:
	default:
	}
}

// Faults implements page.FaultReporter.
func (p *Page) Faults() <-chan error {
	return p.faults
}

// Snapshot implements page.Page. Frames are returned as recorded; selectors
// are not used because recorded frames already carry any layout attributes.
func (p *Page) Snapshot(ctx context.Context, selectors []string) (*page.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	frame, pos := p.current()
	p.visited = append(p.visited, pos)
	p.mu.Unlock()

	return page.NewSnapshot(strings.NewReader(frame.HTML), p.base)
}

// ScrollHeight implements page.Page.
func (p *Page) ScrollHeight(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	frame, _ := p.current()
	return frame.Height, nil
}

// ScrollTo implements page.Page. Scrolling to any position below the top
// advances to the next frame; the last frame repeats.
func (p *Page) ScrollTo(ctx context.Context, top float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.scrolls++
	if err, ok := p.failAt[p.scrolls]; ok {
		return err
	}

	p.top = top
	if top > 0 && p.pos < len(p.frames)-1 {
		p.pos++
	}
	return nil
}

// Scrolls returns how many times ScrollTo was called.
func (p *Page) Scrolls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolls
}

// Top returns the last scroll position.
func (p *Page) Top() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.top
}

// Visited returns the frame index shown by every Snapshot call so far.
func (p *Page) Visited() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.visited...)
}

func (p *Page) current() (Frame, int) {
	if len(p.frames) == 0 {
		return Frame{HTML: "<html><body></body></html>"}, 0
	}
	return p.frames[p.pos], p.pos
}

// DirOpener opens every URL as a replay of the frames in dir.
func DirOpener(dir string) page.Opener {
	return page.OpenerFunc(func(_ context.Context, url string) (page.Page, error) {
		return LoadDir(dir, url)
	})
}

// FetchOpener opens a URL as a single frame fetched over plain HTTP. Pages
// rendered by script show nothing this way.
func FetchOpener() page.Opener {
	return page.OpenerFunc(func(ctx context.Context, url string) (page.Page, error) {
		snap, err := page.FetchSnapshot(ctx, url)
		if err != nil {
			return nil, err
		}
		html, err := snap.Document.Html()
		if err != nil {
			return nil, fmt.Errorf("failed to render fetched page: %w", err)
		}
		return New(url, Frame{HTML: html, Height: 1}), nil
	})
}
