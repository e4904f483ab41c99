package replay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pevans/pagecat/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ page.Page = (*Page)(nil)
var _ page.FaultReporter = (*Page)(nil)

func TestReplay_AdvancesOnScroll(t *testing.T) {
	ctx := context.Background()
	p := New("https://www.xiaohongshu.com/explore",
		Frame{HTML: "<title>one</title>", Height: 1000},
		Frame{HTML: "<title>two</title>", Height: 2000},
	)

	snap, err := p.Snapshot(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "one", snap.Title)

	require.NoError(t, p.ScrollTo(ctx, 1000))
	h, err := p.ScrollHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, h)

	// The last frame repeats and scrolling to the top does not advance.
	require.NoError(t, p.ScrollTo(ctx, 2000))
	require.NoError(t, p.ScrollTo(ctx, 0))
	snap, err = p.Snapshot(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "two", snap.Title)
	assert.Equal(t, "https://www.xiaohongshu.com/explore", snap.URL.String())

	assert.Equal(t, 3, p.Scrolls())
	assert.Equal(t, 0.0, p.Top())
	assert.Equal(t, []int{0, 1}, p.Visited())
}

func TestReplay_FailScroll(t *testing.T) {
	ctx := context.Background()
	p := New("", Frame{HTML: "<p>x</p>", Height: 10})
	boom := errors.New("boom")
	p.FailScroll(2, boom)

	require.NoError(t, p.ScrollTo(ctx, 10))
	assert.ErrorIs(t, p.ScrollTo(ctx, 10), boom)
	require.NoError(t, p.ScrollTo(ctx, 10))
}

func TestReplay_Fault(t *testing.T) {
	p := New("")
	p.Fault(page.ErrOffline)
	p.Fault(page.ErrPageScript)

	assert.ErrorIs(t, <-p.Faults(), page.ErrOffline)
}

func TestReplay_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New("")
	_, err := p.Snapshot(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, p.ScrollTo(ctx, 1), context.Canceled)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002.html"), []byte(`<html><title>b</title></html>`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001.html"), []byte(`<html data-scroll-height="640"><title>a</title></html>`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	p, err := LoadDir(dir, "")
	require.NoError(t, err)

	ctx := context.Background()
	h, err := p.ScrollHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, 640.0, h)

	require.NoError(t, p.ScrollTo(ctx, h))
	h, err = p.ScrollHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, h)
}

func TestLoadDir_Empty(t *testing.T) {
	_, err := LoadDir(t.TempDir(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .html frames")
}

func TestDirOpener(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001.html"), []byte(`<title>a</title><a href="/n/1">x</a>`), 0o600))

	p, err := DirOpener(dir).Open(context.Background(), "https://www.xiaohongshu.com/explore")
	require.NoError(t, err)

	snap, err := p.Snapshot(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "https://www.xiaohongshu.com/n/1", snap.ResolveURL("/n/1"))
}

func TestFetchOpener(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>static</title></head><body></body></html>`))
	}))
	defer server.Close()

	p, err := FetchOpener().Open(context.Background(), server.URL)
	require.NoError(t, err)

	snap, err := p.Snapshot(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "static", snap.Title)
}
