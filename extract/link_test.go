package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExtract_LinkTiers verifies the order in which a card's link is looked
// up and that every link comes back absolute
func TestExtract_LinkTiers(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "profile link",
			body: `<section class="note-item"><div class="title"><span>t</span></div>
				<a href="/other">other</a>
				<a class="cover mask ld" href="/explore/1">cover</a></section>`,
			want: "https://www.xiaohongshu.com/explore/1",
		},
		{
			name: "any anchor skipping javascript",
			body: `<section class="note-item"><div class="title"><span>t</span></div>
				<a href="javascript:void(0)">js</a>
				<a href="JavaScript:alert(1)">js</a>
				<a href="/explore/2">ok</a></section>`,
			want: "https://www.xiaohongshu.com/explore/2",
		},
		{
			name: "profile link that is javascript",
			body: `<section class="note-item"><div class="title"><span>t</span></div>
				<a class="cover mask ld" href="javascript:;">cover</a>
				<a href="/explore/3">ok</a></section>`,
			want: "https://www.xiaohongshu.com/explore/3",
		},
		{
			name: "author link in parent",
			body: `<div class="wrap">
				<a href="/ignored-plain">plain</a>
				<div class="author"><a href="/user/profile/9">who</a></div>
				<section class="note-item"><div class="title"><span>t</span></div></section>
			</div>`,
			want: "https://www.xiaohongshu.com/user/profile/9",
		},
		{
			name: "parent author links inside other cards are skipped",
			body: `<div class="wrap">
				<section class="note-item"><div class="title"><span>other</span></div><div class="author"><a href="/user/profile/1">x</a></div></section>
				<section class="note-item"><div class="title"><span>t</span></div></section>
				<a class="author" href="https://cdn.example.com/p">outside</a>
			</div>`,
			want: "https://cdn.example.com/p",
		},
		{
			name: "no link anywhere",
			body: `<div><section class="note-item"><div class="title"><span>t</span></div></section></div>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapshot(t, tt.body)
			result := newTestExtractor().ExtractAll(snap)
			require.NotEmpty(t, result.Records)

			got := result.Records[len(result.Records)-1]
			assert.Equal(t, "t", got.Title)
			assert.Equal(t, tt.want, got.URL)
		})
	}
}

// TestExtract_LinkFromSibling verifies siblings within the radius are
// searched and card siblings are not
func TestExtract_LinkFromSibling(t *testing.T) {
	ex := newTestExtractor()

	body := `<main>
		<div class="far"><a href="/too-far">x</a></div>
		<section class="note-item"><div class="title"><span>n</span></div><a href="/explore/n">n</a></section>
		<section class="note-item"><div class="title"><span>t</span></div></section>
		<div class="meta"><a href="/explore/5">u</a></div>
	</main>`

	result := ex.ExtractNew(snapshot(t, body))
	require.Len(t, result.Records, 2)
	assert.Equal(t, "https://www.xiaohongshu.com/explore/5", result.Records[1].URL)

	anchorSibling := `<main>
		<section class="note-item"><div class="title"><span>t</span></div></section>
		<a href="/explore/6">direct</a>
	</main>`
	result = ex.ExtractNew(snapshot(t, anchorSibling))
	require.Len(t, result.Records, 1)
	assert.Equal(t, "https://www.xiaohongshu.com/explore/6", result.Records[0].URL)

	outOfRadius := `<main>
		<section class="note-item"><div class="title"><span>t</span></div></section>
		<div></div><div></div>
		<div><a href="/explore/7">far</a></div>
	</main>`
	result = ex.ExtractNew(snapshot(t, outOfRadius))
	require.Len(t, result.Records, 1)
	assert.Equal(t, "", result.Records[0].URL)

	usableCases := map[string]bool{
		"":                false,
		"   ":             false,
		"javascript:;":    false,
		" JAVASCRIPT:x":   false,
		"/explore/1":      true,
		"#":               true,
		"https://a.b/c?d": true,
	}
	for href, want := range usableCases {
		assert.Equal(t, want, usableHref(href), href)
	}
}
