// Package dedup accumulates post records across scroll passes, keeping the
// first record seen for each natural key.
package dedup

import (
	"github.com/pevans/pagecat/post"
)

// Accumulator is an insertion-ordered set of records keyed by a post.KeyScheme.
// It is not safe for concurrent use; a scroll session owns one.
type Accumulator struct {
	scheme post.KeyScheme
	index  map[string]int
	items  []post.Record
}

// New creates an empty accumulator. The scheme name is parsed with
// post.ParseKeyScheme; an empty or unknown name selects post.KeyTitleAuthor.
func New(scheme post.KeyScheme) *Accumulator {
	scheme, err := post.ParseKeyScheme(string(scheme))
	if err != nil {
		scheme = post.KeyTitleAuthor
	}
	return &Accumulator{
		scheme: scheme,
		index:  make(map[string]int),
	}
}

// Scheme returns the key scheme records are compared with.
func (a *Accumulator) Scheme() post.KeyScheme {
	return a.scheme
}

// Merge adds every candidate whose key has not been seen and returns how many
// were added. Earlier records are never replaced, so merging the same batch
// twice adds nothing the second time.
func (a *Accumulator) Merge(candidates []post.Record) int {
	added := 0
	for _, r := range candidates {
		key := r.Key(a.scheme)
		if _, ok := a.index[key]; ok {
			continue
		}
		a.index[key] = len(a.items)
		a.items = append(a.items, r)
		added++
	}
	return added
}

// Contains reports whether a record with the same key has been merged.
func (a *Accumulator) Contains(r post.Record) bool {
	_, ok := a.index[r.Key(a.scheme)]
	return ok
}

// Len returns the number of distinct records.
func (a *Accumulator) Len() int {
	return len(a.items)
}

// Values returns the records in the order they were first merged. The slice
// is a copy.
func (a *Accumulator) Values() []post.Record {
	out := make([]post.Record, len(a.items))
	copy(out, a.items)
	return out
}
