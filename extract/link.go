package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// link finds the href for a card. Tiers, first hit wins:
//
//  1. the profile's link strategies inside the card
//  2. any anchor inside the card that is not a javascript: link
//  3. author link selectors in the card's parent, skipping anchors that
//     belong to other cards
//  4. author link selectors, then any anchor, in up to SiblingRadius
//     non-card siblings on each side, nearest first
//
// The result is not yet resolved against the page URL.
func (e *Extractor) link(card *goquery.Selection) string {
	if href := firstMatch(card, e.profile.Link); usableHref(href) {
		return href
	}

	if href := firstAnchor(card.Find("a[href]"), nil); href != "" {
		return href
	}

	inCard := func(s *goquery.Selection) bool {
		return s.Closest(e.union).Length() > 0
	}

	if parent := card.Parent(); parent.Length() > 0 {
		for _, sel := range e.profile.AuthorLinkSelectors {
			if href := firstAnchor(parent.Find(sel), inCard); href != "" {
				return href
			}
		}
	}

	prev := card.PrevAll()
	next := card.NextAll()
	for i := 0; i < e.profile.SiblingRadius; i++ {
		for _, sib := range []*goquery.Selection{prev.Eq(i), next.Eq(i)} {
			if sib.Length() == 0 || sib.Is(e.union) {
				continue
			}
			if goquery.NodeName(sib) == "a" {
				if href, _ := sib.Attr("href"); usableHref(href) {
					return strings.TrimSpace(href)
				}
			}
			if href := e.searchNear(sib, inCard); href != "" {
				return href
			}
		}
	}

	return ""
}

// searchNear looks for a link inside a sibling, author links first.
func (e *Extractor) searchNear(scope *goquery.Selection, skip func(*goquery.Selection) bool) string {
	for _, sel := range e.profile.AuthorLinkSelectors {
		if href := firstAnchor(scope.Find(sel), skip); href != "" {
			return href
		}
	}
	return firstAnchor(scope.Find("a[href]"), skip)
}

func firstAnchor(anchors *goquery.Selection, skip func(*goquery.Selection) bool) string {
	var found string
	anchors.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if skip != nil && skip(a) {
			return true
		}
		href, _ := a.Attr("href")
		if !usableHref(href) {
			return true
		}
		found = strings.TrimSpace(href)
		return false
	})
	return found
}

func usableHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(href), "javascript:")
}
