package scraper

import (
	"errors"
	"fmt"
	"os"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// Strategy extracts one value from inside an element. An empty Attr takes
// the matched element's text.
type Strategy struct {
	Selector string `yaml:"selector" json:"selector"`
	Attr     string `yaml:"attr,omitempty" json:"attr,omitempty"`
}

// Profile defines how to find post cards on a feed layout and how to pull
// each field out of a card. Field strategies are tried in order and the
// first non-empty match wins.
type Profile struct {
	Name               string     `yaml:"name" json:"name"`
	ContainerSelectors []string   `yaml:"container_selectors" json:"container_selectors"`
	Title              []Strategy `yaml:"title" json:"title"`
	Author             []Strategy `yaml:"author" json:"author"`
	Time               []Strategy `yaml:"time" json:"time"`
	Likes              []Strategy `yaml:"likes" json:"likes"`
	Link               []Strategy `yaml:"link" json:"link"`
	Description        []Strategy `yaml:"description,omitempty" json:"description,omitempty"`
	TagSelector        string     `yaml:"tag_selector,omitempty" json:"tag_selector,omitempty"`

	// AuthorLinkSelectors are searched in the card's parent and siblings
	// when the card itself holds no usable link.
	AuthorLinkSelectors []string `yaml:"author_link_selectors,omitempty" json:"author_link_selectors,omitempty"`
	SiblingRadius       int      `yaml:"sibling_radius,omitempty" json:"sibling_radius,omitempty"`
}

// DefaultSiblingRadius is how many siblings on each side of a card are
// searched for a link.
const DefaultSiblingRadius = 2

// XiaohongshuProfile returns the selectors for the Xiaohongshu explore and
// search feeds.
func XiaohongshuProfile() Profile {
	return Profile{
		Name: "xiaohongshu",
		ContainerSelectors: []string{
			"section.note-item",
			"[data-v-a264b01a].note-item",
			"[data-v-330d9cca].note-item",
		},
		Title: []Strategy{
			{Selector: ".title span"},
			{Selector: "img[data-xhs-img]", Attr: "alt"},
		},
		Author: []Strategy{
			{Selector: ".author .name .name"},
			{Selector: ".author .name"},
		},
		Time: []Strategy{
			{Selector: ".time .time"},
		},
		Likes: []Strategy{
			{Selector: ".like-wrapper .count"},
		},
		Link: []Strategy{
			{Selector: "a.cover.mask.ld", Attr: "href"},
		},
		Description: []Strategy{
			{Selector: ".desc"},
		},
		TagSelector:         ".tag",
		AuthorLinkSelectors: []string{".author a[href]", "a.author[href]"},
		SiblingRadius:       DefaultSiblingRadius,
	}
}

// Validate checks the profile has enough selectors to extract anything.
func (p *Profile) Validate() error {
	if len(p.ContainerSelectors) == 0 {
		return errors.New("profile has no container selectors")
	}
	for _, s := range p.ContainerSelectors {
		if s == "" {
			return errors.New("profile has an empty container selector")
		}
	}
	if len(p.Title) == 0 {
		return errors.New("profile has no title strategies")
	}
	if p.SiblingRadius < 0 {
		return fmt.Errorf("sibling_radius must not be negative, got %d", p.SiblingRadius)
	}
	return p.compileSelectors()
}

// compileSelectors reports the first selector cascadia cannot parse.
func (p *Profile) compileSelectors() error {
	check := func(field, sel string) error {
		if sel == "" {
			return nil
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("invalid %s selector %q: %w", field, sel, err)
		}
		return nil
	}

	for _, s := range p.ContainerSelectors {
		if err := check("container", s); err != nil {
			return err
		}
	}
	fields := []struct {
		name       string
		strategies []Strategy
	}{
		{"title", p.Title},
		{"author", p.Author},
		{"time", p.Time},
		{"likes", p.Likes},
		{"link", p.Link},
		{"description", p.Description},
	}
	for _, f := range fields {
		for _, st := range f.strategies {
			if err := check(f.name, st.Selector); err != nil {
				return err
			}
		}
	}
	for _, s := range p.AuthorLinkSelectors {
		if err := check("author link", s); err != nil {
			return err
		}
	}
	return check("tag", p.TagSelector)
}

// LoadProfile reads a profile from a YAML file. Fields left out of the file
// are not defaulted; a file must describe a complete layout.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}

	return &p, nil
}
