package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Entry struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	PriceLabel     string `json:"priceLabel"`
	ImageReference string `json:"imageReference"`
}

type Catalog struct {
	entries []Entry
	byID    map[string]int
}

func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(entries))}
	for _, e := range entries {
		e.ID = strings.TrimSpace(e.ID)
		e.ImageReference = strings.TrimSpace(e.ImageReference)
		switch {
		case e.ID == "":
			return nil, errors.New("catalog entry without id")
		case e.ImageReference == "":
			return nil, fmt.Errorf("catalog entry %q has no image reference", e.ID)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %q", e.ID)
		}
		if e.Title == "" {
			e.Title = e.ID
		}
		c.byID[e.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return New(nil)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return New(entries)
}

func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Catalog) Find(id string) (Entry, bool) {
	idx, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Entry{}, false
	}
	return c.entries[idx], true
}

func (c *Catalog) Len() int {
	return len(c.entries)
}
