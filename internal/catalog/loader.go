package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Catalog is the fixed, read-only query universe for one study run.
type Catalog struct {
	queries []Query
	byID    map[int]Query
}

// Load reads and validates the query catalog from a JSON file. Entries
// missing an explicit id are assigned their position index, matching the
// dataset convention.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("catalog: empty path")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %q: %w", path, err)
	}

	var raw []rawQuery
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("catalog: parse %q: %w", path, err)
	}

	queries := make([]Query, 0, len(raw))
	for i, rq := range raw {
		q := Query{
			ID:            i,
			Text:          strings.TrimSpace(rq.Text),
			Category:      normalize(rq.Category),
			Quality:       normalize(rq.Quality),
			IntentClarity: normalize(rq.IntentClarity),
		}
		if rq.ID != nil {
			q.ID = *rq.ID
		}
		queries = append(queries, q)
	}

	return New(queries)
}

// New builds a validated catalog from a query slice.
func New(queries []Query) (*Catalog, error) {
	byID := make(map[int]Query, len(queries))
	for i, q := range queries {
		if err := Validate(q); err != nil {
			return nil, fmt.Errorf("catalog: queries[%d]: %w", i, err)
		}
		if _, ok := byID[q.ID]; ok {
			return nil, fmt.Errorf("catalog: queries[%d]: duplicate id %d", i, q.ID)
		}
		byID[q.ID] = q
	}

	return &Catalog{queries: queries, byID: byID}, nil
}

// Validate checks one query against the fixed enumerations.
func Validate(q Query) error {
	if q.ID < 0 {
		return fmt.Errorf("id must be >= 0 (got %d)", q.ID)
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("id %d: missing query text", q.ID)
	}
	if !isOneOf(q.Category, Categories) {
		return fmt.Errorf("id %d: unknown category %q", q.ID, q.Category)
	}
	if !isOneOf(q.Quality, Qualities) {
		return fmt.Errorf("id %d: unknown quality %q", q.ID, q.Quality)
	}
	if !isOneOf(q.IntentClarity, IntentClarities) {
		return fmt.Errorf("id %d: unknown intent clarity %q", q.ID, q.IntentClarity)
	}
	return nil
}

// Len returns the catalog size.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.queries)
}

// All returns the queries in catalog order. Callers must not mutate the
// returned slice.
func (c *Catalog) All() []Query {
	if c == nil {
		return nil
	}
	return c.queries
}

// Get looks up a query by identifier.
func (c *Catalog) Get(id int) (Query, bool) {
	if c == nil {
		return Query{}, false
	}
	q, ok := c.byID[id]
	return q, ok
}

// Has reports whether an identifier belongs to the catalog.
func (c *Catalog) Has(id int) bool {
	_, ok := c.Get(id)
	return ok
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

type rawQuery struct {
	ID            *int   `json:"id,omitempty"`
	Text          string `json:"query"`
	Category      string `json:"category"`
	Quality       string `json:"quality"`
	IntentClarity string `json:"intent_clarity"`
}
