package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stellarlinkco/ab-eval/internal/analysis"
	"github.com/stellarlinkco/ab-eval/internal/catalog"
	"github.com/stellarlinkco/ab-eval/internal/store"
)

// FlatRecord is one query flattened for a report generator: metadata, both
// responses, the score if present, and the derived state.
type FlatRecord struct {
	QueryID       int    `json:"query_id"`
	Query         string `json:"query"`
	Category      string `json:"category"`
	Quality       string `json:"quality"`
	IntentClarity string `json:"intent_clarity"`
	Status        string `json:"status"`
	InSample      bool   `json:"in_sample"`

	ResponseA *store.Response `json:"response_a,omitempty"`
	ResponseB *store.Response `json:"response_b,omitempty"`
	Score     *store.Score    `json:"score,omitempty"`
}

// Report is the full export payload.
type Report struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Stats       *store.AggregateStats `json:"stats"`
	Sample      *store.SampleSet      `json:"sample,omitempty"`
	Records     []FlatRecord          `json:"records"`
	Analysis    *analysis.Report      `json:"analysis"`
}

// Build assembles the export payload from one store snapshot. Records
// follow catalog order; queries with no activity still appear, flattened
// from the catalog alone.
func Build(ctx context.Context, cat *catalog.Catalog, st store.Store) (*Report, error) {
	if ctx == nil {
		return nil, errors.New("export: nil context")
	}
	if cat == nil {
		return nil, errors.New("export: nil catalog")
	}
	if st == nil {
		return nil, errors.New("export: nil store")
	}

	records, err := st.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: list records: %w", err)
	}
	stats, err := st.AggregateStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: aggregate stats: %w", err)
	}

	var sample *store.SampleSet
	sample, err = st.GetSampleSet(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNoSample) {
			return nil, fmt.Errorf("export: get sample: %w", err)
		}
		sample = nil
	}

	byID := make(map[int]*store.EvaluationRecord, len(records))
	for _, rec := range records {
		byID[rec.QueryID] = rec
	}

	out := &Report{
		GeneratedAt: time.Now().UTC(),
		Stats:       stats,
		Sample:      sample,
	}

	for _, q := range cat.All() {
		flat := FlatRecord{
			QueryID:       q.ID,
			Query:         q.Text,
			Category:      q.Category,
			Quality:       q.Quality,
			IntentClarity: q.IntentClarity,
			Status:        string(store.StatusEmpty),
			InSample:      sample != nil && sample.Contains(q.ID),
		}
		if rec := byID[q.ID]; rec != nil {
			flat.Status = string(rec.Status())
			flat.ResponseA = rec.ResponseA
			flat.ResponseB = rec.ResponseB
			flat.Score = rec.Score
		}
		out.Records = append(out.Records, flat)
	}

	rows := analysis.BuildRows(cat, records, sample)
	out.Analysis = analysis.Analyze(rows)

	return out, nil
}
