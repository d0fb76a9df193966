package export

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stellarlinkco/ab-eval/internal/catalog"
	"github.com/stellarlinkco/ab-eval/internal/store"
)

func newTestFixtures(t *testing.T) (*catalog.Catalog, store.Store) {
	t.Helper()

	queries := []catalog.Query{
		{ID: 1, Text: "best pizza near downtown", Category: "local", Quality: "well-formed", IntentClarity: "high"},
		{ID: 2, Text: "weather", Category: "informational", Quality: "ambiguous", IntentClarity: "low"},
		{ID: 3, Text: "buy headphones", Category: "transactional", Quality: "well-formed", IntentClarity: "high"},
	}
	cat, err := catalog.New(queries)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "export.db"), cat)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return cat, st
}

func TestBuildCoversWholeCatalog(t *testing.T) {
	t.Parallel()

	cat, st := newTestFixtures(t)
	ctx := context.Background()

	if err := st.PutResponse(ctx, 1, store.PlatformA, &store.Response{Text: "a", SearchUsed: true}); err != nil {
		t.Fatalf("PutResponse: %v", err)
	}
	if err := st.PutResponse(ctx, 1, store.PlatformB, &store.Response{Text: "b"}); err != nil {
		t.Fatalf("PutResponse: %v", err)
	}
	score := &store.Score{
		PlatformA: store.PlatformScore{Relevance: 4, Completeness: 4, SourceQuality: 4},
		PlatformB: store.PlatformScore{Relevance: 3, Completeness: 3, SourceQuality: 3},
	}
	if err := st.PutScore(ctx, 1, score); err != nil {
		t.Fatalf("PutScore: %v", err)
	}

	report, err := Build(ctx, cat, st)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(report.Records) != 3 {
		t.Fatalf("records = %d, want whole catalog", len(report.Records))
	}
	if report.Records[0].Status != string(store.StatusScored) {
		t.Fatalf("record 1 status = %q", report.Records[0].Status)
	}
	if report.Records[0].Score == nil || report.Records[0].ResponseA == nil {
		t.Fatalf("record 1 not flattened: %+v", report.Records[0])
	}
	if report.Records[1].Status != string(store.StatusEmpty) || report.Records[1].ResponseA != nil {
		t.Fatalf("record 2 = %+v", report.Records[1])
	}
	if report.Stats == nil || report.Stats.Scored != 1 {
		t.Fatalf("stats = %+v", report.Stats)
	}
	if report.Sample != nil {
		t.Fatal("expected no sample")
	}
	if report.Analysis == nil || report.Analysis.N != 1 {
		t.Fatalf("analysis = %+v", report.Analysis)
	}
	if report.GeneratedAt.IsZero() {
		t.Fatal("missing GeneratedAt")
	}
}

func TestBuildMarksSampleMembership(t *testing.T) {
	t.Parallel()

	cat, st := newTestFixtures(t)
	ctx := context.Background()

	set := &store.SampleSet{TargetSize: 2, QueryIDs: []int{1, 3}}
	if err := st.SaveSampleSet(ctx, set); err != nil {
		t.Fatalf("SaveSampleSet: %v", err)
	}

	report, err := Build(ctx, cat, st)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.Sample == nil {
		t.Fatal("expected sample in report")
	}
	if !report.Records[0].InSample || report.Records[1].InSample || !report.Records[2].InSample {
		t.Fatalf("sample flags = %v/%v/%v", report.Records[0].InSample, report.Records[1].InSample, report.Records[2].InSample)
	}
}
