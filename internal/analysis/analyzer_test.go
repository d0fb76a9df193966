package analysis

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stellarlinkco/ab-eval/internal/catalog"
	"github.com/stellarlinkco/ab-eval/internal/store"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func scoredRecord(id int, a, b store.PlatformScore) *store.EvaluationRecord {
	return &store.EvaluationRecord{
		QueryID:   id,
		ResponseA: &store.Response{Text: "a", SearchUsed: id%2 == 0},
		ResponseB: &store.Response{Text: "b"},
		Score: &store.Score{
			PlatformA:   a,
			PlatformB:   b,
			SubmittedAt: time.Now(),
		},
	}
}

func testCatalog(t *testing.T, n int) *catalog.Catalog {
	t.Helper()

	categories := []string{"informational", "local", "transactional"}
	qualities := []string{"well-formed", "ambiguous"}
	clarities := []string{"high", "low"}

	queries := make([]catalog.Query, 0, n)
	for i := 1; i <= n; i++ {
		queries = append(queries, catalog.Query{
			ID:            i,
			Text:          "q",
			Category:      categories[i%len(categories)],
			Quality:       qualities[i%len(qualities)],
			IntentClarity: clarities[i%len(clarities)],
		})
	}
	cat, err := catalog.New(queries)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cat
}

func TestBuildRowsFiltersToScoredAndSampled(t *testing.T) {
	t.Parallel()

	cat := testCatalog(t, 4)
	records := []*store.EvaluationRecord{
		scoredRecord(1, store.PlatformScore{Relevance: 4, Completeness: 4, SourceQuality: 4}, store.PlatformScore{Relevance: 3, Completeness: 3, SourceQuality: 3}),
		{QueryID: 2, ResponseA: &store.Response{Text: "a"}}, // partial, excluded
		scoredRecord(3, store.PlatformScore{Relevance: 5, Completeness: 5, SourceQuality: 5}, store.PlatformScore{Relevance: 5, Completeness: 5, SourceQuality: 5}),
	}

	rows := BuildRows(cat, records, nil)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].QueryID != 1 || rows[1].QueryID != 3 {
		t.Fatalf("row ids = %d, %d", rows[0].QueryID, rows[1].QueryID)
	}

	sample := &store.SampleSet{QueryIDs: []int{3, 4}}
	rows = BuildRows(cat, records, sample)
	if len(rows) != 1 || rows[0].QueryID != 3 {
		t.Fatalf("sampled rows = %+v", rows)
	}
}

func TestDescriptiveFor(t *testing.T) {
	t.Parallel()

	rows := []Row{
		{A: RowSide{Relevance: 4}, B: RowSide{Relevance: 2}},
		{A: RowSide{Relevance: 5}, B: RowSide{Relevance: 3}},
	}

	sum := DescriptiveFor(rows, MetricRelevance)
	if sum.PlatformA.Mean != 4.5 || sum.PlatformA.Count != 2 {
		t.Fatalf("platform a = %+v", sum.PlatformA)
	}
	if sum.PlatformB.Mean != 2.5 {
		t.Fatalf("platform b = %+v", sum.PlatformB)
	}

	empty := DescriptiveFor(nil, MetricRelevance)
	if empty.PlatformA.Count != 0 || empty.PlatformA.Mean != 0 {
		t.Fatalf("empty = %+v", empty)
	}
}

func TestRates(t *testing.T) {
	t.Parallel()

	rows := []Row{
		{A: RowSide{IntentUnderstood: true, FollowupNeeded: false}, B: RowSide{IntentUnderstood: true, FollowupNeeded: true}},
		{A: RowSide{IntentUnderstood: true, FollowupNeeded: true}, B: RowSide{IntentUnderstood: false, FollowupNeeded: true}},
		{A: RowSide{IntentUnderstood: false, FollowupNeeded: false}, B: RowSide{IntentUnderstood: false, FollowupNeeded: false}},
		{A: RowSide{IntentUnderstood: true, FollowupNeeded: false}, B: RowSide{IntentUnderstood: true, FollowupNeeded: true}},
	}

	rates := Rates(rows)
	if !almostEqual(rates.IntentUnderstoodA, 0.75, 1e-12) {
		t.Fatalf("IntentUnderstoodA = %f", rates.IntentUnderstoodA)
	}
	if !almostEqual(rates.IntentUnderstoodB, 0.5, 1e-12) {
		t.Fatalf("IntentUnderstoodB = %f", rates.IntentUnderstoodB)
	}
	if !almostEqual(rates.NoFollowupA, 0.75, 1e-12) {
		t.Fatalf("NoFollowupA = %f", rates.NoFollowupA)
	}
	if !almostEqual(rates.NoFollowupB, 0.25, 1e-12) {
		t.Fatalf("NoFollowupB = %f", rates.NoFollowupB)
	}
}

func TestPairedTestInsufficientData(t *testing.T) {
	t.Parallel()

	if _, err := PairedTest(nil, MetricRelevance); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
	one := []Row{{A: RowSide{Relevance: 4}, B: RowSide{Relevance: 3}}}
	if _, err := PairedTest(one, MetricRelevance); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestPairedTestZeroVariance(t *testing.T) {
	t.Parallel()

	// Every difference is exactly +1.
	rows := []Row{
		{A: RowSide{Relevance: 4}, B: RowSide{Relevance: 3}},
		{A: RowSide{Relevance: 5}, B: RowSide{Relevance: 4}},
		{A: RowSide{Relevance: 3}, B: RowSide{Relevance: 2}},
	}

	res, err := PairedTest(rows, MetricRelevance)
	if err != nil {
		t.Fatalf("PairedTest: %v", err)
	}
	if !res.ZeroVariance {
		t.Fatal("expected ZeroVariance")
	}
	if res.MeanDiff != 1.0 {
		t.Fatalf("MeanDiff = %f, want exactly 1.0", res.MeanDiff)
	}
	if res.TStatistic != 0 || res.PValue != 0 || res.EffectSize != 0 {
		t.Fatalf("degenerate fields not zeroed: %+v", res)
	}
}

func TestPairedTestKnownValues(t *testing.T) {
	t.Parallel()

	// Differences: 1, 2, 0, 1, 1. Mean 1, sample std sqrt(0.5).
	rows := []Row{
		{A: RowSide{Completeness: 4}, B: RowSide{Completeness: 3}},
		{A: RowSide{Completeness: 5}, B: RowSide{Completeness: 3}},
		{A: RowSide{Completeness: 3}, B: RowSide{Completeness: 3}},
		{A: RowSide{Completeness: 4}, B: RowSide{Completeness: 3}},
		{A: RowSide{Completeness: 5}, B: RowSide{Completeness: 4}},
	}

	res, err := PairedTest(rows, MetricCompleteness)
	if err != nil {
		t.Fatalf("PairedTest: %v", err)
	}
	if res.N != 5 {
		t.Fatalf("N = %d", res.N)
	}
	if !almostEqual(res.MeanDiff, 1.0, 1e-12) {
		t.Fatalf("MeanDiff = %f", res.MeanDiff)
	}
	if !almostEqual(res.StdDiff, math.Sqrt(0.5), 1e-12) {
		t.Fatalf("StdDiff = %f", res.StdDiff)
	}
	// t = 1 / (sqrt(0.5)/sqrt(5)) = sqrt(10) ~ 3.1623
	if !almostEqual(res.TStatistic, math.Sqrt(10), 1e-9) {
		t.Fatalf("TStatistic = %f", res.TStatistic)
	}
	// Two-sided p for t=3.1623, df=4 is ~0.0341.
	if !almostEqual(res.PValue, 0.0341, 5e-4) {
		t.Fatalf("PValue = %f", res.PValue)
	}
	if !res.Significant {
		t.Fatal("expected significance at 0.05")
	}
	// Cohen's d = 1/sqrt(0.5) ~ 1.414 -> large.
	if !almostEqual(res.EffectSize, math.Sqrt2, 1e-9) {
		t.Fatalf("EffectSize = %f", res.EffectSize)
	}
	if res.Interpretation != "large" {
		t.Fatalf("Interpretation = %q", res.Interpretation)
	}
}

func TestPairedTestSymmetry(t *testing.T) {
	t.Parallel()

	rows := []Row{
		{A: RowSide{Relevance: 2}, B: RowSide{Relevance: 4}},
		{A: RowSide{Relevance: 3}, B: RowSide{Relevance: 5}},
		{A: RowSide{Relevance: 3}, B: RowSide{Relevance: 4}},
	}
	flipped := make([]Row, len(rows))
	for i, r := range rows {
		flipped[i] = Row{A: r.B, B: r.A}
	}

	fwd, err := PairedTest(rows, MetricRelevance)
	if err != nil {
		t.Fatalf("PairedTest: %v", err)
	}
	rev, err := PairedTest(flipped, MetricRelevance)
	if err != nil {
		t.Fatalf("PairedTest flipped: %v", err)
	}

	if !almostEqual(fwd.MeanDiff, -rev.MeanDiff, 1e-12) {
		t.Fatalf("mean diffs not mirrored: %f vs %f", fwd.MeanDiff, rev.MeanDiff)
	}
	if !almostEqual(fwd.PValue, rev.PValue, 1e-12) {
		t.Fatalf("p-values differ: %f vs %f", fwd.PValue, rev.PValue)
	}
}

func TestInterpretEffectSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    float64
		want string
	}{
		{0.1, "negligible"},
		{-0.1, "negligible"},
		{0.3, "small"},
		{0.6, "medium"},
		{-0.6, "medium"},
		{1.2, "large"},
	}
	for _, tt := range tests {
		if got := interpretEffectSize(tt.d); got != tt.want {
			t.Fatalf("interpretEffectSize(%f): got %q want %q", tt.d, got, tt.want)
		}
	}
}

func TestBreakdownBySkipsEmptyGroups(t *testing.T) {
	t.Parallel()

	rows := []Row{
		{Category: "local", SearchUsed: true, A: RowSide{Relevance: 4}, B: RowSide{Relevance: 3}},
		{Category: "local", SearchUsed: false, A: RowSide{Relevance: 2}, B: RowSide{Relevance: 5}},
		{Category: "informational", SearchUsed: true, A: RowSide{Relevance: 5}, B: RowSide{Relevance: 5}},
	}

	bd := BreakdownBy(rows, DimensionCategory)
	if len(bd.Groups) != 2 {
		t.Fatalf("groups = %+v", bd.Groups)
	}
	if bd.Groups[0].Value != "informational" || bd.Groups[1].Value != "local" {
		t.Fatalf("group order = %q, %q", bd.Groups[0].Value, bd.Groups[1].Value)
	}
	if bd.Groups[1].Count != 2 {
		t.Fatalf("local count = %d", bd.Groups[1].Count)
	}

	search := BreakdownBy(rows, DimensionSearch)
	if len(search.Groups) != 2 {
		t.Fatalf("search groups = %+v", search.Groups)
	}
	if search.Groups[0].Value != "no-search" || search.Groups[0].Count != 1 {
		t.Fatalf("no-search group = %+v", search.Groups[0])
	}
	if search.Groups[1].Value != "search" || search.Groups[1].Count != 2 {
		t.Fatalf("search group = %+v", search.Groups[1])
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	t.Parallel()

	rows := []Row{
		{QueryID: 1, Category: "local", Quality: "well-formed", IntentClarity: "high", A: RowSide{Relevance: 4, Completeness: 4, SourceQuality: 3}, B: RowSide{Relevance: 3, Completeness: 4, SourceQuality: 4}},
		{QueryID: 2, Category: "informational", Quality: "ambiguous", IntentClarity: "low", SearchUsed: true, A: RowSide{Relevance: 5, Completeness: 4, SourceQuality: 5}, B: RowSide{Relevance: 3, Completeness: 2, SourceQuality: 3}},
		{QueryID: 3, Category: "local", Quality: "well-formed", IntentClarity: "high", A: RowSide{Relevance: 4, Completeness: 5, SourceQuality: 4}, B: RowSide{Relevance: 4, Completeness: 3, SourceQuality: 4}},
	}

	first := Analyze(rows)
	second := Analyze(rows)

	if first.N != 3 || second.N != 3 {
		t.Fatalf("N = %d/%d", first.N, second.N)
	}
	if len(first.PairedTests) != len(second.PairedTests) {
		t.Fatal("paired test counts differ")
	}
	for i := range first.PairedTests {
		if first.PairedTests[i] != second.PairedTests[i] {
			t.Fatalf("paired test %d differs between runs", i)
		}
	}
	if len(first.Insights) == 0 {
		t.Fatal("expected insights")
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	t.Parallel()

	report := Analyze(nil)
	if report.N != 0 {
		t.Fatalf("N = %d", report.N)
	}
	if len(report.PairedTests) != 0 {
		t.Fatalf("paired tests = %+v", report.PairedTests)
	}
	if !report.InsufficientData {
		t.Fatal("expected insufficient data flag")
	}
	if len(report.Insights) != 1 {
		t.Fatalf("insights = %v", report.Insights)
	}
}

func TestStudentTPValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		t    float64
		df   float64
		want float64
		tol  float64
	}{
		{0, 10, 1.0, 1e-9},
		{2.228, 10, 0.05, 1e-3},
		{-2.228, 10, 0.05, 1e-3},
		{12.706, 1, 0.05, 1e-3},
		{4.303, 2, 0.05, 1e-3},
	}
	for _, tt := range tests {
		if got := studentTPValue(tt.t, tt.df); !almostEqual(got, tt.want, tt.tol) {
			t.Fatalf("studentTPValue(%f, %f): got %f want %f", tt.t, tt.df, got, tt.want)
		}
	}
}
