package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/stellarlinkco/ab-eval/internal/catalog"
	"github.com/stellarlinkco/ab-eval/internal/store"
)

// SignificanceLevel is the two-sided alpha for paired tests.
const SignificanceLevel = 0.05

// BuildRows flattens fully scored records into analysis rows. When a sample
// exists, only sampled queries qualify; otherwise every scored record does.
// Row order follows the catalog.
func BuildRows(cat *catalog.Catalog, records []*store.EvaluationRecord, sample *store.SampleSet) []Row {
	if cat == nil {
		return nil
	}

	byID := make(map[int]*store.EvaluationRecord, len(records))
	for _, rec := range records {
		if rec != nil {
			byID[rec.QueryID] = rec
		}
	}

	var out []Row
	for _, q := range cat.All() {
		rec := byID[q.ID]
		if rec == nil || rec.Status() != store.StatusScored {
			continue
		}
		if sample != nil && !sample.Contains(q.ID) {
			continue
		}
		out = append(out, Row{
			QueryID:       q.ID,
			Category:      q.Category,
			Quality:       q.Quality,
			IntentClarity: q.IntentClarity,
			SearchUsed:    rec.ResponseA.SearchUsed,
			A:             toRowSide(rec.Score.PlatformA),
			B:             toRowSide(rec.Score.PlatformB),
		})
	}
	return out
}

func toRowSide(ps store.PlatformScore) RowSide {
	return RowSide{
		Relevance:        float64(ps.Relevance),
		Completeness:     float64(ps.Completeness),
		SourceQuality:    float64(ps.SourceQuality),
		IntentUnderstood: ps.IntentUnderstood,
		FollowupNeeded:   ps.FollowupNeeded,
	}
}

// DescriptiveFor computes mean and count per platform for one metric.
func DescriptiveFor(rows []Row, metric Metric) MetricSummary {
	out := MetricSummary{Metric: metric}
	if len(rows) == 0 {
		return out
	}

	var sumA, sumB float64
	for _, r := range rows {
		sumA += r.A.metric(metric)
		sumB += r.B.metric(metric)
	}
	n := len(rows)
	out.PlatformA = Descriptive{Mean: sumA / float64(n), Count: n}
	out.PlatformB = Descriptive{Mean: sumB / float64(n), Count: n}
	return out
}

// Rates computes boolean true-proportions per platform. "No follow-up" is
// the inverted follow-up flag, so higher is better on both platforms.
func Rates(rows []Row) BoolRates {
	out := BoolRates{Count: len(rows)}
	if len(rows) == 0 {
		return out
	}

	var iuA, iuB, nfA, nfB int
	for _, r := range rows {
		if r.A.IntentUnderstood {
			iuA++
		}
		if r.B.IntentUnderstood {
			iuB++
		}
		if !r.A.FollowupNeeded {
			nfA++
		}
		if !r.B.FollowupNeeded {
			nfB++
		}
	}
	n := float64(len(rows))
	out.IntentUnderstoodA = float64(iuA) / n
	out.IntentUnderstoodB = float64(iuB) / n
	out.NoFollowupA = float64(nfA) / n
	out.NoFollowupB = float64(nfB) / n
	return out
}

// PairedTest runs a paired t-test on A minus B differences for one metric.
// Fewer than two rows yields ErrInsufficientData. When every difference is
// identical the test degenerates; the mean difference is still reported
// exactly, with the t statistic, p-value, and effect size zeroed and
// ZeroVariance set.
func PairedTest(rows []Row, metric Metric) (*PairedResult, error) {
	n := len(rows)
	if n < 2 {
		return nil, fmt.Errorf("analysis: paired test %s with %d rows: %w", metric, n, ErrInsufficientData)
	}

	diffs := make([]float64, n)
	var sum float64
	for i, r := range rows {
		diffs[i] = r.A.metric(metric) - r.B.metric(metric)
		sum += diffs[i]
	}
	mean := sum / float64(n)

	var ss float64
	for _, d := range diffs {
		ss += (d - mean) * (d - mean)
	}
	variance := ss / float64(n-1)
	std := math.Sqrt(variance)

	out := &PairedResult{
		Metric:   metric,
		N:        n,
		MeanDiff: mean,
		StdDiff:  std,
	}

	if std == 0 {
		out.ZeroVariance = true
		out.Interpretation = "no variance"
		return out, nil
	}

	out.TStatistic = mean / (std / math.Sqrt(float64(n)))
	out.PValue = studentTPValue(out.TStatistic, float64(n-1))
	out.Significant = out.PValue < SignificanceLevel
	out.EffectSize = mean / std
	out.Interpretation = interpretEffectSize(out.EffectSize)
	return out, nil
}

func interpretEffectSize(d float64) string {
	abs := math.Abs(d)
	switch {
	case abs < 0.2:
		return "negligible"
	case abs < 0.5:
		return "small"
	case abs < 0.8:
		return "medium"
	default:
		return "large"
	}
}

// BreakdownBy slices the rows along one dimension and computes descriptive
// stats per group. Groups with zero rows are skipped. Group order is sorted
// by value for stable output.
func BreakdownBy(rows []Row, dim Dimension) Breakdown {
	buckets := make(map[string][]Row)
	for _, r := range rows {
		var key string
		switch dim {
		case DimensionCategory:
			key = r.Category
		case DimensionQuality:
			key = r.Quality
		case DimensionIntentClarity:
			key = r.IntentClarity
		case DimensionSearch:
			if r.SearchUsed {
				key = "search"
			} else {
				key = "no-search"
			}
		default:
			continue
		}
		buckets[key] = append(buckets[key], r)
	}

	values := make([]string, 0, len(buckets))
	for v := range buckets {
		values = append(values, v)
	}
	sort.Strings(values)

	out := Breakdown{Dimension: dim}
	for _, v := range values {
		group := Group{Value: v, Count: len(buckets[v])}
		for _, m := range Metrics {
			group.Metrics = append(group.Metrics, DescriptiveFor(buckets[v], m))
		}
		out.Groups = append(out.Groups, group)
	}
	return out
}

// Analyze produces the full report for one snapshot of rows. Paired tests
// that lack data are omitted rather than failing the whole report.
func Analyze(rows []Row) *Report {
	report := &Report{N: len(rows)}

	for _, m := range Metrics {
		report.Summaries = append(report.Summaries, DescriptiveFor(rows, m))
	}
	report.Rates = Rates(rows)

	for _, m := range Metrics {
		res, err := PairedTest(rows, m)
		if err != nil {
			report.InsufficientData = true
			continue
		}
		report.PairedTests = append(report.PairedTests, *res)
	}

	for _, d := range Dimensions {
		bd := BreakdownBy(rows, d)
		if len(bd.Groups) > 0 {
			report.Breakdowns = append(report.Breakdowns, bd)
		}
	}

	report.Insights = buildInsights(report)
	return report
}

func buildInsights(report *Report) []string {
	if report.N == 0 {
		return []string{"no fully scored records yet"}
	}

	var out []string
	for _, test := range report.PairedTests {
		winner := "platform A"
		if test.MeanDiff < 0 {
			winner = "platform B"
		}
		switch {
		case test.ZeroVariance:
			out = append(out, fmt.Sprintf("%s: constant difference of %+.2f across all %d queries", test.Metric, test.MeanDiff, test.N))
		case test.Significant:
			out = append(out, fmt.Sprintf("%s: %s leads by %.2f points (p=%.4f, %s effect)", test.Metric, winner, math.Abs(test.MeanDiff), test.PValue, test.Interpretation))
		case test.MeanDiff == 0:
			out = append(out, fmt.Sprintf("%s: platforms are tied", test.Metric))
		default:
			out = append(out, fmt.Sprintf("%s: %s ahead by %.2f points but not significant (p=%.4f)", test.Metric, winner, math.Abs(test.MeanDiff), test.PValue))
		}
	}
	if len(report.PairedTests) == 0 {
		out = append(out, fmt.Sprintf("only %d scored record(s); at least 2 needed for significance testing", report.N))
	}
	return out
}
