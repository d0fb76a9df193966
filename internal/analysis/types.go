package analysis

import "errors"

// Metric names one of the three numeric score dimensions.
type Metric string

const (
	MetricRelevance     Metric = "relevance"
	MetricCompleteness  Metric = "completeness"
	MetricSourceQuality Metric = "source_quality"
)

// Metrics lists the numeric dimensions in report order.
var Metrics = []Metric{MetricRelevance, MetricCompleteness, MetricSourceQuality}

// Dimension names a grouping axis for breakdowns.
type Dimension string

const (
	DimensionCategory      Dimension = "category"
	DimensionQuality       Dimension = "quality"
	DimensionIntentClarity Dimension = "intent_clarity"
	DimensionSearch        Dimension = "search"
)

// Dimensions lists the grouping axes in report order.
var Dimensions = []Dimension{DimensionCategory, DimensionQuality, DimensionIntentClarity, DimensionSearch}

// ErrInsufficientData is returned when fewer than two qualifying records
// exist for a paired computation.
var ErrInsufficientData = errors.New("analysis: insufficient data")

// Row is one fully scored record flattened for computation.
type Row struct {
	QueryID       int
	Category      string
	Quality       string
	IntentClarity string
	SearchUsed    bool

	A RowSide
	B RowSide
}

// RowSide holds one platform's ratings for a row.
type RowSide struct {
	Relevance        float64
	Completeness     float64
	SourceQuality    float64
	IntentUnderstood bool
	FollowupNeeded   bool
}

func (s RowSide) metric(m Metric) float64 {
	switch m {
	case MetricRelevance:
		return s.Relevance
	case MetricCompleteness:
		return s.Completeness
	case MetricSourceQuality:
		return s.SourceQuality
	default:
		return 0
	}
}

// Descriptive is mean-and-count for one metric on one platform.
type Descriptive struct {
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// MetricSummary pairs both platforms' descriptive stats for one metric.
type MetricSummary struct {
	Metric    Metric      `json:"metric"`
	PlatformA Descriptive `json:"platform_a"`
	PlatformB Descriptive `json:"platform_b"`
}

// BoolRates reports the true-proportion of the boolean dimensions.
type BoolRates struct {
	IntentUnderstoodA float64 `json:"intent_understood_a"`
	IntentUnderstoodB float64 `json:"intent_understood_b"`
	NoFollowupA       float64 `json:"no_followup_a"`
	NoFollowupB       float64 `json:"no_followup_b"`
	Count             int     `json:"count"`
}

// PairedResult is one paired significance test over A minus B differences.
type PairedResult struct {
	Metric         Metric  `json:"metric"`
	N              int     `json:"n"`
	MeanDiff       float64 `json:"mean_diff"`
	StdDiff        float64 `json:"std_diff"`
	TStatistic     float64 `json:"t_statistic"`
	PValue         float64 `json:"p_value"`
	Significant    bool    `json:"significant"`
	EffectSize     float64 `json:"effect_size"`
	Interpretation string  `json:"interpretation"`
	ZeroVariance   bool    `json:"zero_variance,omitempty"`
}

// Group is one breakdown cell: descriptive stats restricted to rows whose
// dimension takes the given value.
type Group struct {
	Value   string          `json:"value"`
	Count   int             `json:"count"`
	Metrics []MetricSummary `json:"metrics"`
}

// Breakdown is a full slicing of the rows along one dimension.
type Breakdown struct {
	Dimension Dimension `json:"dimension"`
	Groups    []Group   `json:"groups"`
}

// Report is the analyzer's complete output for one snapshot of rows.
type Report struct {
	N int `json:"n"`
	// InsufficientData is set when too few rows qualify for paired tests.
	InsufficientData bool            `json:"insufficient_data"`
	Summaries        []MetricSummary `json:"summaries"`
	Rates            BoolRates       `json:"rates"`
	PairedTests      []PairedResult  `json:"paired_tests"`
	Breakdowns       []Breakdown     `json:"breakdowns"`
	Insights         []string        `json:"insights"`
}
