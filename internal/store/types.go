package store

import (
	"context"
	"time"
)

// Platform identifies which answer service produced a response.
type Platform string

const (
	PlatformA Platform = "A"
	PlatformB Platform = "B"
)

// Valid reports whether the platform is one of the two known values.
func (p Platform) Valid() bool {
	return p == PlatformA || p == PlatformB
}

// Status is the derived lifecycle state of an evaluation record. It is
// computed from which optional fields are present, never persisted.
type Status string

const (
	StatusEmpty         Status = "empty"
	StatusPartialA      Status = "partial_a"
	StatusPartialB      Status = "partial_b"
	StatusBothResponses Status = "both_responses"
	StatusScored        Status = "scored"
)

// Response holds one platform's answer to one query. Immutable after
// creation; re-saving replaces it wholesale.
type Response struct {
	Text             string    `json:"text"`
	Model            string    `json:"model,omitempty"`
	SearchUsed       bool      `json:"search_used"`
	CitationCount    int       `json:"citation_count,omitempty"`
	PromptTokens     int       `json:"prompt_tokens,omitempty"`
	CompletionTokens int       `json:"completion_tokens,omitempty"`
	LatencyMs        int64     `json:"latency_ms,omitempty"`
	FinishReason     string    `json:"finish_reason,omitempty"`
	CapturedAt       time.Time `json:"captured_at"`
}

// PlatformScore is one platform's half of a score record. Numeric ratings
// are integers in [1,5].
type PlatformScore struct {
	Relevance        int  `json:"relevance"`
	Completeness     int  `json:"completeness"`
	SourceQuality    int  `json:"source_quality"`
	IntentUnderstood bool `json:"intent_understood"`
	FollowupNeeded   bool `json:"followup_needed"`
}

// Score is the human evaluation of both platforms for one query.
// Overwritten wholesale on resubmission, never merged field by field.
type Score struct {
	PlatformA   PlatformScore `json:"platform_a"`
	PlatformB   PlatformScore `json:"platform_b"`
	Notes       string        `json:"notes,omitempty"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

// EvaluationRecord is the per-query aggregate of responses and score.
type EvaluationRecord struct {
	QueryID   int       `json:"query_id"`
	ResponseA *Response `json:"response_a,omitempty"`
	ResponseB *Response `json:"response_b,omitempty"`
	Score     *Score    `json:"score,omitempty"`
}

// Status derives the lifecycle state from which fields are present.
func (r *EvaluationRecord) Status() Status {
	if r == nil {
		return StatusEmpty
	}
	switch {
	case r.Score != nil:
		return StatusScored
	case r.ResponseA != nil && r.ResponseB != nil:
		return StatusBothResponses
	case r.ResponseA != nil:
		return StatusPartialA
	case r.ResponseB != nil:
		return StatusPartialB
	default:
		return StatusEmpty
	}
}

// AggregateStats counts records per derived state across the catalog.
type AggregateStats struct {
	TotalQueries    int     `json:"total_queries"`
	ResponsesA      int     `json:"responses_a"`
	ResponsesB      int     `json:"responses_b"`
	BothResponses   int     `json:"both_responses"`
	Scored          int     `json:"scored"`
	FullyComplete   int     `json:"fully_complete"`
	PercentComplete float64 `json:"percent_complete"`
}

// StratumAllocation records how many queries a (category, quality) stratum
// contributed to the sample.
type StratumAllocation struct {
	Category  string `json:"category"`
	Quality   string `json:"quality"`
	Size      int    `json:"size"`
	Allocated int    `json:"allocated"`
}

// SampleSet is the persisted, generated-once scoring universe.
type SampleSet struct {
	GeneratedAt time.Time           `json:"generated_at"`
	TargetSize  int                 `json:"target_size"`
	QueryIDs    []int               `json:"query_ids"`
	Strata      []StratumAllocation `json:"strata"`
}

// Contains reports sample membership.
func (s *SampleSet) Contains(id int) bool {
	if s == nil {
		return false
	}
	for _, v := range s.QueryIDs {
		if v == id {
			return true
		}
	}
	return false
}

// RecordReader defines read access to evaluation records.
type RecordReader interface {
	GetRecord(ctx context.Context, id int) (*EvaluationRecord, error)
	ListRecords(ctx context.Context) ([]*EvaluationRecord, error)
	AggregateStats(ctx context.Context) (*AggregateStats, error)
}

// RecordWriter defines the only mutation paths for evaluation records.
type RecordWriter interface {
	PutResponse(ctx context.Context, id int, platform Platform, resp *Response) error
	PutScore(ctx context.Context, id int, score *Score) error
}

// SampleStore persists the generated-once scoring sample.
type SampleStore interface {
	SaveSampleSet(ctx context.Context, s *SampleSet) error
	GetSampleSet(ctx context.Context) (*SampleSet, error)
}

// Store is the single source of truth for all per-query study data.
type Store interface {
	RecordReader
	RecordWriter
	SampleStore
	Close() error
}
