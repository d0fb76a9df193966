package sampling

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/stellarlinkco/ab-eval/internal/catalog"
	"github.com/stellarlinkco/ab-eval/internal/config"
	"github.com/stellarlinkco/ab-eval/internal/store"
)

// ErrNotReady rejects sample generation before enough responses exist for
// the proportions to be meaningful.
var ErrNotReady = errors.New("sampling: not enough responses collected yet")

// Readiness reports whether the catalog has collected enough fully
// answered queries for sample generation.
type Readiness struct {
	BothResponses int  `json:"both_responses"`
	Required      int  `json:"required"`
	Ready         bool `json:"ready"`
}

// SampleStatus describes the persisted sample, if any.
type SampleStatus struct {
	Exists    bool             `json:"exists"`
	Sample    *store.SampleSet `json:"sample,omitempty"`
	Readiness Readiness        `json:"readiness"`
}

// Sampler selects a fixed-size scoring subset that preserves the catalog's
// (category, quality) stratum proportions.
type Sampler struct {
	cat   *catalog.Catalog
	store store.Store
	cfg   config.SamplingConfig
}

func New(cat *catalog.Catalog, st store.Store, cfg config.SamplingConfig) (*Sampler, error) {
	if cat == nil {
		return nil, errors.New("sampling: nil catalog")
	}
	if st == nil {
		return nil, errors.New("sampling: nil store")
	}
	if cfg.TargetSize <= 0 {
		cfg.TargetSize = config.DefaultSampleSize
	}
	if cfg.MinResponses <= 0 {
		cfg.MinResponses = config.DefaultMinResponses
	}
	return &Sampler{cat: cat, store: st, cfg: cfg}, nil
}

type stratum struct {
	category string
	quality  string
	ids      []int
}

// strata partitions the catalog by (category, quality), ordered by each
// stratum's first appearance in the catalog.
func (s *Sampler) strata() []*stratum {
	index := make(map[[2]string]*stratum)
	var out []*stratum
	for _, q := range s.cat.All() {
		key := [2]string{q.Category, q.Quality}
		st, ok := index[key]
		if !ok {
			st = &stratum{category: q.Category, quality: q.Quality}
			index[key] = st
			out = append(out, st)
		}
		st.ids = append(st.ids, q.ID)
	}
	return out
}

// Allocate computes per-stratum counts for a target sample size using
// largest-remainder rounding. Counts always sum to the effective target and
// never exceed a stratum's size; a stratum smaller than its proportional
// share is taken whole and the shortfall redistributed across the rest.
func (s *Sampler) Allocate(target int) ([]store.StratumAllocation, error) {
	if s == nil {
		return nil, errors.New("sampling: nil sampler")
	}
	total := s.cat.Len()
	if total == 0 {
		return nil, errors.New("sampling: empty catalog")
	}
	if target <= 0 {
		return nil, fmt.Errorf("sampling: target size %d must be positive", target)
	}
	if target > total {
		target = total
	}

	strata := s.strata()
	counts := make([]int, len(strata))
	capped := make([]bool, len(strata))
	remaining := target

	for remaining > 0 {
		poolSize := 0
		for i, st := range strata {
			if !capped[i] {
				poolSize += len(st.ids)
			}
		}
		if poolSize == 0 {
			break
		}

		quota := largestRemainder(strata, capped, poolSize, remaining)

		overflowed := false
		for i, st := range strata {
			if capped[i] {
				continue
			}
			if quota[i] > len(st.ids) {
				counts[i] = len(st.ids)
				capped[i] = true
				remaining -= len(st.ids)
				overflowed = true
			}
		}
		if overflowed {
			continue
		}

		for i := range strata {
			if !capped[i] {
				counts[i] = quota[i]
			}
		}
		remaining = 0
	}

	out := make([]store.StratumAllocation, 0, len(strata))
	for i, st := range strata {
		out = append(out, store.StratumAllocation{
			Category:  st.category,
			Quality:   st.quality,
			Size:      len(st.ids),
			Allocated: counts[i],
		})
	}
	return out, nil
}

// largestRemainder apportions n across the uncapped strata proportionally to
// their sizes. Floors first, then hands leftover units to the largest
// fractional remainders, ties broken by stratum order.
func largestRemainder(strata []*stratum, capped []bool, poolSize int, n int) []int {
	quota := make([]int, len(strata))
	type frac struct {
		index     int
		remainder float64
	}
	var fracs []frac

	assigned := 0
	for i, st := range strata {
		if capped[i] {
			continue
		}
		exact := float64(len(st.ids)) / float64(poolSize) * float64(n)
		quota[i] = int(exact)
		assigned += quota[i]
		fracs = append(fracs, frac{index: i, remainder: exact - float64(quota[i])})
	}

	sort.SliceStable(fracs, func(i, j int) bool {
		return fracs[i].remainder > fracs[j].remainder
	})
	for k := 0; k < n-assigned && k < len(fracs); k++ {
		quota[fracs[k].index]++
	}
	return quota
}

// Readiness counts fully answered queries against the configured floor.
func (s *Sampler) Readiness(ctx context.Context) (Readiness, error) {
	if s == nil {
		return Readiness{}, errors.New("sampling: nil sampler")
	}
	if ctx == nil {
		return Readiness{}, errors.New("sampling: nil context")
	}

	stats, err := s.store.AggregateStats(ctx)
	if err != nil {
		return Readiness{}, fmt.Errorf("sampling: aggregate stats: %w", err)
	}

	required := s.cfg.MinResponses
	if required > s.cat.Len() {
		required = s.cat.Len()
	}
	return Readiness{
		BothResponses: stats.BothResponses,
		Required:      required,
		Ready:         stats.BothResponses >= required,
	}, nil
}

// Generate builds and persists the sample. Fails with store.ErrSampleExists
// when a sample was already generated, and ErrNotReady before the response
// floor is met. Selection within each stratum is in catalog order, so the
// same catalog always reproduces the same sample.
func (s *Sampler) Generate(ctx context.Context, target int) (*store.SampleSet, error) {
	if s == nil {
		return nil, errors.New("sampling: nil sampler")
	}
	if ctx == nil {
		return nil, errors.New("sampling: nil context")
	}
	if target <= 0 {
		target = s.cfg.TargetSize
	}

	if existing, err := s.store.GetSampleSet(ctx); err == nil && existing != nil {
		return nil, store.ErrSampleExists
	} else if err != nil && !errors.Is(err, store.ErrNoSample) {
		return nil, fmt.Errorf("sampling: check existing sample: %w", err)
	}

	ready, err := s.Readiness(ctx)
	if err != nil {
		return nil, err
	}
	if !ready.Ready {
		return nil, fmt.Errorf("sampling: %d of %d responses collected: %w", ready.BothResponses, ready.Required, ErrNotReady)
	}

	allocations, err := s.Allocate(target)
	if err != nil {
		return nil, err
	}

	selected := make(map[int]bool)
	strata := s.strata()
	for i, st := range strata {
		for _, id := range st.ids[:allocations[i].Allocated] {
			selected[id] = true
		}
	}

	set := &store.SampleSet{
		TargetSize: target,
		Strata:     allocations,
	}
	for _, q := range s.cat.All() {
		if selected[q.ID] {
			set.QueryIDs = append(set.QueryIDs, q.ID)
		}
	}

	if err := s.store.SaveSampleSet(ctx, set); err != nil {
		return nil, err
	}
	return s.store.GetSampleSet(ctx)
}

// Status reports the stored sample and current readiness.
func (s *Sampler) Status(ctx context.Context) (*SampleStatus, error) {
	if s == nil {
		return nil, errors.New("sampling: nil sampler")
	}
	if ctx == nil {
		return nil, errors.New("sampling: nil context")
	}

	ready, err := s.Readiness(ctx)
	if err != nil {
		return nil, err
	}

	out := &SampleStatus{Readiness: ready}
	set, err := s.store.GetSampleSet(ctx)
	switch {
	case err == nil:
		out.Exists = true
		out.Sample = set
	case errors.Is(err, store.ErrNoSample):
	default:
		return nil, fmt.Errorf("sampling: get sample: %w", err)
	}
	return out, nil
}
