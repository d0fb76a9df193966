package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/ab-eval/internal/analysis"
	"github.com/stellarlinkco/ab-eval/internal/dispatch"
	"github.com/stellarlinkco/ab-eval/internal/export"
	"github.com/stellarlinkco/ab-eval/internal/sampling"
	"github.com/stellarlinkco/ab-eval/internal/store"
)

type responseRequest struct {
	QueryID    int    `json:"query_id"`
	Platform   string `json:"platform"`
	Text       string `json:"text"`
	Model      string `json:"model,omitempty"`
	SearchUsed bool   `json:"search_used,omitempty"`
}

type scorePayload struct {
	Relevance        int  `json:"relevance"`
	Completeness     int  `json:"completeness"`
	SourceQuality    int  `json:"source_quality"`
	IntentUnderstood bool `json:"intent_understood"`
	FollowupNeeded   bool `json:"followup_needed"`
}

type scoreRequest struct {
	QueryID   int          `json:"query_id"`
	PlatformA scorePayload `json:"platform_a"`
	PlatformB scorePayload `json:"platform_b"`
	Notes     string       `json:"notes,omitempty"`
}

type batchRequest struct {
	DryRun bool `json:"dry_run,omitempty"`
}

type sampleRequest struct {
	TargetSize int `json:"target_size,omitempty"`
}

type queryView struct {
	ID            int    `json:"id"`
	Query         string `json:"query"`
	Category      string `json:"category"`
	Quality       string `json:"quality"`
	IntentClarity string `json:"intent_clarity"`
	Status        string `json:"status"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	stats, err := s.store.AggregateStats(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	sampleStatus, err := s.sampler.Status(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":  stats,
		"batch":  s.dispatcher.Status(),
		"sample": sampleStatus,
	})
}

func (s *Server) handleListQueries(c *gin.Context) {
	records, err := s.store.ListRecords(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	statusByID := make(map[int]store.Status, len(records))
	for _, rec := range records {
		statusByID[rec.QueryID] = rec.Status()
	}

	out := make([]queryView, 0, s.catalog.Len())
	for _, q := range s.catalog.All() {
		status, ok := statusByID[q.ID]
		if !ok {
			status = store.StatusEmpty
		}
		out = append(out, queryView{
			ID:            q.ID,
			Query:         q.Text,
			Category:      q.Category,
			Quality:       q.Quality,
			IntentClarity: q.IntentClarity,
			Status:        string(status),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetQuery(c *gin.Context) {
	id, err := strconv.Atoi(strings.TrimSpace(c.Param("id")))
	if err != nil {
		respondError(c, http.StatusBadRequest, errors.New("invalid query id"))
		return
	}

	q, ok := s.catalog.Get(id)
	if !ok {
		respondError(c, http.StatusNotFound, store.ErrUnknownQuery)
		return
	}

	rec, err := s.store.GetRecord(c.Request.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// No activity yet; an empty record is still a valid view.
		rec = &store.EvaluationRecord{QueryID: id}
	case err != nil:
		s.respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":      q,
		"status":     string(rec.Status()),
		"response_a": rec.ResponseA,
		"response_b": rec.ResponseB,
		"score":      rec.Score,
	})
}

func (s *Server) handleStartBatch(c *gin.Context) {
	var req batchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
	}

	if req.DryRun {
		pending, batch, err := s.dispatcher.Estimate(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"dry_run":    true,
			"pending":    pending,
			"batch_size": batch,
		})
		return
	}

	// The run outlives this request, so it does not inherit its context.
	if err := s.dispatcher.Start(context.Background()); err != nil {
		s.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, s.dispatcher.Status())
}

func (s *Server) handleBatchStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.dispatcher.Status())
}

func (s *Server) handleAcknowledgeBatch(c *gin.Context) {
	final, err := s.dispatcher.Acknowledge()
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, final)
}

func (s *Server) handlePendingManual(c *gin.Context) {
	records, err := s.store.ListRecords(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	byID := make(map[int]*store.EvaluationRecord, len(records))
	for _, rec := range records {
		byID[rec.QueryID] = rec
	}

	out := make([]gin.H, 0)
	for _, q := range s.catalog.All() {
		rec := byID[q.ID]
		if rec == nil || rec.ResponseA == nil || rec.ResponseB != nil {
			continue
		}
		out = append(out, gin.H{
			"id":         q.ID,
			"query":      q.Text,
			"category":   q.Category,
			"response_a": rec.ResponseA,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handlePendingScores(c *gin.Context) {
	records, err := s.store.ListRecords(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	sample, err := s.store.GetSampleSet(c.Request.Context())
	if err != nil && !errors.Is(err, store.ErrNoSample) {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	byID := make(map[int]*store.EvaluationRecord, len(records))
	for _, rec := range records {
		byID[rec.QueryID] = rec
	}

	out := make([]gin.H, 0)
	for _, q := range s.catalog.All() {
		if sample != nil && !sample.Contains(q.ID) {
			continue
		}
		rec := byID[q.ID]
		if rec == nil || rec.Status() != store.StatusBothResponses {
			continue
		}
		out = append(out, gin.H{
			"id":         q.ID,
			"query":      q.Text,
			"category":   q.Category,
			"quality":    q.Quality,
			"response_a": rec.ResponseA,
			"response_b": rec.ResponseB,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"sample_exists": sample != nil,
		"pending":       out,
	})
}

func (s *Server) handleSubmitResponse(c *gin.Context) {
	var req responseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing response text"))
		return
	}

	resp := &store.Response{
		Text:       req.Text,
		Model:      strings.TrimSpace(req.Model),
		SearchUsed: req.SearchUsed,
	}
	platform := store.Platform(strings.ToUpper(strings.TrimSpace(req.Platform)))
	if err := s.store.PutResponse(c.Request.Context(), req.QueryID, platform, resp); err != nil {
		s.respondDomainError(c, err)
		return
	}

	rec, err := s.store.GetRecord(c.Request.Context(), req.QueryID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"query_id": req.QueryID,
		"status":   string(rec.Status()),
	})
}

func (s *Server) handleSubmitScore(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	score := &store.Score{
		PlatformA: store.PlatformScore{
			Relevance:        req.PlatformA.Relevance,
			Completeness:     req.PlatformA.Completeness,
			SourceQuality:    req.PlatformA.SourceQuality,
			IntentUnderstood: req.PlatformA.IntentUnderstood,
			FollowupNeeded:   req.PlatformA.FollowupNeeded,
		},
		PlatformB: store.PlatformScore{
			Relevance:        req.PlatformB.Relevance,
			Completeness:     req.PlatformB.Completeness,
			SourceQuality:    req.PlatformB.SourceQuality,
			IntentUnderstood: req.PlatformB.IntentUnderstood,
			FollowupNeeded:   req.PlatformB.FollowupNeeded,
		},
		Notes: req.Notes,
	}
	if err := s.store.PutScore(c.Request.Context(), req.QueryID, score); err != nil {
		s.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"query_id": req.QueryID,
		"status":   string(store.StatusScored),
	})
}

func (s *Server) handleGenerateSample(c *gin.Context) {
	var req sampleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
	}

	set, err := s.sampler.Generate(c.Request.Context(), req.TargetSize)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, set)
}

func (s *Server) handleSampleStatus(c *gin.Context) {
	status, err := s.sampler.Status(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleStatistics(c *gin.Context) {
	records, err := s.store.ListRecords(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	sample, err := s.store.GetSampleSet(c.Request.Context())
	if err != nil && !errors.Is(err, store.ErrNoSample) {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	rows := analysis.BuildRows(s.catalog, records, sample)
	c.JSON(http.StatusOK, analysis.Analyze(rows))
}

func (s *Server) handleExport(c *gin.Context) {
	report, err := export.Build(c.Request.Context(), s.catalog, s.store)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// respondDomainError maps domain sentinels onto HTTP statuses.
func (s *Server) respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrUnknownQuery), errors.Is(err, store.ErrNotFound):
		respondError(c, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInvalidPlatform), errors.Is(err, store.ErrInvalidScore):
		respondError(c, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrIncompleteRecord),
		errors.Is(err, store.ErrSampleExists),
		errors.Is(err, dispatch.ErrBatchRunning),
		errors.Is(err, dispatch.ErrNotCompleted),
		errors.Is(err, dispatch.ErrNothingPending),
		errors.Is(err, sampling.ErrNotReady):
		respondError(c, http.StatusConflict, err)
	default:
		respondError(c, http.StatusInternalServerError, err)
	}
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
