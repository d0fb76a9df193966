package api

import (
	"errors"
	"os"
	"strings"
)

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	api := s.router.Group("/api")
	apiKey := strings.TrimSpace(os.Getenv("AB_EVAL_API_KEY"))
	if apiKey != "" {
		api.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("AB_EVAL_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set AB_EVAL_API_KEY or set AB_EVAL_DISABLE_AUTH=true")
	}

	api.GET("/health", s.handleHealth)
	api.GET("/status", s.handleStatus)

	api.GET("/queries", s.handleListQueries)
	api.GET("/queries/:id", s.handleGetQuery)

	api.POST("/batch", s.handleStartBatch)
	api.GET("/batch", s.handleBatchStatus)
	api.POST("/batch/acknowledge", s.handleAcknowledgeBatch)

	api.GET("/pending/manual", s.handlePendingManual)
	api.GET("/pending/scores", s.handlePendingScores)

	api.POST("/responses", s.handleSubmitResponse)
	api.POST("/scores", s.handleSubmitScore)

	api.POST("/sample", s.handleGenerateSample)
	api.GET("/sample", s.handleSampleStatus)

	api.GET("/statistics", s.handleStatistics)
	api.GET("/export", s.handleExport)

	return nil
}
