package llm

import (
	"context"
	"errors"
	"net"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

// Failure classifies a completion error for the dispatcher's retry policy.
type Failure int

const (
	// FailureTransient failures may succeed on retry.
	FailureTransient Failure = iota
	// FailureFatal failures will fail identically on every retry.
	FailureFatal
)

// ClassifyError buckets a provider error. Rate limits, server errors, and
// network timeouts are transient; auth and request-shape errors are fatal.
// Unknown errors default to transient so a flaky failure is not given up on.
func ClassifyError(err error) Failure {
	if err == nil {
		return FailureTransient
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return FailureFatal
	}

	var oaiAPIErr *openai.APIError
	if errors.As(err, &oaiAPIErr) {
		return classifyStatus(oaiAPIErr.HTTPStatusCode)
	}

	var oaiReqErr *openai.RequestError
	if errors.As(err, &oaiReqErr) {
		return classifyStatus(oaiReqErr.HTTPStatusCode)
	}

	var sdkErr *anthropic.Error
	if errors.As(err, &sdkErr) {
		return classifyStatus(sdkErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureTransient
	}

	return FailureTransient
}

func classifyStatus(status int) Failure {
	switch {
	case status == 429:
		return FailureTransient
	case status >= 500 && status <= 599:
		return FailureTransient
	case status >= 400 && status <= 499:
		return FailureFatal
	default:
		return FailureTransient
	}
}
