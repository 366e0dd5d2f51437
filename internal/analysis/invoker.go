package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"assessment-backend/internal/llm"
	"assessment-backend/internal/shared/telemetry"
)

const defaultRetryDelay = 300 * time.Millisecond

// Invoker calls the analysis provider and always produces a Result.
type Invoker struct {
	client     llm.Client
	retryDelay time.Duration
	now        func() time.Time
}

// NewInvoker wraps client. A nil client yields failed results.
func NewInvoker(client llm.Client) *Invoker {
	return &Invoker{client: client, retryDelay: defaultRetryDelay, now: time.Now}
}

// Invoke sends req and validates the reply. Transport errors, service errors
// and panics inside the provider become a failed Result.
func (i *Invoker) Invoke(ctx context.Context, req llm.Request) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("analysis.invoke_panic", map[string]any{"panic": fmt.Sprint(r)})
			result = Failed(fmt.Sprintf("analysis provider panic: %v", r), i.clock())
		}
	}()
	if i == nil || i.client == nil {
		return Failed(llm.ErrNotImplemented.Error(), time.Now())
	}
	raw, err := i.analyzeWithRetry(ctx, req)
	if err != nil {
		telemetry.Error("analysis.invoke_failed", map[string]any{
			"module_type":  req.ModuleType,
			"error_code":   classifyFailure(err),
			"error":        SanitizeMessage(err.Error()),
			"document_cnt": len(req.Documents),
		})
		return Failed(err.Error(), i.clock())
	}
	res := Validate(raw)
	res.AnalysisDate = i.clock().UTC()
	return res
}

func (i *Invoker) clock() time.Time {
	if i == nil || i.now == nil {
		return time.Now()
	}
	return i.now()
}

func (i *Invoker) analyzeWithRetry(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	raw, err := i.client.Analyze(ctx, req)
	if err == nil || !shouldRetry(err) {
		return raw, err
	}

	telemetry.Info("analysis.retry", map[string]any{"attempt": 1, "error": SanitizeMessage(err.Error())})
	select {
	case <-time.After(i.retryDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return i.client.Analyze(ctx, req)
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, llm.ErrNotImplemented) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "timeout") {
		return true
	}
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe")
}

// Failure codes attached to invoke_failed log lines.
const (
	FailureTimeout     = "ANALYSIS_TIMEOUT"
	FailureUnavailable = "ANALYSIS_UNAVAILABLE"
	FailureRejected    = "ANALYSIS_REJECTED"
	FailureUnknown     = "ANALYSIS_FAILED"
)

func classifyFailure(err error) string {
	if err == nil {
		return FailureUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	if errors.Is(err, llm.ErrNotImplemented) {
		return FailureUnavailable
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return FailureTimeout
	case strings.Contains(msg, "http status 4"):
		return FailureRejected
	case strings.Contains(msg, "http status 5"), strings.Contains(msg, "connection"):
		return FailureUnavailable
	default:
		return FailureUnknown
	}
}
