package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"assessment-backend/internal/cases"
	"assessment-backend/internal/queue"
)

// CaseProcessor runs one queued processing attempt.
type CaseProcessor interface {
	ProcessCase(ctx context.Context, caseID string) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingCaseID indicates a message missing the case id.
type ErrMissingCaseID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingCaseID) Error() string { return "missing case id" }

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	CaseID    string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process case"
	}
	return "process case: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether redelivering the message cannot succeed:
// the case is gone, has nothing to process, or was already processed.
func (e ErrProcess) Unrecoverable() bool {
	return errors.Is(e.Err, cases.ErrNotFound) ||
		errors.Is(e.Err, cases.ErrNoFiles) ||
		errors.Is(e.Err, cases.ErrInvalidTransition)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.CaseID) == "" {
		return msg, meta, ErrMissingCaseID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// HandleMessage processes an already parsed message.
func HandleMessage(ctx context.Context, processor CaseProcessor, msg queue.Message) error {
	if processor == nil {
		return errors.New("case processor not configured")
	}
	if strings.TrimSpace(msg.CaseID) == "" {
		return ErrMissingCaseID{RequestID: msg.RequestID}
	}
	ctxWithRequest := cases.WithRequestID(ctx, msg.RequestID)
	if err := processor.ProcessCase(ctxWithRequest, msg.CaseID); err != nil {
		return ErrProcess{CaseID: msg.CaseID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}
