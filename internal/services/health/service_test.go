package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatusReportsFailures(t *testing.T) {
	s := NewService()
	s.Add("db", func(context.Context) error { return nil })
	s.Add("redis", func(context.Context) error { return errors.New("connection refused") })
	s.Add("skipped", nil)

	status, ok := s.Status(context.Background())
	if ok {
		t.Fatalf("expected overall failure")
	}
	if status["db"] != "ok" || status["redis"] != "connection refused" {
		t.Fatalf("unexpected status %v", status)
	}
	if _, present := status["skipped"]; present {
		t.Fatalf("nil checks must not be registered")
	}
}

func TestEmptyServiceIsHealthy(t *testing.T) {
	var s *Service
	if _, ok := s.Status(context.Background()); !ok {
		t.Fatalf("nil service should be healthy")
	}
	if _, ok := NewService().Status(context.Background()); !ok {
		t.Fatalf("no checks should be healthy")
	}
}
