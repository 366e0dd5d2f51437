package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	caseProcessingStartedTotal atomic.Uint64
	integrityFaultsTotal       atomic.Uint64
	documentsPurgedTotal       atomic.Uint64
	lookupTablesRejectedTotal  atomic.Uint64

	caseJobsReceivedTotal      atomic.Uint64
	caseJobsCompletedTotal     atomic.Uint64
	caseJobsFailedTotal        atomic.Uint64
	caseJobsUnrecoverableTotal atomic.Uint64

	outcomes = newLabeledCounter()

	caseProcessingDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncProcessingStarted increments the started counter.
func IncProcessingStarted() {
	caseProcessingStartedTotal.Add(1)
}

// IncProcessingOutcome counts a finished run by its terminal status.
func IncProcessingOutcome(status string) {
	outcomes.Inc(status)
}

// IncIntegrityFault counts a persisted report that did not read back intact.
func IncIntegrityFault() {
	integrityFaultsTotal.Add(1)
}

func AddDocumentsPurged(n int) {
	if n > 0 {
		documentsPurgedTotal.Add(uint64(n))
	}
}

func IncLookupRejected() {
	lookupTablesRejectedTotal.Add(1)
}

// IncJobsReceived counts queue messages picked up by the worker.
func IncJobsReceived() {
	caseJobsReceivedTotal.Add(1)
}

func IncJobsCompleted() {
	caseJobsCompletedTotal.Add(1)
}

func IncJobsFailed() {
	caseJobsFailedTotal.Add(1)
}

// IncJobsDeletedUnrecoverable counts messages dropped without a retry.
func IncJobsDeletedUnrecoverable() {
	caseJobsUnrecoverableTotal.Add(1)
}

// ObserveProcessingDurationMs records a processing run duration in milliseconds.
func ObserveProcessingDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	caseProcessingDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "case_processing_started_total", "Total case processing runs started", caseProcessingStartedTotal.Load())
	writeLabeledCounter(&buf, "case_processing_outcome_total", "Case processing runs by terminal status", "status", outcomes.Snapshot())
	writeCounter(&buf, "case_integrity_faults_total", "Persisted reports that failed read-back verification", integrityFaultsTotal.Load())
	writeCounter(&buf, "case_documents_purged_total", "Source documents removed after completion", documentsPurgedTotal.Load())
	writeCounter(&buf, "lookup_tables_rejected_total", "Lookup tables rejected by vocabulary validation", lookupTablesRejectedTotal.Load())
	writeCounter(&buf, "case_jobs_received_total", "Queue messages received by the worker", caseJobsReceivedTotal.Load())
	writeCounter(&buf, "case_jobs_completed_total", "Queue messages processed and deleted", caseJobsCompletedTotal.Load())
	writeCounter(&buf, "case_jobs_failed_total", "Queue messages left for redelivery after a failure", caseJobsFailedTotal.Load())
	writeCounter(&buf, "case_jobs_deleted_unrecoverable_total", "Queue messages deleted without processing", caseJobsUnrecoverableTotal.Load())
	writeHistogram(&buf, "case_processing_duration_ms", "Case processing duration in milliseconds", caseProcessingDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: map[string]uint64{}}
}

func (c *labeledCounter) Inc(label string) {
	c.mu.Lock()
	c.values[label]++
	c.mu.Unlock()
}

func (c *labeledCounter) Snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe records value in the first bucket whose bound holds it; rendering accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMillis returns the elapsed milliseconds since start.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
