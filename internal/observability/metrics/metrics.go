package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// Recorder aggregates in-memory metrics counters and gauges for HTTP requests,
// upload outcomes, and transcode job results. It coordinates concurrent
// writers via a RWMutex while exposing a thread-safe gauge for in-flight
// transcode tracking.
type Recorder struct {
	mu              sync.RWMutex
	requestCount    map[requestLabel]uint64
	requestDuration map[requestLabel]time.Duration
	uploadOutcomes  map[string]uint64
	transcodeJobs   map[string]uint64
	activeTranscode atomic.Int64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers can
// immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		uploadOutcomes:  make(map[string]uint64),
		transcodeJobs:   make(map[string]uint64),
	}
}

// Default returns the singleton Recorder instance shared across helper
// functions for packages that do not require custom instrumentation pipelines.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest normalizes the request label set and accumulates totals for
// request count and cumulative duration by HTTP method, normalized path, and
// status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// ObserveUpload records the terminal outcome of an upload pipeline run keyed
// by asset status (e.g. "ready", "raw", "failed").
func (r *Recorder) ObserveUpload(outcome string) {
	name := normalizeName(outcome)
	r.mu.Lock()
	r.uploadOutcomes[name]++
	r.mu.Unlock()
}

// ObserveTranscodeJob records a completed rendition job keyed by its terminal
// status (e.g. "succeeded", "failed", "timed_out").
func (r *Recorder) ObserveTranscodeJob(status string) {
	name := normalizeName(status)
	r.mu.Lock()
	r.transcodeJobs[name]++
	r.mu.Unlock()
}

// TranscodeStarted increments the in-flight transcode gauge.
func (r *Recorder) TranscodeStarted() {
	r.activeTranscode.Add(1)
}

// TranscodeFinished decrements the in-flight transcode gauge, guarding against
// negative counts when concurrent updates race.
func (r *Recorder) TranscodeFinished() {
	r.decrementGauge(&r.activeTranscode)
}

// Reset clears all counters and gauges. Intended for tests that assert on
// exposition output.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.uploadOutcomes = make(map[string]uint64)
	r.transcodeJobs = make(map[string]uint64)
	r.activeTranscode.Store(0)
}

// Handler exposes the Recorder as an http.Handler that writes Prometheus text
// exposition data with the appropriate content type.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the Recorder's metrics in Prometheus text format, sorting label
// sets to provide stable output for scrapes and tests.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	uploadOutcomes := sortedKeys(r.uploadOutcomes)
	transcodeJobs := sortedKeys(r.transcodeJobs)

	fmt.Fprintln(w, "# HELP vodforge_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE vodforge_http_requests_total counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "vodforge_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP vodforge_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE vodforge_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		duration := r.requestDuration[label].Seconds()
		fmt.Fprintf(w, "vodforge_http_request_duration_seconds_sum{method=\"%s\",path=\"%s\",status=\"%s\"} %f\n", label.method, label.path, label.status, duration)
	}

	fmt.Fprintln(w, "# HELP vodforge_http_request_duration_seconds_count Total number of observations for request durations")
	fmt.Fprintln(w, "# TYPE vodforge_http_request_duration_seconds_count counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "vodforge_http_request_duration_seconds_count{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP vodforge_uploads_total Upload pipeline runs by terminal outcome")
	fmt.Fprintln(w, "# TYPE vodforge_uploads_total counter")
	for _, outcome := range uploadOutcomes {
		fmt.Fprintf(w, "vodforge_uploads_total{outcome=\"%s\"} %d\n", outcome, r.uploadOutcomes[outcome])
	}

	fmt.Fprintln(w, "# HELP vodforge_transcode_jobs_total Rendition transcode jobs by terminal status")
	fmt.Fprintln(w, "# TYPE vodforge_transcode_jobs_total counter")
	for _, status := range transcodeJobs {
		fmt.Fprintf(w, "vodforge_transcode_jobs_total{status=\"%s\"} %d\n", status, r.transcodeJobs[status])
	}

	fmt.Fprintln(w, "# HELP vodforge_transcode_active_jobs Current number of in-flight transcode runs")
	fmt.Fprintln(w, "# TYPE vodforge_transcode_active_jobs gauge")
	fmt.Fprintf(w, "vodforge_transcode_active_jobs %d\n", r.activeTranscode.Load())
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
			continue
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

func looksLikeIdentifier(segment string) bool {
	if len(segment) >= 8 {
		return true
	}
	digitCount := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	return digitCount >= 3
}

func (r *Recorder) decrementGauge(gauge *atomic.Int64) {
	for {
		current := gauge.Load()
		if current <= 0 {
			return
		}
		if gauge.CompareAndSwap(current, current-1) {
			return
		}
	}
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// ObserveRequest is a helper on the default recorder.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	defaultRecorder.ObserveRequest(method, path, status, duration)
}

// ObserveUpload records an upload outcome on the default recorder.
func ObserveUpload(outcome string) {
	defaultRecorder.ObserveUpload(outcome)
}

// ObserveTranscodeJob records a rendition job status on the default recorder.
func ObserveTranscodeJob(status string) {
	defaultRecorder.ObserveTranscodeJob(status)
}

// TranscodeStarted increments the in-flight gauge on the default recorder.
func TranscodeStarted() {
	defaultRecorder.TranscodeStarted()
}

// TranscodeFinished decrements the in-flight gauge on the default recorder.
func TranscodeFinished() {
	defaultRecorder.TranscodeFinished()
}
