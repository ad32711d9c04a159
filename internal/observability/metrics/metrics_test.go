package metrics

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestObserveRequestAndNormalizePath(t *testing.T) {
	recorder := New()

	type testCase struct {
		name     string
		method   string
		path     string
		status   int
		duration time.Duration
	}

	cases := []testCase{
		{
			name:     "root path",
			method:   "get",
			path:     "/",
			status:   200,
			duration: 50 * time.Millisecond,
		},
		{
			name:     "empty path",
			method:   "GET",
			path:     "",
			status:   200,
			duration: 25 * time.Millisecond,
		},
		{
			name:     "id segment",
			method:   "post",
			path:     "/api/videos/123",
			status:   201,
			duration: 100 * time.Millisecond,
		},
		{
			name:     "trailing slash and alpha id",
			method:   "POST",
			path:     "/api/videos/abc123def/",
			status:   201,
			duration: 50 * time.Millisecond,
		},
		{
			name:     "multi ids",
			method:   "PATCH",
			path:     "streams/abc/456/extra",
			status:   404,
			duration: 10 * time.Millisecond,
		},
	}

	expectedCounts := make(map[requestLabel]struct {
		count    uint64
		duration time.Duration
	})

	for _, tc := range cases {
		recorder.ObserveRequest(tc.method, tc.path, tc.status, tc.duration)

		label := requestLabel{
			method: strings.ToUpper(tc.method),
			path:   normalizePath(tc.path),
			status: fmt.Sprintf("%d", tc.status),
		}
		current := expectedCounts[label]
		current.count++
		current.duration += tc.duration
		expectedCounts[label] = current
	}

	if len(recorder.requestCount) != len(expectedCounts) {
		t.Fatalf("unexpected number of labels: got %d want %d", len(recorder.requestCount), len(expectedCounts))
	}

	for label, expected := range expectedCounts {
		gotCount := recorder.requestCount[label]
		gotDuration := recorder.requestDuration[label]
		if gotCount != expected.count {
			t.Errorf("count mismatch for %+v: got %d want %d", label, gotCount, expected.count)
		}
		if gotDuration != expected.duration {
			t.Errorf("duration mismatch for %+v: got %s want %s", label, gotDuration, expected.duration)
		}
	}
}

func TestTranscodeGaugeConcurrent(t *testing.T) {
	recorder := New()

	var wg sync.WaitGroup
	starts := 100
	finishes := 150

	wg.Add(starts + finishes)
	for i := 0; i < starts; i++ {
		go func() {
			defer wg.Done()
			recorder.TranscodeStarted()
		}()
	}
	for i := 0; i < finishes; i++ {
		go func() {
			defer wg.Done()
			recorder.TranscodeFinished()
		}()
	}

	wg.Wait()

	if active := recorder.activeTranscode.Load(); active < 0 {
		t.Fatalf("active transcodes should not go negative; got %d", active)
	}
}

func TestWriteAndHandlerOutput(t *testing.T) {
	recorder := New()

	recorder.ObserveRequest("GET", "/api/videos/abc123", 200, 150*time.Millisecond)
	recorder.ObserveRequest("get", "/api/videos/456/", 200, 50*time.Millisecond)
	recorder.ObserveRequest("POST", "/api/videos", 201, time.Second)

	recorder.ObserveUpload("Ready")
	recorder.ObserveUpload("ready")
	recorder.ObserveUpload("failed")

	recorder.ObserveTranscodeJob("succeeded")
	recorder.ObserveTranscodeJob("succeeded")
	recorder.ObserveTranscodeJob("timed_out")

	recorder.TranscodeStarted()

	var buf bytes.Buffer
	recorder.Write(&buf)

	expected := `# HELP vodforge_http_requests_total Total number of HTTP requests processed by the API
# TYPE vodforge_http_requests_total counter
vodforge_http_requests_total{method="GET",path="/api/videos/:id",status="200"} 2
vodforge_http_requests_total{method="POST",path="/api/videos",status="201"} 1
# HELP vodforge_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds
# TYPE vodforge_http_request_duration_seconds_sum counter
vodforge_http_request_duration_seconds_sum{method="GET",path="/api/videos/:id",status="200"} 0.200000
vodforge_http_request_duration_seconds_sum{method="POST",path="/api/videos",status="201"} 1.000000
# HELP vodforge_http_request_duration_seconds_count Total number of observations for request durations
# TYPE vodforge_http_request_duration_seconds_count counter
vodforge_http_request_duration_seconds_count{method="GET",path="/api/videos/:id",status="200"} 2
vodforge_http_request_duration_seconds_count{method="POST",path="/api/videos",status="201"} 1
# HELP vodforge_uploads_total Upload pipeline runs by terminal outcome
# TYPE vodforge_uploads_total counter
vodforge_uploads_total{outcome="failed"} 1
vodforge_uploads_total{outcome="ready"} 2
# HELP vodforge_transcode_jobs_total Rendition transcode jobs by terminal status
# TYPE vodforge_transcode_jobs_total counter
vodforge_transcode_jobs_total{status="succeeded"} 2
vodforge_transcode_jobs_total{status="timed_out"} 1
# HELP vodforge_transcode_active_jobs Current number of in-flight transcode runs
# TYPE vodforge_transcode_active_jobs gauge
vodforge_transcode_active_jobs 1`

	if diff := compareLines(buf.String(), expected); diff != "" {
		t.Fatalf("unexpected write output:\n%s", diff)
	}

	res := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(res, httptest.NewRequest("GET", "/metrics", nil))

	if contentType := res.Result().Header.Get("Content-Type"); !strings.HasPrefix(contentType, "text/plain") {
		t.Fatalf("unexpected content type: %s", contentType)
	}

	if diff := compareLines(res.Body.String(), expected); diff != "" {
		t.Fatalf("unexpected handler output:\n%s", diff)
	}
}

func compareLines(actual, expected string) string {
	actualLines := strings.Split(strings.TrimSpace(actual), "\n")
	expectedLines := strings.Split(strings.TrimSpace(expected), "\n")
	if len(actualLines) != len(expectedLines) {
		return formatDiff(actualLines, expectedLines)
	}
	for i := range actualLines {
		if actualLines[i] != expectedLines[i] {
			return formatDiff(actualLines, expectedLines)
		}
	}
	return ""
}

func formatDiff(actual, expected []string) string {
	var b strings.Builder
	b.WriteString("expected\n")
	for _, line := range expected {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("got\n")
	for _, line := range actual {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
