package main

import (
	"errors"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	latencies := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
		40 * time.Millisecond,
		50 * time.Millisecond,
		60 * time.Millisecond,
		70 * time.Millisecond,
		80 * time.Millisecond,
		90 * time.Millisecond,
		100 * time.Millisecond,
	}

	if got := percentile(latencies, 50); got != 50*time.Millisecond {
		t.Fatalf("p50: got %s", got)
	}
	if got := percentile(latencies, 95); got != 100*time.Millisecond {
		t.Fatalf("p95: got %s", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty input must yield 0, got %s", got)
	}
}

func TestSummarize(t *testing.T) {
	results := []result{
		{latency: 10 * time.Millisecond, status: 201},
		{latency: 30 * time.Millisecond, status: 201},
		{err: errors.New("connection refused")},
	}

	report := summarize(results)
	if report.Total != 3 || report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if report.Max != 30*time.Millisecond {
		t.Fatalf("unexpected max: %s", report.Max)
	}
	if report.Elapsed != 40*time.Millisecond {
		t.Fatalf("unexpected elapsed: %s", report.Elapsed)
	}
}
