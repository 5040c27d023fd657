package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRecordAggregatesAcrossUpstreams(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, true)

	r.Record(OperationRecord{Upstream: "serena", OpName: "findSymbol", Success: true, TokensEstimate: 10})
	r.Record(OperationRecord{Upstream: "serena", OpName: "findSymbol", Success: false, TokensEstimate: 0})
	r.Record(OperationRecord{Upstream: "tavily", OpName: "search", Success: true, Cached: true, TokensEstimate: 5})

	snap := r.Snapshot()
	if snap.TotalCalls != 3 {
		t.Errorf("TotalCalls = %d, want 3", snap.TotalCalls)
	}
	if snap.SuccessCount != 2 {
		t.Errorf("SuccessCount = %d, want 2", snap.SuccessCount)
	}
	if snap.FailureCount != 1 {
		t.Errorf("FailureCount = %d, want 1", snap.FailureCount)
	}
	if snap.CacheHitCount != 1 {
		t.Errorf("CacheHitCount = %d, want 1", snap.CacheHitCount)
	}
	if snap.TotalTokensEstimate != 15 {
		t.Errorf("TotalTokensEstimate = %d, want 15", snap.TotalTokensEstimate)
	}

	serena, ok := snap.ByUpstream["serena"]
	if !ok {
		t.Fatal("expected serena stats")
	}
	if serena.Calls != 2 || serena.Successes != 1 || serena.Failures != 1 {
		t.Errorf("unexpected serena stats: %+v", serena)
	}
}

func TestRecordNoOpWhenDisabled(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, false)

	r.Record(OperationRecord{Upstream: "serena", OpName: "findSymbol", Success: true})

	snap := r.Snapshot()
	if snap.TotalCalls != 0 {
		t.Errorf("expected no recording when disabled, got %+v", snap)
	}
}

func TestTokensEstimate(t *testing.T) {
	cases := []struct {
		length int
		want   int
	}{
		{0, 0},
		{1, 1},
		{4, 1},
		{5, 2},
		{8, 2},
		{9, 3},
	}
	for _, tc := range cases {
		if got := TokensEstimate(tc.length); got != tc.want {
			t.Errorf("TokensEstimate(%d) = %d, want %d", tc.length, got, tc.want)
		}
	}
}
