package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bdobrica/pantheon/internal/pantheon/metrics"
)

func TestRecorderExportsCounters(t *testing.T) {
	r, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.RecordTurn("elion", "fallback", 5*time.Millisecond)
	r.RecordTurn("elion", "fallback", 5*time.Millisecond)
	r.RecordCouncilMessage("curious")
	r.SetCouncilActive(true)
	r.RecordRitual("offering", true)
	r.RecordEvictions("nyxa", 3)
	r.RecordEvictions("nyxa", 0)
	r.RecordStorageRetry()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`pantheon_chat_turns_total{persona="elion",source="fallback"} 2`,
		`pantheon_council_messages_total{emotion="curious"} 1`,
		`pantheon_council_active 1`,
		`pantheon_rituals_completed_total{success="true",type="offering"} 1`,
		`pantheon_chat_session_evictions_total{persona="nyxa"} 3`,
		`pantheon_storage_retries_total 1`,
		`pantheon_reply_duration_seconds_count{source="fallback"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRegisterTwiceOnSameRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := metrics.New(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := metrics.New(reg); err != nil {
		t.Fatalf("second New on the same registry: %v", err)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *metrics.Recorder
	r.RecordTurn("elion", "remote", time.Second)
	r.RecordCouncilMessage("angry")
	r.SetCouncilActive(false)
	r.RecordRitual("glitch", false)
	r.RecordEvictions("v1r3", 1)
	r.RecordStorageRetry()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("nil recorder handler status = %d", rec.Code)
	}
}
