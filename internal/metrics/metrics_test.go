package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequest(t *testing.T) {
	m := New()

	m.RecordRequest("shop@default", "GET", 200, 100*time.Millisecond)
	m.RecordRequest("shop@default", "GET", 200, 200*time.Millisecond)
	m.RecordRequest("shop@default", "POST", 500, 50*time.Millisecond)

	got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("shop@default", "GET", "200"))
	if got != 2 {
		t.Errorf("GET 200 count = %v, want 2", got)
	}
	got = testutil.ToFloat64(m.requestsTotal.WithLabelValues("shop@default", "POST", "500"))
	if got != 1 {
		t.Errorf("POST 500 count = %v, want 1", got)
	}
}

func TestRecordBridgeCall(t *testing.T) {
	m := New()

	m.RecordBridgeCall("http", "")
	m.RecordBridgeCall("http", "ACCESS_DENIED")
	m.RecordBridgeCall("subprocess", "TIMEOUT")

	if got := testutil.ToFloat64(m.bridgeCalls.WithLabelValues("http", "OK")); got != 1 {
		t.Errorf("http OK count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.bridgeCalls.WithLabelValues("subprocess", "TIMEOUT")); got != 1 {
		t.Errorf("subprocess TIMEOUT count = %v, want 1", got)
	}
}

func TestHandlerExposition(t *testing.T) {
	m := New()
	m.RecordRequest("shop@default", "GET", 200, 10*time.Millisecond)
	m.RecordRateLimitRejection("api")
	m.RecordShadowCycle()
	m.RecordSessionStarted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"razy_requests_total",
		"razy_request_duration_seconds",
		"razy_ratelimit_rejections_total",
		"razy_shadow_cycles_total",
		"razy_sessions_started_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %s", want)
		}
	}
}
