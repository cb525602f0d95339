package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.DispatchResult(ResultAccepted)
	m.DispatchResult(ResultAccepted)
	m.DispatchResult(ResultValidation)
	m.FramesPublished(3)
	m.ResponseDecoded(15)
	m.ResponseMalformed()
	m.EventDropped("device_response", "gateway")

	if got := testutil.ToFloat64(m.dispatches.WithLabelValues(ResultAccepted)); got != 2 {
		t.Errorf("accepted dispatches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.framesPublished); got != 3 {
		t.Errorf("frames published = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.responses.WithLabelValues("15")); got != 1 {
		t.Errorf("responses{command=15} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.eventsDropped.WithLabelValues("device_response", "gateway")); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
}

func TestMetrics_BrokerStatusOneHot(t *testing.T) {
	m := New()

	m.BrokerStatus("connected")
	m.BrokerStatus("connecting")

	if got := testutil.ToFloat64(m.brokerStatus.WithLabelValues("connected")); got != 0 {
		t.Errorf("connected = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.brokerStatus.WithLabelValues("connecting")); got != 1 {
		t.Errorf("connecting = %v, want 1", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SubscriberCount(4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "fieldlink_gateway_subscribers 4") {
		t.Errorf("exposition missing subscriber gauge:\n%s", body)
	}
}
