package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(ledgerOps.WithLabelValues("settle_payment", "ok"))
	RecordOperation("settle_payment", "ok", time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(ledgerOps.WithLabelValues("settle_payment", "ok")))
}

func TestGauges(t *testing.T) {
	SetEscrow(250)
	assert.Equal(t, float64(250), testutil.ToFloat64(escrow))
	SetPending(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(outboxPending))
}

func TestInstrumentHandlerUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(InstrumentHandler)
	r.HandleFunc("/v1/requests/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/v1/requests/{id}", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/requests/42", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/v1/requests/{id}", "404")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	RecordPublished()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "bite_outbox_published_total"))
}
