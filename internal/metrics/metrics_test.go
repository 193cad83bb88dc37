package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/alfredjeanlab/lngraph/internal/model"
)

func TestObserveDecode(t *testing.T) {
	m := New()
	m.ObserveDecode(10, nil)
	m.ObserveDecode(10, nil)
	_, err := model.DecodeString(`{"nodes": []}`)
	m.ObserveDecode(13, err)
	m.ObserveDecode(0, errors.New("read failed"))

	for _, tc := range []struct {
		result string
		want   float64
	}{
		{"ok", 2},
		{"missing_field", 1},
		{"error", 1},
		{"syntax", 0},
	} {
		if got := testutil.ToFloat64(m.decodes.WithLabelValues(tc.result)); got != tc.want {
			t.Errorf("decodes_total{result=%q} = %v, want %v", tc.result, got, tc.want)
		}
	}
	if n := testutil.CollectAndCount(m.decodeBytes); n != 1 {
		t.Errorf("decode_input_bytes series = %d, want 1", n)
	}
}

func TestObserveImport(t *testing.T) {
	m := New()
	m.ObserveImport(nil)
	m.ObserveImport(&model.DecodeError{Kind: model.KindSyntax})
	if got := testutil.ToFloat64(m.imports.WithLabelValues("syntax")); got != 1 {
		t.Errorf("imports_total{result=syntax} = %v", got)
	}
}

func TestStreamClients(t *testing.T) {
	m := New()
	done1 := m.StreamClientConnected()
	done2 := m.StreamClientConnected()
	done1()
	if got := testutil.ToFloat64(m.streamClients); got != 1 {
		t.Errorf("event_stream_clients = %v, want 1", got)
	}
	done2()
	if got := testutil.ToFloat64(m.streamClients); got != 0 {
		t.Errorf("event_stream_clients = %v, want 0", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	h := m.InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`lngraph_http_requests_total{code="418",method="get"} 1`,
		"lngraph_http_request_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveDecode(1, nil)
	m.ObserveImport(nil)
	m.StreamClientConnected()()
	next := http.NotFoundHandler()
	if m.InstrumentHandler(next) == nil || m.Handler() == nil || m.Registry() != nil {
		t.Error("nil Metrics misbehaves")
	}
}
