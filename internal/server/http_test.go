package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alfredjeanlab/lngraph/internal/events"
	"github.com/alfredjeanlab/lngraph/internal/metrics"
	"github.com/alfredjeanlab/lngraph/internal/model"
	"github.com/alfredjeanlab/lngraph/internal/store/memory"
)

const sampleGraph = `{
	"nodes": [
		{"last_update": 1567764428, "pub_key": "0200aa", "alias": "WHENBTC",
		 "addresses": [{"network": "tcp", "addr": "67.166.1.116:9735"}], "color": "#3399ff"},
		{"last_update": 1, "pub_key": "0300bb", "alias": "", "addresses": [], "color": "#000000"}
	],
	"edges": [
		{"channel_id": "659379322247708673", "chan_point": "ae07:1", "last_update": 1571278793,
		 "node1_pub": "0200aa", "node2_pub": "0300bb", "capacity": "1000000",
		 "node1_policy": {"time_lock_delta": 14, "min_htlc": "1000", "fee_base_msat": "1000",
		   "fee_rate_milli_msat": "1", "disabled": true, "max_htlc_msat": "990000000", "last_update": 1571278793},
		 "node2_policy": null}
	]
}`

// recordingPublisher keeps the topics of published events.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer returns a fresh server, its store, its publisher and an HTTP handler.
func newTestServer(opts Options) (*Server, *memory.Store, *recordingPublisher, http.Handler) {
	st := memory.New()
	pub := &recordingPublisher{}
	opts.Logger = quietLogger()
	s := New(st, pub, opts)
	return s, st, pub, s.NewHTTPHandler("")
}

// doRaw performs an HTTP request with a raw body and returns the recorder.
func doRaw(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// requireStatus asserts the recorder has the expected HTTP status code.
func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected status %d, got %d; body: %s", code, rec.Code, rec.Body.String())
	}
}

// decodeJSON decodes the recorder's response body into v.
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// createSnapshot uploads sampleGraph and returns the created snapshot.
func createSnapshot(t *testing.T, h http.Handler) model.Snapshot {
	t.Helper()
	rec := doRaw(t, h, "POST", "/v1/snapshots", sampleGraph)
	requireStatus(t, rec, http.StatusCreated)
	var snap model.Snapshot
	decodeJSON(t, rec, &snap)
	return snap
}

func TestHandleHealth(t *testing.T) {
	_, _, _, h := newTestServer(Options{})
	rec := doRaw(t, h, "GET", "/v1/health", "")
	requireStatus(t, rec, 200)
	var body map[string]any
	decodeJSON(t, rec, &body)
	if body["status"] != "ok" || body["snapshots"] != true {
		t.Fatalf("health = %v", body)
	}
}

func TestHandleDecode(t *testing.T) {
	_, _, _, h := newTestServer(Options{})
	rec := doRaw(t, h, "POST", "/v1/decode", sampleGraph)
	requireStatus(t, rec, 200)

	got, err := model.Decode(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("response does not decode: %v\n%s", err, rec.Body.String())
	}
	want, _ := model.DecodeString(sampleGraph)
	if !got.Equal(want) {
		t.Errorf("decoded graph mismatch")
	}
}

func TestHandleStats(t *testing.T) {
	_, _, _, h := newTestServer(Options{})
	rec := doRaw(t, h, "POST", "/v1/stats", sampleGraph)
	requireStatus(t, rec, 200)

	var stats model.Stats
	decodeJSON(t, rec, &stats)
	if stats.NumNodes != 2 || stats.NumChannels != 1 || stats.TotalCapacity != 1000000 || stats.NumDisabled != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHandleDecodeErrors(t *testing.T) {
	for _, tc := range []struct {
		name      string
		body      string
		kind      string
		field     string
		line, col int
	}{
		{"Syntax", "{\n  \"nodes\": x}", "syntax", "", 2, 12},
		{"MissingField", `{"nodes":[]}`, "missing_field", "edges", 0, 0},
		{"TypeMismatch", `{"nodes":[],"edges":[{"channel_id":"1","chan_point":"p","last_update":1,"node1_pub":"a","node2_pub":"b","capacity":5}]}`,
			"type_mismatch", "edges[0].capacity", 0, 0},
		{"FieldParse", `{"nodes":[],"edges":[{"channel_id":"1","chan_point":"p","last_update":1,"node1_pub":"a","node2_pub":"b","capacity":"abc"}]}`,
			"field_parse", "edges[0].capacity", 0, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, h := newTestServer(Options{})
			for _, path := range []string{"/v1/decode", "/v1/stats"} {
				rec := doRaw(t, h, "POST", path, tc.body)
				requireStatus(t, rec, http.StatusUnprocessableEntity)
				var body decodeErrorBody
				decodeJSON(t, rec, &body)
				if body.Kind != tc.kind || body.Field != tc.field || body.Line != tc.line || body.Column != tc.col {
					t.Errorf("%s: body = %+v", path, body)
				}
				if body.Error == "" {
					t.Errorf("%s: empty error message", path)
				}
			}
		})
	}
}

func TestHandleDecode_BodyTooLarge(t *testing.T) {
	_, _, _, h := newTestServer(Options{MaxBodyBytes: 16})
	rec := doRaw(t, h, "POST", "/v1/decode", sampleGraph)
	requireStatus(t, rec, http.StatusRequestEntityTooLarge)
}

func TestSnapshotLifecycle(t *testing.T) {
	_, _, pub, h := newTestServer(Options{})

	snap := createSnapshot(t, h)
	if snap.ID == "" || snap.Source != uploadSource || snap.Stats.NumNodes != 2 {
		t.Fatalf("created = %+v", snap)
	}

	rec := doRaw(t, h, "GET", "/v1/snapshots/"+snap.ID, "")
	requireStatus(t, rec, 200)
	var got model.Snapshot
	decodeJSON(t, rec, &got)
	if got.ID != snap.ID || got.Stats != snap.Stats {
		t.Errorf("get = %+v, want %+v", got, snap)
	}

	rec = doRaw(t, h, "GET", "/v1/snapshots/"+snap.ID+"/graph", "")
	requireStatus(t, rec, 200)
	g, err := model.Decode(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("graph response does not decode: %v", err)
	}
	want, _ := model.DecodeString(sampleGraph)
	if !g.Equal(want) {
		t.Error("stored graph differs from upload")
	}

	rec = doRaw(t, h, "DELETE", "/v1/snapshots/"+snap.ID, "")
	requireStatus(t, rec, http.StatusNoContent)

	rec = doRaw(t, h, "GET", "/v1/snapshots/"+snap.ID, "")
	requireStatus(t, rec, http.StatusNotFound)

	topics := pub.published()
	if len(topics) != 2 || topics[0] != events.TopicSnapshotImported || topics[1] != events.TopicSnapshotDeleted {
		t.Errorf("published = %v", topics)
	}
}

func TestHandleCreateSnapshot_DecodeFailure(t *testing.T) {
	_, st, pub, h := newTestServer(Options{})
	rec := doRaw(t, h, "POST", "/v1/snapshots", `{"edges":[]}`)
	requireStatus(t, rec, http.StatusUnprocessableEntity)

	if topics := pub.published(); len(topics) != 1 || topics[0] != events.TopicDecodeFailed {
		t.Errorf("published = %v", topics)
	}
	snaps, _ := st.ListSnapshots(context.Background(), 0)
	if len(snaps) != 0 {
		t.Errorf("stored %d snapshots", len(snaps))
	}
}

func TestHandleCreateSnapshot_FromSource(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(sampleGraph))
	}))
	defer upstream.Close()

	_, _, _, h := newTestServer(Options{AllowRemoteSources: true})
	rec := doRaw(t, h, "POST", "/v1/snapshots?source="+upstream.URL+"/graph.json", "")
	requireStatus(t, rec, http.StatusCreated)
	var snap model.Snapshot
	decodeJSON(t, rec, &snap)
	if snap.Source != upstream.URL+"/graph.json" {
		t.Errorf("source = %q", snap.Source)
	}
}

func TestHandleCreateSnapshot_SourceErrors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer failing.Close()

	_, _, _, h := newTestServer(Options{AllowRemoteSources: true})

	rec := doRaw(t, h, "POST", "/v1/snapshots?source=/etc/passwd", "")
	requireStatus(t, rec, http.StatusForbidden)

	rec = doRaw(t, h, "POST", "/v1/snapshots?source=s3://bucket-only", "")
	requireStatus(t, rec, http.StatusBadRequest)

	rec = doRaw(t, h, "POST", "/v1/snapshots?source="+failing.URL, "")
	requireStatus(t, rec, http.StatusBadGateway)
}

func TestHandleCreateSnapshot_RemoteSourcesDisabled(t *testing.T) {
	var hits atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Write([]byte(sampleGraph))
	}))
	defer upstream.Close()

	_, st, _, h := newTestServer(Options{})
	for _, uri := range []string{upstream.URL + "/graph.json", "s3://graphs/graph.json"} {
		rec := doRaw(t, h, "POST", "/v1/snapshots?source="+url.QueryEscape(uri), "")
		requireStatus(t, rec, http.StatusForbidden)
	}
	if hits.Load() != 0 {
		t.Errorf("upstream fetched %d times with remote sources disabled", hits.Load())
	}
	if snaps, _ := st.ListSnapshots(context.Background(), 0); len(snaps) != 0 {
		t.Errorf("stored %d snapshots", len(snaps))
	}
}

func TestHandleCreateSnapshot_SourceOverBodyLimit(t *testing.T) {
	doc := strings.Replace(sampleGraph, `"nodes"`, `"pad": "`+strings.Repeat("x", 4096)+`", "nodes"`, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(doc))
	}))
	defer upstream.Close()

	_, st, _, h := newTestServer(Options{MaxBodyBytes: 1024, AllowRemoteSources: true})

	rec := doRaw(t, h, "POST", "/v1/snapshots", doc)
	requireStatus(t, rec, http.StatusRequestEntityTooLarge)

	rec = doRaw(t, h, "POST", "/v1/snapshots?source="+upstream.URL+"/graph.json", "")
	requireStatus(t, rec, http.StatusRequestEntityTooLarge)

	if snaps, _ := st.ListSnapshots(context.Background(), 0); len(snaps) != 0 {
		t.Errorf("stored %d snapshots", len(snaps))
	}
}

func TestHandleCreateSnapshot_UpstreamBodyNotEchoed(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal-secret-token=abc123", http.StatusForbidden)
	}))
	defer upstream.Close()

	var logs bytes.Buffer
	s := New(memory.New(), nil, Options{
		AllowRemoteSources: true,
		Logger:             slog.New(slog.NewTextHandler(&logs, nil)),
	})
	rec := doRaw(t, s.NewHTTPHandler(""), "POST", "/v1/snapshots?source="+upstream.URL, "")
	requireStatus(t, rec, http.StatusBadGateway)

	if strings.Contains(rec.Body.String(), "secret") {
		t.Errorf("response echoes upstream body: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "status 403") {
		t.Errorf("response does not report the upstream status: %s", rec.Body.String())
	}
	if !strings.Contains(logs.String(), "internal-secret-token=abc123") {
		t.Errorf("upstream body not logged: %s", logs.String())
	}
}

func TestHandleListSnapshots(t *testing.T) {
	_, _, _, h := newTestServer(Options{})
	for range 3 {
		createSnapshot(t, h)
	}

	rec := doRaw(t, h, "GET", "/v1/snapshots", "")
	requireStatus(t, rec, 200)
	var body struct {
		Snapshots []model.Snapshot `json:"snapshots"`
	}
	decodeJSON(t, rec, &body)
	if len(body.Snapshots) != 3 {
		t.Errorf("listed %d, want 3", len(body.Snapshots))
	}

	rec = doRaw(t, h, "GET", "/v1/snapshots?limit=2", "")
	requireStatus(t, rec, 200)
	decodeJSON(t, rec, &body)
	if len(body.Snapshots) != 2 {
		t.Errorf("listed %d with limit=2", len(body.Snapshots))
	}
}

func TestHandleHTTPErrors(t *testing.T) {
	for _, tc := range []struct {
		name      string
		method    string
		path      string
		code      int
		wantError string
	}{
		{"ListSnapshots/BadLimit", "GET", "/v1/snapshots?limit=abc", 400, "invalid limit"},
		{"ListSnapshots/NegativeLimit", "GET", "/v1/snapshots?limit=-1", 400, "invalid limit"},
		{"GetSnapshot/NotFound", "GET", "/v1/snapshots/snap-missing", 404, "snapshot not found"},
		{"GetGraph/NotFound", "GET", "/v1/snapshots/snap-missing/graph", 404, "snapshot not found"},
		{"DeleteSnapshot/NotFound", "DELETE", "/v1/snapshots/snap-missing", 404, "snapshot not found"},
		{"Decode/WrongMethod", "GET", "/v1/decode", 405, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, h := newTestServer(Options{})
			rec := doRaw(t, h, tc.method, tc.path, "")
			requireStatus(t, rec, tc.code)
			if tc.wantError != "" {
				var body map[string]string
				decodeJSON(t, rec, &body)
				if body["error"] != tc.wantError {
					t.Fatalf("expected error=%q, got %q", tc.wantError, body["error"])
				}
			}
		})
	}
}

func TestSnapshotRoutes_NoStore(t *testing.T) {
	s := New(nil, nil, Options{Logger: quietLogger()})
	h := s.NewHTTPHandler("")

	for _, tc := range []struct{ method, path string }{
		{"POST", "/v1/snapshots"},
		{"GET", "/v1/snapshots"},
		{"GET", "/v1/snapshots/snap-1"},
		{"GET", "/v1/snapshots/snap-1/graph"},
		{"DELETE", "/v1/snapshots/snap-1"},
	} {
		rec := doRaw(t, h, tc.method, tc.path, "")
		requireStatus(t, rec, http.StatusServiceUnavailable)
	}

	// Stateless routes still work.
	rec := doRaw(t, h, "POST", "/v1/stats", sampleGraph)
	requireStatus(t, rec, http.StatusOK)
}

func TestNewHTTPHandler_Auth(t *testing.T) {
	s := New(memory.New(), nil, Options{Logger: quietLogger()})
	h := s.NewHTTPHandler("secret")

	rec := doRaw(t, h, "POST", "/v1/stats", sampleGraph)
	requireStatus(t, rec, http.StatusUnauthorized)

	req := httptest.NewRequest("POST", "/v1/stats", bytes.NewReader([]byte(sampleGraph)))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	requireStatus(t, rec, http.StatusOK)

	rec = doRaw(t, h, "GET", "/v1/health", "")
	requireStatus(t, rec, http.StatusOK)
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, _, h := newTestServer(Options{Metrics: metrics.New()})
	requireStatus(t, doRaw(t, h, "POST", "/v1/stats", sampleGraph), http.StatusOK)
	requireStatus(t, doRaw(t, h, "POST", "/v1/decode", `{"nodes": [], "edges": 5}`), http.StatusUnprocessableEntity)

	rec := doRaw(t, h, "GET", "/metrics", "")
	requireStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	for _, want := range []string{
		`lngraph_decodes_total{result="ok"} 1`,
		`lngraph_decodes_total{result="type_mismatch"} 1`,
		`lngraph_http_requests_total{code="422",method="post"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	_, _, _, h := newTestServer(Options{})
	requireStatus(t, doRaw(t, h, "GET", "/metrics", ""), http.StatusNotFound)
}
