package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/lngraph/internal/events"
	"github.com/alfredjeanlab/lngraph/internal/idgen"
	"github.com/alfredjeanlab/lngraph/internal/metrics"
	"github.com/alfredjeanlab/lngraph/internal/model"
	"github.com/alfredjeanlab/lngraph/internal/store/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testGraph = `{
	"nodes": [
		{"last_update": 1, "pub_key": "a", "alias": "A", "addresses": [], "color": "#000000"},
		{"last_update": 2, "pub_key": "b", "alias": "B", "addresses": [], "color": "#ffffff"}
	],
	"edges": [
		{"channel_id": "1", "chan_point": "tx:0", "last_update": 3, "node1_pub": "a", "node2_pub": "b",
		 "capacity": "5000", "node1_policy": null, "node2_policy": null}
	]
}`

// fakeSource serves fixed bytes and counts fetches.
type fakeSource struct {
	data    []byte
	err     error
	fetches atomic.Int64
}

func (s *fakeSource) Fetch(context.Context) ([]byte, error) {
	s.fetches.Add(1)
	return s.data, s.err
}

func (s *fakeSource) String() string { return "fake:graph" }

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestImportOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	pub := &recordingPublisher{}
	src := &fakeSource{data: []byte(testGraph)}

	im := NewImporter(src, st, pub, discardLogger())
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	im.now = func() time.Time { return fixed }

	snap, err := im.ImportOnce(ctx)
	if err != nil {
		t.Fatalf("ImportOnce: %v", err)
	}
	if !idgen.IsSnapshotID(snap.ID) {
		t.Errorf("ID = %q, not a snapshot ID", snap.ID)
	}
	if snap.Source != "fake:graph" || !snap.CreatedAt.Equal(fixed) {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Stats.NumNodes != 2 || snap.Stats.TotalCapacity != 5000 {
		t.Errorf("stats = %+v", snap.Stats)
	}

	g, err := st.GetGraph(ctx, snap.ID)
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	want, _ := model.DecodeString(testGraph)
	if !g.Equal(want) {
		t.Errorf("stored graph differs from source")
	}

	if got := pub.published(); len(got) != 1 || got[0] != events.TopicSnapshotImported {
		t.Errorf("published = %v", got)
	}
	ev := pub.events[0].(events.SnapshotImported)
	if ev.Snapshot.ID != snap.ID {
		t.Errorf("event snapshot = %q, want %q", ev.Snapshot.ID, snap.ID)
	}
}

func TestImportOnce_DecodeFailure(t *testing.T) {
	st := memory.New()
	pub := &recordingPublisher{}
	src := &fakeSource{data: []byte(`{"nodes":[],"edges":[{"channel_id":"1"}]}`)}

	_, err := NewImporter(src, st, pub, discardLogger()).ImportOnce(context.Background())
	if !errors.Is(err, model.ErrMissingField) {
		t.Fatalf("err = %v, want missing field", err)
	}

	if got := pub.published(); len(got) != 1 || got[0] != events.TopicDecodeFailed {
		t.Fatalf("published = %v", got)
	}
	ev := pub.events[0].(events.DecodeFailed)
	if ev.Source != "fake:graph" || ev.Field != "edges[0].chan_point" {
		t.Errorf("event = %+v", ev)
	}

	snaps, _ := st.ListSnapshots(context.Background(), 0)
	if len(snaps) != 0 {
		t.Errorf("stored %d snapshots after failed decode", len(snaps))
	}
}

func TestImportOnce_FetchFailure(t *testing.T) {
	pub := &recordingPublisher{}
	src := &fakeSource{err: errors.New("connection refused")}

	_, err := NewImporter(src, memory.New(), pub, discardLogger()).ImportOnce(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := pub.published(); len(got) != 0 {
		t.Errorf("published = %v, want nothing", got)
	}
}

func TestRecord_PublishFailureIsNotFatal(t *testing.T) {
	st := memory.New()
	pub := &recordingPublisher{err: errors.New("nats down")}
	g, _ := model.DecodeString(testGraph)

	snap, err := Record(context.Background(), st, pub, discardLogger(), "upload", g, time.Now())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := st.GetSnapshot(context.Background(), snap.ID); err != nil {
		t.Errorf("snapshot not stored: %v", err)
	}
}

func TestImportOnce_Metrics(t *testing.T) {
	m := metrics.New()
	src := &fakeSource{data: []byte(testGraph)}
	im := NewImporter(src, memory.New(), &events.NoopPublisher{}, discardLogger())
	im.SetMetrics(m)

	if _, err := im.ImportOnce(context.Background()); err != nil {
		t.Fatalf("ImportOnce: %v", err)
	}
	src.data = []byte(`{"nodes": 1}`)
	if _, err := im.ImportOnce(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}

	if n, err := testutil.GatherAndCount(m.Registry(), "lngraph_imports_total"); err != nil || n != 2 {
		t.Errorf("lngraph_imports_total series = %d (err %v), want 2", n, err)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	st := memory.New()
	src := &fakeSource{data: []byte(testGraph)}
	im := NewImporter(src, st, &events.NoopPublisher{}, discardLogger())

	sched := NewScheduler(im, 50*time.Millisecond, discardLogger())
	sched.Start()

	// Wait for at least the initial import + one tick.
	time.Sleep(120 * time.Millisecond)
	sched.Stop()

	if n := src.fetches.Load(); n < 2 {
		t.Fatalf("expected at least 2 fetches, got %d", n)
	}
	snaps, _ := st.ListSnapshots(context.Background(), 0)
	if int64(len(snaps)) != src.fetches.Load() {
		t.Errorf("stored %d snapshots for %d fetches", len(snaps), src.fetches.Load())
	}

	// No further imports after Stop.
	n := src.fetches.Load()
	time.Sleep(80 * time.Millisecond)
	if src.fetches.Load() != n {
		t.Error("scheduler kept importing after Stop")
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	im := NewImporter(&fakeSource{}, memory.New(), &events.NoopPublisher{}, discardLogger())
	sched := NewScheduler(im, time.Minute, discardLogger())
	// Stop without Start should not panic.
	sched.Stop()
}

func TestSchedulerContinuesAfterFailure(t *testing.T) {
	src := &fakeSource{data: []byte(`not json`)}
	im := NewImporter(src, memory.New(), &events.NoopPublisher{}, discardLogger())

	sched := NewScheduler(im, 20*time.Millisecond, discardLogger())
	sched.Start()
	time.Sleep(70 * time.Millisecond)
	sched.Stop()

	if n := src.fetches.Load(); n < 2 {
		t.Errorf("expected retries after failure, got %d fetches", n)
	}
}
