package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alfredjeanlab/lngraph/internal/model"
	"github.com/nats-io/nats.go"
)

func TestNoopPublisher_Publish(t *testing.T) {
	pub := &NoopPublisher{}
	err := pub.Publish(context.Background(), TopicSnapshotDeleted, SnapshotDeleted{})
	if err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
}

func TestNoopPublisher_Close(t *testing.T) {
	pub := &NoopPublisher{}
	err := pub.Close()
	if err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestNoopPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	// Subscribe to capture published messages.
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicSnapshotImported, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := SnapshotImported{Snapshot: &model.Snapshot{ID: "snap-pub1", Stats: model.Stats{NumNodes: 7}}}
	if err := pub.Publish(context.Background(), TopicSnapshotImported, event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got SnapshotImported
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Snapshot.ID != "snap-pub1" || got.Snapshot.Stats.NumNodes != 7 {
			t.Errorf("got snapshot %+v", got.Snapshot)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_PublishMultipleTopics(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe(TopicAll, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	for _, tc := range []struct {
		topic string
		event any
	}{
		{TopicSnapshotImported, SnapshotImported{Snapshot: &model.Snapshot{ID: "snap-1"}}},
		{TopicSnapshotDeleted, SnapshotDeleted{SnapshotID: "snap-2"}},
		{TopicDecodeFailed, DecodeFailed{Source: "file:x.json", Error: "missing field: nodes"}},
		{TopicSnapshotDeleted, SnapshotDeleted{SnapshotID: "snap-3"}},
	} {
		if err := pub.Publish(context.Background(), tc.topic, tc.event); err != nil {
			t.Fatalf("Publish(%s): %v", tc.topic, err)
		}
	}
	pub.conn.Flush()

	for i := 0; i < 4; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Publishing after close should fail.
	err = pub.Publish(context.Background(), TopicSnapshotDeleted, SnapshotDeleted{})
	if err == nil {
		t.Error("expected error publishing after close")
	}
}

func TestNewDecodeFailed(t *testing.T) {
	_, err := model.DecodeString(`{"nodes":[],"edges":[{}]}`)
	ev := NewDecodeFailed("file:graph.json", err)
	if ev.Source != "file:graph.json" || ev.Kind != "missing_field" || ev.Field != "edges[0].channel_id" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Error != err.Error() {
		t.Errorf("Error = %q, want %q", ev.Error, err.Error())
	}

	ev = NewDecodeFailed("s3://b/k", errors.New("s3 get object: access denied"))
	if ev.Kind != "" || ev.Field != "" {
		t.Errorf("plain error produced kind/field: %+v", ev)
	}
}

func TestDescribe(t *testing.T) {
	for _, tc := range []struct {
		name  string
		topic string
		data  string
		want  string
	}{
		{
			name:  "Imported",
			topic: TopicSnapshotImported,
			data:  `{"snapshot":{"id":"snap-1","source":"file:g.json","stats":{"num_nodes":2,"num_channels":1}}}`,
			want:  "snap-1 imported from file:g.json: 2 nodes, 1 channels",
		},
		{
			name:  "Deleted",
			topic: TopicSnapshotDeleted,
			data:  `{"snapshot_id":"snap-1"}`,
			want:  "snap-1 deleted",
		},
		{
			name:  "DecodeFailed",
			topic: TopicDecodeFailed,
			data:  `{"source":"stdin","error":"missing field: nodes"}`,
			want:  "decode of stdin failed: missing field: nodes",
		},
		{
			name:  "Malformed",
			topic: TopicSnapshotDeleted,
			data:  `not json`,
			want:  "not json",
		},
		{
			name:  "UnknownTopic",
			topic: "lngraph.other",
			data:  `{"x":1}`,
			want:  `{"x":1}`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := Describe(tc.topic, []byte(tc.data)); got != tc.want {
				t.Errorf("Describe = %q, want %q", got, tc.want)
			}
		})
	}
}
