// Package server exposes graph decoding and snapshot storage over HTTP/JSON
// and gRPC.
package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/lngraph/internal/events"
	"github.com/alfredjeanlab/lngraph/internal/metrics"
	"github.com/alfredjeanlab/lngraph/internal/source"
	"github.com/alfredjeanlab/lngraph/internal/store"
)

// DefaultMaxBodyBytes bounds request bodies when Options.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 64 << 20

// Options configures a Server.
type Options struct {
	MaxBodyBytes int64
	// Sources configures server-side fetches for POST /v1/snapshots?source=.
	Sources source.Options
	// AllowFileSources permits ?source= to name a path on the server's
	// filesystem.
	AllowFileSources bool
	// AllowRemoteSources permits ?source= to name an http(s) or s3 URI.
	AllowRemoteSources bool
	Logger           *slog.Logger
	// Metrics receives decode and request metrics and backs GET /metrics.
	// Nil disables both.
	Metrics *metrics.Metrics
}

// Server serves the HTTP and gRPC APIs. A nil store disables the snapshot
// endpoints.
type Server struct {
	store     store.Store
	publisher events.Publisher
	hub       *sseHub
	metrics   *metrics.Metrics
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a Server backed by the given store and publisher.
func New(st store.Store, pub events.Publisher, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	hub := newSSEHub()
	return &Server{
		store:     st,
		publisher: &streamPublisher{next: pub, hub: hub, logger: logger},
		hub:       hub,
		metrics:   opts.Metrics,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Publisher returns the server's publisher. Events published through it
// also reach GET /v1/events/stream clients.
func (s *Server) Publisher() events.Publisher { return s.publisher }

// errSourceForbidden rejects a ?source= kind the server is not configured
// to fetch.
var errSourceForbidden = errors.New("source not allowed")
