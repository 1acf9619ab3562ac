package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tartampluch/go-lunarcal/internal/config"
)

// feed is one published iCalendar document. Never mutated after Publish.
type feed struct {
	data    []byte
	etag    string
	modTime time.Time
}

// FeedServer serves the schedule and holiday feed to calendar clients on
// localhost. Publish may run concurrently with any number of requests.
type FeedServer struct {
	current atomic.Pointer[feed]
	Port    string
}

// NewFeedServer creates a server for the given port. Nothing is served
// (503) until the first Publish.
func NewFeedServer(port string) *FeedServer {
	return &FeedServer{Port: port}
}

// Handler returns the routing table: "/" and config.RouteCalendar.
func (s *FeedServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(config.RouteRoot+"{$}", s.serveFeed)
	mux.HandleFunc(config.RouteCalendar, s.serveFeed)
	return mux
}

// Start listens on 127.0.0.1:Port and blocks until ctx is cancelled or the
// listener fails.
func (s *FeedServer) Start(ctx context.Context) error {
	if s.Port == "" {
		return errors.New(config.ErrPortRequired)
	}

	srv := &http.Server{
		Addr:         config.LocalhostBindAddr + config.AddrSeparator + s.Port,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)
	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyPort, s.Port,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// Publish replaces the served document. A document that matches the current
// one apart from its DTSTAMP lines is dropped, so the ETag and modification
// time stay put and clients keep getting 304s.
func (s *FeedServer) Publish(data []byte) {
	etag := feedETag(data)
	if prev := s.current.Load(); prev != nil && prev.etag == etag {
		return
	}

	s.current.Store(&feed{
		data:    data,
		etag:    etag,
		modTime: time.Now().UTC().Truncate(time.Second),
	})

	slog.Debug(config.MsgFeedUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeySizeBytes, len(data),
		config.LogKeyETag, etag,
	)
}

// feedETag hashes data without its DTSTAMP lines, which change on every
// build even when no event did.
func feedETag(data []byte) string {
	stamp := []byte(config.PropDTStamp + ":")
	h := sha256.New()
	for line := range bytes.Lines(data) {
		if bytes.HasPrefix(line, stamp) {
			continue
		}
		h.Write(line)
	}
	return fmt.Sprintf(config.FormatETag, hex.EncodeToString(h.Sum(nil)))
}

// Published reports whether a document is being served.
func (s *FeedServer) Published() bool {
	return s.current.Load() != nil
}

func (s *FeedServer) serveFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set(config.HeaderAllow, config.AllowedMethods)
		http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
		return
	}

	f := s.current.Load()
	if f == nil {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return
	}

	h := w.Header()
	h.Set(config.HeaderContentType, config.MimeTextCalendar)
	h.Set(config.HeaderXContentType, config.MimeNoSniff)
	h.Set(config.HeaderCacheControl, config.CacheControlPrivate)
	h.Set(config.HeaderETag, f.etag)
	h.Set(config.HeaderLastModified, f.modTime.Format(http.TimeFormat))

	if notModified(r, f) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(f.data); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}

// notModified evaluates If-None-Match first; If-Modified-Since is only
// consulted when the client sent no ETag.
func notModified(r *http.Request, f *feed) bool {
	if match := r.Header.Get(config.HeaderIfNoneMatch); match != "" {
		return match == f.etag
	}
	since := r.Header.Get(config.HeaderIfModifiedSince)
	if since == "" {
		return false
	}
	t, err := http.ParseTime(since)
	if err != nil {
		return false
	}
	return !f.modTime.After(t)
}
