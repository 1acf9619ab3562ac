package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-lunarcal/internal/config"
)

func do(t *testing.T, h http.Handler, method, path string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	resp := w.Result()
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// -----------------------------------------------------------------------------
// Handler
// -----------------------------------------------------------------------------

func TestFeed_ServesOnBothRoutes(t *testing.T) {
	srv := NewFeedServer("0")
	doc := []byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n")
	srv.Publish(doc)

	for _, path := range []string{"/", config.RouteCalendar} {
		t.Run(path, func(t *testing.T) {
			resp := do(t, srv.Handler(), http.MethodGet, path, nil)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, config.MimeTextCalendar, resp.Header.Get(config.HeaderContentType))
			assert.Equal(t, config.MimeNoSniff, resp.Header.Get(config.HeaderXContentType))
			assert.Contains(t, resp.Header.Get(config.HeaderCacheControl), "no-cache")
			assert.NotEmpty(t, resp.Header.Get(config.HeaderETag))
			assert.NotEmpty(t, resp.Header.Get(config.HeaderLastModified))

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, doc, body)
		})
	}
}

func TestFeed_UnknownPath(t *testing.T) {
	srv := NewFeedServer("0")
	srv.Publish([]byte("x"))

	resp := do(t, srv.Handler(), http.MethodGet, "/other.ics", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFeed_Head(t *testing.T) {
	srv := NewFeedServer("0")
	srv.Publish([]byte("BEGIN:VCALENDAR"))

	resp := do(t, srv.Handler(), http.MethodHead, config.RouteCalendar, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Empty(t, body)
}

// TestFeed_ConditionalRequests checks ETag and Last-Modified revalidation.
func TestFeed_ConditionalRequests(t *testing.T) {
	srv := NewFeedServer("0")
	srv.Publish([]byte("DATA_VERSION_1"))
	h := srv.Handler()

	first := do(t, h, http.MethodGet, "/", nil)
	etag := first.Header.Get(config.HeaderETag)
	lastMod := first.Header.Get(config.HeaderLastModified)
	require.NotEmpty(t, etag)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"Matching ETag", map[string]string{config.HeaderIfNoneMatch: etag}, http.StatusNotModified},
		{"Stale ETag", map[string]string{config.HeaderIfNoneMatch: `"old"`}, http.StatusOK},
		{"Same Last-Modified", map[string]string{config.HeaderIfModifiedSince: lastMod}, http.StatusNotModified},
		{"Old Last-Modified", map[string]string{config.HeaderIfModifiedSince: time.Unix(0, 0).UTC().Format(http.TimeFormat)}, http.StatusOK},
		{"ETag wins over date", map[string]string{config.HeaderIfNoneMatch: `"old"`, config.HeaderIfModifiedSince: lastMod}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, h, http.MethodGet, "/", tt.headers)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestFeed_RepublishingSameBytesKeepsETag(t *testing.T) {
	srv := NewFeedServer("0")
	srv.Publish([]byte("A"))
	before := srv.current.Load()

	srv.Publish([]byte("A"))
	assert.Same(t, before, srv.current.Load())

	srv.Publish([]byte("B"))
	assert.NotEqual(t, before.etag, srv.current.Load().etag)
}

func TestFeed_ETagIgnoresDTStamp(t *testing.T) {
	build := func(stamp, summary string) []byte {
		return []byte("BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\n" +
			config.PropDTStamp + ":" + stamp + "\r\n" +
			"SUMMARY:" + summary + "\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n")
	}

	tests := []struct {
		name     string
		a, b     []byte
		sameETag bool
	}{
		{"Only stamp differs", build("20251007T100000Z", "Dentist"), build("20251008T090000Z", "Dentist"), true},
		{"Summary differs", build("20251007T100000Z", "Dentist"), build("20251007T100000Z", "Doctor"), false},
		{"Stamp text in summary", build("20251007T100000Z", "DTSTAMP"), build("20251007T100000Z", "Dentist"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.sameETag, feedETag(tt.a) == feedETag(tt.b))
		})
	}
}

func TestFeed_RepublishingWithNewStampKeepsFeed(t *testing.T) {
	srv := NewFeedServer("0")
	first := []byte("BEGIN:VEVENT\r\nDTSTAMP:20251007T100000Z\r\nEND:VEVENT\r\n")
	srv.Publish(first)
	before := srv.current.Load()

	srv.Publish([]byte("BEGIN:VEVENT\r\nDTSTAMP:20251009T100000Z\r\nEND:VEVENT\r\n"))

	assert.Same(t, before, srv.current.Load())
	assert.Equal(t, first, srv.current.Load().data)
}

func TestFeed_MethodNotAllowed(t *testing.T) {
	srv := NewFeedServer("0")

	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		resp := do(t, srv.Handler(), m, "/", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, m)
		assert.Equal(t, config.AllowedMethods, resp.Header.Get(config.HeaderAllow))
	}
}

func TestFeed_BeforeFirstPublish(t *testing.T) {
	srv := NewFeedServer("0")
	assert.False(t, srv.Published())

	resp := do(t, srv.Handler(), http.MethodGet, config.RouteCalendar, nil)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, config.RetryAfterSeconds, resp.Header.Get(config.HeaderRetryAfter))
}

// TestFeed_ConcurrentPublish runs writers and readers together; run with -race.
func TestFeed_ConcurrentPublish(t *testing.T) {
	srv := NewFeedServer("0")
	h := srv.Handler()
	var wg sync.WaitGroup
	end := time.Now().Add(300 * time.Millisecond)

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; time.Now().Before(end); i++ {
				srv.Publish([]byte(fmt.Sprintf("VERSION:%d-%d", id, i)))
				time.Sleep(time.Microsecond)
			}
		}(w)
	}
	for r := 0; r < 16; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
				if w.Code != http.StatusOK && w.Code != http.StatusServiceUnavailable {
					t.Errorf("unexpected status %d", w.Code)
				}
			}
		}()
	}
	wg.Wait()
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	require.NoError(t, l.Close())
	return port
}

func TestServer_Lifecycle(t *testing.T) {
	port := freePort(t)
	srv := NewFeedServer(port)
	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() { errChan <- srv.Start(ctx) }()

	url := "http://127.0.0.1:" + port + config.RouteCalendar
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusServiceUnavailable
	}, 2*time.Second, 50*time.Millisecond, "server failed to listen in time")

	srv.Publish([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))

	resp, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "BEGIN:VCALENDAR")

	cancel()
	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server shutdown timed out")
	}
}

func TestServer_StartRequiresPort(t *testing.T) {
	err := NewFeedServer("").Start(context.Background())
	assert.EqualError(t, err, config.ErrPortRequired)
}

func TestServer_PortBusy(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()
	_, port, _ := net.SplitHostPort(l.Addr().String())

	err = NewFeedServer(port).Start(context.Background())
	assert.ErrorContains(t, err, config.ErrServerStartup)
}
