package holiday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tartampluch/go-lunarcal/internal/config"
)

// Error kinds reported by sources. They are always wrapped; test with errors.Is.
var (
	ErrInvalidConfiguration = errors.New(config.ErrInvalidConfig)
	ErrNetworkFailure       = errors.New(config.ErrNetwork)
	ErrServerError          = errors.New(config.ErrServerStatus)
	ErrDecodeFailure        = errors.New(config.ErrDecode)
)

// Entry is one holiday as served by the remote endpoint.
type Entry struct {
	ID        string `json:"id" yaml:"id"`
	Date      string `json:"date" yaml:"date"` // YYYY-MM-DD
	Name      string `json:"name" yaml:"name"`
	IsHoliday bool   `json:"is_holiday" yaml:"is_holiday"`
}

// Response is the body of the holiday endpoint.
type Response struct {
	Holidays []Entry `json:"holidays" yaml:"holidays"`
	Year     int     `json:"year" yaml:"year"`
}

// Source provides a full holiday set. Implementations must not return a
// partial Response alongside an error.
type Source interface {
	Fetch(ctx context.Context) (Response, error)
}

// HTTPSource fetches holidays with an authenticated GET.
type HTTPSource struct {
	URL    string
	Token  string // sent as "Authorization: Bearer <token>" when set
	Client *http.Client
}

// NewHTTPSource creates an HTTPSource with the default timeout.
func NewHTTPSource(endpoint, token string) *HTTPSource {
	return &HTTPSource{
		URL:   endpoint,
		Token: token,
		Client: &http.Client{
			Timeout: config.HTTPTimeout,
		},
	}
}

// Fetch downloads and decodes the holiday list.
// The body is capped at config.MaxHTTPResponseSize.
func (s *HTTPSource) Fetch(ctx context.Context) (Response, error) {
	if s.URL == "" {
		return Response{}, fmt.Errorf("%w: %s", ErrInvalidConfiguration, config.ErrURLEmpty)
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, config.ErrInvalidURL, err)
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return Response{}, fmt.Errorf("%w: %s: %s", ErrInvalidConfiguration, config.ErrProtocol, u.Scheme)
	}

	// Query strings may carry credentials; keep them out of the logs.
	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompFetcher),
		slog.String(config.LogKeyURL, u.Scheme+"://"+u.Host+u.Path),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	req.Header.Set(config.HeaderAccept, config.MimeJSON)
	if s.Token != "" {
		req.Header.Set(config.HeaderAuthorization, config.BearerPrefix+s.Token)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	log.Debug("Requesting holidays")
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("%w: %w", ErrNetworkFailure, ctx.Err())
		}
		return Response{}, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Warn("Server returned error status", slog.Int(config.LogKeyStatus, resp.StatusCode))
		return Response{}, fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var out Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, config.MaxHTTPResponseSize)).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	log.Info("Holidays downloaded", slog.Int(config.LogKeyCount, len(out.Holidays)), slog.Int(config.LogKeyYear, out.Year))
	return out, nil
}
