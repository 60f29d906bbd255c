// Package videoapi fetches video metadata (duration, channel) from an
// Invidious-compatible HTTP API.
package videoapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coocood/freecache"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/mathieu-neron/segvote/internal/config"
	"github.com/mathieu-neron/segvote/internal/model"
)

// ErrNotFound is returned when the API has no record of the video.
var ErrNotFound = errors.New("video not found")

const (
	maxBodyBytes        = 1 << 20
	defaultFetchTimeout = 10 * time.Second
)

// Details is the subset of video metadata the vote path needs.
type Details struct {
	Duration  float64 `json:"lengthSeconds"`
	ChannelID string  `json:"authorId"`
}

// Client is safe for concurrent use. A Client with no base URL reports every
// video with zero duration, which callers treat as unknown.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	group    singleflight.Group
	cache    *freecache.Cache
	cacheTTL int
	logger   zerolog.Logger

	fetchTimeout time.Duration
}

func New(cfg config.VideoAPIConfig, logger zerolog.Logger) *Client {
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = max(int(cfg.RatePerSecond), 1)
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With().Str("component", "videoapi").Logger(),

		fetchTimeout: defaultFetchTimeout,
	}
	if cfg.Timeout > 0 {
		c.fetchTimeout = cfg.Timeout
	}
	if cfg.CacheSizeMB > 0 && cfg.CacheTTL > 0 {
		c.cache = freecache.NewCache(cfg.CacheSizeMB * 1024 * 1024)
		c.cacheTTL = max(int(cfg.CacheTTL/time.Second), 1)
	}
	if c.baseURL == "" {
		c.logger.Warn().Msg("no video API configured, duration checks disabled")
	}
	return c
}

// GetVideoDetails returns the video's metadata. bypassCache skips the local
// cache read but still refreshes it. Concurrent lookups for one video share a
// single upstream request.
func (c *Client) GetVideoDetails(ctx context.Context, videoID model.VideoID, bypassCache bool) (*Details, error) {
	if c.baseURL == "" {
		return &Details{}, nil
	}

	key := []byte(videoID)
	if !bypassCache && c.cache != nil {
		if raw, err := c.cache.Get(key); err == nil {
			var d Details
			if err := json.Unmarshal(raw, &d); err == nil {
				return &d, nil
			}
		}
	}

	// The shared fetch runs detached so a cancelled caller cannot fail the
	// others waiting on the same video.
	ch := c.group.DoChan(string(videoID), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		d, err := c.fetch(fetchCtx, videoID)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			if raw, err := json.Marshal(d); err == nil {
				_ = c.cache.Set(key, raw, c.cacheTTL)
			}
		}
		return d, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		d := *res.Val.(*Details)
		return &d, nil
	}
}

func (c *Client) fetch(ctx context.Context, videoID model.VideoID) (*Details, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("video api rate limit: %w", err)
	}

	endpoint := c.baseURL + "/api/v1/videos/" + url.PathEscape(string(videoID)) + "?fields=lengthSeconds,authorId"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build video api request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video api request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("video_id", string(videoID)).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("video api lookup")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("video api: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read video api response: %w", err)
	}
	var d Details
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("decode video api response: %w", err)
	}
	return &d, nil
}
