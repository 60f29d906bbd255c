package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathieu-neron/segvote/internal/model"
)

type fakeLister struct {
	byVideo  []model.SegmentResponse
	byPrefix []model.VideoSegments
	err      error

	gotVideo   model.VideoID
	gotPrefix  string
	gotService model.Service
}

func (f *fakeLister) ListByVideo(_ context.Context, videoID model.VideoID, svc model.Service) ([]model.SegmentResponse, error) {
	f.gotVideo, f.gotService = videoID, svc
	return f.byVideo, f.err
}

func (f *fakeLister) ListByHashPrefix(_ context.Context, prefix string, svc model.Service) ([]model.VideoSegments, error) {
	f.gotPrefix, f.gotService = prefix, svc
	return f.byPrefix, f.err
}

func segmentsApp(l SegmentLister) *fiber.App {
	app := fiber.New()
	h := NewSegmentHandler(l)
	app.Get("/api/skipSegments", h.GetByVideoID)
	app.Get("/api/skipSegments/:hashPrefix", h.GetByHashPrefix)
	return app
}

func TestSegmentHandler_ByVideo(t *testing.T) {
	l := &fakeLister{byVideo: []model.SegmentResponse{{UUID: "seg-1", Segment: [2]float64{1, 2}, Category: "sponsor"}}}
	app := segmentsApp(l)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/skipSegments?videoID=dQw4w9WgXcQ", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.VideoID("dQw4w9WgXcQ"), l.gotVideo)
	assert.Equal(t, model.ServiceYouTube, l.gotService)
	resp.Body.Close()
}

func TestSegmentHandler_ByVideoErrors(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		lister *fakeLister
		status int
	}{
		{"missing video", "/api/skipSegments", &fakeLister{}, http.StatusBadRequest},
		{"bad service", "/api/skipSegments?videoID=abc&service=you-tube", &fakeLister{}, http.StatusBadRequest},
		{"empty", "/api/skipSegments?videoID=abc", &fakeLister{}, http.StatusNotFound},
		{"store failure", "/api/skipSegments?videoID=abc", &fakeLister{err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := segmentsApp(tt.lister).Test(httptest.NewRequest(http.MethodGet, tt.url, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestSegmentHandler_ByHashPrefix(t *testing.T) {
	l := &fakeLister{byPrefix: []model.VideoSegments{{VideoID: "abc", Hash: "abcd1234"}}}
	app := segmentsApp(l)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/skipSegments/ABCD?service=PeerTube", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abcd", l.gotPrefix)
	assert.Equal(t, model.Service("PeerTube"), l.gotService)
	resp.Body.Close()
}

func TestSegmentHandler_ByHashPrefixErrors(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		lister *fakeLister
		status int
	}{
		{"too short", "/api/skipSegments/abc", &fakeLister{}, http.StatusBadRequest},
		{"not hex", "/api/skipSegments/zzzz", &fakeLister{}, http.StatusBadRequest},
		{"no match", "/api/skipSegments/abcd", &fakeLister{}, http.StatusNotFound},
		{"store failure", "/api/skipSegments/abcd", &fakeLister{err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := segmentsApp(tt.lister).Test(httptest.NewRequest(http.MethodGet, tt.url, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			resp.Body.Close()
		})
	}
}
