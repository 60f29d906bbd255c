package middleware

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestRedactPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/skipSegments/abcd", "/api/skipSegments/:hashPrefix"},
		{"/api/skipSegments/", "/api/skipSegments/"},
		{"/api/skipSegments", "/api/skipSegments"},
		{"/api/voteOnSponsorTime", "/api/voteOnSponsorTime"},
		{"/health/live", "/health/live"},
	}
	for _, tt := range tests {
		if got := redactPath(tt.in); got != tt.want {
			t.Errorf("redactPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIPToken(t *testing.T) {
	a := ipToken("127.0.0.1")
	if len(a) != 12 {
		t.Fatalf("len = %d, want 12", len(a))
	}
	if a == ipToken("127.0.0.2") {
		t.Fatal("different IPs should produce different tokens")
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		status int
		want   zerolog.Level
	}{
		{200, zerolog.InfoLevel},
		{404, zerolog.WarnLevel},
		{429, zerolog.WarnLevel},
		{500, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := levelFor(tt.status); got != tt.want {
			t.Errorf("levelFor(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
