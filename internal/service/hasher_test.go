package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mathieu-neron/segvote/pkg/hash"
)

func TestHasher_MatchesHashPackage(t *testing.T) {
	for _, h := range []*Hasher{NewHasher("salt", 1), NewHasher("salt", 0)} {
		assert.Equal(t, hash.HashUserID("raw-user"), string(h.UserID("raw-user")))
		assert.Equal(t, hash.HashSegmentVoter("raw-user", "seg"), string(h.SegmentVoter("raw-user", "seg")))
		assert.Equal(t, hash.HashIP("1.2.3.4", "salt"), string(h.IP("1.2.3.4")))
		assert.Equal(t, hash.SHA256Hex("vid"), string(h.VideoID("vid")))
	}
}

func TestHasher_MemoizedValuesAreStable(t *testing.T) {
	h := NewHasher("salt", 1)
	first := h.UserID("raw-user")
	assert.Equal(t, first, h.UserID("raw-user"))
	assert.NotEqual(t, string(first), string(h.SegmentVoter("raw-user", "seg")))
}
