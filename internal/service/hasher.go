package service

import (
	"github.com/coocood/freecache"

	"github.com/mathieu-neron/segvote/internal/model"
	"github.com/mathieu-neron/segvote/pkg/hash"
)

// memoTTL is in seconds; zero keeps entries until evicted.
const memoTTL = 0

// Hasher derives the pseudonymous identities stored by the vote path. The
// iterated hashes are expensive, so results are memoized in a bounded
// in-process cache.
type Hasher struct {
	salt string
	memo *freecache.Cache
}

// NewHasher returns a Hasher. memoSizeMB <= 0 disables memoization.
func NewHasher(salt string, memoSizeMB int) *Hasher {
	h := &Hasher{salt: salt}
	if memoSizeMB > 0 {
		h.memo = freecache.NewCache(memoSizeMB * 1024 * 1024)
	}
	return h
}

func (h *Hasher) UserID(raw model.RawUserID) model.HashedUserID {
	return model.HashedUserID(h.memoize("u:"+string(raw), func() string {
		return hash.HashUserID(string(raw))
	}))
}

func (h *Hasher) SegmentVoter(raw model.RawUserID, segmentID model.SegmentID) model.SegmentVoterID {
	return model.SegmentVoterID(h.memoize("s:"+string(raw)+string(segmentID), func() string {
		return hash.HashSegmentVoter(string(raw), string(segmentID))
	}))
}

func (h *Hasher) IP(ip string) model.HashedIP {
	return model.HashedIP(h.memoize("i:"+ip, func() string {
		return hash.HashIP(ip, h.salt)
	}))
}

// VideoID hashes once; hash-prefix lookups depend on the single round.
func (h *Hasher) VideoID(videoID model.VideoID) model.HashedVideoID {
	return model.HashedVideoID(hash.SHA256Hex(string(videoID)))
}

func (h *Hasher) memoize(key string, compute func() string) string {
	if h.memo == nil {
		return compute()
	}
	if v, err := h.memo.Get([]byte(key)); err == nil {
		return string(v)
	}
	v := compute()
	_ = h.memo.Set([]byte(key), []byte(v), memoTTL)
	return v
}
