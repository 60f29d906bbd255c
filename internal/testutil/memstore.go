// Package testutil provides in-memory fakes of the persistence, lock and
// video API collaborators used by the vote path.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mathieu-neron/segvote/internal/model"
)

type lockCategory struct {
	VideoID    model.VideoID
	Service    model.Service
	Category   model.Category
	ActionType model.ActionType
}

type catKey struct {
	UUID     model.SegmentID
	Category model.Category
}

type voteKey struct {
	UUID  model.SegmentID
	Voter model.SegmentVoterID
}

type choiceKey struct {
	UUID   model.SegmentID
	UserID model.HashedUserID
}

// MemStore implements every store interface of the service package.
type MemStore struct {
	mu sync.Mutex

	segments    map[model.SegmentID]*model.Segment
	votes       map[voteKey]model.Vote
	choices     map[choiceKey]model.CategoryChoice
	catVotes    map[catKey]int
	lockCats    []lockCategory
	vips        map[model.HashedUserID]bool
	bannedUsers map[model.HashedUserID]bool
	bannedIPs   map[model.HashedIP]bool
	warnings    []model.Warning

	// Err, when set, is returned by every mutating call.
	Err error
}

func NewMemStore() *MemStore {
	return &MemStore{
		segments:    make(map[model.SegmentID]*model.Segment),
		votes:       make(map[voteKey]model.Vote),
		choices:     make(map[choiceKey]model.CategoryChoice),
		catVotes:    make(map[catKey]int),
		vips:        make(map[model.HashedUserID]bool),
		bannedUsers: make(map[model.HashedUserID]bool),
		bannedIPs:   make(map[model.HashedIP]bool),
	}
}

// Seeding helpers.

func (m *MemStore) PutSegment(s model.Segment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Service == "" {
		s.Service = model.ServiceYouTube
	}
	m.segments[s.UUID] = &s
}

// Segment returns a copy of the stored segment.
func (m *MemStore) Segment(id model.SegmentID) model.Segment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.segments[id]; ok {
		return *s
	}
	return model.Segment{}
}

func (m *MemStore) PutVote(v model.Vote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votes[voteKey{v.UUID, v.UserID}] = v
}

func (m *MemStore) Vote(id model.SegmentID, voter model.SegmentVoterID) (model.Vote, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[voteKey{id, voter}]
	return v, ok
}

func (m *MemStore) VoteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.votes)
}

func (m *MemStore) Choice(id model.SegmentID, userID model.HashedUserID) (model.CategoryChoice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.choices[choiceKey{id, userID}]
	return c, ok
}

func (m *MemStore) SetCategoryVotes(id model.SegmentID, category model.Category, votes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catVotes[catKey{id, category}] = votes
}

// CategoryVoteCount returns the aggregate and whether the row exists.
func (m *MemStore) CategoryVoteCount(id model.SegmentID, category model.Category) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.catVotes[catKey{id, category}]
	return v, ok
}

func (m *MemStore) LockCategory(videoID model.VideoID, service model.Service, category model.Category, action model.ActionType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockCats = append(m.lockCats, lockCategory{videoID, service, category, action})
}

func (m *MemStore) LockCategoryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lockCats)
}

func (m *MemStore) AddVIP(userID model.HashedUserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vips[userID] = true
}

func (m *MemStore) BanUser(userID model.HashedUserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bannedUsers[userID] = true
}

func (m *MemStore) BanIP(ip model.HashedIP) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bannedIPs[ip] = true
}

func (m *MemStore) AddWarning(w model.Warning) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings = append(m.warnings, w)
}

// SegmentStore

func (m *MemStore) FindByUUID(_ context.Context, id model.SegmentID) (*model.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.segments[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MemStore) HasCountedSubmission(_ context.Context, userID model.HashedUserID, category model.Category) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.segments {
		if s.UserID == userID && s.Category == category && s.Visible() {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) mutate(id model.SegmentID, fn func(*model.Segment)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if s, ok := m.segments[id]; ok {
		fn(s)
	}
	return nil
}

func (m *MemStore) AddVotes(_ context.Context, id model.SegmentID, delta int) error {
	return m.mutate(id, func(s *model.Segment) { s.Votes += delta })
}

func (m *MemStore) Unhide(_ context.Context, id model.SegmentID) error {
	return m.mutate(id, func(s *model.Segment) { s.Hidden, s.ShadowHidden = 0, 0 })
}

func (m *MemStore) LockAndUnhide(_ context.Context, id model.SegmentID) error {
	return m.mutate(id, func(s *model.Segment) { s.Locked, s.Hidden, s.ShadowHidden = true, 0, 0 })
}

func (m *MemStore) Unlock(_ context.Context, id model.SegmentID) error {
	return m.mutate(id, func(s *model.Segment) { s.Locked = false })
}

func (m *MemStore) SetVideoDuration(_ context.Context, id model.SegmentID, duration float64) error {
	return m.mutate(id, func(s *model.Segment) { s.VideoDuration = duration })
}

func (m *MemStore) SetCategory(_ context.Context, id model.SegmentID, category model.Category) error {
	return m.mutate(id, func(s *model.Segment) { s.Category = category })
}

func (m *MemStore) LatestVisibleSubmission(_ context.Context, videoID model.VideoID, service model.Service) (*model.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.Segment
	for _, s := range m.segments {
		if s.VideoID != videoID || s.Service != service || !s.Visible() ||
			s.ActionType == model.ActionFull || s.VideoDuration == 0 {
			continue
		}
		if latest == nil || s.TimeSubmitted > latest.TimeSubmitted {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *MemStore) HideSubmittedBefore(_ context.Context, videoID model.VideoID, service model.Service, before int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	var n int64
	for _, s := range m.segments {
		if s.VideoID == videoID && s.Service == service && s.TimeSubmitted <= before &&
			s.Visible() && s.VideoDuration != 0 {
			s.Hidden = 1
			n++
		}
	}
	return n, nil
}

func (m *MemStore) ListVisibleByVideo(_ context.Context, videoID model.VideoID, service model.Service) ([]model.Segment, error) {
	return m.list(func(s *model.Segment) bool { return s.VideoID == videoID && s.Service == service }), nil
}

func (m *MemStore) ListVisibleByHashPrefix(_ context.Context, prefix string, service model.Service) ([]model.Segment, error) {
	return m.list(func(s *model.Segment) bool {
		return strings.HasPrefix(string(s.HashedVideoID), prefix) && s.Service == service
	}), nil
}

func (m *MemStore) list(match func(*model.Segment) bool) []model.Segment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Segment
	for _, s := range m.segments {
		if s.Visible() && match(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VideoID != out[j].VideoID {
			return out[i].VideoID < out[j].VideoID
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// LockCategoryStore

func (m *MemStore) IsActionLocked(_ context.Context, videoID model.VideoID, service model.Service, category model.Category, action model.ActionType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lockCats {
		if l.VideoID == videoID && l.Service == service && l.Category == category && l.ActionType == action {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) IsCategoryLocked(_ context.Context, videoID model.VideoID, service model.Service, category model.Category) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lockCats {
		if l.VideoID == videoID && l.Service == service && l.Category == category {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) DeleteByVideo(_ context.Context, videoID model.VideoID, service model.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	kept := m.lockCats[:0]
	for _, l := range m.lockCats {
		if l.VideoID != videoID || l.Service != service {
			kept = append(kept, l)
		}
	}
	m.lockCats = kept
	return nil
}

// UserStore

func (m *MemStore) IsVIP(_ context.Context, userID model.HashedUserID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vips[userID], nil
}

func (m *MemStore) IsBanned(_ context.Context, userID model.HashedUserID, ip model.HashedIP) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bannedUsers[userID] || m.bannedIPs[ip], nil
}

func (m *MemStore) ActiveWarnings(_ context.Context, userID model.HashedUserID, since int64) ([]model.Warning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Warning
	for _, w := range m.warnings {
		if w.UserID == userID && w.Enabled && w.Type == model.WarningTypeStandard && w.IssueTime > since {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssueTime > out[j].IssueTime })
	return out, nil
}

// VoteStore

func (m *MemStore) FindVote(_ context.Context, id model.SegmentID, voter model.SegmentVoterID) (*model.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[voteKey{id, voter}]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *MemStore) InsertVote(_ context.Context, v model.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.votes[voteKey{v.UUID, v.UserID}] = v
	return nil
}

func (m *MemStore) UpdateVote(_ context.Context, id model.SegmentID, voter model.SegmentVoterID, voteType, originalType model.VoteType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	k := voteKey{id, voter}
	v := m.votes[k]
	v.Type, v.OriginalType = voteType, originalType
	m.votes[k] = v
	return nil
}

func (m *MemStore) HasOtherVoteFromIP(_ context.Context, id model.SegmentID, ip model.HashedIP, except model.SegmentVoterID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.votes {
		if k.UUID == id && v.HashedIP == ip && k.Voter != except {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) FindCategoryChoice(_ context.Context, id model.SegmentID, userID model.HashedUserID) (*model.CategoryChoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.choices[choiceKey{id, userID}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemStore) InsertCategoryChoice(_ context.Context, c model.CategoryChoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.choices[choiceKey{c.UUID, c.UserID}] = c
	return nil
}

func (m *MemStore) UpdateCategoryChoice(_ context.Context, c model.CategoryChoice) error {
	return m.InsertCategoryChoice(context.Background(), c)
}

// CategoryVoteStore

func (m *MemStore) CategoryVotes(_ context.Context, id model.SegmentID, category model.Category) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.catVotes[catKey{id, category}]
	return v, ok, nil
}

func (m *MemStore) AddCategoryVotes(_ context.Context, id model.SegmentID, category model.Category, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.catVotes[catKey{id, category}] += amount
	return nil
}

func (m *MemStore) EnsureCategoryVotes(_ context.Context, id model.SegmentID, category model.Category, seed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	k := catKey{id, category}
	if _, ok := m.catVotes[k]; !ok {
		m.catVotes[k] = seed
	}
	return nil
}
