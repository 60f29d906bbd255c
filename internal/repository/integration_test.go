//go:build integration

// Repository tests against a real Postgres. Each test gets its own public and
// private schemas, dropped on cleanup.
//
// Run with: SEGVOTE_TEST_DATABASE_URL=postgres://... go test -tags=integration ./internal/repository/...
package repository

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathieu-neron/segvote/internal/db"
	"github.com/mathieu-neron/segvote/internal/model"
)

type stores struct {
	public  *pgxpool.Pool
	private *pgxpool.Pool
}

func setupStores(t *testing.T) stores {
	t.Helper()
	url := os.Getenv("SEGVOTE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SEGVOTE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(admin.Close)

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	public := "test_public_" + suffix
	private := "test_private_" + suffix

	open := func(schema string) *pgxpool.Pool {
		_, err := admin.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA %q`, schema))
		require.NoError(t, err)
		t.Cleanup(func() {
			admin.Exec(context.Background(), fmt.Sprintf(`DROP SCHEMA %q CASCADE`, schema))
		})

		cfg, err := pgxpool.ParseConfig(url)
		require.NoError(t, err)
		cfg.ConnConfig.RuntimeParams["search_path"] = schema
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		require.NoError(t, err)
		t.Cleanup(pool.Close)
		return pool
	}

	s := stores{public: open(public), private: open(private)}
	require.NoError(t, db.Migrate(ctx, &db.Pools{Public: s.public, Replica: s.public, Private: s.private}))
	return s
}

func mustExec(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) {
	t.Helper()
	_, err := pool.Exec(context.Background(), sql, args...)
	require.NoError(t, err)
}

func insertSegment(t *testing.T, pool *pgxpool.Pool, s model.Segment) {
	t.Helper()
	mustExec(t, pool, `
		INSERT INTO "sponsorTimes" ("UUID", "videoID", "category", "startTime", "endTime",
			"votes", "hidden", "shadowHidden", "userID", "timeSubmitted")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.UUID, s.VideoID, s.Category, s.StartTime, s.EndTime,
		s.Votes, s.Hidden, s.ShadowHidden, s.UserID, s.TimeSubmitted)
}

func TestCategoryVoteRepo_AddAndEnsure(t *testing.T) {
	s := setupStores(t)
	repo := NewCategoryVoteRepo(s.public)
	ctx := context.Background()

	_, ok, err := repo.CategoryVotes(ctx, "seg", "sponsor")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.AddCategoryVotes(ctx, "seg", "sponsor", 1))
	require.NoError(t, repo.AddCategoryVotes(ctx, "seg", "sponsor", 5))
	require.NoError(t, repo.AddCategoryVotes(ctx, "seg", "sponsor", -2))

	votes, ok, err := repo.CategoryVotes(ctx, "seg", "sponsor")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, votes)

	// Seeding an existing row leaves its weight alone.
	require.NoError(t, repo.EnsureCategoryVotes(ctx, "seg", "sponsor", 1))
	votes, _, err = repo.CategoryVotes(ctx, "seg", "sponsor")
	require.NoError(t, err)
	assert.Equal(t, 4, votes)

	require.NoError(t, repo.EnsureCategoryVotes(ctx, "seg", "intro", 1))
	votes, ok, err = repo.CategoryVotes(ctx, "seg", "intro")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, votes)
}

func TestUserRepo_Gates(t *testing.T) {
	s := setupStores(t)
	repo := NewUserRepo(s.public)
	ctx := context.Background()

	mustExec(t, s.public, `INSERT INTO "vipUsers" ("userID") VALUES ('vip')`)
	mustExec(t, s.public, `INSERT INTO "shadowBannedUsers" ("userID") VALUES ('banned')`)
	mustExec(t, s.public, `INSERT INTO "shadowBannedIPs" ("hashedIP") VALUES ('bad-ip')`)

	vip, err := repo.IsVIP(ctx, "vip")
	require.NoError(t, err)
	assert.True(t, vip)
	vip, err = repo.IsVIP(ctx, "someone")
	require.NoError(t, err)
	assert.False(t, vip)

	tests := []struct {
		name string
		user model.HashedUserID
		ip   model.HashedIP
		want bool
	}{
		{"clean", "someone", "ip", false},
		{"banned user", "banned", "ip", true},
		{"banned ip", "someone", "bad-ip", true},
		{"both", "banned", "bad-ip", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.IsBanned(ctx, tt.user, tt.ip)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserRepo_ActiveWarningsNewestFirst(t *testing.T) {
	s := setupStores(t)
	repo := NewUserRepo(s.public)

	insert := func(user string, issued int64, enabled, typ int) {
		mustExec(t, s.public, `
			INSERT INTO "warnings" ("userID", "issueTime", "enabled", "type", "reason")
			VALUES ($1, $2, $3, $4, $5)`, user, issued, enabled, typ, fmt.Sprint(issued))
	}
	insert("u", 100, 1, model.WarningTypeStandard) // before the window
	insert("u", 300, 1, model.WarningTypeStandard)
	insert("u", 500, 1, model.WarningTypeStandard)
	insert("u", 400, 0, model.WarningTypeStandard) // disabled
	insert("u", 450, 1, 1)                         // other type
	insert("other", 600, 1, model.WarningTypeStandard)

	warnings, err := repo.ActiveWarnings(context.Background(), "u", 200)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	assert.Equal(t, int64(500), warnings[0].IssueTime)
	assert.Equal(t, "500", warnings[0].Reason)
	assert.Equal(t, int64(300), warnings[1].IssueTime)
}

func TestSegmentRepo_HasCountedSubmission(t *testing.T) {
	s := setupStores(t)
	repo := NewSegmentRepo(s.public, nil)

	base := model.Segment{VideoID: "v", Category: "sponsor", StartTime: 1, EndTime: 2, UserID: "u", TimeSubmitted: 1}
	seg := func(id model.SegmentID, mut func(*model.Segment)) model.Segment {
		s := base
		s.UUID = id
		mut(&s)
		return s
	}
	insertSegment(t, s.public, seg("hidden", func(s *model.Segment) { s.Hidden = 1 }))
	insertSegment(t, s.public, seg("shadow", func(s *model.Segment) { s.ShadowHidden = 1 }))
	insertSegment(t, s.public, seg("downvoted", func(s *model.Segment) { s.Votes = -2 }))
	insertSegment(t, s.public, seg("counted", func(s *model.Segment) { s.Category = "intro"; s.Votes = -1 }))

	tests := []struct {
		category model.Category
		want     bool
	}{
		{"sponsor", false},
		{"intro", true},
		{"outro", false},
	}
	for _, tt := range tests {
		got, err := repo.HasCountedSubmission(context.Background(), "u", tt.category)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "category %s", tt.category)
	}
}

func TestSegmentRepo_VoteMutations(t *testing.T) {
	s := setupStores(t)
	repo := NewSegmentRepo(s.public, nil)
	ctx := context.Background()

	insertSegment(t, s.public, model.Segment{
		UUID: "seg", VideoID: "v", Category: "sponsor", StartTime: 1, EndTime: 2,
		Hidden: 1, ShadowHidden: 1, UserID: "u", TimeSubmitted: 1,
	})

	require.NoError(t, repo.AddVotes(ctx, "seg", 2))
	require.NoError(t, repo.AddVotes(ctx, "seg", -1))
	require.NoError(t, repo.LockAndUnhide(ctx, "seg"))
	require.NoError(t, repo.SetCategory(ctx, "seg", "outro"))

	got, err := repo.FindByUUID(ctx, "seg")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Votes)
	assert.True(t, got.Locked)
	assert.True(t, got.Visible())
	assert.Equal(t, model.Category("outro"), got.Category)
	assert.Equal(t, model.ServiceYouTube, got.Service)

	missing, err := repo.FindByUUID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestVoteRepo_RowsAndIPGate(t *testing.T) {
	s := setupStores(t)
	repo := NewVoteRepo(s.private)
	ctx := context.Background()

	v := model.Vote{UUID: "seg", UserID: "voter-a", HashedIP: "ip", Type: model.VoteUpvote, OriginalType: model.VoteUpvote, NormalUserID: "a"}
	require.NoError(t, repo.InsertVote(ctx, v))
	require.NoError(t, repo.UpdateVote(ctx, "seg", "voter-a", model.VoteUndo, model.VoteUpvote))

	got, err := repo.FindVote(ctx, "seg", "voter-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.VoteUndo, got.Type)
	assert.Equal(t, model.VoteUpvote, got.OriginalType)

	tests := []struct {
		name   string
		ip     model.HashedIP
		except model.SegmentVoterID
		want   bool
	}{
		{"same voter", "ip", "voter-a", false},
		{"other voter same ip", "ip", "voter-b", true},
		{"other ip", "ip2", "voter-b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.HasOtherVoteFromIP(ctx, "seg", tt.ip, tt.except)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVoteRepo_CategoryChoice(t *testing.T) {
	s := setupStores(t)
	repo := NewVoteRepo(s.private)
	ctx := context.Background()

	c, err := repo.FindCategoryChoice(ctx, "seg", "u")
	require.NoError(t, err)
	assert.Nil(t, c)

	require.NoError(t, repo.InsertCategoryChoice(ctx, model.CategoryChoice{
		UUID: "seg", UserID: "u", HashedIP: "unknown", Category: "sponsor", TimeSubmitted: 10,
	}))
	require.NoError(t, repo.UpdateCategoryChoice(ctx, model.CategoryChoice{
		UUID: "seg", UserID: "u", HashedIP: "ip", Category: "outro", TimeSubmitted: 20,
	}))

	c, err = repo.FindCategoryChoice(ctx, "seg", "u")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, model.Category("outro"), c.Category)
	assert.Equal(t, model.HashedIP("ip"), c.HashedIP)
	assert.Equal(t, int64(20), c.TimeSubmitted)
}
