package team

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/basharatali122/hamza-website-backend/internal/apperrors"
	"github.com/basharatali122/hamza-website-backend/internal/logger"
	"github.com/basharatali122/hamza-website-backend/internal/models"
	"github.com/basharatali122/hamza-website-backend/internal/referral"
	"github.com/basharatali122/hamza-website-backend/internal/store"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	logger.Log = zap.NewNop()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	return db
}

func makeUser(t *testing.T, db *gorm.DB, username string, referredBy *string) *models.User {
	t.Helper()
	u := models.User{
		Name:         username,
		Username:     username,
		Email:        username + "@test.com",
		Password:     "x",
		Role:         models.RoleCustomer,
		ReferralCode: "C" + username,
		ReferredBy:   referredBy,
	}
	require.NoError(t, db.Create(&u).Error)
	return &u
}

// chain builds a -> b -> c -> d, each referring the next.
func chain(t *testing.T, db *gorm.DB) (a, b, c, d *models.User) {
	a = makeUser(t, db, "a", nil)
	b = makeUser(t, db, "b", &a.ID)
	c = makeUser(t, db, "c", &b.ID)
	d = makeUser(t, db, "d", &c.ID)
	return a, b, c, d
}

func newAggregator(db *gorm.DB, maxDepth int) *Aggregator {
	return NewAggregator(db, referral.NewGraph(db), maxDepth)
}

func TestStatsOverChain(t *testing.T) {
	db := newTestDB(t)
	a, b, c, d := chain(t, db)
	agg := newAggregator(db, 10)
	ctx := context.Background()

	for _, tc := range []struct {
		user *models.User
		want Stats
	}{
		{a, Stats{TeamSize: 3, DirectReferrals: 1, TeamDepth: 3}},
		{b, Stats{TeamSize: 2, DirectReferrals: 1, TeamDepth: 2}},
		{c, Stats{TeamSize: 1, DirectReferrals: 1, TeamDepth: 1}},
		{d, Stats{}},
	} {
		got, err := agg.Stats(ctx, tc.user.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "user %s", tc.user.Username)
	}
}

func TestStatsCountsWideTeams(t *testing.T) {
	db := newTestDB(t)
	root := makeUser(t, db, "root", nil)
	for i := 0; i < 3; i++ {
		kid := makeUser(t, db, fmt.Sprintf("kid%d", i), &root.ID)
		makeUser(t, db, fmt.Sprintf("grandkid%d", i), &kid.ID)
	}
	agg := newAggregator(db, 10)

	got, err := agg.Stats(context.Background(), root.ID)
	require.NoError(t, err)
	assert.Equal(t, Stats{TeamSize: 6, DirectReferrals: 3, TeamDepth: 2}, got)
}

func TestStatsAreCachedUntilInvalidated(t *testing.T) {
	db := newTestDB(t)
	root := makeUser(t, db, "root", nil)
	makeUser(t, db, "kid", &root.ID)
	agg := newAggregator(db, 10)
	ctx := context.Background()

	first, err := agg.Stats(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.TeamSize)

	// New member is invisible until the cache entry is dropped.
	makeUser(t, db, "kid2", &root.ID)
	cached, err := agg.Stats(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cached.TeamSize)

	agg.Invalidate(root.ID)
	fresh, err := agg.Stats(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.TeamSize)
}

func TestStatsDecomposeOverChildren(t *testing.T) {
	// teamSize(u) == sum over direct children c of (1 + teamSize(c)),
	// checked on a randomly generated forest.
	db := newTestDB(t)
	rng := rand.New(rand.NewSource(42))

	users := []*models.User{makeUser(t, db, "u0", nil)}
	for i := 1; i < 40; i++ {
		var parentID *string
		// Roots are rare; most users hang off an earlier one.
		if rng.Intn(10) > 0 {
			parentID = &users[rng.Intn(len(users))].ID
		}
		users = append(users, makeUser(t, db, fmt.Sprintf("u%d", i), parentID))
	}

	agg := newAggregator(db, 100)
	graph := referral.NewGraph(db)
	ctx := context.Background()

	for _, u := range users {
		agg.Invalidate(u.ID)
		got, err := agg.Stats(ctx, u.ID)
		require.NoError(t, err)

		children, err := graph.Children(ctx, u.ID)
		require.NoError(t, err)

		want := 0
		for _, c := range children {
			agg.Invalidate(c.ID)
			cs, err := agg.Stats(ctx, c.ID)
			require.NoError(t, err)
			want += 1 + cs.TeamSize
		}
		assert.Equal(t, want, got.TeamSize, "user %s", u.Username)
		assert.Equal(t, len(children), got.DirectReferrals)
	}
}

func TestWalkDetectsCycle(t *testing.T) {
	db := newTestDB(t)
	a, b, _, _ := chain(t, db)

	// Corrupt edge: a's parent points back into its own downline.
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", a.ID).
		Update("referred_by", b.ID).Error)

	agg := newAggregator(db, 10)
	err := agg.Walk(context.Background(), a.ID, 0, func(Member) bool { return true })
	require.ErrorIs(t, err, apperrors.ErrCycleDetected)
}

func TestTreeRespectsDepthBound(t *testing.T) {
	db := newTestDB(t)
	a, b, _, _ := chain(t, db)
	agg := newAggregator(db, 10)
	ctx := context.Background()

	tree, err := agg.Tree(ctx, a.ID, 2)
	require.NoError(t, err)
	require.Len(t, tree.SubTeam, 1)
	assert.Equal(t, b.ID, tree.SubTeam[0].User.ID)
	require.Len(t, tree.SubTeam[0].SubTeam, 1)
	// Level 3 is beyond the requested depth.
	assert.Empty(t, tree.SubTeam[0].SubTeam[0].SubTeam)
}

func TestTreeUnknownUser(t *testing.T) {
	db := newTestDB(t)
	agg := newAggregator(db, 10)

	_, err := agg.Tree(context.Background(), "missing", 3)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLeveledList(t *testing.T) {
	db := newTestDB(t)
	a, b, c, d := chain(t, db)
	agg := newAggregator(db, 10)

	list, byLevel, err := agg.LeveledList(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	require.Len(t, byLevel[1], 1)
	assert.Equal(t, b.ID, byLevel[1][0].User.ID)
	assert.True(t, byLevel[1][0].IsDirect)
	require.Len(t, byLevel[2], 1)
	assert.Equal(t, c.ID, byLevel[2][0].User.ID)
	assert.False(t, byLevel[2][0].IsDirect)
	require.Len(t, byLevel[3], 1)
	assert.Equal(t, d.ID, byLevel[3][0].User.ID)
}

func TestRefreshWritesCountersToUserRow(t *testing.T) {
	db := newTestDB(t)
	root := makeUser(t, db, "root", nil)
	for i := 0; i < 5; i++ {
		makeUser(t, db, fmt.Sprintf("kid%d", i), &root.ID)
	}
	agg := newAggregator(db, 10)

	stats, err := agg.Refresh(context.Background(), root.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.DirectReferrals)

	var fresh models.User
	require.NoError(t, db.First(&fresh, "id = ?", root.ID).Error)
	assert.Equal(t, 5, fresh.DirectReferrals)
	assert.Equal(t, 5, fresh.TeamSize)
	assert.Equal(t, 1, fresh.TeamDepth)
	assert.Equal(t, 2, fresh.ReferralLevel, "5 directs reach level 2")
}

func TestRefreshUplineUpdatesAncestors(t *testing.T) {
	db := newTestDB(t)
	a, b, c, d := chain(t, db)
	agg := newAggregator(db, 10)

	require.NoError(t, agg.RefreshUpline(context.Background(), d.ID))

	for _, tc := range []struct {
		user     *models.User
		teamSize int
	}{
		{a, 3}, {b, 2}, {c, 1},
	} {
		var fresh models.User
		require.NoError(t, db.First(&fresh, "id = ?", tc.user.ID).Error)
		assert.Equal(t, tc.teamSize, fresh.TeamSize, "user %s", tc.user.Username)
	}
}

func TestRefreshUplineAbandonsPastDepthBound(t *testing.T) {
	db := newTestDB(t)

	var prev *models.User
	var leaf *models.User
	for i := 0; i < 6; i++ {
		var parentID *string
		if prev != nil {
			parentID = &prev.ID
		}
		u := makeUser(t, db, fmt.Sprintf("n%d", i), parentID)
		prev = u
		leaf = u
	}

	agg := newAggregator(db, 3)
	// Deeper than maxDepth: must give up quietly, not error.
	require.NoError(t, agg.RefreshUpline(context.Background(), leaf.ID))
}
