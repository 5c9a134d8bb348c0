package services_test

import (
	"context"
	"testing"
	"time"

	"discussable/internal/models"
	"discussable/internal/services"
	"discussable/internal/testutil"
	"discussable/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecomputeWithoutVotes(t *testing.T) {
	conn, svc := testutil.NewServices(t)
	u := testutil.SeedUser(t, conn, "alice")
	d := testutil.SeedDiscussion(t, conn, u, "quiet")

	stats, err := svc.Ranking.Recompute(context.Background(), d.Ref())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalVotes)
	assert.Equal(t, 0.0, stats.WilsonScore)
	assert.Equal(t, models.Visible, stats.VisibilityStatus)

	_, err = svc.Ranking.Recompute(context.Background(), models.CommentRef(42))
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestRecomputeRepairsDriftedStatistics(t *testing.T) {
	ctx := context.Background()
	conn, svc := testutil.NewServices(t)
	users := testutil.SeedUsers(t, conn, 3)
	d := testutil.SeedDiscussion(t, conn, users[0], "drift")

	_, err := svc.Votes.CastVote(ctx, users[1].ID, d.Ref(), models.VotePositive)
	require.NoError(t, err)

	require.NoError(t, conn.Model(&models.Discussion{}).Where("id = ?", d.ID).
		Updates(map[string]interface{}{"total_votes": 99, "wilson_score": 0.99}).Error)

	stats, err := svc.Ranking.Recompute(ctx, d.Ref())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVotes)
	assert.Equal(t, utils.ComputeStats(1, 0, 3), *stats)
	assert.Equal(t, *stats, reloadDiscussion(t, conn, d.ID).VotableStats)
}

func TestRefreshAllPicksUpNewUsers(t *testing.T) {
	ctx := context.Background()
	conn, svc := testutil.NewServices(t)
	users := testutil.SeedUsers(t, conn, 2)
	d := testutil.SeedDiscussion(t, conn, users[0], "participation")
	c := testutil.SeedComment(t, conn, users[0], d.ID, nil, "hi")

	_, err := svc.Votes.CastVote(ctx, users[1].ID, d.Ref(), models.VotePositive)
	require.NoError(t, err)
	assert.Equal(t, 50, reloadDiscussion(t, conn, d.ID).ParticipationPercentage)

	testutil.SeedUser(t, conn, "late1")
	testutil.SeedUser(t, conn, "late2")

	n, err := svc.Ranking.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n) // one discussion, one comment
	assert.Equal(t, 25, reloadDiscussion(t, conn, d.ID).ParticipationPercentage)

	var stored models.Comment
	require.NoError(t, conn.First(&stored, c.ID).Error)
	assert.Equal(t, models.Visible, stored.VisibilityStatus)
}

func TestScheduleRecomputeRunsInBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := testutil.NewDB(t)
	svc := services.New(conn, testutil.Logger(t), services.Options{})
	users := testutil.SeedUsers(t, conn, 2)
	d := testutil.SeedDiscussion(t, conn, users[0], "async")

	// 直接写入投票，不经过 CastVote，统计数据此时是旧的
	require.NoError(t, conn.Create(&models.Vote{
		UserID:      users[1].ID,
		VotableKind: models.KindDiscussion,
		VotableID:   d.ID,
		Value:       models.VotePositive,
	}).Error)

	svc.Ranking.Start(ctx)
	assert.True(t, svc.Ranking.ScheduleRecompute(d.Ref()))
	assert.True(t, svc.Ranking.ScheduleRecompute(d.Ref())) // deduplicated

	require.Eventually(t, func() bool {
		var got models.Discussion
		if err := conn.First(&got, d.ID).Error; err != nil {
			return false
		}
		return got.TotalVotes == 1
	}, 5*time.Second, 50*time.Millisecond)
}
