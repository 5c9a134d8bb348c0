package utils

import (
	"testing"

	"discussable/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		name        string
		part, whole int64
		want        int
	}{
		{"zero whole", 5, 0, 0},
		{"negative whole", 5, -1, 0},
		{"exact", 7, 10, 70},
		{"half rounds to even down", 1, 8, 12},
		{"half rounds to even up", 3, 8, 38},
		{"third", 1, 3, 33},
		{"all", 4, 4, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percentage(tt.part, tt.whole))
		})
	}
}

func TestWilsonLowerBound(t *testing.T) {
	assert.Equal(t, 0.0, WilsonLowerBound(0, 0))
	assert.Equal(t, 0.0, WilsonLowerBound(0, 5))

	// 没有正面票时各种样本量同分，不能因浮点残差排在前面
	for _, n := range []int64{1, 4, 100} {
		assert.Equal(t, 0.0, WilsonLowerBound(0, n), "0/%d", n)
	}

	assert.InDelta(t, 0.2065, WilsonLowerBound(1, 1), 1e-4)
	assert.InDelta(t, 0.8256, WilsonLowerBound(90, 100), 1e-4)
	assert.InDelta(t, 0.3968, WilsonLowerBound(7, 10), 1e-4)

	// 相同的好评率，样本越大得分越高
	assert.Less(t, WilsonLowerBound(1, 1), WilsonLowerBound(90, 100))
	assert.Less(t, WilsonLowerBound(2, 2), WilsonLowerBound(5, 5))
	assert.Less(t, WilsonLowerBound(5, 10), WilsonLowerBound(50, 100))

	for _, n := range []int64{1, 2, 10, 1000} {
		for _, p := range []int64{0, n / 2, n} {
			s := WilsonLowerBound(p, n)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	}
}

func TestVisibilityBoundary(t *testing.T) {
	assert.Equal(t, models.Hidden, Visibility(0))
	assert.Equal(t, models.Hidden, Visibility(32))
	assert.Equal(t, models.Visible, Visibility(33))
	assert.Equal(t, models.Visible, Visibility(100))
}

func TestComputeStats(t *testing.T) {
	t.Run("no votes", func(t *testing.T) {
		s := ComputeStats(0, 0, 0)
		assert.Equal(t, 0, s.TotalVotes)
		assert.Equal(t, 0, s.ParticipationPercentage)
		assert.Equal(t, 0, s.PositivePercentage)
		assert.Equal(t, 0, s.NegativePercentage)
		assert.Equal(t, 0.0, s.WilsonScore)
		assert.Equal(t, models.Visible, s.VisibilityStatus)
	})

	t.Run("no users", func(t *testing.T) {
		s := ComputeStats(3, 1, 0)
		assert.Equal(t, 0, s.ParticipationPercentage)
		assert.Equal(t, 75, s.PositivePercentage)
	})

	t.Run("seven of ten", func(t *testing.T) {
		s := ComputeStats(7, 3, 20)
		assert.Equal(t, 10, s.TotalVotes)
		assert.Equal(t, s.TotalVotes, s.PositiveVotes+s.NegativeVotes)
		assert.Equal(t, 50, s.ParticipationPercentage)
		assert.Equal(t, 70, s.PositivePercentage)
		assert.Equal(t, 30, s.NegativePercentage)
		assert.InDelta(t, 0.3968, s.WilsonScore, 1e-4)
		assert.Equal(t, models.Visible, s.VisibilityStatus)
	})

	t.Run("threshold uses rounded percentage", func(t *testing.T) {
		assert.Equal(t, models.Hidden, ComputeStats(8, 17, 100).VisibilityStatus)  // 32%
		assert.Equal(t, models.Visible, ComputeStats(33, 67, 100).VisibilityStatus) // 33%
		assert.Equal(t, models.Visible, ComputeStats(1, 2, 100).VisibilityStatus)   // 33.3% -> 33
	})

	t.Run("all negative", func(t *testing.T) {
		s := ComputeStats(0, 4, 10)
		assert.Equal(t, 100, s.NegativePercentage)
		assert.Equal(t, 0.0, s.WilsonScore)
		assert.Equal(t, models.Hidden, s.VisibilityStatus)
	})

	t.Run("stale user count is clamped", func(t *testing.T) {
		assert.Equal(t, 100, ComputeStats(5, 5, 4).ParticipationPercentage)
	})
}
