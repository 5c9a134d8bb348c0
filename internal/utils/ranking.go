package utils

import (
	"math"

	"discussable/internal/models"
)

const (
	// WilsonZ 95% 置信度
	WilsonZ = 1.96
	// VisibilityThreshold 正面票百分比低于该值时内容被隐藏
	VisibilityThreshold = 33
)

// Percentage 返回 part/whole*100 的整数百分比，whole 为 0 时返回 0。
// 取整采用 round-half-to-even。
func Percentage(part, whole int64) int {
	if whole <= 0 {
		return 0
	}
	return int(math.RoundToEven(float64(part) / float64(whole) * 100))
}

// WilsonLowerBound Wilson 置信区间下界。
// 样本量越小惩罚越大：1/1 的得分低于 90/100。total 或 positive 为 0 时定义为 0。
func WilsonLowerBound(positive, total int64) float64 {
	// 公式在 phat=0 时只剩浮点残差，直接返回 0 保证全反对的内容同分
	if total <= 0 || positive <= 0 {
		return 0
	}
	n := float64(total)
	phat := float64(positive) / n
	z2 := WilsonZ * WilsonZ

	numerator := phat + z2/(2*n) - WilsonZ*math.Sqrt((phat*(1-phat)+z2/(4*n))/n)
	denominator := 1 + z2/n
	score := numerator / denominator

	// 浮点误差可能产生极小的负数
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Visibility 阈值包含在可见一侧：33 可见，32 隐藏
func Visibility(positivePercentage int) models.VisibilityStatus {
	if positivePercentage < VisibilityThreshold {
		return models.Hidden
	}
	return models.Visible
}

// ComputeStats 根据票数和系统总用户数计算完整的统计数据。
// 所有除零情况都有定义值，不会返回错误。
func ComputeStats(positive, negative, totalUsers int64) models.VotableStats {
	if positive < 0 {
		positive = 0
	}
	if negative < 0 {
		negative = 0
	}
	total := positive + negative

	// 用户总数是缓存的近似值，可能小于实际投票人数
	participation := Percentage(total, totalUsers)
	if participation > 100 {
		participation = 100
	}

	stats := models.VotableStats{
		TotalVotes:              int(total),
		PositiveVotes:           int(positive),
		NegativeVotes:           int(negative),
		ParticipationPercentage: participation,
		PositivePercentage:      Percentage(positive, total),
		NegativePercentage:      Percentage(negative, total),
		WilsonScore:             WilsonLowerBound(positive, total),
		VisibilityStatus:        models.Visible,
	}
	// 没有投票的内容始终可见
	if total > 0 {
		stats.VisibilityStatus = Visibility(stats.PositivePercentage)
	}
	return stats
}
