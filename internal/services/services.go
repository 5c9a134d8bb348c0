package services

import (
	"time"

	"discussable/internal/logger"

	"gorm.io/gorm"
)

// Options 构造服务所需的可调参数
type Options struct {
	UserCountTTL         time.Duration
	StatsRefreshInterval time.Duration
	PageSize             int
}

// Services wires every service over one database handle.
type Services struct {
	Users       *UserDirectory
	Registry    *Registry
	Ranking     *RankingService
	Votes       *VoteService
	Preferences *PreferenceService
	Discussions *DiscussionService
}

func New(db *gorm.DB, log *logger.Logger, opts Options) *Services {
	users := NewUserDirectory(db, opts.UserCountTTL)
	registry := NewRegistry(db)
	ranking := NewRankingService(db, registry, users, log, opts.StatsRefreshInterval)
	votes := NewVoteService(db, registry, ranking, log)
	prefs := NewPreferenceService(db, registry, users, log)
	return &Services{
		Users:       users,
		Registry:    registry,
		Ranking:     ranking,
		Votes:       votes,
		Preferences: prefs,
		Discussions: NewDiscussionService(db, users, votes, prefs, log, opts.PageSize),
	}
}
