package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"discussable/internal/db"
	"discussable/internal/logger"
	"discussable/internal/models"
	"discussable/internal/utils"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	rankingQueueSize   = 1000
	rankingBatchSize   = 50
	rankingFlushPeriod = 500 * time.Millisecond
	recomputeParallel  = 4
)

// RankingService 聚合引擎：从投票账本重新计算内容的统计字段并写回。
// 投票路径上同步调用 Recompute；队列和定时任务用于用户总数变化后的全量刷新。
type RankingService struct {
	db       *gorm.DB
	registry *Registry
	users    *UserDirectory
	log      *logger.Logger
	interval time.Duration

	queue   chan models.VotableRef
	pending map[models.VotableRef]bool
	mu      sync.Mutex

	startOnce sync.Once
}

func NewRankingService(db *gorm.DB, registry *Registry, users *UserDirectory, log *logger.Logger, refreshInterval time.Duration) *RankingService {
	return &RankingService{
		db:       db,
		registry: registry,
		users:    users,
		log:      log.With("service", "RankingService"),
		interval: refreshInterval,
		queue:    make(chan models.VotableRef, rankingQueueSize),
		pending:  make(map[models.VotableRef]bool),
	}
}

// aggregationInputs 事务外读取的两个近似值：用户总数和创建者当前显示名
type aggregationInputs struct {
	totalUsers  int64
	creatorName string
}

func (s *RankingService) loadInputs(ctx context.Context, v models.Votable) (aggregationInputs, error) {
	total, err := s.users.TotalUserCount(ctx)
	if err != nil {
		return aggregationInputs{}, err
	}
	name, err := s.users.DisplayName(ctx, v.CreatorUserID())
	if err != nil {
		// 创建者已不在身份服务中，保留已缓存的名字
		if !utils.IsErrorCode(err, utils.ErrNotFound) {
			return aggregationInputs{}, err
		}
		name = ""
	}
	return aggregationInputs{totalUsers: total, creatorName: name}, nil
}

// Recompute 重新计算单个内容的统计数据，统计读取和写回在同一个事务里完成
func (s *RankingService) Recompute(ctx context.Context, ref models.VotableRef) (*models.VotableStats, error) {
	v, err := s.registry.Fetch(db.Context{Ctx: ctx}, ref, false)
	if err != nil {
		return nil, err
	}
	in, err := s.loadInputs(ctx, v)
	if err != nil {
		return nil, err
	}

	var stats models.VotableStats
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := db.Context{Ctx: ctx, Tx: tx}
		if _, err := s.registry.Fetch(dbc, ref, true); err != nil {
			return err
		}
		stats, err = s.recomputeTx(dbc, ref, in)
		return err
	})
	if err != nil {
		return nil, wrapTxError("failed to recompute statistics", err)
	}
	return &stats, nil
}

// recomputeTx 调用方必须已经持有该内容的行锁
func (s *RankingService) recomputeTx(dbc db.Context, ref models.VotableRef, in aggregationInputs) (models.VotableStats, error) {
	positive, negative, err := tallyVotes(dbc.Conn(s.db), ref)
	if err != nil {
		return models.VotableStats{}, err
	}

	stats := utils.ComputeStats(positive, negative, in.totalUsers)
	if err := s.registry.PersistStats(dbc, ref, stats, in.creatorName); err != nil {
		return models.VotableStats{}, err
	}

	s.log.Debug("statistics recomputed",
		"votable", ref.String(),
		"total", stats.TotalVotes,
		"positive_pct", stats.PositivePercentage,
		"wilson", stats.WilsonScore,
		"visibility", stats.VisibilityStatus,
	)
	return stats, nil
}

// ScheduleRecompute 将内容加入异步重算队列，队列中已有的会被跳过
func (s *RankingService) ScheduleRecompute(ref models.VotableRef) bool {
	s.mu.Lock()
	if s.pending[ref] {
		s.mu.Unlock()
		return true
	}
	s.pending[ref] = true
	s.mu.Unlock()

	select {
	case s.queue <- ref:
		return true
	default:
		s.mu.Lock()
		delete(s.pending, ref)
		s.mu.Unlock()
		s.log.Warn("recompute queue full, dropping", "votable", ref.String())
		return false
	}
}

// Start launches the queue worker and, when an interval is configured, the
// periodic full refresh. Both stop when ctx is cancelled. Calling Start more
// than once has no effect.
func (s *RankingService) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.worker(ctx)
		if s.interval > 0 {
			go s.scheduledRefresh(ctx)
		}
	})
}

func (s *RankingService) worker(ctx context.Context) {
	batch := make([]models.VotableRef, 0, rankingBatchSize)
	ticker := time.NewTicker(rankingFlushPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ref := <-s.queue:
			batch = append(batch, ref)
			if len(batch) >= rankingBatchSize {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *RankingService) processBatch(ctx context.Context, refs []models.VotableRef) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(recomputeParallel)
	for _, ref := range refs {
		g.Go(func() error {
			defer s.clearPending(ref)
			if _, err := s.Recompute(gctx, ref); err != nil {
				// 内容可能已被删除，其它错误记录后继续
				if utils.IsErrorCode(err, utils.ErrNotFound) {
					s.log.Debug("skip recompute for deleted votable", "votable", ref.String())
					return nil
				}
				s.log.Error("recompute failed", "votable", ref.String(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *RankingService) clearPending(ref models.VotableRef) {
	s.mu.Lock()
	delete(s.pending, ref)
	s.mu.Unlock()
}

func (s *RankingService) scheduledRefresh(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.log.Info("starting scheduled statistics refresh")
			n, err := s.RefreshAll(ctx)
			if err != nil {
				s.log.Error("scheduled statistics refresh failed", "error", err)
				continue
			}
			s.log.Info("scheduled statistics refresh completed", "votables", n)
		}
	}
}

// RefreshAll recomputes every discussion and comment and returns how many
// were refreshed. The user count cache is dropped first so participation
// reflects the current number of users.
func (s *RankingService) RefreshAll(ctx context.Context) (int, error) {
	s.users.InvalidateCount()

	var refs []models.VotableRef
	for _, kind := range s.registry.Kinds() {
		ids, err := s.registry.IDs(db.Context{Ctx: ctx}, kind)
		if err != nil {
			return 0, err
		}
		for _, id := range ids {
			refs = append(refs, models.VotableRef{Kind: kind, ID: id})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(recomputeParallel)
	var (
		mu    sync.Mutex
		count int
	)
	for _, ref := range refs {
		g.Go(func() error {
			if _, err := s.Recompute(gctx, ref); err != nil {
				if utils.IsErrorCode(err, utils.ErrNotFound) {
					return nil
				}
				return err
			}
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return count, err
	}
	return count, nil
}

// wrapTxError 保留事务内返回的 AppError，其它错误包装为数据库错误
func wrapTxError(msg string, err error) error {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return utils.NewDatabaseError(msg, err)
}
