package services

import (
	"context"
	"errors"

	"discussable/internal/db"
	"discussable/internal/logger"
	"discussable/internal/models"
	"discussable/internal/utils"

	"gorm.io/gorm"
)

// maxVoteWriteAttempts 插入/更新交替重试的上限
const maxVoteWriteAttempts = 3

// VoteResult Created 区分首次投票和修改投票，传输层据此返回 201 或 200
type VoteResult struct {
	Created bool                `json:"created"`
	Value   models.VoteValue    `json:"value"`
	Stats   models.VotableStats `json:"stats"`
}

// VoteService 投票账本：每个 (用户, 内容) 最多一票
type VoteService struct {
	db       *gorm.DB
	registry *Registry
	ranking  *RankingService
	log      *logger.Logger
}

func NewVoteService(db *gorm.DB, registry *Registry, ranking *RankingService, log *logger.Logger) *VoteService {
	return &VoteService{
		db:       db,
		registry: registry,
		ranking:  ranking,
		log:      log.With("service", "VoteService"),
	}
}

// CastVote records the user's vote on ref and recomputes the votable's
// statistics. The votable row is locked for the duration, so the upsert, the
// tally and the statistics write are applied as one unit.
func (s *VoteService) CastVote(ctx context.Context, userID uint, ref models.VotableRef, value models.VoteValue) (VoteResult, error) {
	if userID == 0 {
		return VoteResult{}, utils.NewUnauthorizedError("login required to vote")
	}
	if !value.Valid() {
		return VoteResult{}, utils.NewAppError(utils.ErrInvalidVoteValue, "vote value must be 1 or -1", nil)
	}

	v, err := s.registry.Fetch(db.Context{Ctx: ctx}, ref, false)
	if err != nil {
		return VoteResult{}, err
	}
	in, err := s.ranking.loadInputs(ctx, v)
	if err != nil {
		return VoteResult{}, err
	}

	result := VoteResult{Value: value}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := db.Context{Ctx: ctx, Tx: tx}
		if _, err := s.registry.Fetch(dbc, ref, true); err != nil {
			return err
		}

		created, err := s.upsert(dbc, userID, ref, value)
		if err != nil {
			return err
		}
		result.Created = created

		result.Stats, err = s.ranking.recomputeTx(dbc, ref, in)
		return err
	})
	if err != nil {
		s.log.Error("cast vote failed", "user_id", userID, "votable", ref.String(), "error", err)
		return VoteResult{}, wrapTxError("failed to cast vote", err)
	}

	s.log.Info("vote cast", "user_id", userID, "votable", ref.String(), "value", value, "created", result.Created)
	return result, nil
}

// upsert 已有投票只改 value；插入遇到唯一索引冲突时按更新重试
func (s *VoteService) upsert(dbc db.Context, userID uint, ref models.VotableRef, value models.VoteValue) (bool, error) {
	tx := dbc.Conn(s.db)

	var existing models.Vote
	err := tx.Where("user_id = ? AND votable_kind = ? AND votable_id = ?", userID, ref.Kind, ref.ID).
		Take(&existing).Error
	switch {
	case err == nil:
		if existing.Value != value {
			if err := tx.Model(&existing).Update("value", value).Error; err != nil {
				return false, utils.NewDatabaseError("failed to update vote", err)
			}
		}
		return false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, utils.NewDatabaseError("failed to load vote", err)
	}

	vote := models.Vote{
		UserID:      userID,
		VotableKind: ref.Kind,
		VotableID:   ref.ID,
		Value:       value,
	}
	// 插入走 savepoint，冲突时外层事务仍可继续。
	// 冲突按更新重试；更新时那一行又不见了（被级联删除）则重新插入
	for attempt := 1; ; attempt++ {
		err = tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(&vote).Error
		})
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, utils.NewDatabaseError("failed to create vote", err)
		}

		s.log.Debug("concurrent vote insert, retrying as update", "user_id", userID, "votable", ref.String(), "attempt", attempt)
		res := tx.Model(&models.Vote{}).
			Where("user_id = ? AND votable_kind = ? AND votable_id = ?", userID, ref.Kind, ref.ID).
			Update("value", value)
		if res.Error != nil {
			return false, utils.NewDatabaseError("failed to update vote", res.Error)
		}
		if res.RowsAffected > 0 {
			return false, nil
		}
		if attempt >= maxVoteWriteAttempts {
			return false, utils.NewAppError(utils.ErrConstraintViolation, "vote changed concurrently", err)
		}
		vote.ID = 0
	}
}

// Tally 统计某内容的正反票数，在 dbc 的事务快照内读取
func (s *VoteService) Tally(dbc db.Context, ref models.VotableRef) (int64, int64, error) {
	return tallyVotes(dbc.Conn(s.db), ref)
}

type voteCount struct {
	Value models.VoteValue
	N     int64
}

func tallyVotes(conn *gorm.DB, ref models.VotableRef) (positive, negative int64, err error) {
	var rows []voteCount
	err = conn.Model(&models.Vote{}).
		Select("value, COUNT(*) AS n").
		Where("votable_kind = ? AND votable_id = ?", ref.Kind, ref.ID).
		Group("value").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, utils.NewDatabaseError("failed to tally votes", err)
	}
	for _, r := range rows {
		switch r.Value {
		case models.VotePositive:
			positive = r.N
		case models.VoteNegative:
			negative = r.N
		}
	}
	return positive, negative, nil
}

// VotesFor 批量查询用户对多条内容的投票，没有投票的不在结果中（即 NoVote）
func (s *VoteService) VotesFor(ctx context.Context, userID uint, refs []models.VotableRef) (map[models.VotableRef]models.VoteValue, error) {
	out := make(map[models.VotableRef]models.VoteValue, len(refs))
	if userID == 0 || len(refs) == 0 {
		return out, nil
	}
	for kind, ids := range groupRefs(refs) {
		var votes []models.Vote
		err := s.db.WithContext(ctx).
			Where("user_id = ? AND votable_kind = ? AND votable_id IN ?", userID, kind, ids).
			Find(&votes).Error
		if err != nil {
			return nil, utils.NewDatabaseError("failed to load votes", err)
		}
		for i := range votes {
			out[votes[i].Ref()] = votes[i].Value
		}
	}
	return out, nil
}

func groupRefs(refs []models.VotableRef) map[models.VotableKind][]uint {
	out := make(map[models.VotableKind][]uint)
	for _, r := range refs {
		out[r.Kind] = append(out[r.Kind], r.ID)
	}
	return out
}
