package services

import (
	"context"
	"time"

	"discussable/internal/db"
	"discussable/internal/logger"
	"discussable/internal/models"
	"discussable/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreferenceService 用户个人的显示/隐藏选择，不影响投票统计
type PreferenceService struct {
	db       *gorm.DB
	registry *Registry
	users    *UserDirectory
	log      *logger.Logger
}

func NewPreferenceService(db *gorm.DB, registry *Registry, users *UserDirectory, log *logger.Logger) *PreferenceService {
	return &PreferenceService{
		db:       db,
		registry: registry,
		users:    users,
		log:      log.With("service", "PreferenceService"),
	}
}

func (s *PreferenceService) SetPreference(ctx context.Context, userID uint, ref models.VotableRef, pref models.Preference) error {
	if userID == 0 {
		return utils.NewUnauthorizedError("login required to set preferences")
	}
	normalized, ok := models.ParsePreference(string(pref))
	if !ok {
		return utils.NewAppError(utils.ErrInvalidPref, "preference must be show, hide or none", nil)
	}
	pref = normalized
	if _, err := s.registry.Fetch(db.Context{Ctx: ctx}, ref, false); err != nil {
		return err
	}

	if err := s.upsert(db.Context{Ctx: ctx}, userID, ref, pref); err != nil {
		return err
	}
	s.log.Debug("preference set", "user_id", userID, "votable", ref.String(), "preference", pref)
	return nil
}

// upsert 依赖 idx_pref_user_votable 唯一索引，并发写入由数据库合并为一行
func (s *PreferenceService) upsert(dbc db.Context, userID uint, ref models.VotableRef, pref models.Preference) error {
	now := time.Now().UTC()
	row := models.UserContentPreference{
		UserID:      userID,
		VotableKind: ref.Kind,
		VotableID:   ref.ID,
		Preference:  pref,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := dbc.Conn(s.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "votable_kind"}, {Name: "votable_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"preference", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return utils.NewDatabaseError("failed to save preference", err)
	}
	return nil
}

// PreferencesFor returns the user's preference for every ref, NONE where
// nothing was recorded. One query per content kind.
func (s *PreferenceService) PreferencesFor(ctx context.Context, userID uint, refs []models.VotableRef) (map[models.VotableRef]models.Preference, error) {
	out := make(map[models.VotableRef]models.Preference, len(refs))
	for _, r := range refs {
		out[r] = models.PreferenceNone
	}
	if userID == 0 || len(refs) == 0 {
		return out, nil
	}

	for kind, ids := range groupRefs(refs) {
		var rows []models.UserContentPreference
		err := s.db.WithContext(ctx).
			Where("user_id = ? AND votable_kind = ? AND votable_id IN ?", userID, kind, ids).
			Find(&rows).Error
		if err != nil {
			return nil, utils.NewDatabaseError("failed to load preferences", err)
		}
		for i := range rows {
			out[rows[i].Ref()] = rows[i].Preference
		}
	}
	return out, nil
}

// HideAllFrom 将 author 的所有评论标记为对 viewer 隐藏，返回涉及的评论数
func (s *PreferenceService) HideAllFrom(ctx context.Context, viewerID, authorID uint) (int, error) {
	if viewerID == 0 {
		return 0, utils.NewUnauthorizedError("login required to set preferences")
	}
	ok, err := s.users.Exists(ctx, authorID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, utils.NewNotFoundError("user")
	}

	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("creator_id = ?", authorID).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return 0, utils.NewDatabaseError("failed to list comments", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := db.Context{Ctx: ctx, Tx: tx}
		for _, id := range ids {
			if err := s.upsert(dbc, viewerID, models.CommentRef(id), models.PreferenceHide); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, wrapTxError("failed to hide comments", err)
	}

	s.log.Info("hid all comments from author", "viewer_id", viewerID, "author_id", authorID, "count", len(ids))
	return len(ids), nil
}
