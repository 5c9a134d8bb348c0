package services

import (
	"errors"

	"discussable/internal/db"
	"discussable/internal/models"
	"discussable/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// votableStore 某一类可投票内容的存储能力
type votableStore struct {
	newModel func() models.Votable
	label    string
}

// Registry maps a VotableKind to the table that stores it. Votes and
// preferences only ever hold a VotableRef, the registry resolves it.
type Registry struct {
	db     *gorm.DB
	stores map[models.VotableKind]votableStore
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{
		db: db,
		stores: map[models.VotableKind]votableStore{
			models.KindDiscussion: {
				newModel: func() models.Votable { return &models.Discussion{} },
				label:    "discussion",
			},
			models.KindComment: {
				newModel: func() models.Votable { return &models.Comment{} },
				label:    "comment",
			},
		},
	}
}

func (r *Registry) store(kind models.VotableKind) (votableStore, error) {
	s, ok := r.stores[kind]
	if !ok {
		return votableStore{}, utils.NewNotFoundError("votable kind " + string(kind))
	}
	return s, nil
}

// Kinds 返回所有已注册的内容类型
func (r *Registry) Kinds() []models.VotableKind {
	return []models.VotableKind{models.KindDiscussion, models.KindComment}
}

// Fetch loads the votable behind ref. With forUpdate the row is locked until
// the surrounding transaction ends.
func (r *Registry) Fetch(dbc db.Context, ref models.VotableRef, forUpdate bool) (models.Votable, error) {
	s, err := r.store(ref.Kind)
	if err != nil {
		return nil, err
	}
	if ref.ID == 0 {
		return nil, utils.NewNotFoundError(s.label)
	}

	q := dbc.Conn(r.db)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	v := s.newModel()
	if err := q.First(v, ref.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError(s.label)
		}
		return nil, utils.NewDatabaseError("failed to load "+s.label, err)
	}
	return v, nil
}

// PersistStats 写回统计字段，同时刷新创建者显示名（name 为空时保留原值）
func (r *Registry) PersistStats(dbc db.Context, ref models.VotableRef, stats models.VotableStats, creatorName string) error {
	s, err := r.store(ref.Kind)
	if err != nil {
		return err
	}

	cols := stats.Columns()
	if creatorName != "" {
		cols["creator_display_name"] = creatorName
	}

	res := dbc.Conn(r.db).Model(s.newModel()).Where("id = ?", ref.ID).Updates(cols)
	if res.Error != nil {
		return utils.NewDatabaseError("failed to save "+s.label+" statistics", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NewNotFoundError(s.label)
	}
	return nil
}

// IDs 列出某类内容的全部 ID，定时全量重算使用
func (r *Registry) IDs(dbc db.Context, kind models.VotableKind) ([]uint, error) {
	s, err := r.store(kind)
	if err != nil {
		return nil, err
	}
	var ids []uint
	if err := dbc.Conn(r.db).Model(s.newModel()).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, utils.NewDatabaseError("failed to list "+s.label+" ids", err)
	}
	return ids, nil
}
