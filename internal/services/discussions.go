package services

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"unicode/utf8"

	"discussable/internal/logger"
	"discussable/internal/models"
	"discussable/internal/utils"

	"gorm.io/gorm"
)

const (
	maxSubjectLength  = 255
	maxCategoryLength = 50
)

// 排序方式
const (
	OrderRecency    = "recency"
	OrderOldest     = "oldest"
	OrderVolume     = "volume"
	OrderConsensus  = "consensus"
	OrderPopularity = "popularity"
)

var orderClauses = map[string]string{
	OrderRecency: "created_at DESC, id DESC",
	OrderOldest:  "created_at ASC, id ASC",
	OrderVolume:  "total_votes DESC, id DESC",
	// 一边倒的共识（无论正反）排在有争议的内容前面
	OrderConsensus:  "CASE WHEN positive_percentage >= negative_percentage THEN positive_percentage ELSE negative_percentage END DESC, total_votes DESC, id DESC",
	OrderPopularity: "wilson_score DESC, id DESC",
}

// NormalizeOrder maps user input to a known ordering. "newest" is accepted as
// an alias of recency, anything unknown falls back to recency.
func NormalizeOrder(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "newest" {
		return OrderRecency
	}
	if _, ok := orderClauses[s]; ok {
		return s
	}
	return OrderRecency
}

type CreateDiscussionInput struct {
	Subject  string
	Category *string
	// InitialComment 可选的首条评论，与讨论在同一事务中创建
	InitialComment *string
}

type ListOptions struct {
	OrderBy       string
	Viewer        uint
	IncludeHidden bool
	Page          int
}

// Annotation 针对当前查看者的附加信息
type Annotation struct {
	ViewerVote       models.VoteValue  `json:"viewer_vote"`
	ViewerPreference models.Preference `json:"viewer_preference"`
	Hidden           bool              `json:"hidden"`
}

type DiscussionView struct {
	*models.Discussion
	CommentCount int64 `json:"comment_count"`
	Annotation
}

type CommentView struct {
	*models.Comment
	ContentHTML template.HTML `json:"content_html"`
	Annotation
	Replies []*CommentView `json:"replies"`
}

// Thread 讨论详情：讨论本身加按时间正序的评论树
type Thread struct {
	Discussion DiscussionView `json:"discussion"`
	Comments   []*CommentView `json:"comments"`
}

// DiscussionService 讨论和评论的创建、查询、删除
type DiscussionService struct {
	db       *gorm.DB
	users    *UserDirectory
	votes    *VoteService
	prefs    *PreferenceService
	log      *logger.Logger
	pageSize int
}

func NewDiscussionService(db *gorm.DB, users *UserDirectory, votes *VoteService, prefs *PreferenceService, log *logger.Logger, pageSize int) *DiscussionService {
	if pageSize <= 0 {
		pageSize = 30
	}
	return &DiscussionService{
		db:       db,
		users:    users,
		votes:    votes,
		prefs:    prefs,
		log:      log.With("service", "DiscussionService"),
		pageSize: pageSize,
	}
}

func (s *DiscussionService) creatorName(ctx context.Context, userID uint) (string, error) {
	if userID == 0 {
		return "", utils.NewUnauthorizedError("login required")
	}
	name, err := s.users.DisplayName(ctx, userID)
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrNotFound) {
			return "", utils.NewUnauthorizedError("unknown user")
		}
		return "", err
	}
	return name, nil
}

func (s *DiscussionService) CreateDiscussion(ctx context.Context, creatorID uint, in CreateDiscussionInput) (*models.Discussion, *models.Comment, error) {
	name, err := s.creatorName(ctx, creatorID)
	if err != nil {
		return nil, nil, err
	}

	subject := utils.PlainText(in.Subject)
	if subject == "" {
		return nil, nil, utils.NewAppError(utils.ErrInvalidInput, "subject is required", nil)
	}
	if utf8.RuneCountInString(subject) > maxSubjectLength {
		return nil, nil, utils.NewAppError(utils.ErrInvalidInput, "subject is too long", nil)
	}

	var category *string
	if in.Category != nil {
		if c := utils.PlainText(*in.Category); c != "" {
			if utf8.RuneCountInString(c) > maxCategoryLength {
				return nil, nil, utils.NewAppError(utils.ErrInvalidInput, "category is too long", nil)
			}
			category = &c
		}
	}

	discussion := &models.Discussion{
		CreatorID:          creatorID,
		CreatorDisplayName: name,
		Subject:            subject,
		Category:           category,
		VotableStats:       utils.ComputeStats(0, 0, 0),
	}
	var comment *models.Comment

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(discussion).Error; err != nil {
			return err
		}
		if in.InitialComment == nil {
			return nil
		}
		comment = &models.Comment{
			DiscussionID:       discussion.ID,
			CreatorID:          creatorID,
			CreatorDisplayName: name,
			Content:            *in.InitialComment,
			VotableStats:       utils.ComputeStats(0, 0, 0),
		}
		return tx.Create(comment).Error
	})
	if err != nil {
		return nil, nil, wrapTxError("failed to create discussion", err)
	}

	s.log.Info("discussion created", "discussion_id", discussion.ID, "creator_id", creatorID, "with_comment", comment != nil)
	return discussion, comment, nil
}

// CreateComment 回复时 parentID 必须指向同一讨论下的评论
func (s *DiscussionService) CreateComment(ctx context.Context, creatorID, discussionID uint, content string, parentID *uint) (*models.Comment, error) {
	name, err := s.creatorName(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	conn := s.db.WithContext(ctx)
	if err := exists(conn.Model(&models.Discussion{}).Where("id = ?", discussionID), "discussion"); err != nil {
		return nil, err
	}
	if parentID != nil {
		q := conn.Model(&models.Comment{}).Where("id = ? AND discussion_id = ?", *parentID, discussionID)
		if err := exists(q, "parent comment"); err != nil {
			return nil, err
		}
	}

	comment := &models.Comment{
		DiscussionID:       discussionID,
		ParentID:           parentID,
		CreatorID:          creatorID,
		CreatorDisplayName: name,
		Content:            content,
		VotableStats:       utils.ComputeStats(0, 0, 0),
	}
	if err := conn.Create(comment).Error; err != nil {
		return nil, utils.NewDatabaseError("failed to create comment", err)
	}

	s.log.Info("comment created", "comment_id", comment.ID, "discussion_id", discussionID, "creator_id", creatorID)
	return comment, nil
}

func exists(q *gorm.DB, what string) error {
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return utils.NewDatabaseError("failed to look up "+what, err)
	}
	if n == 0 {
		return utils.NewNotFoundError(what)
	}
	return nil
}

func (s *DiscussionService) loadDiscussion(ctx context.Context, id uint) (*models.Discussion, error) {
	var d models.Discussion
	if err := s.db.WithContext(ctx).First(&d, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("discussion")
		}
		return nil, utils.NewDatabaseError("failed to load discussion", err)
	}
	return &d, nil
}

// GetDiscussion returns the discussion with its whole comment tree. Comments
// are loaded flat in created_at order and linked by parent id.
func (s *DiscussionService) GetDiscussion(ctx context.Context, id, viewerID uint) (*Thread, error) {
	d, err := s.loadDiscussion(ctx, id)
	if err != nil {
		return nil, err
	}

	var comments []models.Comment
	if err := s.db.WithContext(ctx).
		Where("discussion_id = ?", id).
		Order("created_at ASC, id ASC").
		Find(&comments).Error; err != nil {
		return nil, utils.NewDatabaseError("failed to load comments", err)
	}

	refs := make([]models.VotableRef, 0, len(comments)+1)
	status := make(map[models.VotableRef]models.VisibilityStatus, len(comments)+1)
	refs = append(refs, d.Ref())
	status[d.Ref()] = d.VisibilityStatus
	for i := range comments {
		refs = append(refs, comments[i].Ref())
		status[comments[i].Ref()] = comments[i].VisibilityStatus
	}
	ann, err := s.annotate(ctx, viewerID, refs, status)
	if err != nil {
		return nil, err
	}

	views := make([]*CommentView, len(comments))
	for i := range comments {
		c := &comments[i]
		views[i] = &CommentView{
			Comment:     c,
			ContentHTML: utils.RenderMarkdown(c.Content),
			Annotation:  ann[c.Ref()],
			Replies:     []*CommentView{},
		}
	}

	return &Thread{
		Discussion: DiscussionView{
			Discussion:   d,
			CommentCount: int64(len(comments)),
			Annotation:   ann[d.Ref()],
		},
		Comments: buildCommentTree(views),
	}, nil
}

// buildCommentTree views 需按时间正序，子评论保持同样的顺序
func buildCommentTree(views []*CommentView) []*CommentView {
	byID := make(map[uint]*CommentView, len(views))
	for _, v := range views {
		byID[v.ID] = v
	}
	roots := make([]*CommentView, 0)
	for _, v := range views {
		if v.ParentID != nil {
			if parent, ok := byID[*v.ParentID]; ok {
				parent.Replies = append(parent.Replies, v)
				continue
			}
		}
		roots = append(roots, v)
	}
	return roots
}

// ListDiscussions 只读取已聚合的统计字段，不会触发重新计算
func (s *DiscussionService) ListDiscussions(ctx context.Context, opts ListOptions) ([]DiscussionView, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}

	conn := s.db.WithContext(ctx)
	q := conn.Model(&models.Discussion{})
	if !opts.IncludeHidden && opts.Viewer != 0 {
		hidden := conn.Model(&models.UserContentPreference{}).
			Select("votable_id").
			Where("user_id = ? AND votable_kind = ? AND preference = ?", opts.Viewer, models.KindDiscussion, models.PreferenceHide)
		q = q.Where("id NOT IN (?)", hidden)
	}

	var discussions []models.Discussion
	if err := q.Order(orderClauses[NormalizeOrder(opts.OrderBy)]).
		Limit(s.pageSize).
		Offset((page - 1) * s.pageSize).
		Find(&discussions).Error; err != nil {
		return nil, utils.NewDatabaseError("failed to list discussions", err)
	}

	views := make([]DiscussionView, len(discussions))
	if len(discussions) == 0 {
		return views, nil
	}

	ids := make([]uint, len(discussions))
	refs := make([]models.VotableRef, len(discussions))
	status := make(map[models.VotableRef]models.VisibilityStatus, len(discussions))
	for i := range discussions {
		ids[i] = discussions[i].ID
		refs[i] = discussions[i].Ref()
		status[refs[i]] = discussions[i].VisibilityStatus
	}

	counts, err := s.commentCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	ann, err := s.annotate(ctx, opts.Viewer, refs, status)
	if err != nil {
		return nil, err
	}

	for i := range discussions {
		views[i] = DiscussionView{
			Discussion:   &discussions[i],
			CommentCount: counts[discussions[i].ID],
			Annotation:   ann[refs[i]],
		}
	}
	return views, nil
}

type commentCount struct {
	DiscussionID uint
	Count        int64
}

// commentCounts 批量查询评论数量
func (s *DiscussionService) commentCounts(ctx context.Context, ids []uint) (map[uint]int64, error) {
	var rows []commentCount
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Select("discussion_id, COUNT(*) AS count").
		Where("discussion_id IN ?", ids).
		Group("discussion_id").
		Scan(&rows).Error; err != nil {
		return nil, utils.NewDatabaseError("failed to count comments", err)
	}
	out := make(map[uint]int64, len(rows))
	for _, r := range rows {
		out[r.DiscussionID] = r.Count
	}
	return out, nil
}

// annotate 批量查询查看者的投票和偏好，每类内容各一次查询
func (s *DiscussionService) annotate(ctx context.Context, viewerID uint, refs []models.VotableRef, status map[models.VotableRef]models.VisibilityStatus) (map[models.VotableRef]Annotation, error) {
	votes, err := s.votes.VotesFor(ctx, viewerID, refs)
	if err != nil {
		return nil, err
	}
	prefs, err := s.prefs.PreferencesFor(ctx, viewerID, refs)
	if err != nil {
		return nil, err
	}

	out := make(map[models.VotableRef]Annotation, len(refs))
	for _, ref := range refs {
		out[ref] = Annotation{
			ViewerVote:       votes[ref],
			ViewerPreference: prefs[ref],
			Hidden:           effectiveHidden(prefs[ref], status[ref]),
		}
	}
	return out, nil
}

// effectiveHidden 个人偏好优先于社区投票结果
func effectiveHidden(pref models.Preference, status models.VisibilityStatus) bool {
	switch pref {
	case models.PreferenceHide:
		return true
	case models.PreferenceShow:
		return false
	default:
		return status == models.Hidden
	}
}

// DeleteDiscussion 仅创建者可删除。评论、投票和偏好记录在同一事务中一并删除
func (s *DiscussionService) DeleteDiscussion(ctx context.Context, userID, id uint) error {
	if userID == 0 {
		return utils.NewUnauthorizedError("login required")
	}
	d, err := s.loadDiscussion(ctx, id)
	if err != nil {
		return err
	}
	if d.CreatorID != userID {
		return utils.NewAppError(utils.ErrForbidden, "only the creator can delete a discussion", nil)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var commentIDs []uint
		if err := tx.Model(&models.Comment{}).Where("discussion_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}

		for _, model := range []interface{}{&models.Vote{}, &models.UserContentPreference{}} {
			if err := tx.Where("votable_kind = ? AND votable_id = ?", models.KindDiscussion, id).Delete(model).Error; err != nil {
				return err
			}
			if len(commentIDs) > 0 {
				if err := tx.Where("votable_kind = ? AND votable_id IN ?", models.KindComment, commentIDs).Delete(model).Error; err != nil {
					return err
				}
			}
		}

		if err := tx.Where("discussion_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Discussion{}, id).Error
	})
	if err != nil {
		return wrapTxError("failed to delete discussion", err)
	}

	s.log.Info("discussion deleted", "discussion_id", id, "user_id", userID)
	return nil
}
