package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tradelink-hq/tradelink/internal/models"
	apperrors "github.com/tradelink-hq/tradelink/pkg/errors"
)

// PostDTO represents the API-friendly feed post payload.
type PostDTO struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	Author       *UserDTO  `json:"author,omitempty"`
	Content      string    `json:"content"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	ShareCount   int       `json:"share_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// CommentDTO represents the API-friendly comment payload.
type CommentDTO struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Author    *UserDTO  `json:"author,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFeedInput defines pagination for browsing the feed.
type ListFeedInput struct {
	AuthorID string
	Limit    int
	Offset   int
}

// FeedService manages the social feed: posts, likes, comments, shares.
type FeedService struct {
	db            *gorm.DB
	notifications *NotificationService
}

// NewFeedService constructs a FeedService.
func NewFeedService(db *gorm.DB, notifications *NotificationService) (*FeedService, error) {
	if db == nil {
		return nil, errors.New("feed service: db is required")
	}
	return &FeedService{db: db, notifications: notifications}, nil
}

// CreatePost publishes a feed post.
func (s *FeedService) CreatePost(ctx context.Context, authorID, content string) (*PostDTO, error) {
	ctx = ensureContext(ctx)

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewBadRequest("Post content is required")
	}

	post := models.Post{
		AuthorID: authorID,
		Content:  content,
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, fmt.Errorf("feed service: create post: %w", err)
	}

	dto := mapPost(post)
	return &dto, nil
}

// GetPost returns a single post by id.
func (s *FeedService) GetPost(ctx context.Context, postID string) (*PostDTO, error) {
	ctx = ensureContext(ctx)

	var post models.Post
	if err := s.db.WithContext(ctx).Preload("Author").First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("feed service: load post: %w", err)
	}

	dto := mapPost(post)
	return &dto, nil
}

// ListFeed returns posts ordered by recency.
func (s *FeedService) ListFeed(ctx context.Context, input ListFeedInput) ([]PostDTO, int64, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Post{})
	if authorID := strings.TrimSpace(input.AuthorID); authorID != "" {
		query = query.Where("author_id = ?", authorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("feed service: count posts: %w", err)
	}

	var rows []models.Post
	if err := query.
		Preload("Author").
		Order("created_at DESC").
		Limit(clampLimit(input.Limit, 25, 100)).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("feed service: list posts: %w", err)
	}

	items := make([]PostDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapPost(row))
	}
	return items, total, nil
}

// Like records a like. Liking a post twice is a no-op; the like count never
// double-counts a user.
func (s *FeedService) Like(ctx context.Context, postID, userID string) (*PostDTO, error) {
	ctx = ensureContext(ctx)

	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("feed service: load post: %w", err)
	}

	var liked bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		like := models.PostLike{PostID: postID, UserID: userID}
		if err := tx.Create(&like).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil // already liked
			}
			return fmt.Errorf("create like: %w", err)
		}
		if err := tx.Model(&models.Post{}).
			Where("id = ?", postID).
			Update("like_count", gorm.Expr("like_count + 1")).Error; err != nil {
			return fmt.Errorf("bump like count: %w", err)
		}
		liked = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("feed service: %w", err)
	}

	// Notify after the transaction commits; the notification write uses its
	// own connection and must not race the open transaction.
	if liked {
		s.notify(ctx, CreateNotificationInput{
			UserID:    post.AuthorID,
			SenderID:  userID,
			Type:      models.NotificationPostLike,
			Title:     "New like",
			Message:   "Someone liked your post",
			ActionURL: "/feed/" + postID,
			Metadata:  map[string]any{"post_id": postID},
		})
	}

	return s.GetPost(ctx, postID)
}

// Unlike removes a like if present.
func (s *FeedService) Unlike(ctx context.Context, postID, userID string) (*PostDTO, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
		if result.Error != nil {
			return fmt.Errorf("delete like: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}
		if err := tx.Model(&models.Post{}).
			Where("id = ? AND like_count > 0", postID).
			Update("like_count", gorm.Expr("like_count - 1")).Error; err != nil {
			return fmt.Errorf("drop like count: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("feed service: %w", err)
	}

	return s.GetPost(ctx, postID)
}

// Comment appends a comment to a post and notifies the author.
func (s *FeedService) Comment(ctx context.Context, postID, authorID, content string) (*CommentDTO, error) {
	ctx = ensureContext(ctx)

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewBadRequest("Comment content is required")
	}

	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("feed service: load post: %w", err)
	}

	comment := models.PostComment{
		PostID:   postID,
		AuthorID: authorID,
		Content:  content,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		if err := tx.Model(&models.Post{}).
			Where("id = ?", postID).
			Update("comment_count", gorm.Expr("comment_count + 1")).Error; err != nil {
			return fmt.Errorf("bump comment count: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("feed service: %w", err)
	}

	s.notify(ctx, CreateNotificationInput{
		UserID:    post.AuthorID,
		SenderID:  authorID,
		Type:      models.NotificationPostComment,
		Title:     "New comment",
		Message:   truncate(content, 120),
		ActionURL: "/feed/" + postID,
		Metadata:  map[string]any{"post_id": postID, "comment_id": comment.ID},
	})

	dto := mapComment(comment)
	return &dto, nil
}

// ListComments returns comments for a post in chronological order.
func (s *FeedService) ListComments(ctx context.Context, postID string) ([]CommentDTO, error) {
	ctx = ensureContext(ctx)

	var rows []models.PostComment
	if err := s.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("feed service: list comments: %w", err)
	}

	items := make([]CommentDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapComment(row))
	}
	return items, nil
}

// Share bumps the share counter and notifies the author.
func (s *FeedService) Share(ctx context.Context, postID, userID string) (*PostDTO, error) {
	ctx = ensureContext(ctx)

	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("feed service: load post: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		Update("share_count", gorm.Expr("share_count + 1")).Error; err != nil {
		return nil, fmt.Errorf("feed service: bump share count: %w", err)
	}

	s.notify(ctx, CreateNotificationInput{
		UserID:    post.AuthorID,
		SenderID:  userID,
		Type:      models.NotificationPostShare,
		Title:     "Post shared",
		Message:   "Someone shared your post",
		ActionURL: "/feed/" + postID,
		Metadata:  map[string]any{"post_id": postID},
	})

	return s.GetPost(ctx, postID)
}

func (s *FeedService) notify(ctx context.Context, input CreateNotificationInput) {
	if s.notifications == nil {
		return
	}
	_, _ = s.notifications.Create(ctx, input)
}

func mapPost(row models.Post) PostDTO {
	dto := PostDTO{
		ID:           row.ID,
		AuthorID:     row.AuthorID,
		Content:      row.Content,
		LikeCount:    row.LikeCount,
		CommentCount: row.CommentCount,
		ShareCount:   row.ShareCount,
		CreatedAt:    row.CreatedAt,
	}
	if row.Author != nil {
		author := mapUser(*row.Author)
		dto.Author = &author
	}
	return dto
}

func mapComment(row models.PostComment) CommentDTO {
	dto := CommentDTO{
		ID:        row.ID,
		PostID:    row.PostID,
		AuthorID:  row.AuthorID,
		Content:   row.Content,
		CreatedAt: row.CreatedAt,
	}
	if row.Author != nil {
		author := mapUser(*row.Author)
		dto.Author = &author
	}
	return dto
}
