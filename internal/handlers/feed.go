package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tradelink-hq/tradelink/internal/middleware"
	"github.com/tradelink-hq/tradelink/internal/realtime"
	"github.com/tradelink-hq/tradelink/internal/services"
	"github.com/tradelink-hq/tradelink/pkg/errors"
	"github.com/tradelink-hq/tradelink/pkg/response"
)

// FeedHandler exposes social feed endpoints.
type FeedHandler struct {
	feed *services.FeedService
}

// NewFeedHandler constructs a feed handler.
func NewFeedHandler(db *gorm.DB, hub *realtime.Hub) (*FeedHandler, error) {
	notifications, err := services.NewNotificationService(db, hub)
	if err != nil {
		return nil, err
	}
	feed, err := services.NewFeedService(db, notifications)
	if err != nil {
		return nil, err
	}
	return &FeedHandler{feed: feed}, nil
}

// List returns feed posts ordered by recency.
func (h *FeedHandler) List(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 25)
	offset := parseIntQuery(c, "offset", 0)

	items, total, err := h.feed.ListFeed(requestContext(c), services.ListFeedInput{
		AuthorID: c.Query("author_id"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	page := 1
	if limit > 0 {
		page = offset/limit + 1
	}
	response.SuccessWithMeta(c, http.StatusOK, items, response.PageMeta(page, limit, total))
}

type createPostRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// Create publishes a feed post.
func (h *FeedHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload createPostRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	post, err := h.feed.CreatePost(requestContext(c), userID, payload.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, post)
}

// Get returns a single post.
func (h *FeedHandler) Get(c *gin.Context) {
	post, err := h.feed.GetPost(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, post)
}

// Like records a like from the current user.
func (h *FeedHandler) Like(c *gin.Context) {
	h.toggleLike(c, true)
}

// Unlike removes the current user's like.
func (h *FeedHandler) Unlike(c *gin.Context) {
	h.toggleLike(c, false)
}

func (h *FeedHandler) toggleLike(c *gin.Context, like bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	var post *services.PostDTO
	var err error
	if like {
		post, err = h.feed.Like(requestContext(c), id, userID)
	} else {
		post, err = h.feed.Unlike(requestContext(c), id, userID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, post)
}

type commentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// Comment appends a comment to a post.
func (h *FeedHandler) Comment(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload commentRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	comment, err := h.feed.Comment(requestContext(c), strings.TrimSpace(c.Param("id")), userID, payload.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, comment)
}

// ListComments returns comments for a post.
func (h *FeedHandler) ListComments(c *gin.Context) {
	comments, err := h.feed.ListComments(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, comments)
}

// Share bumps a post's share counter.
func (h *FeedHandler) Share(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	post, err := h.feed.Share(requestContext(c), strings.TrimSpace(c.Param("id")), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, post)
}
