package models

// Post is a feed entry authored by a user.
type Post struct {
	BaseModel

	AuthorID string `gorm:"type:uuid;index;not null" json:"author_id"`
	Author   *User  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	Content string `gorm:"type:text;not null" json:"content"`

	LikeCount    int `gorm:"default:0" json:"like_count"`
	CommentCount int `gorm:"default:0" json:"comment_count"`
	ShareCount   int `gorm:"default:0" json:"share_count"`

	Comments []PostComment `gorm:"foreignKey:PostID" json:"comments,omitempty"`
	Likes    []PostLike    `gorm:"foreignKey:PostID" json:"-"`
}

// PostLike records a single like. One like per (post, user).
type PostLike struct {
	BaseModel

	PostID string `gorm:"type:uuid;uniqueIndex:idx_post_user_like;not null" json:"post_id"`
	UserID string `gorm:"type:uuid;uniqueIndex:idx_post_user_like;not null" json:"user_id"`
}

// PostComment is a comment on a feed post.
type PostComment struct {
	BaseModel

	PostID string `gorm:"type:uuid;index;not null" json:"post_id"`

	AuthorID string `gorm:"type:uuid;not null" json:"author_id"`
	Author   *User  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	Content string `gorm:"type:text;not null" json:"content"`
}
