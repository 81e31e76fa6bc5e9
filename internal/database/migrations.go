package database

import (
	"gorm.io/gorm"

	"github.com/tradelink-hq/tradelink/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Company{},
		&models.Job{},
		&models.JobApplication{},
		&models.Post{},
		&models.PostLike{},
		&models.PostComment{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.ChatMessage{},
		&models.Notification{},
	)
}
