package store

import (
	"time"

	"gorm.io/gorm"
)

// Message kinds recorded in the outbound log.
const (
	MessageKindReply        = "reply"
	MessageKindNotification = "notification"
)

// MessageRecord is the GORM model for one outbound message, backing the
// "show messages" surface.
type MessageRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement;column:id"`
	UserID    string    `gorm:"column:user_id;index:idx_message_user;not null"`
	Kind      string    `gorm:"column:kind;not null"`
	Content   string    `gorm:"column:content;not null"`
	CreatedAt time.Time `gorm:"column:created_at;index;not null"`
}

// TableName specifies the table name for GORM
func (MessageRecord) TableName() string {
	return "message_records"
}

// MessageStore persists the outbound message log.
type MessageStore struct {
	db *gorm.DB
}

// Append records one outbound message.
func (ms *MessageStore) Append(userID, kind, content string) error {
	record := &MessageRecord{
		UserID:  userID,
		Kind:    kind,
		Content: content,
	}
	return ms.db.Create(record).Error
}

// Recent returns up to n most recent outbound messages for a user, newest
// first.
func (ms *MessageStore) Recent(userID string, n int) ([]MessageRecord, error) {
	var records []MessageRecord
	err := ms.db.
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(n).
		Find(&records).Error
	return records, err
}
