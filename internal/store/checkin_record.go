package store

import (
	"time"

	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

// CheckinRecord is the GORM model for one completed check-in. Payload is the
// full answer document as JSON, including the questions_asked list.
type CheckinRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement;column:id"`
	UserID    string    `gorm:"column:user_id;index:idx_checkin_user;not null"`
	Payload   string    `gorm:"column:payload;not null"`
	CreatedAt time.Time `gorm:"column:created_at;index;not null"`
}

// TableName specifies the table name for GORM
func (CheckinRecord) TableName() string {
	return "checkin_records"
}

// CheckinStore persists completed check-in payloads.
type CheckinStore struct {
	db *gorm.DB
}

// Append stores a completed check-in payload.
func (cs *CheckinStore) Append(userID, payload string) error {
	record := &CheckinRecord{
		UserID:  userID,
		Payload: payload,
	}
	return cs.db.Create(record).Error
}

// Recent returns up to n most recent check-ins for a user, newest first. The
// id tiebreak keeps same-timestamp rows in insertion order.
func (cs *CheckinStore) Recent(userID string, n int) ([]CheckinRecord, error) {
	var records []CheckinRecord
	err := cs.db.
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(n).
		Find(&records).Error
	return records, err
}

// Count returns the number of stored check-ins for a user.
func (cs *CheckinStore) Count(userID string) (int64, error) {
	var count int64
	err := cs.db.Model(&CheckinRecord{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// QuestionsAsked extracts the questions_asked list from a record's payload.
func (r CheckinRecord) QuestionsAsked() []string {
	var keys []string
	for _, item := range gjson.Get(r.Payload, "questions_asked").Array() {
		keys = append(keys, item.String())
	}
	return keys
}

// Answer extracts a single answer value from the payload by question key.
func (r CheckinRecord) Answer(key string) gjson.Result {
	return gjson.Get(r.Payload, key)
}
