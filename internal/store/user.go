package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gorm.io/gorm"
)

// User is the GORM model for a linked account. DiscordID is the provider-side
// identity; ID is the internal opaque user id everything else keys on.
type User struct {
	ID              string     `gorm:"primaryKey;column:id"`
	DiscordID       string     `gorm:"column:discord_id;uniqueIndex;not null"`
	DisplayName     string     `gorm:"column:display_name"`
	WelcomedAt      *time.Time `gorm:"column:welcomed_at"`
	CheckinsEnabled bool       `gorm:"column:checkins_enabled;default:1"`
	Preferences     string     `gorm:"column:preferences;default:'{}'"`
	CreatedAt       time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;not null"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// ErrUserNotFound is returned when no user matches a lookup.
var ErrUserNotFound = errors.New("user not found")

// UserStore persists account links and preferences.
type UserStore struct {
	db *gorm.DB
}

// Create links a provider identity to a fresh internal user id.
func (us *UserStore) Create(discordID, displayName string) (*User, error) {
	user := &User{
		ID:          uuid.NewString(),
		DiscordID:   discordID,
		DisplayName: displayName,
		Preferences: "{}",
		// New accounts start with check-ins on; users opt out via profile.
		CheckinsEnabled: true,
	}
	if err := us.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// ByDiscordID resolves the provider identity to the stored user.
func (us *UserStore) ByDiscordID(discordID string) (*User, error) {
	var user User
	err := us.db.Where("discord_id = ?", discordID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ByID returns the user with the given internal id.
func (us *UserStore) ByID(id string) (*User, error) {
	var user User
	err := us.db.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ProviderID returns the stored provider identity for an internal user id.
func (us *UserStore) ProviderID(id string) (string, error) {
	user, err := us.ByID(id)
	if err != nil {
		return "", err
	}
	return user.DiscordID, nil
}

// MarkWelcomed records that the one-time welcome was delivered. Idempotent.
func (us *UserStore) MarkWelcomed(id string) error {
	now := time.Now()
	return us.db.Model(&User{}).
		Where("id = ? AND welcomed_at IS NULL", id).
		Update("welcomed_at", &now).Error
}

// UpdateDiscordID repairs the stored provider identity when it drifts.
func (us *UserStore) UpdateDiscordID(id, discordID string) error {
	result := us.db.Model(&User{}).Where("id = ?", id).Update("discord_id", discordID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetDisplayName updates the user's display name.
func (us *UserStore) SetDisplayName(id, name string) error {
	result := us.db.Model(&User{}).Where("id = ?", id).Update("display_name", name)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetCheckinsEnabled toggles the check-in feature for a user.
func (us *UserStore) SetCheckinsEnabled(id string, enabled bool) error {
	result := us.db.Model(&User{}).Where("id = ?", id).Update("checkins_enabled", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Preference reads a single preference value by gjson path, e.g.
// "reminder_time" or "schedule.morning.start".
func (us *UserStore) Preference(id, path string) (gjson.Result, error) {
	user, err := us.ByID(id)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.Get(user.Preferences, path), nil
}

// SetPreference patches a single preference value by sjson path and persists
// the updated document.
func (us *UserStore) SetPreference(id, path string, value any) error {
	user, err := us.ByID(id)
	if err != nil {
		return err
	}
	prefs := user.Preferences
	if prefs == "" {
		prefs = "{}"
	}
	updated, err := sjson.Set(prefs, path, value)
	if err != nil {
		return err
	}
	return us.db.Model(&User{}).Where("id = ?", id).Update("preferences", updated).Error
}

// EnabledQuestions returns the user's enabled check-in question keys, or nil
// when the user has no explicit selection and catalog defaults should apply.
func (us *UserStore) EnabledQuestions(id string) ([]string, error) {
	result, err := us.Preference(id, "enabled_questions")
	if err != nil {
		return nil, err
	}
	if !result.Exists() {
		return nil, nil
	}
	var keys []string
	for _, item := range result.Array() {
		keys = append(keys, item.String())
	}
	return keys, nil
}
