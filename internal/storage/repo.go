package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"amora/server/internal/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrCharacterNotFound = errors.New("character not found")
)

// User loads a user by id.
func (s *MySQLStore) User(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UserByDeviceID loads a guest user by device id.
func (s *MySQLStore) UserByDeviceID(ctx context.Context, deviceID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "device_id = ?", deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new user, generating an id when absent.
func (s *MySQLStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Plan == "" {
		user.Plan = models.PlanFree
	}
	user.CreatedAt = time.Now()
	user.LastActive = user.CreatedAt
	return s.db.WithContext(ctx).Create(user).Error
}

// SetPlan applies a billing tier change. The next gate evaluation sees the
// new tier; nothing caches it.
func (s *MySQLStore) SetPlan(ctx context.Context, userID string, plan models.PlanTier) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("plan", plan)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// TouchUser bumps last_active.
func (s *MySQLStore) TouchUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("last_active", time.Now()).Error
}

// SeedCharacters inserts the default catalog, ignoring rows that exist.
func (s *MySQLStore) SeedCharacters(ctx context.Context) error {
	for _, c := range models.DefaultCharacters {
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&c).Error; err != nil {
			return err
		}
	}
	return nil
}

// Character loads one catalog entry.
func (s *MySQLStore) Character(ctx context.Context, id string) (*models.Character, error) {
	var character models.Character
	if err := s.db.WithContext(ctx).First(&character, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, err
	}
	return &character, nil
}

// Characters lists the catalog.
func (s *MySQLStore) Characters(ctx context.Context) ([]models.Character, error) {
	var characters []models.Character
	if err := s.db.WithContext(ctx).Order("is_premium asc, name asc").Find(&characters).Error; err != nil {
		return nil, err
	}
	return characters, nil
}

// Conversation returns the user's conversation with a character, creating it
// on first contact.
func (s *MySQLStore) Conversation(ctx context.Context, userID, characterID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).First(&conv, "user_id = ? AND character_id = ?", userID, characterID).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = models.Conversation{
		ID:          uuid.NewString(),
		UserID:      userID,
		CharacterID: characterID,
	}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// UpdatePersona stores the conversation's persona settings.
func (s *MySQLStore) UpdatePersona(ctx context.Context, conversationID string, p models.Persona) error {
	return s.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"tone":      p.Tone,
			"intensity": p.Intensity,
			"language":  p.Language,
			"use_slang": p.UseSlang,
		}).Error
}

// AppendMessage adds one turn to a conversation. Messages are append-only.
func (s *MySQLStore) AppendMessage(ctx context.Context, conversationID, role, content string) (*models.Message, error) {
	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}

	err := s.WithTx(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).Where("id = ?", conversationID).
			UpdateColumn("message_count", gorm.Expr("message_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// RecentMessages returns up to limit messages, oldest first.
func (s *MySQLStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at desc").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ClearHistory truncates a conversation to empty. The only deletion the
// message log supports.
func (s *MySQLStore) ClearHistory(ctx context.Context, conversationID string) error {
	return s.WithTx(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Message{}, "conversation_id = ?", conversationID).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).Where("id = ?", conversationID).
			UpdateColumn("message_count", 0).Error
	})
}

// SaveStorySession upserts the session snapshot and its segments. Segments
// are append-only, so existing rows are left in place.
func (s *MySQLStore) SaveStorySession(ctx context.Context, session models.StorySession) error {
	return s.WithTx(func(tx *gorm.DB) error {
		row := session
		row.Segments = nil
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		for _, seg := range session.Segments {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seg).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveUsageSnapshot upserts the daily counter snapshot.
func (s *MySQLStore) SaveUsageSnapshot(ctx context.Context, usage models.UsageCounters) error {
	usage.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&usage).Error
}

// UsageSnapshot loads the persisted counters. The gate treats a stale
// ResetDate as zero, so callers may hand this out as-is.
func (s *MySQLStore) UsageSnapshot(ctx context.Context, userID string) (models.UsageCounters, error) {
	var usage models.UsageCounters
	err := s.db.WithContext(ctx).First(&usage, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UsageCounters{UserID: userID}, nil
	}
	return usage, err
}
