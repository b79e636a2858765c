package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SessionStatus is the narrative session phase. The phase is a first-class
// value, never inferred from nullable fields.
type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// StorySession is the persisted snapshot of a branching story. Segments are
// append-only; only the last segment's choices are live.
type StorySession struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	UserID         string         `gorm:"index;size:36" json:"user_id"`
	ScenarioID     string         `gorm:"size:32" json:"scenario_id"`
	Status         SessionStatus  `gorm:"size:16" json:"status"`
	AwaitingChoice bool           `json:"awaiting_choice"`
	Segments       []StorySegment `gorm:"foreignKey:SessionID" json:"segments"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// StorySegment is one generated block of story text plus the choices offered
// after it. A free-plan segment never carries choices.
type StorySegment struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	SessionID string     `gorm:"index;size:36" json:"session_id"`
	Position  int        `json:"position"`
	Text      string     `gorm:"type:text" json:"text"`
	Choices   StringList `gorm:"type:json" json:"choices"`
	CreatedAt time.Time  `json:"created_at"`
}

// StringList stores a []string as a JSON column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return fmt.Errorf("unsupported type for StringList: %T", value)
}

// Scenario is a fantasy mode setting the user can pick.
type Scenario struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
}

var Scenarios = []Scenario{
	{ID: "car", Title: "Night Drive", Description: "An unforgettable night somewhere private and intimate", Emoji: "🚗"},
	{ID: "hotel", Title: "Hotel Night", Description: "A luxurious room, champagne and plenty of chemistry", Emoji: "🏨"},
	{ID: "distance", Title: "Long Distance", Description: "An intense connection through messages and calls", Emoji: "📱"},
	{ID: "beach", Title: "Moonlit Beach", Description: "Sand, waves and a connection under the stars", Emoji: "🌊"},
	{ID: "home", Title: "At Home", Description: "Intimacy in the comfort of home, no hurry at all", Emoji: "🏠"},
	{ID: "surprise", Title: "Surprise Encounter", Description: "An unexpected meeting that changes everything", Emoji: "✨"},
}

// ScenarioByID returns the scenario for id, or false when unknown.
func ScenarioByID(id string) (Scenario, bool) {
	for _, s := range Scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}
