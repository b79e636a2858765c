package models

import "time"

// Message roles follow the completion API convention.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation groups the messages a user exchanged with one character.
type Conversation struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	UserID       string `gorm:"index;size:36" json:"user_id"`
	CharacterID  string `gorm:"size:36" json:"character_id"`
	MessageCount int    `json:"message_count"`
	// Persona settings are stored flat so gorm can migrate them.
	Tone      Tone      `gorm:"size:16" json:"tone"`
	Intensity Intensity `gorm:"size:16" json:"intensity"`
	Language  Language  `gorm:"size:8" json:"language"`
	UseSlang  bool      `json:"use_slang"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Persona assembles the conversation's persona settings, falling back to the
// defaults for unset fields.
func (c *Conversation) Persona() Persona {
	p := Persona{Tone: c.Tone, Intensity: c.Intensity, Language: c.Language, UseSlang: c.UseSlang}
	if p.Tone == "" {
		p.Tone = DefaultPersona.Tone
	}
	if p.Intensity == "" {
		p.Intensity = DefaultPersona.Intensity
	}
	if p.Language == "" {
		p.Language = DefaultPersona.Language
	}
	return p
}

// Message is one turn of a conversation. Append-only; history is only ever
// removed by an explicit clear, which truncates to empty.
type Message struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string    `gorm:"index;size:36" json:"conversation_id"`
	Role           string    `gorm:"size:16" json:"role"`
	Content        string    `gorm:"type:text" json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
