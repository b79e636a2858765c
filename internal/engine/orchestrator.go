package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"amora/server/internal/entitlement"
	"amora/server/internal/models"
	"amora/server/internal/prompts"
)

// UsageStore holds the per-user-per-day counters. Implementations return the
// updated counters so the orchestrator can snapshot them.
type UsageStore interface {
	Counters(ctx context.Context, userID string) (models.UsageCounters, error)
	IncrementMessages(ctx context.Context, userID string) (models.UsageCounters, error)
	IncrementScenes(ctx context.Context, userID string) (models.UsageCounters, error)
	MarkCharacterUsed(ctx context.Context, userID, characterID string) (models.UsageCounters, error)
	CharacterUsed(ctx context.Context, userID, characterID string) (bool, error)
}

// ConversationStore persists conversations and their messages.
type ConversationStore interface {
	Conversation(ctx context.Context, userID, characterID string) (*models.Conversation, error)
	UpdatePersona(ctx context.Context, conversationID string, p models.Persona) error
	AppendMessage(ctx context.Context, conversationID, role, content string) (*models.Message, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	ClearHistory(ctx context.Context, conversationID string) error
}

// CharacterStore serves the companion catalog.
type CharacterStore interface {
	Character(ctx context.Context, id string) (*models.Character, error)
	Characters(ctx context.Context) ([]models.Character, error)
}

// RecordStore persists snapshots of session-scoped state. No transaction
// spans more than one entity.
type RecordStore interface {
	SaveStorySession(ctx context.Context, session models.StorySession) error
	SaveUsageSnapshot(ctx context.Context, usage models.UsageCounters) error
}

// EventPublisher pushes server events to connected clients. Implementations
// must not block.
type EventPublisher interface {
	Publish(userID, event string, data interface{})
}

// Orchestrator sequences every gated action: entitlement gate first, then
// the oracle, then exactly one counter increment on success. A denied action
// never reaches the oracle; a failed oracle call never charges the user.
type Orchestrator struct {
	gate    *entitlement.Gate
	oracle  Oracle
	tracker *Tracker
	usage   UsageStore
	convs   ConversationStore
	chars   CharacterStore
	records RecordStore
	events  EventPublisher
	log     zerolog.Logger
}

func NewOrchestrator(
	gate *entitlement.Gate,
	oracle Oracle,
	tracker *Tracker,
	usage UsageStore,
	convs ConversationStore,
	chars CharacterStore,
	records RecordStore,
	events EventPublisher,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		gate:    gate,
		oracle:  oracle,
		tracker: tracker,
		usage:   usage,
		convs:   convs,
		chars:   chars,
		records: records,
		events:  events,
		log:     log,
	}
}

// Gate exposes the entitlement gate for read-only evaluation (the UI asks
// before rendering locked features).
func (o *Orchestrator) Gate() *entitlement.Gate { return o.gate }

// StartScenario opens a new story session. The opening segment itself is not
// continuation-gated, but the free plan's scene count is.
func (o *Orchestrator) StartScenario(ctx context.Context, user *models.User, scenarioID string) (models.StorySession, error) {
	usage, err := o.usage.Counters(ctx, user.ID)
	if err != nil {
		return models.StorySession{}, fmt.Errorf("load usage counters: %w", err)
	}

	decision := o.gate.Evaluate(user.Plan, usage, entitlement.Request{Action: entitlement.ActionStartScene})
	if !decision.Allowed {
		return models.StorySession{}, &PlanLimitError{Reason: decision.Reason}
	}

	session, err := o.tracker.StartScenario(ctx, user, scenarioID)
	if err != nil {
		return models.StorySession{}, err
	}

	usage, err = o.usage.IncrementScenes(ctx, user.ID)
	if err != nil {
		return models.StorySession{}, fmt.Errorf("increment scene counter: %w", err)
	}
	if err := o.snapshot(ctx, session, usage); err != nil {
		return models.StorySession{}, err
	}
	o.events.Publish(user.ID, "story_segment", session)

	return session, nil
}

// SubmitChoice continues the active story. The tracker consults the gate
// before the oracle and leaves state untouched on denial or failure.
func (o *Orchestrator) SubmitChoice(ctx context.Context, user *models.User, choice string) (models.StorySession, error) {
	usage, err := o.usage.Counters(ctx, user.ID)
	if err != nil {
		return models.StorySession{}, fmt.Errorf("load usage counters: %w", err)
	}

	session, err := o.tracker.SubmitChoice(ctx, user, usage, choice)
	if err != nil {
		return models.StorySession{}, err
	}

	if err := o.snapshot(ctx, session, usage); err != nil {
		return models.StorySession{}, err
	}
	o.events.Publish(user.ID, "story_segment", session)

	return session, nil
}

// ResetStory discards the active story session. Idempotent.
func (o *Orchestrator) ResetStory(user *models.User) {
	o.tracker.Reset(user.ID)
}

// StorySession returns the active session, if any.
func (o *Orchestrator) StorySession(user *models.User) (models.StorySession, bool) {
	return o.tracker.Session(user.ID)
}

// SelectCharacter gates a character pick and returns the user's conversation
// with that character.
func (o *Orchestrator) SelectCharacter(ctx context.Context, user *models.User, characterID string) (*models.Conversation, error) {
	character, err := o.chars.Character(ctx, characterID)
	if err != nil {
		return nil, err
	}

	usage, err := o.usage.Counters(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load usage counters: %w", err)
	}
	used, err := o.usage.CharacterUsed(ctx, user.ID, characterID)
	if err != nil {
		return nil, fmt.Errorf("check character usage: %w", err)
	}

	decision := o.gate.Evaluate(user.Plan, usage, entitlement.Request{
		Action:           entitlement.ActionSelectCharacter,
		CharacterPremium: character.IsPremium,
		NewCharacter:     !used,
	})
	if !decision.Allowed {
		return nil, &PlanLimitError{Reason: decision.Reason}
	}

	conv, err := o.convs.Conversation(ctx, user.ID, characterID)
	if err != nil {
		return nil, err
	}

	if usage, err = o.usage.MarkCharacterUsed(ctx, user.ID, characterID); err != nil {
		return nil, fmt.Errorf("mark character used: %w", err)
	}
	if err := o.snapshotUsage(ctx, usage); err != nil {
		return nil, err
	}

	return conv, nil
}

// RequestPhoto is premium-only: the oracle produces a description of the
// photo the character sends.
func (o *Orchestrator) RequestPhoto(ctx context.Context, user *models.User, characterID string) (string, error) {
	usage, err := o.usage.Counters(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("load usage counters: %w", err)
	}

	decision := o.gate.Evaluate(user.Plan, usage, entitlement.Request{Action: entitlement.ActionRequestPhoto})
	if !decision.Allowed {
		return "", &PlanLimitError{Reason: decision.Reason}
	}

	var character *models.Character
	if characterID != "" {
		if character, err = o.chars.Character(ctx, characterID); err != nil {
			return "", err
		}
	}

	description, err := o.oracle.Complete(ctx, CompletionRequest{
		System:   "You describe photos in an elegant, suggestive but non-explicit way.",
		UserTurn: prompts.PhotoPrompt(character),
	})
	if err != nil {
		return "", wrapGeneration(err)
	}

	return description, nil
}

// Characters lists the catalog.
func (o *Orchestrator) Characters(ctx context.Context) ([]models.Character, error) {
	return o.chars.Characters(ctx)
}

// Usage returns the user's current counters.
func (o *Orchestrator) Usage(ctx context.Context, user *models.User) (models.UsageCounters, error) {
	return o.usage.Counters(ctx, user.ID)
}

// Snapshot failures are store failures: propagated with context, never
// swallowed. The generated state is still in memory, so the user retries the
// persistence, not the generation.
func (o *Orchestrator) snapshot(ctx context.Context, session models.StorySession, usage models.UsageCounters) error {
	if err := o.records.SaveStorySession(ctx, session); err != nil {
		return fmt.Errorf("save story session %s: %w", session.ID, err)
	}
	return o.snapshotUsage(ctx, usage)
}

func (o *Orchestrator) snapshotUsage(ctx context.Context, usage models.UsageCounters) error {
	if err := o.records.SaveUsageSnapshot(ctx, usage); err != nil {
		return fmt.Errorf("save usage snapshot for %s: %w", usage.UserID, err)
	}
	return nil
}
