package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"amora/server/internal/entitlement"
	"amora/server/internal/models"
	"amora/server/internal/prompts"
)

// Tracker owns the in-memory narrative session state machine, one active
// story per user. Segments are append-only; a failed generation never
// advances the state or leaves a half-written segment behind.
type Tracker struct {
	gate   *entitlement.Gate
	oracle Oracle

	mu       sync.RWMutex
	sessions map[string]*storySession
}

type storySession struct {
	snapshot models.StorySession
	// busy guards against double-submission from the same session. The UI
	// should debounce too; this is the boundary backstop.
	busy atomic.Bool
}

func NewTracker(gate *entitlement.Gate, oracle Oracle) *Tracker {
	return &Tracker{
		gate:     gate,
		oracle:   oracle,
		sessions: make(map[string]*storySession),
	}
}

// StartScenario generates the opening segment of a scenario. The first
// segment is never continuation-gated; scene-count gating happens in the
// orchestrator before this call. On the free plan the opening segment has
// its choices stripped and the session completes immediately.
func (t *Tracker) StartScenario(ctx context.Context, user *models.User, scenarioID string) (models.StorySession, error) {
	t.mu.Lock()
	if existing, ok := t.sessions[user.ID]; ok {
		t.mu.Unlock()
		if existing.snapshot.Status == models.SessionNotStarted {
			return models.StorySession{}, ErrRequestInFlight
		}
		return models.StorySession{}, ErrAlreadyStarted
	}

	// Placeholder blocks concurrent starts while the oracle call runs.
	placeholder := &storySession{
		snapshot: models.StorySession{
			ID:         uuid.NewString(),
			UserID:     user.ID,
			ScenarioID: scenarioID,
			Status:     models.SessionNotStarted,
			CreatedAt:  time.Now(),
		},
	}
	t.sessions[user.ID] = placeholder
	t.mu.Unlock()

	raw, err := t.oracle.Complete(ctx, CompletionRequest{
		System:      prompts.StorySystem,
		UserTurn:    prompts.StoryOpening(scenarioID, user.IsPremium()),
		JSONMode:    true,
		Temperature: 0.8,
	})
	if err == nil {
		var payload prompts.StoryPayload
		payload, err = prompts.ParseStory(raw)
		if err == nil {
			t.mu.Lock()
			t.applySegment(placeholder, user, payload)
			snapshot := copySession(placeholder.snapshot)
			t.mu.Unlock()
			return snapshot, nil
		}
	}

	// No partial segment: the session never started.
	t.mu.Lock()
	delete(t.sessions, user.ID)
	t.mu.Unlock()
	return models.StorySession{}, wrapGeneration(err)
}

// SubmitChoice continues the story from a live choice. The entitlement gate
// is consulted before the oracle; on denial or oracle failure the session is
// left exactly as it was, so the user can retry after upgrading without
// losing the pending choice.
func (t *Tracker) SubmitChoice(ctx context.Context, user *models.User, usage models.UsageCounters, choice string) (models.StorySession, error) {
	t.mu.RLock()
	session, ok := t.sessions[user.ID]
	t.mu.RUnlock()
	if !ok || session.snapshot.Status == models.SessionNotStarted {
		return models.StorySession{}, ErrSessionNotFound
	}

	if !session.busy.CompareAndSwap(false, true) {
		return models.StorySession{}, ErrRequestInFlight
	}
	defer session.busy.Store(false)

	t.mu.RLock()
	snapshot := copySession(session.snapshot)
	t.mu.RUnlock()

	if snapshot.Status == models.SessionCompleted || !snapshot.AwaitingChoice {
		return models.StorySession{}, ErrSessionTerminal
	}

	decision := t.gate.Evaluate(user.Plan, usage, entitlement.Request{Action: entitlement.ActionContinueStory})
	if !decision.Allowed {
		return models.StorySession{}, &PlanLimitError{Reason: decision.Reason}
	}

	raw, err := t.oracle.Complete(ctx, CompletionRequest{
		System:      prompts.StorySystem,
		UserTurn:    prompts.StoryContinuation(prompts.JoinSegments(snapshot.Segments), choice),
		JSONMode:    true,
		Temperature: 0.8,
	})
	if err != nil {
		return models.StorySession{}, wrapGeneration(err)
	}
	payload, err := prompts.ParseStory(raw)
	if err != nil {
		return models.StorySession{}, wrapGeneration(err)
	}

	t.mu.Lock()
	t.applySegment(session, user, payload)
	result := copySession(session.snapshot)
	t.mu.Unlock()
	return result, nil
}

// Reset discards the user's session. Idempotent: resetting an absent session
// is a no-op, and the next StartScenario sees NotStarted.
func (t *Tracker) Reset(userID string) {
	t.mu.Lock()
	delete(t.sessions, userID)
	t.mu.Unlock()
}

// Session returns a copy of the user's current session.
func (t *Tracker) Session(userID string) (models.StorySession, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	session, ok := t.sessions[userID]
	if !ok || session.snapshot.Status == models.SessionNotStarted {
		return models.StorySession{}, false
	}
	return copySession(session.snapshot), true
}

// applySegment appends a generated segment and advances the state machine.
// Caller holds t.mu.
func (t *Tracker) applySegment(session *storySession, user *models.User, payload prompts.StoryPayload) {
	choices := payload.Choices
	if !user.IsPremium() {
		// The free plan never offers continuation, whatever the model says.
		choices = []string{}
	}

	segment := models.StorySegment{
		ID:        uuid.NewString(),
		SessionID: session.snapshot.ID,
		Position:  len(session.snapshot.Segments),
		Text:      payload.Text,
		Choices:   choices,
		CreatedAt: time.Now(),
	}
	session.snapshot.Segments = append(session.snapshot.Segments, segment)
	session.snapshot.AwaitingChoice = len(choices) > 0
	session.snapshot.UpdatedAt = segment.CreatedAt

	if user.IsPremium() {
		session.snapshot.Status = models.SessionInProgress
	} else {
		session.snapshot.Status = models.SessionCompleted
	}
}

func copySession(s models.StorySession) models.StorySession {
	out := s
	out.Segments = make([]models.StorySegment, len(s.Segments))
	copy(out.Segments, s.Segments)
	return out
}

func wrapGeneration(err error) error {
	if err == nil {
		return ErrGenerationFailed
	}
	return &generationError{cause: err}
}

type generationError struct {
	cause error
}

func (e *generationError) Error() string   { return "generation failed: " + e.cause.Error() }
func (e *generationError) Unwrap() []error { return []error{ErrGenerationFailed, e.cause} }
