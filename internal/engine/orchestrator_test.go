package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amora/server/internal/entitlement"
	"amora/server/internal/models"
)

type fakeUsage struct {
	counters   models.UsageCounters
	characters map[string]bool
}

func newFakeUsage(messages, scenes int) *fakeUsage {
	return &fakeUsage{
		counters: models.UsageCounters{
			MessagesSentToday: messages,
			ScenesUsedToday:   scenes,
			ResetDate:         time.Now().UTC().Format(models.DateLayout),
		},
		characters: map[string]bool{},
	}
}

func (f *fakeUsage) Counters(context.Context, string) (models.UsageCounters, error) {
	return f.counters, nil
}

func (f *fakeUsage) IncrementMessages(context.Context, string) (models.UsageCounters, error) {
	f.counters.MessagesSentToday++
	return f.counters, nil
}

func (f *fakeUsage) IncrementScenes(context.Context, string) (models.UsageCounters, error) {
	f.counters.ScenesUsedToday++
	return f.counters, nil
}

func (f *fakeUsage) MarkCharacterUsed(_ context.Context, _, characterID string) (models.UsageCounters, error) {
	if !f.characters[characterID] {
		f.characters[characterID] = true
		f.counters.CharactersUsed++
	}
	return f.counters, nil
}

func (f *fakeUsage) CharacterUsed(_ context.Context, _, characterID string) (bool, error) {
	return f.characters[characterID], nil
}

type fakeConvs struct {
	conv     models.Conversation
	messages []models.Message
	cleared  bool
}

func (f *fakeConvs) Conversation(_ context.Context, userID, characterID string) (*models.Conversation, error) {
	if f.conv.ID == "" {
		f.conv = models.Conversation{ID: "conv-1", UserID: userID, CharacterID: characterID}
	}
	conv := f.conv
	return &conv, nil
}

func (f *fakeConvs) UpdatePersona(_ context.Context, _ string, p models.Persona) error {
	f.conv.Tone, f.conv.Intensity, f.conv.Language, f.conv.UseSlang = p.Tone, p.Intensity, p.Language, p.UseSlang
	return nil
}

func (f *fakeConvs) AppendMessage(_ context.Context, convID, role, content string) (*models.Message, error) {
	msg := models.Message{ID: fmt.Sprintf("m-%d", len(f.messages)), ConversationID: convID, Role: role, Content: content}
	f.messages = append(f.messages, msg)
	return &msg, nil
}

func (f *fakeConvs) RecentMessages(context.Context, string, int) ([]models.Message, error) {
	return f.messages, nil
}

func (f *fakeConvs) ClearHistory(context.Context, string) error {
	f.messages = nil
	f.cleared = true
	return nil
}

type fakeChars struct{}

func (fakeChars) Character(_ context.Context, id string) (*models.Character, error) {
	for _, c := range models.DefaultCharacters {
		if c.ID == id {
			character := c
			return &character, nil
		}
	}
	return nil, fmt.Errorf("character not found: %s", id)
}

func (fakeChars) Characters(context.Context) ([]models.Character, error) {
	return models.DefaultCharacters, nil
}

type fakeRecords struct {
	sessions  int
	usages    int
	saveError error
}

func (f *fakeRecords) SaveStorySession(context.Context, models.StorySession) error {
	if f.saveError != nil {
		return f.saveError
	}
	f.sessions++
	return nil
}

func (f *fakeRecords) SaveUsageSnapshot(context.Context, models.UsageCounters) error {
	if f.saveError != nil {
		return f.saveError
	}
	f.usages++
	return nil
}

type fakeEvents struct {
	published []string
}

func (f *fakeEvents) Publish(_, event string, _ interface{}) {
	f.published = append(f.published, event)
}

type orchFixture struct {
	orch    *Orchestrator
	oracle  *fakeOracle
	usage   *fakeUsage
	convs   *fakeConvs
	records *fakeRecords
	events  *fakeEvents
}

func newFixture(oracle *fakeOracle, usage *fakeUsage) *orchFixture {
	gate := entitlement.NewGate(entitlement.DefaultLimits)
	convs := &fakeConvs{}
	records := &fakeRecords{}
	events := &fakeEvents{}
	orch := NewOrchestrator(gate, oracle, NewTracker(gate, oracle), usage, convs, fakeChars{}, records, events, zerolog.Nop())
	return &orchFixture{orch: orch, oracle: oracle, usage: usage, convs: convs, records: records, events: events}
}

func TestMessageCapEndToEnd(t *testing.T) {
	// Free user at 19/20: one more message is allowed, the next is denied
	// and the counter stays at 20.
	oracle := &fakeOracle{replies: []string{"hey you 😊"}}
	fx := newFixture(oracle, newFakeUsage(19, 0))
	user := freeUser()

	msg, err := fx.orch.SendChatMessage(context.Background(), user, "luna", models.DefaultPersona, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hey you 😊", msg.Content)
	assert.Equal(t, 20, fx.usage.counters.MessagesSentToday)

	callsBefore := oracle.calls
	_, err = fx.orch.SendChatMessage(context.Background(), user, "luna", models.DefaultPersona, "hi again")
	ple, ok := AsPlanLimit(err)
	require.True(t, ok, "expected plan limit error, got %v", err)
	assert.Equal(t, entitlement.ReasonMessageLimitReached, ple.Reason)
	assert.Equal(t, 20, fx.usage.counters.MessagesSentToday)
	// A denied action never spends an oracle call.
	assert.Equal(t, callsBefore, oracle.calls)
}

func TestNoChargeOnOracleFailure(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("rate limited")}
	fx := newFixture(oracle, newFakeUsage(5, 0))

	_, err := fx.orch.SendChatMessage(context.Background(), freeUser(), "luna", models.DefaultPersona, "hi")
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, 5, fx.usage.counters.MessagesSentToday)
	assert.Empty(t, fx.convs.messages, "no partial turn should be persisted")
}

func TestChatAppendsBothTurns(t *testing.T) {
	oracle := &fakeOracle{replies: []string{"of course, darling"}}
	fx := newFixture(oracle, newFakeUsage(0, 0))

	_, err := fx.orch.SendChatMessage(context.Background(), premiumUser(), "valentina", models.DefaultPersona, "miss me?")
	require.NoError(t, err)
	require.Len(t, fx.convs.messages, 2)
	assert.Equal(t, models.RoleUser, fx.convs.messages[0].Role)
	assert.Equal(t, models.RoleAssistant, fx.convs.messages[1].Role)
	assert.Equal(t, []string{"chat_reply"}, fx.events.published)
}

func TestHotIntensityGatedOnFree(t *testing.T) {
	oracle := &fakeOracle{replies: []string{"reply"}}
	fx := newFixture(oracle, newFakeUsage(0, 0))

	persona := models.DefaultPersona
	persona.Intensity = models.IntensityHot

	_, err := fx.orch.SendChatMessage(context.Background(), freeUser(), "luna", persona, "hi")
	ple, ok := AsPlanLimit(err)
	require.True(t, ok)
	assert.Equal(t, entitlement.ReasonIntensityLocked, ple.Reason)
	assert.Zero(t, oracle.calls)
}

func TestPremiumCharacterLockedOnFree(t *testing.T) {
	oracle := &fakeOracle{replies: []string{"reply"}}
	fx := newFixture(oracle, newFakeUsage(0, 0))

	_, err := fx.orch.SelectCharacter(context.Background(), freeUser(), "valentina")
	ple, ok := AsPlanLimit(err)
	require.True(t, ok)
	assert.Equal(t, entitlement.ReasonCharacterLocked, ple.Reason)

	conv, err := fx.orch.SelectCharacter(context.Background(), freeUser(), "luna")
	require.NoError(t, err)
	assert.Equal(t, "luna", conv.CharacterID)
}

func TestFreeSceneLimit(t *testing.T) {
	oracle := &fakeOracle{replies: []string{openingNoChoices}}
	fx := newFixture(oracle, newFakeUsage(0, 0))
	user := freeUser()

	session, err := fx.orch.StartScenario(context.Background(), user, "beach")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, session.Status)
	assert.Equal(t, 1, fx.usage.counters.ScenesUsedToday)
	assert.Equal(t, 1, fx.records.sessions)

	// The one free scene is spent; a second start is denied before the
	// oracle is touched.
	fx.orch.ResetStory(user)
	callsBefore := oracle.calls
	_, err = fx.orch.StartScenario(context.Background(), user, "car")
	ple, ok := AsPlanLimit(err)
	require.True(t, ok)
	assert.Equal(t, entitlement.ReasonSceneLimitReached, ple.Reason)
	assert.Equal(t, callsBefore, oracle.calls)
	assert.Equal(t, 1, fx.usage.counters.ScenesUsedToday)
}

func TestNoSceneChargeOnFailedStart(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("boom")}
	fx := newFixture(oracle, newFakeUsage(0, 0))

	_, err := fx.orch.StartScenario(context.Background(), freeUser(), "beach")
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Zero(t, fx.usage.counters.ScenesUsedToday)
	assert.Zero(t, fx.records.sessions)
}

func TestPhotoRequestGate(t *testing.T) {
	oracle := &fakeOracle{replies: []string{"A soft golden-hour portrait."}}
	fx := newFixture(oracle, newFakeUsage(0, 0))

	_, err := fx.orch.RequestPhoto(context.Background(), freeUser(), "luna")
	ple, ok := AsPlanLimit(err)
	require.True(t, ok)
	assert.Equal(t, entitlement.ReasonPhotoLocked, ple.Reason)
	assert.Zero(t, oracle.calls)

	description, err := fx.orch.RequestPhoto(context.Background(), premiumUser(), "luna")
	require.NoError(t, err)
	assert.Equal(t, "A soft golden-hour portrait.", description)
}

func TestGenerateMessages(t *testing.T) {
	oracle := &fakeOracle{replies: []string{`{"messages": ["one", "two", "three"]}`}}
	fx := newFixture(oracle, newFakeUsage(0, 0))

	messages, err := fx.orch.GenerateMessages(context.Background(), freeUser(), "first date tomorrow")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, messages)
	assert.Equal(t, 1, fx.usage.counters.MessagesSentToday)
	assert.True(t, oracle.last.JSONMode)
}

func TestAnalyzeConversationValidation(t *testing.T) {
	oracle := &fakeOracle{replies: []string{"The tone is warm."}}
	fx := newFixture(oracle, newFakeUsage(0, 0))

	_, err := fx.orch.AnalyzeConversation(context.Background(), freeUser(), "astrology", []string{"hi"})
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Zero(t, oracle.calls)

	analysis, err := fx.orch.AnalyzeConversation(context.Background(), freeUser(), "sentiment", []string{"hi", "hey"})
	require.NoError(t, err)
	assert.Equal(t, "The tone is warm.", analysis)
}

func TestAnalyzeConversationPayloadCap(t *testing.T) {
	oracle := &fakeOracle{replies: []string{"The tone is warm."}}
	fx := newFixture(oracle, newFakeUsage(0, 0))

	// 501 characters of conversation text across two messages.
	long := []string{strings.Repeat("a", 400), strings.Repeat("b", 101)}
	_, err := fx.orch.AnalyzeConversation(context.Background(), freeUser(), "sentiment", long)
	ple, ok := AsPlanLimit(err)
	require.True(t, ok, "expected plan limit error, got %v", err)
	assert.Equal(t, entitlement.ReasonPayloadLimitReached, ple.Reason)
	assert.Zero(t, oracle.calls)
	assert.Zero(t, fx.usage.counters.MessagesSentToday)

	// Premium analyses have no size cap.
	analysis, err := fx.orch.AnalyzeConversation(context.Background(), premiumUser(), "sentiment", long)
	require.NoError(t, err)
	assert.Equal(t, "The tone is warm.", analysis)
}

func TestGenerateMessagesPayloadCap(t *testing.T) {
	oracle := &fakeOracle{}
	fx := newFixture(oracle, newFakeUsage(0, 0))

	_, err := fx.orch.GenerateMessages(context.Background(), freeUser(), strings.Repeat("x", 501))
	ple, ok := AsPlanLimit(err)
	require.True(t, ok)
	assert.Equal(t, entitlement.ReasonPayloadLimitReached, ple.Reason)
	assert.Zero(t, oracle.calls)
}

func TestAnalyzeImage(t *testing.T) {
	oracle := &fakeOracle{replies: []string{"A sunset over the marina."}}
	fx := newFixture(oracle, newFakeUsage(0, 0))

	_, err := fx.orch.AnalyzeImage(context.Background(), freeUser(), models.DefaultPersona, "")
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Zero(t, oracle.calls)

	analysis, err := fx.orch.AnalyzeImage(context.Background(), freeUser(), models.DefaultPersona, "https://cdn.example.com/shot.png")
	require.NoError(t, err)
	assert.Equal(t, "A sunset over the marina.", analysis)
	assert.Equal(t, "https://cdn.example.com/shot.png", oracle.last.ImageURL)
	assert.Equal(t, 1, fx.usage.counters.MessagesSentToday)
	assert.Equal(t, 1, fx.records.usages)
}

func TestReselectingCharacterKeepsOneSlot(t *testing.T) {
	oracle := &fakeOracle{}
	fx := newFixture(oracle, newFakeUsage(0, 0))
	user := freeUser()

	_, err := fx.orch.SelectCharacter(context.Background(), user, "luna")
	require.NoError(t, err)
	assert.Equal(t, 1, fx.usage.counters.CharactersUsed)

	// Coming back to the same character does not spend another slot.
	_, err = fx.orch.SelectCharacter(context.Background(), user, "luna")
	require.NoError(t, err)
	assert.Equal(t, 1, fx.usage.counters.CharactersUsed)
}

func TestSnapshotFailurePropagates(t *testing.T) {
	oracle := &fakeOracle{replies: []string{openingWithChoices}}
	fx := newFixture(oracle, newFakeUsage(0, 0))
	fx.records.saveError = errors.New("store unavailable")

	_, err := fx.orch.StartScenario(context.Background(), premiumUser(), "hotel")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
}

func TestClearHistory(t *testing.T) {
	oracle := &fakeOracle{replies: []string{"reply"}}
	fx := newFixture(oracle, newFakeUsage(0, 0))
	user := premiumUser()

	_, err := fx.orch.SendChatMessage(context.Background(), user, "luna", models.DefaultPersona, "hello")
	require.NoError(t, err)
	require.NotEmpty(t, fx.convs.messages)

	require.NoError(t, fx.orch.ClearHistory(context.Background(), user, "luna"))
	assert.Empty(t, fx.convs.messages)
	assert.True(t, fx.convs.cleared)
}
