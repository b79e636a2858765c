package entitlement

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"amora/server/internal/models"
)

var testNow = func() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func testGate() *Gate {
	return NewGate(DefaultLimits).WithClock(testNow)
}

func todayUsage(messages, scenes int) models.UsageCounters {
	return models.UsageCounters{
		MessagesSentToday: messages,
		ScenesUsedToday:   scenes,
		ResetDate:         testNow().Format(models.DateLayout),
	}
}

func TestSendMessageBoundary(t *testing.T) {
	g := testGate()

	for n := 0; n < DefaultLimits.MessagesPerDay; n++ {
		t.Run(fmt.Sprintf("under_limit_%d", n), func(t *testing.T) {
			d := g.Evaluate(models.PlanFree, todayUsage(n, 0), Request{Action: ActionSendMessage})
			assert.True(t, d.Allowed)
			assert.Empty(t, d.Reason)
		})
	}

	for _, n := range []int{20, 21, 100} {
		d := g.Evaluate(models.PlanFree, todayUsage(n, 0), Request{Action: ActionSendMessage})
		assert.False(t, d.Allowed, "messages=%d should be denied", n)
		assert.Equal(t, ReasonMessageLimitReached, d.Reason)
	}
}

func TestPremiumBypassesAllGates(t *testing.T) {
	g := testGate()
	usage := todayUsage(9999, 9999)

	requests := []Request{
		{Action: ActionSendMessage},
		{Action: ActionSendMessage, PayloadSize: 100000},
		{Action: ActionSelectCharacter, CharacterPremium: true},
		{Action: ActionSelectCharacter, NewCharacter: true},
		{Action: ActionSetIntensity, Intensity: models.IntensityHot},
		{Action: ActionStartScene},
		{Action: ActionContinueStory},
		{Action: ActionRequestPhoto},
	}
	for _, req := range requests {
		d := g.Evaluate(models.PlanPremium, usage, req)
		assert.True(t, d.Allowed, "premium should pass %s", req.Action)
	}
}

func TestStaleCountersReadAsZero(t *testing.T) {
	g := testGate()

	// A full counter from yesterday must not block today's first message.
	usage := models.UsageCounters{
		MessagesSentToday: 20,
		ScenesUsedToday:   1,
		ResetDate:         "2025-06-14",
	}

	d := g.Evaluate(models.PlanFree, usage, Request{Action: ActionSendMessage})
	assert.True(t, d.Allowed)

	d = g.Evaluate(models.PlanFree, usage, Request{Action: ActionStartScene})
	assert.True(t, d.Allowed)
}

func TestCharacterGate(t *testing.T) {
	g := testGate()

	d := g.Evaluate(models.PlanFree, todayUsage(0, 0), Request{Action: ActionSelectCharacter})
	assert.True(t, d.Allowed)

	d = g.Evaluate(models.PlanFree, todayUsage(0, 0), Request{Action: ActionSelectCharacter, CharacterPremium: true})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonCharacterLocked, d.Reason)
}

func TestCharacterCountLimit(t *testing.T) {
	g := testGate()

	usage := todayUsage(0, 0)
	usage.CharactersUsed = DefaultLimits.MaxCharacters

	// A second distinct character in one day is locked on the free plan.
	d := g.Evaluate(models.PlanFree, usage, Request{Action: ActionSelectCharacter, NewCharacter: true})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonCharacterLimitReached, d.Reason)

	// Returning to a character already used today stays free.
	d = g.Evaluate(models.PlanFree, usage, Request{Action: ActionSelectCharacter})
	assert.True(t, d.Allowed)

	// Yesterday's characters do not count against today.
	usage.ResetDate = "2025-06-14"
	d = g.Evaluate(models.PlanFree, usage, Request{Action: ActionSelectCharacter, NewCharacter: true})
	assert.True(t, d.Allowed)
}

func TestPayloadLimit(t *testing.T) {
	g := testGate()

	d := g.Evaluate(models.PlanFree, todayUsage(0, 0), Request{Action: ActionSendMessage, PayloadSize: DefaultLimits.PayloadChars})
	assert.True(t, d.Allowed, "a payload exactly at the cap is allowed")

	d = g.Evaluate(models.PlanFree, todayUsage(0, 0), Request{Action: ActionSendMessage, PayloadSize: DefaultLimits.PayloadChars + 1})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonPayloadLimitReached, d.Reason)
}

func TestIntensityGate(t *testing.T) {
	g := testGate()

	for _, level := range []models.Intensity{models.IntensityLight, models.IntensityModerate} {
		d := g.Evaluate(models.PlanFree, todayUsage(0, 0), Request{Action: ActionSetIntensity, Intensity: level})
		assert.True(t, d.Allowed, "intensity %s should be free", level)
	}

	d := g.Evaluate(models.PlanFree, todayUsage(0, 0), Request{Action: ActionSetIntensity, Intensity: models.IntensityHot})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonIntensityLocked, d.Reason)
}

func TestPremiumOnlyActions(t *testing.T) {
	g := testGate()

	d := g.Evaluate(models.PlanFree, todayUsage(0, 0), Request{Action: ActionContinueStory})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonStoryContinuationLocked, d.Reason)

	d = g.Evaluate(models.PlanFree, todayUsage(0, 0), Request{Action: ActionRequestPhoto})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonPhotoLocked, d.Reason)
}

func TestSceneGate(t *testing.T) {
	g := testGate()

	d := g.Evaluate(models.PlanFree, todayUsage(0, 0), Request{Action: ActionStartScene})
	assert.True(t, d.Allowed)

	d = g.Evaluate(models.PlanFree, todayUsage(0, 1), Request{Action: ActionStartScene})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonSceneLimitReached, d.Reason)
}

func TestUnknownAction(t *testing.T) {
	g := testGate()

	d := g.Evaluate(models.PlanFree, todayUsage(0, 0), Request{Action: "teleport"})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInvalidAction, d.Reason)

	// Premium does not bypass malformed requests.
	d = g.Evaluate(models.PlanPremium, todayUsage(0, 0), Request{Action: "teleport"})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInvalidAction, d.Reason)
}
