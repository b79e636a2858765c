// Package entitlement decides whether a user's plan allows a gated action.
// Decisions are values, never errors: a denial is normal control flow and
// always carries a reason code the caller can render an upsell from.
package entitlement

import (
	"time"

	"amora/server/internal/models"
)

// Action is a gated user action.
type Action string

const (
	ActionSendMessage     Action = "send_message"
	ActionSelectCharacter Action = "select_character"
	ActionSetIntensity    Action = "set_intensity"
	ActionStartScene      Action = "start_scene"
	ActionContinueStory   Action = "continue_story"
	ActionRequestPhoto    Action = "request_photo"
)

// Reason explains a denial.
type Reason string

const (
	ReasonMessageLimitReached     Reason = "MESSAGE_LIMIT_REACHED"
	ReasonCharacterLocked         Reason = "CHARACTER_LOCKED"
	ReasonCharacterLimitReached   Reason = "CHARACTER_LIMIT_REACHED"
	ReasonIntensityLocked         Reason = "INTENSITY_LOCKED"
	ReasonSceneLimitReached       Reason = "SCENE_LIMIT_REACHED"
	ReasonStoryContinuationLocked Reason = "STORY_CONTINUATION_LOCKED"
	ReasonPhotoLocked             Reason = "PHOTO_LOCKED"
	ReasonPayloadLimitReached     Reason = "PAYLOAD_LIMIT_REACHED"
	ReasonInvalidAction           Reason = "INVALID_ACTION"
)

// Request describes one action attempt. Only the fields relevant to the
// action need to be set.
type Request struct {
	Action           Action
	CharacterPremium bool             // select_character
	NewCharacter     bool             // select_character: would add a distinct character today
	Intensity        models.Intensity // set_intensity
	PayloadSize      int              // characters of user-supplied text, 0 when not size-gated
}

// Decision is the gate's verdict. Reason is empty when Allowed.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

// Limits are the free plan caps. Premium bypasses all of them.
type Limits struct {
	MessagesPerDay int
	ScenesPerDay   int
	MaxCharacters  int
	PayloadChars   int
}

// DefaultLimits mirror the published free plan.
var DefaultLimits = Limits{
	MessagesPerDay: 20,
	ScenesPerDay:   1,
	MaxCharacters:  1,
	PayloadChars:   500,
}

// Gate evaluates entitlement requests. It is pure: no I/O, no mutation of
// the counters it reads. Counter resets belong to the orchestrator; the gate
// only tolerates stale counters by treating them as zero.
type Gate struct {
	limits Limits
	now    func() time.Time
}

func NewGate(limits Limits) *Gate {
	if limits.MessagesPerDay <= 0 {
		limits = DefaultLimits
	}
	if limits.PayloadChars <= 0 {
		limits.PayloadChars = DefaultLimits.PayloadChars
	}
	return &Gate{limits: limits, now: time.Now}
}

// WithClock overrides the gate's clock. Used in tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Evaluate returns the verdict for one action attempt under the given tier
// and usage counters.
func (g *Gate) Evaluate(tier models.PlanTier, usage models.UsageCounters, req Request) Decision {
	if tier == models.PlanPremium {
		if !validAction(req.Action) {
			return Decision{Allowed: false, Reason: ReasonInvalidAction}
		}
		return Decision{Allowed: true}
	}

	if !validAction(req.Action) {
		return Decision{Allowed: false, Reason: ReasonInvalidAction}
	}

	usage = g.effective(usage)

	// Free-plan analysis and generation are capped by input size.
	if req.PayloadSize > g.limits.PayloadChars {
		return Decision{Allowed: false, Reason: ReasonPayloadLimitReached}
	}

	switch req.Action {
	case ActionSendMessage:
		if usage.MessagesSentToday < g.limits.MessagesPerDay {
			return Decision{Allowed: true}
		}
		return Decision{Allowed: false, Reason: ReasonMessageLimitReached}

	case ActionSelectCharacter:
		if req.CharacterPremium {
			return Decision{Allowed: false, Reason: ReasonCharacterLocked}
		}
		if req.NewCharacter && usage.CharactersUsed >= g.limits.MaxCharacters {
			return Decision{Allowed: false, Reason: ReasonCharacterLimitReached}
		}
		return Decision{Allowed: true}

	case ActionSetIntensity:
		if req.Intensity != models.IntensityHot {
			return Decision{Allowed: true}
		}
		return Decision{Allowed: false, Reason: ReasonIntensityLocked}

	case ActionStartScene:
		if usage.ScenesUsedToday < g.limits.ScenesPerDay {
			return Decision{Allowed: true}
		}
		return Decision{Allowed: false, Reason: ReasonSceneLimitReached}

	case ActionContinueStory:
		// Free plan gets exactly one non-continuable scene.
		return Decision{Allowed: false, Reason: ReasonStoryContinuationLocked}

	case ActionRequestPhoto:
		return Decision{Allowed: false, Reason: ReasonPhotoLocked}
	}

	return Decision{Allowed: false, Reason: ReasonInvalidAction}
}

// effective zeroes counters whose reset date is older than today (UTC).
func (g *Gate) effective(usage models.UsageCounters) models.UsageCounters {
	today := g.now().UTC().Format(models.DateLayout)
	if usage.ResetDate != today {
		usage.MessagesSentToday = 0
		usage.ScenesUsedToday = 0
		usage.CharactersUsed = 0
	}
	return usage
}

func validAction(a Action) bool {
	switch a {
	case ActionSendMessage, ActionSelectCharacter, ActionSetIntensity,
		ActionStartScene, ActionContinueStory, ActionRequestPhoto:
		return true
	}
	return false
}
