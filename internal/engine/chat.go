package engine

import (
	"context"
	"fmt"

	"amora/server/internal/entitlement"
	"amora/server/internal/models"
	"amora/server/internal/prompts"
)

// historyWindow caps how many prior turns are sent to the oracle.
const historyWindow = 20

// SendChatMessage runs one chat turn: gate, persona prompt, oracle, append,
// charge. Nothing is appended and nothing is charged when the oracle fails.
func (o *Orchestrator) SendChatMessage(ctx context.Context, user *models.User, characterID string, persona models.Persona, text string) (*models.Message, error) {
	usage, err := o.usage.Counters(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load usage counters: %w", err)
	}

	decision := o.gate.Evaluate(user.Plan, usage, entitlement.Request{Action: entitlement.ActionSendMessage})
	if !decision.Allowed {
		return nil, &PlanLimitError{Reason: decision.Reason}
	}
	decision = o.gate.Evaluate(user.Plan, usage, entitlement.Request{
		Action:    entitlement.ActionSetIntensity,
		Intensity: persona.Intensity,
	})
	if !decision.Allowed {
		return nil, &PlanLimitError{Reason: decision.Reason}
	}

	character, err := o.chars.Character(ctx, characterID)
	if err != nil {
		return nil, err
	}
	used, err := o.usage.CharacterUsed(ctx, user.ID, characterID)
	if err != nil {
		return nil, fmt.Errorf("check character usage: %w", err)
	}
	decision = o.gate.Evaluate(user.Plan, usage, entitlement.Request{
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
	if persona != conv.Persona() {
		if err := o.convs.UpdatePersona(ctx, conv.ID, persona); err != nil {
			return nil, fmt.Errorf("update persona: %w", err)
		}
	}

	history, err := o.convs.RecentMessages(ctx, conv.ID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	turns := make([]ChatTurn, 0, len(history))
	for _, m := range history {
		turns = append(turns, ChatTurn{Role: m.Role, Content: m.Content})
	}

	reply, err := o.oracle.Complete(ctx, CompletionRequest{
		System:   prompts.Persona(persona, character),
		History:  turns,
		UserTurn: text,
	})
	if err != nil {
		return nil, wrapGeneration(err)
	}

	if _, err := o.convs.AppendMessage(ctx, conv.ID, models.RoleUser, text); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}
	msg, err := o.convs.AppendMessage(ctx, conv.ID, models.RoleAssistant, reply)
	if err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}

	if _, err = o.usage.IncrementMessages(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("increment message counter: %w", err)
	}
	// Chatting with a character counts it as used, same as an explicit pick.
	if usage, err = o.usage.MarkCharacterUsed(ctx, user.ID, characterID); err != nil {
		return nil, fmt.Errorf("mark character used: %w", err)
	}
	if err := o.snapshotUsage(ctx, usage); err != nil {
		return nil, err
	}

	o.events.Publish(user.ID, "chat_reply", msg)
	o.log.Debug().
		Str("user_id", user.ID).
		Str("character_id", characterID).
		Int("messages_today", usage.MessagesSentToday).
		Msg("chat message completed")

	return msg, nil
}

// ChatHistory returns the conversation's messages, oldest first.
func (o *Orchestrator) ChatHistory(ctx context.Context, user *models.User, characterID string, limit int) ([]models.Message, error) {
	conv, err := o.convs.Conversation(ctx, user.ID, characterID)
	if err != nil {
		return nil, err
	}
	return o.convs.RecentMessages(ctx, conv.ID, limit)
}

// ClearHistory truncates a conversation to empty. There is no partial edit.
func (o *Orchestrator) ClearHistory(ctx context.Context, user *models.User, characterID string) error {
	conv, err := o.convs.Conversation(ctx, user.ID, characterID)
	if err != nil {
		return err
	}
	return o.convs.ClearHistory(ctx, conv.ID)
}

// GenerateMessages produces three ready-to-send message options for a
// situation. Counts against the daily message cap.
func (o *Orchestrator) GenerateMessages(ctx context.Context, user *models.User, situation string) ([]string, error) {
	usage, err := o.usage.Counters(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load usage counters: %w", err)
	}

	decision := o.gate.Evaluate(user.Plan, usage, entitlement.Request{
		Action:      entitlement.ActionSendMessage,
		PayloadSize: len(situation),
	})
	if !decision.Allowed {
		return nil, &PlanLimitError{Reason: decision.Reason}
	}

	raw, err := o.oracle.Complete(ctx, CompletionRequest{
		System:      prompts.GeneratorSystem,
		UserTurn:    prompts.GeneratorPrompt(situation),
		JSONMode:    true,
		Temperature: 0.9,
	})
	if err != nil {
		return nil, wrapGeneration(err)
	}
	messages, err := prompts.ParseMessages(raw)
	if err != nil {
		return nil, wrapGeneration(err)
	}

	if usage, err = o.usage.IncrementMessages(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("increment message counter: %w", err)
	}
	if err := o.snapshotUsage(ctx, usage); err != nil {
		return nil, err
	}

	return messages, nil
}

// AnalyzeConversation runs a sentiment/suggestions/summary analysis over
// pasted conversation text. Counts against the daily message cap.
func (o *Orchestrator) AnalyzeConversation(ctx context.Context, user *models.User, analysisType string, messages []string) (string, error) {
	if !prompts.ValidAnalysisType(analysisType) {
		return "", fmt.Errorf("%w: unknown analysis type %q", ErrInvalidAction, analysisType)
	}

	usage, err := o.usage.Counters(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("load usage counters: %w", err)
	}

	// Free-plan analysis is capped by input size on top of the daily count.
	payload := 0
	for _, m := range messages {
		payload += len(m)
	}
	decision := o.gate.Evaluate(user.Plan, usage, entitlement.Request{
		Action:      entitlement.ActionSendMessage,
		PayloadSize: payload,
	})
	if !decision.Allowed {
		return "", &PlanLimitError{Reason: decision.Reason}
	}

	analysis, err := o.oracle.Complete(ctx, CompletionRequest{
		System:   prompts.AnalysisSystem,
		UserTurn: prompts.AnalysisPrompt(analysisType, messages),
	})
	if err != nil {
		return "", wrapGeneration(err)
	}

	if usage, err = o.usage.IncrementMessages(ctx, user.ID); err != nil {
		return "", fmt.Errorf("increment message counter: %w", err)
	}
	if err := o.snapshotUsage(ctx, usage); err != nil {
		return "", err
	}

	return analysis, nil
}

// AnalyzeImage runs a vision analysis over an uploaded image (typically a
// conversation screenshot or a photo), styled by the persona's tone and
// intensity. Counts against the daily message cap.
func (o *Orchestrator) AnalyzeImage(ctx context.Context, user *models.User, persona models.Persona, imageURL string) (string, error) {
	if imageURL == "" {
		return "", fmt.Errorf("%w: image url is required", ErrInvalidAction)
	}

	usage, err := o.usage.Counters(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("load usage counters: %w", err)
	}

	decision := o.gate.Evaluate(user.Plan, usage, entitlement.Request{Action: entitlement.ActionSendMessage})
	if !decision.Allowed {
		return "", &PlanLimitError{Reason: decision.Reason}
	}

	analysis, err := o.oracle.Complete(ctx, CompletionRequest{
		UserTurn: prompts.ImageAnalysisPrompt(persona),
		ImageURL: imageURL,
	})
	if err != nil {
		return "", wrapGeneration(err)
	}

	if usage, err = o.usage.IncrementMessages(ctx, user.ID); err != nil {
		return "", fmt.Errorf("increment message counter: %w", err)
	}
	if err := o.snapshotUsage(ctx, usage); err != nil {
		return "", err
	}

	return analysis, nil
}
