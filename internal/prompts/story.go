package prompts

import (
	"fmt"

	"amora/server/internal/models"
)

// StorySystem is the system prompt for fantasy story generation. The model
// must answer with a bare JSON object.
const StorySystem = "You are a writer specialized in interactive romantic stories. Your stories are elegant, engaging and respectful, building tension and chemistry without being explicit. You always answer with valid JSON and no markdown."

var scenarioPrompts = map[string]string{
	"car":      "an intimate, passionate encounter inside a car parked somewhere private and romantic",
	"hotel":    "a luxurious, sensual night in a sophisticated hotel room with champagne and a romantic atmosphere",
	"distance": "an intense, teasing connection through messages and calls across the distance",
	"beach":    "a romantic, passionate encounter on a deserted beach under the moonlight",
	"home":     "an intimate, unhurried moment at home, exploring the connection",
	"surprise": "an unexpected, surprising encounter that transforms the relationship",
}

// ScenarioDescription returns the prose setting for a scenario id, falling
// back to the first scenario for unknown ids.
func ScenarioDescription(scenarioID string) string {
	if desc, ok := scenarioPrompts[scenarioID]; ok {
		return desc
	}
	return scenarioPrompts["car"]
}

// StoryOpening builds the prompt for a story's first segment. Premium
// openings end on a choice point; free openings are one short complete scene
// with no choices.
func StoryOpening(scenarioID string, premium bool) string {
	desc := ScenarioDescription(scenarioID)

	if premium {
		return fmt.Sprintf(`Write the opening of an interactive romantic story about %s.

IMPORTANT:
- Use elegant, suggestive but non-explicit language
- Build tension and chemistry between the characters
- Be inclusive of all genders and orientations
- End at an interesting choice point
- Around 200-250 words

Return ONLY a valid JSON object in this exact format (no markdown, no explanations):
{
  "text": "story text here",
  "choices": ["Option 1", "Option 2", "Option 3"]
}`, desc)
	}

	return fmt.Sprintf(`Write a short, complete and engaging scene about %s.

IMPORTANT:
- Use elegant, suggestive but non-explicit language
- Build tension and chemistry between the characters
- Be inclusive of all genders and orientations
- The scene must be complete (beginning, middle and a satisfying end)
- Around 150-180 words
- Do NOT include choices

Return ONLY a valid JSON object in this exact format (no markdown, no explanations):
{
  "text": "complete scene text here",
  "choices": []
}`, desc)
}

// StoryContinuation builds the prompt for the segment following a choice.
func StoryContinuation(priorText, choice string) string {
	return fmt.Sprintf(`Continue this interactive story based on the reader's choice.

STORY SO FAR:
%s

READER'S CHOICE: %s

IMPORTANT:
- Continue naturally from the choice
- Keep the romantic, sensual tone
- Develop the tension and chemistry
- Be inclusive of all genders and orientations
- End at a new choice point
- Around 200-250 words

Return ONLY a valid JSON object in this exact format (no markdown, no explanations):
{
  "text": "continuation here",
  "choices": ["Option 1", "Option 2", "Option 3"]
}`, priorText, choice)
}

// JoinSegments concatenates segment texts into the story-so-far block.
func JoinSegments(segments []models.StorySegment) string {
	out := ""
	for i, seg := range segments {
		if i > 0 {
			out += "\n\n"
		}
		out += seg.Text
	}
	return out
}
