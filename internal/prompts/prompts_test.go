package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amora/server/internal/models"
)

func TestPersonaComposition(t *testing.T) {
	p := models.Persona{
		Tone:      models.ToneBold,
		Intensity: models.IntensityModerate,
		Language:  models.LangPtBR,
		UseSlang:  true,
	}
	character := &models.Character{Name: "Valentina", Age: 27, Personality: "confident, daring"}

	prompt := Persona(p, character)

	assert.Contains(t, prompt, "Valentina, 27 years old")
	assert.Contains(t, prompt, "bold, confident")
	assert.Contains(t, prompt, "Balance romance and sensuality")
	assert.Contains(t, prompt, "Reply in pt-BR")
	assert.Contains(t, prompt, "mozão")
}

func TestPersonaWithoutSlang(t *testing.T) {
	p := models.Persona{Tone: models.ToneShy, Intensity: models.IntensityLight, Language: models.LangEN}

	prompt := Persona(p, nil)

	assert.Contains(t, prompt, "shy, sweet")
	assert.Contains(t, prompt, "without regional slang")
	assert.NotContains(t, prompt, "babe")
}

func TestPersonaEmojisMatchIntensity(t *testing.T) {
	hot := Persona(models.Persona{Tone: models.ToneBold, Intensity: models.IntensityHot, Language: models.LangEN}, nil)
	assert.Contains(t, hot, "🥵")

	light := Persona(models.Persona{Tone: models.ToneShy, Intensity: models.IntensityLight, Language: models.LangEN}, nil)
	assert.Contains(t, light, "🥰")
	assert.NotContains(t, light, "🥵")
}

func TestImageAnalysisPrompt(t *testing.T) {
	prompt := ImageAnalysisPrompt(models.Persona{Tone: models.ToneDominant, Intensity: models.IntensityHot})
	assert.Contains(t, prompt, "dominant")
	assert.Contains(t, prompt, "hot intensity")

	// Unknown settings fall back to the defaults.
	prompt = ImageAnalysisPrompt(models.Persona{Tone: "sarcastic", Intensity: "nuclear"})
	assert.Contains(t, prompt, string(models.DefaultPersona.Tone))
	assert.Contains(t, prompt, string(models.DefaultPersona.Intensity))
}

func TestPersonaFallsBackOnUnknownSettings(t *testing.T) {
	prompt := Persona(models.Persona{Tone: "sarcastic", Intensity: "nuclear", Language: models.LangEN}, nil)

	assert.Contains(t, prompt, "romantic, affectionate")
	assert.Contains(t, prompt, "Balance romance and sensuality")
}

func TestStoryOpeningVariants(t *testing.T) {
	premium := StoryOpening("hotel", true)
	assert.Contains(t, premium, "hotel room")
	assert.Contains(t, premium, "choice point")

	free := StoryOpening("hotel", false)
	assert.Contains(t, free, "Do NOT include choices")
	assert.NotContains(t, free, "choice point")
}

func TestParseStory(t *testing.T) {
	payload, err := ParseStory(`{"text": "The waves rolled in.", "choices": ["Stay", "Swim"]}`)
	require.NoError(t, err)
	assert.Equal(t, "The waves rolled in.", payload.Text)
	assert.Equal(t, []string{"Stay", "Swim"}, payload.Choices)
}

func TestParseStoryStripsFences(t *testing.T) {
	raw := "```json\n{\"text\": \"Night fell.\", \"choices\": []}\n```"
	payload, err := ParseStory(raw)
	require.NoError(t, err)
	assert.Equal(t, "Night fell.", payload.Text)
	assert.Empty(t, payload.Choices)
}

func TestParseStoryRejectsGarbage(t *testing.T) {
	_, err := ParseStory("sorry, I can't do that")
	assert.Error(t, err)

	_, err = ParseStory(`{"choices": ["a"]}`)
	assert.Error(t, err)
}

func TestParseMessages(t *testing.T) {
	msgs, err := ParseMessages(`{"messages": ["hey you", "thinking of you", "miss you"]}`)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

func TestParseMessagesSalvage(t *testing.T) {
	raw := `Here you go: "hey you", "thinking of you", "miss you already"`
	msgs, err := ParseMessages(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"hey you", "thinking of you", "miss you already"}, msgs)
}

func TestParseMessagesFailure(t *testing.T) {
	_, err := ParseMessages("no quotes here at all")
	assert.Error(t, err)
}

func TestAnalysisPrompt(t *testing.T) {
	prompt := AnalysisPrompt(AnalysisSentiment, []string{"hi", "hello"})
	assert.Contains(t, prompt, "sentiment")
	assert.Contains(t, prompt, "hi\n\nhello")

	// Unknown types fall back to summary.
	prompt = AnalysisPrompt("horoscope", []string{"hi"})
	assert.Contains(t, prompt, "Summarize")
}
