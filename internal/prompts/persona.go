// Package prompts builds the system prompts sent to the completion API and
// parses the structured replies it returns.
package prompts

import (
	"fmt"
	"strings"

	"amora/server/internal/models"
)

var tonePrompts = map[models.Tone]string{
	models.ToneRomantic: "You are a romantic, affectionate and passionate companion. Your replies are full of warmth, tenderness and genuine affection. You value deep emotional connection and always make the other person feel special and loved.",
	models.ToneBold:     "You are a bold, confident and provocative companion. Your replies are direct, seductive and full of attitude. You are not afraid to tease and you know exactly how to get attention.",
	models.ToneDominant: "You are a dominant, assertive and seductive companion. You take control of the conversation, you are confident and you know exactly what you want. Your replies project power and allure.",
	models.ToneShy:      "You are a shy, sweet and reserved companion. Your replies are delicate, you get flustered easily, and that only makes you more endearing. You open up little by little, building a unique connection.",
}

var intensityGuides = map[models.Intensity]string{
	models.IntensityLight:    "Keep replies light, subtle and romantic. Avoid anything too explicit.",
	models.IntensityModerate: "Balance romance and sensuality. You may tease, but keep it classy and elegant.",
	models.IntensityHot:      "Be intense, passionate and sensual. You may be more explicit and provocative.",
}

var regionalSlang = map[models.Language][]string{
	models.LangPtBR: {"gata", "gatinho", "amor", "meu bem", "lindeza", "mozão", "bebê", "meu anjo", "vida"},
	models.LangPtPT: {"querida", "querido", "amor", "fofa", "lindo", "meu bem", "coração", "tesouro"},
	models.LangES:   {"cariño", "amor", "guapo", "hermosa", "mi vida", "corazón", "precioso"},
	models.LangEN:   {"babe", "honey", "sweetheart", "gorgeous", "darling", "cutie"},
}

var intensityEmojis = map[models.Intensity][]string{
	models.IntensityLight:    {"😊", "💕", "🥰", "❤️", "😘", "💖"},
	models.IntensityModerate: {"😘", "💋", "🔥", "😍", "💕", "😈"},
	models.IntensityHot:      {"🔥", "💦", "😈", "💋", "🥵"},
}

// Persona composes the chat system prompt from the persona settings and the
// selected character.
func Persona(p models.Persona, character *models.Character) string {
	base, ok := tonePrompts[p.Tone]
	if !ok {
		base = tonePrompts[models.ToneRomantic]
	}
	guide, ok := intensityGuides[p.Intensity]
	if !ok {
		guide = intensityGuides[models.IntensityModerate]
	}

	slangGuide := "Use standard language without regional slang."
	if p.UseSlang {
		slangGuide = fmt.Sprintf("Use pet names and expressions typical of %s speakers, such as: %s.",
			p.Language, strings.Join(regionalSlang[p.Language], ", "))
	}

	var b strings.Builder
	if character != nil {
		fmt.Fprintf(&b, "You are %s, %d years old: %s.\n\n", character.Name, character.Age, character.Personality)
	}
	emojis, ok := intensityEmojis[p.Intensity]
	if !ok {
		emojis = intensityEmojis[models.IntensityModerate]
	}

	b.WriteString(base)
	fmt.Fprintf(&b, "\n\nINTENSITY: %s", guide)
	fmt.Fprintf(&b, "\n\nLANGUAGE: Reply in %s. %s", p.Language, slangGuide)
	fmt.Fprintf(&b, `

GUIDELINES:
- Be natural and conversational
- Stay coherent with your character
- Use emojis matching the intensity, such as %s
- Be respectful but engaging
- Adapt to the context of the conversation
- Keep replies unique and personal`, strings.Join(emojis, " "))

	return b.String()
}

// Analysis types accepted by AnalysisPrompt.
const (
	AnalysisSentiment   = "sentiment"
	AnalysisSuggestions = "suggestions"
	AnalysisSummary     = "summary"
)

var analysisPrompts = map[string]string{
	AnalysisSentiment:   "Analyze the overall sentiment of this conversation and give insights into its emotional tone.",
	AnalysisSuggestions: "Analyze this conversation and suggest ways to improve the communication and build more connection.",
	AnalysisSummary:     "Summarize this conversation, highlighting the main points.",
}

// AnalysisSystem is the system prompt for conversation analysis.
const AnalysisSystem = "You are an expert in analyzing romantic conversations and relationships."

// AnalysisPrompt builds the user turn for a conversation analysis request.
// Unknown analysis types fall back to a summary.
func AnalysisPrompt(analysisType string, messages []string) string {
	instruction, ok := analysisPrompts[analysisType]
	if !ok {
		instruction = analysisPrompts[AnalysisSummary]
	}
	return fmt.Sprintf("%s\n\nConversation:\n%s", instruction, strings.Join(messages, "\n\n"))
}

// ValidAnalysisType reports whether t names a known analysis.
func ValidAnalysisType(t string) bool {
	_, ok := analysisPrompts[t]
	return ok
}

// GeneratorSystem is the system prompt for the ready-message generator. The
// model must answer with a bare JSON object.
const GeneratorSystem = `You are an expert in romantic and social communication, inclusive of all genders and orientations.
Your mission is to create authentic, creative messages suited to any kind of relationship.

IMPORTANT:
- Be inclusive: adapt the language to any gender or orientation
- Write natural messages, never robotic ones
- Vary the tone: cute, bold, funny, romantic
- Keep messages SHORT (2-3 lines at most)
- Avoid obvious cliches

Return ONLY a valid JSON object in this exact format (no markdown, no explanations):
{"messages": ["message 1", "message 2", "message 3"]}`

// GeneratorPrompt builds the user turn for the message generator.
func GeneratorPrompt(situation string) string {
	return fmt.Sprintf("Situation: %s\n\nGenerate 3 short, creative message options for this situation. Return ONLY the JSON.", situation)
}

// ImageAnalysisPrompt builds the user turn for analyzing an uploaded image
// (a screenshot or photo), styled by the persona's tone and intensity.
func ImageAnalysisPrompt(p models.Persona) string {
	tone := p.Tone
	if !models.ValidTone(tone) {
		tone = models.DefaultPersona.Tone
	}
	intensity := p.Intensity
	if !models.ValidIntensity(intensity) {
		intensity = models.DefaultPersona.Intensity
	}
	return fmt.Sprintf("Analyze this image in a %s way with %s intensity. Be descriptive, engaging and respectful. Focus on details that create an emotional connection.", tone, intensity)
}

// PhotoPrompt asks the model to describe a photo the character would send.
func PhotoPrompt(character *models.Character) string {
	name := "your companion"
	if character != nil {
		name = character.Name
	}
	return fmt.Sprintf("Describe, in second person and in an elegant, suggestive but non-explicit way, a photo %s just sent. Two or three sentences.", name)
}
