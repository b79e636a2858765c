package models

// Tone is a character's conversational tone.
type Tone string

const (
	ToneRomantic Tone = "romantic"
	ToneBold     Tone = "bold"
	ToneDominant Tone = "dominant"
	ToneShy      Tone = "shy"
)

// Intensity controls how suggestive replies may be. Hot is premium-only.
type Intensity string

const (
	IntensityLight    Intensity = "light"
	IntensityModerate Intensity = "moderate"
	IntensityHot      Intensity = "hot"
)

// Language selects the reply language and the regional slang set.
type Language string

const (
	LangPtBR Language = "pt-BR"
	LangPtPT Language = "pt-PT"
	LangES   Language = "es"
	LangEN   Language = "en"
)

// Persona is the per-conversation AI personality configuration.
type Persona struct {
	Tone      Tone      `json:"tone"`
	Intensity Intensity `json:"intensity"`
	Language  Language  `json:"language"`
	UseSlang  bool      `json:"use_slang"`
}

// DefaultPersona is used when a conversation carries no explicit settings.
var DefaultPersona = Persona{
	Tone:      ToneRomantic,
	Intensity: IntensityModerate,
	Language:  LangEN,
	UseSlang:  false,
}

func ValidTone(t Tone) bool {
	switch t {
	case ToneRomantic, ToneBold, ToneDominant, ToneShy:
		return true
	}
	return false
}

func ValidIntensity(i Intensity) bool {
	switch i {
	case IntensityLight, IntensityModerate, IntensityHot:
		return true
	}
	return false
}

func ValidLanguage(l Language) bool {
	switch l {
	case LangPtBR, LangPtPT, LangES, LangEN:
		return true
	}
	return false
}
