package config

import "strings"

// Provider selects the completion backend behind the classifier gateway.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// AIModels defines which models serve each classification tier
type AIModels struct {
	// Screening runs on every inbound message (needs to be fast and cheap)
	Screening string `json:"screening"`

	// Detailed runs only when screening confidence clears the threshold
	Detailed string `json:"detailed"`

	// Crisis generates supportive dialogue while an episode is open
	Crisis string `json:"crisis"`

	// Interpret classifies intent and maps ambiguous answers onto values
	Interpret string `json:"interpret"`

	// Transcription converts participant audio to text
	Transcription string `json:"transcription"`
}

// AIConfig holds all AI-related configuration
type AIConfig struct {
	Provider        Provider `json:"provider"`
	OpenAIKey       string   `json:"-"` // Never serialize
	OpenAIBaseURL   string   `json:"openaiBaseUrl,omitempty"`
	GeminiKey       string   `json:"-"`
	Models          AIModels `json:"models"`
	TimeoutMS       int      `json:"timeoutMs"`
	CrisisMaxTokens int      `json:"crisisMaxTokens"`
}

// DefaultAIConfig returns the AI configuration read from the environment
func DefaultAIConfig() *AIConfig {
	main := getEnvOrDefault("OPENAI_MODEL", "o3-2025-04-16")
	provider := Provider(strings.ToLower(getEnvOrDefault("AI_PROVIDER", string(ProviderOpenAI))))

	models := AIModels{
		Screening:     getEnvOrDefault("SCREENING_MODEL", "gpt-4.1-nano-2025-04-14"),
		Detailed:      main,
		Crisis:        main,
		Interpret:     main,
		Transcription: getEnvOrDefault("TRANSCRIPTION_MODEL", "whisper-1"),
	}
	if provider == ProviderGemini {
		models.Screening = getEnvOrDefault("GEMINI_MODEL_SCREENING", "gemini-2.0-flash")
		models.Detailed = getEnvOrDefault("GEMINI_MODEL_MAIN", "gemini-2.5-pro")
		models.Crisis = models.Detailed
		models.Interpret = models.Detailed
	}

	return &AIConfig{
		Provider:        provider,
		OpenAIKey:       getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnvOrDefault("OPENAI_BASE_URL", ""),
		GeminiKey:       getEnvOrDefault("GEMINI_API_KEY", ""),
		Models:          models,
		TimeoutMS:       getEnvInt("AI_TIMEOUT_MS", 30000),
		CrisisMaxTokens: getEnvInt("CRISIS_MAX_TOKENS", 600),
	}
}

// IsEnabled returns true if the selected provider has credentials
func (c *AIConfig) IsEnabled() bool {
	switch c.Provider {
	case ProviderGemini:
		return c.GeminiKey != ""
	default:
		return c.OpenAIKey != ""
	}
}

// TranscriptionEnabled reports whether audio can be transcribed.
// Transcription always goes through OpenAI, whatever the completion provider.
func (c *AIConfig) TranscriptionEnabled() bool {
	return c.OpenAIKey != ""
}
