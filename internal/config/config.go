package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of the service.
type Config struct {
	HTTPPort       string
	MongoURI       string
	MongoDatabase  string
	RedisAddr      string
	LogLevel       string
	LogDevelopment bool

	QuestionnaireSource string // "file" or "mongo"
	QuestionnairePath   string // empty means the embedded default

	AI       *AIConfig
	Twilio   TwilioConfig
	Staff    StaffConfig
	Dispatch DispatchConfig
	Safety   SafetyConfig
	Audio    AudioConfig
	Policy   PolicyConfig
}

type TwilioConfig struct {
	AccountSID   string
	AuthToken    string
	WhatsAppFrom string
	BaseURL      string
	// PublicURL is the externally visible webhook URL, used for signature checks.
	PublicURL         string
	ValidateSignature bool
	// MediaHosts are the domains trusted with account credentials when
	// fetching inbound media. Subdomains match.
	MediaHosts []string
}

type StaffConfig struct {
	Username  string
	Password  string
	JWTSecret string
	TokenTTL  time.Duration
}

type DispatchConfig struct {
	Workers           int
	MessageTimeout    time.Duration
	InterMessageDelay time.Duration
	LockTTL           time.Duration
	LockWait          time.Duration
	DedupeTTL         time.Duration
}

// SafetyConfig holds the escalation thresholds.
type SafetyConfig struct {
	ScreeningThreshold  float64 // screening confidence >= this runs the detailed pass
	EmergencyConfidence float64 // detailed confidence > this opens a crisis
}

// AudioConfig holds per-question-type duration ceilings.
type AudioConfig struct {
	MaxMultipleChoice time.Duration
	MaxLikert         time.Duration
	MaxText           time.Duration
	BytesPerSecond    int
}

// PolicyConfig holds the questionnaire budgets.
type PolicyConfig struct {
	SkipCap                  int
	RequiredAttempts         int
	OptionalAttempts         int
	ClarificationLimit       int
	ClarifyConfidence        float64
	OffTopicConfidence       float64
	InterpretationConfidence float64
	RiskCutoff               float64
	RequiredQuestionIDs      []string
	MaxTextLength            int
}

const (
	defaultStaffPassword = "password123"
	defaultJWTSecret     = "super-secret-key-change-in-production"
)

// Load reads .env (if present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	redisAddr := getEnvOrDefault("REDIS_URI", "localhost:6379")
	redisAddr = strings.TrimPrefix(redisAddr, "redis://")

	return &Config{
		HTTPPort:       getEnvOrDefault("PORT", "8080"),
		MongoURI:       getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:  getEnvOrDefault("MONGO_DATABASE", "vocalsilence"),
		RedisAddr:      redisAddr,
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		LogDevelopment: getEnvBool("LOG_DEVELOPMENT", false),

		QuestionnaireSource: getEnvOrDefault("QUESTIONNAIRE_SOURCE", "file"),
		QuestionnairePath:   getEnvOrDefault("QUESTIONNAIRE_PATH", ""),

		AI: DefaultAIConfig(),
		Twilio: TwilioConfig{
			AccountSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:         os.Getenv("TWILIO_AUTH_TOKEN"),
			WhatsAppFrom:      os.Getenv("TWILIO_WHATSAPP_FROM"),
			BaseURL:           getEnvOrDefault("TWILIO_BASE_URL", "https://api.twilio.com/2010-04-01"),
			PublicURL:         os.Getenv("TWILIO_WEBHOOK_URL"),
			ValidateSignature: getEnvBool("TWILIO_VALIDATE_SIGNATURE", true),
			MediaHosts:        splitList(getEnvOrDefault("TWILIO_MEDIA_HOSTS", "twilio.com")),
		},
		Staff: StaffConfig{
			Username:  getEnvOrDefault("STAFF_USERNAME", "admin"),
			Password:  getEnvOrDefault("STAFF_PASSWORD", defaultStaffPassword),
			JWTSecret: getEnvOrDefault("JWT_SECRET", defaultJWTSecret),
			TokenTTL:  getEnvDuration("STAFF_TOKEN_TTL", 12*time.Hour),
		},
		Dispatch: DispatchConfig{
			Workers:           getEnvInt("DISPATCH_WORKERS", 16),
			MessageTimeout:    getEnvDuration("MESSAGE_TIMEOUT", 2*time.Minute),
			InterMessageDelay: getEnvDuration("INTER_MESSAGE_DELAY", 500*time.Millisecond),
			LockTTL:           getEnvDuration("PARTICIPANT_LOCK_TTL", 3*time.Minute),
			LockWait:          getEnvDuration("PARTICIPANT_LOCK_WAIT", 90*time.Second),
			DedupeTTL:         getEnvDuration("DEDUPE_TTL", 24*time.Hour),
		},
		Safety: SafetyConfig{
			ScreeningThreshold:  getEnvFloat("SAFETY_CONFIDENCE_THRESHOLD", 0.4),
			EmergencyConfidence: getEnvFloat("EMERGENCY_CONFIDENCE", 0.6),
		},
		Audio: AudioConfig{
			MaxMultipleChoice: time.Duration(getEnvInt("MAX_AUDIO_DURATION_MULTIPLE_CHOICE", 15)) * time.Second,
			MaxLikert:         time.Duration(getEnvInt("MAX_AUDIO_DURATION_LIKERT", 15)) * time.Second,
			MaxText:           time.Duration(getEnvInt("MAX_AUDIO_DURATION_TEXT", 120)) * time.Second,
			BytesPerSecond:    getEnvInt("AUDIO_BYTES_PER_SECOND", 6000),
		},
		Policy: DefaultPolicy(),
	}
}

// CheckServe rejects settings that are only acceptable on a development
// machine: the built-in staff credentials and unsigned webhooks.
func (c *Config) CheckServe() error {
	if c.LogDevelopment {
		return nil
	}
	var errs []error
	if c.Staff.Password == defaultStaffPassword {
		errs = append(errs, errors.New("STAFF_PASSWORD is the built-in default"))
	}
	if c.Staff.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET is the built-in default"))
	}
	if !c.Twilio.ValidateSignature {
		errs = append(errs, errors.New("TWILIO_VALIDATE_SIGNATURE is off"))
	} else if c.Twilio.AuthToken == "" || c.Twilio.PublicURL == "" {
		errs = append(errs, errors.New("signature checks need TWILIO_AUTH_TOKEN and TWILIO_WEBHOOK_URL"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("refusing to serve outside LOG_DEVELOPMENT: %w", err)
	}
	return nil
}

// DefaultPolicy returns the questionnaire budgets.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		SkipCap:                  getEnvInt("SKIP_CAP", 5),
		RequiredAttempts:         5,
		OptionalAttempts:         3,
		ClarificationLimit:       2,
		ClarifyConfidence:        0.6,
		OffTopicConfidence:       0.7,
		InterpretationConfidence: 0.7,
		RiskCutoff:               3.0,
		RequiredQuestionIDs:      splitList(getEnvOrDefault("REQUIRED_QUESTION_IDS", "4,5,7")),
		MaxTextLength:            500,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
