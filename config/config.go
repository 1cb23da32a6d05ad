package config

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	Env          string
	Port         string
	BaseURL      string
	FrontendURL  string
	URL          string
	DatabaseName string
	AdminKey     string
	StaticDir    string
	NATSURL      string

	VerificationTokenTTL time.Duration
	ResyncSchedule       string

	Mail       Mail
	ConvertKit ConvertKit
	Rewards    Rewards
	Limits     Limits
}

// Mail configures the transactional mail providers. SendGrid wins when both keys are set.
type Mail struct {
	SendGridAPIKey   string
	MailerSendAPIKey string
	From             string
	FromName         string
}

// ConvertKit configures the email-automation sync. Any empty tag disables that tag call.
type ConvertKit struct {
	APIURL         string
	APIKey         string
	APISecret      string
	FormID         string
	TagWaitlist    string
	TierTags       [5]string
	TagNewReferral string
	Timeout        time.Duration
}

// Enabled reports whether subscriber calls can be made at all.
func (c ConvertKit) Enabled() bool {
	return c.APIKey != "" && c.FormID != ""
}

// Rewards holds the download links shown on the dashboard for each tier.
type Rewards struct {
	ColdEmailBible   string
	EmailGenerator   string
	NichesPrompt     string
	PartnerDiscounts string
	Tier1            string
	Tier2            string
	Tier3            string
	Tier4            string
}

// Limits holds the per-IP rate limits of the public endpoints.
type Limits struct {
	SignupRequests int
	SignupWindow   time.Duration
	ResendRequests int
	ResendWindow   time.Duration
}

// New sets up all config related services
func New() *Config {
	// a missing .env is fine, the environment wins anyway
	_ = godotenv.Load()

	env := getEnv("APP_ENV", getEnv("NODE_ENV", "production"))

	//setup zap logger and replace default logger
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		Env:          env,
		Port:         getEnv("PORT", "3001"),
		BaseURL:      strings.TrimRight(getEnv("BASE_URL", "https://leadformatter.com"), "/"),
		FrontendURL:  os.Getenv("FRONTEND_URL"),
		URL:          getEnv("DB_URI", os.Getenv("MONGO_URI")),
		DatabaseName: getEnv("DB_NAME", "waitlist"),
		AdminKey:     os.Getenv("WAITLIST_ADMIN_KEY"),
		StaticDir:    os.Getenv("STATIC_DIR"),
		NATSURL:      os.Getenv("NATS_URL"),

		VerificationTokenTTL: getDuration("VERIFICATION_TOKEN_TTL", 24*time.Hour),
		ResyncSchedule:       getEnv("RESYNC_SCHEDULE", "*/15 * * * *"),

		Mail: Mail{
			SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
			MailerSendAPIKey: os.Getenv("MAILERSEND_API_KEY"),
			From:             getEnv("MAIL_FROM", "no-reply@leadformatter.com"),
			FromName:         getEnv("MAIL_FROM_NAME", "Lead Formatter"),
		},
		ConvertKit: ConvertKit{
			APIURL:      getEnv("CONVERTKIT_API_URL", "https://api.convertkit.com/v3"),
			APIKey:      os.Getenv("CONVERTKIT_API_KEY"),
			APISecret:   os.Getenv("CONVERTKIT_API_SECRET"),
			FormID:      os.Getenv("CONVERTKIT_FORM_ID"),
			TagWaitlist: os.Getenv("CONVERTKIT_TAG_WAITLIST"),
			TierTags: [5]string{
				os.Getenv("CONVERTKIT_TAG_TIER_0"),
				os.Getenv("CONVERTKIT_TAG_TIER_1"),
				os.Getenv("CONVERTKIT_TAG_TIER_2"),
				os.Getenv("CONVERTKIT_TAG_TIER_3"),
				os.Getenv("CONVERTKIT_TAG_TIER_4"),
			},
			TagNewReferral: os.Getenv("CONVERTKIT_TAG_NEW_REFERRAL"),
			Timeout:        getDuration("CONVERTKIT_TIMEOUT", 10*time.Second),
		},
		Rewards: Rewards{
			ColdEmailBible:   getEnv("REWARD_COLD_EMAIL_BIBLE", "#"),
			EmailGenerator:   getEnv("REWARD_EMAIL_GENERATOR", "#"),
			NichesPrompt:     getEnv("REWARD_NICHES_PROMPT", "#"),
			PartnerDiscounts: getEnv("REWARD_PARTNER_DISCOUNTS", "#"),
			Tier1:            getEnv("REWARD_TIER_1", "#"),
			Tier2:            getEnv("REWARD_TIER_2", "#"),
			Tier3:            getEnv("REWARD_TIER_3", "#"),
			Tier4:            getEnv("REWARD_TIER_4", "#"),
		},
		Limits: Limits{
			SignupRequests: getInt("SIGNUP_LIMIT", 3),
			SignupWindow:   getDuration("SIGNUP_WINDOW", 24*time.Hour),
			ResendRequests: getInt("RESEND_LIMIT", 5),
			ResendWindow:   getDuration("RESEND_WINDOW", time.Hour),
		},
	}
}

// IsDevelopment reports whether responses may carry verification links for manual testing.
func (c Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "local"
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err. The error itself only goes to the log.
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	if err != nil {
		zap.S().Errorw(message, "error", err, "status", httpStatusCode)
	} else {
		zap.S().Infow(message, "status", httpStatusCode)
	}
	WriteJSON(w, httpStatusCode, map[string]interface{}{"error": message})
}

// WriteJSON writes v as the JSON body with the given status code
func WriteJSON(w http.ResponseWriter, httpStatusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorw("failed to encode response", "error", err)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
