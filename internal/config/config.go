package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/restaurant-voice/backend/internal/policy"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	AdminKey       string        `mapstructure:"ADMIN_KEY"`

	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`

	RedisURL      string        `mapstructure:"REDIS_URL"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`

	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`
	OperatorPhone string `mapstructure:"OPERATOR_PHONE"`
	VoiceLanguage string `mapstructure:"VOICE_LANGUAGE"`
	VoiceName     string `mapstructure:"VOICE_NAME"`

	RestaurantName     string `mapstructure:"RESTAURANT_NAME"`
	Timezone           string `mapstructure:"TIMEZONE"`
	DefaultCountryCode string `mapstructure:"DEFAULT_COUNTRY_CODE"`
	MaxSlotRetries     int    `mapstructure:"MAX_SLOT_RETRIES"`
	MenuPath           string `mapstructure:"MENU_PATH"`

	WeekdayHours          string        `mapstructure:"WEEKDAY_HOURS"`
	WeekendHours          string        `mapstructure:"WEEKEND_HOURS"`
	LastReservationOffset time.Duration `mapstructure:"LAST_RESERVATION_OFFSET"`
	ClosedDates           string        `mapstructure:"CLOSED_DATES"`
	SpecialHours          string        `mapstructure:"SPECIAL_HOURS"`

	SlotGranularityMinutes int `mapstructure:"SLOT_GRANULARITY_MINUTES"`
	MinLeadTimeMinutes     int `mapstructure:"MIN_LEAD_TIME_MINUTES"`
	MaxHorizonDays         int `mapstructure:"MAX_HORIZON_DAYS"`
	MinPartySize           int `mapstructure:"MIN_PARTY_SIZE"`
	MaxPartySize           int `mapstructure:"MAX_PARTY_SIZE"`
	LargePartyThreshold    int `mapstructure:"LARGE_PARTY_THRESHOLD"`
	MaxPartyWithoutNotes   int `mapstructure:"MAX_PARTY_WITHOUT_NOTES"`
	EscalationPartySize    int `mapstructure:"ESCALATION_PARTY_SIZE"`
	MinNotesLength         int `mapstructure:"MIN_NOTES_LENGTH"`
	DefaultDurationMinutes int `mapstructure:"DEFAULT_DURATION_MINUTES"`
	MinDurationMinutes     int `mapstructure:"MIN_DURATION_MINUTES"`
	MaxDurationMinutes     int `mapstructure:"MAX_DURATION_MINUTES"`
	MaxCapacity            int `mapstructure:"MAX_CAPACITY"`
	MaxConcurrent          int `mapstructure:"MAX_CONCURRENT_RESERVATIONS"`
	TurnoverMinutes        int `mapstructure:"TURNOVER_MINUTES"`
	SameDayNoticeHours     int `mapstructure:"SAME_DAY_NOTICE_HOURS"`
	DuplicateWindowMinutes int `mapstructure:"DUPLICATE_WINDOW_MINUTES"`
	DuplicateStepMinutes   int `mapstructure:"DUPLICATE_STEP_MINUTES"`

	MQTTBrokerURL   string `mapstructure:"MQTT_BROKER_URL"`
	MQTTClientID    string `mapstructure:"MQTT_CLIENT_ID"`
	MQTTUsername    string `mapstructure:"MQTT_USERNAME"`
	MQTTPassword    string `mapstructure:"MQTT_PASSWORD"`
	MQTTTopicPrefix string `mapstructure:"MQTT_TOPIC_PREFIX"`

	TracingEnabled bool `mapstructure:"TRACING_ENABLED"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("ADMIN_KEY", "")

	v.SetDefault("STORAGE_DRIVER", "memory")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "restaurant.db")

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("SESSION_TTL", "30m")

	v.SetDefault("PUBLIC_BASE_URL", "")
	v.SetDefault("OPERATOR_PHONE", "")
	v.SetDefault("VOICE_LANGUAGE", "en-US")
	v.SetDefault("VOICE_NAME", "Polly.Joanna")

	v.SetDefault("RESTAURANT_NAME", "our restaurant")
	v.SetDefault("TIMEZONE", "Europe/Bratislava")
	v.SetDefault("DEFAULT_COUNTRY_CODE", "+421")
	v.SetDefault("MAX_SLOT_RETRIES", 3)
	v.SetDefault("MENU_PATH", "")

	v.SetDefault("WEEKDAY_HOURS", "11:00-23:00")
	v.SetDefault("WEEKEND_HOURS", "10:00-23:59")
	v.SetDefault("LAST_RESERVATION_OFFSET", "120m")
	v.SetDefault("CLOSED_DATES", "")
	v.SetDefault("SPECIAL_HOURS", "")

	rules := policy.DefaultRules()
	v.SetDefault("SLOT_GRANULARITY_MINUTES", minutes(rules.SlotGranularity))
	v.SetDefault("MIN_LEAD_TIME_MINUTES", minutes(rules.MinLeadTime))
	v.SetDefault("MAX_HORIZON_DAYS", rules.MaxHorizonDays)
	v.SetDefault("MIN_PARTY_SIZE", rules.MinPartySize)
	v.SetDefault("MAX_PARTY_SIZE", rules.MaxPartySize)
	v.SetDefault("LARGE_PARTY_THRESHOLD", rules.LargePartyThreshold)
	v.SetDefault("MAX_PARTY_WITHOUT_NOTES", rules.MaxPartyWithoutNotes)
	v.SetDefault("ESCALATION_PARTY_SIZE", rules.EscalationPartySize)
	v.SetDefault("MIN_NOTES_LENGTH", rules.MinNotesLength)
	v.SetDefault("DEFAULT_DURATION_MINUTES", minutes(rules.DefaultDuration))
	v.SetDefault("MIN_DURATION_MINUTES", minutes(rules.MinDuration))
	v.SetDefault("MAX_DURATION_MINUTES", minutes(rules.MaxDuration))
	v.SetDefault("MAX_CAPACITY", rules.MaxCapacity)
	v.SetDefault("MAX_CONCURRENT_RESERVATIONS", rules.MaxConcurrent)
	v.SetDefault("TURNOVER_MINUTES", minutes(rules.Turnover))
	v.SetDefault("SAME_DAY_NOTICE_HOURS", int(rules.SameDayNotice/time.Hour))
	v.SetDefault("DUPLICATE_WINDOW_MINUTES", minutes(rules.DuplicateWindow))
	v.SetDefault("DUPLICATE_STEP_MINUTES", minutes(rules.DuplicateStep))

	v.SetDefault("MQTT_BROKER_URL", "")
	v.SetDefault("MQTT_CLIENT_ID", "restaurant-voice")
	v.SetDefault("MQTT_USERNAME", "")
	v.SetDefault("MQTT_PASSWORD", "")
	v.SetDefault("MQTT_TOPIC_PREFIX", "restaurant")

	v.SetDefault("TRACING_ENABLED", false)
}

func minutes(d time.Duration) int { return int(d / time.Minute) }

func asMinutes(n int) time.Duration { return time.Duration(n) * time.Minute }

// RestaurantPolicy builds the opening hours and booking rules. Malformed
// hours or dates are errors.
func (c Config) RestaurantPolicy() (policy.Policy, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return policy.Policy{}, fmt.Errorf("TIMEZONE: %w", err)
	}
	p := policy.Default(loc)
	p.Name = c.RestaurantName

	weekday, err := policy.ParseHours(c.WeekdayHours)
	if err != nil {
		return policy.Policy{}, fmt.Errorf("WEEKDAY_HOURS: %w", err)
	}
	weekend, err := policy.ParseHours(c.WeekendHours)
	if err != nil {
		return policy.Policy{}, fmt.Errorf("WEEKEND_HOURS: %w", err)
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d == time.Saturday || d == time.Sunday {
			p.Weekly[d] = weekend
		} else {
			p.Weekly[d] = weekday
		}
	}

	for _, date := range splitList(c.ClosedDates, ",") {
		if _, err := time.Parse(policy.DateLayout, date); err != nil {
			return policy.Policy{}, fmt.Errorf("CLOSED_DATES: invalid date %q", date)
		}
		p.Special[date] = policy.SpecialDay{Date: date, Closed: true}
	}
	for _, entry := range splitList(c.SpecialHours, ";") {
		sd, err := parseSpecialDay(entry)
		if err != nil {
			return policy.Policy{}, fmt.Errorf("SPECIAL_HOURS: %w", err)
		}
		p.Special[sd.Date] = sd
	}

	r := &p.Rules
	r.SlotGranularity = asMinutes(c.SlotGranularityMinutes)
	r.MinLeadTime = asMinutes(c.MinLeadTimeMinutes)
	r.MaxHorizonDays = c.MaxHorizonDays
	r.LastReservationOffset = c.LastReservationOffset
	r.DefaultDuration = asMinutes(c.DefaultDurationMinutes)
	r.MinDuration = asMinutes(c.MinDurationMinutes)
	r.MaxDuration = asMinutes(c.MaxDurationMinutes)
	r.MinPartySize = c.MinPartySize
	r.MaxPartySize = c.MaxPartySize
	r.LargePartyThreshold = c.LargePartyThreshold
	r.MaxPartyWithoutNotes = c.MaxPartyWithoutNotes
	r.EscalationPartySize = c.EscalationPartySize
	r.MinNotesLength = c.MinNotesLength
	r.MaxCapacity = c.MaxCapacity
	r.MaxConcurrent = c.MaxConcurrent
	r.Turnover = asMinutes(c.TurnoverMinutes)
	r.SameDayNotice = time.Duration(c.SameDayNoticeHours) * time.Hour
	r.DuplicateWindow = asMinutes(c.DuplicateWindowMinutes)
	r.DuplicateStep = asMinutes(c.DuplicateStepMinutes)

	if r.SlotGranularity <= 0 || r.DuplicateStep <= 0 {
		return policy.Policy{}, fmt.Errorf("slot granularity and duplicate step must be positive")
	}
	if r.MinPartySize < 1 || r.MaxPartySize < r.MinPartySize {
		return policy.Policy{}, fmt.Errorf("invalid party size range %d-%d", r.MinPartySize, r.MaxPartySize)
	}
	if r.MinDuration > r.DefaultDuration || r.DefaultDuration > r.MaxDuration {
		return policy.Policy{}, fmt.Errorf("default duration must lie between min and max duration")
	}
	return p, nil
}

// parseSpecialDay reads "2026-12-24=10:00-16:00 Christmas Eve" or
// "2026-12-31=closed New Year's Eve".
func parseSpecialDay(entry string) (policy.SpecialDay, error) {
	date, rest, ok := strings.Cut(entry, "=")
	date = strings.TrimSpace(date)
	if !ok {
		return policy.SpecialDay{}, fmt.Errorf("missing '=' in %q", entry)
	}
	if _, err := time.Parse(policy.DateLayout, date); err != nil {
		return policy.SpecialDay{}, fmt.Errorf("invalid date %q", date)
	}
	value, desc, _ := strings.Cut(strings.TrimSpace(rest), " ")
	sd := policy.SpecialDay{Date: date, Description: strings.TrimSpace(desc)}
	if strings.EqualFold(value, "closed") {
		sd.Closed = true
		return sd, nil
	}
	hours, err := policy.ParseHours(value)
	if err != nil {
		return policy.SpecialDay{}, fmt.Errorf("%s: %w", date, err)
	}
	sd.Hours = hours
	return sd, nil
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
