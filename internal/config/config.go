// Package config loads runtime configuration from environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dragonsend/dispatch-engine/internal/domain"
)

// Dispatcher holds everything the one-shot dispatch CLI needs.
// Provider credentials come from the environment or a providers file;
// recipients and message content arrive as CLI flags.
type Dispatcher struct {
	Providers []domain.ProviderConfig
	Policy    domain.DispatchPolicy

	// Ledger selection: DATABASE_URL wins when set, otherwise results are
	// appended to LedgerFile as JSON lines.
	DatabaseURL string
	LedgerFile  string

	// Base URL of the tracking server, e.g. "https://track.example.com".
	// Empty disables open-tracking pixel URLs.
	TrackingURL string

	DialTimeout time.Duration
	APITimeout  time.Duration
}

// Tracker holds the tracking/results HTTP server configuration.
type Tracker struct {
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
}

// Preset is a well-known SMTP endpoint, selectable by name so users do not
// have to remember host/port/TLS combinations.
type Preset struct {
	Host string
	Port int
	TLS  domain.TLSMode
}

// Presets maps friendly provider names to their submission endpoints.
var Presets = map[string]Preset{
	"gmail":     {Host: "smtp.gmail.com", Port: 587, TLS: domain.TLSStartTLS},
	"outlook":   {Host: "smtp-mail.outlook.com", Port: 587, TLS: domain.TLSStartTLS},
	"office365": {Host: "smtp.office365.com", Port: 587, TLS: domain.TLSStartTLS},
	"yahoo":     {Host: "smtp.mail.yahoo.com", Port: 587, TLS: domain.TLSStartTLS},
	"zoho":      {Host: "smtp.zoho.com", Port: 587, TLS: domain.TLSStartTLS},
	"aol":       {Host: "smtp.aol.com", Port: 587, TLS: domain.TLSStartTLS},
	"gmx":       {Host: "mail.gmx.com", Port: 587, TLS: domain.TLSStartTLS},
	"icloud":    {Host: "smtp.mail.me.com", Port: 587, TLS: domain.TLSStartTLS},
	"ses":       {Host: "email-smtp.us-east-1.amazonaws.com", Port: 587, TLS: domain.TLSStartTLS},
	"postmark":  {Host: "smtp.postmarkapp.com", Port: 587, TLS: domain.TLSStartTLS},
	"fastmail":  {Host: "smtp.fastmail.com", Port: 587, TLS: domain.TLSStartTLS},
	"sendgrid":  {Host: "smtp.sendgrid.net", Port: 587, TLS: domain.TLSStartTLS},
	"mailgun":   {Host: "smtp.mailgun.org", Port: 587, TLS: domain.TLSStartTLS},
	"brevo":     {Host: "smtp-relay.brevo.com", Port: 587, TLS: domain.TLSStartTLS},
	"godaddy":   {Host: "smtpout.secureserver.net", Port: 587, TLS: domain.TLSStartTLS},
}

// LoadDispatcher builds the dispatcher configuration from the environment.
func LoadDispatcher() (*Dispatcher, error) {
	providers, err := loadProviders()
	if err != nil {
		return nil, err
	}

	cfg := &Dispatcher{
		Providers: providers,
		Policy: domain.DispatchPolicy{
			Mode:           domain.Mode(getEnv("DISPATCH_MODE", "")),
			BatchSize:      getInt("BATCH_SIZE", 0),
			DelaySeconds:   getInt("DELAY_SECONDS", 0),
			DelayEveryN:    getInt("DELAY_EVERY_N", 0),
			RotateAfterN:   getInt("ROTATE_AFTER_N", 0),
			RatePerSecond:  getInt("RATE_PER_SECOND", 0),
			EnableTracking: getBool("ENABLE_TRACKING", false),
			EnablePatterns: getBool("ENABLE_PATTERNS", false),
		},
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LedgerFile:  getEnv("LEDGER_FILE", "results.jsonl"),
		TrackingURL: os.Getenv("TRACKING_URL"),
		DialTimeout: getDuration("SMTP_DIAL_TIMEOUT", 15*time.Second),
		APITimeout:  getDuration("SMS_API_TIMEOUT", 10*time.Second),
	}
	return cfg, nil
}

// LoadTracker builds the tracking server configuration. DATABASE_URL is
// required: the server exists to serve the Postgres ledger.
func LoadTracker() (*Tracker, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Tracker{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),
	}, nil
}

// loadProviders reads the rotation list from PROVIDERS_FILE when set,
// otherwise assembles a single provider from flat environment variables.
func loadProviders() ([]domain.ProviderConfig, error) {
	if path := os.Getenv("PROVIDERS_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read providers file: %w", err)
		}
		var providers []fileProvider
		if err := json.Unmarshal(data, &providers); err != nil {
			return nil, fmt.Errorf("parse providers file: %w", err)
		}
		out := make([]domain.ProviderConfig, 0, len(providers))
		for i, fp := range providers {
			p, err := fp.resolve()
			if err != nil {
				return nil, fmt.Errorf("providers file entry %d: %w", i, err)
			}
			out = append(out, p)
		}
		return out, nil
	}

	p, err := providerFromEnv()
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return []domain.ProviderConfig{*p}, nil
}

// fileProvider is the on-disk provider shape. Unlike domain.ProviderConfig
// it accepts a preset name and carries secrets, so it never leaves this
// package.
type fileProvider struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Preset     string `json:"preset,omitempty"`
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
	TLS        string `json:"tls,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	NoAuth     bool   `json:"no_auth,omitempty"`
	Sender     string `json:"sender"`
	APIBaseURL string `json:"api_base_url,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
}

func (fp fileProvider) resolve() (domain.ProviderConfig, error) {
	p := domain.ProviderConfig{
		Name:       fp.Name,
		Kind:       domain.ProviderKind(fp.Kind),
		Host:       fp.Host,
		Port:       fp.Port,
		TLS:        domain.TLSMode(fp.TLS),
		Username:   fp.Username,
		Password:   fp.Password,
		NoAuth:     fp.NoAuth,
		Sender:     fp.Sender,
		APIBaseURL: fp.APIBaseURL,
		APIKey:     fp.APIKey,
	}
	if fp.Kind == "" {
		p.Kind = domain.ProviderSMTPEmail
	}
	if fp.Preset != "" {
		preset, ok := Presets[strings.ToLower(fp.Preset)]
		if !ok {
			return p, fmt.Errorf("unknown preset %q", fp.Preset)
		}
		if p.Host == "" {
			p.Host = preset.Host
		}
		if p.Port == 0 {
			p.Port = preset.Port
		}
		if p.TLS == "" {
			p.TLS = preset.TLS
		}
	}
	if p.TLS == "" {
		p.TLS = domain.TLSStartTLS
	}
	if p.Name == "" {
		p.Name = p.Host
	}
	return p, nil
}

// providerFromEnv assembles one provider from flat env vars. Returns nil
// when no provider-related variables are present at all.
func providerFromEnv() (*domain.ProviderConfig, error) {
	if base := os.Getenv("SMS_API_BASE_URL"); base != "" {
		return &domain.ProviderConfig{
			Name:       getEnv("PROVIDER_NAME", "cloud-sms"),
			Kind:       domain.ProviderCloudSMSAPI,
			Sender:     os.Getenv("SMS_SENDER"),
			APIBaseURL: base,
			APIKey:     os.Getenv("SMS_API_KEY"),
		}, nil
	}

	preset := strings.ToLower(os.Getenv("SMTP_PRESET"))
	host := os.Getenv("SMTP_HOST")
	if preset == "" && host == "" {
		return nil, nil
	}

	p := domain.ProviderConfig{
		Name:     getEnv("PROVIDER_NAME", ""),
		Kind:     domain.ProviderKind(getEnv("PROVIDER_KIND", string(domain.ProviderSMTPEmail))),
		Host:     host,
		Port:     getInt("SMTP_PORT", 0),
		TLS:      domain.TLSMode(os.Getenv("SMTP_TLS")),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		NoAuth:   getBool("SMTP_NO_AUTH", false),
		Sender:   getEnv("SENDER", os.Getenv("SMTP_USERNAME")),
	}
	if preset != "" {
		pr, ok := Presets[preset]
		if !ok {
			return nil, fmt.Errorf("unknown SMTP_PRESET %q", preset)
		}
		if p.Host == "" {
			p.Host = pr.Host
		}
		if p.Port == 0 {
			p.Port = pr.Port
		}
		if p.TLS == "" {
			p.TLS = pr.TLS
		}
	}
	if p.Port == 0 {
		p.Port = 587
	}
	if p.TLS == "" {
		p.TLS = domain.TLSStartTLS
	}
	if p.Name == "" {
		p.Name = p.Host
	}
	return &p, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
