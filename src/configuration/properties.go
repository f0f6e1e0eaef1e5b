package configuration

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type (
	Properties struct {
		LogLevel  string `env:"LOG_LEVEL" envDefault:"DEBUG"`
		LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
		// SiteURL is the public origin used in auth redirect links.
		SiteURL string `env:"SITE_URL" envDefault:"https://silkyroad.vercel.app"`

		Backend  BackendProperties    `envPrefix:"SUPABASE_"`
		S3       S3Properties         `envPrefix:"S3_"`
		Auth     AuthProperties       `envPrefix:"AUTH_"`
		Server   HttpServerProperties `envPrefix:"HTTP_"`
		SMTP     SMTPProperties       `envPrefix:"SMTP_"`
		Contact  ContactProperties
		PayPal   PayPalProperties   `envPrefix:"PAYPAL_"`
		Payout   PayoutProperties   `envPrefix:"PAYOUT_"`
		Database DatabaseProperties `envPrefix:"DATABASE_"`
		Rate     RateProperties     `envPrefix:"RATE_"`
	}

	BackendProperties struct {
		URL        string        `env:"URL"`
		AnonKey    string        `env:"ANON_KEY"`
		ServiceKey string        `env:"SERVICE_ROLE_KEY"`
		JWTSecret  string        `env:"JWT_SECRET"`
		Timeout    time.Duration `env:"TIMEOUT" envDefault:"15s"`
	}

	S3Properties struct {
		// Host is the S3-compatible storage endpoint of the backend, without scheme.
		Host      string `env:"HOST"`
		AccessKey string `env:"ACCESS_KEY"`
		SecretKey string `env:"SECRET_KEY"`
		Region    string `env:"REGION" envDefault:"us-east-1"`
		Bucket    string `env:"BUCKET" envDefault:"seller-uploads"`
		UseSSL    bool   `env:"USE_SSL" envDefault:"true"`
		// MaxUploadBytes caps the downloadable asset attached to a listing.
		MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	}

	AuthProperties struct {
		Host                   string        `env:"HOST" envDefault:"https://accounts.google.com"`
		ID                     string        `env:"ID"`
		Secret                 string        `env:"SECRET"`
		Redirect               string        `env:"REDIRECT_URL" envDefault:"http://localhost:8088/auth/callback"`
		AccessTokenCookieName  string        `env:"ACCESS_COOKIE" envDefault:"sr_access_token"`
		RefreshTokenCookieName string        `env:"REFRESH_COOKIE" envDefault:"sr_refresh_token"`
		StateCookieName        string        `env:"STATE_COOKIE" envDefault:"sr_oauth_state"`
		CookieDomain           string        `env:"COOKIE_DOMAIN" envDefault:""`
		SecureCookies          bool          `env:"SECURE_COOKIES" envDefault:"false"`
		ReadTimeout            time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	}

	HttpServerProperties struct {
		Name         string        `env:"NAME" envDefault:"silkyroad"`
		Port         string        `env:"PORT" envDefault:"8088"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
		AllowOrigins []string      `env:"ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
		Pprof        bool          `env:"PPROF" envDefault:"false"`
	}

	SMTPProperties struct {
		Host string `env:"HOST"`
		Port int    `env:"PORT" envDefault:"465"`
		User string `env:"USER"`
		Pass string `env:"PASS"`
		From string `env:"FROM"`
	}

	ContactProperties struct {
		ResendAPIKey  string `env:"RESEND_API_KEY"`
		ResendBaseURL string `env:"RESEND_BASE_URL" envDefault:"https://api.resend.com"`
		Receiver      string `env:"CONTACT_FORM_RECEIVER"`
		From          string `env:"CONTACT_FORM_FROM" envDefault:"Silky Road <noreply@silkyroad.vercel.app>"`
	}

	PayPalProperties struct {
		ClientID    string        `env:"CLIENT_ID"`
		Secret      string        `env:"SECRET"`
		Environment string        `env:"ENVIRONMENT" envDefault:"sandbox"`
		BaseURL     string        `env:"BASE_URL"`
		Currency    string        `env:"CURRENCY" envDefault:"USD"`
		Timeout     time.Duration `env:"TIMEOUT" envDefault:"20s"`
	}

	PayoutProperties struct {
		Port string `env:"PORT" envDefault:"3000"`
	}

	DatabaseProperties struct {
		URL string `env:"URL"`
	}

	RateProperties struct {
		// MailPerMinute bounds requests per client IP on the email-relaying endpoints.
		MailPerMinute int `env:"MAIL_PER_MINUTE" envDefault:"5"`
		MailBurst     int `env:"MAIL_BURST" envDefault:"3"`
	}
)

const (
	paypalLiveBase    = "https://api-m.paypal.com"
	paypalSandboxBase = "https://api-m.sandbox.paypal.com"
)

// LoadProperties reads an optional .env file and then the process environment.
func LoadProperties() (*Properties, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	config := &Properties{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}
	return config, nil
}

func ReadProperties() *Properties {
	config, err := LoadProperties()
	if err != nil {
		panic(err)
	}
	return config
}

// PayPalBaseURL resolves the provider API root from the environment selector.
func (p PayPalProperties) PayPalBaseURL() string {
	if p.BaseURL != "" {
		return p.BaseURL
	}
	if p.Environment == "live" {
		return paypalLiveBase
	}
	return paypalSandboxBase
}

// Configured reports whether client credentials are present.
func (p PayPalProperties) Configured() bool {
	return p.ClientID != "" && p.Secret != ""
}

func (s SMTPProperties) Configured() bool {
	return s.Host != "" && s.From != ""
}
