// Package config loads every recognized option from the environment, in
// the teacher's own bootstrap style (plain os.Getenv reads, dev-mode
// fallbacks that are fatal in production and merely logged otherwise).
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/auth9/auth9/internal/crypto"
)

// Config holds all application configuration.
type Config struct {
	Env string // "development" | "production"

	IssuerURL    string
	DatabaseURL  string
	CacheURL     string
	ListenPort   string
	GRPCPort     string

	UpstreamIdPURL          string
	UpstreamAdminUsername   string
	UpstreamAdminPassword   string
	UpstreamAuthorizeURL    string
	UpstreamTokenURL        string
	UpstreamLogoutURL       string
	UpstreamEventsURL       string // Keycloak admin events endpoint polled by the upstream-event consumer

	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURI  string
	PortalRedirectURL string // where the OIDC façade sends the browser after minting

	WebAuthnRPDisplayName string
	WebAuthnRPID          string
	WebAuthnRPOrigins     []string

	JWTPrivateKeyPEM string // current signing key, PEM-encoded RSA private key
	JWTLegacyKeysPEM []string // retired keys kept for verification only, newest first

	PlatformAdminEmails     map[string]struct{}
	SettingsEncryptionKey   []byte // 32 bytes; nil ⇒ sensitive-column encryption disabled (dev only)
	SettingsLegacyKeys      [][]byte

	BrandingAllowedDomains []string
	CORSAllowedOrigins     []string // may be ["*"]

	RateLimitOverrides map[string]RateLimitOverride

	ActionDefaultTimeoutMs int
	ActionMaxTimeoutMs     int

	APIKey string // shared secret accepted by the gRPC metadata interceptor

	SentryDSN string
}

type RateLimitOverride struct {
	Limit  int
	Window string // e.g. "1m", parsed by callers with time.ParseDuration
}

// Load reads configuration from environment variables. It never panics by
// itself; call Validate afterward to fail fast where production requires it.
func Load() Config {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	cfg := Config{
		Env:        env,
		IssuerURL:  getEnv("ISSUER_URL", "https://auth9.local"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		CacheURL:    getEnv("CACHE_URL", "redis://localhost:6379/0"),
		ListenPort:  getEnv("PORT", "8080"),
		GRPCPort:    getEnv("GRPC_PORT", "9090"),

		UpstreamIdPURL:        os.Getenv("UPSTREAM_IDP_URL"),
		UpstreamAdminUsername: os.Getenv("UPSTREAM_ADMIN_USERNAME"),
		UpstreamAdminPassword: os.Getenv("UPSTREAM_ADMIN_PASSWORD"),
		UpstreamAuthorizeURL:  os.Getenv("UPSTREAM_AUTHORIZE_URL"),
		UpstreamTokenURL:      os.Getenv("UPSTREAM_TOKEN_URL"),
		UpstreamLogoutURL:     os.Getenv("UPSTREAM_LOGOUT_URL"),
		UpstreamEventsURL:     os.Getenv("UPSTREAM_EVENTS_URL"),

		OIDCClientID:      os.Getenv("OIDC_CLIENT_ID"),
		OIDCClientSecret:  os.Getenv("OIDC_CLIENT_SECRET"),
		OIDCRedirectURI:   os.Getenv("OIDC_REDIRECT_URI"),
		PortalRedirectURL: getEnv("PORTAL_REDIRECT_URL", "https://auth9.local/portal"),

		WebAuthnRPDisplayName: getEnv("WEBAUTHN_RP_DISPLAY_NAME", "auth9"),
		WebAuthnRPID:          getEnv("WEBAUTHN_RP_ID", "auth9.local"),
		WebAuthnRPOrigins:     splitNonEmpty(getEnv("WEBAUTHN_RP_ORIGINS", "https://auth9.local"), ","),

		JWTPrivateKeyPEM: os.Getenv("JWT_PRIVATE_KEY"),
		JWTLegacyKeysPEM: splitNonEmpty(os.Getenv("JWT_LEGACY_PRIVATE_KEYS"), "|"),

		PlatformAdminEmails: toSet(splitNonEmpty(os.Getenv("PLATFORM_ADMIN_EMAILS"), ",")),

		BrandingAllowedDomains: splitNonEmpty(os.Getenv("BRANDING_ALLOWED_DOMAINS"), ","),
		CORSAllowedOrigins:     splitNonEmpty(getEnv("CORS_ALLOWED_ORIGINS", "*"), ","),

		RateLimitOverrides: map[string]RateLimitOverride{},

		ActionDefaultTimeoutMs: getEnvAsInt("ACTION_DEFAULT_TIMEOUT_MS", 3000),
		ActionMaxTimeoutMs:     getEnvAsInt("ACTION_MAX_TIMEOUT_MS", 10000),

		APIKey: os.Getenv("GRPC_API_KEY"),

		SentryDSN: os.Getenv("SENTRY_DSN"),
	}

	if keyHex := os.Getenv("SETTINGS_ENCRYPTION_KEY"); keyHex != "" {
		if key, err := crypto.DecodeHexKey(keyHex); err == nil {
			cfg.SettingsEncryptionKey = key
		} else {
			cfg.SettingsEncryptionKey = []byte(keyHex)
		}
	}

	return cfg
}

// Validate fails fast on missing required configuration in production and
// only warns in development, mirroring the teacher's JWT-key bootstrap
// check in cmd/api/main.go.
func (c Config) Validate(log *slog.Logger) {
	if c.JWTPrivateKeyPEM == "" {
		if c.Env == "production" {
			log.Error("jwt_private_key_missing", "details", "fatal_in_production")
			os.Exit(1)
		}
		log.Warn("jwt_private_key_missing", "details", "dev_mode_unsafe")
	}
	if len(c.SettingsEncryptionKey) == 0 {
		log.Warn("settings_encryption_key_missing", "details", "sensitive_column_encryption_disabled_dev_only")
	} else if len(c.SettingsEncryptionKey) != 32 {
		if c.Env == "production" {
			log.Error("settings_encryption_key_invalid_length", "details", "fatal_in_production")
			os.Exit(1)
		}
		log.Warn("settings_encryption_key_invalid_length")
	}
	if c.DatabaseURL == "" {
		log.Warn("database_url_missing", "details", "using_dev_default")
	}
}

func (c Config) IsPlatformAdminEmail(email string) bool {
	_, ok := c.PlatformAdminEmails[strings.ToLower(email)]
	return ok
}

func getEnv(name, defaultVal string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(name string, defaultVal int) int {
	v := os.Getenv(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBool(name string, defaultVal bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, sep) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toSet(vals []string) map[string]struct{} {
	out := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		out[strings.ToLower(v)] = struct{}{}
	}
	return out
}
