package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// GraceWindow is the extra time after a reset request expires during which the
// request is still recognized for user messaging, without allowing redemption.
const GraceWindow = 24 * time.Hour

// Config holds the site-wide settings consumed by the service. It is parsed
// once at startup and injected into each component; nothing reads it ambiently.
type Config struct {
	AppURL string `env:"APP_URL" envDefault:"http://localhost:8080"`
	Addr   string `env:"HTTP_ADDR" envDefault:":8080"`

	// Password reset options.
	ResetWindow            time.Duration `env:"PW_RESET_TIME" envDefault:"1800s"`
	ProtectUsernames       bool          `env:"PROTECT_USERNAMES" envDefault:"false"`
	LogoutOnPasswordChange bool          `env:"LOGOUT_ON_PASSWORD_CHANGE" envDefault:"true"`
	ForgotByUsername       bool          `env:"FORGOT_BY_USERNAME" envDefault:"false"`
	ForgotByEmail          bool          `env:"FORGOT_BY_EMAIL" envDefault:"true"`

	// Signup options.
	UsernameIsEmail       bool     `env:"USERNAME_IS_EMAIL" envDefault:"false"`
	ConfirmPassword       bool     `env:"CONFIRM_PASSWORD" envDefault:"false"`
	RequireCountryAndCity bool     `env:"REQUIRE_COUNTRY_AND_CITY" envDefault:"false"`
	DefaultCountry        string   `env:"DEFAULT_COUNTRY" envDefault:""`
	SignupFieldsOrder     []string `env:"SIGNUP_FIELDS_ORDER" envSeparator:","`
	RecaptchaEnabled      bool     `env:"RECAPTCHA_ENABLED" envDefault:"false"`

	// Session tokens issued after a successful password set.
	Token TokenConfig `envPrefix:"TOKEN_"`

	Mongo MongoConfig `envPrefix:"MONGO_"`
	Redis RedisConfig `envPrefix:"REDIS_"`
}

// TokenConfig holds JWT session token settings.
type TokenConfig struct {
	Issuer                string        `env:"ISSUER" envDefault:"moodle-auth-customized"`
	AccessTokenSecret     string        `env:"ACCESS_SECRET"`
	RefreshTokenSecret    string        `env:"REFRESH_SECRET"`
	AccessTokenExpiresIn  time.Duration `env:"ACCESS_EXPIRES_IN" envDefault:"15m"`
	RefreshTokenExpiresIn time.Duration `env:"REFRESH_EXPIRES_IN" envDefault:"720h"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI      string `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"DATABASE" envDefault:"auth_customized"`
}

// RedisConfig holds Redis connection settings for the token staging slot.
type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB" envDefault:"0"`
}

// New creates a Config instance from environment variables.
func New(logger *zerolog.Logger) *Config {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	if err := cfg.validate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to validate configuration")
	}

	return &cfg
}

// validate checks if the configuration is usable.
func (c *Config) validate() error {
	if c.ResetWindow <= 0 {
		return fmt.Errorf("PW_RESET_TIME must be positive")
	}
	if !c.ForgotByUsername && !c.ForgotByEmail {
		return fmt.Errorf("at least one of FORGOT_BY_USERNAME or FORGOT_BY_EMAIL must be enabled")
	}
	if c.Token.AccessTokenSecret == "" {
		return fmt.Errorf("missing TOKEN_ACCESS_SECRET environment variable")
	}
	if c.Token.RefreshTokenSecret == "" {
		return fmt.Errorf("missing TOKEN_REFRESH_SECRET environment variable")
	}

	return nil
}
