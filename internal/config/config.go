package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const EnvironmentProduction = "production"

type HTTPConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint      string
	PublicURL     string
	AccessKey     string
	SecretKey     string
	BucketAvatars string
	UseSSL        bool
	Region        string
	MaxUploadSize int64
}

type SecurityConfig struct {
	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration
	JWTIssuer        string
	JWTAudience      string
	ResetTokenTTL    time.Duration
	BcryptCost       int
	AdminBcryptCost  int
}

type OAuthConfig struct {
	GoogleIssuer    string
	GoogleClientIDs []string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type NotifyConfig struct {
	Stream   string
	Group    string
	Consumer string
	// ClaimInterval bounds how long a message may sit unacked before another
	// consumer takes it over.
	ClaimInterval time.Duration
	// MaxDeliveries is how many attempts a message gets before it is moved
	// to the dead-letter stream.
	MaxDeliveries int64
	ResetURL      string
}

type RateLimitConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	OAuth            OAuthConfig
	SMTP             SMTPConfig
	Notify           NotifyConfig
	RateLimit        RateLimitConfig
	AllowCORSOrigins []string
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("TOURIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that would let one signing key stand in
// for the other.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Security.JWTAccessSecret == "" {
		errs = append(errs, errors.New("security.jwtaccesssecret is required"))
	}
	if c.Security.JWTRefreshSecret == "" {
		errs = append(errs, errors.New("security.jwtrefreshsecret is required"))
	}
	if c.Security.JWTAccessSecret != "" && c.Security.JWTAccessSecret == c.Security.JWTRefreshSecret {
		errs = append(errs, errors.New("access and refresh secrets must differ"))
	}
	if c.Security.JWTAccessTTL <= 0 || c.Security.JWTRefreshTTL <= 0 {
		errs = append(errs, errors.New("token ttls must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("allowcorsorigins", "")

	// Keys without a usable default are still registered so AutomaticEnv
	// picks them up during Unmarshal.
	for _, key := range []string{
		"postgres.dsn",
		"redis.password",
		"storage.endpoint",
		"storage.publicurl",
		"storage.accesskey",
		"storage.secretkey",
		"security.jwtaccesssecret",
		"security.jwtrefreshsecret",
		"oauth.googleclientids",
		"smtp.username",
		"smtp.password",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.trustedproxies", "")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.automigrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucketavatars", "touris-avatars")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.maxuploadsize", 5<<20)

	v.SetDefault("security.jwtaccessttl", "15m")
	v.SetDefault("security.jwtrefreshttl", "168h") // 7 days
	v.SetDefault("security.jwtissuer", "touris-api")
	v.SetDefault("security.jwtaudience", "touris-client")
	v.SetDefault("security.resettokenttl", "30m")
	v.SetDefault("security.bcryptcost", 10)
	v.SetDefault("security.adminbcryptcost", 12)

	v.SetDefault("oauth.googleissuer", "https://accounts.google.com")

	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "Touris <no-reply@touris.local>")

	v.SetDefault("notify.stream", "notify:email")
	v.SetDefault("notify.group", "email-workers")
	v.SetDefault("notify.consumer", "worker-1")
	v.SetDefault("notify.claiminterval", "30s")
	v.SetDefault("notify.maxdeliveries", 5)
	v.SetDefault("notify.reseturl", "http://localhost:3000/reset-password")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.limit", 20)
	v.SetDefault("ratelimit.window", "15m")
}
