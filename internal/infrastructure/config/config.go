package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port       string        `env:"PORT,        default=8080"`
	Env        string        `env:"ENV,         default=development"`
	LogLevel   string        `env:"LOG_LEVEL,   default=info"`
	JWTSecret  string        `env:"JWT_SECRET,  required"`
	SessionTTL time.Duration `env:"SESSION_TTL, default=720h"`

	// TrustedProxies is a comma-separated list of CIDRs or addresses whose
	// X-Forwarded-For header is honored when resolving the client address.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	Mongo    MongoConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	Codes    CodeConfig
	Delivery DeliveryConfig
	Gemini   GeminiConfig
}

type MongoConfig struct {
	URI         string        `env:"MONGO_URI,           default=mongodb://localhost:27017"`
	Database    string        `env:"MONGO_DB,            default=anonychat"`
	Timeout     time.Duration `env:"MONGO_TIMEOUT,       default=10s"`
	MaxPoolSize uint64        `env:"MONGO_MAX_POOL_SIZE, default=50"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,       default=0"`
	Timeout  time.Duration `env:"REDIS_TIMEOUT,  default=3s"`
}

// SMTPConfig leaves email disabled when Host is empty.
type SMTPConfig struct {
	Host       string `env:"SMTP_HOST"`
	User       string `env:"SMTP_USER"`
	Password   string `env:"SMTP_PASSWORD"`
	From       string `env:"MAIL_FROM"`
	SkipVerify bool   `env:"SMTP_SKIP_VERIFY, default=false"`
}

type CodeConfig struct {
	TTL         time.Duration `env:"VERIFY_CODE_TTL,   default=10m"`
	IssueLimit  int           `env:"CODE_ISSUE_LIMIT,  default=5"`
	IssueWindow time.Duration `env:"CODE_ISSUE_WINDOW, default=1h"`
}

type DeliveryConfig struct {
	Limit  int           `env:"DELIVERY_LIMIT,  default=30"`
	Window time.Duration `env:"DELIVERY_WINDOW, default=1m"`
}

// GeminiConfig leaves the AI endpoints unavailable when APIKey is empty.
type GeminiConfig struct {
	APIKey   string `env:"GEMINI_API_KEY"`
	Model    string `env:"GEMINI_MODEL, default=gemini-2.0-flash"`
	Endpoint string `env:"GEMINI_ENDPOINT"`
}

// IsProduction reports whether ENV selects production behaviour.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// TrustedNetworks parses TrustedProxies. A bare address is treated as a
// single-host network.
func (c *Config) TrustedNetworks() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid address %q", raw)
			}
			bits := 128
			if ip4 := ip.To4(); ip4 != nil {
				ip, bits = ip4, 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom reads configuration through lookuper and validates it.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if len(c.JWTSecret) < 16 && c.IsProduction() {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters in production"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Codes.TTL <= 0 {
		errs = append(errs, errors.New("VERIFY_CODE_TTL must be positive"))
	}
	if c.Codes.IssueLimit <= 0 || c.Delivery.Limit <= 0 {
		errs = append(errs, errors.New("throttle limits must be positive"))
	}
	if _, err := c.TrustedNetworks(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
