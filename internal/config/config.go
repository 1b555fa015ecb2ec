package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/judgeproxy/internal/domain/judges"
)

// judgeIDPattern matches ids as they appear after the router folds
// "-" into "_" and lowercases the path segment.
var judgeIDPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

type Config struct {
	Server struct {
		Port      int    `yaml:"port"`
		PublicURL string `yaml:"publicURL"`
		// APIKeys maps client name -> key. Empty disables inbound auth.
		APIKeys     map[string]string `yaml:"apiKeys"`
		CORSOrigins []string          `yaml:"corsOrigins"`
		RateLimit   struct {
			Capacity   int `yaml:"capacity"`
			RefillRate int `yaml:"refillRate"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Upstream struct {
		BaseURL       string `yaml:"baseURL"`
		OpenAIBaseURL string `yaml:"openAIBaseURL"`
		// Timeout 0 keeps the http.Client default (no timeout).
		Timeout            time.Duration `yaml:"timeout"`
		ConfigErrorMarkers []string      `yaml:"configErrorMarkers"`
		WebhookURL         string        `yaml:"webhookURL"`
		WebhookSecret      string        `yaml:"webhookSecret"`
	} `yaml:"upstream"`

	Judges []JudgeConfig `yaml:"judges"`

	Persistence struct {
		// Driver: "" (disabled) | mysql | postgres | sqlite
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Migrate  bool   `yaml:"migrate"`
		Database struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			Name     string `yaml:"name"`
		} `yaml:"database"`
	} `yaml:"persistence"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`
}

// JudgeConfig is the YAML shape of one judge.
type JudgeConfig struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	Kind              string `yaml:"kind"`
	APIKey            string `yaml:"apiKey"`
	Model             string `yaml:"model"`
	Query             string `yaml:"query"`
	RequireRepository bool   `yaml:"requireRepository"`
	RequireDocument   bool   `yaml:"requireDocument"`
	Persist           bool   `yaml:"persist"`
}

// DefaultConfigErrorMarkers are substrings the workflow platform uses when
// a judge app has no model provider credentials.
var DefaultConfigErrorMarkers = []string{
	"provider_not_initialize",
	"credentials is not initialized",
	"Model provider credentials",
}

// Default returns the built-in configuration.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.PublicURL = "http://localhost:8080"
	c.Server.RateLimit.Capacity = 30
	c.Server.RateLimit.RefillRate = 1
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.Upstream.BaseURL = "https://api.dify.ai/v1"
	c.Upstream.OpenAIBaseURL = "https://api.openai.com/v1"
	c.Upstream.ConfigErrorMarkers = append([]string(nil), DefaultConfigErrorMarkers...)
	c.Judges = []JudgeConfig{
		{ID: "receive_data", Name: "Technical Analysis", Kind: "dify", RequireRepository: true, Persist: true},
		{ID: "business", Name: "Business Analysis", Kind: "dify", RequireRepository: true},
		{ID: "sam", Name: "Sam Altman", Kind: "dify"},
		{ID: "li", Name: "Feifei Li", Kind: "dify"},
		{ID: "ng", Name: "Andrew Ng", Kind: "dify"},
		{ID: "paul", Name: "Paul Graham", Kind: "dify"},
		{ID: "summary", Name: "Summary", Kind: "dify", RequireDocument: true},
		{ID: "score", Name: "Score", Kind: "dify", RequireRepository: true},
	}
	c.Minio.BucketName = "judge-answers"
	return &c
}

// Load baca .env, file config (optional), lalu env override.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("JUDGEPROXY_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JUDGEPROXY_PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := getenv("JUDGEPROXY_PUBLIC_URL"); v != "" {
		c.Server.PublicURL = v
	}
	// JUDGEPROXY_API_KEYS=frontend:key1,ops:key2
	if v := getenv("JUDGEPROXY_API_KEYS"); v != "" {
		c.Server.APIKeys = map[string]string{}
		for _, pair := range strings.Split(v, ",") {
			name, key, ok := strings.Cut(strings.TrimSpace(pair), ":")
			if !ok || name == "" || key == "" {
				return fmt.Errorf("JUDGEPROXY_API_KEYS: malformed entry %q", pair)
			}
			c.Server.APIKeys[name] = key
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("DIFY_API_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := getenv("OPENAI_BASE_URL"); v != "" {
		c.Upstream.OpenAIBaseURL = v
	}
	if v := getenv("DIFY_WEBHOOK_URL"); v != "" {
		c.Upstream.WebhookURL = v
	}
	if v := getenv("DIFY_WEBHOOK_SECRET"); v != "" {
		c.Upstream.WebhookSecret = v
	}
	if v := getenv("PERSISTENCE_DRIVER"); v != "" {
		c.Persistence.Driver = v
	}
	if v := getenv("PERSISTENCE_DSN"); v != "" {
		c.Persistence.DSN = v
	}
	for i := range c.Judges {
		key := "JUDGE_" + strings.ToUpper(c.Judges[i].ID) + "_API_KEY"
		if v := getenv(key); v != "" {
			c.Judges[i].APIKey = v
		}
	}
	return nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Upstream.BaseURL) == "" {
		return errors.New("upstream.baseURL must not be empty")
	}
	if len(c.Judges) == 0 {
		return errors.New("at least one judge must be configured")
	}
	seen := make(map[string]bool, len(c.Judges))
	for _, j := range c.Judges {
		if j.ID == "" {
			return errors.New("judge id must not be empty")
		}
		if !judgeIDPattern.MatchString(j.ID) {
			return fmt.Errorf("judge id %q: use lowercase letters, digits and underscores", j.ID)
		}
		if seen[j.ID] {
			return fmt.Errorf("duplicate judge id: %s", j.ID)
		}
		seen[j.ID] = true
		if !judges.Kind(j.kind()).Valid() {
			return fmt.Errorf("judge %s: unknown kind %q", j.ID, j.Kind)
		}
	}
	switch c.Persistence.Driver {
	case "", "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("persistence.driver: unsupported %q", c.Persistence.Driver)
	}
	return nil
}

func (j JudgeConfig) kind() string {
	if j.Kind == "" {
		return string(judges.KindDify)
	}
	return j.Kind
}

// JudgeList converts the YAML judges into domain judges.
func (c *Config) JudgeList() []judges.Judge {
	out := make([]judges.Judge, 0, len(c.Judges))
	for _, j := range c.Judges {
		name := j.Name
		if name == "" {
			name = j.ID
		}
		out = append(out, judges.Judge{
			ID:                judges.ID(j.ID),
			DisplayName:       name,
			Kind:              judges.Kind(j.kind()),
			Credential:        j.APIKey,
			Model:             j.Model,
			Query:             j.Query,
			RequireRepository: j.RequireRepository,
			RequireDocument:   j.RequireDocument,
			Persist:           j.Persist,
		})
	}
	return out
}

// PersistenceDSN returns the explicit DSN or builds one from the database block.
func (c *Config) PersistenceDSN() string {
	if c.Persistence.DSN != "" {
		return c.Persistence.DSN
	}
	d := c.Persistence.Database
	switch c.Persistence.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.Name)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			d.Host, d.Port, d.User, d.Password, d.Name)
	case "sqlite":
		return "judgeproxy.db"
	}
	return ""
}
