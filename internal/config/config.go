package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DefaultLLM string                  `toml:"default_llm" validate:"required"`
	LLMs       map[string]*LLMConfig   `toml:"llm" validate:"dive"`
	Agent      AgentConfig             `toml:"agent"`
	Functions  FunctionsConfig         `toml:"functions"`
	Twitter    TwitterConfig           `toml:"twitter"`
	Gateway    GatewayConfig           `toml:"gateway"`
	DB         DBConfig                `toml:"db"`
	Queue      QueueConfig             `toml:"queue"`
	Chains     map[string]*ChainConfig `toml:"chains" validate:"dive"`
	Memory     MemoryConfig            `toml:"memory"`
	Trace      TraceConfig             `toml:"trace"`
	Services   ServicesConfig          `toml:"services"`
}

type LLMConfig struct {
	Model          string   `toml:"model" validate:"required"`
	BaseURL        string   `toml:"base_url" validate:"omitempty,url"`
	APIKey         string   `toml:"api_key"`
	Temperature    *float64 `toml:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxRetries     int      `toml:"max_retries" validate:"gte=0,lte=10"`
	TimeoutSeconds int      `toml:"timeout_seconds" validate:"gte=0"`
}

// AgentConfig overrides parts of the built-in WalletAI descriptor. Empty
// strings keep the defaults.
type AgentConfig struct {
	Name          string `toml:"name"`
	Goal          string `toml:"goal"`
	Description   string `toml:"description"`
	WorldInfo     string `toml:"world_info"`
	Task          string `toml:"task"`
	MaxIterations int    `toml:"max_iterations" validate:"gte=0,lte=50"`
	// DefaultChain is assumed when a mention names no chain.
	DefaultChain string `toml:"default_chain"`
	// RunTimeoutSeconds bounds one mention run; a pending mention older than
	// this is considered abandoned and may be answered again.
	RunTimeoutSeconds int `toml:"run_timeout_seconds" validate:"gte=0"`
	// Tools limits the agent to the named tools. Empty enables all of them.
	Tools []string `toml:"tools"`
	// ThreadTweets caps the earlier tweets of a conversation shown to the agent.
	ThreadTweets int `toml:"thread_tweets" validate:"gte=0,lte=100"`
}

type FunctionsConfig struct {
	APIBase        string `toml:"api_base" validate:"required,url"`
	APIKey         string `toml:"api_key"`
	File           string `toml:"file"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=0,lte=300"`
}

type TwitterConfig struct {
	Enabled             bool   `toml:"enabled"`
	APIBase             string `toml:"api_base" validate:"required,url"`
	BotUserID           string `toml:"bot_user_id" validate:"required_if=Enabled true"`
	BotUsername         string `toml:"bot_username"`
	BearerToken         string `toml:"bearer_token" validate:"required_if=Enabled true"`
	AccessToken         string `toml:"access_token" validate:"required_if=Enabled true"`
	ConsumerSecret      string `toml:"consumer_secret"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds" validate:"gte=0"`
	Workers             int    `toml:"workers" validate:"gte=0,lte=64"`
}

type GatewayConfig struct {
	Addr  string `toml:"addr" validate:"required"`
	Token string `toml:"token"`
}

type DBConfig struct {
	Path string `toml:"path" validate:"required"`
}

type QueueConfig struct {
	Type          string `toml:"type" validate:"oneof=memory redis rabbitmq"`
	Name          string `toml:"name"`
	Size          int    `toml:"size" validate:"gte=0"`
	RedisAddr     string `toml:"redis_addr" validate:"required_if=Type redis"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db" validate:"gte=0"`
	AMQPURL       string `toml:"amqp_url" validate:"required_if=Type rabbitmq"`
}

type ChainConfig struct {
	RPCURL string `toml:"rpc_url" validate:"required,url"`
	Symbol string `toml:"symbol"`
}

type MemoryConfig struct {
	// RecallTurns caps how many earlier turns of a thread are replayed. Zero
	// replays everything since the last summary.
	RecallTurns int              `toml:"recall_turns" validate:"gte=0"`
	Compaction  CompactionConfig `toml:"compaction"`
}

type CompactionConfig struct {
	Enabled       bool `toml:"enabled"`
	TurnThreshold int  `toml:"turn_threshold" validate:"gte=0"`
	KeepRecent    int  `toml:"keep_recent" validate:"gte=0"`
}

type TraceConfig struct {
	Enabled     bool    `toml:"enabled"`
	Endpoint    string  `toml:"endpoint"`
	URLPath     string  `toml:"url_path"`
	APIKey      string  `toml:"api_key"`
	Insecure    bool    `toml:"insecure"`
	SampleRatio float64 `toml:"sample_ratio" validate:"gte=0,lte=1"`
	Environment string  `toml:"environment"`
}

type ServicesConfig struct {
	Brave BraveConfig `toml:"brave"`
}

type BraveConfig struct {
	APIKey string `toml:"api_key"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DefaultLLM: "openai",
		LLMs: map[string]*LLMConfig{
			"openai": {
				Model:          "gpt-4o",
				BaseURL:        "https://api.openai.com/v1",
				MaxRetries:     2,
				TimeoutSeconds: 120,
			},
		},
		Agent: AgentConfig{
			MaxIterations:     12,
			DefaultChain:      "ethereum",
			ThreadTweets:      10,
			RunTimeoutSeconds: 900,
		},
		Functions: FunctionsConfig{
			APIBase:        "https://api.example.com",
			TimeoutSeconds: 30,
		},
		Twitter: TwitterConfig{
			APIBase:             "https://api.twitter.com/2",
			PollIntervalSeconds: 60,
			Workers:             2,
		},
		Gateway: GatewayConfig{
			Addr: ":8484",
		},
		DB: DBConfig{
			Path: defaultDBPath(),
		},
		Queue: QueueConfig{
			Type: "memory",
			Name: "walletai:mentions",
			Size: 128,
		},
		Chains: map[string]*ChainConfig{},
		Trace: TraceConfig{
			Insecure:    true,
			SampleRatio: 1,
		},
		Memory: MemoryConfig{
			RecallTurns: 10,
			Compaction: CompactionConfig{
				TurnThreshold: 20,
				KeepRecent:    6,
			},
		},
	}
}

// Load reads the config file at path (or the default location when path is
// empty), applies environment overrides and validates the result. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = Path()
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as TOML to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, ok := c.LLMs[c.DefaultLLM]; !ok {
		return fmt.Errorf("invalid config: default LLM %q not found in config", c.DefaultLLM)
	}
	if c.Memory.Compaction.Enabled && c.Memory.Compaction.KeepRecent >= c.Memory.Compaction.TurnThreshold {
		return errors.New("invalid config: memory.compaction.keep_recent must be below turn_threshold")
	}
	return nil
}

// LLM returns the default LLM settings.
func (c *Config) LLM() *LLMConfig {
	return c.LLMs[c.DefaultLLM]
}

func (c *Config) applyEnv() {
	if llm, ok := c.LLMs[c.DefaultLLM]; ok && llm.APIKey == "" {
		llm.APIKey = firstEnv("OPENAI_API_KEY", "VIRTUALS_API_KEY")
	}
	if v := os.Getenv("API_KEY"); v != "" {
		c.Functions.APIKey = v
	}
	if v := os.Getenv("TWITTER_BEARER_TOKEN"); v != "" {
		c.Twitter.BearerToken = v
	}
	if v := os.Getenv("TWITTER_ACCESS_TOKEN"); v != "" {
		c.Twitter.AccessToken = v
	}
	if v := os.Getenv("TWITTER_CONSUMER_SECRET"); v != "" {
		c.Twitter.ConsumerSecret = v
	}
	if v := os.Getenv("BRAVE_API_KEY"); v != "" {
		c.Services.Brave.APIKey = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Path is the config file location, honouring WALLETAI_CONFIG.
func Path() string {
	if p := os.Getenv("WALLETAI_CONFIG"); p != "" {
		return p
	}
	dir, _ := os.UserConfigDir()
	return filepath.Join(dir, "walletai", "config.toml")
}

func defaultDBPath() string {
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, ".local", "share", "walletai", "walletai.db")
}
