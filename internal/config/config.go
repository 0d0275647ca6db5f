package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Provider names accepted by AI_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server       ServerConfig
	AI           AIConfig
	Session      SessionConfig
	Conversation ConversationConfig
	Log          LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	conversation, err := loadConversationConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:       server,
		AI:           ai,
		Session:      session,
		Conversation: conversation,
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Pretty: !server.Production(),
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	Env            string
	AllowedOrigins []string
}

// Production reports whether the process runs in a production deployment.
func (c ServerConfig) Production() bool {
	return c.Env == "production"
}

// loadServerConfig 解析服务器监听地址与运行环境。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3001"
	}

	env := strings.ToLower(getEnvOrDefault("APP_ENV", getEnvOrDefault("NODE_ENV", "development")))

	cfg := ServerConfig{Env: env, AllowedOrigins: []string{"*"}}
	// ALLOWED_ORIGINS 仅在生产环境生效，开发环境始终放开。
	if raw := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); raw != "" && cfg.Production() {
		if origins := splitList(raw); len(origins) > 0 {
			cfg.AllowedOrigins = origins
		}
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":3001" 或 "127.0.0.1:3001"。
		cfg.Addr = port
		return cfg, nil
	}
	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}
	cfg.Addr = ":" + port
	return cfg, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider     string
	GeminiAPIKey string
	GeminiModel  string
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	PersonaID    string
}

// Enabled 表示所选提供方的必需凭证是否齐全。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderGemini:
		return c.GeminiAPIKey != "" && c.GeminiModel != ""
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	default:
		return false
	}
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Provider != ProviderArk || !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderGemini))
	if provider != ProviderGemini && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q: want %s or %s", provider, ProviderGemini, ProviderArk)
	}

	return AIConfig{
		Provider:     provider,
		GeminiAPIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:  getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		APIKey:       strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:    strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:    strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:        strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:      getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:       getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
		PersonaID:    getEnvOrDefault("ASSISTANT_PERSONA", "scatty"),
	}, nil
}

// SessionConfig 描述会话存储的淘汰策略。
type SessionConfig struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	idle, err := parseDurationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}
	sweep, err := parseDurationEnv("SESSION_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}
	if idle <= 0 {
		return SessionConfig{}, fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive, got %s", idle)
	}
	if sweep < time.Second {
		return SessionConfig{}, fmt.Errorf("SESSION_SWEEP_INTERVAL must be at least 1s, got %s", sweep)
	}
	return SessionConfig{IdleTimeout: idle, SweepInterval: sweep}, nil
}

// ConversationConfig 描述状态机的节奏与生成调用的容错策略。
type ConversationConfig struct {
	HistoryLimit      int
	VisionDelay       time.Duration
	GenerationTimeout time.Duration
	MaxAttempts       int
	RetryBackoff      time.Duration
	RetryMaxBackoff   time.Duration
}

func loadConversationConfig() (ConversationConfig, error) {
	cfg := ConversationConfig{HistoryLimit: 10, MaxAttempts: 3}

	if limit, err := parseOptionalIntEnv("AI_HISTORY_LIMIT"); err != nil {
		return ConversationConfig{}, err
	} else if limit != nil {
		if *limit < 0 {
			return ConversationConfig{}, fmt.Errorf("AI_HISTORY_LIMIT must not be negative, got %d", *limit)
		}
		cfg.HistoryLimit = *limit
	}

	if attempts, err := parseOptionalIntEnv("AI_MAX_ATTEMPTS"); err != nil {
		return ConversationConfig{}, err
	} else if attempts != nil {
		if *attempts < 1 {
			cfg.MaxAttempts = 1
		} else {
			cfg.MaxAttempts = *attempts
		}
	}

	var err error
	if cfg.VisionDelay, err = parseDurationEnv("VISION_DELAY", 500*time.Millisecond); err != nil {
		return ConversationConfig{}, err
	}
	if cfg.GenerationTimeout, err = parseDurationEnv("AI_GENERATION_TIMEOUT", 30*time.Second); err != nil {
		return ConversationConfig{}, err
	}
	if cfg.RetryBackoff, err = parseDurationEnv("AI_RETRY_BACKOFF", 500*time.Millisecond); err != nil {
		return ConversationConfig{}, err
	}
	if cfg.RetryMaxBackoff, err = parseDurationEnv("AI_RETRY_MAX_BACKOFF", 4*time.Second); err != nil {
		return ConversationConfig{}, err
	}
	if cfg.VisionDelay < 0 {
		cfg.VisionDelay = 0
	}
	return cfg, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Pretty bool
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
