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

// Config 聚合客户端与本地调试服务的配置项。
type Config struct {
	Client  ClientConfig
	Journal JournalConfig
	Log     LogConfig
	Stub    StubConfig
	AI      AIConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	client, err := loadClientConfig()
	if err != nil {
		return nil, err
	}

	stub, err := loadStubConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Client:  client,
		Journal: JournalConfig{Dir: getEnvOrDefault("TUFT_JOURNAL_DIR", "debug_logs")},
		Log:     LogConfig{Level: strings.TrimSpace(os.Getenv("LOG_LEVEL"))},
		Stub:    stub,
		AI:      ai,
	}, nil
}

// ClientConfig 描述交互式客户端连接的智能体服务。
type ClientConfig struct {
	BaseURL     string
	AssistantID string
	Persona     string
	Timeout     time.Duration
	Extras      map[string]any
	Debug       bool
	Raw         bool
}

func loadClientConfig() (ClientConfig, error) {
	debug, err := parseBoolEnv("TUFT_DEBUG", false)
	if err != nil {
		return ClientConfig{}, err
	}

	raw, err := parseBoolEnv("TUFT_RAW", false)
	if err != nil {
		return ClientConfig{}, err
	}

	var timeout time.Duration
	if seconds, err := parseOptionalIntEnv("TUFT_HTTP_TIMEOUT"); err != nil {
		return ClientConfig{}, err
	} else if seconds != nil {
		if *seconds < 0 {
			return ClientConfig{}, fmt.Errorf("invalid TUFT_HTTP_TIMEOUT value %d: must not be negative", *seconds)
		}
		timeout = time.Duration(*seconds) * time.Second
	}

	extras, err := ParseExtras(os.Getenv("TUFT_RESPONSE_EXTRAS"))
	if err != nil {
		return ClientConfig{}, err
	}

	return ClientConfig{
		BaseURL:     getEnvOrDefault("TUFT_BASE_URL", "http://127.0.0.1:2024"),
		AssistantID: getEnvOrDefault("TUFT_ASSISTANT_ID", "agent"),
		Persona:     getEnvOrDefault("TUFT_PERSONA", "tuft"),
		Timeout:     timeout,
		Extras:      extras,
		Debug:       debug,
		Raw:         raw,
	}, nil
}

// ParseExtras 解析 "k=v,k=v" 形式的附加字段。
func ParseExtras(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	extras := make(map[string]any)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid TUFT_RESPONSE_EXTRAS entry %q: want key=value", pair)
		}
		extras[key] = strings.TrimSpace(value)
	}
	if len(extras) == 0 {
		return nil, nil
	}
	return extras, nil
}

// JournalConfig 描述调试日志目录。
type JournalConfig struct {
	Dir string
}

// LogConfig 描述运维日志级别，Level 为空时由各程序决定默认值。
type LogConfig struct {
	Level string
}

// LevelOr 返回配置的日志级别，未配置时返回 fallback。
func (c LogConfig) LevelOr(fallback string) string {
	if c.Level == "" {
		return fallback
	}
	return c.Level
}

// StubConfig 描述本地调试用智能体服务。
type StubConfig struct {
	Addr  string
	Shape string
}

// loadStubConfig 解析服务器监听地址与响应形态。
func loadStubConfig() (StubConfig, error) {
	addr, err := parseListenAddr(getEnvOrDefault("PORT", "2024"))
	if err != nil {
		return StubConfig{}, err
	}

	return StubConfig{
		Addr:  addr,
		Shape: strings.ToLower(getEnvOrDefault("STUB_RESPONSE_SHAPE", "metadata")),
	}, nil
}

func parseListenAddr(port string) (string, error) {
	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":2024" 或 "127.0.0.1:2024"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
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
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
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
