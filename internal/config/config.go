// Package config loads every runtime setting from the environment.
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

// Config aggregates the settings for the whole service.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Media  MediaConfig
	Live   LiveConfig
	Store  StoreConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	media, err := loadMediaConfig(ai)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     ai,
		Media:  media,
		Live:   loadLiveConfig(),
		Store:  loadStoreConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	// Allow ":8080" or "127.0.0.1:8080" verbatim.
	if strings.Contains(port, ":") {
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the reasoning model.
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

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel constructs the model instance from this configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("AI credentials missing: provide ARK_API_KEY + ARK_MODEL or the AK/SK pair")
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
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// MediaConfig describes the image and text-to-speech endpoints.
type MediaConfig struct {
	BaseURL    string
	APIKey     string
	ImageModel string
	TTSModel   string
	TTSVoice   string
	Timeout    time.Duration
	Enabled    bool
}

func loadMediaConfig(ai AIConfig) (MediaConfig, error) {
	timeout, err := parseOptionalIntEnv("MEDIA_TIMEOUT")
	if err != nil {
		return MediaConfig{}, err
	}
	timeoutSeconds := 60
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	apiKey := strings.TrimSpace(os.Getenv("MEDIA_API_KEY"))
	if apiKey == "" {
		apiKey = ai.APIKey
	}

	imageModel := strings.TrimSpace(os.Getenv("MEDIA_IMAGE_MODEL"))

	return MediaConfig{
		BaseURL:    getEnvOrDefault("MEDIA_BASE_URL", ai.BaseURL),
		APIKey:     apiKey,
		ImageModel: imageModel,
		TTSModel:   getEnvOrDefault("MEDIA_TTS_MODEL", ""),
		TTSVoice:   getEnvOrDefault("MEDIA_TTS_VOICE", "Zephyr"),
		Timeout:    time.Duration(timeoutSeconds) * time.Second,
		Enabled:    apiKey != "" && imageModel != "",
	}, nil
}

// LiveConfig describes the realtime voice endpoint.
type LiveConfig struct {
	Endpoint string
	Model    string
	Enabled  bool
}

func loadLiveConfig() LiveConfig {
	endpoint := strings.TrimSpace(os.Getenv("LIVE_ENDPOINT"))
	model := getEnvOrDefault("LIVE_MODEL", "")

	return LiveConfig{
		Endpoint: endpoint,
		Model:    model,
		Enabled:  endpoint != "" && model != "",
	}
}

// StoreConfig describes the persistence vault.
type StoreConfig struct {
	Path string
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		Path: getEnvOrDefault("VAULT_PATH", "nebula.db"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
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
