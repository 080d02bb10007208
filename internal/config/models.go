package config

import (
	"fmt"
	"time"

	"github.com/calendaria/duration-engine/internal/core"
)

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// OpenAIConfig represents the configuration for OpenAI and compatible endpoints
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// EngineConfig represents the runtime settings of the duration engine
type EngineConfig struct {
	AnalysisTimeout time.Duration
	BatchSize       int
	MaxBodySize     int
}

// HTTPConfig represents the configuration of the HTTP API
type HTTPConfig struct {
	ListenAddress string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// SMTPConfig represents the configuration of the SMTP intake
type SMTPConfig struct {
	Enabled          bool
	ListenAddress    string
	Domain           string
	AcceptedDomains  []string
	RelayEnabled     bool
	RelayAddress     string
	RelayPort        int
	DurationHeader   string
	MethodHeader     string
	ConfidenceHeader string
	ReasonHeader     string
}

// StoreConfig represents the configuration of the feedback store
type StoreConfig struct {
	Type             string
	Retention        time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisAddr        string
	RedisDB          int
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetEngine returns the engine configuration
func (c *Config) GetEngine() (EngineConfig, error) {
	timeout, err := c.GetDuration("engine.analysis_timeout")
	if err != nil {
		return EngineConfig{}, fmt.Errorf("invalid engine analysis timeout: %w", err)
	}
	return EngineConfig{
		AnalysisTimeout: timeout,
		BatchSize:       c.GetInt("engine.batch_size"),
		MaxBodySize:     c.GetInt("analysis.max_body_size"),
	}, nil
}

// GetHTTP returns the HTTP API configuration
func (c *Config) GetHTTP() (HTTPConfig, error) {
	readTimeout, err := c.GetDuration("server.http.read_timeout")
	if err != nil {
		return HTTPConfig{}, fmt.Errorf("invalid http read timeout: %w", err)
	}
	writeTimeout, err := c.GetDuration("server.http.write_timeout")
	if err != nil {
		return HTTPConfig{}, fmt.Errorf("invalid http write timeout: %w", err)
	}
	return HTTPConfig{
		ListenAddress: c.GetString("server.http.listen_address"),
		ReadTimeout:   readTimeout,
		WriteTimeout:  writeTimeout,
	}, nil
}

// GetSMTP returns the SMTP intake configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Enabled:          c.GetBool("server.smtp.enabled"),
		ListenAddress:    c.GetString("server.smtp.listen_address"),
		Domain:           c.GetString("server.smtp.domain"),
		AcceptedDomains:  c.GetStringSlice("server.smtp.accepted_domains"),
		RelayEnabled:     c.GetBool("server.smtp.relay.enabled"),
		RelayAddress:     c.GetString("server.smtp.relay.address"),
		RelayPort:        c.GetInt("server.smtp.relay.port"),
		DurationHeader:   c.GetString("server.smtp.headers.duration"),
		MethodHeader:     c.GetString("server.smtp.headers.method"),
		ConfidenceHeader: c.GetString("server.smtp.headers.confidence"),
		ReasonHeader:     c.GetString("server.smtp.headers.reason"),
	}
}

// GetStore returns the feedback store configuration
func (c *Config) GetStore() (StoreConfig, error) {
	retention, err := c.GetDuration("store.retention")
	if err != nil {
		return StoreConfig{}, fmt.Errorf("invalid store retention: %w", err)
	}
	cleanup, err := c.GetDuration("store.cleanup_frequency")
	if err != nil {
		return StoreConfig{}, fmt.Errorf("invalid store cleanup frequency: %w", err)
	}
	return StoreConfig{
		Type:             c.GetString("store.type"),
		Retention:        retention,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("store.sqlite_path"),
		MySQLDSN:         c.GetString("store.mysql_dsn"),
		RedisAddr:        c.GetString("store.redis_addr"),
		RedisDB:          c.GetInt("store.redis_db"),
	}, nil
}

// GetProcessing returns the tenant processing configuration used by the
// SMTP and CLI intakes. Without configured rules the default rule set applies.
func (c *Config) GetProcessing() (core.EmailProcessingConfig, error) {
	cfg := core.EmailProcessingConfig{
		AppointmentDurationMode:    core.DurationMode(c.GetString("processing.appointment_duration_mode")),
		EnableAIAnalysis:           c.GetBool("processing.enable_ai_analysis"),
		AIAnalysisPrompt:           c.GetString("processing.ai_analysis_prompt"),
		FallbackDuration:           c.GetInt("processing.fallback_duration"),
		ConfidenceThreshold:        c.GetFloat64("processing.confidence_threshold"),
		DefaultAppointmentDuration: c.GetInt("processing.default_appointment_duration"),
	}

	if c.v.IsSet("processing.automatic_duration_rules") {
		if err := c.v.UnmarshalKey("processing.automatic_duration_rules", &cfg.AutomaticDurationRules); err != nil {
			return core.EmailProcessingConfig{}, fmt.Errorf("invalid processing rules: %w", err)
		}
	} else {
		cfg.AutomaticDurationRules = core.DefaultProcessingConfig().AutomaticDurationRules
	}

	return cfg, nil
}
