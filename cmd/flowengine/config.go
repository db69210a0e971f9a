package main

import (
	"fmt"
	"os"

	"github.com/flowproc/bpmnengine/email"
)

// config bundles everything the CLI needs to assemble a running engine,
// read from environment variables the same way email.ConfigFromEnv reads
// the SMTP sender's settings.
type config struct {
	HTTPAddr    string
	WSAddr      string
	WebhookAddr string

	WorkflowsDir string

	StoreDriver string // "memory" | "sqlite" | "mysql"
	StorePath   string // sqlite file path
	StoreDSN    string // mysql DSN

	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIModel     string
	GoogleAPIKey    string
	GoogleModel     string
	BedrockRegion   string
	BedrockModelID  string

	Email email.SMTPConfig
}

func configFromEnv() (config, error) {
	cfg := config{
		HTTPAddr:     envOr("FLOWENGINE_HTTP_ADDR", ":8080"),
		WSAddr:       envOr("FLOWENGINE_WS_ADDR", ":8081"),
		WebhookAddr:  envOr("FLOWENGINE_WEBHOOK_ADDR", ":8082"),
		WorkflowsDir: envOr("FLOWENGINE_WORKFLOWS_DIR", "."),

		StoreDriver: envOr("FLOWENGINE_STORE_DRIVER", "memory"),
		StorePath:   os.Getenv("FLOWENGINE_STORE_PATH"),
		StoreDSN:    os.Getenv("FLOWENGINE_STORE_DSN"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     envOr("OPENAI_MODEL", "gpt-4"),
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		GoogleModel:     envOr("GOOGLE_MODEL", "gemini-1.5-flash"),
		BedrockRegion:   os.Getenv("AWS_REGION"),
		BedrockModelID:  os.Getenv("BEDROCK_MODEL_ID"),
	}

	switch cfg.StoreDriver {
	case "memory", "sqlite", "mysql":
	default:
		return config{}, fmt.Errorf("FLOWENGINE_STORE_DRIVER must be one of memory|sqlite|mysql, got %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == "sqlite" && cfg.StorePath == "" {
		return config{}, fmt.Errorf("FLOWENGINE_STORE_PATH is required when FLOWENGINE_STORE_DRIVER=sqlite")
	}
	if cfg.StoreDriver == "mysql" && cfg.StoreDSN == "" {
		return config{}, fmt.Errorf("FLOWENGINE_STORE_DSN is required when FLOWENGINE_STORE_DRIVER=mysql")
	}

	if emailCfg, err := email.ConfigFromEnv(); err == nil {
		cfg.Email = emailCfg
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
