package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Mail providers selectable with MAIL_PROVIDER.
const (
	ProviderGraph = "graph"
	ProviderGmail = "gmail"
)

// Config holds application-wide configuration populated from environment variables.
// It is built once at start and passed by pointer; nothing mutates it afterwards.
type Config struct {
	Port string

	TelegramToken       string
	TelegramChatID      string // default destination for mailbox notifications
	TelegramSecretToken string // optional webhook secret

	OpenAIAPIKey string
	OpenAIModel  string

	MailProvider      string
	GraphTenantID     string
	GraphClientID     string
	GraphClientSecret string
	GraphUserID       string // mailbox owner: user id or address

	SecretsDir      string
	CredentialsPath string
	GmailTokenPath  string

	HTTPLogBodies bool
}

// New returns a viper instance with the defaults and environment binding used by Load.
// Command line flags may be bound to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("PORT", "3000")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("MAIL_PROVIDER", ProviderGraph)
	v.SetDefault("SECRETS_DIR", "secrets")
	v.SetDefault("HTTP_LOG_BODIES", false)
	return v
}

// Load reads .env (if present) and the environment through v.
func Load(v *viper.Viper) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Port:                v.GetString("PORT"),
		TelegramToken:       v.GetString("TELEGRAM_TOKEN"),
		TelegramChatID:      v.GetString("TELEGRAM_CHAT_ID"),
		TelegramSecretToken: v.GetString("TELEGRAM_SECRET_TOKEN"),
		OpenAIAPIKey:        v.GetString("OPENAI_API_KEY"),
		OpenAIModel:         v.GetString("OPENAI_MODEL"),
		MailProvider:        strings.ToLower(v.GetString("MAIL_PROVIDER")),
		GraphTenantID:       v.GetString("GRAPH_TENANT_ID"),
		GraphClientID:       v.GetString("GRAPH_CLIENT_ID"),
		GraphClientSecret:   v.GetString("GRAPH_CLIENT_SECRET"),
		GraphUserID:         v.GetString("GRAPH_USER_ID"),
		SecretsDir:          v.GetString("SECRETS_DIR"),
		CredentialsPath:     v.GetString("GOOGLE_CREDENTIALS"),
		GmailTokenPath:      v.GetString("GMAIL_TOKEN"),
		HTTPLogBodies:       v.GetBool("HTTP_LOG_BODIES"),
	}
	if cfg.GmailTokenPath == "" {
		cfg.GmailTokenPath = filepath.Join(cfg.SecretsDir, "token.json")
	}
	if cfg.CredentialsPath == "" {
		cfg.CredentialsPath = filepath.Join(cfg.SecretsDir, "credentials.json")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.MailProvider {
	case ProviderGraph:
		var missing []string
		for name, val := range map[string]string{
			"GRAPH_TENANT_ID":     c.GraphTenantID,
			"GRAPH_CLIENT_ID":     c.GraphClientID,
			"GRAPH_CLIENT_SECRET": c.GraphClientSecret,
			"GRAPH_USER_ID":       c.GraphUserID,
		} {
			if val == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			slices.Sort(missing)
			return fmt.Errorf("mail provider graph: missing %s", strings.Join(missing, ", "))
		}
	case ProviderGmail:
	default:
		return fmt.Errorf("unknown MAIL_PROVIDER %q (want %s or %s)", c.MailProvider, ProviderGraph, ProviderGmail)
	}
	return nil
}
