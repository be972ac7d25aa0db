package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/richardliu001/duo-ledger/internal/ledger"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("configuration error")

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Log       LogConfig       `yaml:"log"`
	Users     []UserConfig    `yaml:"users" json:"users"`
	Wallets   []WalletConfig  `yaml:"wallets" json:"wallets"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// SessionTTL bounds idle conversations. Zero keeps them until they end.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// UserConfig is one of the two parties and the chat it talks from.
type UserConfig struct {
	Name   string `yaml:"name" json:"name"`
	ChatID int64  `yaml:"chat_id" json:"chat_id"`
}

// WalletConfig names a currency bucket and its display symbol.
type WalletConfig struct {
	Currency string `yaml:"currency" json:"currency"`
	Symbol   string `yaml:"symbol" json:"symbol"`
}

// Load reads yaml file, applies env overrides and validates the parties.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if raw := os.Getenv("JSON_CONFIG"); raw != "" {
		if err := cfg.applyJSON([]byte(raw)); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyJSON replaces users and wallets with the JSON_CONFIG document.
func (c *Config) applyJSON(raw []byte) error {
	var doc struct {
		Users   []UserConfig   `json:"users"`
		Wallets []WalletConfig `json:"wallets"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: JSON_CONFIG field %s has wrong type %s", ErrInvalid, typeErr.Field, typeErr.Value)
		}
		return fmt.Errorf("%w: JSON_CONFIG: %v", ErrInvalid, err)
	}
	if doc.Users == nil {
		return fmt.Errorf("%w: JSON_CONFIG has no users", ErrInvalid)
	}
	if doc.Wallets == nil {
		return fmt.Errorf("%w: JSON_CONFIG has no wallets", ErrInvalid)
	}
	c.Users, c.Wallets = doc.Users, doc.Wallets
	return nil
}

// Validate checks the party and wallet sections.
func (c *Config) Validate() error {
	if len(c.Users) != 2 {
		return fmt.Errorf("%w: number of configured users must be 2, while it is %d", ErrInvalid, len(c.Users))
	}
	if c.Users[0].Name == "" || c.Users[1].Name == "" {
		return fmt.Errorf("%w: user names must not be empty", ErrInvalid)
	}
	if c.Users[0].Name == c.Users[1].Name {
		return fmt.Errorf("%w: user names must be unique", ErrInvalid)
	}
	if c.Users[0].ChatID == c.Users[1].ChatID {
		return fmt.Errorf("%w: chat ids must be unique", ErrInvalid)
	}
	if len(c.Wallets) == 0 {
		return fmt.Errorf("%w: at least one wallet must be configured", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Wallets))
	for _, w := range c.Wallets {
		if w.Currency == "" || w.Symbol == "" {
			return fmt.Errorf("%w: wallet needs both currency and symbol", ErrInvalid)
		}
		if seen[w.Currency] {
			return fmt.Errorf("%w: the wallet must have unique currency names", ErrInvalid)
		}
		seen[w.Currency] = true
	}
	return nil
}

// Roster builds the party/wallet directory. users[0] is party A of the
// balance sign convention, so their order in the file must not change.
func (c *Config) Roster() (*ledger.Roster, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	wallets := make([]ledger.WalletDef, len(c.Wallets))
	for i, w := range c.Wallets {
		wallets[i] = ledger.WalletDef{Name: w.Currency, Symbol: w.Symbol}
	}
	return ledger.NewRoster(c.Users[0].Name, c.Users[1].Name, wallets)
}

// Allowed reports whether a chat id (decimal text) belongs to a party.
func (c *Config) Allowed(chatID string) bool {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return false
	}
	for _, u := range c.Users {
		if u.ChatID == id {
			return true
		}
	}
	return false
}

// ChatIDFor returns the chat of a party.
func (c *Config) ChatIDFor(name string) (int64, error) {
	for _, u := range c.Users {
		if u.Name == name {
			return u.ChatID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ledger.ErrUnknownIdentity, name)
}

// OtherChatID returns the chat of the party that does not own chatID.
func (c *Config) OtherChatID(chatID int64) (int64, error) {
	for i, u := range c.Users {
		if u.ChatID == chatID && len(c.Users) == 2 {
			return c.Users[1-i].ChatID, nil
		}
	}
	return 0, fmt.Errorf("%w: chat %d", ledger.ErrUnknownIdentity, chatID)
}

// Recipient picks the chat to notify about p: the other party of the chat
// that recorded it, or for imports the party who did not pay.
func (c *Config) Recipient(ctx context.Context, p ledger.Payment) (int64, error) {
	if chat, ok := ledger.RecordedBy(ctx); ok {
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: chat %q", ledger.ErrUnknownIdentity, chat)
		}
		return c.OtherChatID(id)
	}
	payer, err := c.ChatIDFor(p.Payer)
	if err != nil {
		return 0, err
	}
	return c.OtherChatID(payer)
}
