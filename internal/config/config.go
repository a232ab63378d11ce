package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
)

const (
	BackendMemory    string = "memory"
	BackendFirestore string = "firestore"
)

type Firebase struct {
	Type                    string        `env:"FIREBASE_TYPE" json:"type"`
	ProjectId               string        `env:"FIREBASE_PROJECT_ID" json:"project_id"`
	PrivateKeyId            string        `env:"FIREBASE_PRIVATE_KEY_ID" json:"private_key_id"`
	PrivateKey              string        `env:"FIREBASE_PRIVATE_KEY" json:"private_key"`
	ClientEmail             string        `env:"FIREBASE_CLIENT_EMAIL" json:"client_email"`
	ClientId                string        `env:"FIREBASE_CLIENT_ID" json:"client_id"`
	AuthUri                 string        `env:"FIREBASE_AUTH_URI" json:"auth_uri"`
	TokenUri                string        `env:"FIREBASE_TOKEN_URI" json:"token_uri"`
	AuthProviderX509CertUrl string        `env:"FIREBASE_AUTH_PROVIDER_X509_CERT_URL" json:"auth_provider_x509_cert_url"`
	ClientX509CertUrl       string        `env:"FIREBASE_CLIENT_X509_CERT_URL" json:"client_x509_cert_url"`
	WriteTimeoutSecond      time.Duration `env:"FIREBASE_WRITE_TIMEOUT_SECOND" json:"-"`
	// RootPath namespaces every document, e.g. "artifacts/my-app/public/data".
	RootPath string `env:"FIREBASE_ROOT_PATH" json:"-"`
}

type Store struct {
	Backend string `env:"STORE_BACKEND" envDefault:"memory"`
	// MaxAttempts bounds the optimistic retries of a transaction.
	MaxAttempts                int           `env:"STORE_TX_MAX_ATTEMPTS" envDefault:"5"`
	WatchWriteTimeout          time.Duration `env:"STORE_WATCH_WRITE_TIMEOUT" envDefault:"5s"`
	WatchWriteFailureThreshold int           `env:"STORE_WATCH_WRITE_FAILURE_THRESHOLD" envDefault:"3"`
	WatchMaxBacklog            int           `env:"STORE_WATCH_MAX_BACKLOG" envDefault:"1024"`
}

type Rating struct {
	MinScore   int      `env:"RATING_MIN_SCORE" envDefault:"1"`
	MaxScore   int      `env:"RATING_MAX_SCORE" envDefault:"100"`
	Categories []string `env:"RATING_CATEGORIES" envSeparator:","`
}

type Server struct {
	Addr string `env:"SERVER_ADDR" envDefault:":8080"`
	// WatchEntities lists the entity ids whose live averages the service publishes.
	WatchEntities []string `env:"WATCH_ENTITIES" envSeparator:","`
	// AdminUserId is only consumed by excluded UI gating.
	AdminUserId string `env:"ADMIN_USER_ID"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

type Config struct {
	Firebase
	Store
	Rating
	Server
	Log
}

func LoadConfigOrPanic() Config {
	var config *Config = new(Config)
	if err := env.Parse(config); err != nil {
		panic(err)
	}

	if err := config.normalize(); err != nil {
		panic(err)
	}
	return *config
}

// Default returns the configuration used when nothing is set in the environment.
func Default() Config {
	config := Config{
		Store: Store{
			Backend:                    BackendMemory,
			MaxAttempts:                5,
			WatchWriteTimeout:          time.Second * 5,
			WatchWriteFailureThreshold: 3,
			WatchMaxBacklog:            1024,
		},
		Rating: Rating{
			MinScore: 1,
			MaxScore: 100,
		},
		Server: Server{
			Addr: ":8080",
		},
		Log: Log{
			Level: "info",
		},
	}

	if err := config.normalize(); err != nil {
		panic(err)
	}
	return config
}

func (c *Config) normalize() error {

	if c.Store.Backend == BackendFirestore && c.Firebase.PrivateKey != "" {
		decodedBytes, err := base64.StdEncoding.DecodeString(c.Firebase.PrivateKey)
		if err != nil {
			return fmt.Errorf("decode firebase private key: %w", err)
		}
		c.Firebase.PrivateKey = string(decodedBytes)
		c.Firebase.PrivateKey = strings.ReplaceAll(c.Firebase.PrivateKey, "\\n", "\n")
	}

	if c.WriteTimeoutSecond == 0 {
		c.WriteTimeoutSecond = time.Second * 30
	}

	switch c.Store.Backend {
	case BackendMemory, BackendFirestore:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Store.MaxAttempts < 1 {
		c.Store.MaxAttempts = 1
	}
	if c.Store.WatchWriteFailureThreshold < 1 {
		c.Store.WatchWriteFailureThreshold = 1
	}
	if c.Store.WatchMaxBacklog < 1 {
		c.Store.WatchMaxBacklog = 1
	}
	if c.Store.WatchWriteTimeout <= 0 {
		c.Store.WatchWriteTimeout = time.Second * 5
	}

	if c.Rating.MinScore > c.Rating.MaxScore {
		return fmt.Errorf("rating bounds: min %d is greater than max %d", c.Rating.MinScore, c.Rating.MaxScore)
	}

	c.Rating.Categories = trimAll(c.Rating.Categories)
	if len(c.Rating.Categories) == 0 {
		c.Rating.Categories = DefaultCategories()
	}
	c.Server.WatchEntities = trimAll(c.Server.WatchEntities)

	return nil
}

// DefaultCategories are the acting categories every rating scores.
func DefaultCategories() []string {
	return []string{
		"emotionalRange",
		"vocalDelivery",
		"physicality",
		"screenPresence",
		"consistency",
		"timingAndPacing",
		"chemistry",
	}
}

// trimAll drops blank and repeated values, keeping the first occurrence order.
func trimAll(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
