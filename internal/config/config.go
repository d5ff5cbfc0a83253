package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"portfolio-slides/slide-service/internal/deck"
	"portfolio-slides/slide-service/internal/integrations"
	"portfolio-slides/slide-service/pkg/bgremove"
	"portfolio-slides/slide-service/pkg/geospatial"
	"portfolio-slides/slide-service/pkg/storage"
	"portfolio-slides/slide-service/pkg/textlayout"
)

// ErrMissingConfig is returned when a collaborator lacks a required setting
var ErrMissingConfig = errors.New("missing configuration")

// Storage backends
const (
	BackendMemory = "memory"
	BackendDrive  = "drive"
	BackendS3     = "s3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig               `json:"server"`
	Database DatabaseConfig             `json:"database"`
	Slides   SlidesConfig               `json:"slides"`
	Storage  StorageConfig              `json:"storage"`
	Deck     deck.Config                `json:"deck"`
	Notion   integrations.NotionConfig  `json:"notion"`
	Canva    integrations.CanvaConfig   `json:"canva"`
	DocSend  integrations.DocSendConfig `json:"docsend"`
	RemoveBG bgremove.APIConfig         `json:"removebg"`
	Geocoder geospatial.NominatimConfig `json:"geocoder"`
	Security SecurityConfig             `json:"security"`
	Worker   WorkerConfig               `json:"worker"`
	Logging  LoggingConfig              `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration. An empty URL keeps
// submissions in memory.
type DatabaseConfig struct {
	URL            string        `json:"url"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// SlidesConfig configures slide generation
type SlidesConfig struct {
	TemplatePath    string                `json:"template_path"`
	MapTemplatePath string                `json:"map_template_path"`
	Format          string                `json:"format"`
	Strategies      []string              `json:"strategies"`
	Fonts           textlayout.FontConfig `json:"fonts"`
	FetchTimeout    time.Duration         `json:"fetch_timeout"`
}

// StorageConfig selects and configures the file store
type StorageConfig struct {
	Backend string              `json:"backend"`
	Drive   storage.DriveConfig `json:"drive"`
	S3      storage.S3Config    `json:"s3"`
}

// SecurityConfig
type SecurityConfig struct {
	// WebhookSecret signs webhook bearer tokens; empty disables the check
	WebhookSecret string `json:"webhook_secret"`
}

// WorkerConfig configures the submission retry worker
type WorkerConfig struct {
	Schedule      string `json:"schedule"`
	MaxConcurrent int    `json:"max_concurrent"`
	MaxAttempts   int    `json:"max_attempts"`
	BatchSize     int    `json:"batch_size"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         5001,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 300 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConnections: 10,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
		},
		Slides: SlidesConfig{
			TemplatePath: "templates/portfolio_template.png",
			Format:       "pdf",
			Strategies:   []string{"template", "hosted"},
			FetchTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			Drive:   storage.DriveConfig{ShareWithLink: true},
			S3:      storage.S3Config{Region: "us-east-1", LinkExpiry: 7 * 24 * time.Hour},
		},
		Deck: deck.Config{
			ManifestPath: "data/master_deck.json",
			DeckName:     deck.DefaultDeckName,
		},
		Worker: WorkerConfig{
			Schedule:      "@every 5m",
			MaxConcurrent: 2,
			MaxAttempts:   3,
			BatchSize:     20,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig loads configuration from defaults, an optional JSON file, an
// optional .env file and environment variables, in increasing precedence
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// a missing .env is normal outside development
	_ = godotenv.Load()

	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	setString(&config.Server.Host, "SERVER_HOST")
	setInt(&config.Server.Port, "PORT")
	setString(&config.Database.URL, "DATABASE_URL")

	setString(&config.Slides.TemplatePath, "SLIDE_TEMPLATE_PATH")
	setString(&config.Slides.MapTemplatePath, "MAP_TEMPLATE_PATH")
	setString(&config.Slides.Format, "SLIDE_FORMAT")
	if v := os.Getenv("SLIDE_STRATEGIES"); v != "" {
		config.Slides.Strategies = splitList(v)
	}
	if v := os.Getenv("FONT_PATHS"); v != "" {
		config.Slides.Fonts.RegularPaths = splitList(v)
	}
	if v := os.Getenv("BOLD_FONT_PATHS"); v != "" {
		config.Slides.Fonts.BoldPaths = splitList(v)
	}

	setString(&config.Storage.Backend, "STORAGE_BACKEND")
	setString(&config.Storage.Drive.FolderID, "GOOGLE_DRIVE_FOLDER_ID")
	setString(&config.Storage.Drive.CredentialsJSON, "GOOGLE_DRIVE_CREDENTIALS_JSON")
	setString(&config.Storage.S3.Bucket, "S3_BUCKET")
	setString(&config.Storage.S3.Region, "AWS_REGION")
	setString(&config.Storage.S3.Endpoint, "S3_ENDPOINT")
	setString(&config.Storage.S3.AccessKey, "AWS_ACCESS_KEY_ID")
	setString(&config.Storage.S3.SecretKey, "AWS_SECRET_ACCESS_KEY")
	setString(&config.Deck.ManifestPath, "MASTER_DECK_MANIFEST")

	setString(&config.Notion.APIKey, "NOTION_API_KEY")
	setString(&config.Notion.DatabaseID, "NOTION_DATABASE_ID")
	setString(&config.Notion.TemplatePageID, "NOTION_TEMPLATE_PAGE_ID")
	setString(&config.Canva.APIKey, "CANVA_API_KEY")
	setString(&config.Canva.TemplateID, "CANVA_TEMPLATE_ID")
	setString(&config.DocSend.APIKey, "DOCSEND_API_KEY")
	setString(&config.DocSend.MasterDeckID, "DOCSEND_MASTER_DECK_ID")
	setString(&config.RemoveBG.APIKey, "REMOVEBG_API_KEY")
	setString(&config.Geocoder.BaseURL, "GEOCODER_URL")

	setString(&config.Security.WebhookSecret, "WEBHOOK_SECRET")
	setString(&config.Worker.Schedule, "RETRY_SCHEDULE")
	setInt(&config.Worker.MaxConcurrent, "RETRY_MAX_CONCURRENT")
	setInt(&config.Worker.MaxAttempts, "RETRY_MAX_ATTEMPTS")
	setString(&config.Logging.Level, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingConfig, field)
}

// ValidateNotion reports whether the workspace client can be built
func (c *Config) ValidateNotion() error {
	if c.Notion.APIKey == "" {
		return missing("NOTION_API_KEY")
	}
	if c.Notion.DatabaseID == "" {
		return missing("NOTION_DATABASE_ID")
	}
	return nil
}

// ValidateCanva reports whether the hosted template strategy can be built
func (c *Config) ValidateCanva() error {
	if c.Canva.APIKey == "" {
		return missing("CANVA_API_KEY")
	}
	if c.Canva.TemplateID == "" {
		return missing("CANVA_TEMPLATE_ID")
	}
	return nil
}

// ValidateDocSend reports whether the deck-sharing client can be built
func (c *Config) ValidateDocSend() error {
	if c.DocSend.APIKey == "" {
		return missing("DOCSEND_API_KEY")
	}
	return nil
}

// ValidateRemoveBG reports whether the background-removal API tier can be used
func (c *Config) ValidateRemoveBG() error {
	if c.RemoveBG.APIKey == "" {
		return missing("REMOVEBG_API_KEY")
	}
	return nil
}

// ValidateStorage checks the settings the selected backend needs
func (c *Config) ValidateStorage() error {
	switch c.Storage.Backend {
	case BackendMemory, "":
		return nil
	case BackendDrive:
		if c.Storage.Drive.FolderID == "" {
			return missing("GOOGLE_DRIVE_FOLDER_ID")
		}
		if c.Storage.Drive.CredentialsJSON == "" {
			return missing("GOOGLE_DRIVE_CREDENTIALS_JSON")
		}
		return nil
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return missing("S3_BUCKET")
		}
		return nil
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
}

// ValidateSlides checks the local template
func (c *Config) ValidateSlides() error {
	if c.Slides.TemplatePath == "" {
		return missing("SLIDE_TEMPLATE_PATH")
	}
	return nil
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
