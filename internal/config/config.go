package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/entrepeneur4lyf/spark/internal/domain"
	"github.com/entrepeneur4lyf/spark/internal/imagegen"
	"github.com/entrepeneur4lyf/spark/internal/llm/providers"
	"github.com/entrepeneur4lyf/spark/internal/storage"
)

// Models selects the Gemini models used for each concern
type Models struct {
	Chat  string `json:"chat"`
	Image string `json:"image"`
	Edit  string `json:"edit"`
}

// Gemini holds credentials for the Gemini API or Vertex AI
type Gemini struct {
	APIKey          string `json:"apiKey"`
	VertexProjectID string `json:"vertexProjectId,omitempty"`
	VertexRegion    string `json:"vertexRegion,omitempty"`
}

// Images configures asset generation
type Images struct {
	FallbackBaseURL    string           `json:"fallbackBaseURL"`
	Size               domain.ImageSize `json:"size"`
	MaxSourceDimension int              `json:"maxSourceDimension"`
	// ComicConcurrency caps parallel panel generation; 0 is unlimited
	ComicConcurrency int `json:"comicConcurrency"`
}

// Storage selects and configures the persistence backend
type Storage struct {
	Driver      string `json:"driver"`
	Directory   string `json:"directory,omitempty"`
	RedisURL    string `json:"redisURL,omitempty"`
	RedisPrefix string `json:"redisPrefix,omitempty"`
	// Watch reports writes made by other processes
	Watch bool `json:"watch"`
}

// Server configures the HTTP API
type Server struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// Origin is used to build share links; it defaults to the listen address
	Origin string `json:"origin,omitempty"`
}

// Log configures logging output
type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Config is the main configuration structure for the application
type Config struct {
	Gemini          Gemini        `json:"gemini"`
	Models          Models        `json:"models"`
	Images          Images        `json:"images"`
	Storage         Storage       `json:"storage"`
	Server          Server        `json:"server"`
	Log             Log           `json:"log"`
	LocationTimeout time.Duration `json:"locationTimeout"`
	ContextPaths    []string      `json:"contextPaths,omitempty"`
	WorkingDir      string        `json:"wd,omitempty"`
	Debug           bool          `json:"debug,omitempty"`

	// Location is a fixed position offered to the maps grounding tool
	Location *domain.Location `json:"location,omitempty"`
}

// Application constants
const (
	appName              = "spark"
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	DefaultPort          = 47100
	defaultServerHost    = "127.0.0.1"
	defaultStorageDriver = storage.DriverFile
)

// ErrMissingAPIKey is returned by Validate when no Gemini credentials exist
var ErrMissingAPIKey = errors.New("no Gemini API key configured; set GEMINI_API_KEY or SPARK_API_KEY")

var defaultContextPaths = []string{
	"SPARK.md",
	"spark.md",
	"spark.local.md",
}

// Load reads configuration from the config file, the environment and the
// defaults, in increasing order of precedence for file and env.
func Load(workingDir string, debug bool) (*Config, error) {
	v := viper.New()
	configureViper(v)
	setDefaults(v, debug)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.WorkingDir = workingDir
	cfg.Debug = debug || cfg.Debug

	loadAPIKeyFromEnv(cfg)

	if cfg.Storage.Directory == "" {
		cfg.Storage.Directory = defaultDataDirectory()
	}
	return cfg, nil
}

// configureViper sets up viper's configuration paths and environment variables
func configureViper(v *viper.Viper) {
	v.SetConfigName(fmt.Sprintf(".%s", appName))
	v.SetConfigType("json")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(fmt.Sprintf("$XDG_CONFIG_HOME/%s", appName))
	v.AddConfigPath(fmt.Sprintf("$HOME/.config/%s", appName))
	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// setDefaults configures default values for configuration options
func setDefaults(v *viper.Viper, debug bool) {
	v.SetDefault("gemini.apiKey", "")
	v.SetDefault("models.chat", providers.DefaultChatModel)
	v.SetDefault("models.image", imagegen.DefaultTextToImageModel)
	v.SetDefault("models.edit", imagegen.DefaultEditModel)

	v.SetDefault("images.fallbackBaseURL", imagegen.DefaultFallbackBaseURL)
	v.SetDefault("images.size", string(domain.ImageSize1K))
	v.SetDefault("images.maxSourceDimension", imagegen.DefaultMaxSourceDimension)
	v.SetDefault("images.comicConcurrency", 0)

	v.SetDefault("storage.driver", defaultStorageDriver)
	v.SetDefault("storage.redisPrefix", storage.DefaultRedisPrefix)
	v.SetDefault("storage.watch", true)

	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.port", DefaultPort)

	v.SetDefault("locationTimeout", 2*time.Second)
	v.SetDefault("contextPaths", defaultContextPaths)
	v.SetDefault("log.format", defaultLogFormat)

	if debug {
		v.SetDefault("debug", true)
		v.Set("log.level", "debug")
	} else {
		v.SetDefault("debug", false)
		v.SetDefault("log.level", defaultLogLevel)
	}
}

// readConfig reads the config file if one exists
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// loadAPIKeyFromEnv fills the Gemini key from the conventional variables
func loadAPIKeyFromEnv(cfg *Config) {
	if cfg.Gemini.APIKey != "" {
		return
	}
	for _, name := range []string{"GEMINI_API_KEY", "SPARK_API_KEY", "GOOGLE_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			cfg.Gemini.APIKey = key
			return
		}
	}
}

func defaultDataDirectory() string {
	return filepath.Join(storage.NewPathManager().GetHomeDir(), "."+appName)
}

// Validate reports configuration that cannot serve chat requests
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" && c.Gemini.VertexProjectID == "" {
		return ErrMissingAPIKey
	}
	switch c.Storage.Driver {
	case storage.DriverFile, storage.DriverLibSQL, storage.DriverMemory:
	case storage.DriverRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("storage driver %q requires storage.redisURL", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// Address returns the listen address of the API server
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ShareOrigin returns the origin used in share links
func (c *Config) ShareOrigin() string {
	if c.Server.Origin != "" {
		return strings.TrimRight(c.Server.Origin, "/")
	}
	return "http://" + c.Address()
}

// StatePath returns the TOML client state file location
func (c *Config) StatePath() string {
	return filepath.Join(c.Storage.Directory, "state.toml")
}

// StorageOptions converts the storage section for storage.Open
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Driver:      c.Storage.Driver,
		DataDir:     c.Storage.Directory,
		RedisURL:    c.Storage.RedisURL,
		RedisPrefix: c.Storage.RedisPrefix,
	}
}

// GeminiOptions converts the credentials for the completion client
func (c *Config) GeminiOptions() providers.GeminiOptions {
	return providers.GeminiOptions{
		APIKey:          c.Gemini.APIKey,
		ModelID:         c.Models.Chat,
		VertexProjectID: c.Gemini.VertexProjectID,
		VertexRegion:    c.Gemini.VertexRegion,
	}
}

// ImageSettings returns the default per-request image settings
func (c *Config) ImageSettings() domain.ImageSettings {
	size := c.Images.Size
	if size == "" {
		size = domain.ImageSize1K
	}
	return domain.ImageSettings{Size: size}
}
