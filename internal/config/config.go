package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	MongoDB struct {
		URI                    string        `koanf:"uri"`
		DB                     string        `koanf:"db"`
		ConnectTimeout         time.Duration `koanf:"connectTimeout"`
		ServerSelectionTimeout time.Duration `koanf:"serverSelectionTimeout"`
	} `koanf:"mongodb"`

	HTTPServer struct {
		Port           int `koanf:"port"`
		MaxHeaderBytes int `koanf:"maxHeaderBytes"`
		Timeout        struct {
			Read       time.Duration `koanf:"read"`
			Write      time.Duration `koanf:"write"`
			Idle       time.Duration `koanf:"idle"`
			ReadHeader time.Duration `koanf:"readHeader"`
			Shutdown   time.Duration `koanf:"shutdown"`
		} `koanf:"timeout"`
	} `koanf:"server"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

func (c Config) String() string {
	return fmt.Sprintf("mongodb.uri=%s, mongodb.db=%s, mongodb.connectTimeout=%v, mongodb.serverSelectionTimeout=%v, server.port=%d, server.maxHeaderBytes=%d, server.timeout.read=%v, server.timeout.write=%v, server.timeout.idle=%v, server.timeout.readHeader=%v, log_level=%s.",
		maskURI(c.MongoDB.URI),
		c.MongoDB.DB,
		c.MongoDB.ConnectTimeout,
		c.MongoDB.ServerSelectionTimeout,
		c.HTTPServer.Port,
		c.HTTPServer.MaxHeaderBytes,
		c.HTTPServer.Timeout.Read,
		c.HTTPServer.Timeout.Write,
		c.HTTPServer.Timeout.Idle,
		c.HTTPServer.Timeout.ReadHeader,
		c.Log.Level)
}

func maskURI(uri string) string {
	if uri == "" {
		return "<not configured>"
	}
	// Credentials live between the scheme and the last "@"
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return "****"
	}
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		return scheme + "://****@" + rest[i+1:]
	}
	return uri
}

const (
	mongoEnvPrefix = "MONGODB_"
	envPrefix      = "bookstore_"
	defaultEnvFile = ".env"
	configFile     = "config.yaml"
)

func defaults() map[string]any {
	return map[string]any{
		"mongodb.uri":                    "mongodb://localhost:27017/plp_bookstore",
		"mongodb.db":                     "plp_bookstore",
		"mongodb.connectTimeout":         5 * time.Second,
		"mongodb.serverSelectionTimeout": 5 * time.Second,
		"server.port":                    8080,
		"server.maxHeaderBytes":          1 << 20,
		"server.timeout.read":            10 * time.Second,
		"server.timeout.write":           10 * time.Second,
		"server.timeout.idle":            60 * time.Second,
		"server.timeout.readHeader":      5 * time.Second,
		"server.timeout.shutdown":        30 * time.Second,
		"log.level":                      "info",
	}
}

// Load reads the configuration from defaults, a file and environment variables
func Load() (*Config, error) {
	var k = koanf.New(".")

	// 0. Built-in defaults, the lowest priority
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	// 1. Load configuration from yaml file
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARN: error loading YAML config: %v", err)
		}
	}

	// 2. Load environment variables from .env file
	if envFileMap, err := godotenv.Read(defaultEnvFile); err == nil {
		envMap := make(map[string]interface{})
		for key, value := range envFileMap {
			if !isKnownEnv(key) {
				continue
			}
			envMap[keyTransformer(key)] = value
		}
		if err := k.Load(confmap.Provider(envMap, "."), nil); err != nil {
			log.Printf("WARN: error loading .env config: %v", err)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("WARN: error reading .env file: %v", err)
	}

	// 3. Load environment variables from the system, the highest priority
	if err := k.Load(env.Provider(mongoEnvPrefix, ".", keyTransformer), nil); err != nil {
		log.Printf("WARN: error loading env vars: %v", err)
	}
	if err := k.Load(env.Provider(strings.ToUpper(envPrefix), ".", keyTransformer), nil); err != nil {
		log.Printf("WARN: error loading env vars: %v", err)
	}

	var cfg Config
	// 4. Unmarshal the configuration into the Config struct
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// 5. Validate the configuration
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateConfig checks if the configuration values are valid
func validateConfig(cfg Config) error {
	if cfg.MongoDB.URI == "" {
		return fmt.Errorf("mongodb URI is not configured")
	}
	if !isValidMongoURI(cfg.MongoDB.URI) {
		return fmt.Errorf("mongodb URI must start with 'mongodb://' or 'mongodb+srv://': %s", maskURI(cfg.MongoDB.URI))
	}
	if cfg.MongoDB.DB == "" {
		return fmt.Errorf("mongodb database name is not configured")
	}
	if cfg.MongoDB.ConnectTimeout <= 0 {
		return fmt.Errorf("invalid mongodb connect timeout: %v", cfg.MongoDB.ConnectTimeout)
	}
	if cfg.MongoDB.ServerSelectionTimeout <= 0 {
		return fmt.Errorf("invalid mongodb server selection timeout: %v", cfg.MongoDB.ServerSelectionTimeout)
	}
	if cfg.HTTPServer.Port <= 0 || cfg.HTTPServer.Port > 65535 {
		return fmt.Errorf("invalid HTTP server port: %d", cfg.HTTPServer.Port)
	}
	if cfg.HTTPServer.Timeout.Read <= 0 {
		return fmt.Errorf("invalid HTTP server read timeout: %v", cfg.HTTPServer.Timeout.Read)
	}
	if cfg.HTTPServer.Timeout.Write <= 0 {
		return fmt.Errorf("invalid HTTP server write timeout: %v", cfg.HTTPServer.Timeout.Write)
	}
	if cfg.HTTPServer.Timeout.Idle <= 0 {
		return fmt.Errorf("invalid HTTP server idle timeout: %v", cfg.HTTPServer.Timeout.Idle)
	}
	return nil
}

// isValidMongoURI checks if the provided URI is a MongoDB connection string
func isValidMongoURI(uri string) bool {
	return strings.HasPrefix(uri, "mongodb://") ||
		strings.HasPrefix(uri, "mongodb+srv://")
}

func isKnownEnv(key string) bool {
	upper := strings.ToUpper(key)
	return strings.HasPrefix(upper, mongoEnvPrefix) || strings.HasPrefix(upper, strings.ToUpper(envPrefix))
}

// canonicalKeys maps every lower-cased config key to its camelCase form.
var canonicalKeys = func() map[string]string {
	keys := make(map[string]string, len(defaults()))
	for key := range defaults() {
		keys[strings.ToLower(key)] = key
	}
	return keys
}()

// keyTransformer transforms environment variable keys to match the expected format.
// MONGODB_URI becomes mongodb.uri, BOOKSTORE_LOG_LEVEL becomes log.level and
// MONGODB_CONNECTTIMEOUT becomes mongodb.connectTimeout.
func keyTransformer(key string) string {
	key = strings.ToLower(key)
	key = strings.TrimPrefix(key, envPrefix)
	key = strings.ReplaceAll(key, "_", ".")
	if canonical, ok := canonicalKeys[key]; ok {
		return canonical
	}
	return key
}
