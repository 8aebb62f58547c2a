package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Providers struct {
		Amap struct {
			BaseURL     string        `mapstructure:"baseURL"`
			OpenMeteo   string        `mapstructure:"openMeteoURL"`
			CallTimeout time.Duration `mapstructure:"callTimeout"`
		} `mapstructure:"amap"`
		Chat struct {
			Backend     string        `mapstructure:"backend"` // deepseek or gemini
			Model       string        `mapstructure:"model"`
			BaseURL     string        `mapstructure:"baseURL"`
			Temperature float32       `mapstructure:"temperature"`
			MaxTokens   int           `mapstructure:"maxTokens"`
			CallTimeout time.Duration `mapstructure:"callTimeout"`
		} `mapstructure:"chat"`
		Search struct {
			CallTimeout   time.Duration `mapstructure:"callTimeout"`
			VerifyTimeout time.Duration `mapstructure:"verifyTimeout"`
			// Hand-tuned image filtering heuristics, kept as data on
			// purpose: the blacklist precision is a product decision.
			BlockedDomains []string `mapstructure:"blockedDomains"`
			TrustedSuffix  []string `mapstructure:"trustedPatterns"`
		} `mapstructure:"search"`
	} `mapstructure:"providers"`
	Planner struct {
		GatherConcurrency int `mapstructure:"gatherConcurrency"`
	} `mapstructure:"planner"`
}

// Secrets come from the environment (.env in development), never from
// the YAML file.
type Secrets struct {
	AmapWebKey     string
	DeepSeekAPIKey string
	GeminiAPIKey   string
	UnsplashKey    string
	JWTSecret      string
}

func LoadSecrets() Secrets {
	return Secrets{
		AmapWebKey:     os.Getenv("AMAP_WEB_KEY"),
		DeepSeekAPIKey: os.Getenv("DEEPSEEK_API_KEY"),
		GeminiAPIKey:   os.Getenv("GOOGLE_GEMINI_API_KEY"),
		UnsplashKey:    os.Getenv("UNSPLASH_ACCESS_KEY"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
	}
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	return config, nil
}
