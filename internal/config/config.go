package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	EnvVars EnvVars  `json:"env"`
	Prompts *Prompts `json:"-"`
}

// EnvVars holds environment variables required by the application.
// Fields tagged `optional:"true"` are skipped by CheckConfigEnvFields.
type EnvVars struct {
	Port               string        `env:"PORT" envDefault:"8080"`
	GinMode            string        `env:"GIN_MODE" optional:"true"`
	DatabaseUrl        string        `env:"DATABASE_URL"`
	JwtSecretKey       string        `env:"JWT_SECRET_KEY"`
	OpenAIAPIKey       string        `env:"OPENAI_API_KEY"`
	AnthropicAPIKey    string        `env:"ANTHROPIC_API_KEY" optional:"true"`
	TTSCacheDir        string        `env:"TTS_CACHE_DIR" envDefault:"tts_cache"`
	TmpDir             string        `env:"TMP_DIR" envDefault:"tmp"`
	TTSLang            string        `env:"TTS_LANG" envDefault:"en"`
	TTSVoice           string        `env:"TTS_VOICE" envDefault:"alloy"`
	TTSCacheMaxAge     time.Duration `env:"TTS_CACHE_MAX_AGE" optional:"true"`
	RedisURL           string        `env:"REDIS_URL" optional:"true"`
	AWSRegion          string        `env:"AWS_REGION" optional:"true"`
	AWSAccessKeyID     string        `env:"AWS_ACCESS_KEY_ID" optional:"true"`
	AWSSecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY" optional:"true"`
	S3Bucket           string        `env:"S3_BUCKET" optional:"true"`
	AIAPIKey           string        `env:"AI_API_KEY" optional:"true"`
	RateLimitRPS       float64       `env:"RATE_LIMIT_RPS" envDefault:"5"`
	WeatherTimeout     time.Duration `env:"WEATHER_TIMEOUT" envDefault:"10s"`
	AllowedOrigins     []string      `env:"ALLOWED_ORIGINS" envSeparator:"," optional:"true"`
}

// LoadConfig parses environment variables into the Config struct.
func LoadConfig() (*Config, error) {
	var config Config
	if err := env.Parse(&config.EnvVars); err != nil {
		return nil, err
	}
	return &config, nil
}

// IsDev reports whether the server runs outside gin's release mode.
func (c *Config) IsDev() bool {
	return c.EnvVars.GinMode != "release"
}

// S3Enabled reports whether synthesized audio should be mirrored to S3.
func (c *Config) S3Enabled() bool {
	return c.EnvVars.S3Bucket != "" && c.EnvVars.AWSRegion != ""
}

// CheckConfigEnvFields validates that all required EnvVars fields are set.
func (c *Config) CheckConfigEnvFields() error {
	return checkFieldsRecursive(reflect.ValueOf(c.EnvVars))
}

func checkFieldsRecursive(v reflect.Value) error {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := v.Type().Field(i)
		if fieldType.Tag.Get("optional") == "true" {
			continue
		}
		if isZeroValue(field) {
			return fmt.Errorf("$%s must be set", fieldType.Tag.Get("env"))
		}
		if field.Kind() == reflect.Struct {
			if err := checkFieldsRecursive(field); err != nil {
				return err
			}
		}
	}
	return nil
}

func isZeroValue(v reflect.Value) bool {
	return v.Interface() == reflect.Zero(v.Type()).Interface()
}
