// Package config loads service configuration from the environment.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config carries everything the serve command needs. Credentials keep
// their conventional variable names (GROQ_API_KEY, DEEPSEEK_API_KEY);
// service settings use the VOXLOG_ prefix.
type Config struct {
	GroqAPIKey     string `mapstructure:"groq_api_key"`
	DeepSeekAPIKey string `mapstructure:"deepseek_api_key"`
	DBPath         string `mapstructure:"db"`
	UploadDir      string `mapstructure:"upload_dir"`
	Addr           string `mapstructure:"addr"`
	MaxAudioMB     int64  `mapstructure:"max_audio_mb"`
	Language       string `mapstructure:"language"`
	StaticDir      string `mapstructure:"static_dir"`
}

// Load reads the environment and fills defaults.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VOXLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Credentials live under their provider names, not the service prefix.
	v.BindEnv("groq_api_key", "GROQ_API_KEY")
	v.BindEnv("deepseek_api_key", "DEEPSEEK_API_KEY")

	v.SetDefault("db", "diary.db")
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("addr", ":8000")
	v.SetDefault("max_audio_mb", 25)
	v.SetDefault("language", "zh")
	v.SetDefault("static_dir", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MaxUploadBytes converts the configured megabyte ceiling to bytes.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxAudioMB << 20
}
