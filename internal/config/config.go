package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type AppConfig struct {
	API      *APIConfig      `mapstructure:"api"`
	Gin      *GinConfig      `mapstructure:"gin"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
	FedaPay  *FedaPayConfig  `mapstructure:"fedapay"`
	Voting   *VotingConfig   `mapstructure:"voting"`
}

type APIConfig struct {
	Environment        string   `mapstructure:"environment"`
	BaseURL            string   `mapstructure:"base_url"`
	Port               string   `mapstructure:"port"`
	AllowedCORSDomains []string `mapstructure:"allowed_cors_domains"`
	JWTSigningKey      string   `mapstructure:"jwt_signing_key"`
}

type GinConfig struct {
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type FedaPayConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	CallbackURL    string `mapstructure:"callback_url"`
	RedirectURL    string `mapstructure:"redirect_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type VotingConfig struct {
	PaymentExpiryMinutes int    `mapstructure:"payment_expiry_minutes"`
	Currency             string `mapstructure:"currency"`
	PhoneCountryCode     string `mapstructure:"phone_country_code"`
	PhoneLocalDigits     int    `mapstructure:"phone_local_digits"`
}

// Load reads the YAML config file, layers environment variables on top
// (API_PORT, FEDAPAY_API_KEY, ...) and watches the file for changes.
func Load(configPath string) (*AppConfig, error) {
	viper.SetConfigFile(configPath)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("viper.ReadInConfig -> %w", err)
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		zap.L().Info("config file changed", zap.String("file", e.Name))
	})
	viper.WatchConfig()

	var config AppConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("viper.Unmarshal -> %w", err)
	}

	return &config, nil
}
