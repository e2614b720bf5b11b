/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the demandas-service.
// These values are loaded from environment variables. The listing fee and
// the USD to ARS rate are fixed configuration: changing either is a config
// change, never a code change.
type Config struct {
	ServerPort                     string  `mapstructure:"SERVER_PORT"`
	DatabaseURL                    string  `mapstructure:"DATABASE_URL"`
	RedisURL                       string  `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix           string  `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                    string  `mapstructure:"RABBITMQ_URL"`
	AuthJWKSURL                    string  `mapstructure:"AUTH_JWKS_URL"`
	WalletPayAPIBaseURL            string  `mapstructure:"WALLETPAY_API_BASE_URL"`
	WalletPayAccessToken           string  `mapstructure:"WALLETPAY_ACCESS_TOKEN"`
	GlobalPayAPIBaseURL            string  `mapstructure:"GLOBALPAY_API_BASE_URL"`
	GlobalPayClientID              string  `mapstructure:"GLOBALPAY_CLIENT_ID"`
	GlobalPayClientSecret          string  `mapstructure:"GLOBALPAY_CLIENT_SECRET"`
	ListingFeeUSD                  float64 `mapstructure:"LISTING_FEE_USD"`
	USDARSFxRate                   float64 `mapstructure:"USD_ARS_FX_RATE"`
	CheckoutSuccessURL             string  `mapstructure:"CHECKOUT_SUCCESS_URL"`
	CouponLookupRateLimitPerMinute int     `mapstructure:"COUPON_LOOKUP_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LISTING_FEE_USD", 10.0)
	viper.SetDefault("USD_ARS_FX_RATE", 1200.0)
	viper.SetDefault("CHECKOUT_SUCCESS_URL", "/success")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "ppo:rate_limit")
	viper.SetDefault("COUPON_LOOKUP_RATE_LIMIT_PER_MINUTE", 30)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("WALLETPAY_API_BASE_URL")
	_ = viper.BindEnv("WALLETPAY_ACCESS_TOKEN")
	_ = viper.BindEnv("GLOBALPAY_API_BASE_URL")
	_ = viper.BindEnv("GLOBALPAY_CLIENT_ID")
	_ = viper.BindEnv("GLOBALPAY_CLIENT_SECRET")
	_ = viper.BindEnv("LISTING_FEE_USD")
	_ = viper.BindEnv("USD_ARS_FX_RATE")
	_ = viper.BindEnv("CHECKOUT_SUCCESS_URL")
	_ = viper.BindEnv("COUPON_LOOKUP_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "ppo:rate_limit"
	}

	if config.ListingFeeUSD <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive listing fee configured; using default\" fee_usd=%f", config.ListingFeeUSD)
		config.ListingFeeUSD = 10.0
	}
	if config.USDARSFxRate <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive fx rate configured; using default\" fx_rate=%f", config.USDARSFxRate)
		config.USDARSFxRate = 1200.0
	}
	if strings.TrimSpace(config.CheckoutSuccessURL) == "" {
		config.CheckoutSuccessURL = "/success"
	}
	if config.CouponLookupRateLimitPerMinute < 0 {
		config.CouponLookupRateLimitPerMinute = 0
	}

	return
}
