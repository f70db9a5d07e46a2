package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Dealer   DealerConfig   `mapstructure:"dealer"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ChainConfig struct {
	RPCURL           string `mapstructure:"rpcUrl"`
	ChainID          int64  `mapstructure:"chainId"`
	PrivateKey       string `mapstructure:"privateKey"`
	VaultAddress     string `mapstructure:"vaultAddress"`
	BlackjackAddress string `mapstructure:"blackjackAddress"`
	GasLimitStart    uint64 `mapstructure:"gasLimitStart"`
	GasLimitSettle   uint64 `mapstructure:"gasLimitSettle"`
}

type DealerConfig struct {
	BaseURL        string `mapstructure:"baseUrl"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
}

var GlobalConfig *Config

func LoadConfig(path string) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file, %s", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
	if cfg.Chain.GasLimitStart == 0 {
		cfg.Chain.GasLimitStart = 600_000
	}
	if cfg.Chain.GasLimitSettle == 0 {
		cfg.Chain.GasLimitSettle = 1_800_000
	}
	GlobalConfig = &cfg
}
