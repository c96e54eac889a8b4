package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/visionpipe/graph-runtime/pose"
)

type Config struct {
	Assets   AssetsConfig `mapstructure:"assets"`
	Engine   EngineConfig `mapstructure:"engine"`
	LogLevel string       `mapstructure:"log_level"`
}

type AssetsConfig struct {
	Dir     string `mapstructure:"dir"`
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`

	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Prefix    string `mapstructure:"s3_prefix"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Insecure  bool   `mapstructure:"s3_insecure"`
}

type EngineConfig struct {
	MemoryLimitPages uint32 `mapstructure:"memory_limit_pages"`
}

func DefaultConfig() Config {
	return Config{
		Assets: AssetsConfig{
			Dir:     "assets",
			BaseURL: pose.DefaultBaseURL,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("assets-dir", defaults.Assets.Dir, "Local asset cache directory")
	fs.String("assets-base-url", defaults.Assets.BaseURL, "Base URL for asset downloads")
	fs.String("assets-token", defaults.Assets.Token, "Bearer token for asset downloads")
	fs.String("assets-s3-endpoint", defaults.Assets.S3Endpoint, "S3-compatible endpoint (fetch from object storage instead of HTTP)")
	fs.String("assets-s3-bucket", defaults.Assets.S3Bucket, "S3 bucket holding the asset bundle")
	fs.String("assets-s3-prefix", defaults.Assets.S3Prefix, "Key prefix inside the S3 bucket")
	fs.Bool("assets-s3-insecure", defaults.Assets.S3Insecure, "Use plain HTTP for the S3 endpoint")
	fs.Uint32("engine-memory-limit-pages", defaults.Engine.MemoryLimitPages, "Guest memory cap in 64KB pages (0 = default)")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

func LoadConfig(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("POSEGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	if err := v.BindEnv("assets.s3_access_key", "POSEGRAPH_S3_ACCESS_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv("assets.s3_secret_key", "POSEGRAPH_S3_SECRET_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("posegraph")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("assets.dir", c.Assets.Dir)
	v.SetDefault("assets.base_url", c.Assets.BaseURL)
	v.SetDefault("assets.token", c.Assets.Token)
	v.SetDefault("assets.s3_endpoint", c.Assets.S3Endpoint)
	v.SetDefault("assets.s3_bucket", c.Assets.S3Bucket)
	v.SetDefault("assets.s3_prefix", c.Assets.S3Prefix)
	v.SetDefault("assets.s3_insecure", c.Assets.S3Insecure)
	v.SetDefault("engine.memory_limit_pages", c.Engine.MemoryLimitPages)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("assets.dir", "assets-dir")
	v.RegisterAlias("assets.base_url", "assets-base-url")
	v.RegisterAlias("assets.token", "assets-token")
	v.RegisterAlias("assets.s3_endpoint", "assets-s3-endpoint")
	v.RegisterAlias("assets.s3_bucket", "assets-s3-bucket")
	v.RegisterAlias("assets.s3_prefix", "assets-s3-prefix")
	v.RegisterAlias("assets.s3_insecure", "assets-s3-insecure")
	v.RegisterAlias("engine.memory_limit_pages", "engine-memory-limit-pages")
	v.RegisterAlias("log_level", "log-level")
}
