package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "trader"
)

// legacyEnv 为早期部署使用的环境变量名，继续兼容。
var legacyEnv = map[string]string{
	"exchange.api_key":      "OKX_API_KEY",
	"exchange.api_secret":   "OKX_SECRET_KEY",
	"exchange.api_password": "OKX_PASSPHRASE",
	"exchange.use_sandbox":  "OKX_DEMO",
	"server.passphrase":     "WEBHOOK_PASSPHRASE",
	"server.port":           "PORT",
}

// Load 读取 .env、配置文件与环境变量并返回 Config。
// path 为空时使用默认路径，默认路径下文件缺失时仅使用默认值与环境变量。
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		missing := errors.Is(err, fs.ErrNotExist)
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			missing = true
		}
		switch {
		case missing && explicit:
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		case !missing:
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if cfg.Server.Port > 0 {
		cfg.Server.Addr = fmt.Sprintf(":%d", cfg.Server.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func bindEnv(v *viper.Viper) error {
	replacer := strings.NewReplacer(".", "_")
	for key, legacy := range legacyEnv {
		prefixed := strings.ToUpper(envPrefix + "_" + replacer.Replace(key))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("绑定环境变量 %s 失败: %w", legacy, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("exchange.name", "okx")
	v.SetDefault("exchange.markets", []string{"BTC/USDT:USDT"})
	v.SetDefault("exchange.use_sandbox", true)
	v.SetDefault("exchange.margin_mode", "isolated")
	v.SetDefault("exchange.timeout", "10s")
	v.SetDefault("exchange.retry.max_attempts", 3)
	v.SetDefault("exchange.retry.min_delay", "500ms")
	v.SetDefault("exchange.retry.max_delay", "5s")

	v.SetDefault("sizing.mode", "risk_based")
	v.SetDefault("sizing.risk_fraction", 0.02)
	v.SetDefault("sizing.utilization_fraction", 0.95)
	v.SetDefault("sizing.leverage", 5)

	v.SetDefault("protection.take_profit_fraction", 0.015)
	v.SetDefault("protection.stop_loss_fraction", 0.01)

	v.SetDefault("trade.cooldown", "60s")
	v.SetDefault("trade.position_check_failure", "block")

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.port", 0)
	v.SetDefault("server.webhook_path", "/webhook")
	v.SetDefault("server.passphrase", "")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
