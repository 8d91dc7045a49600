package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"swap-signal-trader/internal/position"
	"swap-signal-trader/internal/risk"
	"swap-signal-trader/internal/trade"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	Sizing     SizingConfig     `mapstructure:"sizing"`
	Protection ProtectionConfig `mapstructure:"protection"`
	Trade      TradeConfig      `mapstructure:"trade"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述交易所连接信息。
type ExchangeConfig struct {
	Name string `mapstructure:"name"`
	// Markets 为允许交易的永续合约，第一个为默认交易对。
	Markets    []string      `mapstructure:"markets"`
	APIKey     string        `mapstructure:"api_key"`
	APISecret  string        `mapstructure:"api_secret"`
	APIPass    string        `mapstructure:"api_password"`
	UseSandbox bool          `mapstructure:"use_sandbox"`
	MarginMode string        `mapstructure:"margin_mode"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Retry      RetryConfig   `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// SizingConfig 控制仓位计算方式。
type SizingConfig struct {
	Mode                string  `mapstructure:"mode"`
	RiskFraction        float64 `mapstructure:"risk_fraction"`
	UtilizationFraction float64 `mapstructure:"utilization_fraction"`
	Leverage            int64   `mapstructure:"leverage"`
}

// ProtectionConfig 控制止盈止损比例。
type ProtectionConfig struct {
	TakeProfitFraction float64 `mapstructure:"take_profit_fraction"`
	StopLossFraction   float64 `mapstructure:"stop_loss_fraction"`
}

// TradeConfig 控制信号准入行为。
type TradeConfig struct {
	Cooldown             time.Duration `mapstructure:"cooldown"`
	PositionCheckFailure string        `mapstructure:"position_check_failure"`
}

// ServerConfig 控制 webhook 服务。
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// Port 非零时覆盖 Addr，兼容仅提供端口号的托管平台。
	Port            int           `mapstructure:"port"`
	WebhookPath     string        `mapstructure:"webhook_path"`
	Passphrase      string        `mapstructure:"passphrase"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// SizingPolicy 将配置转换为仓位计算策略。risk_based 模式的止损比例与保护单共用。
func (c *Config) SizingPolicy() risk.Policy {
	switch risk.Mode(strings.ToLower(c.Sizing.Mode)) {
	case risk.ModeFullBalance:
		return risk.FullBalance(c.Sizing.UtilizationFraction, c.Sizing.Leverage)
	case risk.ModeRiskBased:
		return risk.RiskBased(c.Sizing.RiskFraction, c.Protection.StopLossFraction)
	default:
		return risk.Policy{Mode: risk.Mode(c.Sizing.Mode)}
	}
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if !strings.EqualFold(c.Exchange.Name, "okx") {
		err = multierr.Append(err, fmt.Errorf("exchange.name 仅支持 okx，当前为 %q", c.Exchange.Name))
	}
	if len(c.Exchange.Markets) == 0 {
		err = multierr.Append(err, errors.New("exchange.markets 至少包含一个交易对"))
	}
	for _, m := range c.Exchange.Markets {
		if !strings.Contains(m, ":") {
			err = multierr.Append(err, fmt.Errorf("exchange.markets 仅支持永续合约符号(如 BTC/USDT:USDT)，当前为 %q", m))
		}
	}
	if !trade.MarginMode(c.Exchange.MarginMode).Valid() {
		err = multierr.Append(err, fmt.Errorf("exchange.margin_mode 取值非法: %q", c.Exchange.MarginMode))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" || c.Exchange.APIPass == "" {
		err = multierr.Append(err, errors.New("exchange.api_key/api_secret/api_password 不能为空，请配置 OKX_API_KEY、OKX_SECRET_KEY 与 OKX_PASSPHRASE"))
	}
	if c.Exchange.Timeout < 0 {
		err = multierr.Append(err, errors.New("exchange.timeout 不能为负"))
	}

	if c.Sizing.Leverage < 1 || c.Sizing.Leverage > 125 {
		err = multierr.Append(err, errors.New("sizing.leverage 必须位于[1,125]"))
	}
	if policyErr := c.SizingPolicy().Validate(); policyErr != nil {
		err = multierr.Append(err, policyErr)
	}
	if c.Protection.TakeProfitFraction <= 0 || c.Protection.TakeProfitFraction >= 1 {
		err = multierr.Append(err, errors.New("protection.take_profit_fraction 必须位于(0,1)"))
	}
	if c.Protection.StopLossFraction <= 0 || c.Protection.StopLossFraction >= 1 {
		err = multierr.Append(err, errors.New("protection.stop_loss_fraction 必须位于(0,1)"))
	}

	if c.Trade.Cooldown <= 0 {
		err = multierr.Append(err, errors.New("trade.cooldown 必须大于0"))
	}
	if !position.FailurePolicy(c.Trade.PositionCheckFailure).Valid() {
		err = multierr.Append(err, fmt.Errorf("trade.position_check_failure 取值非法: %q", c.Trade.PositionCheckFailure))
	}

	if c.Server.Addr == "" {
		err = multierr.Append(err, errors.New("server.addr 不能为空"))
	}
	if !strings.HasPrefix(c.Server.WebhookPath, "/") {
		err = multierr.Append(err, errors.New("server.webhook_path 必须以 / 开头"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		err = multierr.Append(err, errors.New("server.shutdown_timeout 必须大于0"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
