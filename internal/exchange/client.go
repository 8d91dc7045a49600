package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swap-signal-trader/internal/config"
	"swap-signal-trader/internal/trade"
)

// okxAPI 为 Client 使用到的 ccxt 方法子集。
type okxAPI interface {
	FetchBalance(params ...interface{}) (ccxt.Balances, error)
	FetchTicker(symbol string, options ...ccxt.FetchTickerOptions) (ccxt.Ticker, error)
	FetchPositions(options ...ccxt.FetchPositionsOptions) ([]ccxt.Position, error)
	SetLeverage(leverage int64, options ...ccxt.SetLeverageOptions) (map[string]interface{}, error)
	CreateMarketOrder(symbol string, side string, amount float64, options ...ccxt.CreateMarketOrderOptions) (ccxt.Order, error)
	CreateOrder(symbol string, typeVar string, side string, amount float64, options ...ccxt.CreateOrderOptions) (ccxt.Order, error)
}

// Client 负责与 OKX 永续合约交互。读操作带重试，下单操作只提交一次。
type Client struct {
	cfg    config.ExchangeConfig
	logger *zap.Logger
	api    okxAPI

	loadMarkets func() error
	lookup      func(symbol string) (interface{}, error)

	marketsMu     sync.Mutex
	marketsLoaded bool
	markets       map[string]trade.Market
}

// NewClient 构造 OKX 永续合约客户端。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !strings.EqualFold(cfg.Name, "okx") {
		return nil, fmt.Errorf("exchange: 不支持的交易所 %q", cfg.Name)
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"defaultType": "swap",
		},
	}
	if cfg.Timeout > 0 {
		userConfig["timeout"] = cfg.Timeout.Milliseconds()
	}

	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}
	if cfg.APIPass != "" {
		userConfig["password"] = cfg.APIPass
	}

	ex := ccxt.NewOkx(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}

	c := newClient(cfg, ex, logger)
	c.loadMarkets = func() error {
		_, err := ex.LoadMarkets()
		return err
	}
	c.lookup = func(symbol string) (raw interface{}, err error) {
		// ccxt 对未知交易对会 panic。
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %s: %v", ErrUnknownMarket, symbol, r)
			}
		}()
		return ex.Market(symbol), nil
	}

	logger.Info("已创建交易所客户端",
		zap.String("exchange", "okx"),
		zap.Bool("sandbox", cfg.UseSandbox),
		zap.Strings("markets", cfg.Markets),
	)
	return c, nil
}

func newClient(cfg config.ExchangeConfig, api okxAPI, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:         cfg,
		logger:      logger,
		api:         api,
		loadMarkets: func() error { return nil },
		lookup: func(symbol string) (interface{}, error) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMarket, symbol)
		},
		markets: make(map[string]trade.Market),
	}
}

// FetchFreeBalance 返回 USDT 可用余额。
func (c *Client) FetchFreeBalance(ctx context.Context) (decimal.Decimal, error) {
	var balances ccxt.Balances
	err := c.callWithRetry(ctx, "fetch_balance", func() error {
		result, err := c.api.FetchBalance()
		if err != nil {
			return err
		}
		balances = result
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	if balances.Free != nil {
		if free, ok := balances.Free[quoteCurrency]; ok && free != nil {
			return decimal.NewFromFloat(*free), nil
		}
	}
	return decimal.Zero, fmt.Errorf("exchange: 余额中缺少 %s 可用额度", quoteCurrency)
}

// FetchLastPrice 返回最新成交价。
func (c *Client) FetchLastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var ticker ccxt.Ticker
	err := c.callWithRetry(ctx, "fetch_ticker", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.api.FetchTicker(symbol)
		if err != nil {
			return err
		}
		ticker = result
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	last := derefFloat(ticker.Last)
	if last <= 0 {
		last = derefFloat(ticker.Close)
	}
	if last <= 0 {
		return decimal.Zero, fmt.Errorf("exchange: %s 最新价无效", symbol)
	}
	return decimal.NewFromFloat(last), nil
}

// Market 返回交易对的下单精度，结果在进程内缓存。
func (c *Client) Market(ctx context.Context, symbol string) (trade.Market, error) {
	if err := c.ensureMarketsLoaded(ctx); err != nil {
		return trade.Market{}, err
	}

	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if market, ok := c.markets[symbol]; ok {
		return market, nil
	}

	raw, err := c.lookup(symbol)
	if err != nil {
		return trade.Market{}, err
	}
	market, err := parseMarket(symbol, raw)
	if err != nil {
		return trade.Market{}, err
	}

	c.markets[symbol] = market
	c.logger.Debug("已解析市场精度",
		zap.String("symbol", symbol),
		zap.Bool("contract", market.Contract),
		zap.String("contract_size", market.ContractSize.String()),
		zap.String("amount_step", market.AmountStep.String()),
		zap.String("price_tick", market.PriceTick.String()),
		zap.String("min_amount", market.MinAmount.String()),
	)
	return market, nil
}

// SetLeverage 设置交易对杠杆。
func (c *Client) SetLeverage(ctx context.Context, req trade.LeverageRequest) error {
	return c.callWithRetry(ctx, "set_leverage", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		_, err := c.api.SetLeverage(req.Leverage,
			ccxt.WithSetLeverageSymbol(req.Symbol),
			ccxt.WithSetLeverageParams(leverageParams(req)),
		)
		return err
	})
}

// FetchPositionSize 返回交易对上各方向持仓张数的绝对值之和。
// 双向持仓模式下多空两腿不相互抵消。
func (c *Client) FetchPositionSize(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var positions []ccxt.Position
	err := c.callWithRetry(ctx, "fetch_positions", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.api.FetchPositions(ccxt.WithFetchPositionsSymbols([]string{symbol}))
		if err != nil {
			return err
		}
		positions = result
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	gross, net := decimal.Zero, decimal.Zero
	for _, pos := range positions {
		if !strings.EqualFold(derefString(pos.Symbol), symbol) {
			continue
		}
		contracts := decimal.NewFromFloat(derefFloat(pos.Contracts)).Abs()
		gross = gross.Add(contracts)
		if strings.EqualFold(derefString(pos.Side), "short") {
			contracts = contracts.Neg()
		}
		net = net.Add(contracts)
	}
	if !gross.IsZero() {
		c.logger.Debug("查询到持仓",
			zap.String("symbol", symbol),
			zap.String("gross", gross.String()),
			zap.String("net", net.String()),
		)
	}
	return gross, nil
}

// CreateMarketOrder 提交市价开仓。下单不重试，避免重复成交。
func (c *Client) CreateMarketOrder(ctx context.Context, order trade.MarketOrder) (trade.OrderAck, error) {
	if err := c.ensureMarketsLoaded(ctx); err != nil {
		return trade.OrderAck{}, err
	}

	req := entryRequest(order)
	raw, err := c.api.CreateMarketOrder(order.Symbol, req.Side, req.Amount,
		ccxt.WithCreateMarketOrderParams(req.Params),
	)
	if err != nil {
		normalized, _ := c.classifyError(err)
		return trade.OrderAck{}, normalized
	}

	ack := trade.OrderAck{
		ID:            derefString(raw.Id),
		ClientOrderID: order.ClientOrderID,
	}
	if avg := derefFloat(raw.Average); avg > 0 {
		ack.AveragePrice = decimal.NewFromFloat(avg)
	}
	return ack, nil
}

// CreateProtection 按形态提交保护单并返回交易所单号。拆分形态下，
// 止盈腿成功而止损腿失败时返回已受理的单号与错误。
func (c *Client) CreateProtection(ctx context.Context, order trade.ProtectionOrder) ([]string, error) {
	requests, err := protectionRequests(order)
	if err != nil {
		return nil, err
	}
	if err := c.ensureMarketsLoaded(ctx); err != nil {
		return nil, err
	}

	symbol := protectionSymbol(order)
	ids := make([]string, 0, len(requests))
	for _, req := range requests {
		raw, err := c.api.CreateOrder(symbol, req.Type, req.Side, req.Amount,
			ccxt.WithCreateOrderParams(req.Params),
		)
		if err != nil {
			normalized, _ := c.classifyError(err)
			return ids, normalized
		}
		ids = append(ids, derefString(raw.Id))
	}
	return ids, nil
}

func protectionSymbol(order trade.ProtectionOrder) string {
	switch o := order.(type) {
	case trade.CombinedTagged:
		return o.Symbol
	case trade.CombinedUntagged:
		return o.Symbol
	case trade.SplitConditional:
		return o.Symbol
	}
	return ""
}

func (c *Client) ensureMarketsLoaded(ctx context.Context) error {
	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}

	loadErr := c.callWithRetry(ctx, "load_markets", c.loadMarkets)
	if loadErr != nil {
		return loadErr
	}

	c.marketsLoaded = true
	c.logger.Info("已完成市场元数据加载", zap.Strings("markets", c.cfg.Markets))
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	maxAttempts := c.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := c.classifyError(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			c.logger.Warn("交易所维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= maxAttempts {
			c.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		c.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", delay),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (c *Client) classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) && ccxtErr.Type == ccxt.OnMaintenanceErrType {
		message := strings.TrimSpace(ccxtErr.Message)
		if message == "" {
			message = "exchange under maintenance"
		}
		return fmt.Errorf("%w: %s", ErrMaintenance, message), false
	}
	if IsRetryable(err) {
		return err, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err, true
	}

	return err, false
}
