package exchange

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Warmup 在启动时加载市场元数据，并并发解析所有配置交易对的精度与报价。
// 任一交易对不可用时返回错误，避免运行中才发现配置问题。
func (c *Client) Warmup(ctx context.Context) error {
	if err := c.ensureMarketsLoaded(ctx); err != nil {
		return fmt.Errorf("exchange: 加载市场失败: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, symbol := range c.cfg.Markets {
		group.Go(func() error {
			market, err := c.Market(groupCtx, symbol)
			if err != nil {
				return fmt.Errorf("exchange: %s 市场元数据不可用: %w", symbol, err)
			}
			if !market.Contract {
				return fmt.Errorf("exchange: %s 不是合约市场", symbol)
			}
			price, err := c.FetchLastPrice(groupCtx, symbol)
			if err != nil {
				return fmt.Errorf("exchange: %s 报价不可用: %w", symbol, err)
			}

			c.logger.Info("交易对预热完成",
				zap.String("symbol", symbol),
				zap.String("last_price", price.String()),
				zap.String("contract_size", market.ContractSize.String()),
				zap.String("amount_step", market.AmountStep.String()),
			)
			return nil
		})
	}

	return group.Wait()
}
