// Package binance adapts the Binance USD-M futures API to the market-data
// and execution interfaces.
package binance

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"github.com/dkalman/futuresbot/internal/domain"
)

// Client wraps a futures REST client. Orders are resolved synchronously:
// Submit polls a short while for market orders that come back pending.
type Client struct {
	api    *futures.Client
	logger *slog.Logger

	pollInterval time.Duration
	pollAttempts int
}

func New(apiKey, secretKey string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" || secretKey == "" {
		return nil, fmt.Errorf("binance: api key and secret are required")
	}
	api := futures.NewClient(apiKey, secretKey)

	// Sync the local clock offset so signed requests are not rejected.
	if _, err := api.NewSetServerTimeService().Do(context.Background()); err != nil {
		logger.Warn("server time sync failed", slog.String("error", err.Error()))
	}

	return newClient(api, logger), nil
}

// NewPublic returns a client without credentials. Market data works; Submit,
// Cancel and AccountSnapshot will fail. Paper mode uses this.
func NewPublic(logger *slog.Logger) *Client {
	return newClient(futures.NewClient("", ""), logger)
}

func newClient(api *futures.Client, logger *slog.Logger) *Client {
	return &Client{
		api:          api,
		logger:       logger.With(slog.String("component", "binance")),
		pollInterval: 200 * time.Millisecond,
		pollAttempts: 10,
	}
}

var (
	_ domain.MarketData = (*Client)(nil)
	_ domain.Execution  = (*Client)(nil)
)

// GetQuote fetches the current price via the symbol price ticker.
func (c *Client) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	prices, err := c.api.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("binance: get price for %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return domain.Quote{}, fmt.Errorf("binance: no price for %s: %w", symbol, domain.ErrPriceUnavailable)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("binance: parse price %q: %w", prices[0].Price, err)
	}
	return domain.Quote{
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Now().UTC(),
	}, nil
}

// GetBars fetches recent closed candles, oldest first.
func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	klines, err := c.api.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: get klines for %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(klines))
	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closePrice, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)
		bars = append(bars, domain.Bar{
			Timestamp: time.UnixMilli(k.OpenTime).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}
	return bars, nil
}

// Submit places the order and waits for a terminal status.
func (c *Client) Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error) {
	svc := c.api.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(orderSide(req.Side)).
		Quantity(strconv.FormatFloat(req.Quantity, 'f', -1, 64))

	if req.Type == domain.OrderTypeLimit {
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(strconv.FormatFloat(req.Price, 'f', -1, 64))
	} else {
		svc = svc.Type(futures.OrderTypeMarket)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("binance: create order: %w", err)
	}

	c.logger.InfoContext(ctx, "order placed",
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)),
		slog.Int64("order_id", resp.OrderID),
		slog.String("status", string(resp.Status)))

	externalID := req.Symbol + ":" + strconv.FormatInt(resp.OrderID, 10)
	status := resp.Status
	avgPrice := resp.AvgPrice

	// Market orders can briefly report NEW; poll until terminal.
	for i := 0; i < c.pollAttempts && !terminal(status); i++ {
		select {
		case <-ctx.Done():
			return domain.SubmitResult{}, ctx.Err()
		case <-time.After(c.pollInterval):
		}
		order, err := c.api.NewGetOrderService().
			Symbol(req.Symbol).
			OrderID(resp.OrderID).
			Do(ctx)
		if err != nil {
			return domain.SubmitResult{}, fmt.Errorf("binance: get order %d: %w", resp.OrderID, err)
		}
		status = order.Status
		avgPrice = order.AvgPrice
	}

	if !terminal(status) {
		// Still resting after the poll window; cancel so the caller never
		// sees a half-open order.
		if cerr := c.Cancel(ctx, externalID); cerr != nil {
			c.logger.WarnContext(ctx, "cancel of unresolved order failed",
				slog.String("order_id", externalID),
				slog.String("error", cerr.Error()))
		}
		return domain.SubmitResult{ExternalID: externalID, Status: domain.OrderStatusCancelled}, nil
	}

	fill, _ := strconv.ParseFloat(avgPrice, 64)
	if fill == 0 {
		fill = req.Price
	}
	return domain.SubmitResult{
		ExternalID: externalID,
		FillPrice:  fill,
		Status:     mapStatus(status),
	}, nil
}

// Cancel cancels a resting order. externalID is "symbol:orderID" as produced
// by Submit. An order that is already gone does not count as a failure.
func (c *Client) Cancel(ctx context.Context, externalID string) error {
	symbol, idPart, ok := strings.Cut(externalID, ":")
	if !ok {
		return fmt.Errorf("binance: cancel needs symbol:orderID, got %q", externalID)
	}
	orderID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return fmt.Errorf("binance: parse order id %q: %w", idPart, err)
	}

	if _, err := c.api.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx); err != nil {
		if strings.Contains(err.Error(), "-2011") || strings.Contains(err.Error(), "Unknown order") {
			return nil
		}
		return fmt.Errorf("binance: cancel order %d: %w", orderID, err)
	}
	return nil
}

// AccountSnapshot reads the futures account and folds stablecoin assets into
// one snapshot.
func (c *Client) AccountSnapshot(ctx context.Context) (domain.AccountSnapshot, error) {
	account, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return domain.AccountSnapshot{}, fmt.Errorf("binance: get account: %w", err)
	}

	var balance, available, margin float64
	for _, asset := range account.Assets {
		if asset.Asset != "USDT" && asset.Asset != "USDC" && asset.Asset != "BUSD" {
			continue
		}
		b, _ := strconv.ParseFloat(asset.WalletBalance, 64)
		a, _ := strconv.ParseFloat(asset.AvailableBalance, 64)
		m, _ := strconv.ParseFloat(asset.MarginBalance, 64)
		balance += b
		available += a
		margin += m
	}

	return domain.AccountSnapshot{
		Timestamp:  time.Now().UTC(),
		Balance:    balance,
		Equity:     margin,
		MarginUsed: margin - available,
		FreeMargin: available,
	}, nil
}

func orderSide(side domain.OrderSide) futures.SideType {
	if side == domain.OrderSideBuy {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}

func terminal(status futures.OrderStatusType) bool {
	switch status {
	case futures.OrderStatusTypeFilled,
		futures.OrderStatusTypeCanceled,
		futures.OrderStatusTypeRejected,
		futures.OrderStatusTypeExpired:
		return true
	}
	return false
}

func mapStatus(status futures.OrderStatusType) domain.OrderStatus {
	switch status {
	case futures.OrderStatusTypeFilled:
		return domain.OrderStatusFilled
	case futures.OrderStatusTypeRejected:
		return domain.OrderStatusRejected
	default:
		return domain.OrderStatusCancelled
	}
}
