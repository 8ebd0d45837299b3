// Package mexcclient adapts the MEXC exchange API to the application's
// market data and trade execution ports. Spot trading and price lookups
// go through the Binance-compatible /api/v3 surface; the new-coin
// calendar and symbol status live on MEXC's own web endpoints.
package mexcclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/jpillora/backoff"

	"mexcSniperBot/internal/ports"
)

const (
	defaultAPIBaseURL = "https://api.mexc.com"
	defaultWebBaseURL = "https://www.mexc.com"

	calendarPath = "/api/operation/new_coin_calendar"
	symbolsPath  = "/api/platform/spot/market-v2/web/symbolsV2"
)

// Client implements ports.MarketDataClient and ports.TradeExecutionClient
// against MEXC.
type Client struct {
	spotClient  *binance.Client
	httpClient  *http.Client
	webBaseURL  string
	logger      ports.Logger
	retryMin    time.Duration
	retryMax    time.Duration
	maxAttempts int
}

// Config holds configuration specific to the MEXC client adapter.
type Config struct {
	APIKey      string
	SecretKey   string
	APIBaseURL  string // Binance-compatible REST base, defaults to api.mexc.com
	WebBaseURL  string // Web endpoint base, defaults to www.mexc.com
	Logger      ports.Logger
	HTTPTimeout time.Duration // Per-request timeout for web endpoints
	RetryMin    time.Duration // Initial retry backoff
	RetryMax    time.Duration // Backoff ceiling
	MaxAttempts int           // Attempts per market data call before giving up
}

// New creates a new MEXC client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for MEXC client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	spot := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	spot.BaseURL = defaultAPIBaseURL
	if cfg.APIBaseURL != "" {
		spot.BaseURL = cfg.APIBaseURL
	}

	webBase := cfg.WebBaseURL
	if webBase == "" {
		webBase = defaultWebBaseURL
	}
	httpTimeout := cfg.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = 10 * time.Second
	}
	retryMin := cfg.RetryMin
	if retryMin <= 0 {
		retryMin = 200 * time.Millisecond
	}
	retryMax := cfg.RetryMax
	if retryMax <= 0 {
		retryMax = 2 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	cfg.Logger.Info(context.Background(), "MEXC client configured", map[string]interface{}{
		"apiBaseURL": spot.BaseURL, "webBaseURL": webBase,
	})

	return &Client{
		spotClient:  spot,
		httpClient:  &http.Client{Timeout: httpTimeout},
		webBaseURL:  webBase,
		logger:      cfg.Logger,
		retryMin:    retryMin,
		retryMax:    retryMax,
		maxAttempts: maxAttempts,
	}, nil
}

// handleError translates exchange API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003, 429:
			mappedErr = ports.ErrRateLimited
		case -1022, -2014, -2015, 700002, 10072:
			mappedErr = ports.ErrAuthenticationFailed
		case -1021:
			mappedErr = ports.ErrTimeout
		default:
			mappedErr = ports.ErrExchangeUnavailable
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s canceled: %w", operation, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrExchangeUnavailable, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// withRetry runs fn up to maxAttempts times with jittered exponential
// backoff. Context cancellation and authentication failures stop the
// retries immediately.
func (c *Client) withRetry(ctx context.Context, operation string, fn func() error) error {
	b := &backoff.Backoff{Min: c.retryMin, Max: c.retryMax, Factor: 2, Jitter: true}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, ports.ErrAuthenticationFailed) {
			return lastErr
		}
		if attempt == c.maxAttempts {
			break
		}
		delay := b.Duration()
		c.logger.Warn(ctx, operation+": attempt failed, retrying", map[string]interface{}{
			"attempt": attempt, "delay": delay.String(), "error": lastErr.Error(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s aborted during backoff: %w", operation, ctx.Err())
		}
	}
	return lastErr
}

// GetCurrentPrice retrieves the latest trade price for a symbol.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetCurrentPrice"
	var price float64
	err := c.withRetry(ctx, op, func() error {
		prices, err := c.spotClient.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return c.handleError(ctx, err, op)
		}
		if len(prices) == 0 {
			return c.handleError(ctx, fmt.Errorf("no price data returned for symbol %s", symbol), op)
		}
		p, err := strconv.ParseFloat(prices[0].Price, 64)
		if err != nil {
			return c.handleError(ctx, fmt.Errorf("could not parse price '%s': %w", prices[0].Price, err), op)
		}
		price = p
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ports.ErrDataUnavailable, err)
	}
	return price, nil
}

// Ping checks connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.spotClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// SubmitOrder places a market order. An exchange rejection is reported
// through OrderResult.Success=false with a nil Go error; transport
// failures return a Go error. Never retried: a duplicate market order
// on a fresh listing is worse than a missed one.
func (c *Client) SubmitOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResult, error) {
	op := "SubmitOrder"

	svc := c.spotClient.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(binance.SideType(req.Side)).
		Type(binance.OrderTypeMarket)

	switch {
	case req.QuoteAmount > 0:
		svc = svc.QuoteOrderQty(formatAmount(req.QuoteAmount, req.PricePrecision))
	case req.Quantity > 0:
		svc = svc.Quantity(formatAmount(req.Quantity, req.QuantityPrecision))
	default:
		return nil, fmt.Errorf("%s: order must carry a quantity or quote amount: %w", op, ports.ErrValidation)
	}

	order, err := svc.Do(ctx)
	if err != nil {
		translated := c.handleError(ctx, err, op)
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && !errors.Is(translated, ports.ErrAuthenticationFailed) && !errors.Is(translated, ports.ErrRateLimited) {
			// The exchange answered and said no.
			return &ports.OrderResult{Success: false, Error: apiErr.Message}, nil
		}
		return nil, translated
	}

	result := translateOrderResponse(order)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol": req.Symbol, "side": req.Side, "orderID": result.OrderID,
		"filledPrice": result.FilledPrice, "filledQuantity": result.FilledQuantity,
	})
	return result, nil
}

// formatAmount renders an order amount with the exchange's precision.
// An unknown precision falls back to 8 decimals, the API maximum.
func formatAmount(v float64, precision int) string {
	if precision <= 0 {
		precision = 8
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}

func translateOrderResponse(order *binance.CreateOrderResponse) *ports.OrderResult {
	if order == nil {
		return &ports.OrderResult{Success: false, Error: "empty order response"}
	}
	execQty, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	quoteQty, _ := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)

	var avgPrice float64
	if execQty > 0 && quoteQty > 0 {
		avgPrice = quoteQty / execQty
	} else if len(order.Fills) > 0 {
		var qtySum, notional float64
		for _, fill := range order.Fills {
			p, _ := strconv.ParseFloat(fill.Price, 64)
			q, _ := strconv.ParseFloat(fill.Quantity, 64)
			qtySum += q
			notional += p * q
		}
		if qtySum > 0 {
			avgPrice = notional / qtySum
			execQty = qtySum
		}
	}

	return &ports.OrderResult{
		Success:        true,
		OrderID:        strconv.FormatInt(order.OrderID, 10),
		FilledPrice:    avgPrice,
		FilledQuantity: execQty,
	}
}

var _ ports.TradeExecutionClient = (*Client)(nil)
var _ ports.MarketDataClient = (*Client)(nil)
