package mexcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mexcSniperBot/internal/domain"
	"mexcSniperBot/internal/ports"
)

// calendarResponse is the payload of the new-coin calendar endpoint.
type calendarResponse struct {
	Data []calendarEntry `json:"data"`
}

type calendarEntry struct {
	VcoinID       string `json:"vcoinId"`
	Symbol        string `json:"symbol"`
	ProjectName   string `json:"projectName"`
	FirstOpenTime int64  `json:"firstOpenTime"` // Unix milliseconds
}

// symbolsResponse is the payload of the symbolsV2 endpoint.
type symbolsResponse struct {
	Data struct {
		Symbols []symbolEntry `json:"symbols"`
	} `json:"data"`
}

type symbolEntry struct {
	Cd  string `json:"cd"` // coin identifier, matches the calendar's vcoinId
	Ca  string `json:"ca"` // trading symbol, empty until assigned
	Ps  *int   `json:"ps"` // price scale
	Qs  *int   `json:"qs"` // quantity scale
	Sts int    `json:"sts"`
	St  int    `json:"st"`
	Tt  int    `json:"tt"`
	Ot  int64  `json:"ot"` // open time, Unix milliseconds
}

// GetCalendar retrieves the upcoming-listing calendar. Entries that fail
// to parse are skipped rather than failing the whole poll.
func (c *Client) GetCalendar(ctx context.Context) ([]domain.CalendarCandidate, error) {
	op := "GetCalendar"
	var resp calendarResponse
	err := c.withRetry(ctx, op, func() error {
		return c.getJSON(ctx, c.webBaseURL+calendarPath, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ports.ErrDataUnavailable, op, err)
	}

	now := time.Now().UTC()
	candidates := make([]domain.CalendarCandidate, 0, len(resp.Data))
	for _, entry := range resp.Data {
		if entry.VcoinID == "" || entry.FirstOpenTime <= 0 {
			c.logger.Debug(ctx, op+": skipping malformed calendar entry", map[string]interface{}{
				"vcoinId": entry.VcoinID, "symbol": entry.Symbol,
			})
			continue
		}
		candidates = append(candidates, domain.CalendarCandidate{
			ID:                  entry.VcoinID,
			Symbol:              entry.Symbol,
			ProjectName:         entry.ProjectName,
			ScheduledLaunchTime: time.UnixMilli(entry.FirstOpenTime).UTC(),
			DiscoveredAt:        now,
		})
	}
	c.logger.Debug(ctx, op+": calendar retrieved", map[string]interface{}{"entries": len(candidates)})
	return candidates, nil
}

// GetSymbolStatus retrieves status snapshots for the given coin IDs.
// IDs the exchange does not know yet are simply absent from the result.
func (c *Client) GetSymbolStatus(ctx context.Context, ids []string) ([]domain.StatusSnapshot, error) {
	op := "GetSymbolStatus"
	if len(ids) == 0 {
		return nil, nil
	}

	var resp symbolsResponse
	err := c.withRetry(ctx, op, func() error {
		return c.getJSON(ctx, c.webBaseURL+symbolsPath, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ports.ErrDataUnavailable, op, err)
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	now := time.Now().UTC()
	snapshots := make([]domain.StatusSnapshot, 0, len(ids))
	for _, entry := range resp.Data.Symbols {
		if _, ok := wanted[entry.Cd]; !ok {
			continue
		}
		snap := domain.StatusSnapshot{
			ID:              entry.Cd,
			Symbol:          entry.Ca,
			TradingStatus:   entry.Sts,
			StateFlag:       entry.St,
			TimeFlag:        entry.Tt,
			LaunchTimestamp: entry.Ot,
			ObservedAt:      now,
		}
		if entry.Ps != nil {
			snap.PricePrecision = *entry.Ps
		}
		if entry.Qs != nil {
			snap.QuantityPrecision = *entry.Qs
		}
		snapshots = append(snapshots, snap)
	}
	c.logger.Debug(ctx, op+": snapshots retrieved", map[string]interface{}{
		"requested": len(ids), "found": len(snapshots),
	})
	return snapshots, nil
}

// getJSON performs one GET against a web endpoint and decodes the body.
func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ports.ErrExchangeUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d", ports.ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ports.ErrExchangeUnavailable, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
