// Package rates fetches currency conversion rates from the public
// fawazahmed0 currency API. One request returns the full quote map for a
// base currency, dated by the upstream publication day.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1"

// Client is a currency rates API client
type Client struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewClient creates a new rates client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: defaultBaseURL,
		log:     log.With().Str("client", "rates").Logger(),
	}
}

// Quotes holds every rate published for one base currency on one day.
type Quotes struct {
	Base  string
	Date  time.Time
	Rates map[string]decimal.Decimal
}

// Rates fetches the full quote map for a base currency. Quote currency
// codes are upper-cased.
func (c *Client) Rates(ctx context.Context, base string) (*Quotes, error) {
	url := fmt.Sprintf("%s/currencies/%s.min.json", c.baseURL, strings.ToLower(base))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("currency API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return parseQuotes(base, body)
}

func parseQuotes(base string, body []byte) (*Quotes, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var dateStr string
	if raw, ok := envelope["date"]; ok {
		if err := json.Unmarshal(raw, &dateStr); err != nil {
			return nil, fmt.Errorf("failed to parse rate date: %w", err)
		}
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate date %q: %w", dateStr, err)
	}

	raw, ok := envelope[strings.ToLower(base)]
	if !ok {
		return nil, fmt.Errorf("no rates returned for %s", base)
	}
	var numbers map[string]json.Number
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&numbers); err != nil {
		return nil, fmt.Errorf("failed to parse %s rates: %w", base, err)
	}

	rates := make(map[string]decimal.Decimal, len(numbers))
	for currency, num := range numbers {
		rate, err := decimal.NewFromString(num.String())
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate %s/%s: %w", base, currency, err)
		}
		rates[strings.ToUpper(currency)] = rate
	}
	return &Quotes{Base: strings.ToUpper(base), Date: date, Rates: rates}, nil
}
