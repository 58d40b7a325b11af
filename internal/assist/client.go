package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"resale-ledger-go/internal/config"
	"resale-ledger-go/internal/models"
)

// Leg tags which side of a transaction a batch of screenshots documents.
const (
	LegBuy  = "BUY"
	LegSell = "SELL"
)

// ClientInterface defines the interface for the assist gateway client.
type ClientInterface interface {
	ExtractItems(ctx context.Context, images []string, leg string) ([]ItemCandidate, error)
	ExtractFields(ctx context.Context, text string) (*FieldGuess, error)
	CategorizeNames(ctx context.Context, names []string) (map[string]string, error)
	NarrativeReport(ctx context.Context, records []models.Record, stats any) (string, error)
}

// ItemCandidate is one item read off a screenshot. The price belongs to
// whichever leg was requested.
type ItemCandidate struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Date  string  `json:"date"`
}

// FieldGuess is the gateway's best reading of a free-text description,
// used only to pre-fill a record form.
type FieldGuess struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	BuyPrice float64 `json:"buyPrice"`
}

// Client talks to the AI assist gateway over HTTP.
// It implements the ClientInterface.
type Client struct {
	client  *resty.Client
	apiKey  string
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure Client implements the interface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new assist gateway client.
func NewClient(cfg *config.Assist, logger *zap.Logger) *Client {
	client := resty.New().SetBaseURL(cfg.BaseURL)

	// Initialize the rate limiter
	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:  client,
		apiKey:  cfg.ApiKey,
		logger:  logger,
		limiter: limiter,
	}
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// stripFences takes markdown code fences off a model response.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	return s
}

// decodePayload unmarshals a gateway response into out. The fence-stripped
// text is parsed verbatim first, so a valid response whose string values
// contain brackets is never cut apart; only when that fails is the outermost
// JSON span ('[' or '{' to its matching closer) extracted from surrounding
// prose and retried. Malformed output is a transient collaborator error,
// never silently a zero value.
func decodePayload(raw []byte, out any) error {
	cleaned := stripFences(string(raw))
	verbatimErr := json.Unmarshal([]byte(cleaned), out)
	if verbatimErr == nil {
		return nil
	}

	for _, pair := range [][2]string{{"[", "]"}, {"{", "}"}} {
		start := strings.Index(cleaned, pair[0])
		end := strings.LastIndex(cleaned, pair[1])
		if start < 0 || end <= start {
			continue
		}
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
			return nil
		}
	}
	return fmt.Errorf("malformed gateway response: %w", verbatimErr)
}

// ExtractItems reads transaction items off a batch of screenshots. The leg
// tag tells the gateway which price column to look for.
func (c *Client) ExtractItems(ctx context.Context, images []string, leg string) ([]ItemCandidate, error) {
	body := map[string]any{
		"images": images,
		"leg":    leg,
	}

	req := c.client.R().
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body)

	resp, err := c.doRequest(ctx, "POST", "/extract/items", req)
	if err != nil {
		c.logger.Error("Failed to extract items from screenshots", zap.Error(err))
		return nil, fmt.Errorf("failed to extract items: %w", err)
	}

	var items []ItemCandidate
	if err := decodePayload(resp.Body(), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ExtractFields guesses name, category and purchase price from free text.
func (c *Client) ExtractFields(ctx context.Context, text string) (*FieldGuess, error) {
	req := c.client.R().
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"text": text})

	resp, err := c.doRequest(ctx, "POST", "/extract/fields", req)
	if err != nil {
		return nil, fmt.Errorf("failed to extract fields: %w", err)
	}

	var guess FieldGuess
	if err := decodePayload(resp.Body(), &guess); err != nil {
		return nil, err
	}
	return &guess, nil
}

// CategorizeNames maps item names to fine-category tags. The gateway is asked
// to answer from the fixed tag vocabulary; answers outside it are dropped
// rather than stored.
func (c *Client) CategorizeNames(ctx context.Context, names []string) (map[string]string, error) {
	body := map[string]any{
		"names":      names,
		"vocabulary": models.FineTags(),
	}

	req := c.client.R().
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body)

	resp, err := c.doRequest(ctx, "POST", "/categorize", req)
	if err != nil {
		return nil, fmt.Errorf("failed to categorize names: %w", err)
	}

	var tags map[string]string
	if err := decodePayload(resp.Body(), &tags); err != nil {
		return nil, err
	}

	valid := make(map[string]bool, len(models.FineTags()))
	for _, tag := range models.FineTags() {
		valid[tag] = true
	}
	for name, tag := range tags {
		if !valid[tag] {
			c.logger.Warn("Dropping tag outside the vocabulary",
				zap.String("name", name),
				zap.String("tag", tag),
			)
			delete(tags, name)
		}
	}
	return tags, nil
}

// NarrativeReport asks the gateway for a free-text analysis of the portfolio.
// Purely advisory; the response is passed through for display as-is.
func (c *Client) NarrativeReport(ctx context.Context, records []models.Record, stats any) (string, error) {
	body := map[string]any{
		"records": records,
		"stats":   stats,
	}

	req := c.client.R().
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body)

	resp, err := c.doRequest(ctx, "POST", "/report", req)
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	report := strings.TrimSpace(resp.String())
	if report == "" {
		return "", fmt.Errorf("gateway returned an empty report")
	}
	return report, nil
}

// WrapCandidates turns extracted items into new records for the given leg.
// The opposite leg's price is forced to zero; SELL items pick up the default
// shipping method and cost.
func WrapCandidates(items []ItemCandidate, leg string) []models.Record {
	records := make([]models.Record, 0, len(items))
	for _, item := range items {
		price := item.Price
		if price < 0 {
			price = 0
		}
		date, ok := models.NormalizeDate(item.Date)
		if !ok {
			date = models.Today()
		}

		r := models.Record{Name: item.Name, Date: date}
		if leg == LegSell {
			r.SellPrice = price
			r.IsSold = true
			r.SellDate = date
			r.NormalizeShipping()
		} else {
			r.BuyPrice = price
		}
		r.Sanitize()
		records = append(records, r)
	}
	return records
}
