// Package helius implements source.TransactionSource over the Helius
// enhanced transactions API.
package helius

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/observability"
	"wallet-profiler/internal/source"
)

// DefaultBaseURL is the public Helius API endpoint.
const DefaultBaseURL = "https://api.helius.xyz"

var _ source.TransactionSource = (*Client)(nil)

// Client fetches enhanced transactions for an address.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Helius client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 20 * time.Second},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "helius").Logger()
	return c
}

// FetchPage performs a single request. 429 maps to domain.ErrRateLimited,
// transport failures and other non-200 statuses to domain.ErrUpstreamUnavailable.
func (c *Client) FetchPage(ctx context.Context, address string, opts source.PageOptions) (_ source.Page, err error) {
	defer func(start time.Time) {
		observability.RecordUpstreamCall("helius", "transactions", time.Since(start), err)
	}(time.Now())

	q := url.Values{}
	q.Set("api-key", c.apiKey)
	limit := opts.Limit
	if limit <= 0 {
		limit = source.DefaultPageSize
	}
	q.Set("limit", strconv.Itoa(limit))
	if opts.Before != "" {
		q.Set("before", opts.Before)
	}
	if opts.Until != "" {
		q.Set("until", opts.Until)
	}
	endpoint := fmt.Sprintf("%s/v0/addresses/%s/transactions?%s", c.baseURL, url.PathEscape(address), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return source.Page{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return source.Page{}, fmt.Errorf("%w: helius request: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return source.Page{}, fmt.Errorf("%w: read helius response: %v", domain.ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return source.Page{}, fmt.Errorf("%w: helius (429)", domain.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return source.Page{}, fmt.Errorf("%w: helius status %d: %s", domain.ErrUpstreamUnavailable, resp.StatusCode, truncate(body, 200))
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return source.Page{}, fmt.Errorf("%w: decode helius page: %v", domain.ErrUpstreamUnavailable, err)
	}

	page := source.Page{Records: make([]domain.RawRecord, 0, len(raw))}
	for _, msg := range raw {
		rec, err := decodeRecord(msg)
		if err != nil {
			c.logger.Debug().Err(err).Str("wallet", address).Msg("skipping malformed transaction")
			continue
		}
		page.Records = append(page.Records, rec)
	}

	// A full page means there may be more history; the cursor is the oldest signature seen.
	if len(raw) == limit && len(page.Records) > 0 {
		page.Next = page.Records[len(page.Records)-1].Signature
	}
	return page, nil
}

// enhancedTx is the subset of the enhanced transaction payload that is read.
type enhancedTx struct {
	Signature        string          `json:"signature"`
	Timestamp        int64           `json:"timestamp"`
	Slot             int64           `json:"slot"`
	Type             string          `json:"type"`
	Source           string          `json:"source"`
	Fee              int64           `json:"fee"`
	FeePayer         string          `json:"feePayer"`
	TransactionError json.RawMessage `json:"transactionError"`
	NativeTransfers  []struct {
		FromUserAccount string `json:"fromUserAccount"`
		ToUserAccount   string `json:"toUserAccount"`
		Amount          int64  `json:"amount"`
	} `json:"nativeTransfers"`
	TokenTransfers []struct {
		FromUserAccount string      `json:"fromUserAccount"`
		ToUserAccount   string      `json:"toUserAccount"`
		Mint            string      `json:"mint"`
		TokenAmount     json.Number `json:"tokenAmount"`
	} `json:"tokenTransfers"`
}

func decodeRecord(msg json.RawMessage) (domain.RawRecord, error) {
	var tx enhancedTx
	if err := json.Unmarshal(msg, &tx); err != nil {
		return domain.RawRecord{}, fmt.Errorf("decode transaction: %w", err)
	}
	if tx.Signature == "" {
		return domain.RawRecord{}, fmt.Errorf("transaction without signature")
	}

	rec := domain.RawRecord{
		Signature: tx.Signature,
		Timestamp: tx.Timestamp * 1000,
		Slot:      tx.Slot,
		Type:      tx.Type,
		Source:    tx.Source,
		Fee:       tx.Fee,
		FeePayer:  tx.FeePayer,
		Failed:    len(tx.TransactionError) > 0 && string(tx.TransactionError) != "null",
	}

	for _, nt := range tx.NativeTransfers {
		rec.NativeTransfers = append(rec.NativeTransfers, domain.NativeTransfer{
			From:     nt.FromUserAccount,
			To:       nt.ToUserAccount,
			Lamports: nt.Amount,
		})
	}

	for _, tt := range tx.TokenTransfers {
		amount := decimal.Zero
		if tt.TokenAmount != "" {
			a, err := decimal.NewFromString(tt.TokenAmount.String())
			if err != nil {
				return domain.RawRecord{}, fmt.Errorf("token amount %q: %w", tt.TokenAmount, err)
			}
			amount = a
		}
		rec.TokenTransfers = append(rec.TokenTransfers, domain.TokenTransfer{
			Mint:   tt.Mint,
			From:   tt.FromUserAccount,
			To:     tt.ToUserAccount,
			Amount: amount,
		})
	}

	return rec, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
