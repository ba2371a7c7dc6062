package consoleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"bizconsole/internal/domain/banking"
	"bizconsole/internal/domain/matching"
	"bizconsole/internal/shared/auth"
)

const (
	defaultTimeout   = 30 * time.Second
	accountsPath     = "/bank-accounts"
	transactionsPath = "/bank-transactions"
	reconcilePath    = "/bank-transactions/reconcile"
)

// Client handles communication with the reconciliation backend
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Ensure Client implements the domain gateway
var _ banking.Gateway = (*Client)(nil)

// NewClient creates a new backend client. apiKey is used when a request context
// carries no caller token; it may be empty.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// envelope is the optional {success, data} wrapper some endpoints use.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type matchRequest struct {
	TransactionID string                `json:"transactionId"`
	Matches       []matching.Allocation `json:"matches"`
}

type dematchRequest struct {
	TransactionID string `json:"transactionId"`
}

type reconcileRequest struct {
	TransactionIDs []string       `json:"transactionIds"`
	Period         banking.Period `json:"period"`
}

// ListBankAccounts fetches all bank accounts
func (c *Client) ListBankAccounts(ctx context.Context) ([]banking.BankAccount, error) {
	var accounts []banking.BankAccount
	if err := c.do(ctx, http.MethodGet, accountsPath, nil, &accounts); err != nil {
		return nil, fmt.Errorf("failed to list bank accounts: %w", err)
	}
	return accounts, nil
}

// ListTransactions fetches the transactions of one bank account
func (c *Client) ListTransactions(ctx context.Context, bankAccountID string) ([]matching.Transaction, error) {
	path := transactionsPath + "?" + url.Values{"bank_account_id": {bankAccountID}}.Encode()

	var txs []matching.Transaction
	if err := c.do(ctx, http.MethodGet, path, nil, &txs); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// GetTransaction fetches one transaction
func (c *Client) GetTransaction(ctx context.Context, id string) (*matching.Transaction, error) {
	var tx matching.Transaction
	if err := c.do(ctx, http.MethodGet, transactionPath(id, ""), nil, &tx); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", banking.ErrTransactionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

// ListSuggestions fetches scored match candidates for a transaction
func (c *Client) ListSuggestions(ctx context.Context, transactionID string) ([]matching.Suggestion, error) {
	var suggestions []matching.Suggestion
	if err := c.do(ctx, http.MethodGet, transactionPath(transactionID, "/match-suggestions"), nil, &suggestions); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", banking.ErrTransactionNotFound, transactionID)
		}
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	return suggestions, nil
}

// SubmitMatches sends an allocation set
func (c *Client) SubmitMatches(ctx context.Context, transactionID string, matches []matching.Allocation) (*matching.MatchResult, error) {
	body := matchRequest{TransactionID: transactionID, Matches: matches}

	var result matching.MatchResult
	if err := c.do(ctx, http.MethodPost, transactionPath(transactionID, "/match"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Dematch removes all allocations from a transaction
func (c *Client) Dematch(ctx context.Context, transactionID string) error {
	return c.do(ctx, http.MethodPost, transactionPath(transactionID, "/dematch"), dematchRequest{TransactionID: transactionID}, nil)
}

// DeleteTransaction deletes a transaction
func (c *Client) DeleteTransaction(ctx context.Context, transactionID string) error {
	return c.do(ctx, http.MethodDelete, transactionPath(transactionID, ""), nil, nil)
}

// Reconcile locks transactions for a period
func (c *Client) Reconcile(ctx context.Context, transactionIDs []string, period banking.Period) error {
	return c.do(ctx, http.MethodPost, reconcilePath, reconcileRequest{TransactionIDs: transactionIDs, Period: period}, nil)
}

func transactionPath(id, suffix string) string {
	return transactionsPath + "/" + url.PathEscape(id) + suffix
}

func (c *Client) token(ctx context.Context) (string, error) {
	if token, ok := auth.TokenFromContext(ctx); ok {
		return token, nil
	}
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	return "", ErrNoCredentials
}

// do performs one request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil {
			apiErr.Code = errResp.Error
			apiErr.Message = errResp.Message
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return decode(body, out)
}

// decode accepts either a bare payload or one wrapped in {success, data}.
func decode(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Success != nil {
			if !*env.Success {
				return fmt.Errorf("API returned success=false")
			}
			if len(env.Data) > 0 {
				trimmed = env.Data
			}
		}
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
