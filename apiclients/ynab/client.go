// Package ynab is a client for the YNAB v1 REST API, covering the read
// endpoints needed to mirror a budget locally. Authentication uses a personal
// access token presented as an OAuth2 bearer token.
package ynab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/go-querystring/query"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://api.ynab.com/v1"

// APIClient is a wrapper for making authenticated calls to the YNAB API.
type APIClient struct {
	httpClient *http.Client
	baseURL    string
	log        *slog.Logger
}

// NewAPIClient creates a new YNAB API client authenticating with the provided
// access token. An empty baseURL selects the public API endpoint; a non-empty
// one is used verbatim, which also serves the test suite.
func NewAPIClient(ctx context.Context, accessToken, baseURL string, logger *slog.Logger) *APIClient {

	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	// Logger setup.
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(
			os.Stdout,
			&slog.HandlerOptions{Level: slog.LevelDebug},
		))
	}

	// The token does not expire, so a static token source suffices.
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})

	return &APIClient{
		httpClient: oauth2.NewClient(ctx, tokenSource),
		baseURL:    baseURL,
		log:        logger,
	}
}

// TransactionsOptions are the optional query parameters to GetTransactions.
type TransactionsOptions struct {
	SinceDate string `url:"since_date,omitempty"` // "2006-01-02"
	Type      string `url:"type,omitempty"`       // "uncategorized" or "unapproved"
}

// GetBudgets fetches the list of budgets (without month detail).
func (c *APIClient) GetBudgets(ctx context.Context) ([]Budget, error) {
	requestURL := fmt.Sprintf("%s/budgets", c.baseURL)

	var response budgetsResponse
	if err := c.get(ctx, requestURL, &response); err != nil {
		c.log.Error(fmt.Sprintf("GetBudgets: %v", err))
		return nil, fmt.Errorf("failed to fetch budgets: %w", err)
	}
	c.log.Info(fmt.Sprintf("GetBudgets: retrieved %d budgets", len(response.Data.Budgets)))
	return response.Data.Budgets, nil
}

// GetBudgetByID fetches a single budget including its month/category budget
// data.
func (c *APIClient) GetBudgetByID(ctx context.Context, budgetID string) (*Budget, error) {
	requestURL := fmt.Sprintf("%s/budgets/%s", c.baseURL, budgetID)

	var response budgetResponse
	if err := c.get(ctx, requestURL, &response); err != nil {
		c.log.Error(fmt.Sprintf("GetBudgetByID: %v", err))
		return nil, fmt.Errorf("failed to fetch budget %s: %w", budgetID, err)
	}
	c.log.Info(fmt.Sprintf("GetBudgetByID: retrieved budget %q with %d months",
		response.Data.Budget.Name, len(response.Data.Budget.Months)))
	return &response.Data.Budget, nil
}

// GetBudgetMonths fetches the month summaries for a budget.
func (c *APIClient) GetBudgetMonths(ctx context.Context, budgetID string) ([]Month, error) {
	requestURL := fmt.Sprintf("%s/budgets/%s/months", c.baseURL, budgetID)

	var response monthsResponse
	if err := c.get(ctx, requestURL, &response); err != nil {
		c.log.Error(fmt.Sprintf("GetBudgetMonths: %v", err))
		return nil, fmt.Errorf("failed to fetch months for budget %s: %w", budgetID, err)
	}
	c.log.Info(fmt.Sprintf("GetBudgetMonths: retrieved %d months", len(response.Data.Months)))
	return response.Data.Months, nil
}

// GetCategories fetches the category groups, each holding its categories.
func (c *APIClient) GetCategories(ctx context.Context, budgetID string) ([]CategoryGroup, error) {
	requestURL := fmt.Sprintf("%s/budgets/%s/categories", c.baseURL, budgetID)

	var response categoriesResponse
	if err := c.get(ctx, requestURL, &response); err != nil {
		c.log.Error(fmt.Sprintf("GetCategories: %v", err))
		return nil, fmt.Errorf("failed to fetch categories for budget %s: %w", budgetID, err)
	}
	c.log.Info(fmt.Sprintf("GetCategories: retrieved %d category groups", len(response.Data.CategoryGroups)))
	return response.Data.CategoryGroups, nil
}

// GetPayees fetches the payees for a budget.
func (c *APIClient) GetPayees(ctx context.Context, budgetID string) ([]Payee, error) {
	requestURL := fmt.Sprintf("%s/budgets/%s/payees", c.baseURL, budgetID)

	var response payeesResponse
	if err := c.get(ctx, requestURL, &response); err != nil {
		c.log.Error(fmt.Sprintf("GetPayees: %v", err))
		return nil, fmt.Errorf("failed to fetch payees for budget %s: %w", budgetID, err)
	}
	c.log.Info(fmt.Sprintf("GetPayees: retrieved %d payees", len(response.Data.Payees)))
	return response.Data.Payees, nil
}

// GetAccounts fetches the accounts for a budget.
func (c *APIClient) GetAccounts(ctx context.Context, budgetID string) ([]Account, error) {
	requestURL := fmt.Sprintf("%s/budgets/%s/accounts", c.baseURL, budgetID)

	var response accountsResponse
	if err := c.get(ctx, requestURL, &response); err != nil {
		c.log.Error(fmt.Sprintf("GetAccounts: %v", err))
		return nil, fmt.Errorf("failed to fetch accounts for budget %s: %w", budgetID, err)
	}
	c.log.Info(fmt.Sprintf("GetAccounts: retrieved %d accounts", len(response.Data.Accounts)))
	return response.Data.Accounts, nil
}

// GetTransactions fetches the transactions for a budget, optionally filtered
// by the provided options. Transactions carry their sub-transactions.
func (c *APIClient) GetTransactions(ctx context.Context, budgetID string, opts *TransactionsOptions) ([]Transaction, error) {
	requestURL := fmt.Sprintf("%s/budgets/%s/transactions", c.baseURL, budgetID)

	if opts != nil {
		params, err := query.Values(opts)
		if err != nil {
			return nil, fmt.Errorf("could not encode transaction options: %w", err)
		}
		if encoded := params.Encode(); encoded != "" {
			requestURL = fmt.Sprintf("%s?%s", requestURL, encoded)
		}
	}

	var response transactionsResponse
	if err := c.get(ctx, requestURL, &response); err != nil {
		c.log.Error(fmt.Sprintf("GetTransactions: %v", err))
		return nil, fmt.Errorf("failed to fetch transactions for budget %s: %w", budgetID, err)
	}
	c.log.Info(fmt.Sprintf("GetTransactions: retrieved %d transactions", len(response.Data.Transactions)))
	return response.Data.Transactions, nil
}

// get is a helper to execute a GET request and decode the JSON response
// envelope into v.
func (c *APIClient) get(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
