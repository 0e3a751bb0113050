package remote

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/fintwitch/sessiond/internal/domain"
)

// BudgetClient implements domain.BudgetLedger against the budget-allocation
// microservice.
type BudgetClient struct {
	baseURL string
	http    *http.Client
}

// NewBudgetClient creates a budget ledger client for the given base URL.
func NewBudgetClient(baseURL string) *BudgetClient {
	return &BudgetClient{baseURL: baseURL, http: &http.Client{}}
}

// Available probes the budget service status endpoint.
func (c *BudgetClient) Available(ctx context.Context) bool {
	err := doJSON(ctx, c.http, http.MethodGet, joinURL(c.baseURL, "/budget/status"), nil, nil)
	return err == nil
}

// Init creates the budget record for a user.
func (c *BudgetClient) Init(ctx context.Context, userID string) error {
	body := map[string]any{"user_id": userID}
	return doJSON(ctx, c.http, http.MethodPost, joinURL(c.baseURL, "/budget/init"), body, nil)
}

// AllocateIncome records an income split across the percentage buckets.
func (c *BudgetClient) AllocateIncome(ctx context.Context, userID string, amount decimal.Decimal, allocations map[string]decimal.Decimal, description string) error {
	allocs := make(map[string]string, len(allocations))
	for bucket, v := range allocations {
		allocs[bucket] = v.String()
	}
	body := map[string]any{
		"user_id":       userID,
		"income_amount": amount.String(),
		"allocations":   allocs,
		"description":   description,
	}
	return doJSON(ctx, c.http, http.MethodPost, joinURL(c.baseURL, "/budget/allocate"), body, nil)
}

// RecordExpense records a single debit against the user's budget.
func (c *BudgetClient) RecordExpense(ctx context.Context, userID string, amount decimal.Decimal, category string) error {
	body := map[string]any{
		"user_id":     userID,
		"amount":      amount.Abs().String(),
		"category":    category,
		"description": "Expense: " + category,
	}
	return doJSON(ctx, c.http, http.MethodPost, joinURL(c.baseURL, "/budget/expense"), body, nil)
}

var _ domain.BudgetLedger = (*BudgetClient)(nil)
