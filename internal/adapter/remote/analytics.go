package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fintwitch/sessiond/internal/domain"
)

// AnalyticsClient implements domain.AnalyticsSink against the streaming
// analytics ingest endpoint.
type AnalyticsClient struct {
	baseURL string
	http    *http.Client
}

// NewAnalyticsClient creates an analytics ingest client for the given base URL.
func NewAnalyticsClient(baseURL string) *AnalyticsClient {
	return &AnalyticsClient{baseURL: baseURL, http: &http.Client{}}
}

type ingestPayload struct {
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Date        string `json:"date"`
}

// Ingest sends one ledger entry to the analytics backend.
func (c *AnalyticsClient) Ingest(ctx context.Context, e domain.Entry) error {
	kind := "income"
	if !e.IsIncome() {
		kind = "expense"
	}
	category := e.Source
	if category == "" {
		category = e.Label
	}
	payload := ingestPayload{
		Amount:      e.Amount.String(),
		Category:    category,
		Description: fmt.Sprintf("%s - Balance: %s", e.Label, e.BalanceAfter.String()),
		Type:        kind,
		Date:        e.Timestamp.UTC().Format(time.RFC3339),
	}
	return doJSON(ctx, c.http, http.MethodPost, joinURL(c.baseURL, "/ingest"), payload, nil)
}
