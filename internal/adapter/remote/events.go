package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/fintwitch/sessiond/internal/domain"
)

// EventsClient implements domain.EventSource against the simulated-event
// generator. The current balance is reported on every poll so the generator
// can adapt event sizes.
type EventsClient struct {
	baseURL string
	http    *http.Client
}

// NewEventsClient creates an event source client for the given base URL.
func NewEventsClient(baseURL string) *EventsClient {
	return &EventsClient{baseURL: baseURL, http: &http.Client{}}
}

// Poll fetches pending simulated events. Connection failures surface as
// domain.ErrNetworkUnavailable; callers treat them as "no events".
func (c *EventsClient) Poll(ctx context.Context, balance decimal.Decimal) ([]domain.SimulatedEvent, error) {
	endpoint := joinURL(c.baseURL, "/events") + "?balance=" + url.QueryEscape(balance.String())
	var events []domain.SimulatedEvent
	if err := doJSON(ctx, c.http, http.MethodGet, endpoint, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}
