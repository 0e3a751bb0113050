package remote

import (
	"context"
	"net/http"

	"github.com/fintwitch/sessiond/internal/domain"
)

// ProfileClient implements domain.RemoteProfileStore against the profile
// document service.
type ProfileClient struct {
	baseURL string
	http    *http.Client
}

// NewProfileClient creates a profile store client for the given base URL.
func NewProfileClient(baseURL string) *ProfileClient {
	return &ProfileClient{baseURL: baseURL, http: &http.Client{}}
}

// Get fetches the record for an identity.
func (c *ProfileClient) Get(ctx context.Context, identity string) (domain.Profile, error) {
	var p domain.Profile
	err := doJSON(ctx, c.http, http.MethodGet, joinURL(c.baseURL, "/users/"+identity), nil, &p)
	return p, err
}

// Set writes the full record for an identity, creating it if absent.
func (c *ProfileClient) Set(ctx context.Context, identity string, p domain.Profile) error {
	return doJSON(ctx, c.http, http.MethodPut, joinURL(c.baseURL, "/users/"+identity), p, nil)
}

// Update applies a partial record; domain.ErrNotFound when the record is
// absent so callers can fall back to a full Set.
func (c *ProfileClient) Update(ctx context.Context, identity string, fields map[string]any) error {
	return doJSON(ctx, c.http, http.MethodPatch, joinURL(c.baseURL, "/users/"+identity), fields, nil)
}
