package remote

import (
	"context"
	"net/http"
	"sync"

	"github.com/fintwitch/sessiond/internal/domain"
)

// AuthClient implements domain.AuthGateway against the auth service. The
// client tracks the current identity locally and pushes identity-change
// notifications to subscribers, the way an embedded auth SDK does.
type AuthClient struct {
	baseURL string
	http    *http.Client

	mu        sync.Mutex
	current   *domain.AuthUser
	nextSubID int
	subs      map[int]func(*domain.AuthUser)
}

// NewAuthClient creates an auth gateway client for the given base URL.
func NewAuthClient(baseURL string) *AuthClient {
	return &AuthClient{
		baseURL: baseURL,
		http:    &http.Client{},
		subs:    map[int]func(*domain.AuthUser){},
	}
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

type authResponse struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// SignIn authenticates and emits an identity-changed notification.
func (c *AuthClient) SignIn(ctx context.Context, email, password string) (*domain.AuthUser, error) {
	var resp authResponse
	err := doJSON(ctx, c.http, http.MethodPost, joinURL(c.baseURL, "/auth/signin"),
		authRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	user := &domain.AuthUser{UID: resp.UID, Email: resp.Email}
	c.setCurrent(user)
	return user, nil
}

// SignUp creates a new identity and emits an identity-changed notification.
func (c *AuthClient) SignUp(ctx context.Context, email, password string) (*domain.AuthUser, error) {
	var resp authResponse
	err := doJSON(ctx, c.http, http.MethodPost, joinURL(c.baseURL, "/auth/signup"),
		authRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	user := &domain.AuthUser{UID: resp.UID, Email: resp.Email}
	c.setCurrent(user)
	return user, nil
}

// SignOut clears the identity and notifies subscribers with nil.
func (c *AuthClient) SignOut(ctx context.Context) error {
	err := doJSON(ctx, c.http, http.MethodPost, joinURL(c.baseURL, "/auth/signout"), authRequest{}, nil)
	// Even when the service is unreachable the local identity is dropped;
	// the session must not stay pinned to a signed-out user.
	c.setCurrent(nil)
	return err
}

// ResetPassword requests a password-reset email.
func (c *AuthClient) ResetPassword(ctx context.Context, email string) error {
	return doJSON(ctx, c.http, http.MethodPost, joinURL(c.baseURL, "/auth/reset"),
		authRequest{Email: email}, nil)
}

// Subscribe registers a listener for identity changes. The listener is
// immediately invoked with the current identity.
func (c *AuthClient) Subscribe(fn func(*domain.AuthUser)) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	current := c.current
	c.mu.Unlock()

	fn(current)

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *AuthClient) setCurrent(user *domain.AuthUser) {
	c.mu.Lock()
	c.current = user
	subs := make([]func(*domain.AuthUser), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(user)
	}
}
