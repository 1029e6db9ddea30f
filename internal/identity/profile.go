package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/RakeshKhadav/VC/internal/domain"
	apperrors "github.com/RakeshKhadav/VC/pkg/errors"
	"github.com/RakeshKhadav/VC/pkg/httpclient"
	"github.com/RakeshKhadav/VC/pkg/middleware"
)

const downstreamName = "identity-provider"

// ProfileProvider resolves the profile of an authenticated caller.
type ProfileProvider interface {
	Profile(ctx context.Context, claims *middleware.Claims) (domain.Profile, error)
}

// ClaimsProvider builds profiles from token claims alone.
type ClaimsProvider struct{}

// Profile returns the profile fields carried in the token.
func (ClaimsProvider) Profile(_ context.Context, claims *middleware.Claims) (domain.Profile, error) {
	return claimsProfile(claims), nil
}

func claimsProfile(c *middleware.Claims) domain.Profile {
	return domain.Profile{Email: c.Email, FirstName: c.FirstName, LastName: c.LastName, ImageURL: c.ImageURL}
}

// userResponse is the identity provider's user resource.
type userResponse struct {
	ID                    string `json:"id"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	ImageURL              string `json:"image_url"`
	PrimaryEmailAddressID string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

func (u userResponse) primaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

// HTTPProvider fetches profiles from the identity provider's REST API through
// a circuit breaker. Fields the API leaves empty fall back to token claims.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *httpclient.CircuitBreakerClient
}

// NewHTTPProvider creates a provider for the API at baseURL. While the breaker
// is open calls fail fast with a 503 AppError.
func NewHTTPProvider(baseURL, apiKey string, client *httpclient.CircuitBreakerClient) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: client.WithFallback(func(context.Context, error) (*http.Response, error) {
			return nil, apperrors.ServiceUnavailable("identity provider unavailable")
		}),
	}
}

// Profile fetches the caller's profile.
func (p *HTTPProvider) Profile(ctx context.Context, claims *middleware.Claims) (domain.Profile, error) {
	endpoint := p.baseURL + "/v1/users/" + url.PathEscape(claims.Subject)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Profile{}, httpclient.ParseResponseError(resp, downstreamName)
	}
	defer func() { _ = resp.Body.Close() }()

	var u userResponse
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return domain.Profile{}, fmt.Errorf("decode profile: %w", err)
	}

	return claimsProfile(claims).Overlay(domain.Profile{
		Email:     u.primaryEmail(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		ImageURL:  u.ImageURL,
	}), nil
}
