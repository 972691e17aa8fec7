package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient calls the profile/trip service's internal HTTP API. It is the
// production implementation of Service; tests use the mock in
// internal/mocks.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient constructs the gateway client.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// VerifyToken validates the bearer token with the auth endpoint.
func (c *HTTPClient) VerifyToken(ctx context.Context, token string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/internal/auth/verify", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var out struct {
		Valid  bool `json:"valid"`
		UserID int  `json:"user_id"`
	}
	if err := c.do(req, &out); err != nil {
		return 0, err
	}
	if !out.Valid || out.UserID == 0 {
		return 0, errors.New("invalid token")
	}
	return out.UserID, nil
}

// VisibleConnections lists the viewer's accepted connections.
func (c *HTTPClient) VisibleConnections(ctx context.Context, viewerID int) ([]Connection, error) {
	endpoint := fmt.Sprintf("%s/internal/connections?viewer_id=%s", c.baseURL, url.QueryEscape(fmt.Sprint(viewerID)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Connections []Connection `json:"connections"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Connections, nil
}

// AcceptedTripIDs lists the viewer's accepted trips.
func (c *HTTPClient) AcceptedTripIDs(ctx context.Context, viewerID int) ([]int, error) {
	endpoint := fmt.Sprintf("%s/internal/trips/accepted?viewer_id=%s", c.baseURL, url.QueryEscape(fmt.Sprint(viewerID)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		TripIDs []int `json:"trip_ids"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.TripIDs, nil
}

func (c *HTTPClient) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory: unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ Service = (*HTTPClient)(nil)
