// Package identity calls the Supabase auth (GoTrue) admin API.
package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotConfigured = errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY must be set")

// APIError is a non-2xx answer from the admin API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth admin api error: %d %s", e.Status, e.Body)
}

type AdminClient struct {
	BaseURL        string
	ServiceRoleKey string
	Client         *http.Client
}

func NewAdminClient(baseURL, serviceRoleKey string) *AdminClient {
	return &AdminClient{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		ServiceRoleKey: serviceRoleKey,
		Client:         &http.Client{Timeout: 15 * time.Second},
	}
}

// DeleteUser removes the auth identity. An identity that is already gone is
// not an error.
func (c *AdminClient) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if c.BaseURL == "" || c.ServiceRoleKey == "" {
		return ErrNotConfigured
	}

	url := c.BaseURL + "/auth/v1/admin/users/" + id.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.ServiceRoleKey)
	req.Header.Set("apikey", c.ServiceRoleKey)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	return nil
}
