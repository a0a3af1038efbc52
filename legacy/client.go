package legacy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client implements Directory over a hosted-auth provider's admin API.
// Authentication uses the provider's service key as a bearer credential;
// the key grants full directory read access and must never reach logs.
type Client struct {
	// BaseURL is the admin API root, e.g. https://xyz.example.co/auth/v1.
	BaseURL string

	// ServiceKey authenticates admin requests.
	ServiceKey string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

func NewClient(baseURL, serviceKey string) *Client {
	return &Client{BaseURL: baseURL, ServiceKey: serviceKey}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// directoryUser is the provider's wire shape for one directory record.
type directoryUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Name       string `json:"name"`
		AvatarURL  string `json:"avatar_url"`
		ProviderID string `json:"provider_id"`
	} `json:"user_metadata"`
}

func (c *Client) ListUsers(ctx context.Context, page, perPage int) ([]User, error) {
	endpoint := fmt.Sprintf("%s/admin/users?page=%d&per_page=%d", c.BaseURL, page, perPage)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.ServiceKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed listing legacy users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("legacy directory returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Users []directoryUser `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed parsing legacy user page: %w", err)
	}

	users := make([]User, 0, len(payload.Users))
	for _, u := range payload.Users {
		users = append(users, User{
			LegacyID:    u.ID,
			Email:       u.Email,
			DisplayName: u.UserMetadata.Name,
			AvatarURL:   u.UserMetadata.AvatarURL,
			ExternalID:  u.UserMetadata.ProviderID,
		})
	}
	return users, nil
}
