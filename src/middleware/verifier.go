package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"interview-copilot-service/src/models"
)

// TokenValidateResponse is the auth service's validation reply.
type TokenValidateResponse struct {
	IsValid bool   `json:"is_valid"`
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
	Active  bool   `json:"active"`
}

// HTTPVerifier validates tokens against the upstream auth service.
type HTTPVerifier struct {
	validateURL string
	client      *http.Client
}

func NewHTTPVerifier(validateURL string) *HTTPVerifier {
	return &HTTPVerifier{
		validateURL: validateURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify posts the token to the auth service and returns the identity it
// resolves to.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (models.Identity, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return models.Identity{}, fmt.Errorf("failed to validate token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.validateURL, bytes.NewReader(body))
	if err != nil {
		return models.Identity{}, fmt.Errorf("failed to validate token")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return models.Identity{}, fmt.Errorf("failed to validate token")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Identity{}, fmt.Errorf("failed to validate token")
	}

	var validated TokenValidateResponse
	if err := json.NewDecoder(resp.Body).Decode(&validated); err != nil {
		return models.Identity{}, err
	}
	if !validated.IsValid {
		return models.Identity{}, fmt.Errorf("invalid token")
	}

	return models.Identity{
		UserID: validated.UserID,
		Role:   validated.Role,
		Active: validated.Active,
	}, nil
}
