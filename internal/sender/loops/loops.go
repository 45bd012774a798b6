// Package loops sends transactional email through the Loops HTTP API.
package loops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/sender"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/httpclient"
)

const serviceName = "loops"

type request struct {
	TransactionalID string         `json:"transactionalId"`
	Email           string         `json:"email"`
	DataVariables   map[string]any `json:"dataVariables,omitempty"`
}

// Client implements sender.Sender against the Loops transactional endpoint.
type Client struct {
	http   httpclient.Doer
	apiURL string
	apiKey string
}

// NewClient creates a Loops client. doer is normally a circuit breaker
// wrapped httpclient.Client.
func NewClient(doer httpclient.Doer, apiURL, apiKey string) *Client {
	return &Client{http: doer, apiURL: apiURL, apiKey: apiKey}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return serviceName
}

// Send posts msg to the transactional endpoint. Any non-2xx response is an error.
func (c *Client) Send(ctx context.Context, msg *sender.Message) error {
	if msg.Email == "" {
		return fmt.Errorf("loops: recipient email is required")
	}
	if msg.TemplateID == "" {
		return fmt.Errorf("loops: transactional id is required")
	}

	body, err := json.Marshal(request{
		TransactionalID: msg.TemplateID,
		Email:           msg.Email,
		DataVariables:   msg.DataVariables,
	})
	if err != nil {
		return fmt.Errorf("marshal loops request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build loops request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("send %s to loops: %w", msg.TemplateID, err)
	}
	defer resp.Body.Close()

	if !httpclient.IsSuccess(resp.StatusCode) {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
