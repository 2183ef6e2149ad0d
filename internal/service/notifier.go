package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RelayClient delivers notifications through the external relay. There
// is no delivery guarantee; callers treat every error as log-and-move-on
// and a relay outage never fails a core operation.
type RelayClient struct {
	relayURL   string
	httpClient *http.Client
}

// NewRelayClient creates a new notification relay client. An empty URL
// disables delivery entirely.
func NewRelayClient(relayURL string) *RelayClient {
	return &RelayClient{
		relayURL: relayURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Notify posts a single notification to the relay
func (c *RelayClient) Notify(ctx context.Context, userID, event string, payload map[string]interface{}) error {
	if c.relayURL == "" {
		return nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"user_id": userID,
		"event":   event,
		"payload": payload,
	})
	if err != nil {
		return fmt.Errorf("notifier: failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notifier: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notifier: failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notifier: unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
