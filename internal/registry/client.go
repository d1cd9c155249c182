package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"bapflow/internal/transport"
)

// Subscriber is one network participant record returned by the registry.
type Subscriber struct {
	SubscriberID  string `json:"subscriber_id"`
	SubscriberURL string `json:"subscriber_url"`
	Type          string `json:"type,omitempty"`
	Status        string `json:"status,omitempty"`
}

type lookupRequest struct {
	Type         string `json:"type"`
	SubscriberID string `json:"subscriber_id"`
}

// Client resolves subscriber network addresses via the registry's
// /lookup endpoint. Results are not cached; one lookup per confirmation.
type Client struct {
	http    *transport.Client
	baseURL string
}

// NewClient constructs a registry client for the given base URL.
func NewClient(http *transport.Client, baseURL string) *Client {
	return &Client{http: http, baseURL: baseURL}
}

// Lookup returns candidate subscriber records for a type and id.
func (c *Client) Lookup(ctx context.Context, subscriberType, subscriberID string) ([]Subscriber, error) {
	raw, err := c.http.Send(ctx, c.baseURL, "/lookup", lookupRequest{
		Type:         subscriberType,
		SubscriberID: subscriberID,
	})
	if err != nil {
		return nil, err
	}

	var subscribers []Subscriber
	if err := json.Unmarshal(raw, &subscribers); err != nil {
		return nil, fmt.Errorf("registry lookup %q: decode response: %w", subscriberID, err)
	}
	return subscribers, nil
}
