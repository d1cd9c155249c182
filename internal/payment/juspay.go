// Package payment talks to the Juspay-style payment gateway.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"bapflow/internal/transport"
)

// StatusCharged is the gateway status signaling a settled payment.
const StatusCharged = "CHARGED"

// OrderStatus is the gateway's view of a payment.
type OrderStatus struct {
	OrderID string  `json:"order_id,omitempty"`
	Status  string  `json:"status"`
	Amount  float64 `json:"amount"`
}

// Client fetches payment status from the gateway by order id.
type Client struct {
	http    *transport.Client
	baseURL string
}

// NewClient constructs a gateway client for the given base URL. Merchant
// credentials travel as default headers on the transport client.
func NewClient(http *transport.Client, baseURL string) *Client {
	return &Client{http: http, baseURL: baseURL}
}

// GetOrderStatus returns the current payment status and captured amount.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (OrderStatus, error) {
	if orderID == "" {
		return OrderStatus{}, fmt.Errorf("payment status: order id required")
	}

	raw, err := c.http.Get(ctx, c.baseURL, "/orders/"+url.PathEscape(orderID))
	if err != nil {
		return OrderStatus{}, err
	}

	var status OrderStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return OrderStatus{}, fmt.Errorf("payment status %q: decode response: %w", orderID, err)
	}
	return status, nil
}
