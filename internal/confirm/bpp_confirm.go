package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bapflow/internal/bpp"
	ordersdb "bapflow/internal/db/orders"
	"bapflow/internal/protocol"
)

// ConfirmClient builds confirm payloads and forwards them via the BPP
// API client.
type ConfirmClient struct {
	api *bpp.Client
}

// NewConfirmClient constructs a ConfirmClient.
func NewConfirmClient(api *bpp.Client) *ConfirmClient {
	return &ConfirmClient{api: api}
}

// ConfirmV1 forwards a first-time confirmation built from the request
// message alone.
func (c *ConfirmClient) ConfirmV1(ctx context.Context, pctx *protocol.Context, bppURI string, order *protocol.Message) (*protocol.Response, error) {
	return c.send(ctx, pctx, bppURI, buildOrder(order))
}

// ConfirmV2 forwards a confirmation enriched with details already held
// against the transaction: billing, fulfillment and quote captured during
// order initialization.
func (c *ConfirmClient) ConfirmV2(ctx context.Context, pctx *protocol.Context, bppURI string, order *protocol.Message, stored ordersdb.Record) (*protocol.Response, error) {
	doc := buildOrder(order)
	if stored.Order != nil {
		if doc.Billing == nil {
			doc.Billing = stored.Order.Billing
		}
		if doc.Fulfillment == nil {
			doc.Fulfillment = stored.Order.Fulfillment
		}
		if doc.Quote == nil {
			doc.Quote = stored.Order.Quote
		}
		if doc.Provider == nil {
			doc.Provider = stored.Order.Provider
		}
	}
	return c.send(ctx, pctx, bppURI, doc)
}

func (c *ConfirmClient) send(ctx context.Context, pctx *protocol.Context, bppURI string, doc *protocol.Order) (*protocol.Response, error) {
	if bppURI == "" {
		return nil, errors.New("bpp uri required")
	}

	body := protocol.OrderRequest{
		Context: pctx,
		Message: &protocol.Message{Order: doc},
	}
	raw, err := c.api.Confirm(ctx, bppURI, body)
	if err != nil {
		return nil, err
	}

	var resp protocol.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("bpp confirm: decode response: %w", err)
	}
	return &resp, nil
}

// buildOrder assembles the order document the BPP expects from a confirm
// request message.
func buildOrder(m *protocol.Message) *protocol.Order {
	if m == nil {
		return &protocol.Order{}
	}
	if m.Order != nil {
		return m.Order
	}

	doc := &protocol.Order{
		Items:       m.Items,
		Payment:     m.Payment,
		Billing:     m.Billing,
		Fulfillment: m.Fulfillment,
		Quote:       m.Quote,
	}
	if len(m.Items) > 0 && m.Items[0].Provider.ID != "" {
		doc.Provider = &protocol.Provider{ID: m.Items[0].Provider.ID}
	}
	return doc
}
