// Package bpp forwards protocol calls to seller platforms. Each operation
// POSTs to a fixed route under a per-seller base URI; transport failures
// propagate unchanged.
package bpp

import (
	"context"
	"encoding/json"

	"bapflow/internal/transport"
)

// Protocol routes, relative to a BPP's base URI.
const (
	RouteSearch  = "/search"
	RouteInit    = "/init"
	RouteConfirm = "/confirm"
	RouteCancel  = "/cancel"
	RouteTrack   = "/track"
	RouteSupport = "/support"
	RouteStatus  = "/status"
)

// Client issues protocol calls against BPP base URIs.
type Client struct {
	http *transport.Client
}

// NewClient constructs a BPP client on top of the shared transport.
func NewClient(http *transport.Client) *Client {
	return &Client{http: http}
}

func (c *Client) Search(ctx context.Context, bppURI string, body any) (json.RawMessage, error) {
	return c.http.Send(ctx, bppURI, RouteSearch, body)
}

func (c *Client) Init(ctx context.Context, bppURI string, body any) (json.RawMessage, error) {
	return c.http.Send(ctx, bppURI, RouteInit, body)
}

func (c *Client) Confirm(ctx context.Context, bppURI string, body any) (json.RawMessage, error) {
	return c.http.Send(ctx, bppURI, RouteConfirm, body)
}

func (c *Client) Cancel(ctx context.Context, bppURI string, body any) (json.RawMessage, error) {
	return c.http.Send(ctx, bppURI, RouteCancel, body)
}

func (c *Client) Track(ctx context.Context, bppURI string, body any) (json.RawMessage, error) {
	return c.http.Send(ctx, bppURI, RouteTrack, body)
}

func (c *Client) Support(ctx context.Context, bppURI string, body any) (json.RawMessage, error) {
	return c.http.Send(ctx, bppURI, RouteSupport, body)
}

func (c *Client) Status(ctx context.Context, bppURI string, body any) (json.RawMessage, error) {
	return c.http.Send(ctx, bppURI, RouteStatus, body)
}
