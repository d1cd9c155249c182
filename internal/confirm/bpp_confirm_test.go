package confirm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"bapflow/internal/bpp"
	ordersdb "bapflow/internal/db/orders"
	"bapflow/internal/protocol"
	"bapflow/internal/transport"
)

func newConfirmClient(t *testing.T, handler http.HandlerFunc) (*ConfirmClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewConfirmClient(bpp.NewClient(transport.NewClient(transport.Options{}))), server
}

func decodeConfirmBody(t *testing.T, raw []byte) protocol.OrderRequest {
	t.Helper()
	var body protocol.OrderRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	return body
}

func TestConfirmV1_BuildsOrderFromMessage(t *testing.T) {
	var gotBody []byte
	client, server := newConfirmClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != bpp.RouteConfirm {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"context":{"transaction_id":"T1","message_id":"M1"},"message":{"ack":{"status":"ACK"}}}`))
	})

	pctx := &protocol.Context{TransactionID: "T1", Action: protocol.ActionConfirm}
	order := &protocol.Message{
		Items:   []protocol.Item{{ID: "I1", BppID: "B1", Provider: protocol.Provider{ID: "P1"}}},
		Payment: &protocol.Payment{Type: protocol.PaymentTypeOnOrder, PaidAmount: 100},
	}

	resp, err := client.ConfirmV1(context.Background(), pctx, server.URL, order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message == nil || resp.Message.Ack == nil || resp.Message.Ack.Status != protocol.AckStatusACK {
		t.Fatalf("response = %+v", resp)
	}

	body := decodeConfirmBody(t, gotBody)
	if body.Context.TransactionID != "T1" {
		t.Fatalf("context = %+v", body.Context)
	}
	doc := body.Message.Order
	if doc == nil || len(doc.Items) != 1 || doc.Items[0].ID != "I1" {
		t.Fatalf("order doc = %+v", doc)
	}
	if doc.Provider == nil || doc.Provider.ID != "P1" {
		t.Fatalf("provider not derived from items: %+v", doc.Provider)
	}
	if doc.Payment == nil || doc.Payment.PaidAmount != 100 {
		t.Fatalf("payment = %+v", doc.Payment)
	}
}

func TestConfirmV2_MergesStoredDetails(t *testing.T) {
	var gotBody []byte
	client, server := newConfirmClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"message":{"ack":{"status":"ACK"}}}`))
	})

	stored := ordersdb.Record{
		TransactionID: "T1",
		Order: &protocol.Order{
			Billing:     &protocol.Billing{Name: "Asha"},
			Fulfillment: &protocol.Fulfillment{ID: "F1"},
			Quote:       &protocol.Quote{TTL: "P1D"},
			Provider:    &protocol.Provider{ID: "P1"},
		},
	}
	order := &protocol.Message{
		Items: []protocol.Item{{ID: "I1", BppID: "B1"}},
	}

	pctx := &protocol.Context{TransactionID: "T1"}
	if _, err := client.ConfirmV2(context.Background(), pctx, server.URL, order, stored); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := decodeConfirmBody(t, gotBody).Message.Order
	if doc.Billing == nil || doc.Billing.Name != "Asha" {
		t.Fatalf("billing not merged: %+v", doc.Billing)
	}
	if doc.Fulfillment == nil || doc.Fulfillment.ID != "F1" {
		t.Fatalf("fulfillment not merged: %+v", doc.Fulfillment)
	}
	if doc.Quote == nil || doc.Quote.TTL != "P1D" {
		t.Fatalf("quote not merged: %+v", doc.Quote)
	}
	if doc.Provider == nil || doc.Provider.ID != "P1" {
		t.Fatalf("provider not merged: %+v", doc.Provider)
	}
}

func TestConfirmV2_RequestDetailsWin(t *testing.T) {
	var gotBody []byte
	client, server := newConfirmClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{}`))
	})

	stored := ordersdb.Record{
		Order: &protocol.Order{Billing: &protocol.Billing{Name: "Stored"}},
	}
	order := &protocol.Message{
		Items:   []protocol.Item{{ID: "I1"}},
		Billing: &protocol.Billing{Name: "Fresh"},
	}

	if _, err := client.ConfirmV2(context.Background(), &protocol.Context{}, server.URL, order, stored); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := decodeConfirmBody(t, gotBody).Message.Order
	if doc.Billing == nil || doc.Billing.Name != "Fresh" {
		t.Fatalf("request billing must win, got %+v", doc.Billing)
	}
}

func TestConfirmV1_PassesThroughExplicitOrder(t *testing.T) {
	var gotBody []byte
	client, server := newConfirmClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{}`))
	})

	order := &protocol.Message{Order: &protocol.Order{ID: "O1", State: "Created"}}
	if _, err := client.ConfirmV1(context.Background(), &protocol.Context{}, server.URL, order); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := decodeConfirmBody(t, gotBody).Message.Order
	if doc.ID != "O1" || doc.State != "Created" {
		t.Fatalf("order doc = %+v", doc)
	}
}

func TestConfirmV1_EmptyURIRejected(t *testing.T) {
	client := NewConfirmClient(bpp.NewClient(transport.NewClient(transport.Options{})))
	if _, err := client.ConfirmV1(context.Background(), &protocol.Context{}, "", nil); err == nil {
		t.Fatalf("expected error for empty bpp uri")
	}
}
