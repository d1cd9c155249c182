package protocol

import (
	"testing"
	"time"
)

func fixedFactory() *ContextFactory {
	f := NewContextFactory(FactoryConfig{
		Domain:  "nic2004:52110",
		Country: "IND",
		City:    "std:080",
		BapID:   "buyer-app.example.com",
		BapURI:  "https://buyer-app.example.com/protocol/v1",
	})
	f.now = func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	ids := []string{"id-1", "id-2", "id-3"}
	f.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	return f
}

func TestNew_StampsIdentityAndDefaults(t *testing.T) {
	f := fixedFactory()

	ctx := f.New(ContextParams{Action: ActionConfirm, TransactionID: "T1"})

	if ctx.Action != ActionConfirm {
		t.Fatalf("action = %q", ctx.Action)
	}
	if ctx.BapID != "buyer-app.example.com" || ctx.BapURI != "https://buyer-app.example.com/protocol/v1" {
		t.Fatalf("identity not stamped: %+v", ctx)
	}
	if ctx.CoreVersion != "0.9.1" {
		t.Fatalf("expected default core version, got %q", ctx.CoreVersion)
	}
	if ctx.TransactionID != "T1" {
		t.Fatalf("transaction id = %q", ctx.TransactionID)
	}
	if ctx.MessageID != "id-1" {
		t.Fatalf("expected fresh message id, got %q", ctx.MessageID)
	}
	if ctx.Timestamp != "2024-03-01T12:00:00Z" {
		t.Fatalf("timestamp = %q", ctx.Timestamp)
	}
}

func TestNew_GeneratesMissingIDs(t *testing.T) {
	f := fixedFactory()

	ctx := f.New(ContextParams{Action: ActionOnConfirm})

	if ctx.TransactionID != "id-1" {
		t.Fatalf("transaction id = %q", ctx.TransactionID)
	}
	if ctx.MessageID != "id-2" {
		t.Fatalf("message id = %q", ctx.MessageID)
	}
}

func TestNew_KeepsProvidedIDs(t *testing.T) {
	f := fixedFactory()

	ctx := f.New(ContextParams{
		Action:        ActionConfirm,
		TransactionID: "T1",
		MessageID:     "M1",
		BppID:         "bpp-1",
	})

	if ctx.TransactionID != "T1" || ctx.MessageID != "M1" || ctx.BppID != "bpp-1" {
		t.Fatalf("ids not preserved: %+v", ctx)
	}
}

func TestNewContextFactory_KeepsExplicitCoreVersion(t *testing.T) {
	f := NewContextFactory(FactoryConfig{CoreVersion: "1.1.0"})
	ctx := f.New(ContextParams{Action: ActionConfirm})
	if ctx.CoreVersion != "1.1.0" {
		t.Fatalf("core version = %q", ctx.CoreVersion)
	}
}
