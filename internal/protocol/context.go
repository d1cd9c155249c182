package protocol

import (
	"time"

	"github.com/google/uuid"
)

// FactoryConfig is the deployment identity stamped onto every context.
type FactoryConfig struct {
	Domain      string
	Country     string
	City        string
	CoreVersion string
	BapID       string
	BapURI      string
}

// ContextFactory builds protocol contexts with fresh correlation ids.
type ContextFactory struct {
	cfg   FactoryConfig
	now   func() time.Time
	newID func() string
}

// NewContextFactory constructs a factory for the given deployment identity.
func NewContextFactory(cfg FactoryConfig) *ContextFactory {
	if cfg.CoreVersion == "" {
		cfg.CoreVersion = "0.9.1"
	}
	return &ContextFactory{
		cfg:   cfg,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// ContextParams selects the per-call fields of a context. Empty
// TransactionID and MessageID are replaced with fresh uuids.
type ContextParams struct {
	Action        string
	TransactionID string
	MessageID     string
	BppID         string
}

// New builds an immutable context for one protocol exchange.
func (f *ContextFactory) New(p ContextParams) *Context {
	transactionID := p.TransactionID
	if transactionID == "" {
		transactionID = f.newID()
	}
	messageID := p.MessageID
	if messageID == "" {
		messageID = f.newID()
	}
	return &Context{
		Domain:        f.cfg.Domain,
		Country:       f.cfg.Country,
		City:          f.cfg.City,
		Action:        p.Action,
		CoreVersion:   f.cfg.CoreVersion,
		BapID:         f.cfg.BapID,
		BapURI:        f.cfg.BapURI,
		BppID:         p.BppID,
		TransactionID: transactionID,
		MessageID:     messageID,
		Timestamp:     f.now().UTC().Format(time.RFC3339),
	}
}
