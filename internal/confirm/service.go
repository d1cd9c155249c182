// Package confirm orchestrates the order-confirmation flow: request
// validation, payment settlement checks, registry resolution, BPP
// delegation, and reconciliation of asynchronous on_confirm callbacks.
package confirm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	ordersdb "bapflow/internal/db/orders"
	"bapflow/internal/payment"
	"bapflow/internal/protocol"
	"bapflow/internal/registry"
)

// RegistryClient resolves seller platforms to network addresses.
type RegistryClient interface {
	Lookup(ctx context.Context, subscriberType, subscriberID string) ([]registry.Subscriber, error)
}

// PaymentClient reports gateway payment status for an order.
type PaymentClient interface {
	GetOrderStatus(ctx context.Context, orderID string) (payment.OrderStatus, error)
}

// BppConfirmClient forwards confirmations to a seller platform.
type BppConfirmClient interface {
	ConfirmV1(ctx context.Context, pctx *protocol.Context, bppURI string, order *protocol.Message) (*protocol.Response, error)
	ConfirmV2(ctx context.Context, pctx *protocol.Context, bppURI string, order *protocol.Message, stored ordersdb.Record) (*protocol.Response, error)
}

// OrderStore persists order records keyed by transaction id.
type OrderStore interface {
	GetByTransactionID(ctx context.Context, transactionID string) (ordersdb.Record, error)
	Upsert(ctx context.Context, transactionID string, record ordersdb.Record) error
}

// CallbackStore fetches inbound protocol callbacks by message id.
type CallbackStore interface {
	GetByMessageID(ctx context.Context, messageID string) ([]protocol.Response, error)
}

// Deps are the collaborators injected into the Service.
type Deps struct {
	Contexts  *protocol.ContextFactory
	Registry  RegistryClient
	Payments  PaymentClient
	Bpp       BppConfirmClient
	Orders    OrderStore
	Callbacks CallbackStore

	// Production enables strict amount matching against the gateway.
	Production bool
	Logger     *zap.Logger
}

// Service is the confirm-order orchestrator. Business rejections are
// returned as error envelopes inside the Response; only unexpected
// failures (transport, store) surface as Go errors.
type Service struct {
	contexts   *protocol.ContextFactory
	registry   RegistryClient
	payments   PaymentClient
	bpp        BppConfirmClient
	orders     OrderStore
	callbacks  CallbackStore
	production bool
	logger     *zap.Logger
}

// NewService constructs the orchestrator from its dependencies.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	contexts := deps.Contexts
	if contexts == nil {
		contexts = protocol.NewContextFactory(protocol.FactoryConfig{})
	}
	return &Service{
		contexts:   contexts,
		registry:   deps.Registry,
		payments:   deps.Payments,
		bpp:        deps.Bpp,
		orders:     deps.Orders,
		callbacks:  deps.Callbacks,
		production: deps.Production,
		logger:     logger,
	}
}

// ConfirmOrder validates one confirm request and forwards it to the
// resolved seller platform.
func (s *Service) ConfirmOrder(ctx context.Context, req *protocol.OrderRequest) (*protocol.Response, error) {
	var transactionID string
	var order *protocol.Message
	if req != nil {
		if req.Context != nil {
			transactionID = req.Context.TransactionID
		}
		order = req.Message
	}

	pctx := s.contexts.New(protocol.ContextParams{
		Action:        protocol.ActionConfirm,
		TransactionID: transactionID,
	})

	if order == nil || len(order.Items) == 0 {
		return rejection(pctx, "Empty order received"), nil
	}
	if multipleBppItems(order.Items) {
		return rejection(pctx, "More than one BPP's item(s) selected/initialized"), nil
	}
	if multipleProviderItems(order.Items) {
		return rejection(pctx, "More than one Provider's item(s) selected/initialized"), nil
	}

	pending, err := s.paymentsPending(ctx, order.Payment, transactionID)
	if err != nil {
		return nil, err
	}
	if pending {
		return &protocol.Response{Context: pctx, Error: paymentPendingError()}, nil
	}

	bppURI, err := s.resolveBpp(ctx, order.Items[0].BppID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("forwarding confirm",
		zap.String("transaction_id", pctx.TransactionID),
		zap.String("message_id", pctx.MessageID),
		zap.String("bpp_id", order.Items[0].BppID),
	)
	return s.bpp.ConfirmV1(ctx, pctx, bppURI, order)
}

// ConfirmMultipleOrder confirms each request concurrently and returns
// per-request outcomes in input order. A business rejection occupies its
// slot; any unexpected failure cancels the siblings and fails the batch.
func (s *Service) ConfirmMultipleOrder(ctx context.Context, reqs []*protocol.OrderRequest) ([]*protocol.Response, error) {
	results := make([]*protocol.Response, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			resp, err := s.confirmStored(gctx, req)
			if err != nil {
				return err
			}
			results[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// confirmStored confirms one request against its stored record. A record
// with payment status already set short-circuits to a synthetic ack so a
// duplicate confirmation never reaches the seller platform twice.
func (s *Service) confirmStored(ctx context.Context, req *protocol.OrderRequest) (*protocol.Response, error) {
	var transactionID string
	var order *protocol.Message
	if req != nil {
		if req.Context != nil {
			transactionID = req.Context.TransactionID
		}
		order = req.Message
	}

	record, err := s.orders.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if record.PaymentStatus != nil {
		pctx := s.contexts.New(protocol.ContextParams{
			Action:        protocol.ActionConfirm,
			TransactionID: transactionID,
			BppID:         record.BppID,
			MessageID:     record.MessageID,
		})
		return protocol.AckResponse(pctx), nil
	}

	pctx := s.contexts.New(protocol.ContextParams{
		Action:        protocol.ActionConfirm,
		TransactionID: transactionID,
		BppID:         record.BppID,
	})

	var paymentDetails *protocol.Payment
	if order != nil {
		paymentDetails = order.Payment
	}
	pending, err := s.paymentsPending(ctx, paymentDetails, transactionID)
	if err != nil {
		return nil, err
	}
	if pending {
		return &protocol.Response{Context: pctx, Error: paymentPendingError()}, nil
	}

	bppURI, err := s.resolveBpp(ctx, pctx.BppID)
	if err != nil {
		return nil, err
	}

	resp, err := s.bpp.ConfirmV2(ctx, pctx, bppURI, order, record)
	if err != nil {
		return nil, err
	}

	if acked(resp) {
		record.MessageID = resp.Context.MessageID
		if paymentDetails != nil && paymentDetails.Type == protocol.PaymentTypeOnOrder {
			paid := protocol.PaymentStatusPaid
			record.PaymentStatus = &paid
		}
		// Last-writer-wins; concurrent confirms for one transaction id
		// are not serialized at this layer.
		if err := s.orders.Upsert(ctx, resp.Context.TransactionID, record); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// OnConfirmOrder fetches the callback correlated to a message id. Absence
// yields a "No data found" envelope, never a Go error.
func (s *Service) OnConfirmOrder(ctx context.Context, messageID string) (*protocol.Response, error) {
	responses, err := s.callbacks.GetByMessageID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if len(responses) > 0 {
		resp := responses[0]
		if resp.Context != nil &&
			resp.Message != nil && resp.Message.Order != nil &&
			resp.Context.MessageID != "" &&
			resp.Context.TransactionID != "" {
			return &resp, nil
		}
	}

	pctx := s.contexts.New(protocol.ContextParams{
		Action:    protocol.ActionOnConfirm,
		MessageID: messageID,
	})
	return &protocol.Response{
		Context: pctx,
		Error:   &protocol.Error{Message: "No data found"},
	}, nil
}

// OnConfirmMultipleOrder resolves callbacks for each message id
// concurrently, persisting valid orders and annotating each result with
// its stored parent-order id. Output order matches input order.
func (s *Service) OnConfirmMultipleOrder(ctx context.Context, messageIDs []string) ([]*protocol.Response, error) {
	results := make([]*protocol.Response, len(messageIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, messageID := range messageIDs {
		i, messageID := i, messageID
		g.Go(func() error {
			resp, err := s.reconcileCallback(gctx, messageID)
			if err != nil {
				return err
			}
			results[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) reconcileCallback(ctx context.Context, messageID string) (*protocol.Response, error) {
	resp, err := s.OnConfirmOrder(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if resp.Message == nil || resp.Message.Order == nil {
		return resp, nil
	}

	transactionID := resp.Context.TransactionID
	record, err := s.orders.GetByTransactionID(ctx, transactionID)
	if err != nil && !errors.Is(err, ordersdb.ErrOrderNotFound) {
		return nil, err
	}

	order := resp.Message.Order
	normalizeAreaCodes(order)

	record.TransactionID = transactionID
	record.MessageID = resp.Context.MessageID
	if resp.Context.BppID != "" {
		record.BppID = resp.Context.BppID
	}
	record.Order = order
	if err := s.orders.Upsert(ctx, transactionID, record); err != nil {
		return nil, err
	}

	resp.ParentOrderID = record.ParentOrderID
	return resp, nil
}

func (s *Service) resolveBpp(ctx context.Context, bppID string) (string, error) {
	subscribers, err := s.registry.Lookup(ctx, protocol.SubscriberTypeBPP, bppID)
	if err != nil {
		return "", err
	}
	if len(subscribers) == 0 {
		return "", fmt.Errorf("registry returned no subscribers for %q", bppID)
	}
	return subscribers[0].SubscriberURL, nil
}

// paymentsPending reports whether an ON-ORDER payment is not yet settled
// at the gateway. Amount matching is enforced only in production mode.
func (s *Service) paymentsPending(ctx context.Context, p *protocol.Payment, orderID string) (bool, error) {
	if p == nil || p.Type != protocol.PaymentTypeOnOrder {
		return false, nil
	}

	details, err := s.payments.GetOrderStatus(ctx, orderID)
	if err != nil {
		return false, err
	}

	pending := p.PaidAmount <= 0 ||
		(s.production && p.PaidAmount != details.Amount) ||
		details.Status != payment.StatusCharged
	return pending, nil
}

func multipleBppItems(items []protocol.Item) bool {
	return distinct(items, func(item protocol.Item) string { return item.BppID }) > 1
}

func multipleProviderItems(items []protocol.Item) bool {
	return distinct(items, func(item protocol.Item) string { return item.Provider.ID }) > 1
}

func distinct(items []protocol.Item, key func(protocol.Item) string) int {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		seen[key(item)] = struct{}{}
	}
	return len(seen)
}

func acked(resp *protocol.Response) bool {
	return resp != nil && resp.Context != nil &&
		resp.Message != nil && resp.Message.Ack != nil &&
		resp.Message.Ack.Status == protocol.AckStatusACK
}

func rejection(pctx *protocol.Context, message string) *protocol.Response {
	return &protocol.Response{
		Context: pctx,
		Error:   &protocol.Error{Message: message},
	}
}

func paymentPendingError() *protocol.Error {
	return &protocol.Error{
		Message: "BAP hasn't received payment yet",
		Status:  "BAP_015",
		Name:    "PAYMENT_PENDING",
	}
}

// normalizeAreaCodes copies the protocol-native area_code into the
// normalized areaCode field on billing and fulfillment-end addresses.
// Shallow and idempotent; other fields are untouched.
func normalizeAreaCodes(order *protocol.Order) {
	if order == nil {
		return
	}
	if order.Billing != nil && order.Billing.Address != nil {
		order.Billing.Address.NormalizedAreaCode = order.Billing.Address.AreaCode
	}
	if order.Fulfillment != nil && order.Fulfillment.End != nil &&
		order.Fulfillment.End.Location != nil && order.Fulfillment.End.Location.Address != nil {
		addr := order.Fulfillment.End.Location.Address
		addr.NormalizedAreaCode = addr.AreaCode
	}
}
