package protocol

// Protocol action names carried in the context envelope.
const (
	ActionSearch    = "search"
	ActionInit      = "init"
	ActionConfirm   = "confirm"
	ActionOnConfirm = "on_confirm"
	ActionCancel    = "cancel"
	ActionTrack     = "track"
	ActionSupport   = "support"
	ActionStatus    = "status"
)

// Payment types distinguishing when the buyer pays.
const (
	PaymentTypeOnOrder         = "ON-ORDER"
	PaymentTypePreFulfillment  = "PRE-FULFILLMENT"
	PaymentTypeOnFulfillment   = "ON-FULFILLMENT"
	PaymentTypePostFulfillment = "POST-FULFILLMENT"
)

// Payment settlement states recorded against an order.
const (
	PaymentStatusPaid    = "PAID"
	PaymentStatusNotPaid = "NOT-PAID"
)

// SubscriberTypeBPP identifies seller platforms in registry lookups.
const SubscriberTypeBPP = "BPP"

// Acknowledgement statuses.
const (
	AckStatusACK  = "ACK"
	AckStatusNACK = "NACK"
)

// Context is the protocol envelope correlating a request with its
// asynchronous response. Built fresh per call, never mutated afterwards.
type Context struct {
	Domain        string `json:"domain,omitempty"`
	Country       string `json:"country,omitempty"`
	City          string `json:"city,omitempty"`
	Action        string `json:"action,omitempty"`
	CoreVersion   string `json:"core_version,omitempty"`
	BapID         string `json:"bap_id,omitempty"`
	BapURI        string `json:"bap_uri,omitempty"`
	BppID         string `json:"bpp_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	MessageID     string `json:"message_id,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
}

// Provider is the seller within a BPP's catalog.
type Provider struct {
	ID        string   `json:"id,omitempty"`
	Locations []string `json:"locations,omitempty"`
}

// ItemQuantity is the selected count for an item.
type ItemQuantity struct {
	Count int `json:"count,omitempty"`
}

// Item is a single catalog item selected in an order.
type Item struct {
	ID       string        `json:"id,omitempty"`
	BppID    string        `json:"bpp_id,omitempty"`
	Provider Provider      `json:"provider,omitempty"`
	Quantity *ItemQuantity `json:"quantity,omitempty"`
}

// Payment carries the buyer's settlement details for an order.
type Payment struct {
	Type       string  `json:"type,omitempty"`
	PaidAmount float64 `json:"paid_amount,omitempty"`
	Status     string  `json:"status,omitempty"`
	URI        string  `json:"uri,omitempty"`
}

// Address is a delivery or billing address. The protocol-native pincode
// travels as area_code; the normalized client-facing copy as areaCode.
type Address struct {
	Door     string `json:"door,omitempty"`
	Name     string `json:"name,omitempty"`
	Building string `json:"building,omitempty"`
	Street   string `json:"street,omitempty"`
	Locality string `json:"locality,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Country  string `json:"country,omitempty"`
	AreaCode string `json:"area_code,omitempty"`

	NormalizedAreaCode string `json:"areaCode,omitempty"`
}

// Billing holds buyer billing details.
type Billing struct {
	Name    string   `json:"name,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	Email   string   `json:"email,omitempty"`
	Address *Address `json:"address,omitempty"`
}

// Location is a fulfillment endpoint.
type Location struct {
	GPS     string   `json:"gps,omitempty"`
	Address *Address `json:"address,omitempty"`
}

// Contact holds fulfillment contact details.
type Contact struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// FulfillmentEnd is the delivery leg terminating at the buyer.
type FulfillmentEnd struct {
	Location *Location `json:"location,omitempty"`
	Contact  *Contact  `json:"contact,omitempty"`
}

// Fulfillment describes how the order reaches the buyer.
type Fulfillment struct {
	ID       string          `json:"id,omitempty"`
	Type     string          `json:"type,omitempty"`
	Tracking bool            `json:"tracking,omitempty"`
	End      *FulfillmentEnd `json:"end,omitempty"`
}

// Price is a currency amount.
type Price struct {
	Currency string `json:"currency,omitempty"`
	Value    string `json:"value,omitempty"`
}

// Quote is the BPP-computed total for an order.
type Quote struct {
	Price *Price `json:"price,omitempty"`
	TTL   string `json:"ttl,omitempty"`
}

// Order is the full order document exchanged with BPPs and persisted
// against a transaction id.
type Order struct {
	ID          string       `json:"id,omitempty"`
	State       string       `json:"state,omitempty"`
	Provider    *Provider    `json:"provider,omitempty"`
	Items       []Item       `json:"items,omitempty"`
	Billing     *Billing     `json:"billing,omitempty"`
	Fulfillment *Fulfillment `json:"fulfillment,omitempty"`
	Quote       *Quote       `json:"quote,omitempty"`
	Payment     *Payment     `json:"payment,omitempty"`
}

// Ack is the synchronous acknowledgement body.
type Ack struct {
	Status string `json:"status"`
}

// Message is the payload half of a protocol exchange. Confirm requests
// carry items/payment (and optionally billing/fulfillment); BPP replies
// carry an ack; on_confirm callbacks carry the order.
type Message struct {
	Items       []Item       `json:"items,omitempty"`
	Payment     *Payment     `json:"payment,omitempty"`
	Billing     *Billing     `json:"billing,omitempty"`
	Fulfillment *Fulfillment `json:"fulfillment,omitempty"`
	Quote       *Quote       `json:"quote,omitempty"`
	Order       *Order       `json:"order,omitempty"`
	Ack         *Ack         `json:"ack,omitempty"`
}

// Error is a business-rule rejection surfaced as a value, not a Go error.
type Error struct {
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
	Name    string `json:"name,omitempty"`
}

// OrderRequest is an inbound confirm request from the buyer app.
type OrderRequest struct {
	Context *Context `json:"context,omitempty"`
	Message *Message `json:"message,omitempty"`
}

// Response is a protocol reply: either a message, or an error envelope
// for expected business rejections.
type Response struct {
	Context       *Context `json:"context,omitempty"`
	Message       *Message `json:"message,omitempty"`
	Error         *Error   `json:"error,omitempty"`
	ParentOrderID string   `json:"parentOrderId,omitempty"`
}

// AckResponse builds the standard synchronous acknowledgement envelope.
func AckResponse(ctx *Context) *Response {
	return &Response{
		Context: ctx,
		Message: &Message{Ack: &Ack{Status: AckStatusACK}},
	}
}
