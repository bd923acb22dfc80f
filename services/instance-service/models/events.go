package models

// CheckoutItem is a cart line as published by the cart-service.
type CheckoutItem struct {
	VMID     string  `json:"vm_id"`
	Name     string  `json:"name"`
	Region   string  `json:"region"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// cart-service → instance-service
type CheckoutEvent struct {
	CheckoutID string         `json:"checkout_id"`
	UserID     string         `json:"user_id"`
	Items      []CheckoutItem `json:"items"`
	Total      float64        `json:"total"`
}

// instance-service → payment-service
type PaymentRequest struct {
	OrderID  string         `json:"order_id"`
	UserID   string         `json:"user_id"`
	Amount   int64          `json:"amount"`
	Currency string         `json:"currency"`
	Items    []CheckoutItem `json:"items"`
}

// payment-service → instance-service
type CheckoutCreatedEvent struct {
	OrderID     string `json:"order_id"`
	PaymentID   string `json:"payment_id"`
	CheckoutURL string `json:"checkout_url"`
}

// payment-service → instance-service
type PaymentEvent struct {
	PaymentID string  `json:"payment_id"`
	OrderID   *string `json:"order_id,omitempty"`
	UserID    string  `json:"user_id"`
	VMID      string  `json:"vm_id,omitempty"`
	Quantity  int     `json:"quantity,omitempty"`
	Region    string  `json:"region,omitempty"`
	Amount    int64   `json:"amount"`
	Currency  string  `json:"currency"`
	Status    string  `json:"status"`
}

// InstanceEvent is published when a deployment finishes.
type InstanceEvent struct {
	InstanceID string `json:"instance_id"`
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	ListingID  string `json:"listing_id"`
	Status     string `json:"status"`
	IPAddress  string `json:"ip_address,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
