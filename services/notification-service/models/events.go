package models

// Payloads of the events this service turns into emails.

type UserRegisteredEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type ProviderApprovedEvent struct {
	ApplicationID string `json:"application_id"`
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	CompanyName   string `json:"company_name"`
}

type PaymentEvent struct {
	PaymentID string  `json:"payment_id"`
	OrderID   *string `json:"order_id,omitempty"`
	UserID    string  `json:"user_id"`
	Amount    int64   `json:"amount"`
	Currency  string  `json:"currency"`
	Status    string  `json:"status"`
}

type InstanceEvent struct {
	InstanceID string `json:"instance_id"`
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	ListingID  string `json:"listing_id"`
	Status     string `json:"status"`
	IPAddress  string `json:"ip_address,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
