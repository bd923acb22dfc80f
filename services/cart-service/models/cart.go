package models

import (
	"math"
	"time"
)

const MaxLineQuantity = 10

type CartItem struct {
	VMID     string  `json:"vm_id"`
	Name     string  `json:"name"`
	Region   string  `json:"region"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	Total     float64    `json:"total"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewCart returns an empty cart for userID.
func NewCart(userID string) *Cart {
	return &Cart{UserID: userID, Items: []CartItem{}}
}

// Recalculate sets Total to the sum of price × quantity, rounded to cents.
func (c *Cart) Recalculate() {
	var sum float64
	for _, it := range c.Items {
		sum += it.Price * float64(it.Quantity)
	}
	c.Total = math.Round(sum*100) / 100
}

// Find returns the index of the line for vmID. An empty region matches the
// first line for the listing.
func (c *Cart) Find(vmID, region string) int {
	for i, it := range c.Items {
		if it.VMID == vmID && (region == "" || it.Region == region) {
			return i
		}
	}
	return -1
}

// Line returns the index of the line matching vmID and region exactly.
func (c *Cart) Line(vmID, region string) int {
	for i, it := range c.Items {
		if it.VMID == vmID && it.Region == region {
			return i
		}
	}
	return -1
}

// Remove drops the line at i.
func (c *Cart) Remove(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// CheckoutEvent is the payload of cart.checked_out.
type CheckoutEvent struct {
	CheckoutID string     `json:"checkout_id"`
	UserID     string     `json:"user_id"`
	Items      []CartItem `json:"items"`
	Total      float64    `json:"total"`
}
