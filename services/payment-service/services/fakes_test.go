package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yashrajoria/vm-marketplace/pkg/catalog"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/gateway"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/models"
)

type memPaymentRepo struct {
	mu            sync.Mutex
	payments      map[uuid.UUID]*models.Payment
	customers     map[string]*models.StripeCustomer
	events        map[string]string
	transitionErr error
	forgotten     []string
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{
		payments:  map[uuid.UUID]*models.Payment{},
		customers: map[string]*models.StripeCustomer{},
		events:    map[string]string{},
	}
}

func (r *memPaymentRepo) CreatePayment(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *memPaymentRepo) find(match func(*models.Payment) bool) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memPaymentRepo) GetPaymentByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	return r.find(func(p *models.Payment) bool { return p.ID == id })
}

func (r *memPaymentRepo) GetPaymentByStripeID(_ context.Context, stripeID string) (*models.Payment, error) {
	return r.find(func(p *models.Payment) bool { return p.StripePaymentID != nil && *p.StripePaymentID == stripeID })
}

func (r *memPaymentRepo) GetPaymentByOrderID(_ context.Context, orderID uuid.UUID) (*models.Payment, error) {
	return r.find(func(p *models.Payment) bool { return p.OrderID != nil && *p.OrderID == orderID })
}

func (r *memPaymentRepo) SetCheckout(_ context.Context, id uuid.UUID, sessionID, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.StripePaymentID = &sessionID
	p.CheckoutURL = url
	return nil
}

func (r *memPaymentRepo) Transition(_ context.Context, id uuid.UUID, status string, payload []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transitionErr != nil {
		return false, r.transitionErr
	}
	p, ok := r.payments[id]
	if !ok || p.Status != models.StatusProcessing {
		return false, nil
	}
	p.Status = status
	p.StripeEventPayload = payload
	return true, nil
}

func (r *memPaymentRepo) RecordAttemptFailure(_ context.Context, id uuid.UUID, message string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.Status != models.StatusProcessing {
		return nil
	}
	p.LastError = message
	p.StripeEventPayload = payload
	return nil
}

// settle forces a stored status, as a concurrent writer would.
func (r *memPaymentRepo) settle(id uuid.UUID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[id].Status = status
}

func (r *memPaymentRepo) status(id uuid.UUID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payments[id].Status
}

func (r *memPaymentRepo) GetCustomer(_ context.Context, userID string) (*models.StripeCustomer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (r *memPaymentRepo) CreateCustomer(_ context.Context, c *models.StripeCustomer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[c.UserID]; ok {
		return gorm.ErrDuplicatedKey
	}
	r.customers[c.UserID] = c
	return nil
}

func (r *memPaymentRepo) MarkEventProcessed(_ context.Context, eventID, eventType string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[eventID]; ok {
		return false, nil
	}
	r.events[eventID] = eventType
	return true, nil
}

func (r *memPaymentRepo) ForgetEvent(_ context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, eventID)
	r.forgotten = append(r.forgotten, eventID)
	return nil
}

type fakeGateway struct {
	intents       map[string]*gateway.Intent
	sessions      map[string]*gateway.Session
	lastIntent    gateway.IntentParams
	lastSession   gateway.SessionParams
	sessionCalls  int
	customers     int
	cards         map[string]*gateway.Card
	defaults      map[string]string
	event         *gateway.Event
	eventErr      error
	createErr     error
	sessionNumber int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		intents:  map[string]*gateway.Intent{},
		sessions: map[string]*gateway.Session{},
		cards:    map[string]*gateway.Card{},
		defaults: map[string]string{},
	}
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, p gateway.IntentParams) (*gateway.Intent, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.lastIntent = p
	id := fmt.Sprintf("pi_%d", len(g.intents)+1)
	intent := &gateway.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       "requires_payment_method",
		Amount:       p.Amount,
		Currency:     p.Currency,
		Metadata:     p.Metadata,
	}
	g.intents[id] = intent
	return intent, nil
}

func (g *fakeGateway) GetPaymentIntent(_ context.Context, id string) (*gateway.Intent, error) {
	intent, ok := g.intents[id]
	if !ok {
		return nil, errors.New("no such payment_intent")
	}
	return intent, nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, p gateway.SessionParams) (*gateway.Session, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.lastSession = p
	g.sessionCalls++
	g.sessionNumber++
	id := fmt.Sprintf("cs_%d", g.sessionNumber)
	sess := &gateway.Session{ID: id, URL: "https://checkout.test/" + id, Status: "open", PaymentStatus: "unpaid", Metadata: p.Metadata}
	g.sessions[id] = sess
	return sess, nil
}

func (g *fakeGateway) GetCheckoutSession(_ context.Context, id string) (*gateway.Session, error) {
	sess, ok := g.sessions[id]
	if !ok {
		return nil, errors.New("no such checkout session")
	}
	return sess, nil
}

func (g *fakeGateway) CreateCustomer(_ context.Context, _, userID string) (string, error) {
	g.customers++
	return "cus_" + userID, nil
}

func (g *fakeGateway) DefaultPaymentMethod(_ context.Context, customerID string) (string, error) {
	return g.defaults[customerID], nil
}

func (g *fakeGateway) SetDefaultPaymentMethod(_ context.Context, customerID, id string) error {
	g.defaults[customerID] = id
	return nil
}

func (g *fakeGateway) ListCards(_ context.Context, customerID string) ([]gateway.Card, error) {
	var cards []gateway.Card
	for _, c := range g.cards {
		if c.CustomerID == customerID {
			cards = append(cards, *c)
		}
	}
	return cards, nil
}

func (g *fakeGateway) GetPaymentMethod(_ context.Context, id string) (*gateway.Card, error) {
	c, ok := g.cards[id]
	if !ok {
		return nil, errors.New("no such payment_method")
	}
	cp := *c
	return &cp, nil
}

func (g *fakeGateway) AttachPaymentMethod(_ context.Context, id, customerID string) (*gateway.Card, error) {
	c := &gateway.Card{ID: id, Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030, CustomerID: customerID}
	g.cards[id] = c
	cp := *c
	return &cp, nil
}

func (g *fakeGateway) DetachPaymentMethod(_ context.Context, id string) error {
	delete(g.cards, id)
	return nil
}

func (g *fakeGateway) ConstructEvent(_ []byte, _ string) (*gateway.Event, error) {
	if g.eventErr != nil {
		return nil, g.eventErr
	}
	return g.event, nil
}

type fakeCatalog map[string]*catalog.Listing

func (f fakeCatalog) GetListing(_ context.Context, id string) (*catalog.Listing, error) {
	l, ok := f[id]
	if !ok {
		return nil, catalog.ErrListingNotFound
	}
	return l, nil
}

type published struct {
	Type string
	Data any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{Type: eventType, Data: data})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
