package services

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yashrajoria/vm-marketplace/pkg/catalog"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/models"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/provisioner"
)

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*models.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (r *memOrderRepo) copyOf(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp
}

func (r *memOrderRepo) FindByUserID(_ context.Context, userID string, page, limit int) ([]models.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []models.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			all = append(all, *r.copyOf(o))
		}
	}
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := min(start+limit, len(all))
	return all[start:end], total, nil
}

func (r *memOrderRepo) FindByIDAndUserID(_ context.Context, id uuid.UUID, userID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return r.copyOf(o), nil
}

func (r *memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.copyOf(o), nil
}

func (r *memOrderRepo) FindByCheckoutID(_ context.Context, checkoutID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.CheckoutID == checkoutID {
			return r.copyOf(o), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memOrderRepo) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.CheckoutID == order.CheckoutID {
			return gorm.ErrDuplicatedKey
		}
	}
	r.orders[order.ID] = r.copyOf(order)
	return nil
}

func (r *memOrderRepo) SetCheckout(_ context.Context, id uuid.UUID, paymentID, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.PaymentID = paymentID
	o.CheckoutURL = url
	return nil
}

func (r *memOrderRepo) Transition(_ context.Context, id uuid.UUID, from []string, status string, fields map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || !slices.Contains(from, o.Status) {
		return false, nil
	}
	o.Status = status
	if v, ok := fields["payment_id"].(string); ok {
		o.PaymentID = v
	}
	return true, nil
}

func (r *memOrderRepo) status(id uuid.UUID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id].Status
}

func (r *memOrderRepo) only() *models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		return r.copyOf(o)
	}
	return nil
}

type memInstanceRepo struct {
	mu            sync.Mutex
	instances     map[uuid.UUID]*models.Instance
	order         []uuid.UUID
	events        []models.DeploymentEvent
	transitionErr error
	eventErr      error
	now           func() time.Time
	// beforeTransition runs unlocked ahead of each guarded update that passes
	// its guard, until it returns true.
	beforeTransition func(fields map[string]interface{}) bool
}

func newMemInstanceRepo() *memInstanceRepo {
	return &memInstanceRepo{instances: map[uuid.UUID]*models.Instance{}}
}

func (r *memInstanceRepo) CreateBatch(_ context.Context, instances []models.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range instances {
		cp := inst
		cp.UpdatedAt = r.clock()
		r.instances[inst.ID] = &cp
		r.order = append(r.order, inst.ID)
	}
	return nil
}

func (r *memInstanceRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *inst
	return &cp, nil
}

func (r *memInstanceRepo) FindByIDAndUserID(ctx context.Context, id uuid.UUID, userID string) (*models.Instance, error) {
	inst, err := r.FindByID(ctx, id)
	if err != nil || inst.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return inst, nil
}

func (r *memInstanceRepo) list(match func(*models.Instance) bool) []models.Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Instance
	for _, id := range r.order {
		if inst := r.instances[id]; match(inst) {
			out = append(out, *inst)
		}
	}
	return out
}

func (r *memInstanceRepo) ListByUser(_ context.Context, userID, status string) ([]models.Instance, error) {
	return r.list(func(i *models.Instance) bool {
		if i.UserID != userID {
			return false
		}
		if status == "" {
			return i.Status != models.InstanceTerminated
		}
		return i.Status == status
	}), nil
}

func (r *memInstanceRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]models.Instance, error) {
	return r.list(func(i *models.Instance) bool { return i.OrderID == orderID }), nil
}

func (r *memInstanceRepo) Transition(_ context.Context, id uuid.UUID, from []string, fields map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transitionErr != nil {
		return false, r.transitionErr
	}
	inst, ok := r.instances[id]
	if !ok || !slices.Contains(from, inst.Status) {
		return false, nil
	}
	if hook := r.beforeTransition; hook != nil {
		r.mu.Unlock()
		fired := hook(fields)
		r.mu.Lock()
		if fired {
			r.beforeTransition = nil
		}
		inst = r.instances[id]
		if !slices.Contains(from, inst.Status) {
			return false, nil
		}
	}
	r.apply(inst, fields)
	return true, nil
}

func (r *memInstanceRepo) Reclaim(_ context.Context, id uuid.UUID, staleBefore time.Time, fields map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok || inst.Status != models.InstanceProvisioning || !inst.UpdatedAt.Before(staleBefore) {
		return false, nil
	}
	r.apply(inst, fields)
	return true, nil
}

func (r *memInstanceRepo) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func (r *memInstanceRepo) apply(inst *models.Instance, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "status":
			inst.Status = v.(string)
		case "deployment_step":
			inst.DeploymentStep = v.(string)
		case "failure_reason":
			inst.FailureReason = v.(string)
		case "external_id":
			inst.ExternalID = v.(string)
		case "ip_address":
			inst.IPAddress = v.(string)
		case "name":
			inst.Name = v.(string)
		case "image":
			inst.Image = v.(string)
		case "region":
			inst.Region = v.(string)
		case "cpu_cores":
			inst.CPUCores = v.(int)
		case "ram_gb":
			inst.RAMGB = v.(int)
		case "storage_gb":
			inst.StorageGB = v.(int)
		case "started_at":
			inst.StartedAt = nil
			if t, ok := v.(*time.Time); ok {
				inst.StartedAt = t
			}
		}
	}
	inst.UpdatedAt = r.clock()
}

// set overwrites a stored instance, as another writer would.
func (r *memInstanceRepo) set(inst models.Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[inst.ID] = &inst
}

func (r *memInstanceRepo) AddEvent(_ context.Context, ev *models.DeploymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.eventErr != nil {
		return r.eventErr
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	r.events = append(r.events, *ev)
	return nil
}

func (r *memInstanceRepo) ListEvents(_ context.Context, instanceID uuid.UUID) ([]models.DeploymentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.DeploymentEvent
	for _, ev := range r.events {
		if ev.InstanceID == instanceID {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memInstanceRepo) get(id uuid.UUID) models.Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.instances[id]
}

type fakeCatalog struct {
	listings map[string]*catalog.Listing
	err      error
}

func (f *fakeCatalog) GetListing(_ context.Context, id string) (*catalog.Listing, error) {
	if f.err != nil {
		return nil, f.err
	}
	l, ok := f.listings[id]
	if !ok {
		return nil, catalog.ErrListingNotFound
	}
	return l, nil
}

// fakeProvisioner wraps the simulated provisioner with failure injection.
type fakeProvisioner struct {
	*provisioner.Simulated
	provisionErr  error
	powerErr      error
	powered       []string
	deprovisioned []string
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{Simulated: provisioner.NewSimulated(0)}
}

func (p *fakeProvisioner) Provision(ctx context.Context, spec provisioner.Spec) (string, error) {
	if p.provisionErr != nil {
		return "", p.provisionErr
	}
	return p.Simulated.Provision(ctx, spec)
}

func (p *fakeProvisioner) Power(ctx context.Context, id, action string) error {
	if p.powerErr != nil {
		return p.powerErr
	}
	p.powered = append(p.powered, action)
	return p.Simulated.Power(ctx, id, action)
}

func (p *fakeProvisioner) Deprovision(ctx context.Context, id string) error {
	p.deprovisioned = append(p.deprovisioned, id)
	return p.Simulated.Deprovision(ctx, id)
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

var errTransient = errors.New("connection refused")
