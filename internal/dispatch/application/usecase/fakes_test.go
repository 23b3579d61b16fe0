package usecase

import (
	"context"
	"sync"
	"time"

	"pawfect/internal/dispatch/domain"
)

// fakeOrderRepo reproduces the storage guard semantics in memory: the first
// AcceptOrder on a dispatchable order wins, everyone after gets
// ErrOrderAlreadyTaken.
type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order

	transitions []string
}

func newFakeOrderRepo(orders ...*domain.Order) *fakeOrderRepo {
	m := make(map[string]*domain.Order, len(orders))
	for _, o := range orders {
		m[o.ID] = o
	}
	return &fakeOrderRepo{orders: m}
}

func (f *fakeOrderRepo) FindByID(_ context.Context, orderID string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) AcceptOrder(_ context.Context, orderID, riderID, _ string) (*domain.Order, *domain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, nil, domain.ErrOrderNotFound
	}
	if !o.Dispatchable() {
		return nil, nil, domain.ErrOrderAlreadyTaken
	}
	now := time.Now().UTC()
	rid := riderID
	o.RiderID = &rid
	o.Status = domain.OrderStatusAssigned
	o.AssignedAt = &now

	cp := *o
	return &cp, &domain.Delivery{
		ID:         "d-" + orderID,
		OrderID:    orderID,
		RiderID:    riderID,
		Status:     domain.DeliveryStatusAssigned,
		AssignedAt: now,
	}, nil
}

func (f *fakeOrderRepo) AssignRider(_ context.Context, orderID, riderID, _, notes string, force bool) (*domain.Order, *domain.Delivery, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || domain.IsTerminalStatus(o.Status) {
		return nil, nil, "", domain.ErrOrderNotFound
	}
	var prevRider string
	if o.RiderID != nil {
		prevRider = *o.RiderID
	}
	// The force guard holds under the same lock as the write, like the
	// storage transaction does.
	if prevRider != "" && !force {
		return nil, nil, "", domain.ErrOrderAlreadyTaken
	}
	now := time.Now().UTC()
	rid := riderID
	o.RiderID = &rid
	o.Status = domain.OrderStatusAssigned
	o.AssignedAt = &now

	cp := *o
	return &cp, &domain.Delivery{
		ID:         "d-" + orderID,
		OrderID:    orderID,
		RiderID:    riderID,
		Status:     domain.DeliveryStatusAssigned,
		Notes:      notes,
		AssignedAt: now,
	}, prevRider, nil
}

func (f *fakeOrderRepo) TransitionStatus(_ context.Context, orderID, newStatus, _ string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if !domain.CanTransition(o.Status, newStatus) {
		return nil, domain.ErrInvalidTransition
	}
	o.Status = newStatus
	if newStatus == domain.OrderStatusCancelled || newStatus == domain.OrderStatusPending {
		o.RiderID = nil
		o.AssignedAt = nil
	}
	f.transitions = append(f.transitions, orderID+":"+newStatus)
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) ListDispatchable(_ context.Context, limit int) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if o.Dispatchable() && len(out) < limit {
			out = append(out, *o)
		}
	}
	return out, nil
}

type fakeDeliveryRepo struct {
	mu         sync.Mutex
	deliveries map[string]*domain.Delivery // keyed by order id

	updates []string
}

func newFakeDeliveryRepo(deliveries ...*domain.Delivery) *fakeDeliveryRepo {
	m := make(map[string]*domain.Delivery, len(deliveries))
	for _, d := range deliveries {
		m[d.OrderID] = d
	}
	return &fakeDeliveryRepo{deliveries: m}
}

func (f *fakeDeliveryRepo) FindActiveByOrderID(_ context.Context, orderID string) (*domain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[orderID]
	if !ok || !d.Active() {
		return nil, domain.ErrDeliveryNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDeliveryRepo) FindCurrentByRiderID(_ context.Context, riderID string) (*domain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deliveries {
		if d.RiderID == riderID && d.Active() {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrDeliveryNotFound
}

func (f *fakeDeliveryRepo) ListForRider(_ context.Context, riderID string, limit int) ([]domain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Delivery
	for _, d := range f.deliveries {
		if d.RiderID == riderID && len(out) < limit {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDeliveryRepo) UpdateStatus(_ context.Context, orderID, riderID, status, notes string) (*domain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[orderID]
	if !ok || !d.Active() {
		return nil, domain.ErrDeliveryNotFound
	}
	if d.RiderID != riderID {
		return nil, domain.ErrNotAssignedRider
	}
	if !domain.CanTransitionDelivery(d.Status, status) {
		return nil, domain.ErrInvalidTransition
	}
	d.Status = status
	if notes != "" {
		d.Notes = notes
	}
	f.updates = append(f.updates, orderID+":"+status)
	cp := *d
	return &cp, nil
}

type fakeAvailabilityRepo struct {
	mu     sync.Mutex
	riders map[string]*domain.RiderAvailability

	// activeDelivery marks riders whose current_order_id is backed by a live
	// delivery row; SetAvailable keeps the reference only for those.
	activeDelivery map[string]bool

	busyCalls []string // "rider:order"
	freeCalls []string
}

func newFakeAvailabilityRepo(riders ...*domain.RiderAvailability) *fakeAvailabilityRepo {
	m := make(map[string]*domain.RiderAvailability, len(riders))
	for _, r := range riders {
		m[r.RiderID] = r
	}
	return &fakeAvailabilityRepo{riders: m, activeDelivery: make(map[string]bool)}
}

func (f *fakeAvailabilityRepo) Heartbeat(_ context.Context, riderID string, online bool, loc *domain.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.riders[riderID]
	if !ok {
		r = &domain.RiderAvailability{RiderID: riderID, IsAvailable: true}
		f.riders[riderID] = r
	}
	r.IsOnline = online
	r.LastSeen = time.Now()
	if loc != nil {
		r.CurrentLat, r.CurrentLng = &loc.Lat, &loc.Lng
	}
	return nil
}

func (f *fakeAvailabilityRepo) SetAvailable(_ context.Context, riderID string, available bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.riders[riderID]
	if !ok {
		r = &domain.RiderAvailability{RiderID: riderID, IsOnline: true}
		f.riders[riderID] = r
	}
	r.IsAvailable = available
	if !f.activeDelivery[riderID] {
		r.CurrentOrderID = nil
	}
	return nil
}

func (f *fakeAvailabilityRepo) ListEligible(_ context.Context, staleAfter time.Duration) ([]domain.RiderAvailability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var out []domain.RiderAvailability
	for _, r := range f.riders {
		if r.Eligible(now, staleAfter) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeAvailabilityRepo) MarkBusy(_ context.Context, riderID, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.riders[riderID]
	if !ok {
		r = &domain.RiderAvailability{RiderID: riderID, IsOnline: true, IsAvailable: true}
		f.riders[riderID] = r
	}
	oid := orderID
	r.CurrentOrderID = &oid
	r.IsAvailable = false
	f.busyCalls = append(f.busyCalls, riderID+":"+orderID)
	return nil
}

func (f *fakeAvailabilityRepo) MarkFree(_ context.Context, riderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.riders[riderID]; ok {
		r.CurrentOrderID = nil
		r.IsAvailable = true
	}
	f.freeCalls = append(f.freeCalls, riderID)
	return nil
}

func (f *fakeAvailabilityRepo) FindByRiderID(_ context.Context, riderID string) (*domain.RiderAvailability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.riders[riderID]
	if !ok {
		return nil, domain.ErrRiderNotFound
	}
	cp := *r
	return &cp, nil
}

type sentEvent struct {
	Topic   string
	Event   string
	Payload any
}

// fakeNotifier records fanout; entries in fail force individual topics to
// error so the swallow path can be exercised.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentEvent
	fail map[string]error // topic -> error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{fail: make(map[string]error)}
}

func (f *fakeNotifier) record(topic, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[topic]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentEvent{Topic: topic, Event: event, Payload: payload})
	return nil
}

func (f *fakeNotifier) NotifyRider(_ context.Context, riderID, event string, payload any) error {
	return f.record("rider:"+riderID, event, payload)
}

func (f *fakeNotifier) NotifySeller(_ context.Context, sellerID, event string, payload any) error {
	return f.record("seller:"+sellerID, event, payload)
}

func (f *fakeNotifier) NotifyBuyer(_ context.Context, buyerID, event string, payload any) error {
	return f.record("buyer:"+buyerID, event, payload)
}

func (f *fakeNotifier) BroadcastAvailableOrders(_ context.Context, event string, payload any) error {
	return f.record("available_orders", event, payload)
}

func (f *fakeNotifier) eventsFor(topic string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if s.Topic == topic {
			out = append(out, s.Event)
		}
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.DispatchEvent
	err    error
}

func (f *fakePublisher) PublishDispatchEvent(_ context.Context, event domain.DispatchEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) published() []domain.DispatchEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.DispatchEvent(nil), f.events...)
}
