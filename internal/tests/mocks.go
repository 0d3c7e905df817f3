package tests

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"tourbus/internal/domain"
	"tourbus/internal/queue"
	"tourbus/internal/redis"
	"tourbus/internal/repository"
	"tourbus/internal/service"
)

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository.
type MockTripRepository struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32
	LockCallCount   int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips: make(map[string]*domain.Trip),
	}
}

// AddTrip adds a trip to the mock repository.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *trip
	m.trips[trip.ID] = &stored
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.AddTrip(trip)
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *trip
	return &copy, nil
}

func (m *MockTripRepository) LockByID(ctx context.Context, id string) (*domain.Trip, error) {
	atomic.AddInt32(&m.LockCallCount, 1)
	return m.GetByID(ctx, id)
}

func (m *MockTripRepository) GetByCustomer(ctx context.Context, customerID string) ([]*domain.Trip, error) {
	return m.filter(func(t *domain.Trip) bool { return t.CustomerID == customerID }), nil
}

func (m *MockTripRepository) GetByStatus(ctx context.Context, status domain.TripStatus) ([]*domain.Trip, error) {
	return m.filter(func(t *domain.Trip) bool { return t.Status == status }), nil
}

func (m *MockTripRepository) GetAll(ctx context.Context) ([]*domain.Trip, error) {
	return m.filter(func(*domain.Trip) bool { return true }), nil
}

func (m *MockTripRepository) UpdateFields(ctx context.Context, id string, update domain.TripUpdate) (*domain.Trip, error) {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return nil, m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	update.Apply(trip)
	copy := *trip
	return &copy, nil
}

func (m *MockTripRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.trips, id)
	return nil
}

func (m *MockTripRepository) filter(keep func(*domain.Trip) bool) []*domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Trip, 0)
	for _, t := range m.trips {
		if keep(t) {
			copy := *t
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RequestedAt.After(result[j].RequestedAt) })
	return result
}

// GetTrip returns trip for test assertions.
func (m *MockTripRepository) GetTrip(id string) *domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trips[id]
}

// CountTrips returns the number of trips.
func (m *MockTripRepository) CountTrips() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trips)
}

func (m *MockTripRepository) snapshot() map[string]domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[string]domain.Trip, len(m.trips))
	for id, t := range m.trips {
		snap[id] = *t
	}
	return snap
}

func (m *MockTripRepository) restore(snap map[string]domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips = make(map[string]*domain.Trip, len(snap))
	for id, t := range snap {
		t := t
		m.trips[id] = &t
	}
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment

	// Counters
	CreateCallCount int32

	// Error injection
	CreateError error
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[string]*domain.Payment),
	}
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.IdempotencyKey == payment.IdempotencyKey {
			return ErrMockDBConstraint
		}
	}
	stored := *payment
	m.payments[payment.ID] = &stored
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payment, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *payment
	return &copy, nil
}

func (m *MockPaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.IdempotencyKey == key {
			copy := *p
			return &copy, nil
		}
	}
	return nil, nil // Not found, but not an error for idempotency check
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, id string, status domain.ChargeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	payment.Status = status
	return nil
}

// CountPayments returns the number of payments.
func (m *MockPaymentRepository) CountPayments() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.payments)
}

// GetPaymentByTripID returns payment for a trip.
func (m *MockPaymentRepository) GetPaymentByTripID(tripID string) *domain.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.TripID == tripID {
			return p
		}
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK USER REPOSITORY
// ──────────────────────────────────────────────

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockUserRepository) GetAll(ctx context.Context) ([]*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		copy := *u
		result = append(result, &copy)
	}
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK OUTBOX REPOSITORY
// ──────────────────────────────────────────────

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	events []*domain.OutboxEvent

	// Error injection. Enqueue fails for events of this type.
	FailEnqueueType  domain.EventType
	FailEnqueueError error
}

// NewMockOutboxRepository creates a new mock outbox repository.
func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

// FailEnqueue makes Enqueue reject events of type with err. An empty type clears it.
func (m *MockOutboxRepository) FailEnqueue(eventType domain.EventType, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailEnqueueType = eventType
	m.FailEnqueueError = err
}

func (m *MockOutboxRepository) Enqueue(ctx context.Context, event *domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailEnqueueType != "" && event.Type == m.FailEnqueueType {
		return m.FailEnqueueError
	}
	stored := *event
	m.events = append(m.events, &stored)
	return nil
}

func (m *MockOutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.OutboxEvent
	for _, e := range m.events {
		if !e.Published() && e.Attempts < domain.MaxDeliveryAttempts {
			copy := *e
			result = append(result, &copy)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Attempts < result[j].Attempts })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	return m.update(id, func(e *domain.OutboxEvent) {
		e.PublishedAt = at
		e.Attempts++
		e.LastError = ""
	})
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return m.update(id, func(e *domain.OutboxEvent) {
		e.Attempts++
		e.LastError = reason
	})
}

func (m *MockOutboxRepository) ListByTrip(ctx context.Context, tripID string) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.OutboxEvent
	for _, e := range m.events {
		if e.TripID == tripID {
			copy := *e
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockOutboxRepository) update(id string, fn func(*domain.OutboxEvent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			fn(e)
			return nil
		}
	}
	return repository.ErrNotFound
}

// EventTypes returns the types of every event recorded for tripID, oldest first.
func (m *MockOutboxRepository) EventTypes(tripID string) []domain.EventType {
	events, _ := m.ListByTrip(context.Background(), tripID)
	types := make([]domain.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func (m *MockOutboxRepository) snapshot() []domain.OutboxEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make([]domain.OutboxEvent, 0, len(m.events))
	for _, e := range m.events {
		snap = append(snap, *e)
	}
	return snap
}

func (m *MockOutboxRepository) restore(snap []domain.OutboxEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make([]*domain.OutboxEvent, 0, len(snap))
	for i := range snap {
		e := snap[i]
		m.events = append(m.events, &e)
	}
}

// ──────────────────────────────────────────────
// MOCK STORE
// ──────────────────────────────────────────────

// MockStore is a mock implementation of Store. WithinTx serializes transactions and
// restores trips and outbox events when fn fails.
type MockStore struct {
	txMu sync.Mutex

	TripRepo    *MockTripRepository
	PaymentRepo *MockPaymentRepository
	UserRepo    *MockUserRepository
	OutboxRepo  *MockOutboxRepository

	// Counters
	TxCount       int32
	RollbackCount int32
}

// NewMockStore creates a store over fresh mock repositories.
func NewMockStore() *MockStore {
	return &MockStore{
		TripRepo:    NewMockTripRepository(),
		PaymentRepo: NewMockPaymentRepository(),
		UserRepo:    NewMockUserRepository(),
		OutboxRepo:  NewMockOutboxRepository(),
	}
}

func (s *MockStore) Trips() repository.TripRepository       { return s.TripRepo }
func (s *MockStore) Payments() repository.PaymentRepository { return s.PaymentRepo }
func (s *MockStore) Users() repository.UserRepository       { return s.UserRepo }
func (s *MockStore) Outbox() repository.OutboxRepository    { return s.OutboxRepo }

func (s *MockStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	atomic.AddInt32(&s.TxCount, 1)

	trips := s.TripRepo.snapshot()
	events := s.OutboxRepo.snapshot()
	if err := fn(&mockTx{MockStore: s}); err != nil {
		atomic.AddInt32(&s.RollbackCount, 1)
		s.TripRepo.restore(trips)
		s.OutboxRepo.restore(events)
		return err
	}
	return nil
}

// mockTx joins the transaction already held by its MockStore.
type mockTx struct {
	*MockStore
}

func (t *mockTx) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return fn(t)
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of TripLocker.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]mockLock
	seq   int

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

type mockLock struct {
	token  string
	expiry time.Time
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]mockLock),
	}
}

func (m *MockLockStore) AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (string, bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return "", false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return "", false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:trip:" + tripID
	if l, exists := m.locks[key]; exists && time.Now().Before(l.expiry) {
		return "", false, nil // Lock still held.
	}

	m.seq++
	token := fmt.Sprintf("token-%d", m.seq)
	m.locks[key] = mockLock{token: token, expiry: time.Now().Add(ttl)}
	return token, true, nil
}

func (m *MockLockStore) ReleaseTripLock(ctx context.Context, tripID, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "lock:trip:" + tripID
	if l, exists := m.locks[key]; !exists || l.token != token {
		return redis.ErrLockNotHeld
	}
	delete(m.locks, key)
	return nil
}

// IsLocked checks if a trip is locked (for test assertions).
func (m *MockLockStore) IsLocked(tripID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, exists := m.locks["lock:trip:"+tripID]
	return exists && time.Now().Before(l.expiry)
}

// ──────────────────────────────────────────────
// MOCK PSP (Payment Service Provider)
// ──────────────────────────────────────────────

// MockPSP is a mock payment service provider.
type MockPSP struct {
	mu sync.Mutex

	// Control behavior
	ShouldFail bool
	FailError  error

	// Counters
	ChargeCallCount int32
}

// NewMockPSP creates a new mock PSP.
func NewMockPSP() *MockPSP {
	return &MockPSP{}
}

func (m *MockPSP) Charge(ctx context.Context, tripID string, amount int64) (bool, error) {
	atomic.AddInt32(&m.ChargeCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailError != nil {
		return false, m.FailError
	}
	if m.ShouldFail {
		return false, nil
	}
	return true, nil
}

// SetFailure configures the PSP to fail.
func (m *MockPSP) SetFailure(shouldFail bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldFail = shouldFail
	m.FailError = err
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published messages.
type MockPublisher struct {
	mu       sync.Mutex
	messages []queue.Message

	// Error injection
	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, msg queue.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishError != nil {
		return m.PublishError
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// SetError configures Publish to fail with err, or succeed when err is nil.
func (m *MockPublisher) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishError = err
}

// Messages returns a copy of everything published so far.
func (m *MockPublisher) Messages() []queue.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queue.Message(nil), m.messages...)
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)

var (
	_ repository.Store = (*MockStore)(nil)
	_ redis.TripLocker = (*MockLockStore)(nil)
	_ service.PSP      = (*MockPSP)(nil)
	_ queue.Publisher  = (*MockPublisher)(nil)
)
