package memory

import (
	"context"
	"sync"

	"tourbus/internal/domain"
	"tourbus/internal/repository"
)

// PaymentRepository is an in-memory implementation of repository.PaymentRepository.
type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment
	byKey    map[string]string
}

// NewPaymentRepository creates an empty PaymentRepository.
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		payments: make(map[string]*domain.Payment),
		byKey:    make(map[string]string),
	}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *payment
	r.payments[payment.ID] = &stored
	r.byKey[payment.IdempotencyKey] = payment.ID
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	copy := *r.payments[id]
	return &copy, nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status domain.ChargeStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = status
	return nil
}

var _ repository.PaymentRepository = (*PaymentRepository)(nil)
