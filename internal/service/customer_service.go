package service

import (
	"context"
	"errors"
	"sync"

	"webcollect/internal/logging"
	"webcollect/internal/repository"
	"webcollect/pkg/webcollect"
)

// CustomerStore persists the local user → remote customer mapping.
type CustomerStore interface {
	GetRemoteID(ctx context.Context, userID uint) (string, error)
	Upsert(ctx context.Context, userID uint, remoteID string) (string, error)
}

type CustomerCreator interface {
	CreateCustomer(ctx context.Context, creds webcollect.Credentials, req webcollect.CustomerRequest) (string, error)
}

// CustomerService resolves the WebCollect customer for a storefront user,
// creating it on first use.
type CustomerService struct {
	store   CustomerStore
	gateway CustomerCreator
	logger  logging.Logger
	locks   *keyedMutex
}

func NewCustomerService(store CustomerStore, gateway CustomerCreator, logger logging.Logger) *CustomerService {
	return &CustomerService{store: store, gateway: gateway, logger: logger, locks: newKeyedMutex()}
}

// ResolveCustomer returns the remote customer id for userID. It reports false
// for guests and whenever resolution fails; failures are logged, never returned,
// because a checkout can proceed without a customer.
func (s *CustomerService) ResolveCustomer(ctx context.Context, userID uint, email, name string, creds webcollect.Credentials) (string, bool) {
	if userID == 0 {
		return "", false
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	id, err := s.store.GetRemoteID(ctx, userID)
	if err == nil && id != "" {
		return id, true
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("Customer lookup failed: "+err.Error(), map[string]any{"user_id": userID})
		return "", false
	}

	remoteID, err := s.gateway.CreateCustomer(ctx, creds, webcollect.CustomerRequest{
		Email:       email,
		Description: name,
		Metadata:    map[string]string{},
	})
	if err != nil {
		s.logger.Error("Customer creation failed: "+err.Error(), map[string]any{"user_id": userID})
		return "", false
	}
	stored, err := s.store.Upsert(ctx, userID, remoteID)
	if err != nil {
		// The remote customer exists; use it for this checkout even though the
		// mapping could not be saved.
		s.logger.Error("Saving customer mapping failed: "+err.Error(), map[string]any{"user_id": userID, "customer_id": remoteID})
		return remoteID, true
	}
	if stored != remoteID {
		s.logger.Info("Customer mapping already existed, keeping stored id", map[string]any{"user_id": userID, "customer_id": stored, "discarded_id": remoteID})
	}
	return stored, true
}

// keyedMutex serialises work per user id within this process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uint]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uint]*refMutex)}
}

func (k *keyedMutex) Lock(key uint) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
