package repository

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSlotEmpty retourné par un backend quand le slot n'existe pas (ou a expiré)
var ErrSlotEmpty = errors.New("slot is empty")

// SlotBackend stockage clé/valeur brut d'un slot de persistance
type SlotBackend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// SlotPurger implémenté par les backends qui ne gèrent pas eux-mêmes l'expiration
type SlotPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type memorySlot struct {
	value     []byte
	expiresAt time.Time
}

// MemorySlotBackend backend en mémoire du processus (développement, tests)
type MemorySlotBackend struct {
	mu    sync.RWMutex
	slots map[string]memorySlot
	clock func() time.Time
}

// NewMemorySlotBackend crée un backend mémoire vide
func NewMemorySlotBackend() *MemorySlotBackend {
	return &MemorySlotBackend{
		slots: make(map[string]memorySlot),
		clock: time.Now,
	}
}

// Get implémente SlotBackend
func (b *MemorySlotBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	slot, ok := b.slots[key]
	b.mu.RUnlock()

	if !ok || b.expired(slot) {
		return nil, ErrSlotEmpty
	}

	value := make([]byte, len(slot.value))
	copy(value, slot.value)
	return value, nil
}

// Set implémente SlotBackend
func (b *MemorySlotBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	slot := memorySlot{value: make([]byte, len(value))}
	copy(slot.value, value)
	if ttl > 0 {
		slot.expiresAt = b.clock().Add(ttl)
	}

	b.mu.Lock()
	b.slots[key] = slot
	b.mu.Unlock()
	return nil
}

// Delete implémente SlotBackend
func (b *MemorySlotBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	delete(b.slots, key)
	b.mu.Unlock()
	return nil
}

// Ping implémente SlotBackend
func (b *MemorySlotBackend) Ping(context.Context) error {
	return nil
}

// PurgeExpired implémente SlotPurger
func (b *MemorySlotBackend) PurgeExpired(context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var purged int64
	for key, slot := range b.slots {
		if b.expired(slot) {
			delete(b.slots, key)
			purged++
		}
	}
	return purged, nil
}

func (b *MemorySlotBackend) expired(slot memorySlot) bool {
	return !slot.expiresAt.IsZero() && !b.clock().Before(slot.expiresAt)
}
