package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pixelcraft/concierge/internal/availability"
)

// MemorySettingsStore keeps settings in memory for tests and local dev.
type MemorySettingsStore struct {
	mu       sync.RWMutex
	settings map[string]availability.Settings
}

// NewMemorySettingsStore creates an empty settings store.
func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{settings: make(map[string]availability.Settings)}
}

// Get returns the settings for a business.
func (s *MemorySettingsStore) Get(ctx context.Context, businessID string) (*availability.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.settings[businessID]
	if !ok {
		return nil, ErrSettingsNotFound
	}
	return &settings, nil
}

// Upsert validates and stores the settings.
func (s *MemorySettingsStore) Upsert(ctx context.Context, settings availability.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.BusinessID] = settings
	return nil
}

// MemoryBlockedSlotStore keeps blocked slots in memory.
type MemoryBlockedSlotStore struct {
	mu    sync.RWMutex
	slots map[string]BlockedSlot
}

// NewMemoryBlockedSlotStore creates an empty blocked slot store.
func NewMemoryBlockedSlotStore() *MemoryBlockedSlotStore {
	return &MemoryBlockedSlotStore{slots: make(map[string]BlockedSlot)}
}

// List returns every block for the business.
func (s *MemoryBlockedSlotStore) List(ctx context.Context, businessID string) ([]BlockedSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []BlockedSlot
	for _, slot := range s.slots {
		if slot.BusinessID == businessID {
			out = append(out, slot)
		}
	}
	return out, nil
}

// Create validates and stores a new block.
func (s *MemoryBlockedSlotStore) Create(ctx context.Context, slot *BlockedSlot) (*BlockedSlot, error) {
	if err := slot.Validate(); err != nil {
		return nil, err
	}
	created := *slot
	created.ID = uuid.New().String()
	created.CreatedAt = time.Now().UTC()
	s.mu.Lock()
	s.slots[created.ID] = created
	s.mu.Unlock()
	return &created, nil
}

// Delete removes a block.
func (s *MemoryBlockedSlotStore) Delete(ctx context.Context, businessID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	if !ok || slot.BusinessID != businessID {
		return ErrBlockedSlotNotFound
	}
	delete(s.slots, id)
	return nil
}

var (
	_ SettingsStore    = (*MemorySettingsStore)(nil)
	_ BlockedSlotStore = (*MemoryBlockedSlotStore)(nil)
)
