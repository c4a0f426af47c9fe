package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pixelcraft/concierge/internal/availability"
)

// Store persists appointments. Create re-validates the slot against current
// state; a stale read surfaces as ErrSlotConflict, never a double booking.
type Store interface {
	Get(ctx context.Context, businessID, id string) (*Appointment, error)
	ListForDate(ctx context.Context, businessID, date string) ([]Appointment, error)
	Create(ctx context.Context, req *CreateRequest) (*Appointment, error)
	Cancel(ctx context.Context, businessID, id, reason string) (*Appointment, error)
}

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu     sync.Mutex
	appts  map[string]*Appointment
	blocks map[string][]availability.Block // businessID -> blocks
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		appts:  make(map[string]*Appointment),
		blocks: make(map[string][]availability.Block),
		now:    time.Now,
	}
}

// SetBlocks replaces the blocked slots considered at write time.
func (s *MemoryStore) SetBlocks(businessID string, blocks []availability.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[businessID] = blocks
}

// Get returns an appointment scoped to the business.
func (s *MemoryStore) Get(ctx context.Context, businessID, id string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok || a.BusinessID != businessID {
		return nil, ErrNotFound
	}
	copied := *a
	return &copied, nil
}

// ListForDate returns all appointments on a date, every status, sorted by
// start time. Callers filter.
func (s *MemoryStore) ListForDate(ctx context.Context, businessID, date string) ([]Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Appointment
	for _, a := range s.appts {
		if a.BusinessID == businessID && a.Date == date {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

// Create books the slot, failing with ErrSlotConflict when a confirmed
// appointment or blocked interval already covers it. The check and insert
// happen under one lock, so two racing creates cannot both succeed.
func (s *MemoryStore) Create(ctx context.Context, req *CreateRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start, _ := availability.ParseClock(req.StartTime)
	end, _ := availability.ParseClock(req.EndTime)
	date, _ := time.Parse(availability.DateFormat, req.Date)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.appts {
		if a.BusinessID != req.BusinessID || a.Date != req.Date || a.Status != StatusConfirmed {
			continue
		}
		aStart, _ := availability.ParseClock(a.StartTime)
		aEnd, _ := availability.ParseClock(a.EndTime)
		if availability.Overlaps(aStart, aEnd, start, end, req.BufferMins) {
			return nil, ErrSlotConflict
		}
	}
	if availability.ConflictsWithBlocks(s.blocks[req.BusinessID], date, start, end) {
		return nil, ErrSlotConflict
	}

	appt := &Appointment{
		ID:           uuid.New().String(),
		BusinessID:   req.BusinessID,
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		DurationMins: end - start,
		Customer:     req.Customer,
		Status:       StatusConfirmed,
		CreatedAt:    s.now().UTC(),
	}
	s.appts[appt.ID] = appt
	copied := *appt
	return &copied, nil
}

// Cancel moves a confirmed appointment to cancelled. Any other current
// status yields ErrInvalidTransition.
func (s *MemoryStore) Cancel(ctx context.Context, businessID, id, reason string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok || a.BusinessID != businessID {
		return nil, ErrNotFound
	}
	if a.Status != StatusConfirmed {
		return nil, ErrInvalidTransition
	}
	now := s.now().UTC()
	a.Status = StatusCancelled
	a.CancelledAt = &now
	a.CancelReason = reason
	copied := *a
	return &copied, nil
}

var _ Store = (*MemoryStore)(nil)
