package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

// memStore is an in-memory Store. WithStaffLock serialises per staff member and buffers
// writes until fn returns nil, like the Postgres transaction does.
type memStore struct {
	mu           sync.Mutex
	seq          int
	settings     map[string]model.TenantSettings
	services     map[string]model.Service
	staff        map[string]model.Staff
	availability map[string]availability.Availability
	absences     map[string]availability.Absence
	bookings     map[string]model.Booking
	idempotency  map[string]string
	events       []outbox.Event

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// insertDelay widens the window between count and insert in concurrency tests.
	insertDelay time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		settings:     map[string]model.TenantSettings{},
		services:     map[string]model.Service{},
		staff:        map[string]model.Staff{},
		availability: map[string]availability.Availability{},
		absences:     map[string]availability.Absence{},
		bookings:     map[string]model.Booking{},
		idempotency:  map[string]string{},
		locks:        map[string]*sync.Mutex{},
	}
}

func key(tenantID, id string) string { return tenantID + "/" + id }

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) eventCount(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

func (m *memStore) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

func (m *memStore) GetService(_ context.Context, tenantID, id string) (model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[key(tenantID, id)]
	if !ok {
		return model.Service{}, model.ErrNotFound
	}
	return s, nil
}

func (m *memStore) GetStaff(_ context.Context, tenantID, id string) (model.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[key(tenantID, id)]
	if !ok {
		return model.Staff{}, model.ErrNotFound
	}
	return s, nil
}

func (m *memStore) ListStaff(_ context.Context, tenantID string) ([]model.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Staff
	for _, s := range m.staff {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) GetSettings(_ context.Context, tenantID string) (model.TenantSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[tenantID]
	if !ok {
		return model.TenantSettings{}, model.ErrNotFound
	}
	return s, nil
}

func (m *memStore) PutSettings(_ context.Context, s model.TenantSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[s.TenantID] = s
	return nil
}

func (m *memStore) CreateAvailability(_ context.Context, a *availability.Availability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = m.nextID("avail")
	}
	m.availability[key(a.TenantID, a.ID)] = *a
	return nil
}

func (m *memStore) GetAvailability(_ context.Context, tenantID, id string) (availability.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.availability[key(tenantID, id)]
	if !ok {
		return availability.Availability{}, model.ErrNotFound
	}
	return a, nil
}

func (m *memStore) ListAvailabilities(_ context.Context, tenantID string, f AvailabilityFilter) ([]availability.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []availability.Availability
	for _, a := range m.availability {
		if a.TenantID != tenantID {
			continue
		}
		staffID, assigned := a.Assignment.StaffID()
		if f.StaffID != "" && staffID != f.StaffID {
			continue
		}
		if f.UnassignedOnly && assigned {
			continue
		}
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.Active != nil && a.IsActive != *f.Active {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ModifyAvailability(_ context.Context, tenantID, id string, fn func(a *availability.Availability) ([]outbox.Event, error)) (availability.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.availability[key(tenantID, id)]
	if !ok {
		return availability.Availability{}, model.ErrNotFound
	}
	current := a
	events, err := fn(&a)
	if errors.Is(err, ErrNoChange) {
		return current, nil
	}
	if err != nil {
		return availability.Availability{}, err
	}
	m.availability[key(tenantID, id)] = a
	m.events = append(m.events, events...)
	return a, nil
}

func (m *memStore) DeleteAvailability(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.availability[key(tenantID, id)]; !ok {
		return model.ErrNotFound
	}
	delete(m.availability, key(tenantID, id))
	return nil
}

func (m *memStore) CreateAbsence(_ context.Context, a *availability.Absence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = m.nextID("absence")
	}
	m.absences[key(a.TenantID, a.ID)] = *a
	return nil
}

func (m *memStore) GetAbsence(_ context.Context, tenantID, id string) (availability.Absence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.absences[key(tenantID, id)]
	if !ok {
		return availability.Absence{}, model.ErrNotFound
	}
	return a, nil
}

func (m *memStore) ApproveAbsence(_ context.Context, tenantID, id string) (availability.Absence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.absences[key(tenantID, id)]
	if !ok {
		return availability.Absence{}, model.ErrNotFound
	}
	a.Approved = true
	m.absences[key(tenantID, id)] = a
	return a, nil
}

func (m *memStore) DeleteAbsence(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.absences[key(tenantID, id)]; !ok {
		return model.ErrNotFound
	}
	delete(m.absences, key(tenantID, id))
	return nil
}

func (m *memStore) ListAbsences(_ context.Context, tenantID string, f AbsenceFilter) ([]availability.Absence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []availability.Absence
	for _, a := range m.absences {
		if a.TenantID != tenantID || (f.StaffID != "" && a.StaffID != f.StaffID) {
			continue
		}
		if f.ApprovedOnly && !a.Approved {
			continue
		}
		if !f.From.IsZero() && !a.Period.End().After(f.From) {
			continue
		}
		if !f.To.IsZero() && !a.Period.Start().Before(f.To) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) staffLock(tenantID, staffID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[key(tenantID, staffID)]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key(tenantID, staffID)] = l
	}
	return l
}

func (m *memStore) WithStaffLock(ctx context.Context, tenantID, staffID string, fn func(tx ReservationTx) error) error {
	l := m.staffLock(tenantID, staffID)
	l.Lock()
	defer l.Unlock()

	tx := &memTx{store: m, tenantID: tenantID, staffID: staffID}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range tx.bookings {
		m.bookings[key(tenantID, b.ID)] = b
	}
	for k, v := range tx.keys {
		m.idempotency[key(tenantID, k)] = v
	}
	m.events = append(m.events, tx.events...)
	return nil
}

func (m *memStore) ActiveIntervals(_ context.Context, tenantID, staffID string, window timeslot.Interval) ([]timeslot.Interval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []timeslot.Interval
	for _, b := range m.bookings {
		if b.TenantID != tenantID || b.StaffID != staffID || !b.Status.Active() {
			continue
		}
		i, err := timeslot.New(b.Start, b.End)
		if err != nil {
			return nil, err
		}
		if i.Overlaps(window) {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *memStore) GetBooking(_ context.Context, tenantID, id string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[key(tenantID, id)]
	if !ok {
		return model.Booking{}, model.ErrNotFound
	}
	return b, nil
}

func (m *memStore) GetBookingByShortCode(_ context.Context, tenantID, code string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.TenantID == tenantID && b.ShortCode == code {
			return b, nil
		}
	}
	return model.Booking{}, model.ErrNotFound
}

func (m *memStore) ListBookings(_ context.Context, tenantID string, f BookingFilter) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.TenantID != tenantID || (f.StaffID != "" && b.StaffID != f.StaffID) {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && !b.End.After(f.From) {
			continue
		}
		if !f.To.IsZero() && !b.Start.Before(f.To) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) ModifyBooking(_ context.Context, tenantID, id string, fn func(b *model.Booking) ([]outbox.Event, error)) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[key(tenantID, id)]
	if !ok {
		return model.Booking{}, model.ErrNotFound
	}
	events, err := fn(&b)
	if err != nil {
		return model.Booking{}, err
	}
	m.bookings[key(tenantID, id)] = b
	m.events = append(m.events, events...)
	return b, nil
}

type memTx struct {
	store    *memStore
	tenantID string
	staffID  string
	bookings []model.Booking
	keys     map[string]string
	events   []outbox.Event
}

func (t *memTx) LookupIdempotencyKey(_ context.Context, k string) (string, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.idempotency[key(t.tenantID, k)], nil
}

func (t *memTx) FinalizeIdempotency(_ context.Context, k, bookingID string) error {
	if t.keys == nil {
		t.keys = map[string]string{}
	}
	t.keys[k] = bookingID
	return nil
}

func (t *memTx) CountOverlapping(ctx context.Context, window timeslot.Interval) (int, error) {
	active, err := t.store.ActiveIntervals(ctx, t.tenantID, t.staffID, window)
	if err != nil {
		return 0, err
	}
	n := len(active)
	for _, b := range t.bookings {
		if b.Start.Before(window.End()) && window.Start().Before(b.End) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	if d := t.store.insertDelay; d > 0 {
		time.Sleep(d)
	}
	code, err := model.NewShortCode()
	if err != nil {
		return err
	}
	t.store.mu.Lock()
	b.ID = t.store.nextID("booking")
	t.store.mu.Unlock()
	b.ShortCode = code
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	t.bookings = append(t.bookings, *b)
	return nil
}

func (t *memTx) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	return t.store.GetBooking(ctx, t.tenantID, id)
}

func (t *memTx) Enqueue(_ context.Context, evt outbox.Event) error {
	t.events = append(t.events, evt)
	return nil
}
