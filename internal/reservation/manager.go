// Package reservation owns all mutable seat state.  Every seat of a
// showtime is FREE, HELD by exactly one order with an expiry, or BOOKED.
// Mutations for a showtime are serialized behind a per-showtime mutex so
// two concurrent holds for overlapping seat sets can never both succeed.
// No I/O happens inside the critical section; durable bookings are
// persisted by the order layer after Commit returns.
package reservation

import (
    "errors"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog"
)

// ErrSeatAlreadyHeld is returned when a requested seat is held by another
// order whose hold has not expired.
var ErrSeatAlreadyHeld = errors.New("seat already held")

// ErrSeatAlreadyBooked is returned when a requested seat is booked by a
// completed order.
var ErrSeatAlreadyBooked = errors.New("seat already booked")

// ErrReservationExpired is returned by Commit and Extend when the order's
// hold has passed its expiry.
var ErrReservationExpired = errors.New("reservation expired")

// ErrNoActiveHold is returned by Commit when the order holds no seats at
// all (released, expired and swept, or never held).
var ErrNoActiveHold = errors.New("no active hold for order")

// SeatStatus is the externally visible availability of a seat.
type SeatStatus string

const (
    SeatFree   SeatStatus = "FREE"
    SeatHeld   SeatStatus = "HELD"
    SeatBooked SeatStatus = "BOOKED"
)

type hold struct {
    orderID   uuid.UUID
    expiresAt time.Time
}

// shard carries the seat state of one showtime.  All fields are guarded
// by mu.
type shard struct {
    mu     sync.Mutex
    held   map[uint64]hold      // seat id -> active hold
    booked map[uint64]uuid.UUID // seat id -> completing order
    orders map[uuid.UUID][]uint64
}

func newShard() *shard {
    return &shard{
        held:   make(map[uint64]hold),
        booked: make(map[uint64]uuid.UUID),
        orders: make(map[uuid.UUID][]uint64),
    }
}

// Manager is the seat reservation manager.  The zero value is not usable;
// construct with NewManager.
type Manager struct {
    mu     sync.RWMutex
    shards map[uint64]*shard

    now    func() time.Time
    logger zerolog.Logger
}

// NewManager returns an empty Manager.  Committed bookings from previous
// runs should be loaded with Seed before serving traffic.
func NewManager(logger zerolog.Logger) *Manager {
    return &Manager{
        shards: make(map[uint64]*shard),
        now:    time.Now,
        logger: logger.With().Str("component", "seat-reservation").Logger(),
    }
}

// SetClock replaces the time source.  Intended for tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

func (m *Manager) shard(showTimeID uint64) *shard {
    m.mu.RLock()
    s, ok := m.shards[showTimeID]
    m.mu.RUnlock()
    if ok {
        return s
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    if s, ok = m.shards[showTimeID]; !ok {
        s = newShard()
        m.shards[showTimeID] = s
    }
    return s
}

// Seed marks seats as BOOKED for a showtime.  Used at startup to restore
// durable bookings from completed orders.
func (m *Manager) Seed(showTimeID uint64, seatIDs []uint64) {
    s := m.shard(showTimeID)
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, id := range seatIDs {
        s.booked[id] = uuid.Nil
    }
}

// Hold atomically transitions every requested seat from FREE to HELD for
// the given order.  The transition is all-or-nothing: when any seat is
// held by another order or booked, no seat changes state and the seat
// conflict is returned.  Holding again under the same order refreshes the
// order's hold set (the new seats join the existing ones) and its expiry.
func (m *Manager) Hold(showTimeID uint64, orderID uuid.UUID, seatIDs []uint64, ttl time.Duration) error {
    s := m.shard(showTimeID)
    s.mu.Lock()
    defer s.mu.Unlock()

    now := m.now()
    s.dropExpiredLocked(now)

    for _, id := range seatIDs {
        if _, ok := s.booked[id]; ok {
            return ErrSeatAlreadyBooked
        }
        if h, ok := s.held[id]; ok && h.orderID != orderID {
            return ErrSeatAlreadyHeld
        }
    }

    for _, id := range seatIDs {
        if _, ok := s.held[id]; !ok {
            s.orders[orderID] = append(s.orders[orderID], id)
        }
    }
    // All seats of the order share a single expiry.
    expiresAt := now.Add(ttl)
    for _, id := range s.orders[orderID] {
        s.held[id] = hold{orderID: orderID, expiresAt: expiresAt}
    }
    return nil
}

// Release transitions all seats held by the order back to FREE.  It is
// idempotent: releasing an unknown or already released order is a no-op.
func (m *Manager) Release(showTimeID uint64, orderID uuid.UUID) {
    s := m.shard(showTimeID)
    s.mu.Lock()
    defer s.mu.Unlock()
    s.releaseLocked(orderID, nil)
}

// ReleaseSeats returns the given seats to FREE if they are held by the
// order.  Used when a gift promotion stops applying and its granted seats
// must be given back without disturbing the paid seats.
func (m *Manager) ReleaseSeats(showTimeID uint64, orderID uuid.UUID, seatIDs []uint64) {
    if len(seatIDs) == 0 {
        return
    }
    s := m.shard(showTimeID)
    s.mu.Lock()
    defer s.mu.Unlock()
    s.releaseLocked(orderID, seatIDs)
}

// releaseLocked removes held seats of the order.  A nil subset releases
// everything the order holds.
func (s *shard) releaseLocked(orderID uuid.UUID, subset []uint64) {
    seats, ok := s.orders[orderID]
    if !ok {
        return
    }
    var only map[uint64]bool
    if subset != nil {
        only = make(map[uint64]bool, len(subset))
        for _, id := range subset {
            only[id] = true
        }
    }
    remaining := seats[:0]
    for _, id := range seats {
        if only != nil && !only[id] {
            remaining = append(remaining, id)
            continue
        }
        if h, held := s.held[id]; held && h.orderID == orderID {
            delete(s.held, id)
        }
    }
    if len(remaining) == 0 {
        delete(s.orders, orderID)
    } else {
        s.orders[orderID] = remaining
    }
}

// Commit transitions all seats held by the order to BOOKED.  It fails
// with ErrReservationExpired when called after the hold's expiry and with
// ErrNoActiveHold when the order holds nothing.
func (m *Manager) Commit(showTimeID uint64, orderID uuid.UUID) error {
    s := m.shard(showTimeID)
    s.mu.Lock()
    defer s.mu.Unlock()

    seats, ok := s.orders[orderID]
    if !ok || len(seats) == 0 {
        return ErrNoActiveHold
    }
    now := m.now()
    for _, id := range seats {
        if h, held := s.held[id]; held && h.orderID == orderID && !h.expiresAt.After(now) {
            return ErrReservationExpired
        }
    }
    for _, id := range seats {
        delete(s.held, id)
        s.booked[id] = orderID
    }
    delete(s.orders, orderID)
    return nil
}

// Extend refreshes the expiry of the order's hold.  It refuses to revive
// an already expired hold.
func (m *Manager) Extend(showTimeID uint64, orderID uuid.UUID, ttl time.Duration) error {
    s := m.shard(showTimeID)
    s.mu.Lock()
    defer s.mu.Unlock()

    seats, ok := s.orders[orderID]
    if !ok || len(seats) == 0 {
        return ErrNoActiveHold
    }
    now := m.now()
    for _, id := range seats {
        if h, held := s.held[id]; held && h.orderID == orderID && !h.expiresAt.After(now) {
            return ErrReservationExpired
        }
    }
    expiresAt := now.Add(ttl)
    for _, id := range seats {
        s.held[id] = hold{orderID: orderID, expiresAt: expiresAt}
    }
    return nil
}

// Snapshot returns the availability of every non-FREE seat of a showtime.
// Expired holds read as FREE even before the sweeper removes them.
func (m *Manager) Snapshot(showTimeID uint64) map[uint64]SeatStatus {
    s := m.shard(showTimeID)
    s.mu.Lock()
    defer s.mu.Unlock()

    now := m.now()
    out := make(map[uint64]SeatStatus, len(s.held)+len(s.booked))
    for id, h := range s.held {
        if h.expiresAt.After(now) {
            out[id] = SeatHeld
        }
    }
    for id := range s.booked {
        out[id] = SeatBooked
    }
    return out
}

// HeldBy returns the seats currently held by the order.
func (m *Manager) HeldBy(showTimeID uint64, orderID uuid.UUID) []uint64 {
    s := m.shard(showTimeID)
    s.mu.Lock()
    defer s.mu.Unlock()
    return append([]uint64(nil), s.orders[orderID]...)
}

// dropExpiredLocked removes holds whose expiry has passed so their seats
// become holdable again.  The order layer separately cancels the expired
// order; the two sides meet deterministically because order mutations and
// this cleanup both run behind their respective single-writer locks.
func (s *shard) dropExpiredLocked(now time.Time) {
    for id, h := range s.held {
        if !h.expiresAt.After(now) {
            delete(s.held, id)
            s.dropFromOrderLocked(h.orderID, id)
        }
    }
}

func (s *shard) dropFromOrderLocked(orderID uuid.UUID, seatID uint64) {
    seats := s.orders[orderID]
    for i, id := range seats {
        if id == seatID {
            seats = append(seats[:i], seats[i+1:]...)
            break
        }
    }
    if len(seats) == 0 {
        delete(s.orders, orderID)
    } else {
        s.orders[orderID] = seats
    }
}
