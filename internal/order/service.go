// Package order owns the order lifecycle: DRAFT -> PRICED ->
// COMPLETED, with CANCELLED reachable from any non-terminal state by
// explicit cancel or reservation expiry.  The service orchestrates the
// price resolver, seat reservation manager and promotion engine, and
// recomputes totals on every mutation.  Mutations for the same order are
// serialized behind a per-order mutex, which is also how a completion
// racing the expiry sweep resolves deterministically: whichever acquires
// the mutex first wins and the loser observes the terminal state.
package order

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog"

    "github.com/iliyamo/cinema-box-office/internal/model"
    "github.com/iliyamo/cinema-box-office/internal/pricing"
    "github.com/iliyamo/cinema-box-office/internal/promotion"
    "github.com/iliyamo/cinema-box-office/internal/queue"
    "github.com/iliyamo/cinema-box-office/internal/reservation"
)

// ErrOrderNotFound is returned when the order id is unknown.
var ErrOrderNotFound = errors.New("order not found")

// ErrInvalidStateTransition is returned when an operation is attempted
// on an order whose status does not admit it.
var ErrInvalidStateTransition = errors.New("invalid order state transition")

// ErrSeatNotSellable is returned when a requested seat does not belong
// to the showtime's room or is inactive.
var ErrSeatNotSellable = errors.New("seat not sellable for this showtime")

// ErrInvalidQuantity is returned when a product selection carries a
// non-positive quantity.
var ErrInvalidQuantity = errors.New("product quantity must be positive")

// Catalog is the read-only view of the surrounding application's
// reference data.
type Catalog interface {
    ShowTime(ctx context.Context, id uint64) (*model.ShowTime, error)
    SeatsByIDs(ctx context.Context, ids []uint64) ([]model.Seat, error)
    SeatsByRoomAndType(ctx context.Context, roomID uint64, seatType model.SeatType) ([]model.Seat, error)
    ProductsByIDs(ctx context.Context, ids []uint64) ([]model.Product, error)
}

// PriceSource supplies the ticket price lines the resolver evaluates.
type PriceSource interface {
    ActiveLines(ctx context.Context, at time.Time) ([]model.TicketPriceLine, error)
}

// Store persists orders on every lifecycle transition.
type Store interface {
    Save(ctx context.Context, o *model.Order) error
}

// EventPublisher emits the order.completed event for downstream
// collaborators (ticket printing, reporting).  Publishing is best
// effort; failures are logged and never fail the completion.
type EventPublisher interface {
    PublishOrderCompleted(ctx context.Context, ev queue.OrderCompletedEvent) error
}

// SeatMapInvalidator drops the cached seat availability snapshot of a
// showtime after seat state changed.
type SeatMapInvalidator interface {
    Invalidate(ctx context.Context, showTimeID uint64)
}

// ProductSelection is one product line requested by the caller.
type ProductSelection struct {
    ProductID uint64
    Quantity  uint32
}

type entry struct {
    mu    sync.Mutex
    order *model.Order
    show  *model.ShowTime
}

// Service is the order state machine.
type Service struct {
    mu      sync.RWMutex
    entries map[uuid.UUID]*entry

    seats     *reservation.Manager
    resolver  *pricing.Resolver
    promos    *promotion.Engine
    catalog   Catalog
    prices    PriceSource
    store     Store
    publisher EventPublisher     // optional
    seatMaps  SeatMapInvalidator // optional

    holdTTL time.Duration
    now     func() time.Time
    logger  zerolog.Logger
}

// Config carries the collaborators of the order service.  Publisher and
// SeatMaps may be nil.
type Config struct {
    Seats     *reservation.Manager
    Resolver  *pricing.Resolver
    Promos    *promotion.Engine
    Catalog   Catalog
    Prices    PriceSource
    Store     Store
    Publisher EventPublisher
    SeatMaps  SeatMapInvalidator
    HoldTTL   time.Duration
}

// NewService constructs the order state machine.  HoldTTL defaults to
// six minutes, the box-office reservation window.
func NewService(cfg Config, logger zerolog.Logger) *Service {
    ttl := cfg.HoldTTL
    if ttl <= 0 {
        ttl = 6 * time.Minute
    }
    return &Service{
        entries:   make(map[uuid.UUID]*entry),
        seats:     cfg.Seats,
        resolver:  cfg.Resolver,
        promos:    cfg.Promos,
        catalog:   cfg.Catalog,
        prices:    cfg.Prices,
        store:     cfg.Store,
        publisher: cfg.Publisher,
        seatMaps:  cfg.SeatMaps,
        holdTTL:   ttl,
        now:       time.Now,
        logger:    logger.With().Str("component", "order-service").Logger(),
    }
}

// SetClock replaces the time source.  Intended for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) entry(orderID uuid.UUID) (*entry, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    e, ok := s.entries[orderID]
    if !ok {
        return nil, ErrOrderNotFound
    }
    return e, nil
}

// Create builds a new DRAFT order: it validates the seats against the
// showtime's room, resolves per-seat prices, takes an all-or-nothing
// hold with the reservation TTL and evaluates auto-apply promotions.  On
// any hold failure the seat conflict is returned and no order exists.
func (s *Service) Create(ctx context.Context, showTimeID uint64, seatIDs []uint64, customerID *uint64) (*model.Order, error) {
    show, err := s.catalog.ShowTime(ctx, showTimeID)
    if err != nil {
        return nil, err
    }

    unique := dedupe(seatIDs)
    if len(unique) == 0 {
        return nil, fmt.Errorf("%w: no seats requested", ErrSeatNotSellable)
    }
    seats, err := s.catalog.SeatsByIDs(ctx, unique)
    if err != nil {
        return nil, err
    }
    for _, seat := range seats {
        if seat.RoomID != show.RoomID || !seat.IsActive {
            return nil, fmt.Errorf("%w: seat %d", ErrSeatNotSellable, seat.ID)
        }
    }

    lines, err := s.prices.ActiveLines(ctx, show.StartsAt)
    if err != nil {
        return nil, fmt.Errorf("load price lines: %w", err)
    }
    details := make([]model.OrderDetail, 0, len(seats))
    for _, seat := range seats {
        price, err := s.resolver.Resolve(lines, show.StartsAt, seat.Type)
        if err != nil {
            return nil, err
        }
        details = append(details, model.OrderDetail{
            Kind:      model.DetailTicket,
            SeatID:    seat.ID,
            SeatType:  seat.Type,
            UnitPrice: price,
            Quantity:  1,
        })
    }

    now := s.now()
    o := &model.Order{
        ID:         uuid.New(),
        CustomerID: customerID,
        ShowTimeID: show.ID,
        Details:    details,
        Status:     model.OrderDraft,
        CreatedAt:  now,
        ExpiresAt:  now.Add(s.holdTTL),
    }

    if err := s.seats.Hold(show.ID, o.ID, unique, s.holdTTL); err != nil {
        return nil, err
    }

    if err := s.recompute(ctx, o, show); err != nil {
        s.seats.Release(show.ID, o.ID)
        return nil, err
    }
    if err := s.store.Save(ctx, o); err != nil {
        s.seats.Release(show.ID, o.ID)
        return nil, fmt.Errorf("persist order: %w", err)
    }

    s.mu.Lock()
    s.entries[o.ID] = &entry{order: o, show: show}
    s.mu.Unlock()

    s.invalidateSeatMap(ctx, show.ID)
    s.logger.Info().
        Str("order_id", o.ID.String()).
        Uint64("show_time_id", show.ID).
        Int("seats", len(unique)).
        Int64("final_amount", o.FinalAmount).
        Msg("order created")
    return clone(o), nil
}

// SetProducts replaces the order's product rows, refreshes the
// reservation TTL and re-prices the order.  The order advances to
// PRICED.
func (s *Service) SetProducts(ctx context.Context, orderID uuid.UUID, items []ProductSelection) (*model.Order, error) {
    e, err := s.entry(orderID)
    if err != nil {
        return nil, err
    }
    e.mu.Lock()
    defer e.mu.Unlock()

    if err := s.mutable(e); err != nil {
        return nil, err
    }

    ids := make([]uint64, 0, len(items))
    for _, it := range items {
        if it.Quantity == 0 {
            return nil, ErrInvalidQuantity
        }
        ids = append(ids, it.ProductID)
    }
    products, err := s.catalog.ProductsByIDs(ctx, ids)
    if err != nil {
        return nil, err
    }
    priceByID := make(map[uint64]int64, len(products))
    for _, p := range products {
        priceByID[p.ID] = p.Price
    }

    // Stage the rewrite on a copy so a rejected repricing (for example a
    // discount code whose minimum the new selection no longer meets)
    // leaves the order exactly as it was.
    staged := clone(e.order)
    kept := staged.Details[:0]
    for _, d := range staged.Details {
        if d.Kind == model.DetailProduct && !d.IsGift {
            continue
        }
        kept = append(kept, d)
    }
    staged.Details = kept
    for _, it := range items {
        staged.Details = append(staged.Details, model.OrderDetail{
            Kind:      model.DetailProduct,
            ProductID: it.ProductID,
            UnitPrice: priceByID[it.ProductID],
            Quantity:  it.Quantity,
        })
    }

    // Advancing through the flow refreshes the reservation window.
    staged.ExpiresAt = s.now().Add(s.holdTTL)
    if err := s.recompute(ctx, staged, e.show); err != nil {
        return nil, err
    }
    if err := s.seats.Extend(e.show.ID, staged.ID, s.holdTTL); err != nil {
        return nil, err
    }
    staged.Status = model.OrderPriced
    if err := s.store.Save(ctx, staged); err != nil {
        return nil, fmt.Errorf("persist order: %w", err)
    }
    e.order = staged
    return clone(staged), nil
}

// ApplyDiscountCode re-runs promotion evaluation with the code.  The
// order is left untouched when the code is invalid, not applicable or
// exhausted.  Usage counters are not consumed here.
func (s *Service) ApplyDiscountCode(ctx context.Context, orderID uuid.UUID, code string) (*model.Order, error) {
    e, err := s.entry(orderID)
    if err != nil {
        return nil, err
    }
    e.mu.Lock()
    defer e.mu.Unlock()

    if err := s.mutable(e); err != nil {
        return nil, err
    }

    previous := e.order.DiscountCode
    e.order.DiscountCode = code
    if err := s.recompute(ctx, e.order, e.show); err != nil {
        e.order.DiscountCode = previous
        return nil, err
    }
    if err := s.store.Save(ctx, e.order); err != nil {
        return nil, fmt.Errorf("persist order: %w", err)
    }
    return clone(e.order), nil
}

// ClearDiscount removes the discount code and re-runs auto-apply
// evaluation, fully resetting the discount instead of subtracting.
func (s *Service) ClearDiscount(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
    return s.ApplyDiscountCode(ctx, orderID, "")
}

// Complete finalises the order: it re-validates the reservation, reprices
// with fresh usage counts, consumes promotion usage, commits the seats
// and persists the COMPLETED order.  Completion is all-or-nothing: any
// failure rolls back consumed usage and surfaces the error with the hold
// intact.
func (s *Service) Complete(ctx context.Context, orderID uuid.UUID, paymentMethod string) (*model.Order, error) {
    e, err := s.entry(orderID)
    if err != nil {
        return nil, err
    }
    e.mu.Lock()
    defer e.mu.Unlock()

    if err := s.mutable(e); err != nil {
        return nil, err
    }

    // Fresh usage counts: an auto-applied line exhausted since the last
    // evaluation silently drops; an explicitly coded one fails the
    // completion because the customer was shown its discount.
    if err := s.recompute(ctx, e.order, e.show); err != nil {
        return nil, err
    }
    if err := s.promos.ConsumeUsage(ctx, e.order.AppliedPromotionIDs); err != nil {
        return nil, err
    }
    if err := s.seats.Commit(e.show.ID, e.order.ID); err != nil {
        s.promos.ReleaseUsage(ctx, e.order.AppliedPromotionIDs)
        return nil, err
    }

    e.order.Status = model.OrderCompleted
    e.order.PaymentMethod = paymentMethod
    if err := s.store.Save(ctx, e.order); err != nil {
        // Seats are booked and usage consumed; losing the write is an
        // operator-level inconsistency, not something we can unwind.
        s.logger.Error().Err(err).Str("order_id", orderID.String()).
            Msg("completed order not persisted")
        return nil, fmt.Errorf("persist completed order: %w", err)
    }

    s.invalidateSeatMap(ctx, e.show.ID)
    s.publishCompleted(ctx, e.order, e.show)
    s.logger.Info().
        Str("order_id", orderID.String()).
        Str("payment_method", paymentMethod).
        Int64("final_amount", e.order.FinalAmount).
        Msg("order completed")
    return clone(e.order), nil
}

// Cancel releases the order's holds and transitions it to CANCELLED.
// Cancelling an already terminal order is a no-op.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID) error {
    e, err := s.entry(orderID)
    if err != nil {
        return err
    }
    e.mu.Lock()
    defer e.mu.Unlock()
    if e.order.Status.Terminal() {
        return nil
    }
    s.cancelLocked(ctx, e, "explicit cancel")
    return nil
}

// terminalRetention is how long a finished order stays readable through
// Get after its reservation window before the sweep evicts it from
// memory.  The durable row stays in the database.
const terminalRetention = time.Hour

// ExpireDue cancels every non-terminal order whose reservation window
// passed, and evicts terminal orders past the retention window so the
// entry map does not grow for the life of the process.  Called by the
// reservation sweeper; expiry is a normal terminal transition, not an
// error.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) int {
    s.mu.RLock()
    due := make([]*entry, 0, len(s.entries))
    for _, e := range s.entries {
        due = append(due, e)
    }
    s.mu.RUnlock()

    expired := 0
    var evict []uuid.UUID
    for _, e := range due {
        e.mu.Lock()
        if !e.order.Status.Terminal() && !e.order.ExpiresAt.After(now) {
            s.cancelLocked(ctx, e, "reservation expired")
            expired++
        }
        if e.order.Status.Terminal() && now.Sub(e.order.ExpiresAt) > terminalRetention {
            evict = append(evict, e.order.ID)
        }
        e.mu.Unlock()
    }
    if len(evict) > 0 {
        s.mu.Lock()
        for _, id := range evict {
            delete(s.entries, id)
        }
        s.mu.Unlock()
    }
    return expired
}

// Get returns a copy of the order.
func (s *Service) Get(orderID uuid.UUID) (*model.Order, error) {
    e, err := s.entry(orderID)
    if err != nil {
        return nil, err
    }
    e.mu.Lock()
    defer e.mu.Unlock()
    return clone(e.order), nil
}

func (s *Service) cancelLocked(ctx context.Context, e *entry, reason string) {
    s.seats.Release(e.show.ID, e.order.ID)
    e.order.Status = model.OrderCancelled
    if err := s.store.Save(ctx, e.order); err != nil {
        s.logger.Error().Err(err).Str("order_id", e.order.ID.String()).
            Msg("cancelled order not persisted")
    }
    s.invalidateSeatMap(ctx, e.show.ID)
    s.logger.Info().
        Str("order_id", e.order.ID.String()).
        Str("reason", reason).
        Msg("order cancelled")
}

// mutable rejects operations on terminal or expired orders.
func (s *Service) mutable(e *entry) error {
    switch e.order.Status {
    case model.OrderDraft, model.OrderPriced:
    default:
        return fmt.Errorf("%w: order is %s", ErrInvalidStateTransition, e.order.Status)
    }
    if !e.order.ExpiresAt.After(s.now()) {
        return reservation.ErrReservationExpired
    }
    return nil
}

// recompute re-runs promotion evaluation and rebuilds the order's gift
// rows and totals from scratch, so that applying and then clearing a
// discount code always returns the totals to their pre-application
// values.  Gift seats are re-held through the reservation manager; a
// grant whose seats cannot be held simply does not apply.
func (s *Service) recompute(ctx context.Context, o *model.Order, show *model.ShowTime) error {
    // Paid rows and previously granted gift seats.
    paid := make([]model.OrderDetail, 0, len(o.Details))
    var oldGiftSeats []uint64
    for _, d := range o.Details {
        if d.IsGift {
            if d.Kind == model.DetailTicket {
                oldGiftSeats = append(oldGiftSeats, d.SeatID)
            }
            continue
        }
        paid = append(paid, d)
    }

    view := promotion.OrderView{}
    view.SeatTypeCounts = make(map[model.SeatType]int)
    for _, d := range paid {
        view.Subtotal += d.LineTotal()
        if d.Kind == model.DetailTicket {
            view.SeatTypeCounts[d.SeatType]++
        }
    }

    eval, err := s.promos.Evaluate(ctx, view, o.DiscountCode, s.now())
    if err != nil {
        return err
    }

    var lines []model.TicketPriceLine
    if len(eval.GiftSeatRequests) > 0 {
        if lines, err = s.prices.ActiveLines(ctx, show.StartsAt); err != nil {
            return fmt.Errorf("load price lines: %w", err)
        }
    }

    // Nothing below can fail; it is now safe to give back the previous
    // round's gift seats before granting this round's.
    s.seats.ReleaseSeats(show.ID, o.ID, oldGiftSeats)

    applied := make(map[uint64]bool, len(eval.AppliedPromotionIDs))
    for _, id := range eval.AppliedPromotionIDs {
        applied[id] = true
    }
    details := paid

    for _, g := range eval.GiftProducts {
        products, err := s.catalog.ProductsByIDs(ctx, []uint64{g.ProductID})
        if err != nil || len(products) == 0 {
            s.logger.Warn().Uint64("promotion_id", g.PromotionID).Uint64("product_id", g.ProductID).
                Msg("gift product unavailable; promotion does not apply")
            delete(applied, g.PromotionID)
            continue
        }
        details = append(details, model.OrderDetail{
            Kind:      model.DetailProduct,
            ProductID: g.ProductID,
            UnitPrice: products[0].Price,
            Quantity:  g.Quantity,
            IsGift:    true,
        })
    }

    for _, g := range eval.GiftSeatRequests {
        gifted, ok := s.grantGiftSeats(ctx, o, show, lines, g)
        if !ok {
            delete(applied, g.PromotionID)
            continue
        }
        details = append(details, gifted...)
    }

    o.Details = details
    o.AppliedPromotionIDs = o.AppliedPromotionIDs[:0]
    for _, id := range eval.AppliedPromotionIDs {
        if applied[id] {
            o.AppliedPromotionIDs = append(o.AppliedPromotionIDs, id)
        }
    }

    o.TotalPrice = 0
    var giftValue int64
    for _, d := range o.Details {
        o.TotalPrice += d.LineTotal()
        if d.IsGift {
            giftValue += d.LineTotal()
        }
    }
    o.TotalDiscount = eval.Discount + giftValue
    o.FinalAmount = o.TotalPrice - o.TotalDiscount
    if o.FinalAmount < 0 {
        o.FinalAmount = 0
    }
    return nil
}

// grantGiftSeats picks free seats of the requested type and holds them
// under the order.  The boolean result reports whether the full grant
// could be reserved.
func (s *Service) grantGiftSeats(ctx context.Context, o *model.Order, show *model.ShowTime, lines []model.TicketPriceLine, g promotion.GiftSeatRequest) ([]model.OrderDetail, bool) {
    value, err := s.resolver.Resolve(lines, show.StartsAt, g.SeatType)
    if err != nil {
        s.logger.Warn().Err(err).Uint64("promotion_id", g.PromotionID).
            Msg("gift seats cannot be valued; promotion does not apply")
        return nil, false
    }

    candidates, err := s.catalog.SeatsByRoomAndType(ctx, show.RoomID, g.SeatType)
    if err != nil {
        s.logger.Warn().Err(err).Uint64("promotion_id", g.PromotionID).
            Msg("gift seat lookup failed; promotion does not apply")
        return nil, false
    }
    taken := s.seats.Snapshot(show.ID)
    inOrder := make(map[uint64]bool)
    for _, d := range o.Details {
        if d.Kind == model.DetailTicket {
            inOrder[d.SeatID] = true
        }
    }
    picked := make([]uint64, 0, g.Quantity)
    for _, seat := range candidates {
        if len(picked) == g.Quantity {
            break
        }
        if !seat.IsActive || inOrder[seat.ID] {
            continue
        }
        if _, unavailable := taken[seat.ID]; unavailable {
            continue
        }
        picked = append(picked, seat.ID)
    }
    if len(picked) < g.Quantity {
        return nil, false
    }

    ttl := o.ExpiresAt.Sub(s.now())
    if ttl <= 0 {
        return nil, false
    }
    if err := s.seats.Hold(show.ID, o.ID, picked, ttl); err != nil {
        return nil, false
    }

    gifted := make([]model.OrderDetail, 0, len(picked))
    for _, id := range picked {
        gifted = append(gifted, model.OrderDetail{
            Kind:      model.DetailTicket,
            SeatID:    id,
            SeatType:  g.SeatType,
            UnitPrice: value,
            Quantity:  1,
            IsGift:    true,
        })
    }
    return gifted, true
}

func (s *Service) invalidateSeatMap(ctx context.Context, showTimeID uint64) {
    if s.seatMaps != nil {
        s.seatMaps.Invalidate(ctx, showTimeID)
    }
}

func (s *Service) publishCompleted(ctx context.Context, o *model.Order, show *model.ShowTime) {
    if s.publisher == nil {
        return
    }
    ev := queue.OrderCompletedEvent{
        OrderID:       o.ID.String(),
        ShowTimeID:    show.ID,
        MovieTitle:    show.MovieTitle,
        SeatIDs:       o.SeatIDs(),
        TotalPrice:    o.TotalPrice,
        TotalDiscount: o.TotalDiscount,
        FinalAmount:   o.FinalAmount,
        PromotionIDs:  append([]uint64(nil), o.AppliedPromotionIDs...),
        PaymentMethod: o.PaymentMethod,
        CompletedAt:   s.now().UTC().Format(time.RFC3339),
    }
    if o.CustomerID != nil {
        ev.CustomerID = *o.CustomerID
    }
    if err := s.publisher.PublishOrderCompleted(ctx, ev); err != nil {
        s.logger.Error().Err(err).Str("order_id", o.ID.String()).
            Msg("order.completed event not published")
    }
}

func dedupe(ids []uint64) []uint64 {
    seen := make(map[uint64]struct{}, len(ids))
    out := make([]uint64, 0, len(ids))
    for _, id := range ids {
        if id == 0 {
            continue
        }
        if _, ok := seen[id]; ok {
            continue
        }
        seen[id] = struct{}{}
        out = append(out, id)
    }
    return out
}

func clone(o *model.Order) *model.Order {
    cp := *o
    cp.Details = append([]model.OrderDetail(nil), o.Details...)
    cp.AppliedPromotionIDs = append([]uint64(nil), o.AppliedPromotionIDs...)
    return &cp
}
