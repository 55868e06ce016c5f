package order

import (
    "context"
    "errors"
    "sort"
    "sync"
    "testing"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/cinema-box-office/internal/model"
    "github.com/iliyamo/cinema-box-office/internal/pricing"
    "github.com/iliyamo/cinema-box-office/internal/promotion"
    "github.com/iliyamo/cinema-box-office/internal/queue"
    "github.com/iliyamo/cinema-box-office/internal/reservation"
)

// The fixture screens a Saturday 19:00 showtime in room 3 with four
// NORMAL seats (1-4) and two VIP seats (5, 6).  The active price line
// charges 90000 for NORMAL and 120000 for VIP at that slot.
var showStart = time.Date(2025, 6, 14, 19, 0, 0, 0, time.UTC)

const holdWindow = 360 * time.Second

type fakeClock struct {
    mu sync.Mutex
    t  time.Time
}

func (c *fakeClock) Now() time.Time {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
    c.mu.Lock()
    c.t = c.t.Add(d)
    c.mu.Unlock()
}

type fakeCatalog struct {
    shows    map[uint64]model.ShowTime
    seats    map[uint64]model.Seat
    products map[uint64]model.Product
}

func (f *fakeCatalog) ShowTime(_ context.Context, id uint64) (*model.ShowTime, error) {
    st, ok := f.shows[id]
    if !ok {
        return nil, errors.New("showtime not found")
    }
    return &st, nil
}

func (f *fakeCatalog) SeatsByIDs(_ context.Context, ids []uint64) ([]model.Seat, error) {
    out := make([]model.Seat, 0, len(ids))
    for _, id := range ids {
        s, ok := f.seats[id]
        if !ok {
            return nil, errors.New("seat not found")
        }
        out = append(out, s)
    }
    return out, nil
}

func (f *fakeCatalog) SeatsByRoomAndType(_ context.Context, roomID uint64, seatType model.SeatType) ([]model.Seat, error) {
    var out []model.Seat
    for _, s := range f.seats {
        if s.RoomID == roomID && s.Type == seatType && s.IsActive {
            out = append(out, s)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out, nil
}

func (f *fakeCatalog) ProductsByIDs(_ context.Context, ids []uint64) ([]model.Product, error) {
    out := make([]model.Product, 0, len(ids))
    for _, id := range ids {
        p, ok := f.products[id]
        if !ok {
            return nil, errors.New("product not found")
        }
        out = append(out, p)
    }
    return out, nil
}

type fakePrices struct {
    lines []model.TicketPriceLine
}

func (f *fakePrices) ActiveLines(_ context.Context, _ time.Time) ([]model.TicketPriceLine, error) {
    return f.lines, nil
}

type fakeStore struct {
    mu    sync.Mutex
    saved map[uuid.UUID]model.Order
}

func (f *fakeStore) Save(_ context.Context, o *model.Order) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    cp := *o
    cp.Details = append([]model.OrderDetail(nil), o.Details...)
    f.saved[o.ID] = cp
    return nil
}

func (f *fakeStore) status(id uuid.UUID) model.OrderStatus {
    f.mu.Lock()
    defer f.mu.Unlock()
    return f.saved[id].Status
}

type fakePublisher struct {
    mu     sync.Mutex
    events []queue.OrderCompletedEvent
}

func (f *fakePublisher) PublishOrderCompleted(_ context.Context, ev queue.OrderCompletedEvent) error {
    f.mu.Lock()
    f.events = append(f.events, ev)
    f.mu.Unlock()
    return nil
}

// promoStore is an in-memory promotion.Store with the conditional
// increment contract of the MySQL repository.
type promoStore struct {
    mu    sync.Mutex
    lines map[uint64]*model.PromotionLine
}

func newPromoStore(lines ...model.PromotionLine) *promoStore {
    s := &promoStore{lines: make(map[uint64]*model.PromotionLine)}
    for i := range lines {
        l := lines[i]
        s.lines[l.ID] = &l
    }
    return s
}

func (s *promoStore) ActiveLines(_ context.Context, at time.Time) ([]model.PromotionLine, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var out []model.PromotionLine
    for _, l := range s.lines {
        if l.ActiveAt(at) {
            out = append(out, *l)
        }
    }
    return out, nil
}

func (s *promoStore) FindByCode(_ context.Context, code string) (*model.PromotionLine, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, l := range s.lines {
        if l.Code == code {
            cp := *l
            return &cp, nil
        }
    }
    return nil, nil
}

func (s *promoStore) IncrementUsage(_ context.Context, lineID uint64) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    l := s.lines[lineID]
    limit, used := l.Detail.Usage()
    if used >= limit {
        return promotion.ErrPromotionUsageLimitExceeded
    }
    l.Detail = bumpUsage(l.Detail, 1)
    return nil
}

func (s *promoStore) ReleaseUsage(_ context.Context, lineID uint64) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    l := s.lines[lineID]
    l.Detail = bumpUsage(l.Detail, -1)
    return nil
}

func (s *promoStore) used(lineID uint64) int {
    s.mu.Lock()
    defer s.mu.Unlock()
    _, used := s.lines[lineID].Detail.Usage()
    return used
}

func bumpUsage(detail model.PromotionDetail, delta int) model.PromotionDetail {
    switch d := detail.(type) {
    case model.CashRebateDetail:
        d.UsageCount += delta
        return d
    case model.PriceDiscountDetail:
        d.UsageCount += delta
        return d
    case model.GiftProductDetail:
        d.UsageCount += delta
        return d
    case model.GiftTicketDetail:
        d.UsageCount += delta
        return d
    }
    return detail
}

type fixture struct {
    clock  *fakeClock
    seats  *reservation.Manager
    store  *fakeStore
    promos *promoStore
    pub    *fakePublisher
    svc    *Service
}

func newFixture(promoLines ...model.PromotionLine) *fixture {
    logger := zerolog.Nop()
    clock := &fakeClock{t: showStart.Add(-2 * time.Hour)}

    seats := reservation.NewManager(logger)
    seats.SetClock(clock.Now)

    catalog := &fakeCatalog{
        shows: map[uint64]model.ShowTime{
            7: {ID: 7, MovieID: 1, MovieTitle: "Inside Out 2", RoomID: 3, StartsAt: showStart, EndsAt: showStart.Add(2 * time.Hour), Status: "SCHEDULED"},
        },
        seats: map[uint64]model.Seat{
            1: {ID: 1, RoomID: 3, RowLabel: "A", SeatNumber: 1, Type: model.SeatTypeNormal, IsActive: true},
            2: {ID: 2, RoomID: 3, RowLabel: "A", SeatNumber: 2, Type: model.SeatTypeNormal, IsActive: true},
            3: {ID: 3, RoomID: 3, RowLabel: "A", SeatNumber: 3, Type: model.SeatTypeNormal, IsActive: true},
            4: {ID: 4, RoomID: 3, RowLabel: "A", SeatNumber: 4, Type: model.SeatTypeNormal, IsActive: true},
            5: {ID: 5, RoomID: 3, RowLabel: "B", SeatNumber: 1, Type: model.SeatTypeVIP, IsActive: true},
            6: {ID: 6, RoomID: 3, RowLabel: "B", SeatNumber: 2, Type: model.SeatTypeVIP, IsActive: true},
        },
        products: map[uint64]model.Product{
            10: {ID: 10, Name: "Popcorn L", Price: 50000, IsActive: true},
            11: {ID: 11, Name: "Cola", Price: 30000, IsActive: true},
        },
    }
    prices := &fakePrices{lines: []model.TicketPriceLine{{
        ID:          1,
        Name:        "weekend evening",
        Weekdays:    map[time.Weekday]bool{time.Saturday: true, time.Sunday: true},
        StartMinute: 18 * 60,
        EndMinute:   24 * 60,
        Prices: map[model.SeatType]int64{
            model.SeatTypeNormal: 90000,
            model.SeatTypeVIP:    120000,
            model.SeatTypeCouple: 200000,
        },
        EffectiveFrom:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
        EffectiveUntil: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
        Status:         model.PriceLineActive,
    }}}

    store := &fakeStore{saved: make(map[uuid.UUID]model.Order)}
    promos := newPromoStore(promoLines...)
    pub := &fakePublisher{}

    svc := NewService(Config{
        Seats:     seats,
        Resolver:  pricing.NewResolver(logger),
        Promos:    promotion.NewEngine(promos, logger),
        Catalog:   catalog,
        Prices:    prices,
        Store:     store,
        Publisher: pub,
        HoldTTL:   holdWindow,
    }, logger)
    svc.SetClock(clock.Now)

    return &fixture{clock: clock, seats: seats, store: store, promos: promos, pub: pub, svc: svc}
}

func percentOffCode(id uint64, code string, percent, cap int64, limit int) model.PromotionLine {
    return model.PromotionLine{
        ID:             id,
        Code:           code,
        Name:           "percent off",
        Type:           model.PromotionPriceDiscount,
        EffectiveFrom:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
        EffectiveUntil: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
        Status:         model.PromotionActive,
        Detail: model.PriceDiscountDetail{
            DiscountPercent:  percent,
            MaxDiscountValue: cap,
            UsageLimit:       limit,
        },
    }
}

func TestCreateResolvesSaturdayEveningPrices(t *testing.T) {
    f := newFixture()

    o, err := f.svc.Create(context.Background(), 7, []uint64{1, 2, 5}, nil)
    require.NoError(t, err)

    assert.Equal(t, model.OrderDraft, o.Status)
    assert.Len(t, o.Details, 3)
    assert.Equal(t, int64(2*90000+120000), o.TotalPrice)
    assert.Equal(t, int64(0), o.TotalDiscount)
    assert.Equal(t, int64(300000), o.FinalAmount)
    assert.Equal(t, f.clock.Now().Add(holdWindow), o.ExpiresAt)
    assert.Equal(t, model.OrderDraft, f.store.status(o.ID))
}

func TestCreateRejectsOverlappingHold(t *testing.T) {
    f := newFixture()

    _, err := f.svc.Create(context.Background(), 7, []uint64{1, 2}, nil)
    require.NoError(t, err)

    _, err = f.svc.Create(context.Background(), 7, []uint64{2, 3}, nil)
    require.ErrorIs(t, err, reservation.ErrSeatAlreadyHeld)

    // Seat 3 was not taken by the failed attempt.
    _, err = f.svc.Create(context.Background(), 7, []uint64{3}, nil)
    require.NoError(t, err)
}

func TestSetProductsRepricesOrder(t *testing.T) {
    f := newFixture()

    o, err := f.svc.Create(context.Background(), 7, []uint64{1, 2, 5}, nil)
    require.NoError(t, err)

    f.clock.Advance(time.Minute)
    o, err = f.svc.SetProducts(context.Background(), o.ID, []ProductSelection{{ProductID: 10, Quantity: 2}})
    require.NoError(t, err)

    assert.Equal(t, model.OrderPriced, o.Status)
    assert.Equal(t, int64(300000+2*50000), o.TotalPrice)
    assert.Equal(t, int64(400000), o.FinalAmount)
    // Advancing through the flow refreshed the reservation window.
    assert.Equal(t, f.clock.Now().Add(holdWindow), o.ExpiresAt)

    // Replacing the selection drops the previous product rows.
    o, err = f.svc.SetProducts(context.Background(), o.ID, []ProductSelection{{ProductID: 11, Quantity: 1}})
    require.NoError(t, err)
    assert.Equal(t, int64(300000+30000), o.TotalPrice)

    _, err = f.svc.SetProducts(context.Background(), o.ID, []ProductSelection{{ProductID: 10, Quantity: 0}})
    require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestSetProductsRejectionLeavesOrderUnchanged(t *testing.T) {
    f := newFixture(model.PromotionLine{
        ID:             21,
        Code:           "MIN200",
        Name:           "big basket",
        Type:           model.PromotionPriceDiscount,
        EffectiveFrom:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
        EffectiveUntil: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
        Status:         model.PromotionActive,
        Detail: model.PriceDiscountDetail{
            DiscountPercent: 10,
            MinOrderValue:   200000,
            UsageLimit:      100,
        },
    })

    o, err := f.svc.Create(context.Background(), 7, []uint64{1, 2}, nil)
    require.NoError(t, err)
    o, err = f.svc.SetProducts(context.Background(), o.ID, []ProductSelection{{ProductID: 10, Quantity: 1}})
    require.NoError(t, err)
    o, err = f.svc.ApplyDiscountCode(context.Background(), o.ID, "MIN200")
    require.NoError(t, err)
    require.Equal(t, int64(230000), o.TotalPrice)
    require.Equal(t, int64(207000), o.FinalAmount)

    // Dropping the popcorn takes the subtotal below the code's minimum,
    // so the rewrite is rejected and must not half-apply.
    _, err = f.svc.SetProducts(context.Background(), o.ID, nil)
    require.ErrorIs(t, err, promotion.ErrPromotionNotApplicable)

    got, err := f.svc.Get(o.ID)
    require.NoError(t, err)
    assert.Equal(t, o.Details, got.Details)
    assert.Equal(t, int64(230000), got.TotalPrice)
    assert.Equal(t, int64(23000), got.TotalDiscount)
    assert.Equal(t, int64(207000), got.FinalAmount)
    assert.Equal(t, "MIN200", got.DiscountCode)
    assert.Equal(t, o.ExpiresAt, got.ExpiresAt)
}

func TestDiscountCodeRoundTrip(t *testing.T) {
    f := newFixture(percentOffCode(20, "SUMMER10", 10, 20000, 100))

    o, err := f.svc.Create(context.Background(), 7, []uint64{1, 2, 5}, nil)
    require.NoError(t, err)
    require.Equal(t, int64(300000), o.FinalAmount)

    // 10% of 300000 is 30000, capped at 20000.
    o, err = f.svc.ApplyDiscountCode(context.Background(), o.ID, "SUMMER10")
    require.NoError(t, err)
    assert.Equal(t, int64(20000), o.TotalDiscount)
    assert.Equal(t, int64(280000), o.FinalAmount)
    assert.Equal(t, "SUMMER10", o.DiscountCode)

    // Clearing restores the pre-application totals exactly.
    o, err = f.svc.ClearDiscount(context.Background(), o.ID)
    require.NoError(t, err)
    assert.Equal(t, int64(0), o.TotalDiscount)
    assert.Equal(t, int64(300000), o.FinalAmount)
    assert.Empty(t, o.DiscountCode)
    assert.Zero(t, f.promos.used(20))
}

func TestApplyUnknownCodeLeavesOrderUntouched(t *testing.T) {
    f := newFixture(percentOffCode(20, "SUMMER10", 10, 20000, 100))

    o, err := f.svc.Create(context.Background(), 7, []uint64{1}, nil)
    require.NoError(t, err)

    _, err = f.svc.ApplyDiscountCode(context.Background(), o.ID, "NOPE")
    require.ErrorIs(t, err, promotion.ErrInvalidDiscountCode)

    got, err := f.svc.Get(o.ID)
    require.NoError(t, err)
    assert.Empty(t, got.DiscountCode)
    assert.Equal(t, int64(90000), got.FinalAmount)
}

func TestCompleteBooksSeatsAndConsumesUsage(t *testing.T) {
    f := newFixture(percentOffCode(20, "SUMMER10", 10, 20000, 100))

    o, err := f.svc.Create(context.Background(), 7, []uint64{1, 2, 5}, nil)
    require.NoError(t, err)
    _, err = f.svc.ApplyDiscountCode(context.Background(), o.ID, "SUMMER10")
    require.NoError(t, err)

    o, err = f.svc.Complete(context.Background(), o.ID, "CASH")
    require.NoError(t, err)
    assert.Equal(t, model.OrderCompleted, o.Status)
    assert.Equal(t, "CASH", o.PaymentMethod)
    assert.Equal(t, int64(280000), o.FinalAmount)
    assert.Equal(t, 1, f.promos.used(20))
    assert.Equal(t, model.OrderCompleted, f.store.status(o.ID))

    require.Len(t, f.pub.events, 1)
    assert.Equal(t, o.ID.String(), f.pub.events[0].OrderID)
    assert.Equal(t, int64(280000), f.pub.events[0].FinalAmount)

    // Booked seats stay unavailable for new orders.
    _, err = f.svc.Create(context.Background(), 7, []uint64{1}, nil)
    require.ErrorIs(t, err, reservation.ErrSeatAlreadyBooked)
}

func TestCompleteAfterReservationWindow(t *testing.T) {
    f := newFixture()

    o, err := f.svc.Create(context.Background(), 7, []uint64{1, 2}, nil)
    require.NoError(t, err)

    f.clock.Advance(holdWindow + time.Second)
    _, err = f.svc.Complete(context.Background(), o.ID, "CASH")
    require.ErrorIs(t, err, reservation.ErrReservationExpired)

    // The expired hold no longer blocks the seats.
    _, err = f.svc.Create(context.Background(), 7, []uint64{1, 2}, nil)
    require.NoError(t, err)
}

func TestExpireDueCancelsOverdueOrders(t *testing.T) {
    f := newFixture()

    o, err := f.svc.Create(context.Background(), 7, []uint64{1}, nil)
    require.NoError(t, err)

    assert.Zero(t, f.svc.ExpireDue(context.Background(), f.clock.Now()))
    f.clock.Advance(holdWindow + time.Second)
    assert.Equal(t, 1, f.svc.ExpireDue(context.Background(), f.clock.Now()))

    got, err := f.svc.Get(o.ID)
    require.NoError(t, err)
    assert.Equal(t, model.OrderCancelled, got.Status)

    _, err = f.svc.Complete(context.Background(), o.ID, "CASH")
    require.ErrorIs(t, err, ErrInvalidStateTransition)

    // Expiry is idempotent.
    assert.Zero(t, f.svc.ExpireDue(context.Background(), f.clock.Now()))
}

func TestSweepEvictsFinishedOrders(t *testing.T) {
    f := newFixture()

    cancelled, err := f.svc.Create(context.Background(), 7, []uint64{1}, nil)
    require.NoError(t, err)
    require.NoError(t, f.svc.Cancel(context.Background(), cancelled.ID))

    completed, err := f.svc.Create(context.Background(), 7, []uint64{2}, nil)
    require.NoError(t, err)
    _, err = f.svc.Complete(context.Background(), completed.ID, "CASH")
    require.NoError(t, err)

    // Inside the retention window finished orders stay readable.
    f.svc.ExpireDue(context.Background(), f.clock.Now())
    _, err = f.svc.Get(cancelled.ID)
    require.NoError(t, err)
    _, err = f.svc.Get(completed.ID)
    require.NoError(t, err)

    f.clock.Advance(holdWindow + terminalRetention + time.Second)
    live, err := f.svc.Create(context.Background(), 7, []uint64{3}, nil)
    require.NoError(t, err)

    f.svc.ExpireDue(context.Background(), f.clock.Now())
    _, err = f.svc.Get(cancelled.ID)
    assert.ErrorIs(t, err, ErrOrderNotFound)
    _, err = f.svc.Get(completed.ID)
    assert.ErrorIs(t, err, ErrOrderNotFound)

    // Open orders are untouched, and committed seats stay booked after
    // the entry is gone.
    _, err = f.svc.Get(live.ID)
    require.NoError(t, err)
    _, err = f.svc.Create(context.Background(), 7, []uint64{2}, nil)
    require.ErrorIs(t, err, reservation.ErrSeatAlreadyBooked)
}

func TestUsageLimitNeverDoubleConsumed(t *testing.T) {
    f := newFixture(percentOffCode(20, "LAST1", 10, 0, 1))

    a, err := f.svc.Create(context.Background(), 7, []uint64{1}, nil)
    require.NoError(t, err)
    b, err := f.svc.Create(context.Background(), 7, []uint64{2}, nil)
    require.NoError(t, err)

    // Applying never consumes, so both orders may carry the code.
    _, err = f.svc.ApplyDiscountCode(context.Background(), a.ID, "LAST1")
    require.NoError(t, err)
    _, err = f.svc.ApplyDiscountCode(context.Background(), b.ID, "LAST1")
    require.NoError(t, err)

    _, err = f.svc.Complete(context.Background(), a.ID, "CASH")
    require.NoError(t, err)
    require.Equal(t, 1, f.promos.used(20))

    // The second completion sees the exhausted code and fails without
    // touching the counter; the order stays open.
    _, err = f.svc.Complete(context.Background(), b.ID, "CASH")
    require.ErrorIs(t, err, promotion.ErrPromotionUsageLimitExceeded)
    assert.Equal(t, 1, f.promos.used(20))

    got, err := f.svc.Get(b.ID)
    require.NoError(t, err)
    assert.False(t, got.Status.Terminal())
}

func TestGiftProductAutoApplies(t *testing.T) {
    f := newFixture(model.PromotionLine{
        ID:             30,
        Name:           "vip combo",
        Type:           model.PromotionGiftProducts,
        EffectiveFrom:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
        EffectiveUntil: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
        Status:         model.PromotionActive,
        Detail: model.GiftProductDetail{
            RequiredSeatType:     model.SeatTypeVIP,
            RequiredSeatQuantity: 2,
            GiftProductID:        11,
            GiftQuantity:         1,
            UsageLimit:           100,
        },
    })

    o, err := f.svc.Create(context.Background(), 7, []uint64{5, 6}, nil)
    require.NoError(t, err)

    var gift *model.OrderDetail
    for i := range o.Details {
        if o.Details[i].IsGift {
            gift = &o.Details[i]
        }
    }
    require.NotNil(t, gift)
    assert.Equal(t, model.DetailProduct, gift.Kind)
    assert.Equal(t, uint64(11), gift.ProductID)
    assert.Equal(t, int64(30000), gift.UnitPrice)

    assert.Equal(t, int64(240000+30000), o.TotalPrice)
    assert.Equal(t, int64(30000), o.TotalDiscount)
    assert.Equal(t, int64(240000), o.FinalAmount)
    assert.Equal(t, []uint64{30}, o.AppliedPromotionIDs)

    // One VIP seat no longer qualifies; the grant is withdrawn.
    f2 := newFixture(model.PromotionLine{
        ID:             30,
        Type:           model.PromotionGiftProducts,
        EffectiveFrom:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
        EffectiveUntil: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
        Status:         model.PromotionActive,
        Detail: model.GiftProductDetail{
            RequiredSeatType:     model.SeatTypeVIP,
            RequiredSeatQuantity: 2,
            GiftProductID:        11,
            GiftQuantity:         1,
            UsageLimit:           100,
        },
    })
    o2, err := f2.svc.Create(context.Background(), 7, []uint64{1, 5}, nil)
    require.NoError(t, err)
    assert.Empty(t, o2.AppliedPromotionIDs)
    assert.Equal(t, int64(210000), o2.FinalAmount)
}

func TestGiftSeatsAreHeldUnderTheOrder(t *testing.T) {
    f := newFixture(model.PromotionLine{
        ID:             40,
        Name:           "vip pair bonus",
        Type:           model.PromotionGiftTickets,
        EffectiveFrom:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
        EffectiveUntil: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
        Status:         model.PromotionActive,
        Detail: model.GiftTicketDetail{
            RequiredSeatType:     model.SeatTypeVIP,
            RequiredSeatQuantity: 2,
            GiftSeatType:         model.SeatTypeNormal,
            GiftSeatQuantity:     1,
            UsageLimit:           100,
        },
    })

    o, err := f.svc.Create(context.Background(), 7, []uint64{5, 6}, nil)
    require.NoError(t, err)

    var giftSeat uint64
    for _, d := range o.Details {
        if d.IsGift && d.Kind == model.DetailTicket {
            giftSeat = d.SeatID
        }
    }
    require.NotZero(t, giftSeat)
    assert.Equal(t, int64(240000+90000), o.TotalPrice)
    assert.Equal(t, int64(90000), o.TotalDiscount)
    assert.Equal(t, int64(240000), o.FinalAmount)

    // The gift seat is held like a paid one.
    _, err = f.svc.Create(context.Background(), 7, []uint64{giftSeat}, nil)
    require.ErrorIs(t, err, reservation.ErrSeatAlreadyHeld)
}

func TestFinalAmountNeverNegative(t *testing.T) {
    f := newFixture(model.PromotionLine{
        ID:             50,
        Code:           "BIGREBATE",
        Type:           model.PromotionCashRebate,
        EffectiveFrom:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
        EffectiveUntil: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
        Status:         model.PromotionActive,
        Detail: model.CashRebateDetail{
            DiscountValue: 150000,
            UsageLimit:    100,
        },
    })

    o, err := f.svc.Create(context.Background(), 7, []uint64{1}, nil)
    require.NoError(t, err)

    o, err = f.svc.ApplyDiscountCode(context.Background(), o.ID, "BIGREBATE")
    require.NoError(t, err)
    assert.Equal(t, int64(90000), o.TotalPrice)
    assert.Equal(t, int64(150000), o.TotalDiscount)
    assert.Equal(t, int64(0), o.FinalAmount)
}

func TestCancelReleasesSeatsAndIsIdempotent(t *testing.T) {
    f := newFixture()

    o, err := f.svc.Create(context.Background(), 7, []uint64{1, 2}, nil)
    require.NoError(t, err)

    require.NoError(t, f.svc.Cancel(context.Background(), o.ID))
    require.NoError(t, f.svc.Cancel(context.Background(), o.ID))

    got, err := f.svc.Get(o.ID)
    require.NoError(t, err)
    assert.Equal(t, model.OrderCancelled, got.Status)

    _, err = f.svc.Create(context.Background(), 7, []uint64{1, 2}, nil)
    require.NoError(t, err)

    _, err = f.svc.SetProducts(context.Background(), o.ID, nil)
    require.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestGetUnknownOrder(t *testing.T) {
    f := newFixture()
    _, err := f.svc.Get(uuid.New())
    require.ErrorIs(t, err, ErrOrderNotFound)
}
