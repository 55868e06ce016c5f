// Package promotion evaluates active promotion lines against an order's
// contents and produces a discount plus any granted free items.
// Evaluation is side-effect-free and idempotent so orders can be
// re-priced freely while being edited; usage counters move only through
// ConsumeUsage at order completion.
package promotion

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/rs/zerolog"

    "github.com/iliyamo/cinema-box-office/internal/model"
)

// ErrInvalidDiscountCode is returned when a supplied code does not match
// an ACTIVE promotion line inside its validity window.
var ErrInvalidDiscountCode = errors.New("invalid discount code")

// ErrPromotionNotApplicable is returned when an explicitly coded
// promotion's preconditions are not met by the order.
var ErrPromotionNotApplicable = errors.New("promotion not applicable to this order")

// ErrPromotionUsageLimitExceeded is returned when a promotion's usage
// limit has been exhausted.
var ErrPromotionUsageLimitExceeded = errors.New("promotion usage limit exceeded")

// Store provides promotion lines and owns the durable usage counters.
//
// IncrementUsage must be conditional: it consumes one use only while
// usage_count < usage_limit and returns ErrPromotionUsageLimitExceeded
// otherwise, so the counter can never overshoot however many callers
// race.  ReleaseUsage undoes an increment when a completion fails after
// consuming; completed orders never release (irreversible by design).
type Store interface {
    ActiveLines(ctx context.Context, at time.Time) ([]model.PromotionLine, error)
    // FindByCode returns the line carrying the code, or (nil, nil) when
    // no such line exists.
    FindByCode(ctx context.Context, code string) (*model.PromotionLine, error)
    IncrementUsage(ctx context.Context, lineID uint64) error
    ReleaseUsage(ctx context.Context, lineID uint64) error
}

// OrderView is the slice of an order the engine needs: the pre-discount
// subtotal and how many paid seats of each type the order contains.
type OrderView struct {
    Subtotal       int64
    SeatTypeCounts map[model.SeatType]int
}

// GiftProductGrant is a free product granted by a promotion.
type GiftProductGrant struct {
    PromotionID uint64
    ProductID   uint64
    Quantity    uint32
}

// GiftSeatRequest asks the order layer to reserve free seats of a type.
// The seats go through the same hold path as paid seats; when they cannot
// be held the order layer discards the grant and this promotion does not
// apply.
type GiftSeatRequest struct {
    PromotionID uint64
    SeatType    model.SeatType
    Quantity    int
}

// Evaluation is the outcome of evaluating promotions against an order.
type Evaluation struct {
    Discount            int64
    GiftProducts        []GiftProductGrant
    GiftSeatRequests    []GiftSeatRequest
    AppliedPromotionIDs []uint64
}

// Engine evaluates promotion lines and guards usage consumption.
type Engine struct {
    store  Store
    logger zerolog.Logger
}

// NewEngine returns an Engine backed by the given store.
func NewEngine(store Store, logger zerolog.Logger) *Engine {
    return &Engine{
        store:  store,
        logger: logger.With().Str("component", "promotion-engine").Logger(),
    }
}

// Evaluate computes the discount and gift grants for the order view.
//
// With a code, only the single matching line is considered and unmet
// preconditions surface as errors.  Without a code, all ACTIVE in-window
// auto-apply lines are evaluated: the discount-bearing line yielding the
// largest discount wins (lowest ID on ties, for determinism) and gift
// lines stack independently; lines that do not qualify are skipped
// silently.  Evaluation never mutates usage counters.
func (e *Engine) Evaluate(ctx context.Context, view OrderView, code string, at time.Time) (Evaluation, error) {
    if code != "" {
        return e.evaluateCode(ctx, view, code, at)
    }
    return e.evaluateAuto(ctx, view, at)
}

func (e *Engine) evaluateCode(ctx context.Context, view OrderView, code string, at time.Time) (Evaluation, error) {
    line, err := e.store.FindByCode(ctx, code)
    if err != nil {
        return Evaluation{}, fmt.Errorf("look up discount code: %w", err)
    }
    if line == nil || !line.ActiveAt(at) {
        return Evaluation{}, ErrInvalidDiscountCode
    }
    if limit, used := line.Detail.Usage(); used >= limit {
        return Evaluation{}, ErrPromotionUsageLimitExceeded
    }
    outcome, ok := apply(*line, view)
    if !ok {
        return Evaluation{}, ErrPromotionNotApplicable
    }
    return outcome, nil
}

func (e *Engine) evaluateAuto(ctx context.Context, view OrderView, at time.Time) (Evaluation, error) {
    lines, err := e.store.ActiveLines(ctx, at)
    if err != nil {
        return Evaluation{}, fmt.Errorf("load active promotions: %w", err)
    }

    var result Evaluation
    var best *Evaluation
    for _, line := range lines {
        if line.Code != "" || !line.ActiveAt(at) {
            continue
        }
        if limit, used := line.Detail.Usage(); used >= limit {
            continue
        }
        outcome, ok := apply(line, view)
        if !ok {
            continue
        }
        if line.DiscountBearing() {
            // Only one discount-bearing promotion may be active on an
            // order; keep the most favourable one.
            if best == nil || outcome.Discount > best.Discount ||
                (outcome.Discount == best.Discount && outcome.AppliedPromotionIDs[0] < best.AppliedPromotionIDs[0]) {
                o := outcome
                best = &o
            }
            continue
        }
        result.GiftProducts = append(result.GiftProducts, outcome.GiftProducts...)
        result.GiftSeatRequests = append(result.GiftSeatRequests, outcome.GiftSeatRequests...)
        result.AppliedPromotionIDs = append(result.AppliedPromotionIDs, outcome.AppliedPromotionIDs...)
    }
    if best != nil {
        result.Discount = best.Discount
        result.AppliedPromotionIDs = append(result.AppliedPromotionIDs, best.AppliedPromotionIDs...)
    }
    return result, nil
}

// apply computes a single line's effect.  The second return value
// reports whether the line's preconditions are met.
func apply(line model.PromotionLine, view OrderView) (Evaluation, bool) {
    switch d := line.Detail.(type) {
    case model.CashRebateDetail:
        if view.Subtotal < d.MinOrderValue {
            return Evaluation{}, false
        }
        return Evaluation{
            Discount:            d.DiscountValue,
            AppliedPromotionIDs: []uint64{line.ID},
        }, true

    case model.PriceDiscountDetail:
        if view.Subtotal < d.MinOrderValue {
            return Evaluation{}, false
        }
        discount := view.Subtotal * d.DiscountPercent / 100
        if d.MaxDiscountValue > 0 && discount > d.MaxDiscountValue {
            discount = d.MaxDiscountValue
        }
        return Evaluation{
            Discount:            discount,
            AppliedPromotionIDs: []uint64{line.ID},
        }, true

    case model.GiftProductDetail:
        if view.SeatTypeCounts[d.RequiredSeatType] < d.RequiredSeatQuantity {
            return Evaluation{}, false
        }
        return Evaluation{
            GiftProducts: []GiftProductGrant{{
                PromotionID: line.ID,
                ProductID:   d.GiftProductID,
                Quantity:    d.GiftQuantity,
            }},
            AppliedPromotionIDs: []uint64{line.ID},
        }, true

    case model.GiftTicketDetail:
        if view.SeatTypeCounts[d.RequiredSeatType] < d.RequiredSeatQuantity {
            return Evaluation{}, false
        }
        return Evaluation{
            GiftSeatRequests: []GiftSeatRequest{{
                PromotionID: line.ID,
                SeatType:    d.GiftSeatType,
                Quantity:    d.GiftSeatQuantity,
            }},
            AppliedPromotionIDs: []uint64{line.ID},
        }, true

    default:
        // Unknown variant in the data is a configuration defect; it
        // never applies.
        return Evaluation{}, false
    }
}

// ConsumeUsage consumes one use of every given promotion line.  On
// failure it releases the increments already made and reports which line
// was exhausted, so completion stays all-or-nothing.
func (e *Engine) ConsumeUsage(ctx context.Context, lineIDs []uint64) error {
    consumed := make([]uint64, 0, len(lineIDs))
    for _, id := range lineIDs {
        if err := e.store.IncrementUsage(ctx, id); err != nil {
            e.releaseUsage(ctx, consumed)
            return fmt.Errorf("promotion %d: %w", id, err)
        }
        consumed = append(consumed, id)
    }
    return nil
}

// ReleaseUsage undoes previously consumed uses after a completion failed
// downstream of ConsumeUsage.
func (e *Engine) ReleaseUsage(ctx context.Context, lineIDs []uint64) {
    e.releaseUsage(ctx, lineIDs)
}

func (e *Engine) releaseUsage(ctx context.Context, lineIDs []uint64) {
    for _, id := range lineIDs {
        if err := e.store.ReleaseUsage(ctx, id); err != nil {
            e.logger.Error().Err(err).Uint64("promotion_id", id).
                Msg("failed to release promotion usage after aborted completion")
        }
    }
}
