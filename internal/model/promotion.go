package model

import "time"

// PromotionType tags the variant of a promotion line.  Each type has its
// own detail payload; the promotion engine switches exhaustively on it.
type PromotionType string

const (
    PromotionCashRebate     PromotionType = "CASH_REBATE"
    PromotionPriceDiscount  PromotionType = "PRICE_DISCOUNT"
    PromotionGiftProducts   PromotionType = "BUY_TICKETS_GET_PRODUCTS"
    PromotionGiftTickets    PromotionType = "BUY_TICKETS_GET_TICKETS"
)

// PromotionStatus marks whether a promotion line is considered during
// evaluation.
type PromotionStatus string

const (
    PromotionActive   PromotionStatus = "ACTIVE"
    PromotionInactive PromotionStatus = "INACTIVE"
)

// PromotionLine is a single promotional rule.  Lines with a non-empty
// Code must be requested explicitly by the customer; lines with an empty
// Code are auto-applied to every qualifying order.
//
// Fields:
//  ID             – primary key identifier.
//  Code           – discount code ("" = auto-apply).
//  Name           – operator-facing label.
//  Type           – variant tag selecting the Detail payload.
//  EffectiveFrom  – inclusive start of the validity window.
//  EffectiveUntil – exclusive end of the validity window.
//  Status         – ACTIVE or INACTIVE.
//  Detail         – variant payload matching Type.
type PromotionLine struct {
    ID             uint64          // promotion_lines.id
    Code           string          // promotion_lines.code
    Name           string          // promotion_lines.name
    Type           PromotionType   // promotion_lines.type
    EffectiveFrom  time.Time       // promotion_lines.effective_from
    EffectiveUntil time.Time       // promotion_lines.effective_until
    Status         PromotionStatus // promotion_lines.status
    Detail         PromotionDetail // promotion_details row, shaped by Type
}

// ActiveAt reports whether the line is ACTIVE and its validity window
// contains the given instant.
func (p PromotionLine) ActiveAt(at time.Time) bool {
    return p.Status == PromotionActive &&
        !at.Before(p.EffectiveFrom) &&
        at.Before(p.EffectiveUntil)
}

// DiscountBearing reports whether the line reduces the order total
// directly.  At most one discount-bearing promotion may apply to an
// order; gift promotions stack independently.
func (p PromotionLine) DiscountBearing() bool {
    return p.Type == PromotionCashRebate || p.Type == PromotionPriceDiscount
}

// PromotionDetail is the tagged-union payload of a promotion line.  Every
// variant carries its usage limit so the engine can enforce
// usage_count < usage_limit uniformly.
type PromotionDetail interface {
    // Usage returns the configured limit and the usage consumed so far.
    Usage() (limit, used int)
}

// CashRebateDetail takes a flat amount off orders above a minimum value.
type CashRebateDetail struct {
    DiscountValue int64 // flat discount in VND
    MinOrderValue int64 // minimum pre-discount subtotal
    UsageLimit    int
    UsageCount    int
}

func (d CashRebateDetail) Usage() (int, int) { return d.UsageLimit, d.UsageCount }

// PriceDiscountDetail takes a percentage off the subtotal, optionally
// capped.  MaxDiscountValue of zero means uncapped.
type PriceDiscountDetail struct {
    DiscountPercent  int64 // 10 = 10%
    MinOrderValue    int64
    MaxDiscountValue int64 // 0 = no cap
    UsageLimit       int
    UsageCount       int
}

func (d PriceDiscountDetail) Usage() (int, int) { return d.UsageLimit, d.UsageCount }

// GiftProductDetail grants free products when the order contains enough
// seats of the required type.
type GiftProductDetail struct {
    RequiredSeatType     SeatType
    RequiredSeatQuantity int
    GiftProductID        uint64
    GiftQuantity         uint32
    UsageLimit           int
    UsageCount           int
}

func (d GiftProductDetail) Usage() (int, int) { return d.UsageLimit, d.UsageCount }

// GiftTicketDetail grants free seats of a given type when the order
// contains enough seats of the required type.  The gift seats still pass
// through the reservation manager like paid seats; when they cannot be
// held the promotion simply does not apply.
type GiftTicketDetail struct {
    RequiredSeatType     SeatType
    RequiredSeatQuantity int
    GiftSeatType         SeatType
    GiftSeatQuantity     int
    UsageLimit           int
    UsageCount           int
}

func (d GiftTicketDetail) Usage() (int, int) { return d.UsageLimit, d.UsageCount }
