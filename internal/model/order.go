package model

import (
    "time"

    "github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.  COMPLETED and
// CANCELLED are terminal; no transition leaves them.
type OrderStatus string

const (
    OrderDraft     OrderStatus = "DRAFT"
    OrderPriced    OrderStatus = "PRICED"
    OrderCompleted OrderStatus = "COMPLETED"
    OrderCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
    return s == OrderCompleted || s == OrderCancelled
}

// DetailKind distinguishes ticket rows from product rows in an order.
type DetailKind string

const (
    DetailTicket  DetailKind = "TICKET"
    DetailProduct DetailKind = "PRODUCT"
)

// OrderDetail is one line of an order: a seat ticket or an add-on
// product.  Gift rows carry the item's regular unit price so the value
// granted by a promotion stays auditable, but they count toward the
// discount rather than the total.
//
// Fields:
//  Kind      – TICKET or PRODUCT.
//  SeatID    – seat reference (ticket rows only).
//  SeatType  – pricing class of the seat (ticket rows only).
//  ProductID – product reference (product rows only).
//  UnitPrice – regular price per unit in VND.
//  Quantity  – number of units (always 1 for ticket rows).
//  IsGift    – granted free of charge by a promotion.
type OrderDetail struct {
    Kind      DetailKind // order_details.kind
    SeatID    uint64     // order_details.seat_id (ticket rows)
    SeatType  SeatType   // order_details.seat_type (ticket rows)
    ProductID uint64     // order_details.product_id (product rows)
    UnitPrice int64      // order_details.unit_price
    Quantity  uint32     // order_details.quantity
    IsGift    bool       // order_details.is_gift
}

// LineTotal returns UnitPrice * Quantity.
func (d OrderDetail) LineTotal() int64 {
    return d.UnitPrice * int64(d.Quantity)
}

// Order aggregates the seats and products a customer is buying for one
// showtime, together with the priced totals.  The order exclusively owns
// its Details slice.  Totals satisfy, after every mutation:
//
//   TotalPrice    = Σ line totals, gift rows valued at regular price
//   TotalDiscount = promotion discount + Σ gift line totals
//   FinalAmount   = max(0, TotalPrice - TotalDiscount)
type Order struct {
    ID                  uuid.UUID     // orders.id
    CustomerID          *uint64       // orders.customer_id (nil = walk-in)
    ShowTimeID          uint64        // orders.show_time_id
    Details             []OrderDetail // order_details rows
    DiscountCode        string        // orders.discount_code ("" = none)
    AppliedPromotionIDs []uint64      // order_promotions rows
    TotalPrice          int64         // orders.total_price
    TotalDiscount       int64         // orders.total_discount
    FinalAmount         int64         // orders.final_amount
    Status              OrderStatus   // orders.status
    PaymentMethod       string        // orders.payment_method (set on completion)
    CreatedAt           time.Time     // orders.created_at
    ExpiresAt           time.Time     // orders.expires_at
}

// SeatIDs returns the seat IDs of all ticket rows, gifts included.
func (o *Order) SeatIDs() []uint64 {
    ids := make([]uint64, 0, len(o.Details))
    for _, d := range o.Details {
        if d.Kind == DetailTicket {
            ids = append(ids, d.SeatID)
        }
    }
    return ids
}

// PaidSeatTypeCounts counts non-gift ticket rows per seat type.  Gift
// seats do not satisfy the seat-quantity precondition of another
// promotion.
func (o *Order) PaidSeatTypeCounts() map[SeatType]int {
    counts := make(map[SeatType]int)
    for _, d := range o.Details {
        if d.Kind == DetailTicket && !d.IsGift {
            counts[d.SeatType]++
        }
    }
    return counts
}

// Subtotal returns the pre-discount total of all non-gift rows.
func (o *Order) Subtotal() int64 {
    var sum int64
    for _, d := range o.Details {
        if !d.IsGift {
            sum += d.LineTotal()
        }
    }
    return sum
}
