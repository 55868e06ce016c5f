// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderCompletedEvent is published when an order is completed and paid.
// It carries enough information for downstream consumers (ticket
// printing, daily revenue reporting) to act without querying the primary
// database.
type OrderCompletedEvent struct {
    OrderID       string   `json:"order_id"`
    ShowTimeID    uint64   `json:"show_time_id"`
    MovieTitle    string   `json:"movie_title"`
    CustomerID    uint64   `json:"customer_id,omitempty"`
    SeatIDs       []uint64 `json:"seat_ids"`
    TotalPrice    int64    `json:"total_price"`
    TotalDiscount int64    `json:"total_discount"`
    FinalAmount   int64    `json:"final_amount"`
    PromotionIDs  []uint64 `json:"promotion_ids,omitempty"`
    PaymentMethod string   `json:"payment_method"`
    CompletedAt   string   `json:"completed_at"`
}
