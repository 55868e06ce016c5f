package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/cinema-box-office/internal/model"
)

// OrderRepo persists orders and their detail rows.  Save is an upsert:
// the order row is replaced and the detail rows rewritten inside one
// transaction, so the persisted totals always match a single lifecycle
// transition.
type OrderRepo struct {
    db *sql.DB
}

// NewOrderRepo returns an OrderRepo bound to the database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// Save writes the order and its details atomically.
func (r *OrderRepo) Save(ctx context.Context, o *model.Order) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    const upsert = `INSERT INTO orders
        (id, customer_id, show_time_id, discount_code, total_price, total_discount,
         final_amount, status, payment_method, created_at, expires_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE
        discount_code = VALUES(discount_code),
        total_price = VALUES(total_price),
        total_discount = VALUES(total_discount),
        final_amount = VALUES(final_amount),
        status = VALUES(status),
        payment_method = VALUES(payment_method),
        expires_at = VALUES(expires_at)`

    var customerID interface{}
    if o.CustomerID != nil {
        customerID = *o.CustomerID
    }
    if _, err = tx.ExecContext(ctx, upsert,
        o.ID.String(), customerID, o.ShowTimeID, o.DiscountCode,
        o.TotalPrice, o.TotalDiscount, o.FinalAmount, string(o.Status),
        o.PaymentMethod, o.CreatedAt.UTC(), o.ExpiresAt.UTC(),
    ); err != nil {
        return err
    }

    if _, err = tx.ExecContext(ctx, `DELETE FROM order_details WHERE order_id = ?`, o.ID.String()); err != nil {
        return err
    }
    if len(o.Details) > 0 {
        query := `INSERT INTO order_details
            (order_id, kind, seat_id, seat_type, product_id, unit_price, quantity, is_gift) VALUES `
        args := make([]interface{}, 0, len(o.Details)*8)
        for i, d := range o.Details {
            if i > 0 {
                query += ","
            }
            query += "(?, ?, ?, ?, ?, ?, ?, ?)"
            args = append(args, o.ID.String(), string(d.Kind), nullableID(d.SeatID),
                string(d.SeatType), nullableID(d.ProductID), d.UnitPrice, d.Quantity, d.IsGift)
        }
        if _, err = tx.ExecContext(ctx, query, args...); err != nil {
            return err
        }
    }

    if _, err = tx.ExecContext(ctx, `DELETE FROM order_promotions WHERE order_id = ?`, o.ID.String()); err != nil {
        return err
    }
    if len(o.AppliedPromotionIDs) > 0 {
        query := `INSERT INTO order_promotions (order_id, promotion_line_id) VALUES `
        args := make([]interface{}, 0, len(o.AppliedPromotionIDs)*2)
        for i, id := range o.AppliedPromotionIDs {
            if i > 0 {
                query += ","
            }
            query += "(?, ?)"
            args = append(args, o.ID.String(), id)
        }
        if _, err = tx.ExecContext(ctx, query, args...); err != nil {
            return err
        }
    }

    if err = tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// BookedSeats returns, per showtime, the seat ids of ticket rows on
// COMPLETED orders for showtimes that have not yet ended.  Used at
// startup to seed the reservation manager with durable bookings.
func (r *OrderRepo) BookedSeats(ctx context.Context, now time.Time) (map[uint64][]uint64, error) {
    const q = `SELECT o.show_time_id, d.seat_id
               FROM orders o
               JOIN order_details d ON d.order_id = o.id
               JOIN show_times st ON st.id = o.show_time_id
               WHERE o.status = 'COMPLETED' AND d.kind = 'TICKET' AND st.ends_at > ?`
    rows, err := r.db.QueryContext(ctx, q, now.UTC())
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    booked := make(map[uint64][]uint64)
    for rows.Next() {
        var showTimeID, seatID uint64
        if err := rows.Scan(&showTimeID, &seatID); err != nil {
            return nil, err
        }
        booked[showTimeID] = append(booked[showTimeID], seatID)
    }
    return booked, rows.Err()
}

// CancelStale marks every persisted DRAFT and PRICED order as
// CANCELLED.  Run at startup: seat holds live in memory only, so orders
// that were open when the previous process stopped lost their holds and
// can never be completed.
func (r *OrderRepo) CancelStale(ctx context.Context) (int64, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE orders SET status = 'CANCELLED' WHERE status IN ('DRAFT', 'PRICED')`)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// nullableID maps a zero id to NULL so unused reference columns stay
// clean.
func nullableID(id uint64) interface{} {
    if id == 0 {
        return nil
    }
    return id
}
