package repository

import (
    "context"
    "database/sql"
    "fmt"

    "github.com/iliyamo/cinema-box-office/internal/model"
)

// CatalogRepo is the read-only view of the surrounding application's
// reference data: showtimes, seats, products and customers.  The booking
// engine never writes through it.
type CatalogRepo struct {
    db *sql.DB
}

// NewCatalogRepo returns a CatalogRepo bound to the database.
func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

// ShowTime fetches one showtime by id.
func (r *CatalogRepo) ShowTime(ctx context.Context, id uint64) (*model.ShowTime, error) {
    const q = `SELECT id, movie_id, movie_title, room_id, starts_at, ends_at, status, created_at, updated_at
               FROM show_times WHERE id = ?`
    var st model.ShowTime
    err := r.db.QueryRowContext(ctx, q, id).Scan(&st.ID, &st.MovieID, &st.MovieTitle,
        &st.RoomID, &st.StartsAt, &st.EndsAt, &st.Status, &st.CreatedAt, &st.UpdatedAt)
    if err == sql.ErrNoRows {
        return nil, ErrShowTimeNotFound
    }
    if err != nil {
        return nil, err
    }
    return &st, nil
}

// SeatsByIDs fetches the given seats.  Every requested id must exist;
// otherwise ErrSeatNotFound is returned so a typo in a seat list cannot
// silently shrink an order.
func (r *CatalogRepo) SeatsByIDs(ctx context.Context, ids []uint64) ([]model.Seat, error) {
    if len(ids) == 0 {
        return nil, nil
    }
    query, args := inClause(`SELECT id, room_id, row_label, seat_number, seat_type, is_active, created_at, updated_at
                             FROM seats WHERE id IN `, ids)
    rows, err := r.db.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    seats, err := scanSeats(rows)
    if err != nil {
        return nil, err
    }
    if len(seats) != len(ids) {
        return nil, fmt.Errorf("%w: requested %d seats, found %d", ErrSeatNotFound, len(ids), len(seats))
    }
    return seats, nil
}

// SeatsByRoom lists all of the room's seats, ordered by row and number.
// Inactive seats are included so the seat map can render them as blocked.
func (r *CatalogRepo) SeatsByRoom(ctx context.Context, roomID uint64) ([]model.Seat, error) {
    const q = `SELECT id, room_id, row_label, seat_number, seat_type, is_active, created_at, updated_at
               FROM seats
               WHERE room_id = ?
               ORDER BY row_label, seat_number`
    rows, err := r.db.QueryContext(ctx, q, roomID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return scanSeats(rows)
}

// SeatsByRoomAndType lists the room's active seats of one type, ordered
// by row and number so gift-seat picking is deterministic.
func (r *CatalogRepo) SeatsByRoomAndType(ctx context.Context, roomID uint64, seatType model.SeatType) ([]model.Seat, error) {
    const q = `SELECT id, room_id, row_label, seat_number, seat_type, is_active, created_at, updated_at
               FROM seats
               WHERE room_id = ? AND seat_type = ? AND is_active = 1
               ORDER BY row_label, seat_number`
    rows, err := r.db.QueryContext(ctx, q, roomID, string(seatType))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return scanSeats(rows)
}

// ProductsByIDs fetches the given active products; every requested id
// must exist.
func (r *CatalogRepo) ProductsByIDs(ctx context.Context, ids []uint64) ([]model.Product, error) {
    if len(ids) == 0 {
        return nil, nil
    }
    query, args := inClause(`SELECT id, name, price, is_active, created_at, updated_at
                             FROM products WHERE is_active = 1 AND id IN `, ids)
    rows, err := r.db.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var products []model.Product
    found := make(map[uint64]bool, len(ids))
    for rows.Next() {
        var p model.Product
        if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
            return nil, err
        }
        products = append(products, p)
        found[p.ID] = true
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    for _, id := range ids {
        if !found[id] {
            return nil, fmt.Errorf("%w: product %d", ErrProductNotFound, id)
        }
    }
    return products, nil
}

// CustomerByPhone looks up a customer by phone number for the cashier's
// walk-in flow.
func (r *CatalogRepo) CustomerByPhone(ctx context.Context, phone string) (*model.Customer, error) {
    const q = `SELECT id, full_name, phone, created_at FROM customers WHERE phone = ?`
    var c model.Customer
    err := r.db.QueryRowContext(ctx, q, phone).Scan(&c.ID, &c.FullName, &c.Phone, &c.CreatedAt)
    if err == sql.ErrNoRows {
        return nil, ErrCustomerNotFound
    }
    if err != nil {
        return nil, err
    }
    return &c, nil
}

func scanSeats(rows *sql.Rows) ([]model.Seat, error) {
    var seats []model.Seat
    for rows.Next() {
        var s model.Seat
        var seatType string
        if err := rows.Scan(&s.ID, &s.RoomID, &s.RowLabel, &s.SeatNumber, &seatType,
            &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
            return nil, err
        }
        s.Type = model.SeatType(seatType)
        seats = append(seats, s)
    }
    return seats, rows.Err()
}
