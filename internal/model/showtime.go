package model

import "time"

// ShowTime represents a scheduled screening of a movie in a particular
// room.  It is read-only input to the booking engine: pricing is resolved
// against StartsAt and seat holds are scoped to the showtime.
//
// Fields:
//  ID         – primary key identifier.
//  MovieID    – movie being screened.
//  MovieTitle – denormalised title for event payloads and receipts.
//  RoomID     – room where the screening takes place.
//  StartsAt   – when the screening begins.
//  EndsAt     – when the screening ends (must be after StartsAt).
//  Status     – current state of the screening (SCHEDULED, CANCELLED, FINISHED).
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type ShowTime struct {
    ID         uint64    // show_times.id
    MovieID    uint64    // show_times.movie_id
    MovieTitle string    // show_times.movie_title
    RoomID     uint64    // show_times.room_id
    StartsAt   time.Time // show_times.starts_at
    EndsAt     time.Time // show_times.ends_at
    Status     string    // show_times.status
    CreatedAt  time.Time // show_times.created_at
    UpdatedAt  time.Time // show_times.updated_at
}

// Product is an add-on item (snacks, drinks, merchandise) that can be
// attached to an order alongside tickets.  Prices are integer VND.
type Product struct {
    ID        uint64    // products.id
    Name      string    // products.name
    Price     int64     // products.price
    IsActive  bool      // products.is_active
    CreatedAt time.Time // products.created_at
    UpdatedAt time.Time // products.updated_at
}

// Customer identifies a registered customer.  Orders may reference a
// customer or be walk-in sales with no customer attached.
type Customer struct {
    ID        uint64    // customers.id
    FullName  string    // customers.full_name
    Phone     string    // customers.phone
    CreatedAt time.Time // customers.created_at
}
