package model

import "time"

// SeatType classifies a seat for pricing purposes.  Ticket price lines
// carry one price per seat type, so every seat must declare exactly one.
type SeatType string

const (
    SeatTypeNormal SeatType = "NORMAL"
    SeatTypeVIP    SeatType = "VIP"
    SeatTypeCouple SeatType = "COUPLE"
)

// Seat describes a physical seat in a room.  Seats are static reference
// data: the booking engine reads them but never mutates them.  Seats are
// uniquely identified by their room, row label and seat number.
//
// Fields:
//  ID         – primary key identifier.
//  RoomID     – room to which this seat belongs.
//  RowLabel   – letter or string designating the row.
//  SeatNumber – number of the seat within the row.
//  Type       – pricing class of the seat (NORMAL, VIP, COUPLE).
//  IsActive   – whether the seat is sellable.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Seat struct {
    ID         uint64    // seats.id
    RoomID     uint64    // seats.room_id
    RowLabel   string    // seats.row_label
    SeatNumber uint32    // seats.seat_number
    Type       SeatType  // seats.seat_type
    IsActive   bool      // seats.is_active
    CreatedAt  time.Time // seats.created_at
    UpdatedAt  time.Time // seats.updated_at
}
