package model

import "time"

// PriceLineStatus marks whether a ticket price line participates in
// price resolution.
type PriceLineStatus string

const (
    PriceLineActive   PriceLineStatus = "ACTIVE"
    PriceLineInactive PriceLineStatus = "INACTIVE"
)

// TicketPriceLine defines the ticket price per seat type for a window of
// time.  A line applies to a showtime when the line is ACTIVE, its
// validity period contains the showtime's start instant, its weekday set
// contains the showtime's weekday and its [StartMinute, EndMinute)
// time-of-day window contains the showtime's minute of day.
//
// The schedule is expected to be configured so that exactly one ACTIVE
// line matches any given (instant, seat type).  Overlapping windows are a
// configuration defect that the resolver surfaces instead of tie-breaking.
//
// Fields:
//  ID             – primary key identifier.
//  Name           – operator-facing label (e.g. "weekend evening").
//  Weekdays       – weekdays on which the line applies.
//  StartMinute    – inclusive start of the time-of-day window, minutes since midnight.
//  EndMinute      – exclusive end of the time-of-day window, minutes since midnight.
//  Prices         – ticket price in VND per seat type.
//  EffectiveFrom  – inclusive start of the validity period.
//  EffectiveUntil – exclusive end of the validity period.
//  Status         – ACTIVE or INACTIVE.
type TicketPriceLine struct {
    ID             uint64                 // ticket_price_lines.id
    Name           string                 // ticket_price_lines.name
    Weekdays       map[time.Weekday]bool  // ticket_price_line_weekdays rows
    StartMinute    int                    // ticket_price_lines.start_minute
    EndMinute      int                    // ticket_price_lines.end_minute
    Prices         map[SeatType]int64     // ticket_price_line_prices rows
    EffectiveFrom  time.Time              // ticket_price_lines.effective_from
    EffectiveUntil time.Time              // ticket_price_lines.effective_until
    Status         PriceLineStatus        // ticket_price_lines.status
}
