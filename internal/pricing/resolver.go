// Package pricing resolves the ticket price per seat type for a showtime
// instant from a set of time-windowed rate lines.  Resolution is a pure
// function of the line data; the resolver never falls back to a default
// price and never tie-breaks overlapping lines, because either would make
// ticket pricing non-auditable.
package pricing

import (
    "errors"
    "fmt"
    "time"

    "github.com/rs/zerolog"

    "github.com/iliyamo/cinema-box-office/internal/model"
)

// ErrNoApplicablePriceLine is returned when no ACTIVE price line covers
// the requested instant and seat type.
var ErrNoApplicablePriceLine = errors.New("no applicable ticket price line")

// ErrAmbiguousPriceLine is returned when more than one ACTIVE price line
// covers the requested instant and seat type.  This is a configuration
// defect; the resolver logs the conflicting line IDs for operator
// remediation and fails the operation.
var ErrAmbiguousPriceLine = errors.New("ambiguous ticket price line configuration")

// Resolver resolves ticket prices from price lines.
type Resolver struct {
    logger zerolog.Logger
}

// NewResolver returns a Resolver that reports configuration defects on
// the given logger.
func NewResolver(logger zerolog.Logger) *Resolver {
    return &Resolver{logger: logger.With().Str("component", "price-resolver").Logger()}
}

// Resolve returns the ticket price in VND for a seat of the given type at
// the given showtime start instant.  Exactly one ACTIVE line must match;
// zero matches yield ErrNoApplicablePriceLine and two or more yield
// ErrAmbiguousPriceLine.
func (r *Resolver) Resolve(lines []model.TicketPriceLine, at time.Time, seatType model.SeatType) (int64, error) {
    var (
        price    int64
        matched  []uint64
    )
    for _, line := range lines {
        if !lineMatches(line, at) {
            continue
        }
        p, ok := line.Prices[seatType]
        if !ok {
            continue
        }
        matched = append(matched, line.ID)
        price = p
    }
    switch len(matched) {
    case 0:
        return 0, fmt.Errorf("%w: seat type %s at %s", ErrNoApplicablePriceLine, seatType, at.Format(time.RFC3339))
    case 1:
        return price, nil
    default:
        r.logger.Error().
            Uints64("line_ids", matched).
            Str("seat_type", string(seatType)).
            Time("at", at).
            Msg("overlapping active price lines; fix the rate configuration")
        return 0, fmt.Errorf("%w: lines %v overlap for seat type %s", ErrAmbiguousPriceLine, matched, seatType)
    }
}

// lineMatches reports whether the line's status, validity period, weekday
// set and [start,end) time-of-day window all cover the instant.
func lineMatches(line model.TicketPriceLine, at time.Time) bool {
    if line.Status != model.PriceLineActive {
        return false
    }
    if at.Before(line.EffectiveFrom) || !at.Before(line.EffectiveUntil) {
        return false
    }
    if !line.Weekdays[at.Weekday()] {
        return false
    }
    minute := at.Hour()*60 + at.Minute()
    return minute >= line.StartMinute && minute < line.EndMinute
}
