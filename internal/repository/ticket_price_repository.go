package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/cinema-box-office/internal/model"
)

// TicketPriceRepo loads ticket price lines.  Lines are stored across
// three tables: ticket_price_lines (window and validity),
// ticket_price_line_weekdays (one row per applicable weekday) and
// ticket_price_line_prices (one row per seat type).  All timestamps are
// stored in UTC.
type TicketPriceRepo struct {
    db *sql.DB
}

// NewTicketPriceRepo returns a TicketPriceRepo bound to the database.
func NewTicketPriceRepo(db *sql.DB) *TicketPriceRepo { return &TicketPriceRepo{db: db} }

// ActiveLines returns all ACTIVE price lines whose validity period
// contains the given instant, with their weekday sets and per-seat-type
// prices populated.  The resolver narrows these further by weekday and
// time-of-day window; returning the full validity match keeps the query
// simple and the matching logic in one (pure, testable) place.
func (r *TicketPriceRepo) ActiveLines(ctx context.Context, at time.Time) ([]model.TicketPriceLine, error) {
    const q = `SELECT id, name, start_minute, end_minute, effective_from, effective_until, status
               FROM ticket_price_lines
               WHERE status = 'ACTIVE' AND effective_from <= ? AND effective_until > ?`
    utc := at.UTC()
    rows, err := r.db.QueryContext(ctx, q, utc, utc)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var lines []model.TicketPriceLine
    index := make(map[uint64]int)
    for rows.Next() {
        var line model.TicketPriceLine
        var status string
        if err := rows.Scan(&line.ID, &line.Name, &line.StartMinute, &line.EndMinute,
            &line.EffectiveFrom, &line.EffectiveUntil, &status); err != nil {
            return nil, err
        }
        line.Status = model.PriceLineStatus(status)
        line.Weekdays = make(map[time.Weekday]bool)
        line.Prices = make(map[model.SeatType]int64)
        index[line.ID] = len(lines)
        lines = append(lines, line)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if len(lines) == 0 {
        return nil, nil
    }

    if err := r.loadWeekdays(ctx, lines, index); err != nil {
        return nil, err
    }
    if err := r.loadPrices(ctx, lines, index); err != nil {
        return nil, err
    }
    return lines, nil
}

func (r *TicketPriceRepo) loadWeekdays(ctx context.Context, lines []model.TicketPriceLine, index map[uint64]int) error {
    query, args := inClause(`SELECT line_id, weekday FROM ticket_price_line_weekdays WHERE line_id IN `, lineIDs(lines))
    rows, err := r.db.QueryContext(ctx, query, args...)
    if err != nil {
        return err
    }
    defer rows.Close()
    for rows.Next() {
        var lineID uint64
        var weekday int
        if err := rows.Scan(&lineID, &weekday); err != nil {
            return err
        }
        if i, ok := index[lineID]; ok {
            lines[i].Weekdays[time.Weekday(weekday)] = true
        }
    }
    return rows.Err()
}

func (r *TicketPriceRepo) loadPrices(ctx context.Context, lines []model.TicketPriceLine, index map[uint64]int) error {
    query, args := inClause(`SELECT line_id, seat_type, price FROM ticket_price_line_prices WHERE line_id IN `, lineIDs(lines))
    rows, err := r.db.QueryContext(ctx, query, args...)
    if err != nil {
        return err
    }
    defer rows.Close()
    for rows.Next() {
        var lineID uint64
        var seatType string
        var price int64
        if err := rows.Scan(&lineID, &seatType, &price); err != nil {
            return err
        }
        if i, ok := index[lineID]; ok {
            lines[i].Prices[model.SeatType(seatType)] = price
        }
    }
    return rows.Err()
}

func lineIDs(lines []model.TicketPriceLine) []uint64 {
    ids := make([]uint64, len(lines))
    for i, l := range lines {
        ids[i] = l.ID
    }
    return ids
}

// inClause builds "<prefix>(?, ?, ...)" with matching args.
func inClause(prefix string, ids []uint64) (string, []interface{}) {
    query := prefix + "("
    args := make([]interface{}, 0, len(ids))
    for i, id := range ids {
        if i > 0 {
            query += ", "
        }
        query += "?"
        args = append(args, id)
    }
    return query + ")", args
}
