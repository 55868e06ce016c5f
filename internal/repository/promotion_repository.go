package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/iliyamo/cinema-box-office/internal/model"
    "github.com/iliyamo/cinema-box-office/internal/promotion"
)

// PromotionRepo loads promotion lines and owns the durable usage
// counters.  Each promotion_lines row has exactly one promotion_details
// row; the detail columns are nullable and which of them are populated
// depends on the line's type, mirroring the tagged union in the model.
type PromotionRepo struct {
    db *sql.DB
}

// NewPromotionRepo returns a PromotionRepo bound to the database.
func NewPromotionRepo(db *sql.DB) *PromotionRepo { return &PromotionRepo{db: db} }

const promotionColumns = `
    l.id, l.code, l.name, l.type, l.effective_from, l.effective_until, l.status,
    d.discount_value, d.discount_percent, d.min_order_value, d.max_discount_value,
    d.required_seat_type, d.required_seat_quantity,
    d.gift_product_id, d.gift_quantity, d.gift_seat_type, d.gift_seat_quantity,
    d.usage_limit, d.usage_count`

// ActiveLines returns all ACTIVE promotion lines whose validity window
// contains the given instant.
func (r *PromotionRepo) ActiveLines(ctx context.Context, at time.Time) ([]model.PromotionLine, error) {
    q := `SELECT` + promotionColumns + `
          FROM promotion_lines l
          JOIN promotion_details d ON d.promotion_line_id = l.id
          WHERE l.status = 'ACTIVE' AND l.effective_from <= ? AND l.effective_until > ?`
    utc := at.UTC()
    rows, err := r.db.QueryContext(ctx, q, utc, utc)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var lines []model.PromotionLine
    for rows.Next() {
        line, err := scanPromotion(rows)
        if err != nil {
            return nil, err
        }
        lines = append(lines, line)
    }
    return lines, rows.Err()
}

// FindByCode returns the promotion line carrying the code, or (nil, nil)
// when no such line exists.  Window and status checks are left to the
// engine so an expired code is reported as invalid rather than missing.
func (r *PromotionRepo) FindByCode(ctx context.Context, code string) (*model.PromotionLine, error) {
    q := `SELECT` + promotionColumns + `
          FROM promotion_lines l
          JOIN promotion_details d ON d.promotion_line_id = l.id
          WHERE l.code = ?`
    row := r.db.QueryRowContext(ctx, q, code)
    line, err := scanPromotion(row)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &line, nil
}

// IncrementUsage consumes one use of the promotion.  The UPDATE is
// conditional on usage_count < usage_limit, so the counter can never
// overshoot no matter how many completions race; when no row qualifies
// the promotion is exhausted.
func (r *PromotionRepo) IncrementUsage(ctx context.Context, lineID uint64) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE promotion_details
         SET usage_count = usage_count + 1
         WHERE promotion_line_id = ? AND usage_count < usage_limit`,
        lineID,
    )
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return promotion.ErrPromotionUsageLimitExceeded
    }
    return nil
}

// ReleaseUsage gives back one use after a completion aborted downstream
// of IncrementUsage.  Completed orders never release.
func (r *PromotionRepo) ReleaseUsage(ctx context.Context, lineID uint64) error {
    _, err := r.db.ExecContext(ctx,
        `UPDATE promotion_details
         SET usage_count = usage_count - 1
         WHERE promotion_line_id = ? AND usage_count > 0`,
        lineID,
    )
    return err
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...interface{}) error
}

// scanPromotion reads one joined line+detail row and builds the variant
// payload matching the line's type.
func scanPromotion(row rowScanner) (model.PromotionLine, error) {
    var (
        line               model.PromotionLine
        typ, status        string
        discountValue      sql.NullInt64
        discountPercent    sql.NullInt64
        minOrderValue      sql.NullInt64
        maxDiscountValue   sql.NullInt64
        requiredSeatType   sql.NullString
        requiredSeatQty    sql.NullInt64
        giftProductID      sql.NullInt64
        giftQuantity       sql.NullInt64
        giftSeatType       sql.NullString
        giftSeatQuantity   sql.NullInt64
        usageLimit         int
        usageCount         int
    )
    err := row.Scan(&line.ID, &line.Code, &line.Name, &typ,
        &line.EffectiveFrom, &line.EffectiveUntil, &status,
        &discountValue, &discountPercent, &minOrderValue, &maxDiscountValue,
        &requiredSeatType, &requiredSeatQty,
        &giftProductID, &giftQuantity, &giftSeatType, &giftSeatQuantity,
        &usageLimit, &usageCount)
    if err != nil {
        return line, err
    }
    line.Type = model.PromotionType(typ)
    line.Status = model.PromotionStatus(status)

    switch line.Type {
    case model.PromotionCashRebate:
        line.Detail = model.CashRebateDetail{
            DiscountValue: discountValue.Int64,
            MinOrderValue: minOrderValue.Int64,
            UsageLimit:    usageLimit,
            UsageCount:    usageCount,
        }
    case model.PromotionPriceDiscount:
        line.Detail = model.PriceDiscountDetail{
            DiscountPercent:  discountPercent.Int64,
            MinOrderValue:    minOrderValue.Int64,
            MaxDiscountValue: maxDiscountValue.Int64,
            UsageLimit:       usageLimit,
            UsageCount:       usageCount,
        }
    case model.PromotionGiftProducts:
        line.Detail = model.GiftProductDetail{
            RequiredSeatType:     model.SeatType(requiredSeatType.String),
            RequiredSeatQuantity: int(requiredSeatQty.Int64),
            GiftProductID:        uint64(giftProductID.Int64),
            GiftQuantity:         uint32(giftQuantity.Int64),
            UsageLimit:           usageLimit,
            UsageCount:           usageCount,
        }
    case model.PromotionGiftTickets:
        line.Detail = model.GiftTicketDetail{
            RequiredSeatType:     model.SeatType(requiredSeatType.String),
            RequiredSeatQuantity: int(requiredSeatQty.Int64),
            GiftSeatType:         model.SeatType(giftSeatType.String),
            GiftSeatQuantity:     int(giftSeatQuantity.Int64),
            UsageLimit:           usageLimit,
            UsageCount:           usageCount,
        }
    default:
        return line, fmt.Errorf("promotion line %d has unknown type %q", line.ID, typ)
    }
    return line, nil
}
