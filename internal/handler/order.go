package handler

import (
    "errors"   // errors.Is comparisons against engine sentinels
    "net/http" // HTTP status codes
    "time"     // formatting timestamps in responses

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/cinema-box-office/internal/model"
    "github.com/iliyamo/cinema-box-office/internal/order"
    "github.com/iliyamo/cinema-box-office/internal/pricing"
    "github.com/iliyamo/cinema-box-office/internal/promotion"
    "github.com/iliyamo/cinema-box-office/internal/repository"
    "github.com/iliyamo/cinema-box-office/internal/reservation"
)

// BookingHandler exposes the order lifecycle over HTTP.  All methods
// assume identity middleware already ran; the handler does not inspect
// the caller beyond that.  Business rules live in the order service,
// the handler only translates between JSON and engine calls.
type BookingHandler struct {
    Orders *order.Service // the order state machine
    logger zerolog.Logger
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(orders *order.Service, logger zerolog.Logger) *BookingHandler {
    if orders == nil {
        panic("nil order service passed to NewBookingHandler")
    }
    return &BookingHandler{Orders: orders, logger: logger.With().Str("component", "booking-handler").Logger()}
}

// orderDetailView is the JSON shape of one order line.
type orderDetailView struct {
    Kind      string `json:"kind"`
    SeatID    uint64 `json:"seat_id,omitempty"`
    SeatType  string `json:"seat_type,omitempty"`
    ProductID uint64 `json:"product_id,omitempty"`
    UnitPrice int64  `json:"unit_price"`
    Quantity  uint32 `json:"quantity"`
    IsGift    bool   `json:"is_gift"`
    LineTotal int64  `json:"line_total"`
}

// orderView is the JSON shape of an order.
type orderView struct {
    ID                  string            `json:"id"`
    CustomerID          *uint64           `json:"customer_id,omitempty"`
    ShowTimeID          uint64            `json:"show_time_id"`
    Details             []orderDetailView `json:"details"`
    DiscountCode        string            `json:"discount_code,omitempty"`
    AppliedPromotionIDs []uint64          `json:"applied_promotion_ids,omitempty"`
    TotalPrice          int64             `json:"total_price"`
    TotalDiscount       int64             `json:"total_discount"`
    FinalAmount         int64             `json:"final_amount"`
    Status              string            `json:"status"`
    PaymentMethod       string            `json:"payment_method,omitempty"`
    CreatedAt           string            `json:"created_at"`
    ExpiresAt           string            `json:"expires_at"`
}

func toOrderView(o *model.Order) orderView {
    details := make([]orderDetailView, 0, len(o.Details))
    for _, d := range o.Details {
        details = append(details, orderDetailView{
            Kind:      string(d.Kind),
            SeatID:    d.SeatID,
            SeatType:  string(d.SeatType),
            ProductID: d.ProductID,
            UnitPrice: d.UnitPrice,
            Quantity:  d.Quantity,
            IsGift:    d.IsGift,
            LineTotal: d.LineTotal(),
        })
    }
    return orderView{
        ID:                  o.ID.String(),
        CustomerID:          o.CustomerID,
        ShowTimeID:          o.ShowTimeID,
        Details:             details,
        DiscountCode:        o.DiscountCode,
        AppliedPromotionIDs: o.AppliedPromotionIDs,
        TotalPrice:          o.TotalPrice,
        TotalDiscount:       o.TotalDiscount,
        FinalAmount:         o.FinalAmount,
        Status:              string(o.Status),
        PaymentMethod:       o.PaymentMethod,
        CreatedAt:           o.CreatedAt.UTC().Format(time.RFC3339),
        ExpiresAt:           o.ExpiresAt.UTC().Format(time.RFC3339),
    }
}

// Create handles POST /v1/orders.  The body selects a showtime and the
// seats to reserve; an optional customer id attaches a known customer.
// On success the seats are held for the reservation window and a 201
// response carries the priced DRAFT order.
func (h *BookingHandler) Create(c echo.Context) error {
    var body struct {
        ShowTimeID uint64   `json:"show_time_id"`
        SeatIDs    []uint64 `json:"seat_ids"`
        CustomerID *uint64  `json:"customer_id"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.ShowTimeID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "show_time_id is required"})
    }
    if len(body.SeatIDs) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
    }
    o, err := h.Orders.Create(c.Request().Context(), body.ShowTimeID, body.SeatIDs, body.CustomerID)
    if err != nil {
        return h.fail(c, err)
    }
    return c.JSON(http.StatusCreated, toOrderView(o))
}

// SetProducts handles PUT /v1/orders/:id/products.  The body replaces
// the order's product lines wholesale and the order is re-priced.
func (h *BookingHandler) SetProducts(c echo.Context) error {
    id, err := orderID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
    }
    var body struct {
        Items []struct {
            ProductID uint64 `json:"product_id"`
            Quantity  uint32 `json:"quantity"`
        } `json:"items"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    items := make([]order.ProductSelection, 0, len(body.Items))
    for _, it := range body.Items {
        items = append(items, order.ProductSelection{ProductID: it.ProductID, Quantity: it.Quantity})
    }
    o, err := h.Orders.SetProducts(c.Request().Context(), id, items)
    if err != nil {
        return h.fail(c, err)
    }
    return c.JSON(http.StatusOK, toOrderView(o))
}

// ApplyDiscount handles POST /v1/orders/:id/discount.  The order is
// left untouched when the code does not apply.
func (h *BookingHandler) ApplyDiscount(c echo.Context) error {
    id, err := orderID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
    }
    var body struct {
        Code string `json:"code"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.Code == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
    }
    o, err := h.Orders.ApplyDiscountCode(c.Request().Context(), id, body.Code)
    if err != nil {
        return h.fail(c, err)
    }
    return c.JSON(http.StatusOK, toOrderView(o))
}

// ClearDiscount handles DELETE /v1/orders/:id/discount.  Removing the
// code restores the totals to their pre-application values.
func (h *BookingHandler) ClearDiscount(c echo.Context) error {
    id, err := orderID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
    }
    o, err := h.Orders.ClearDiscount(c.Request().Context(), id)
    if err != nil {
        return h.fail(c, err)
    }
    return c.JSON(http.StatusOK, toOrderView(o))
}

// Complete handles POST /v1/orders/:id/complete.  Payment happens at
// the till; the body records the method used.
func (h *BookingHandler) Complete(c echo.Context) error {
    id, err := orderID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
    }
    var body struct {
        PaymentMethod string `json:"payment_method"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.PaymentMethod == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_method is required"})
    }
    o, err := h.Orders.Complete(c.Request().Context(), id, body.PaymentMethod)
    if err != nil {
        return h.fail(c, err)
    }
    return c.JSON(http.StatusOK, toOrderView(o))
}

// Cancel handles DELETE /v1/orders/:id.  Cancelling an already terminal
// order is a no-op and still returns 204.
func (h *BookingHandler) Cancel(c echo.Context) error {
    id, err := orderID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
    }
    if err := h.Orders.Cancel(c.Request().Context(), id); err != nil {
        return h.fail(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Get handles GET /v1/orders/:id.
func (h *BookingHandler) Get(c echo.Context) error {
    id, err := orderID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
    }
    o, err := h.Orders.Get(id)
    if err != nil {
        return h.fail(c, err)
    }
    return c.JSON(http.StatusOK, toOrderView(o))
}

func orderID(c echo.Context) (uuid.UUID, error) {
    return uuid.Parse(c.Param("id"))
}

// fail maps engine sentinels to HTTP statuses.  Seat conflicts and
// concurrent state races surface as 409 so the till can refresh and
// retry; an expired reservation is 410 because the order is gone for
// good.
func (h *BookingHandler) fail(c echo.Context, err error) error {
    switch {
    case errors.Is(err, order.ErrOrderNotFound),
        errors.Is(err, repository.ErrShowTimeNotFound),
        errors.Is(err, repository.ErrSeatNotFound),
        errors.Is(err, repository.ErrProductNotFound),
        errors.Is(err, repository.ErrCustomerNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
    case errors.Is(err, reservation.ErrSeatAlreadyHeld),
        errors.Is(err, reservation.ErrSeatAlreadyBooked),
        errors.Is(err, reservation.ErrNoActiveHold),
        errors.Is(err, order.ErrInvalidStateTransition),
        errors.Is(err, promotion.ErrPromotionUsageLimitExceeded):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, reservation.ErrReservationExpired):
        return c.JSON(http.StatusGone, echo.Map{"error": err.Error()})
    case errors.Is(err, order.ErrSeatNotSellable),
        errors.Is(err, order.ErrInvalidQuantity),
        errors.Is(err, promotion.ErrInvalidDiscountCode):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, promotion.ErrPromotionNotApplicable),
        errors.Is(err, pricing.ErrNoApplicablePriceLine):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
    default:
        h.logger.Error().Err(err).Msg("order operation failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
}
