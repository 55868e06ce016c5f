package handler

import (
    "encoding/json"
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/cinema-box-office/internal/cache"
    "github.com/iliyamo/cinema-box-office/internal/repository"
    "github.com/iliyamo/cinema-box-office/internal/reservation"
)

// SeatMapHandler renders the live seat availability of a showtime.  The
// seat picker polls this endpoint, so serialized snapshots are cached
// for a few seconds and invalidated by the order service whenever seat
// state changes.
type SeatMapHandler struct {
    Catalog *repository.CatalogRepo
    Seats   *reservation.Manager
    Cache   *cache.SeatMap
    logger  zerolog.Logger
}

// NewSeatMapHandler constructs a SeatMapHandler.  Cache may be nil, in
// which case every request computes a fresh snapshot.
func NewSeatMapHandler(catalog *repository.CatalogRepo, seats *reservation.Manager, seatMapCache *cache.SeatMap, logger zerolog.Logger) *SeatMapHandler {
    if catalog == nil || seats == nil {
        panic("nil dependency passed to NewSeatMapHandler")
    }
    return &SeatMapHandler{
        Catalog: catalog,
        Seats:   seats,
        Cache:   seatMapCache,
        logger:  logger.With().Str("component", "seatmap-handler").Logger(),
    }
}

type seatAvailabilityView struct {
    SeatID     uint64 `json:"seat_id"`
    RowLabel   string `json:"row_label"`
    SeatNumber uint32 `json:"seat_number"`
    SeatType   string `json:"seat_type"`
    Status     string `json:"status"`
}

type seatMapView struct {
    ShowTimeID uint64                 `json:"show_time_id"`
    Seats      []seatAvailabilityView `json:"seats"`
}

// Get handles GET /v1/showtimes/:id/seats.  Seat status is FREE, HELD
// or BOOKED; an inactive seat reads BLOCKED so the picker greys it out.
func (h *SeatMapHandler) Get(c echo.Context) error {
    showTimeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || showTimeID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
    }
    ctx := c.Request().Context()

    if h.Cache != nil {
        if payload, ok := h.Cache.Get(ctx, showTimeID); ok {
            return c.JSONBlob(http.StatusOK, payload)
        }
    }

    show, err := h.Catalog.ShowTime(ctx, showTimeID)
    if err != nil {
        if errors.Is(err, repository.ErrShowTimeNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
        }
        h.logger.Error().Err(err).Uint64("show_time_id", showTimeID).Msg("showtime lookup failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
    seats, err := h.Catalog.SeatsByRoom(ctx, show.RoomID)
    if err != nil {
        h.logger.Error().Err(err).Uint64("room_id", show.RoomID).Msg("seat lookup failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }

    taken := h.Seats.Snapshot(showTimeID)
    view := seatMapView{ShowTimeID: showTimeID, Seats: make([]seatAvailabilityView, 0, len(seats))}
    for _, seat := range seats {
        status := string(reservation.SeatFree)
        if !seat.IsActive {
            status = "BLOCKED"
        } else if st, ok := taken[seat.ID]; ok {
            status = string(st)
        }
        view.Seats = append(view.Seats, seatAvailabilityView{
            SeatID:     seat.ID,
            RowLabel:   seat.RowLabel,
            SeatNumber: seat.SeatNumber,
            SeatType:   string(seat.Type),
            Status:     status,
        })
    }

    payload, err := json.Marshal(view)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
    if h.Cache != nil {
        h.Cache.Set(ctx, showTimeID, payload)
    }
    return c.JSONBlob(http.StatusOK, payload)
}
