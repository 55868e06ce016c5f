package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-box-office/internal/repository"
)

// CustomerHandler looks up customers for the cashier's walk-in flow.
// Attaching a customer to an order is optional; the lookup exists so
// members can collect loyalty benefits at the till.
type CustomerHandler struct {
    Catalog *repository.CatalogRepo
}

// NewCustomerHandler constructs a CustomerHandler.
func NewCustomerHandler(catalog *repository.CatalogRepo) *CustomerHandler {
    if catalog == nil {
        panic("nil catalog passed to NewCustomerHandler")
    }
    return &CustomerHandler{Catalog: catalog}
}

// Lookup handles GET /v1/customers?phone=...  It returns the matching
// customer or 404.
func (h *CustomerHandler) Lookup(c echo.Context) error {
    phone := c.QueryParam("phone")
    if phone == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone is required"})
    }
    customer, err := h.Catalog.CustomerByPhone(c.Request().Context(), phone)
    if err != nil {
        if errors.Is(err, repository.ErrCustomerNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "customer not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "id":        customer.ID,
        "full_name": customer.FullName,
        "phone":     customer.Phone,
    })
}
