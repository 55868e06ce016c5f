// Package repository provides MySQL data access for the booking engine.
// Sentinel errors let handlers distinguish failure scenarios without
// inspecting SQL details.
package repository

import "errors"

// ErrShowTimeNotFound is returned when a showtime id does not exist.
var ErrShowTimeNotFound = errors.New("showtime not found")

// ErrSeatNotFound is returned when one or more requested seat ids do
// not exist.
var ErrSeatNotFound = errors.New("seat not found")

// ErrProductNotFound is returned when one or more requested product ids
// do not exist or are inactive.
var ErrProductNotFound = errors.New("product not found")

// ErrCustomerNotFound is returned when no customer matches the lookup.
var ErrCustomerNotFound = errors.New("customer not found")
