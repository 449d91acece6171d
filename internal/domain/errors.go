package domain

import "errors"

var (
	ErrInvalidPoint  = errors.New("invalid geographic point")
	ErrInvalidPolicy = errors.New("invalid proximity policy")

	// Returned by geocoders when an address has no match.
	ErrAddressNotFound = errors.New("address not found")
)
