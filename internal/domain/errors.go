package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidID           = errors.New("invalid id")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrQuantityExceedsPlan = errors.New("quantity exceeds planned")
	ErrNotEligible         = errors.New("not eligible for inspection")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrStorage             = errors.New("storage failure")
)
