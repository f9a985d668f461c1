package domain

import "errors"

var (
	// ErrInvalidInput is returned when a fire cannot be built from the given pixels.
	ErrInvalidInput = errors.New("invalid input")
	// ErrFireInvalid is returned when pixels are attributed to an invalidated fire.
	ErrFireInvalid = errors.New("fire is invalid")
	// ErrUnknownFire is returned for ids absent from the collection.
	ErrUnknownFire = errors.New("unknown fire")
	// ErrTimeRegression is returned when the collection clock would move backwards.
	ErrTimeRegression = errors.New("time step moves backwards")
)
