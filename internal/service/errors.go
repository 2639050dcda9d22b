package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrForbidden              = errors.New("forbidden")
	ErrRateLimited            = errors.New("rate limited")
	ErrItemNotFound           = errors.New("item not found")
	ErrAlreadyOwned           = errors.New("item already owned")
	ErrNotOwned               = errors.New("item not owned")
	ErrSlugTaken              = errors.New("slug already exists")
	ErrSlugImmutable          = errors.New("slug cannot be changed")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrAggregationUnavailable = errors.New("aggregation unavailable")
)

// InsufficientBalanceError 可用余额不足
type InsufficientBalanceError struct {
	Price     int64
	Balance   int64
	Shortfall int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: need %d more", e.Shortfall)
}

// ValidationError 输入校验失败
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
