package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrOptimisticLock     = errors.New("record was modified concurrently")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrActiveReservations = errors.New("product has active reservations")
	ErrReservationsLapsed = errors.New("order has released reservations")
	ErrOfferExhausted     = errors.New("offer usage limit reached")
)

// translateError maps driver and GORM errors onto the package sentinels.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return ErrDuplicateKey
	}
	return err
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "SQLSTATE 23505")
}
