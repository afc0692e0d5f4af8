package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveConfig is returned when no reward config is marked active.
	ErrNoActiveConfig = errors.New("no active reward config")

	// ErrCouponNotFound is returned when a coupon cannot be found
	ErrCouponNotFound = errors.New("coupon not found")

	// ErrCouponCodeTaken is returned when a minted coupon code already exists
	ErrCouponCodeTaken = errors.New("coupon code already exists")

	// ErrCouponAlreadyRevoked is returned when revoking an inactive coupon
	ErrCouponAlreadyRevoked = errors.New("coupon already revoked")

	// ErrSpinNotFound is returned when a spin record cannot be found
	ErrSpinNotFound = errors.New("spin record not found")

	// ErrSpinWithoutCoupon is returned when revoking the coupon of a spin that minted none
	ErrSpinWithoutCoupon = errors.New("spin did not issue a coupon")

	// ErrSpinSlotTaken is returned when another spin already holds the window slot
	ErrSpinSlotTaken = errors.New("spin window slot already taken")

	// ErrCartNotFound is returned when the subject has no cart
	ErrCartNotFound = errors.New("cart not found")

	// ErrLimitExceeded is returned when the atomic usage increment loses the race
	// or the coupon is no longer redeemable at consumption time.
	ErrLimitExceeded = errors.New("coupon usage limit exceeded")

	// ErrConfigConflict is returned when another config was activated
	// concurrently with this update.
	ErrConfigConflict = errors.New("reward config changed concurrently")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")
)

// ConfigurationError reports a reward config that cannot be accepted.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return e.Err.Error() }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// EligibilityError explains why a subject may not spin. Reason is shown to
// the user as-is.
type EligibilityError struct {
	Reason string
}

func (e *EligibilityError) Error() string { return "not eligible: " + e.Reason }

// RedemptionError explains why a coupon cannot be applied to a cart.
type RedemptionError struct {
	Reason string
}

func (e *RedemptionError) Error() string { return "coupon not redeemable: " + e.Reason }

// PersistenceError wraps a store failure. Nothing was committed; the caller
// may retry the whole operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

func persistence(op string, err error) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
