package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
	"github.com/fairyhunter13/spin-reward-engine/internal/service"
)

const consumePath = "/internal/orders/coupon/consume"

func consumeBody(orderID, couponID, userID, guestID string) string {
	return fmt.Sprintf(`{"orderId":%q,"couponId":%q,"userId":%q,"guestId":%q}`, orderID, couponID, userID, guestID)
}

func TestConsumeCoupon_Success(t *testing.T) {
	couponID := uuid.New()
	s := newTestServices()
	var (
		gotOrder   string
		gotCoupon  uuid.UUID
		gotSubject model.Subject
	)
	s.reconciler.consumeFn = func(ctx context.Context, orderID string, id uuid.UUID, subject model.Subject) (*service.ConsumeResult, error) {
		gotOrder, gotCoupon, gotSubject = orderID, id, subject
		return &service.ConsumeResult{CouponCode: "SPIN-ABCD2345", UsedCount: 1}, nil
	}

	status, body := doRequest(t, setupTestApp(s), http.MethodPost, consumePath,
		consumeBody("ord-1", couponID.String(), "u1", ""), "", "X-Internal-Key", "internal-key")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SPIN-ABCD2345", body["couponCode"])
	assert.Equal(t, float64(1), body["usedCount"])
	assert.Equal(t, false, body["alreadyConsumed"])
	assert.Equal(t, "ord-1", gotOrder)
	assert.Equal(t, couponID, gotCoupon)
	assert.Equal(t, "user:u1", gotSubject.Key())
}

func TestConsumeCoupon_Replay(t *testing.T) {
	s := newTestServices()
	s.reconciler.consumeFn = func(ctx context.Context, orderID string, id uuid.UUID, subject model.Subject) (*service.ConsumeResult, error) {
		return &service.ConsumeResult{CouponCode: "SPIN-ABCD2345", UsedCount: 1, AlreadyConsumed: true}, nil
	}

	status, body := doRequest(t, setupTestApp(s), http.MethodPost, consumePath,
		consumeBody("ord-1", uuid.NewString(), "", "g1"), "", "X-Internal-Key", "internal-key")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["alreadyConsumed"])
}

func TestConsumeCoupon_LimitExceeded(t *testing.T) {
	s := newTestServices()
	s.reconciler.consumeFn = func(ctx context.Context, orderID string, id uuid.UUID, subject model.Subject) (*service.ConsumeResult, error) {
		return nil, fmt.Errorf("increment usage: %w", service.ErrLimitExceeded)
	}

	status, body := doRequest(t, setupTestApp(s), http.MethodPost, consumePath,
		consumeBody("ord-2", uuid.NewString(), "u1", ""), "", "X-Internal-Key", "internal-key")

	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "coupon usage limit exceeded", body["error"])
	assert.Equal(t, false, body["applied"])
}

func TestConsumeCoupon_Validation(t *testing.T) {
	couponID := uuid.NewString()
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"missing order", consumeBody("", couponID, "u1", ""), "invalid request: orderId is required"},
		{"blank order", consumeBody("  ", couponID, "u1", ""), "invalid request: orderId cannot be whitespace only"},
		{"bad coupon id", consumeBody("ord-1", "SPIN-1", "u1", ""), "invalid request: couponId must be a UUID"},
		{"no subject", consumeBody("ord-1", couponID, "", ""), "invalid request: userId is required"},
		{"malformed json", `{"orderId":`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServices()
			s.reconciler.consumeFn = func(ctx context.Context, orderID string, id uuid.UUID, subject model.Subject) (*service.ConsumeResult, error) {
				t.Error("reconciler must not be reached")
				return nil, nil
			}

			status, body := doRequest(t, setupTestApp(s), http.MethodPost, consumePath, tt.body, "", "X-Internal-Key", "internal-key")

			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestConsumeCoupon_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"unknown coupon", service.ErrCouponNotFound, http.StatusNotFound, "coupon not found"},
		{"store failure", &service.PersistenceError{Op: "consume", Err: errors.New("conn reset")}, http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServices()
			s.reconciler.consumeFn = func(ctx context.Context, orderID string, id uuid.UUID, subject model.Subject) (*service.ConsumeResult, error) {
				return nil, tt.err
			}

			status, body := doRequest(t, setupTestApp(s), http.MethodPost, consumePath,
				consumeBody("ord-1", uuid.NewString(), "u1", ""), "", "X-Internal-Key", "internal-key")

			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestConsumeCoupon_RequiresInternalKey(t *testing.T) {
	body := consumeBody("ord-1", uuid.NewString(), "u1", "")

	status, resp := doRequest(t, setupTestApp(newTestServices()), http.MethodPost, consumePath, body, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid internal key", resp["error"])

	status, _ = doRequest(t, setupTestApp(newTestServices()), http.MethodPost, consumePath, body, "", "X-Internal-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, status)

	// A user token is not a substitute for the internal key.
	status, _ = doRequest(t, setupTestApp(newTestServices()), http.MethodPost, consumePath, body, userToken(t))
	assert.Equal(t, http.StatusUnauthorized, status)
}
