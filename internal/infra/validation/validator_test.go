package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleCommand struct {
	ListingID string `validate:"required"`
	Guests    int    `validate:"gte=1"`
	Status    string `validate:"omitempty,oneof=PENDING CONFIRMED"`
}

func TestValidatorAcceptsValidMessage(t *testing.T) {
	v := New()
	require.NoError(t, v.Validate(context.Background(), sampleCommand{ListingID: "l1", Guests: 2}))
}

func TestValidatorReportsFieldsInSnakeCase(t *testing.T) {
	v := New()
	err := v.Validate(context.Background(), sampleCommand{Guests: 0, Status: "LOST"})
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "listing_id is required")
	assert.Contains(t, err.Error(), "guests must be at least 1")
	assert.Contains(t, err.Error(), "status must be one of")
}

func TestValidatorIgnoresNonStructs(t *testing.T) {
	require.NoError(t, New().Validate(context.Background(), "plain"))
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "guest_id", toSnake("GuestID"))
	assert.Equal(t, "idempotency_key", toSnake("IdempotencyKeyV"))
	assert.Equal(t, "check_in", toSnake("CheckIn"))
}
