package inventory_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/stock-ledger/inventory"
)

func TestStorageFailure(t *testing.T) {
	driverErr := errors.New("disk I/O error")

	err := inventory.StorageFailure("append movement", driverErr)
	assert.ErrorIs(t, err, inventory.ErrStorage)
	assert.ErrorIs(t, err, driverErr)
	assert.False(t, inventory.IsClientError(err))
	assert.Equal(t, "append movement: disk I/O error", err.Error())

	assert.NoError(t, inventory.StorageFailure("noop", nil))

	// Domain errors pass through untouched.
	assert.Same(t, inventory.ErrNotFound, inventory.StorageFailure("delete", inventory.ErrNotFound))
	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, wrapped, inventory.StorageFailure("again", wrapped))
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, inventory.IsNotFound(inventory.ErrNotFound))
	assert.True(t, inventory.IsConflict(inventory.ErrDuplicateID))
	assert.True(t, inventory.IsConflict(inventory.ErrReferenced))
	assert.True(t, inventory.IsConflict(fmt.Errorf("x: %w", inventory.ErrDuplicateIdempotencyKey)))
	assert.False(t, inventory.IsConflict(inventory.ErrNotFound))
}
