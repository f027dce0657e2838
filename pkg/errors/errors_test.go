package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaErrorNamesColumn(t *testing.T) {
	err := NewSchemaError("sales", "price")
	assert.Equal(t, ErrSchema.Code, err.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
	assert.Contains(t, err.Error(), `"price"`)
	assert.True(t, errors.Is(err, ErrSchema))
	assert.False(t, errors.Is(err, ErrData))
}

func TestDataErrorWrapsCause(t *testing.T) {
	cause := fmt.Errorf("parse failure")
	err := NewDataError("orders", "order_purchase_timestamp", 3, cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrData)
	assert.Contains(t, err.Error(), "row 3")
}

func TestFromErrorNormalises(t *testing.T) {
	wrapped := fmt.Errorf("bundle revenue: %w", NewSchemaError("sales", "year"))
	appErr := FromError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrSchema.Code, appErr.Code)

	plain := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Nil(t, FromError(nil))
}
