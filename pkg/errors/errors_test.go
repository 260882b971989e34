package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemError(t *testing.T) {
	err := &ItemError{ID: "cat.png", Err: fmt.Errorf("png: %w", ErrDecodeFailure)}

	assert.Equal(t, "cat.png: png: failed to decode image", err.Error())
	assert.True(t, errors.Is(err, ErrDecodeFailure))
	assert.False(t, errors.Is(err, ErrDegenerateInput))

	var wrapped error = fmt.Errorf("load: %w", err)
	var item *ItemError
	assert.True(t, errors.As(wrapped, &item))
	assert.Equal(t, "cat.png", item.ID)
}
