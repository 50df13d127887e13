package rewards_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/rewards"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want rewards.Kind
	}{
		{nil, rewards.KindUnknown},
		{errors.New("other"), rewards.KindUnknown},
		{rewards.ErrInvalidAccessKey, rewards.KindValidation},
		{&rewards.ValidationError{Field: "name", Message: "too long"}, rewards.KindValidation},
		{fmt.Errorf("submit: %w", rewards.ErrDuplicateInvoice), rewards.KindConflict},
		{rewards.ErrInvalidLinkState, rewards.KindConflict},
		{rewards.ErrLinkNotFound, rewards.KindNotFound},
		{rewards.ErrIssuerNotAllowed, rewards.KindForbidden},
		{rewards.StorageError("list", errors.New("timeout")), rewards.KindDependency},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, rewards.ErrorKind(tt.err))
		})
	}
}

func TestStorageErrorKeepsKnownKinds(t *testing.T) {
	err := rewards.StorageError("get link", rewards.ErrLinkNotFound)
	assert.ErrorIs(t, err, rewards.ErrLinkNotFound)
	assert.NotErrorIs(t, err, rewards.ErrStorage)

	err = rewards.StorageError("get link", errors.New("connection reset"))
	assert.ErrorIs(t, err, rewards.ErrStorage)
	assert.True(t, rewards.IsRetryable(err))

	assert.NoError(t, rewards.StorageError("noop", nil))
}

func TestValidationErrorUnwrap(t *testing.T) {
	var err error = &rewards.ValidationError{Field: "percentage", Message: "out of range", Err: rewards.ErrPercentageOutOfRange}
	assert.ErrorIs(t, err, rewards.ErrPercentageOutOfRange)
	assert.Contains(t, err.Error(), "percentage")

	err = &rewards.ValidationError{Field: "name"}
	assert.ErrorIs(t, err, rewards.ErrInvalidInput)
}
