package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Transient_Wraps_And_Unwraps(t *testing.T) {
	req := require.New(t)

	cause := fmt.Errorf("connection reset")
	err := Transient(cause)

	req.True(IsTransient(err))
	req.ErrorIs(err, cause)
}

func Test_Transient_Survives_Further_Wrapping(t *testing.T) {
	req := require.New(t)

	err := fmt.Errorf("loading snapshot: %w", Transient(errors.New("dial tcp: timeout")))

	req.True(IsTransient(err))
}

func Test_Sentinels_Are_Not_Transient(t *testing.T) {
	req := require.New(t)

	req.False(IsTransient(ErrInvalidInvite))
	req.False(IsTransient(ErrGroupNotFound))
	req.False(IsTransient(nil))
}

func Test_Transient_Of_Nil_Is_Nil(t *testing.T) {
	require.NoError(t, Transient(nil))
}
