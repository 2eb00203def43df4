package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUncalibratedError_Message(t *testing.T) {
	t.Parallel()

	err := NewUncalibratedError("ProgramToEditor")
	require.Contains(t, err.Error(), "ProgramToEditor")

	var typed *UncalibratedError
	require.True(t, stderrors.As(err, &typed))
}

func TestCaptureFailedError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("device lost")
	err := NewCaptureFailedError("Sandbox", cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "Sandbox")
}

func TestStepError_PrefersDiagnostic(t *testing.T) {
	t.Parallel()

	err := NewStepError("create_osc", "anchor candidate never appeared", stderrors.New("timeout"))
	require.Contains(t, err.Error(), "anchor candidate never appeared")

	bare := NewStepError("connect_ab", "", nil)
	require.Equal(t, "step connect_ab failed", bare.Error())
}

func TestEnvironmentMismatchError(t *testing.T) {
	t.Parallel()

	err := NewEnvironmentMismatchError("graph has 12 nodes but recognition sees none")
	var typed *EnvironmentMismatchError
	require.True(t, stderrors.As(err, &typed))
	require.Contains(t, err.Error(), "recognition sees none")
}
