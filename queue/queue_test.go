package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeterministicJobIDs(t *testing.T) {
	require.Equal(t, "sla-42", SLATimerJobID(42))
	require.Equal(t, "sla-warn-42", WarningJobID(42))
	require.Equal(t, "escalation-42-2", EscalationJobID(42, 2))
}

func TestDeterministicJobIDsAreStableAcrossCalls(t *testing.T) {
	require.Equal(t, SLATimerJobID(7), SLATimerJobID(7))
	require.NotEqual(t, SLATimerJobID(7), SLATimerJobID(8))
}
