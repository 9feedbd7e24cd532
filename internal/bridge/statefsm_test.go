package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemFSMValidTransitions(t *testing.T) {
	f := NewSystemFSM()
	require.NoError(t, f.Transition(StateInitializing))
	require.NoError(t, f.Transition(StateReady))
	require.NoError(t, f.Transition(StateConnectingTelnet))
	require.NoError(t, f.Transition(StateDataTransfer))
	require.NoError(t, f.Transition(StateFlushing))
	require.NoError(t, f.Transition(StateShuttingDown))
	require.NoError(t, f.Transition(StateTerminated))
}

func TestSystemFSMRejectsInvalidTransition(t *testing.T) {
	f := NewSystemFSM()
	err := f.Transition(StateDataTransfer)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateUninitialized, f.State())
}

func TestSystemFSMRejectsSelfLoop(t *testing.T) {
	f := NewSystemFSM()
	require.NoError(t, f.Transition(StateInitializing))
	err := f.Transition(StateInitializing)
	assert.Error(t, err)
}

func TestSystemFSMTerminatedIsTerminal(t *testing.T) {
	f := NewSystemFSM()
	require.NoError(t, f.Transition(StateInitializing))
	require.NoError(t, f.Transition(StateReady))
	require.NoError(t, f.Transition(StateConnectingTelnet))
	require.NoError(t, f.Transition(StateDataTransfer))
	require.NoError(t, f.Transition(StateFlushing))
	require.NoError(t, f.Transition(StateShuttingDown))
	require.NoError(t, f.Transition(StateTerminated))
	assert.Error(t, f.Transition(StateReady))
}

func TestSystemFSMDataTransferTogglesHayesOnlineMode(t *testing.T) {
	f := NewSystemFSM()
	var entered, exited bool
	f.onEnterDataTransfer = func() { entered = true }
	f.onExitDataTransfer = func() { exited = true }

	require.NoError(t, f.Transition(StateInitializing))
	require.NoError(t, f.Transition(StateReady))
	require.NoError(t, f.Transition(StateConnectingTelnet))
	require.NoError(t, f.Transition(StateDataTransfer))
	assert.True(t, entered)

	require.NoError(t, f.Transition(StateFlushing))
	assert.True(t, exited)
}

func TestSystemFSMDCDRisingIsOneShot(t *testing.T) {
	f := NewSystemFSM()
	require.NoError(t, f.Transition(StateInitializing))
	require.NoError(t, f.Transition(StateReady))

	f.NotifyDCD(true)
	assert.True(t, f.dcdRisingPending)

	f.Tick(false, false, false)
	assert.Equal(t, StateConnectingTelnet, f.State())
	assert.False(t, f.dcdRisingPending)
}

func TestSystemFSMNegotiatingDeadlineRecoversToDataTransfer(t *testing.T) {
	f := NewSystemFSM()
	require.NoError(t, f.Transition(StateInitializing))
	require.NoError(t, f.Transition(StateReady))
	require.NoError(t, f.Transition(StateConnectingTelnet))
	require.NoError(t, f.Transition(StateNegotiating))
	f.enteredAt = time.Now().Add(-2 * stateDeadlines[StateNegotiating])

	f.Tick(false, false, false)
	assert.Equal(t, StateDataTransfer, f.State())
	assert.True(t, f.negotiationComplete)
}
