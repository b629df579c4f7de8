package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStateDefaults(t *testing.T) {
	state := NewSessionState()
	assert.Equal(t, StatusIdle, state.Status())
	assert.Equal(t, ActivityNone, state.Activity())
	assert.Empty(t, state.Events())
}

func TestSessionStateObservers(t *testing.T) {
	state := NewSessionState()

	var statuses []Status
	var activities []Activity
	var seen []InboundEvent
	require.NoError(t, state.OnStatusChange(func(s Status) { statuses = append(statuses, s) }))
	require.NoError(t, state.OnActivityChange(func(a Activity) { activities = append(activities, a) }))
	require.NoError(t, state.OnEvent(func(e InboundEvent) { seen = append(seen, e) }))

	state.setStatus(StatusConnecting)
	state.setStatus(StatusLive)
	state.setStatus(StatusLive) // unchanged, no notification
	state.setActivity(ActivityUser)
	state.setActivity(ActivityNone)
	state.appendEvent(&RawEvent{Data: "x"})

	assert.Equal(t, []Status{StatusConnecting, StatusLive}, statuses)
	assert.Equal(t, []Activity{ActivityUser, ActivityNone}, activities)
	assert.Len(t, seen, 1)
}

func TestSessionStateObserverRegisterOnce(t *testing.T) {
	state := NewSessionState()
	require.NoError(t, state.OnStatusChange(func(Status) {}))
	assert.Error(t, state.OnStatusChange(func(Status) {}))
	require.NoError(t, state.OnActivityChange(func(Activity) {}))
	assert.Error(t, state.OnActivityChange(func(Activity) {}))
	require.NoError(t, state.OnEvent(func(InboundEvent) {}))
	assert.Error(t, state.OnEvent(func(InboundEvent) {}))
}

func TestSessionStateSnapshotIsDetached(t *testing.T) {
	state := NewSessionState()
	state.appendEvent(&RawEvent{Data: "first"})

	snapshot := state.Snapshot()
	state.appendEvent(&RawEvent{Data: "second"})
	state.setStatus(StatusLive)

	assert.Equal(t, StatusIdle, snapshot.Status)
	assert.Len(t, snapshot.Events, 1)
	assert.Len(t, state.Events(), 2)
}

func TestSessionStateEventLogIsAppendOnly(t *testing.T) {
	state := NewSessionState()
	for i := 0; i < 5; i++ {
		state.appendEvent(&GenericEvent{Type: "response.created"})
	}
	state.appendEvent(&GenericEvent{Type: "response.created"}) // duplicates kept
	assert.Len(t, state.Events(), 6)
}

func TestStatusAndActivityStrings(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "live", StatusLive.String())
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "none", ActivityNone.String())
	assert.Equal(t, "user", ActivityUser.String())
	assert.Equal(t, "assistant", ActivityAssistant.String())
}
