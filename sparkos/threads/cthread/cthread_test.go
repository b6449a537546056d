package cthread_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"sparkrt/sparkos/threads"
	"sparkrt/sparkos/threads/archsim"
	"sparkrt/sparkos/threads/cthread"
)

func newAPI(t *testing.T) (*cthread.API, *threads.Scheduler) {
	t.Helper()
	cfg := threads.DefaultConfig()
	cfg.CheckInvariants = true
	s := threads.New(archsim.New(), threads.WithConfig(cfg))
	return cthread.New(s), s
}

func body(unsafe.Pointer) unsafe.Pointer { return nil }

func TestPriorityTranslation(t *testing.T) {
	for app := uint8(0); app < cthread.SchedPrioLevels; app++ {
		api, s := newAPI(t)
		id, err := api.ThreadCreate(make([]byte, 256), 256, app, 0, body, nil, "t")
		require.NoError(t, err)

		p, err := s.Priority(id)
		require.NoError(t, err)
		require.Equal(t, cthread.SchedPrioLevels-1-app, p)

		ap, err := api.ThreadGetPriority(id)
		require.NoError(t, err)
		require.Equal(t, app, ap)
	}
	require.Equal(t, uint8(7), cthread.InternalPriority(0))
	require.Equal(t, uint8(0), cthread.InternalPriority(7))
}

func TestThreadCreateValidation(t *testing.T) {
	api, s := newAPI(t)
	stack := make([]byte, 256)

	_, err := api.ThreadCreate(stack, 512, 1, 0, body, nil, "too big")
	require.ErrorIs(t, err, threads.ErrInvalidArgument)

	_, err = api.ThreadCreate(stack, 256, cthread.SchedPrioLevels, 0, body, nil, "prio")
	require.ErrorIs(t, err, threads.ErrInvalidArgument)

	_, err = api.ThreadCreate(stack, 256, 1, 1<<7, body, nil, "flags")
	require.ErrorIs(t, err, threads.ErrInvalidArgument)

	_, err = api.ThreadCreate(stack, 256, 1, 0, nil, nil, "nil fn")
	require.ErrorIs(t, err, threads.ErrInvalidArgument)

	_, err = api.ThreadCreate(stack, 64, 1, 0, body, nil, "small")
	require.ErrorIs(t, err, threads.ErrInvalidArgument)

	require.Empty(t, s.Threads())
}

func TestThreadCreateUsesStackSize(t *testing.T) {
	api, s := newAPI(t)
	buf := make([]byte, 1024)
	id, err := api.ThreadCreate(buf, 256, 1, 0, body, nil, "a")
	require.NoError(t, err)
	info, ok := s.Info(id)
	require.True(t, ok)
	require.Equal(t, 256, info.StackSize)

	// The rest of the buffer is still free for another thread.
	_, err = api.ThreadCreate(buf[256:], 256, 1, 0, body, nil, "b")
	require.NoError(t, err)
}

func TestScenarioFiveFiveThree(t *testing.T) {
	api, s := newAPI(t)
	create := func(prio uint8, name string) threads.ThreadID {
		id, err := api.ThreadCreate(make([]byte, 256), 256, prio, 0, body, nil, name)
		require.NoError(t, err)
		return id
	}
	a := create(5, "a")
	b := create(5, "b")
	c := create(3, "c")

	s.Start()
	for _, want := range []threads.ThreadID{a, b, a, b} {
		require.Equal(t, want, api.ThreadGetPID())
		require.Equal(t, cthread.StatusRunning, api.ThreadGetStatus(c))
		require.True(t, api.ThreadIsActive(want))
		api.ThreadYield()
	}
	info, _ := s.Info(c)
	require.Zero(t, info.Runs)
}

func TestWakeupAndStatus(t *testing.T) {
	api, s := newAPI(t)
	s.Start()
	require.Equal(t, cthread.InvalidPID, api.ThreadGetPID())
	_, ok := api.ThreadGetActive()
	require.False(t, ok)

	id, err := api.ThreadCreate(make([]byte, 256), 256, 3, cthread.ThreadCreateSleeping, body, nil, "sleeper")
	require.NoError(t, err)
	require.Equal(t, cthread.StatusPaused, api.ThreadGetStatus(id))
	require.Equal(t, "sleeping", api.ThreadGetStatus(id).String())
	require.Equal(t, "sleeper", api.ThreadGetName(id))

	require.Equal(t, 1, api.ThreadWakeup(id))
	require.Equal(t, 0xFF, api.ThreadWakeup(id))
	require.Equal(t, id, api.ThreadGetPID())
}

func TestZombifyAndKill(t *testing.T) {
	api, s := newAPI(t)
	id, err := api.ThreadCreate(make([]byte, 256), 256, 3, 0, body, nil, "z")
	require.NoError(t, err)
	s.Start()

	api.ThreadZombify()
	require.Equal(t, cthread.StatusZombie, api.ThreadGetStatus(id))
	require.Equal(t, "zombie", cthread.ThreadStateToString(cthread.StatusZombie))
	require.Equal(t, 1, api.ThreadKillZombie(id))
	require.Equal(t, -1, api.ThreadKillZombie(id))
	require.Equal(t, cthread.StatusInvalid, api.ThreadGetStatus(id))
}

func TestStackTestFlag(t *testing.T) {
	api, _ := newAPI(t)
	id, err := api.ThreadCreate(make([]byte, 512), 512, 3, cthread.ThreadCreateStacktest|cthread.ThreadCreateWoutYield, body, nil, "st")
	require.NoError(t, err)
	free, err := api.ThreadMeasureStackFree(id)
	require.NoError(t, err)
	require.Greater(t, free, 0)
	require.Less(t, free, 512)
}

func TestPIDIsValid(t *testing.T) {
	require.True(t, cthread.PIDIsValid(0))
	require.True(t, cthread.PIDIsValid(cthread.ThreadsNumof-1))
	require.False(t, cthread.PIDIsValid(cthread.ThreadsNumof))
	require.False(t, cthread.PIDIsValid(cthread.InvalidPID))
}

func TestStatusLabels(t *testing.T) {
	tests := []struct {
		st     threads.State
		reason threads.Reason
		want   string
	}{
		{threads.StateRunning, threads.ReasonNone, "pending"},
		{threads.StateReady, threads.ReasonNone, "pending"},
		{threads.StateBlocked, threads.ReasonPaused, "sleeping"},
		{threads.StateBlocked, threads.ReasonDelay, "sleeping"},
		{threads.StateBlocked, threads.ReasonLock, "bl mutex"},
		{threads.StateBlocked, threads.ReasonFlagsAny, "bl anyfl"},
		{threads.StateBlocked, threads.ReasonFlagsAll, "bl allfl"},
		{threads.StateBlocked, threads.ReasonBlocked, "blocked"},
		{threads.StateZombie, threads.ReasonNone, "zombie"},
		{threads.StateInvalid, threads.ReasonNone, "unknown"},
	}
	for _, tc := range tests {
		got := cthread.StatusOf(tc.st, tc.reason).String()
		require.Equal(t, tc.want, got, "%s/%s", tc.st, tc.reason)
		require.Equal(t, threads.Label(tc.st, tc.reason), got)
	}
}
