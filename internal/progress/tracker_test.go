package progress

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_HappyPath(t *testing.T) {
	var events []Progress
	tr := NewTracker(func(p Progress) { events = append(events, p) })

	require.NoError(t, tr.Start(3))
	require.NoError(t, tr.BeginPhase(PhaseProjectRules))
	require.NoError(t, tr.BeginFile("PROJECT_RULES.md"))
	require.NoError(t, tr.CompleteFile())
	require.NoError(t, tr.BeginPhase(PhaseAgentProtocol))
	require.NoError(t, tr.BeginFile("AGENT_PROTOCOL.md"))
	require.NoError(t, tr.CompleteFile())
	require.NoError(t, tr.BeginPhase(PhaseComponentSpecs))
	require.NoError(t, tr.BeginFile("specs/api.md"))

	snap := tr.Snapshot()
	require.NotNil(t, snap.CurrentFile)
	assert.Equal(t, "specs/api.md", *snap.CurrentFile)

	require.NoError(t, tr.CompleteFile())
	require.NoError(t, tr.Complete())

	final := tr.Snapshot()
	assert.Equal(t, PhaseComplete, final.Phase)
	assert.Equal(t, 3, final.FilesCompleted)
	assert.Nil(t, final.CurrentFile)
	assert.Equal(t, 1.0, final.Fraction())

	last := -1
	for _, e := range events {
		assert.GreaterOrEqual(t, e.FilesCompleted, last)
		last = e.FilesCompleted
	}
}

func TestTracker_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		run  func(tr *Tracker) error
	}{
		{"skip phase", func(tr *Tracker) error { return tr.BeginPhase(PhaseAgentProtocol) }},
		{"file while idle", func(tr *Tracker) error { return tr.BeginFile("x") }},
		{"complete from idle", func(tr *Tracker) error { return tr.Complete() }},
		{"begin complete directly", func(tr *Tracker) error { return tr.BeginPhase(PhaseComplete) }},
		{"too many files", func(tr *Tracker) error {
			_ = tr.BeginPhase(PhaseProjectRules)
			return tr.CompleteFile()
		}},
		{"complete with files missing", func(tr *Tracker) error {
			_ = tr.BeginPhase(PhaseProjectRules)
			_ = tr.BeginPhase(PhaseAgentProtocol)
			_ = tr.BeginPhase(PhaseComponentSpecs)
			return tr.Complete()
		}},
		{"going backwards", func(tr *Tracker) error {
			_ = tr.BeginPhase(PhaseProjectRules)
			_ = tr.BeginPhase(PhaseAgentProtocol)
			return tr.BeginPhase(PhaseProjectRules)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(nil)
			if tt.name != "too many files" {
				require.NoError(t, tr.Start(1))
			} else {
				require.NoError(t, tr.Start(0))
			}
			err := tt.run(tr)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestTracker_ErrorIsTerminal(t *testing.T) {
	var events []Progress
	tr := NewTracker(func(p Progress) { events = append(events, p) })
	require.NoError(t, tr.Start(2))
	require.NoError(t, tr.BeginPhase(PhaseProjectRules))

	tr.Fail(errors.New("provider exploded"))
	tr.Fail(errors.New("second failure is ignored"))

	snap := tr.Snapshot()
	assert.Equal(t, PhaseError, snap.Phase)
	assert.Equal(t, "provider exploded", snap.Error)

	assert.ErrorIs(t, tr.BeginPhase(PhaseAgentProtocol), ErrInvalidTransition)
	assert.ErrorIs(t, tr.BeginFile("x"), ErrInvalidTransition)
	assert.ErrorIs(t, tr.Complete(), ErrInvalidTransition)

	assert.Equal(t, PhaseError, events[len(events)-1].Phase)
	errorEvents := 0
	for _, e := range events {
		if e.Phase == PhaseError {
			errorEvents++
		}
	}
	assert.Equal(t, 1, errorEvents)
}

func TestTracker_FailFromIdle(t *testing.T) {
	tr := NewTracker(nil)
	tr.Fail(nil)
	assert.Equal(t, PhaseError, tr.Snapshot().Phase)
	assert.Equal(t, "unknown error", tr.Snapshot().Error)
}

func TestTracker_SnapshotIsACopy(t *testing.T) {
	tr := NewTracker(nil)
	require.NoError(t, tr.Start(1))
	require.NoError(t, tr.BeginPhase(PhaseProjectRules))
	require.NoError(t, tr.BeginFile("PROJECT_RULES.md"))

	snap := tr.Snapshot()
	*snap.CurrentFile = "mutated"
	assert.Equal(t, "PROJECT_RULES.md", *tr.Snapshot().CurrentFile)
}

func TestPhaseRank(t *testing.T) {
	phases := Phases()
	for i := 1; i < len(phases); i++ {
		assert.Less(t, phases[i-1].Rank(), phases[i].Rank())
	}
	assert.Greater(t, PhaseError.Rank(), PhaseComplete.Rank())
	assert.Equal(t, -1, Phase("bogus").Rank())
	assert.True(t, PhaseComplete.Terminal())
	assert.True(t, PhaseError.Terminal())
	assert.False(t, PhaseComponentSpecs.Terminal())
}
