package drift

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/canvaspilot/internal/geometry"
)

func TestIsReasonable_Boundaries(t *testing.T) {
	t.Parallel()

	expected := geometry.Point{X: 100, Y: 0}
	cases := []struct {
		name      string
		estimated geometry.Point
		want      bool
	}{
		{"opposite direction rejected", geometry.Point{X: -100, Y: 0}, false},
		{"orthogonal rejected", geometry.Point{X: 0, Y: 100}, false},
		{"close estimate accepted", geometry.Point{X: 120, Y: 5}, true},
		{"runaway magnitude rejected", geometry.Point{X: 400, Y: 5}, false},
		{"exact match accepted", geometry.Point{X: 100, Y: 0}, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, IsReasonable(tc.estimated, expected, 100))
		})
	}
}

func TestIsReasonable_ZeroExpectedAlwaysReasonable(t *testing.T) {
	t.Parallel()

	require.True(t, IsReasonable(geometry.Point{X: 500, Y: -500}, geometry.Point{}, 100))
}

func TestIsReasonable_FloorsProtectSmallDrags(t *testing.T) {
	t.Parallel()

	// A 10px commanded drag with a 60px estimate: within the 80px absolute
	// magnitude floor and the 120px error floor, so UI jitter at small
	// steps is tolerated.
	require.True(t, IsReasonable(geometry.Point{X: 60, Y: 0}, geometry.Point{X: 10, Y: 0}, 10))
	// Past the magnitude floor it is rejected.
	require.False(t, IsReasonable(geometry.Point{X: 90, Y: 0}, geometry.Point{X: 10, Y: 0}, 10))
}

func TestIsReasonable_StepCeilingsScaleWithPanStep(t *testing.T) {
	t.Parallel()

	// 1.6x the 400px pan step allows estimates up to 640px even when the
	// expected component is small relative to the step.
	require.True(t, IsReasonable(geometry.Point{X: 600, Y: 0}, geometry.Point{X: 400, Y: 0}, 400))
	require.False(t, IsReasonable(geometry.Point{X: 700, Y: 0}, geometry.Point{X: 400, Y: 0}, 400))
}

func TestEvaluate_VetoBecomesZeroDelta(t *testing.T) {
	t.Parallel()

	dec := Evaluate(geometry.Point{X: -100, Y: 0}, geometry.Point{X: 100, Y: 0}, 100)
	require.False(t, dec.Accepted)
	require.True(t, dec.Effective.IsZero())
	require.NotEmpty(t, dec.Reason)

	ok := Evaluate(geometry.Point{X: 95, Y: 3}, geometry.Point{X: 100, Y: 0}, 100)
	require.True(t, ok.Accepted)
	require.Equal(t, geometry.Point{X: 95, Y: 3}, ok.Effective)
}

func TestChangeTracker_CapAndReset(t *testing.T) {
	t.Parallel()

	tr := NewChangeTracker(2.0, 3)
	require.True(t, tr.Enabled())
	require.False(t, tr.Changed(1.5))
	require.True(t, tr.Changed(2.0))

	require.False(t, tr.RecordNoChange())
	require.False(t, tr.RecordNoChange())
	tr.RecordChange()
	require.Zero(t, tr.Count())

	require.False(t, tr.RecordNoChange())
	require.False(t, tr.RecordNoChange())
	require.True(t, tr.RecordNoChange())
}

func TestChangeTracker_DisabledNeverAborts(t *testing.T) {
	t.Parallel()

	tr := NewChangeTracker(2.0, 0)
	require.False(t, tr.Enabled())
	for i := 0; i < 10; i++ {
		require.False(t, tr.RecordNoChange())
	}
}
