package drift

// ChangeTracker counts consecutive drags that produced no visible change in
// the ROI. Hitting the cap means the foreign window is unresponsive, hidden,
// or simply not the window we think it is, and the pan loop must abort
// instead of looping forever.
//
// A cap of zero disables the tracker entirely.
type ChangeTracker struct {
	threshold   float64
	cap         int
	consecutive int
}

// NewChangeTracker builds a tracker. Negative inputs are normalised: the cap
// floor is 0 (disabled) and the threshold floor is 0.
func NewChangeTracker(meanDiffThreshold float64, abortCap int) *ChangeTracker {
	if meanDiffThreshold < 0 {
		meanDiffThreshold = 0
	}
	if abortCap < 0 {
		abortCap = 0
	}
	return &ChangeTracker{threshold: meanDiffThreshold, cap: abortCap}
}

// Enabled reports whether the tracker is counting at all.
func (t *ChangeTracker) Enabled() bool {
	return t.cap > 0
}

// Threshold returns the mean-diff value below which a drag counts as "no
// visible change".
func (t *ChangeTracker) Threshold() float64 {
	return t.threshold
}

// Changed reports whether meanDiff clears the visible-change threshold.
func (t *ChangeTracker) Changed(meanDiff float64) bool {
	return meanDiff >= t.threshold
}

// RecordNoChange increments the consecutive counter and reports whether the
// cap has been reached. No-op (always false) when disabled.
func (t *ChangeTracker) RecordNoChange() bool {
	if !t.Enabled() {
		return false
	}
	t.consecutive++
	return t.consecutive >= t.cap
}

// RecordChange resets the consecutive counter.
func (t *ChangeTracker) RecordChange() {
	t.consecutive = 0
}

// Count returns the current consecutive no-change count.
func (t *ChangeTracker) Count() int {
	return t.consecutive
}

// Cap returns the abort cap.
func (t *ChangeTracker) Cap() int {
	return t.cap
}
