// Package runctx carries the per-run execution context: the pause hook, the
// cancellation predicate, the log sink, and the visual sink. Every blocking
// or input-producing call site polls the same context instead of threading
// four callbacks through every signature.
package runctx

import (
	"context"
	"fmt"
	"time"

	"github.com/alexisbeaulieu97/canvaspilot/internal/ports"
)

// DefaultPollInterval subdivides long waits so pause and cancel latency stays
// bounded.
const DefaultPollInterval = 100 * time.Millisecond

// RunContext exposes exactly the four capabilities automation call sites
// need. All hooks are cooperative: they are polled, never interrupt.
type RunContext struct {
	ctx           context.Context
	pauseHook     func()
	allowContinue func() bool
	logSink       func(message string)
	visualSink    func(frame ports.Frame, overlays ports.Overlays)
	sleep         func(d time.Duration)
}

// Option configures a RunContext.
type Option func(*RunContext)

// WithPauseHook installs the hook polled before every click, drag, step, and
// pan-loop iteration. The hook blocks while the run is paused.
func WithPauseHook(hook func()) Option {
	return func(rc *RunContext) { rc.pauseHook = hook }
}

// WithAllowContinue installs the cancellation predicate.
func WithAllowContinue(pred func() bool) Option {
	return func(rc *RunContext) { rc.allowContinue = pred }
}

// WithLogSink installs the one-way log line sink.
func WithLogSink(sink func(message string)) Option {
	return func(rc *RunContext) { rc.logSink = sink }
}

// WithVisualSink installs the one-way debugging overlay sink.
func WithVisualSink(sink func(frame ports.Frame, overlays ports.Overlays)) Option {
	return func(rc *RunContext) { rc.visualSink = sink }
}

// WithSleeper replaces the wall-clock sleeper, letting tests run waits
// instantly.
func WithSleeper(sleep func(d time.Duration)) Option {
	return func(rc *RunContext) { rc.sleep = sleep }
}

// New builds a RunContext. ctx cancellation is folded into Continue.
func New(ctx context.Context, opts ...Option) *RunContext {
	if ctx == nil {
		ctx = context.Background()
	}
	rc := &RunContext{
		ctx:   ctx,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Err surfaces the underlying context's cancellation error, if any. A
// vetoing allow-continue predicate maps onto context.Canceled so callers
// get one error regardless of which mechanism stopped the run.
func (rc *RunContext) Err() error {
	if err := rc.ctx.Err(); err != nil {
		return err
	}
	if rc.allowContinue != nil && !rc.allowContinue() {
		return context.Canceled
	}
	return nil
}

// Pause blocks while the run is paused. No-op without a hook.
func (rc *RunContext) Pause() {
	if rc.pauseHook != nil {
		rc.pauseHook()
	}
}

// Continue reports whether the run may keep going. False once the context is
// cancelled or the predicate vetoes.
func (rc *RunContext) Continue() bool {
	if rc.ctx.Err() != nil {
		return false
	}
	if rc.allowContinue != nil && !rc.allowContinue() {
		return false
	}
	return true
}

// Checkpoint combines the pause poll and the continue check, the sequence
// every suspension point performs.
func (rc *RunContext) Checkpoint() bool {
	rc.Pause()
	return rc.Continue()
}

// Log emits one line to the log sink.
func (rc *RunContext) Log(message string) {
	if rc.logSink != nil {
		rc.logSink(message)
	}
}

// Logf emits one formatted line to the log sink.
func (rc *RunContext) Logf(format string, args ...any) {
	if rc.logSink != nil {
		rc.logSink(fmt.Sprintf(format, args...))
	}
}

// EmitVisual pushes a frame plus overlays to the visual sink, fire and
// forget.
func (rc *RunContext) EmitVisual(frame ports.Frame, overlays ports.Overlays) {
	if rc.visualSink != nil {
		rc.visualSink(frame, overlays)
	}
}

// Wait sleeps for total, sliced into poll intervals so pause and cancel are
// honoured mid-wait. Returns false if the run was cancelled before the wait
// completed.
func (rc *RunContext) Wait(total time.Duration) bool {
	remaining := total
	for remaining > 0 {
		if !rc.Checkpoint() {
			return false
		}
		slice := DefaultPollInterval
		if remaining < slice {
			slice = remaining
		}
		rc.sleep(slice)
		remaining -= slice
	}
	return rc.Checkpoint()
}
