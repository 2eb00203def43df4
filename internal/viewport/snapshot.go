package viewport

import "github.com/alexisbeaulieu97/canvaspilot/internal/ports"

// SceneSnapshot caches the most recent frame so consecutive reads of an
// unchanged viewport skip redundant window captures. Any action that moves
// content must Invalidate it.
type SceneSnapshot struct {
	frame ports.Frame
	valid bool
}

// Get returns the cached frame, or captures a fresh one and caches it.
func (s *SceneSnapshot) Get(capture func() (ports.Frame, error)) (ports.Frame, error) {
	if s.valid && s.frame != nil {
		return s.frame, nil
	}
	frame, err := capture()
	if err != nil {
		return nil, err
	}
	s.frame = frame
	s.valid = true
	return frame, nil
}

// Put installs a known-current frame, such as the after-capture of a drag.
func (s *SceneSnapshot) Put(frame ports.Frame) {
	s.frame = frame
	s.valid = frame != nil
}

// Invalidate discards the cache.
func (s *SceneSnapshot) Invalidate() {
	s.frame = nil
	s.valid = false
}
