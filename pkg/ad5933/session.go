package ad5933

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
)

// Session is one running sweep. Points are produced in ascending frequency
// order, one per Step, and the session cannot be restarted. Close returns the
// device to standby (or power-down) and must be called even when the caller
// stops early.
type Session struct {
	dev      *Device
	sweep    SweepConfig
	settling SettlingConfig

	next    int  // index of the next point Step returns
	pending bool // point next is latched and unread
	stepped bool // increment sent for point next, data not yet valid
	status  byte // status observed when the pending point became valid
	closed  bool
}

// Sweep returns the sweep this session runs.
func (s *Session) Sweep() SweepConfig {
	return s.sweep
}

// Settling returns the settling time in effect for this session.
func (s *Session) Settling() SettlingConfig {
	return s.settling
}

// Remaining returns how many points Step will still produce.
func (s *Session) Remaining() int {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return 0
	}
	return s.sweep.Points() - s.next
}

// Step returns the next point of the sweep. The first call returns the point
// latched by StartSweep; later calls increment the frequency. If waiting for
// the data fails, the next call waits again without a second increment.
// After the last configured point Step returns ErrSweepComplete.
func (s *Session) Step() (Point, error) {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.closed {
		return Point{}, fmt.Errorf("%w: session closed", ErrInvalidState)
	}
	if s.next >= s.sweep.Points() {
		return Point{}, ErrSweepComplete
	}

	if !s.pending {
		if !s.stepped {
			if err := d.command(FunctionIncFreq); err != nil {
				return Point{}, err
			}
			s.stepped = true
		}
		status, err := d.poll(StatusDataValid)
		if err != nil {
			return Point{}, fmt.Errorf("point %d: %w", s.next, err)
		}
		s.status = status
		s.pending = true
		s.stepped = false
	}

	p, err := s.read(s.next)
	if err != nil {
		return Point{}, err
	}
	last := s.next == s.sweep.Increments
	done := s.status&StatusSweepDone != 0
	s.pending = false
	s.next++

	if done && !last {
		return Point{}, fmt.Errorf("%w: device finished sweep after %d of %d points", ErrInvalidState, s.next, s.sweep.Points())
	}
	if last && !done {
		d.logger.Debug("sweep done flag not set on last point", slog.Int("index", p.Index))
	}
	return p, nil
}

// Repeat measures the most recently returned point again.
func (s *Session) Repeat() (Point, error) {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.closed {
		return Point{}, fmt.Errorf("%w: session closed", ErrInvalidState)
	}
	if s.next == 0 {
		return Point{}, fmt.Errorf("%w: repeat before first point", ErrInvalidState)
	}
	if s.stepped {
		return Point{}, fmt.Errorf("%w: point %d still pending", ErrInvalidState, s.next)
	}

	if err := d.command(FunctionRepeatFreq); err != nil {
		return Point{}, err
	}
	status, err := d.poll(StatusDataValid)
	if err != nil {
		return Point{}, fmt.Errorf("repeat point %d: %w", s.next-1, err)
	}
	s.status = status
	return s.read(s.next - 1)
}

// Points iterates over the remaining points. Iteration stops after the last
// point or the first error, which is yielded.
func (s *Session) Points() iter.Seq2[Point, error] {
	return func(yield func(Point, error) bool) {
		for {
			p, err := s.Step()
			if errors.Is(err, ErrSweepComplete) {
				return
			}
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}

// Close ends the session and idles the device. Closing twice is a no-op.
func (s *Session) Close() error {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if d.session == s {
		d.session = nil
	}
	if s.next < s.sweep.Points() {
		d.logger.Info("sweep stopped early", slog.Int("points", s.next), slog.Int("total", s.sweep.Points()))
	} else {
		d.logger.Info("sweep finished", slog.Int("points", s.next))
	}
	return d.command(d.idle)
}

// read fetches the sample for step i. Caller holds dev.mu.
func (s *Session) read(i int) (Point, error) {
	raw, err := s.dev.readSample()
	if err != nil {
		return Point{}, fmt.Errorf("point %d: %w", i, err)
	}
	return Point{
		Index:     i,
		Frequency: s.sweep.Frequency(i),
		Raw:       raw,
	}, nil
}
