package overdrive

import (
	"context"
	"github.com/jd3nn1s/overdrive/protocol"
	"github.com/pkg/errors"
	"sync"
)

var (
	ErrManeuverInProgress = errors.New("maneuver already in progress")
	ErrManeuverAborted    = errors.New("maneuver aborted, telemetry stopped")
)

// Maneuver is a one-shot task running against a vehicle's telemetry. It
// ends by reaching its goal, by Cancel, or when the vehicle disconnects.
type Maneuver struct {
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// Done is closed when the maneuver has ended.
func (m *Maneuver) Done() <-chan struct{} {
	return m.done
}

// Err is nil if the maneuver reached its goal. It is only meaningful after
// Done is closed.
func (m *Maneuver) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Maneuver) Cancel() {
	m.cancel()
}

// Wait blocks until the maneuver ended or ctx is done.
func (m *Maneuver) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Maneuver) finish(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	close(m.done)
}

// StopAtLine slows the vehicle down and stops it on the configured start
// piece, then publishes StoppedAtStart. Status and event publishing is held
// back while the maneuver runs. It does not re-arm.
func (v *Vehicle) StopAtLine(ctx context.Context) (*Maneuver, error) {
	if !v.suppressed.CompareAndSwap(false, true) {
		return nil, ErrManeuverInProgress
	}
	cfg := v.cfg.StopAtLine

	// subscribe first so a position report racing the approach command is
	// not missed
	subID, updates := v.telemetry.Subscribe()
	if err := v.Send(protocol.SetSpeed{Speed: cfg.ApproachSpeed, Accel: cfg.ApproachAccel}); err != nil {
		v.telemetry.Unsubscribe(subID)
		v.suppressed.Store(false)
		return nil, errors.Wrap(err, "unable to start stop at line")
	}

	ctx, cancel := context.WithCancel(ctx)
	m := &Maneuver{
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer cancel()
		err := v.runStopAtLine(ctx, updates, cfg)
		v.telemetry.Unsubscribe(subID)
		v.suppressed.Store(false)
		if err != nil {
			v.log.WithField("err", err).Warn("stop at line ended early")
		}
		m.finish(err)
	}()
	return m, nil
}

func (v *Vehicle) runStopAtLine(ctx context.Context, updates <-chan protocol.Message, cfg StopAtLineConfig) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-updates:
			if !ok {
				return ErrManeuverAborted
			}
			switch m := msg.(type) {
			case protocol.PositionUpdate:
				if m.RoadPieceID != cfg.RoadPieceID {
					v.log.WithField("roadPieceID", m.RoadPieceID).Debug("approaching start")
					continue
				}
				if err := v.Send(protocol.SetSpeed{Speed: 0, Accel: cfg.StopAccel}); err != nil {
					return err
				}
				v.publish(StoppedAtStart{v.device})
				return nil
			case protocol.TransitionUpdate:
				v.log.WithField("roadPieceIdx", m.RoadPieceIdx).
					WithField("roadPieceIdxPrev", m.RoadPieceIdxPrev).
					Debug("approaching start")
			}
		}
	}
}
