package overdrive

import (
	"github.com/jd3nn1s/overdrive/protocol"
	"github.com/pkg/errors"
)

// Send encodes a command and writes it to the vehicle, returning once the
// transport acknowledged the write. Commands issued before the
// characteristics are ready are dropped with ErrTransportNotReady.
func (v *Vehicle) Send(cmd protocol.Command) error {
	v.mu.Lock()
	w, err := v.writerLocked()
	v.mu.Unlock()
	if err != nil {
		return err
	}
	return v.writeCommand(w, cmd)
}

// SendAsync is Send without waiting. The channel receives the result of the
// write and is then closed.
func (v *Vehicle) SendAsync(cmd protocol.Command) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- v.Send(cmd)
	}()
	return done
}

func (v *Vehicle) writerLocked() (Characteristic, error) {
	if !v.lifecycle.canCommand() || v.write == nil {
		return nil, errors.Wrapf(ErrTransportNotReady, "vehicle is %s", v.lifecycle)
	}
	return v.write, nil
}

func (v *Vehicle) writeCommand(w Characteristic, cmd protocol.Command) error {
	frame, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	v.log.WithField("messageID", cmd.ID()).
		WithField("frame", frame).
		Debug("writing command")
	if err := w.Write(frame); err != nil {
		v.log.WithField("err", err).
			WithField("messageID", cmd.ID()).
			Error("unable to write command")
		return errors.Wrapf(ErrCommandWriteFailed, "command 0x%02x: %v", uint8(cmd.ID()), err)
	}
	return nil
}

func (v *Vehicle) SetSpeed(speed, accel int16) error {
	return v.Send(protocol.SetSpeed{Speed: speed, Accel: accel})
}

func (v *Vehicle) Stop() error {
	return v.Send(protocol.Stop())
}

// SetOffset moves the vehicle to an offset from the road center.
func (v *Vehicle) SetOffset(offsetMm float32) error {
	return v.Send(protocol.ChangeOffsetRelative{OffsetMm: offsetMm})
}

// ChangeLane shifts the vehicle one step to the right or left of its last
// reported offset.
func (v *Vehicle) ChangeLane(right bool) error {
	v.mu.Lock()
	offset := v.state.Offset
	v.mu.Unlock()
	if right {
		offset += v.cfg.LaneChangeStepMm
	} else {
		offset -= v.cfg.LaneChangeStepMm
	}
	return v.Send(protocol.ChangeOffsetRelative{OffsetMm: offset})
}

// CancelLaneChange aborts a lane change in progress.
func (v *Vehicle) CancelLaneChange() error {
	return v.Send(protocol.CancelOffsetChange{})
}

// SetLane tells the vehicle which lane it is in, derived from its recent
// positions. Without enough history nothing is sent.
func (v *Vehicle) SetLane() error {
	v.mu.Lock()
	offset, err := DeriveLaneOffset(v.state)
	v.mu.Unlock()
	if err != nil {
		return err
	}
	return v.Send(protocol.SetAbsoluteOffset{OffsetMm: offset})
}

func (v *Vehicle) SetLights(mask uint8) error {
	return v.Send(protocol.SetLights{Mask: mask})
}

func (v *Vehicle) SetEngineLight(r, g, b uint8) error {
	return v.Send(protocol.SetEngineLight{R: r, G: g, B: b})
}

func (v *Vehicle) UTurn() error {
	return v.Send(protocol.UTurn{})
}

func (v *Vehicle) RequestBattery() error {
	return v.Send(protocol.RequestBattery{})
}

func (v *Vehicle) Ping() error {
	return v.Send(protocol.Ping{})
}

func (v *Vehicle) RequestVersion() error {
	return v.Send(protocol.RequestVersion{})
}

func (v *Vehicle) SetConfig(plastic, supercode bool) error {
	return v.Send(protocol.SetConfig{Plastic: plastic, Supercode: supercode})
}
