package overdrive

import (
	"github.com/jd3nn1s/overdrive/protocol"
)

// HandleNotification decodes a frame from the read characteristic and routes
// it. Frames that cannot be decoded are logged and dropped.
func (v *Vehicle) HandleNotification(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		v.log.WithField("err", err).
			WithField("frame", data).
			Warn("unable to decode notification")
		return
	}
	v.route(msg)
}

// route forwards telemetry to the internal hub, applies status messages to
// the vehicle state and publishes the result unless a maneuver holds
// external events back.
func (v *Vehicle) route(msg protocol.Message) {
	id := msg.ID()
	v.log.WithField("messageID", id).Debug("received message")

	var events []Event
	var refWriter Characteristic
	var refOffset float32

	v.mu.Lock()
	if v.lifecycle == Disconnected {
		v.mu.Unlock()
		v.log.WithField("messageID", id).Debug("dropping message while disconnected")
		return
	}

	if protocol.IsTelemetry(id) {
		v.telemetry.publish(msg)
	}
	suppressed := v.suppressed.Load()

	if protocol.IsStatus(id) {
		v.state.Apply(msg, timeNow())
		if _, ok := msg.(protocol.PositionUpdate); ok && !v.referencePending {
			if offset, due := referenceOffsetDue(v.state, v.cfg); due {
				if w, err := v.writerLocked(); err == nil {
					refWriter, refOffset = w, offset
					v.referencePending = true
				}
			}
		}
		if !suppressed {
			events = append(events, CarStatus{Device: v.device, State: v.state})
		}
	} else if !suppressed {
		events = append(events, CarEvent{Device: v.device, Message: msg})
	}
	v.mu.Unlock()

	v.publish(events...)
	if refWriter != nil {
		v.setReferenceOffset(refWriter, refOffset)
	}
}

// setReferenceOffset writes the lane reference without holding mu and
// records it once the vehicle acknowledged it.
func (v *Vehicle) setReferenceOffset(w Characteristic, offset float32) {
	err := v.writeCommand(w, protocol.SetAbsoluteOffset{OffsetMm: offset})

	v.mu.Lock()
	v.referencePending = false
	if err == nil {
		v.state.ReferenceOffsetInitialized = true
		v.state.ReferenceOffset = offset
	}
	v.mu.Unlock()

	if err != nil {
		v.log.WithField("err", err).Warn("reference offset not set")
		return
	}
	v.log.WithField("offset", offset).Debug("reference offset set")
}
