package forwarder

import (
	"github.com/jd3nn1s/overdrive"
	"time"
)

type Header struct {
	Type uint8
}

const (
	TypeLifecycle = 1
	TypeStatus    = 2
	TypeEvent     = 3
)

// Record is the CBOR body of a datagram. Only the fields that apply to the
// event are set.
type Record struct {
	Event     string                  `cbor:"event"`
	Vehicle   string                  `cbor:"vehicle"`
	Name      string                  `cbor:"name"`
	Sent      time.Time               `cbor:"sent"`
	Firmware  uint16                  `cbor:"firmware,omitempty"`
	State     *overdrive.VehicleState `cbor:"state,omitempty"`
	MessageID uint8                   `cbor:"messageID,omitempty"`
	Message   interface{}             `cbor:"message,omitempty"`
}

func newRecord(e overdrive.Event, now time.Time) (Header, Record) {
	src := e.Source()
	rec := Record{
		Event:   e.Name(),
		Vehicle: src.ID,
		Name:    src.Identity.DisplayName(),
		Sent:    now,
	}
	hdr := Header{Type: TypeLifecycle}
	switch ev := e.(type) {
	case overdrive.CarReady:
		rec.Firmware = ev.FirmwareVersion
	case overdrive.CarStatus:
		state := ev.State
		rec.State = &state
		hdr.Type = TypeStatus
	case overdrive.CarEvent:
		rec.MessageID = uint8(ev.Message.ID())
		rec.Message = ev.Message
		hdr.Type = TypeEvent
	}
	return hdr, rec
}
