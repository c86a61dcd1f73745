package protocol

import (
	"encoding/binary"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"math"
)

const (
	offsetLength = 0
	offsetID     = 1

	minFrameSize = 2
)

// Message is a decoded vehicle to controller frame.
type Message interface {
	ID() MessageID
}

type PingResponse struct{}

type VersionResponse struct {
	Version uint16
}

type BatteryLevelResponse struct {
	RawLevel uint16
	// Percent is floor(RawLevel / MaxBatteryLevel * 100).
	Percent int
}

// PositionUpdate is sent whenever the vehicle reads a location code on the
// current road piece.
type PositionUpdate struct {
	LocationID           uint8
	RoadPieceID          uint8
	OffsetMm             float32
	SpeedMmS             uint16
	Flags                uint8
	LastRecvLaneCmd      uint8
	LastExecLaneCmd      uint8
	LastDesiredLaneSpeed uint16
	LastDesiredSpeed     uint16
}

// TransitionUpdate is sent when the vehicle crosses onto a new road piece.
type TransitionUpdate struct {
	RoadPieceIdx         int8
	RoadPieceIdxPrev     int8
	OffsetMm             float32
	LastRecvLaneCmd      uint8
	LastExecLaneCmd      uint8
	LastDesiredLaneSpeed uint16
	DriftPixels          int8
	LaneChangeActivity   uint8
	UphillCounter        uint8
	DownhillCounter      uint8
	LeftWheelCm          uint8
	RightWheelCm         uint8
}

type IntersectionUpdate struct {
	RoadPieceIdx        uint8
	OffsetMm            float32
	IntersectionCode    uint8
	IsExiting           uint8
	MmSinceTransition   uint16
	MmSinceIntersection uint16
}

type VehicleDelocalized struct{}

type OffsetFromRoadCenterUpdate struct {
	OffsetMm     float32
	LaneChangeID uint8
}

// LoadingStatusUpdate carries the raw flag as well as the derived value; the
// polarity of the flag is unconfirmed.
type LoadingStatusUpdate struct {
	NotLoadingFlag uint8
	IsLoading      bool
}

type UndocumentedOffsetUpdate struct {
	Offset float32
}

// ReservedMessage is a frame with an id that vehicles are known to send but
// whose payload has no documented meaning.
type ReservedMessage struct {
	MessageID MessageID
	Payload   []byte
}

// UnknownMessage is any frame with an id this package does not know about.
type UnknownMessage struct {
	MessageID MessageID
	Payload   []byte
}

func (PingResponse) ID() MessageID               { return IDPingResponse }
func (VersionResponse) ID() MessageID            { return IDVersionResponse }
func (BatteryLevelResponse) ID() MessageID       { return IDBatteryLevelResponse }
func (PositionUpdate) ID() MessageID             { return IDPositionUpdate }
func (TransitionUpdate) ID() MessageID           { return IDTransitionUpdate }
func (IntersectionUpdate) ID() MessageID         { return IDIntersectionUpdate }
func (VehicleDelocalized) ID() MessageID         { return IDVehicleDelocalized }
func (OffsetFromRoadCenterUpdate) ID() MessageID { return IDOffsetFromRoadCenterUpdate }
func (LoadingStatusUpdate) ID() MessageID        { return IDLoadingStatusUpdate }
func (UndocumentedOffsetUpdate) ID() MessageID   { return IDUndocumentedOffsetUpdate }
func (m ReservedMessage) ID() MessageID          { return m.MessageID }
func (m UnknownMessage) ID() MessageID           { return m.MessageID }

// minimum frame sizes, including the length and id bytes
var minSizes = map[MessageID]int{
	IDPingResponse:               2,
	IDVersionResponse:            4,
	IDBatteryLevelResponse:       4,
	IDPositionUpdate:             17,
	IDTransitionUpdate:           18,
	IDIntersectionUpdate:         13,
	IDVehicleDelocalized:         2,
	IDOffsetFromRoadCenterUpdate: 7,
	IDLoadingStatusUpdate:        4,
	IDUndocumentedOffsetUpdate:   6,
}

// Decode turns a frame received on the read characteristic into a Message.
// Only frames too short for their id fail; unrecognised ids decode to
// UnknownMessage.
func Decode(frame []byte) (Message, error) {
	if len(frame) < minFrameSize {
		return nil, errors.Wrapf(ErrMalformedFrame, "frame of %d bytes has no id", len(frame))
	}
	id := MessageID(frame[offsetID])
	if size, ok := minSizes[id]; ok && len(frame) < size {
		return nil, errors.Wrapf(ErrMalformedFrame, "message 0x%02x needs %d bytes, got %d", uint8(id), size, len(frame))
	}
	if int(frame[offsetLength]) != len(frame)-1 {
		log.WithField("messageID", id).
			WithField("lengthByte", frame[offsetLength]).
			WithField("frameSize", len(frame)).
			Debug("frame length byte does not match frame size")
	}

	switch id {
	case IDPingResponse:
		return PingResponse{}, nil
	case IDVersionResponse:
		return VersionResponse{Version: u16(frame, 2)}, nil
	case IDBatteryLevelResponse:
		raw := u16(frame, 2)
		return BatteryLevelResponse{
			RawLevel: raw,
			Percent:  int(raw) * 100 / MaxBatteryLevel,
		}, nil
	case IDPositionUpdate:
		return PositionUpdate{
			LocationID:           frame[2],
			RoadPieceID:          frame[3],
			OffsetMm:             f32(frame, 4),
			SpeedMmS:             u16(frame, 8),
			Flags:                frame[10],
			LastRecvLaneCmd:      frame[11],
			LastExecLaneCmd:      frame[12],
			LastDesiredLaneSpeed: u16(frame, 13),
			LastDesiredSpeed:     u16(frame, 15),
		}, nil
	case IDTransitionUpdate:
		return TransitionUpdate{
			RoadPieceIdx:         int8(frame[2]),
			RoadPieceIdxPrev:     int8(frame[3]),
			OffsetMm:             f32(frame, 4),
			LastRecvLaneCmd:      frame[8],
			LastExecLaneCmd:      frame[9],
			LastDesiredLaneSpeed: u16(frame, 10),
			DriftPixels:          int8(frame[12]),
			LaneChangeActivity:   frame[13],
			UphillCounter:        frame[14],
			DownhillCounter:      frame[15],
			LeftWheelCm:          frame[16],
			RightWheelCm:         frame[17],
		}, nil
	case IDIntersectionUpdate:
		return IntersectionUpdate{
			RoadPieceIdx:        frame[2],
			OffsetMm:            f32(frame, 3),
			IntersectionCode:    frame[7],
			IsExiting:           frame[8],
			MmSinceTransition:   u16(frame, 9),
			MmSinceIntersection: u16(frame, 11),
		}, nil
	case IDVehicleDelocalized:
		return VehicleDelocalized{}, nil
	case IDOffsetFromRoadCenterUpdate:
		return OffsetFromRoadCenterUpdate{
			OffsetMm:     f32(frame, 2),
			LaneChangeID: frame[6],
		}, nil
	case IDLoadingStatusUpdate:
		flag := frame[3]
		return LoadingStatusUpdate{
			NotLoadingFlag: flag,
			IsLoading:      flag == 1,
		}, nil
	case IDUndocumentedOffsetUpdate:
		return UndocumentedOffsetUpdate{Offset: f32(frame, 2)}, nil
	case IDReserved1, IDReserved2, IDReserved3, IDReserved4, IDReserved5:
		return ReservedMessage{MessageID: id, Payload: payload(frame)}, nil
	}
	return UnknownMessage{MessageID: id, Payload: payload(frame)}, nil
}

func payload(frame []byte) []byte {
	return append([]byte(nil), frame[minFrameSize:]...)
}

func u16(frame []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(frame[off : off+2])
}

func f32(frame []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(frame[off : off+4]))
}
