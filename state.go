package overdrive

import (
	"github.com/jd3nn1s/overdrive/protocol"
	"github.com/pkg/errors"
	"time"
)

var (
	ErrInsufficientHistory = errors.New("insufficient position history")
	ErrUndefinedOffset     = errors.New("track position has no lane offset")
)

// to allow testing
var timeNow = time.Now

// TrackPosition is a location code read on a road piece.
type TrackPosition struct {
	PieceID uint8
	Pos     uint8
	Known   bool
}

// VehicleState aggregates the status messages received from a vehicle. It is
// a plain value; copies are safe to hand out.
type VehicleState struct {
	BatteryLevel    int
	FirmwareVersion uint16

	Current TrackPosition
	// Buffered holds the position reported before Current.
	Buffered TrackPosition

	Offset               float32
	OffsetFromRoadCenter float32
	OffsetNotDocumented  float32
	Speed                uint16
	IsLoading            bool

	LastUpdate time.Time

	ReferenceOffsetInitialized bool
	ReferenceOffset            float32
}

// Apply updates the state from a status message and reports whether the
// message was a status message.
func (s *VehicleState) Apply(msg protocol.Message, now time.Time) bool {
	switch m := msg.(type) {
	case protocol.VersionResponse:
		s.FirmwareVersion = m.Version
	case protocol.BatteryLevelResponse:
		s.BatteryLevel = m.Percent
	case protocol.PositionUpdate:
		s.Buffered = s.Current
		s.Current = TrackPosition{
			PieceID: m.RoadPieceID,
			Pos:     m.LocationID,
			Known:   true,
		}
		s.Offset = m.OffsetMm
		s.Speed = m.SpeedMmS
	case protocol.OffsetFromRoadCenterUpdate:
		s.OffsetFromRoadCenter = m.OffsetMm
	case protocol.LoadingStatusUpdate:
		s.IsLoading = m.IsLoading
	case protocol.UndocumentedOffsetUpdate:
		s.OffsetNotDocumented = m.Offset
	default:
		return false
	}
	if now.After(s.LastUpdate) {
		s.LastUpdate = now
	}
	return true
}

const (
	laneBucketWidth = 3
	maxTrackPos     = 47
)

// lateral offset in mm for each group of three location codes, from the
// leftmost lane (0-2) to the rightmost (45-47)
var laneOffsets = [16]float32{
	-68, -59, -50, -41,
	-32, -23, -14, -5,
	5, 14, 23, 32,
	41, 50, 59, 68,
}

// DeriveLaneOffset estimates the lateral offset of the vehicle from the last
// two location codes read on the same road piece. The sign follows the
// direction of travel across the piece.
func DeriveLaneOffset(s VehicleState) (float32, error) {
	if !s.Current.Known || !s.Buffered.Known {
		return 0, ErrInsufficientHistory
	}
	if s.Current.PieceID != s.Buffered.PieceID {
		return 0, errors.Wrapf(ErrInsufficientHistory, "pieces %d and %d differ",
			s.Buffered.PieceID, s.Current.PieceID)
	}
	pos := s.Current.Pos
	if pos > maxTrackPos {
		return 0, errors.Wrapf(ErrUndefinedOffset, "position %d", pos)
	}
	magnitude := laneOffsets[pos/laneBucketWidth]

	direction := int(s.Current.Pos) - int(s.Buffered.Pos)
	switch {
	case direction > 0:
		return magnitude, nil
	case direction < 0:
		return -magnitude, nil
	}
	return 0, nil
}

// referenceOffsetDue returns the lane reference to give the vehicle the first
// time it is seen twice on one of the reference tracks. Until the offset can
// be derived nothing is due; the next position update tries again.
func referenceOffsetDue(s VehicleState, cfg Config) (float32, bool) {
	if s.ReferenceOffsetInitialized || !s.Current.Known || !cfg.isReferenceTrack(s.Current.PieceID) {
		return 0, false
	}
	offset, err := DeriveLaneOffset(s)
	if err != nil {
		return 0, false
	}
	return offset, true
}
