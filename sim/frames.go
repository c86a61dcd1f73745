package sim

import (
	"encoding/binary"
	"github.com/jd3nn1s/overdrive/protocol"
	"math"
)

// frames a vehicle sends, laid out as protocol.Decode expects them

func frame(id protocol.MessageID, payload ...byte) []byte {
	return append([]byte{uint8(1 + len(payload)), uint8(id)}, payload...)
}

func positionFrame(pos, piece uint8, offset float32, speed uint16) []byte {
	p := make([]byte, 15)
	p[0] = pos
	p[1] = piece
	binary.LittleEndian.PutUint32(p[2:6], math.Float32bits(offset))
	binary.LittleEndian.PutUint16(p[6:8], speed)
	binary.LittleEndian.PutUint16(p[13:15], speed)
	return frame(protocol.IDPositionUpdate, p...)
}

func transitionFrame(idx, prev int8, offset float32) []byte {
	p := make([]byte, 16)
	p[0] = uint8(idx)
	p[1] = uint8(prev)
	binary.LittleEndian.PutUint32(p[2:6], math.Float32bits(offset))
	return frame(protocol.IDTransitionUpdate, p...)
}

func offsetFrame(offset float32, laneChangeID uint8) []byte {
	p := make([]byte, 5)
	binary.LittleEndian.PutUint32(p[0:4], math.Float32bits(offset))
	p[4] = laneChangeID
	return frame(protocol.IDOffsetFromRoadCenterUpdate, p...)
}

func u16Frame(id protocol.MessageID, v uint16) []byte {
	p := make([]byte, 2)
	binary.LittleEndian.PutUint16(p, v)
	return frame(id, p...)
}

func manufacturerData(identifier uint32, productID uint16) []byte {
	p := make([]byte, 8)
	binary.LittleEndian.PutUint32(p[0:4], identifier)
	binary.LittleEndian.PutUint16(p[6:8], productID)
	return p
}

func localName(version uint16, name string) []byte {
	p := make([]byte, 7, 7+len(name)+1)
	binary.LittleEndian.PutUint16(p[0:2], version)
	p = append(p, name...)
	return append(p, 0)
}
