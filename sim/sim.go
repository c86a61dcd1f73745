// Package sim provides a simulated vehicle that implements the transport
// interfaces of overdrive. It drives a PeripheralHandler through the
// connection lifecycle and streams telemetry around a loop of road pieces.
package sim

import (
	"context"
	"github.com/jd3nn1s/overdrive"
	"github.com/jd3nn1s/overdrive/protocol"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"sync"
	"time"
)

const (
	ProductID      = 0x0001
	RawBattery     = 3920
	eventQueueSize = 64
	// location codes reported per road piece
	reportsPerPiece = 2
	laneCount       = 16
)

// DefaultTrack is a loop of road piece ids starting on the finish line.
var DefaultTrack = []uint8{34, 36, 18, 23, 39, 17, 20, 40}

var ErrNotConnected = errors.New("simulated vehicle not connected")

// Vehicle is a simulated vehicle. Set the exported fields before Connect.
type Vehicle struct {
	Identifier uint32
	Version    uint16
	Track      []uint8
	Tick       time.Duration
	// ServiceIndex is where the vehicle service appears in the discovered
	// service list.
	ServiceIndex int

	id      string
	handler overdrive.PeripheralHandler
	events  chan func()

	mu        sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	streaming bool
	speed     int16
	lane      int
	offset    float32
	piece     int
	report    int
	commands  []protocol.Command
}

func New(id string, identifier uint32) *Vehicle {
	return &Vehicle{
		Identifier: identifier,
		Version:    0x2676,
		Track:      DefaultTrack,
		Tick:       50 * time.Millisecond,
		id:         id,
		lane:       10,
	}
}

// Attach sets the handler receiving this vehicle's transport events.
func (s *Vehicle) Attach(h overdrive.PeripheralHandler) {
	s.handler = h
}

func (s *Vehicle) Advertisement() overdrive.Advertisement {
	return overdrive.Advertisement{
		ManufacturerData: manufacturerData(s.Identifier, ProductID),
		LocalName:        localName(s.Version, "Drive"),
		ServiceUUIDs:     []string{protocol.ServiceUUID},
	}
}

// Commands returns every command written to the vehicle so far.
func (s *Vehicle) Commands() []protocol.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Command(nil), s.commands...)
}

func (s *Vehicle) Speed() int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

func (s *Vehicle) ID() string {
	return s.id
}

func (s *Vehicle) Connect() error {
	if s.handler == nil {
		return errors.New("no handler attached")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return errors.New("already connected")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.connected = true
	s.cancel = cancel
	s.events = make(chan func(), eventQueueSize)
	s.piece, s.report = 0, 0

	s.wg.Add(2)
	go s.dispatch(ctx, s.events)
	go s.drive(ctx)

	s.enqueueLocked(func() {
		if err := s.handler.HandleConnected(); err != nil {
			log.WithField("err", err).Error("sim: connect handler failed")
		}
	})
	return nil
}

func (s *Vehicle) DiscoverServices() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	services := make([]overdrive.Service, s.ServiceIndex+1)
	for i := range services {
		services[i] = &service{uuid: "1800", sim: s}
	}
	services[s.ServiceIndex] = &service{uuid: protocol.ServiceUUID, sim: s}
	s.enqueueLocked(func() {
		if err := s.handler.HandleServices(services); err != nil {
			log.WithField("err", err).Error("sim: services handler failed")
		}
	})
	return nil
}

func (s *Vehicle) Disconnect() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}
	s.enqueueLocked(s.handler.HandleDisconnected)
	s.connected = false
	s.streaming = false
	s.speed = 0
	cancel := s.cancel
	s.mu.Unlock()

	// dispatch delivers the queued disconnect before it stops
	cancel()
	return nil
}

// Wait blocks until the goroutines of the last connection have stopped.
func (s *Vehicle) Wait() {
	s.wg.Wait()
}

func (s *Vehicle) enqueueLocked(fn func()) {
	select {
	case s.events <- fn:
	default:
		log.WithField("vehicle", s.id).Warn("sim: event queue full, dropping event")
	}
}

func (s *Vehicle) notifyLocked(frame []byte) {
	if !s.streaming {
		return
	}
	s.enqueueLocked(func() {
		s.handler.HandleNotification(frame)
	})
}

// dispatch delivers transport events one at a time, in order.
func (s *Vehicle) dispatch(ctx context.Context, events <-chan func()) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// deliver what was queued before the link went down
			for {
				select {
				case fn := <-events:
					fn()
				default:
					return
				}
			}
		case fn := <-events:
			fn()
		}
	}
}

// drive moves the vehicle along the track while it has speed.
func (s *Vehicle) drive(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.mu.Lock()
		s.stepLocked()
		s.mu.Unlock()
	}
}

func (s *Vehicle) stepLocked() {
	if !s.streaming || s.speed <= 0 || len(s.Track) == 0 {
		return
	}
	if s.report == reportsPerPiece {
		prev := s.piece
		s.piece = (s.piece + 1) % len(s.Track)
		s.report = 0
		s.notifyLocked(transitionFrame(int8(s.piece), int8(prev), s.offset))
		return
	}
	pos := uint8(s.lane*3 + s.report)
	s.report++
	s.notifyLocked(positionFrame(pos, s.Track[s.piece], s.offset, uint16(s.speed)))
}

func (s *Vehicle) write(data []byte) error {
	cmd, err := protocol.DecodeCommand(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	s.commands = append(s.commands, cmd)

	switch c := cmd.(type) {
	case protocol.SetSpeed:
		s.speed = c.Speed
	case protocol.ChangeOffsetRelative:
		s.moveToOffsetLocked(c.OffsetMm)
		s.notifyLocked(offsetFrame(s.offset, 0))
	case protocol.SetAbsoluteOffset:
		s.offset = c.OffsetMm
	case protocol.RequestBattery:
		s.notifyLocked(u16Frame(protocol.IDBatteryLevelResponse, RawBattery))
	case protocol.RequestVersion:
		s.notifyLocked(u16Frame(protocol.IDVersionResponse, s.Version))
	case protocol.Ping:
		s.notifyLocked(frame(protocol.IDPingResponse))
	case protocol.UTurn:
		s.notifyLocked(frame(protocol.IDVehicleDelocalized))
	case protocol.Disconnect:
		// the link drops once the controller releases it
		s.speed = 0
		s.streaming = false
	}
	return nil
}

// moveToOffsetLocked changes lane, moving the location codes the vehicle
// reads by one lane per 9 mm.
func (s *Vehicle) moveToOffsetLocked(offset float32) {
	lanes := int((offset - s.offset) / 9)
	s.offset = offset
	s.lane += lanes
	if s.lane < 0 {
		s.lane = 0
	}
	if s.lane >= laneCount {
		s.lane = laneCount - 1
	}
}

func (s *Vehicle) setNotify(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	s.streaming = enabled
	return nil
}

type service struct {
	uuid string
	sim  *Vehicle
}

func (sv *service) UUID() string {
	return sv.uuid
}

func (sv *service) DiscoverCharacteristics() error {
	s := sv.sim
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	if sv.uuid != protocol.ServiceUUID {
		s.enqueueLocked(func() {
			if err := s.handler.HandleCharacteristics(nil); err != nil {
				log.WithField("err", err).Error("sim: characteristics handler failed")
			}
		})
		return nil
	}
	chars := []overdrive.Characteristic{
		&characteristic{uuid: protocol.ReadCharacteristicUUID, sim: s},
		&characteristic{uuid: protocol.WriteCharacteristicUUID, sim: s},
	}
	s.enqueueLocked(func() {
		if err := s.handler.HandleCharacteristics(chars); err != nil {
			log.WithField("err", err).Error("sim: characteristics handler failed")
		}
	})
	return nil
}

type characteristic struct {
	uuid string
	sim  *Vehicle
}

func (c *characteristic) UUID() string {
	return c.uuid
}

func (c *characteristic) Write(data []byte) error {
	if c.uuid != protocol.WriteCharacteristicUUID {
		return errors.New("characteristic is not writable")
	}
	return c.sim.write(data)
}

func (c *characteristic) SetNotify(enabled bool) error {
	if c.uuid != protocol.ReadCharacteristicUUID {
		return errors.New("characteristic does not notify")
	}
	return c.sim.setNotify(enabled)
}
