package overdrive

import (
	"github.com/jd3nn1s/overdrive/protocol"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"sync"
	"sync/atomic"
)

// LifecycleState is the connection phase of a vehicle. The transitions are:
//
//	disconnected          -> connecting
//	connecting            -> servicesDiscovering
//	servicesDiscovering   -> characteristicsReady
//	characteristicsReady  -> sdkActivating
//	sdkActivating         -> loggingEnabled
//	loggingEnabled        -> streaming
//
// Every state may move to disconnected.
type LifecycleState string

const (
	Disconnected         LifecycleState = "disconnected"
	Connecting           LifecycleState = "connecting"
	ServicesDiscovering  LifecycleState = "servicesDiscovering"
	CharacteristicsReady LifecycleState = "characteristicsReady"
	SdkActivating        LifecycleState = "sdkActivating"
	LoggingEnabled       LifecycleState = "loggingEnabled"
	Streaming            LifecycleState = "streaming"
)

var nextState = map[LifecycleState]LifecycleState{
	Disconnected:         Connecting,
	Connecting:           ServicesDiscovering,
	ServicesDiscovering:  CharacteristicsReady,
	CharacteristicsReady: SdkActivating,
	SdkActivating:        LoggingEnabled,
	LoggingEnabled:       Streaming,
}

// canCommand reports whether commands may be written in this state.
func (s LifecycleState) canCommand() bool {
	switch s {
	case CharacteristicsReady, SdkActivating, LoggingEnabled, Streaming:
		return true
	}
	return false
}

var (
	ErrInvalidTransition     = errors.New("invalid lifecycle transition")
	ErrTransportNotReady     = errors.New("transport not ready")
	ErrCommandWriteFailed    = errors.New("command write failed")
	ErrServiceNotFound       = errors.New("vehicle service not found")
	ErrCharacteristicMissing = errors.New("vehicle characteristic missing")
)

// Vehicle drives one vehicle through its connection lifecycle, routes the
// messages it sends and issues commands to it. It implements
// PeripheralHandler; the transport owning the Peripheral must forward its
// events to it.
type Vehicle struct {
	peripheral Peripheral
	sink       EventSink
	cfg        Config
	device     Device
	firmware   uint16
	localName  string
	log        *log.Entry

	telemetry  *TelemetryHub
	suppressed atomic.Bool

	// guards everything below
	mu        sync.Mutex
	lifecycle LifecycleState
	read      Characteristic
	write     Characteristic
	state     VehicleState
	// a reference offset write is in flight
	referencePending bool

	// serialises writes to the transport
	writeMu sync.Mutex
}

// NewVehicle creates a vehicle from its advertisement. Advertisement records
// that cannot be fully decoded are logged; the vehicle is still usable.
func NewVehicle(p Peripheral, adv Advertisement, sink EventSink, cfg Config) *Vehicle {
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}
	v := &Vehicle{
		peripheral: p,
		sink:       sink,
		cfg:        cfg,
		telemetry:  newTelemetryHub(cfg.TelemetryBuffer),
		lifecycle:  Disconnected,
	}

	identity, err := protocol.DecodeIdentity(adv.ManufacturerData)
	v.device = Device{ID: p.ID(), Identity: identity}
	v.log = log.WithField("vehicle", p.ID()).WithField("name", identity.DisplayName())
	if err != nil {
		v.log.WithField("err", err).Warn("unable to resolve vehicle model")
	}

	v.firmware, v.localName, err = protocol.DecodeLocalName(adv.LocalName)
	if err != nil {
		v.log.WithField("err", err).Warn("unable to decode local name")
	}
	v.state.FirmwareVersion = v.firmware

	v.log.WithField("firmware", v.firmware).Debug("created vehicle")
	return v
}

func (v *Vehicle) Device() Device {
	return v.device
}

func (v *Vehicle) LocalName() string {
	return v.localName
}

func (v *Vehicle) Lifecycle() LifecycleState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lifecycle
}

// State returns a copy of the current vehicle state.
func (v *Vehicle) State() VehicleState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Connect starts connecting to the vehicle. The lifecycle continues as the
// transport reports progress.
func (v *Vehicle) Connect() error {
	v.mu.Lock()
	if err := v.setStateLocked(Connecting); err != nil {
		v.mu.Unlock()
		return err
	}
	v.mu.Unlock()

	v.log.Debug("connecting")
	if err := v.peripheral.Connect(); err != nil {
		v.mu.Lock()
		_ = v.setStateLocked(Disconnected)
		v.mu.Unlock()
		return errors.Wrap(err, "unable to connect")
	}
	return nil
}

func (v *Vehicle) HandleConnected() error {
	v.mu.Lock()
	err := v.setStateLocked(ServicesDiscovering)
	v.mu.Unlock()
	if err != nil {
		return err
	}
	if err := v.peripheral.DiscoverServices(); err != nil {
		return errors.Wrap(err, "unable to discover services")
	}
	return nil
}

// HandleServices picks the vehicle service by its platform specific index and
// discovers its characteristics.
func (v *Vehicle) HandleServices(services []Service) error {
	v.mu.Lock()
	if v.lifecycle != ServicesDiscovering {
		state := v.lifecycle
		v.mu.Unlock()
		return errors.Wrapf(ErrInvalidTransition, "services discovered while %s", state)
	}
	v.mu.Unlock()

	idx := v.cfg.ServiceIndexFor(v.cfg.Platform)
	if idx >= len(services) {
		return errors.Wrapf(ErrServiceNotFound, "index %d of %d services on %s",
			idx, len(services), v.cfg.Platform)
	}
	service := services[idx]
	v.log.WithField("service", service.UUID()).Debug("found services")
	if err := service.DiscoverCharacteristics(); err != nil {
		return errors.Wrap(err, "unable to discover characteristics")
	}
	return nil
}

// HandleCharacteristics selects the read and write characteristics, turns on
// SDK mode and enables notifications. If activating SDK mode or enabling
// notifications fails, the vehicle stays in its current phase and only
// Disconnect leaves it.
func (v *Vehicle) HandleCharacteristics(chars []Characteristic) error {
	var read, write Characteristic
	for _, c := range chars {
		switch protocol.NormalizeUUID(c.UUID()) {
		case protocol.ReadCharacteristicUUID:
			read = c
		case protocol.WriteCharacteristicUUID:
			write = c
		}
	}

	v.mu.Lock()
	if v.lifecycle != ServicesDiscovering {
		state := v.lifecycle
		v.mu.Unlock()
		return errors.Wrapf(ErrInvalidTransition, "characteristics discovered while %s", state)
	}
	v.log.WithField("read", read != nil).
		WithField("write", write != nil).
		Debug("found characteristics")
	if read == nil || write == nil {
		v.mu.Unlock()
		return errors.Wrapf(ErrCharacteristicMissing, "read %v, write %v", read != nil, write != nil)
	}
	v.read, v.write = read, write
	_ = v.setStateLocked(CharacteristicsReady)
	_ = v.setStateLocked(SdkActivating)
	v.mu.Unlock()
	v.publish(DeviceConnected{v.device})

	// mu is not held while calling the transport
	if err := v.writeCommand(write, protocol.ActivateSdkMode{}); err != nil {
		return errors.Wrap(err, "unable to activate sdk mode")
	}
	v.publish(SdkModeOn{v.device})

	if err := read.SetNotify(true); err != nil {
		return errors.Wrap(err, "unable to enable notifications")
	}

	v.mu.Lock()
	err := v.setStateLocked(LoggingEnabled)
	if err == nil {
		err = v.setStateLocked(Streaming)
	}
	v.mu.Unlock()
	if err != nil {
		return err
	}
	v.publish(CarReady{Device: v.device, FirmwareVersion: v.firmware})
	return nil
}

// HandleDisconnected is called by the transport when the link drops.
func (v *Vehicle) HandleDisconnected() {
	v.mu.Lock()
	changed := v.dropLinkLocked()
	v.mu.Unlock()
	if changed {
		v.log.Info("disconnected")
		v.telemetry.unsubscribeAll()
		v.publish(DeviceDisconnected{v.device})
	}
}

// Disconnect asks the vehicle to disconnect and releases the link. The
// vehicle is disconnected before the transport is called, so a transport
// reporting the drop from within Disconnect is ignored.
func (v *Vehicle) Disconnect() error {
	v.mu.Lock()
	if v.lifecycle == Disconnected {
		v.mu.Unlock()
		return nil
	}
	var w Characteristic
	if v.lifecycle.canCommand() {
		w = v.write
	}
	v.dropLinkLocked()
	v.mu.Unlock()

	var sendErr error
	if w != nil {
		sendErr = v.writeCommand(w, protocol.Disconnect{})
	}
	err := v.peripheral.Disconnect()

	v.telemetry.unsubscribeAll()
	v.publish(DeviceDisconnected{v.device})

	if err != nil {
		return errors.Wrap(err, "unable to disconnect peripheral")
	}
	return sendErr
}

func (v *Vehicle) dropLinkLocked() bool {
	v.read, v.write = nil, nil
	if v.lifecycle == Disconnected {
		return false
	}
	_ = v.setStateLocked(Disconnected)
	return true
}

func (v *Vehicle) setStateLocked(to LifecycleState) error {
	from := v.lifecycle
	if to != Disconnected && nextState[from] != to {
		return errors.Wrapf(ErrInvalidTransition, "%s to %s", from, to)
	}
	v.lifecycle = to
	v.log.WithField("from", from).WithField("to", to).Debug("lifecycle transition")
	return nil
}

func (v *Vehicle) publish(events ...Event) {
	for _, e := range events {
		v.sink.Publish(e)
	}
}
