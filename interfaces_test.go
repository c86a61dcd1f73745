package overdrive

import (
	"github.com/jd3nn1s/overdrive/protocol"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

// Ground Shock, firmware 0x2676, named "Drive"
var testAdvertisement = Advertisement{
	ManufacturerData: []byte{0xbe, 0xef, 0x00, 0x08, 0x00, 0x00, 0x01, 0x00},
	LocalName:        []byte{0x76, 0x26, 0, 0, 0, 0, 0, 'D', 'r', 'i', 'v', 'e', 0},
	ServiceUUIDs:     []string{protocol.ServiceUUID},
}

type peripheralStub struct {
	connectErr    error
	discoverErr   error
	disconnectErr error
	// called from Disconnect, like a transport reporting the drop at once
	onDisconnect func()

	connects    int
	discovers   int
	disconnects int
}

func (p *peripheralStub) ID() string {
	return "stub-vehicle"
}

func (p *peripheralStub) Connect() error {
	p.connects++
	return p.connectErr
}

func (p *peripheralStub) DiscoverServices() error {
	p.discovers++
	return p.discoverErr
}

func (p *peripheralStub) Disconnect() error {
	p.disconnects++
	if p.onDisconnect != nil {
		p.onDisconnect()
	}
	return p.disconnectErr
}

type serviceStub struct {
	uuid       string
	discovered int
}

func (s *serviceStub) UUID() string {
	return s.uuid
}

func (s *serviceStub) DiscoverCharacteristics() error {
	s.discovered++
	return nil
}

type characteristicStub struct {
	uuid      string
	writeErr  error
	notifyErr error
	// called from Write and SetNotify before they return
	onWrite  func(data []byte)
	onNotify func()

	mu     sync.Mutex
	writes [][]byte
	notify bool
}

func (c *characteristicStub) UUID() string {
	return c.uuid
}

func (c *characteristicStub) Write(data []byte) error {
	c.mu.Lock()
	if c.writeErr != nil {
		c.mu.Unlock()
		return c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	c.mu.Unlock()
	if c.onWrite != nil {
		c.onWrite(data)
	}
	return nil
}

func (c *characteristicStub) SetNotify(enabled bool) error {
	if c.notifyErr != nil {
		return c.notifyErr
	}
	c.notify = enabled
	if c.onNotify != nil {
		c.onNotify()
	}
	return nil
}

// commands decodes everything written so far.
func (c *characteristicStub) commands(t *testing.T) []protocol.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	var cmds []protocol.Command
	for _, w := range c.writes {
		cmd, err := protocol.DecodeCommand(w)
		require.NoError(t, err)
		cmds = append(cmds, cmd)
	}
	return cmds
}

func (c *characteristicStub) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = nil
}

type sinkStub struct {
	mu     sync.Mutex
	events []Event
}

func (s *sinkStub) Publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *sinkStub) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, e := range s.events {
		names = append(names, e.Name())
	}
	return names
}

func (s *sinkStub) last() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return nil
	}
	return s.events[len(s.events)-1]
}

func (s *sinkStub) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// withinTimeout fails the test if fn does not return within a second.
func withinTimeout(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("call did not return")
	}
}

type testVehicle struct {
	*Vehicle
	peripheral *peripheralStub
	read       *characteristicStub
	write      *characteristicStub
	sink       *sinkStub
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Platform = "linux"
	return cfg
}

func newTestVehicle(cfg Config) *testVehicle {
	tv := &testVehicle{
		peripheral: &peripheralStub{},
		read:       &characteristicStub{uuid: protocol.ReadCharacteristicUUID},
		write:      &characteristicStub{uuid: protocol.WriteCharacteristicUUID},
		sink:       &sinkStub{},
	}
	tv.Vehicle = NewVehicle(tv.peripheral, testAdvertisement, tv.sink, cfg)
	return tv
}

func testServices(cfg Config) []Service {
	services := make([]Service, cfg.ServiceIndexFor(cfg.Platform)+1)
	for i := range services {
		services[i] = &serviceStub{uuid: "1800"}
	}
	services[len(services)-1] = &serviceStub{uuid: protocol.ServiceUUID}
	return services
}

// streamingVehicle walks a vehicle through the lifecycle the way a transport
// would and clears what was recorded on the way.
func streamingVehicle(t *testing.T) *testVehicle {
	cfg := testConfig()
	tv := newTestVehicle(cfg)
	require.NoError(t, tv.Connect())
	require.NoError(t, tv.HandleConnected())
	require.NoError(t, tv.HandleServices(testServices(cfg)))
	require.NoError(t, tv.HandleCharacteristics([]Characteristic{tv.read, tv.write}))
	require.Equal(t, Streaming, tv.Lifecycle())
	tv.write.reset()
	tv.sink.reset()
	return tv
}
