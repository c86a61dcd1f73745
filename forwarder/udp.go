package forwarder

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"github.com/BurntSushi/toml"
	"github.com/fxamacker/cbor/v2"
	"github.com/jd3nn1s/overdrive"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	defaultQueueSize   = 64
	defaultMinInterval = 10 * time.Millisecond
	writeBufSize       = 64 * 1024
)

type UDPConfig struct {
	Server string
	Port   int
	// QueueSize is the number of events held while the socket is busy.
	// Events beyond that are dropped.
	QueueSize int
	// MinInterval is the minimum time between two datagrams.
	MinInterval time.Duration
}

// UDPForwarder is an overdrive.EventSink sending each event as one datagram:
// a Header followed by a CBOR encoded Record. Run it with overdrive.Retry.
type UDPForwarder struct {
	Config *UDPConfig

	conn    net.Conn
	fwdChan chan fwdItem
	encMode cbor.EncMode
}

type fwdItem struct {
	hdr Header
	rec Record
}

// to allow testing
var timeNow = time.Now

// NewUDPForwarder loads the configuration from a file next to the binary.
func NewUDPForwarder(fileName string) (*UDPForwarder, error) {
	dir, err := filepath.Abs(filepath.Dir(os.Args[0]))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to determine binary location")
	}
	file, err := os.Open(filepath.Join(dir, fileName))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return NewUDPForwarderFromReader(file)
}

func NewUDPForwarderFromReader(configReader io.Reader) (*UDPForwarder, error) {
	configData, err := io.ReadAll(configReader)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read config reader")
	}
	config := UDPConfig{
		QueueSize:   defaultQueueSize,
		MinInterval: defaultMinInterval,
	}
	if _, err := toml.Decode(string(configData), &config); err != nil {
		return nil, errors.Wrapf(err, "unable to load udp forwarder configuration")
	}
	if config.Server == "" || config.Port <= 0 {
		return nil, errors.Errorf("udp forwarder needs a server and port, got %q:%d", config.Server, config.Port)
	}
	if config.QueueSize < 1 {
		config.QueueSize = defaultQueueSize
	}
	encMode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, errors.Wrap(err, "unable to create cbor encoder")
	}
	return &UDPForwarder{
		Config:  &config,
		fwdChan: make(chan fwdItem, config.QueueSize),
		encMode: encMode,
	}, nil
}

func (udp *UDPForwarder) Name() string {
	return "udp-forwarder"
}

// Publish queues an event. It never blocks; when the queue is full the
// event is dropped.
func (udp *UDPForwarder) Publish(e overdrive.Event) {
	hdr, rec := newRecord(e, timeNow())
	select {
	case udp.fwdChan <- fwdItem{hdr: hdr, rec: rec}:
	default:
		log.WithField("event", rec.Event).Warn("udp forwarder queue full, dropping event")
	}
}

func (udp *UDPForwarder) Open() error {
	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d",
		udp.Config.Server,
		udp.Config.Port))
	if err != nil {
		return errors.Wrap(err, "unable to dial udp forwarder server")
	}
	if udpConn, ok := conn.(*net.UDPConn); ok {
		if err = udpConn.SetWriteBuffer(writeBufSize); err != nil {
			conn.Close()
			return errors.Wrapf(err, "unable to set OS write buffer to %v", writeBufSize)
		}
	}
	udp.conn = conn
	return nil
}

func (udp *UDPForwarder) Close() error {
	if udp.conn == nil {
		return nil
	}
	err := udp.conn.Close()
	udp.conn = nil
	return err
}

// Start sends queued events until ctx is done or a write fails.
func (udp *UDPForwarder) Start(ctx context.Context) error {
	if udp.conn == nil {
		return errors.New("udp forwarder is not open")
	}
	var limiter <-chan time.Time
	if udp.Config.MinInterval > 0 {
		ticker := time.NewTicker(udp.Config.MinInterval)
		defer ticker.Stop()
		limiter = ticker.C
	}
	for {
		select {
		case item := <-udp.fwdChan:
			if err := udp.forward(item); err != nil {
				return errors.Wrap(err, "unable to forward event to server")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
		if limiter != nil {
			select {
			case <-limiter:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (udp *UDPForwarder) forward(item fwdItem) error {
	buf := bytes.NewBuffer([]byte{})
	if err := binary.Write(buf, binary.LittleEndian, &item.hdr); err != nil {
		return errors.Wrap(err, "unable to write udp packet header")
	}
	body, err := udp.encMode.Marshal(&item.rec)
	if err != nil {
		return errors.Wrapf(err, "unable to encode %s event", item.rec.Event)
	}
	buf.Write(body)
	_, err = udp.conn.Write(buf.Bytes())
	return err
}

// DecodeDatagram splits a datagram produced by UDPForwarder.
func DecodeDatagram(data []byte) (Header, Record, error) {
	hdr := Header{}
	rec := Record{}
	rdr := bytes.NewReader(data)
	if err := binary.Read(rdr, binary.LittleEndian, &hdr); err != nil {
		return hdr, rec, errors.Wrap(err, "unable to read udp packet header")
	}
	if err := cbor.Unmarshal(data[1:], &rec); err != nil {
		return hdr, rec, errors.Wrap(err, "unable to decode record")
	}
	return hdr, rec, nil
}
