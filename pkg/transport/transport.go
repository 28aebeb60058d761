// Package transport opens the byte streams a rosserial node runs on.
//
// A transport is addressed by URL:
//
//	/dev/ttyUSB0                      serial device, default baud rate
//	serial:///dev/ttyACM0?baud=115200 serial device
//	tcp://host:11411                  rosserial socket server
//	ws://host/path, wss://host/path   WebSocket, binary frames
package transport

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"
	"golang.org/x/net/websocket"
)

// Schemes.
const (
	SchemeSerial = "serial"
	SchemeTCP    = "tcp"
	SchemeWS     = "ws"
	SchemeWSS    = "wss"
)

const (
	// DefaultBaudrate is the rosserial default baud rate.
	DefaultBaudrate = 57600
	// DefaultTCPPort is the port of rosserial socket servers.
	DefaultTCPPort = "11411"
	// DefaultDialTimeout applies when Options.DialTimeout is 0.
	DefaultDialTimeout = 5 * time.Second
)

// Endpoint is a parsed transport address.
type Endpoint struct {
	Scheme string
	// Address is the device path for serial, host:port for tcp and
	// the full URL for WebSocket.
	Address  string
	Baudrate int
}

// String implements fmt.Stringer.
func (e *Endpoint) String() string {
	switch e.Scheme {
	case SchemeSerial:
		return fmt.Sprintf("serial://%s?baud=%d", e.Address, e.Baudrate)
	case SchemeTCP:
		return "tcp://" + e.Address
	}
	return e.Address
}

// ParseEndpoint parses a transport URL.
// A string without scheme is a serial device path.
func ParseEndpoint(s string) (*Endpoint, error) {
	if s == "" {
		return nil, fmt.Errorf("empty transport address")
	}
	if !strings.Contains(s, "://") {
		return &Endpoint{Scheme: SchemeSerial, Address: s}, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	ep := &Endpoint{Scheme: strings.ToLower(u.Scheme)}
	switch ep.Scheme {
	case SchemeSerial:
		ep.Address = u.Host + u.Path
		if ep.Address == "" {
			return nil, fmt.Errorf("missing serial device in %q", s)
		}
		if baud := u.Query().Get("baud"); baud != "" {
			if ep.Baudrate, err = strconv.Atoi(baud); err != nil || ep.Baudrate <= 0 {
				return nil, fmt.Errorf("invalid baud rate %q", baud)
			}
		}
	case SchemeTCP:
		if u.Host == "" {
			return nil, fmt.Errorf("missing host in %q", s)
		}
		ep.Address = u.Host
		if u.Port() == "" {
			ep.Address = net.JoinHostPort(u.Hostname(), DefaultTCPPort)
		}
	case SchemeWS, SchemeWSS:
		if u.Host == "" {
			return nil, fmt.Errorf("missing host in %q", s)
		}
		ep.Address = u.String()
	default:
		return nil, fmt.Errorf("unsupported transport scheme %q", u.Scheme)
	}
	return ep, nil
}

// Options tunes how a transport is opened.
type Options struct {
	// Baudrate applies to serial when the URL doesn't carry one.
	Baudrate int
	// ReadTimeout bounds a single read, 0 blocks.
	// A read timing out yields no data and is retried by the node.
	ReadTimeout time.Duration
	DialTimeout time.Duration
}

// Open opens the transport addressed by rawURL.
func Open(rawURL string, opts Options) (io.ReadWriteCloser, error) {
	ep, err := ParseEndpoint(rawURL)
	if err != nil {
		return nil, err
	}
	return OpenEndpoint(ep, opts)
}

// OpenEndpoint opens a parsed endpoint.
func OpenEndpoint(ep *Endpoint, opts Options) (io.ReadWriteCloser, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	switch ep.Scheme {
	case SchemeSerial:
		return openSerial(ep, opts)
	case SchemeTCP:
		conn, err := net.DialTimeout("tcp", ep.Address, opts.DialTimeout)
		if err != nil {
			return nil, err
		}
		glog.Infof("connected %s", ep)
		return withReadTimeout(conn, opts.ReadTimeout), nil
	case SchemeWS, SchemeWSS:
		return openWebSocket(ep, opts)
	}
	return nil, fmt.Errorf("unsupported transport scheme %q", ep.Scheme)
}

func openSerial(ep *Endpoint, opts Options) (io.ReadWriteCloser, error) {
	baud := ep.Baudrate
	if baud <= 0 {
		baud = opts.Baudrate
	}
	if baud <= 0 {
		baud = DefaultBaudrate
	}
	port, err := serial.Open(ep.Address, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ep.Address, err)
	}
	if opts.ReadTimeout > 0 {
		if err = port.SetReadTimeout(opts.ReadTimeout); err != nil {
			port.Close()
			return nil, err
		}
	}
	glog.Infof("opened %s at %d baud", ep.Address, baud)
	return port, nil
}

func openWebSocket(ep *Endpoint, opts Options) (io.ReadWriteCloser, error) {
	origin := "http://localhost/"
	if ep.Scheme == SchemeWSS {
		origin = "https://localhost/"
	}
	config, err := websocket.NewConfig(ep.Address, origin)
	if err != nil {
		return nil, err
	}
	config.Dialer = &net.Dialer{Timeout: opts.DialTimeout}
	conn, err := websocket.DialConfig(config)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	glog.Infof("connected %s", ep)
	return withReadTimeout(conn, opts.ReadTimeout), nil
}

// deadlineConn arms a read deadline before every read.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func withReadTimeout(conn net.Conn, timeout time.Duration) io.ReadWriteCloser {
	if timeout <= 0 {
		return conn
	}
	return &deadlineConn{Conn: conn, timeout: timeout}
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}
