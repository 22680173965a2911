// Package mavlink implements link.VehicleLink over MAVLink with gomavlib,
// talking to an ArduPilot autopilot on a serial port, UDP or TCP.
package mavlink

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tiiuae/uav_bridge/internal/link"
)

const (
	defaultBaud     = 115200
	defaultSystemID = 255
	defaultTimeout  = 5 * time.Second
	attempts        = 3
)

type Config struct {
	// Address is serial:<device>, udp:<listen addr>, udpclient:<host:port>
	// or tcp:<host:port>. A bare path is taken as a serial device.
	Address  string
	Baud     int
	SystemID byte
	Timeout  time.Duration
}

// Link is a MAVLink session with one autopilot.
type Link struct {
	cfg  Config
	node *gomavlib.Node
	done chan struct{}

	mu        sync.Mutex
	connected bool
	target    target
	cache     cache
	waiters   map[*waiter]struct{}
	home      *ardupilotmega.MessageMissionItemInt
}

type target struct {
	system    uint8
	component uint8
}

type waiter struct {
	match func(message.Message) bool
	ch    chan message.Message
}

var _ link.VehicleLink = (*Link)(nil)

func New(cfg Config) *Link {
	if cfg.Baud == 0 {
		cfg.Baud = defaultBaud
	}
	if cfg.SystemID == 0 {
		cfg.SystemID = defaultSystemID
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Link{
		cfg:     cfg,
		waiters: make(map[*waiter]struct{}),
	}
}

func parseEndpoint(address string, baud int) (gomavlib.EndpointConf, error) {
	scheme, rest, found := strings.Cut(address, ":")
	if !found || strings.HasPrefix(address, "/") {
		if address == "" {
			return nil, errors.New("empty link address")
		}
		return gomavlib.EndpointSerial{Device: address, Baud: baud}, nil
	}
	if rest == "" {
		return nil, errors.Errorf("link address %q has no target", address)
	}
	switch scheme {
	case "serial":
		return gomavlib.EndpointSerial{Device: rest, Baud: baud}, nil
	case "udp":
		return gomavlib.EndpointUDPServer{Address: rest}, nil
	case "udpclient":
		return gomavlib.EndpointUDPClient{Address: rest}, nil
	case "tcp":
		return gomavlib.EndpointTCPClient{Address: rest}, nil
	}
	return nil, errors.Errorf("unsupported link scheme %q", scheme)
}

// Connect opens the endpoint and blocks until the first autopilot heartbeat
// arrives or the configured timeout expires.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	if l.connected {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	endpoint, err := parseEndpoint(l.cfg.Address, l.cfg.Baud)
	if err != nil {
		return err
	}
	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:              []gomavlib.EndpointConf{endpoint},
		Dialect:                ardupilotmega.Dialect,
		OutVersion:             gomavlib.V2,
		OutSystemID:            l.cfg.SystemID,
		StreamRequestEnable:    true,
		StreamRequestFrequency: 4,
	})
	if err != nil {
		return errors.WithMessagef(err, "open %s", l.cfg.Address)
	}

	w := l.subscribe(func(m message.Message) bool {
		_, ok := m.(*ardupilotmega.MessageHeartbeat)
		return ok
	})
	l.node = node
	l.done = make(chan struct{})
	go l.run()

	timer := time.NewTimer(l.cfg.Timeout)
	defer timer.Stop()
	defer l.unsubscribe(w)
	select {
	case <-w.ch:
	case <-timer.C:
		l.closeNode()
		return errors.Errorf("no heartbeat from %s within %s", l.cfg.Address, l.cfg.Timeout)
	case <-ctx.Done():
		l.closeNode()
		return ctx.Err()
	}

	l.mu.Lock()
	l.connected = true
	t := l.target
	l.mu.Unlock()
	log.Printf("Connected to autopilot %d/%d on %s", t.system, t.component, l.cfg.Address)
	return nil
}

func (l *Link) Close() error {
	l.mu.Lock()
	l.connected = false
	l.mu.Unlock()
	l.closeNode()
	return nil
}

func (l *Link) closeNode() {
	if l.node == nil {
		return
	}
	l.node.Close()
	<-l.done
	l.node = nil
}

func (l *Link) run() {
	defer close(l.done)
	for evt := range l.node.Events() {
		frm, ok := evt.(*gomavlib.EventFrame)
		if !ok {
			continue
		}
		l.handle(frm.SystemID(), frm.ComponentID(), frm.Message())
	}
}

func (l *Link) handle(system, component uint8, msg message.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if hb, ok := msg.(*ardupilotmega.MessageHeartbeat); ok {
		if hb.Autopilot == ardupilotmega.MAV_AUTOPILOT_INVALID {
			// another ground station
			return
		}
		if l.target.system == 0 {
			l.target = target{system, component}
		}
	}
	if system != l.target.system || l.target.system == 0 {
		return
	}

	l.cache.update(msg, time.Now())
	for w := range l.waiters {
		if w.match(msg) {
			select {
			case w.ch <- msg:
			default:
			}
		}
	}
}

func (l *Link) subscribe(match func(message.Message) bool) *waiter {
	w := &waiter{match: match, ch: make(chan message.Message, 256)}
	l.mu.Lock()
	l.waiters[w] = struct{}{}
	l.mu.Unlock()
	return w
}

func (l *Link) unsubscribe(w *waiter) {
	l.mu.Lock()
	delete(l.waiters, w)
	l.mu.Unlock()
}

func (l *Link) send(msg message.Message) error {
	l.mu.Lock()
	connected := l.connected
	l.mu.Unlock()
	if !connected || l.node == nil {
		return errors.New("link not connected")
	}
	l.node.WriteMessageAll(msg)
	return nil
}

func (l *Link) targetIDs() (uint8, uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target.system, l.target.component
}

// request sends msg and waits for the first reply accepted by match,
// resending up to three times within the timeout window.
func (l *Link) request(ctx context.Context, msg message.Message, match func(message.Message) bool) (message.Message, error) {
	w := l.subscribe(match)
	defer l.unsubscribe(w)

	interval := l.cfg.Timeout / attempts
	for i := 0; i < attempts; i++ {
		if err := l.send(msg); err != nil {
			return nil, err
		}
		reply, err := l.await(ctx, w, interval)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, errors.Errorf("no reply to %T after %d attempts", msg, attempts)
}

func (l *Link) await(ctx context.Context, w *waiter, timeout time.Duration) (message.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m := <-w.ch:
		return m, nil
	case <-timer.C:
		return nil, errors.New("timeout")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
