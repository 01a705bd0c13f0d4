package mediasess

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const mprisPrefix = "org.mpris.MediaPlayer2."

var errBusNotAttached = fmt.Errorf("session bus is not attached")

// MPRIS watches the session bus for MPRIS media players. Permission to
// listen is equivalent to having a live session-bus connection.
type MPRIS struct {
	sync.Mutex

	ctx      context.Context
	logger   *zap.Logger
	conn     *dbus.Conn
	sigChan  chan *dbus.Signal
	doneChan chan struct{}
	listener func(sessions []Session)
	sessions map[string]Session
}

func NewMPRIS(ctx context.Context, logger *zap.Logger) *MPRIS {
	return &MPRIS{
		ctx:      ctx,
		logger:   logger,
		sigChan:  make(chan *dbus.Signal, 10),
		doneChan: make(chan struct{}),
		sessions: make(map[string]Session),
	}
}

// RetryableAttach attaches to the session bus with exponential backoff.
// Failure to attach is not fatal; it reads as permission not granted.
func (m *MPRIS) RetryableAttach() error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.Multiplier = 2
	bo.MaxElapsedTime = 30 * time.Second

	var err error
	ops := func() error {
		err = m.Attach()
		return err
	}

	_ = backoff.Retry(ops, bo)
	return err
}

// Attach connects to the session bus, scans for already-running players and
// starts watching ownership changes.
func (m *MPRIS) Attach() error {
	m.Lock()
	if m.conn != nil {
		m.Unlock()
		return nil
	}
	m.Unlock()

	m.logger.Info("Attaching MPRIS session watcher")

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}

	err = conn.AddMatchSignalContext(m.ctx,
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	)
	if err != nil {
		conn.Close()
		return fmt.Errorf("match NameOwnerChanged: %w", err)
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return fmt.Errorf("list bus names: %w", err)
	}

	m.Lock()
	m.conn = conn
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		var owner string
		if err := conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, name).Store(&owner); err != nil {
			continue
		}
		m.sessions[name] = Session{Owner: owner, Identity: name}
	}
	m.Unlock()

	conn.Signal(m.sigChan)
	m.background()

	m.logger.Info("MPRIS session watcher attached", zap.Int("sessions", len(m.ActiveSessions())))
	return nil
}

func (m *MPRIS) background() {
	go func() {
		m.logger.Info("MPRIS background goroutine started")
		for {
			select {
			case <-m.ctx.Done():
				m.logger.Info("Context cancelled, stopping MPRIS watcher")
				m.Detach()
				return
			case <-m.doneChan:
				m.logger.Info("MPRIS watcher stopped")
				return
			case sig := <-m.sigChan:
				if sig == nil {
					continue
				}
				if sig.Name != "org.freedesktop.DBus.NameOwnerChanged" {
					continue
				}
				m.handleNameOwnerChanged(sig)
			}
		}
	}()
}

func (m *MPRIS) handleNameOwnerChanged(sig *dbus.Signal) {
	if len(sig.Body) != 3 {
		m.logger.Warn("Unexpected NameOwnerChanged body", zap.Int("len", len(sig.Body)))
		return
	}

	name, ok := sig.Body[0].(string)
	if !ok || !strings.HasPrefix(name, mprisPrefix) {
		return
	}
	newOwner, _ := sig.Body[2].(string)

	m.Lock()
	if newOwner == "" {
		delete(m.sessions, name)
	} else {
		m.sessions[name] = Session{Owner: newOwner, Identity: name}
	}
	listener := m.listener
	m.Unlock()

	m.logger.Debug("Media session set changed",
		zap.String("name", name),
		zap.Bool("active", newOwner != ""))

	if listener != nil {
		listener(m.ActiveSessions())
	}
}

// Granted reports whether the session listener permission is currently held.
func (m *MPRIS) Granted() bool {
	m.Lock()
	defer m.Unlock()
	return m.conn != nil
}

// ActiveSessions returns the current session set ordered by identity.
func (m *MPRIS) ActiveSessions() []Session {
	m.Lock()
	defer m.Unlock()

	sessions := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Identity < sessions[j].Identity
	})
	return sessions
}

// AddListener registers the session-change handler. Only one listener is
// held at a time; registering replaces the previous one.
func (m *MPRIS) AddListener(handler func(sessions []Session)) error {
	m.Lock()
	defer m.Unlock()

	if m.conn == nil {
		return errBusNotAttached
	}
	m.listener = handler
	return nil
}

// RemoveListener unregisters the session-change handler. Removing a listener
// that was never added is a no-op.
func (m *MPRIS) RemoveListener() {
	m.Lock()
	defer m.Unlock()
	m.listener = nil
}

// Detach drops the session-bus connection and stops the watcher.
func (m *MPRIS) Detach() {
	m.Lock()
	defer m.Unlock()

	select {
	case <-m.doneChan:
		return
	default:
		close(m.doneChan)
	}

	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
		m.logger.Info("MPRIS session watcher detached")
	}
}
