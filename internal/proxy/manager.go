package proxy

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
)

// Manager routes scraper traffic through a SOCKS proxy and can request a
// fresh exit identity over the proxy's control port.
type Manager struct {
	mu              sync.Mutex
	proxyURL        *url.URL
	controlAddr     string
	controlPassword string
	rotations       int
	lastRotation    time.Time
	logger          *log.Logger
}

func NewManager(rawProxyURL, controlAddr, controlPassword string, logger *log.Logger) (*Manager, error) {
	u, err := url.Parse(rawProxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	return &Manager{
		proxyURL:        u,
		controlAddr:     controlAddr,
		controlPassword: controlPassword,
		logger:          logger,
	}, nil
}

func (m *Manager) ProxyURL() *url.URL {
	if m == nil {
		return nil
	}
	return m.proxyURL
}

// RotateIdentity asks the proxy control port for a new circuit. The control
// protocol is line-oriented: AUTHENTICATE, then SIGNAL NEWNYM, each answered
// with a "250" status on success.
func (m *Manager) RotateIdentity(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("proxy manager is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", m.controlAddr)
	if err != nil {
		return fmt.Errorf("dial control port: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	}

	r := bufio.NewReader(conn)
	if err := m.command(conn, r, fmt.Sprintf("AUTHENTICATE %q", m.controlPassword)); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if err := m.command(conn, r, "SIGNAL NEWNYM"); err != nil {
		return fmt.Errorf("signal newnym: %w", err)
	}

	m.rotations++
	m.lastRotation = time.Now()
	if m.logger != nil {
		m.logger.Info().Int("rotations", m.rotations).Msg("proxy identity rotated")
	}
	return nil
}

func (m *Manager) command(conn net.Conn, r *bufio.Reader, cmd string) error {
	if _, err := fmt.Fprintf(conn, "%s\r\n", cmd); err != nil {
		return err
	}
	line, err := r.ReadString('\n')
	if err != nil {
		return err
	}
	if !strings.HasPrefix(line, "250") {
		return fmt.Errorf("control reply %q", strings.TrimSpace(line))
	}
	return nil
}

func (m *Manager) Rotations() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotations
}
