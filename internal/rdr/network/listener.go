// Package network delivers raw CCSDS packet bytes from a transport into
// the rest of the pipeline. It does not parse CCSDS headers — that
// decoder is an external collaborator per spec §1 — it only hands
// (timestamp, payload) pairs to a callback.
package network

import (
	"context"
	"fmt"
	"net"
	"time"
)

// PayloadHandler is called once per received datagram, with the time the
// listener observed it and the raw bytes.
type PayloadHandler func(receivedAt time.Time, payload []byte) error

// UDPListenerConfig configures a UDPListener.
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Handler     PayloadHandler
}

// UDPListener receives CCSDS-packet-bearing datagrams from a UDP socket,
// the common JPSS ground-segment relay pattern, and forwards each payload
// to the configured handler.
type UDPListener struct {
	cfg  UDPListenerConfig
	conn *net.UDPConn

	packetsSeen uint64
	bytesSeen   uint64
}

// NewUDPListener builds a UDPListener from cfg.
func NewUDPListener(cfg UDPListenerConfig) *UDPListener {
	if cfg.LogInterval == 0 {
		cfg.LogInterval = time.Minute
	}
	return &UDPListener{cfg: cfg}
}

// Start listens until ctx is cancelled or a fatal socket error occurs.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.cfg.Address)
	if err != nil {
		return fmt.Errorf("resolve udp address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}
	l.conn = conn
	defer conn.Close()

	if l.cfg.RcvBuf > 0 {
		if err := conn.SetReadBuffer(l.cfg.RcvBuf); err != nil {
			opsf("failed to set read buffer to %d: %v", l.cfg.RcvBuf, err)
		}
	}

	diagf("udp listener started on %s", l.cfg.Address)
	go l.logStats(ctx)

	buffer := make([]byte, 65536) // CCSDS packets are bounded by the 16-bit length field
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			opsf("udp read error: %v", err)
			continue
		}

		l.packetsSeen++
		l.bytesSeen += uint64(n)

		if l.cfg.Handler != nil {
			if err := l.cfg.Handler(time.Now(), buffer[:n]); err != nil {
				opsf("handler error: %v", err)
			}
		}
	}
}

func (l *UDPListener) logStats(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.LogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			diagf("received %d packets, %d bytes", l.packetsSeen, l.bytesSeen)
		}
	}
}

// Close releases the listener's socket.
func (l *UDPListener) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
