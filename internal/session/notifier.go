package session

import (
	"fmt"
	"net"

	"github.com/sirupsen/logrus"

	"wordclash/internal/protocol"
)

// Notifier delivers notifications as UDP datagrams to the address each
// client registered at login. Delivery is best-effort; the backlog remains
// the source of truth.
type Notifier struct {
	conn   net.PacketConn
	logger *logrus.Logger
}

func NewNotifier(logger *logrus.Logger) (*Notifier, error) {
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, fmt.Errorf("opening notification socket: %w", err)
	}
	return &Notifier{conn: conn, logger: logger}, nil
}

// Push sends m to addr as a single datagram holding one encoded frame.
func (n *Notifier) Push(addr *net.UDPAddr, m *protocol.Message) {
	datagram, err := protocol.Marshal(m)
	if err != nil {
		n.logger.Warnf("failed to encode notification %s: %v", m.Type, err)
		return
	}
	if _, err := n.conn.WriteTo(datagram, addr); err != nil {
		n.logger.Warnf("failed to push notification %s to %s: %v", m.Type, addr, err)
	}
}

func (n *Notifier) Close() error {
	return n.conn.Close()
}
