package server

import (
	"net"
	"strings"

	"wordclash/internal/protocol"
)

// Client represents one connected game client and owns the codec halves
// bound to its TCP stream.
type Client struct {
	connection *net.TCPConn
	ipAddr     string
	port       string

	encoder *protocol.Encoder
	decoder *protocol.Decoder

	// Username of the authenticated user; set by the backend on a
	// successful login and empty until then.
	Username string
}

func NewClient(connection *net.TCPConn) *Client {
	addr := strings.Split(connection.RemoteAddr().String(), ":")

	return &Client{
		connection: connection,
		ipAddr:     addr[0],
		port:       addr[1],
		encoder:    protocol.NewEncoder(connection),
		decoder:    protocol.NewDecoder(connection),
	}
}

func (c *Client) IPAddr() string { return c.ipAddr }
func (c *Client) Port() string   { return c.port }

// RemoteIP implements session.Conn.
func (c *Client) RemoteIP() string { return c.ipAddr }

// ReadMessage blocks until the next frame arrives on the stream.
func (c *Client) ReadMessage() (*protocol.Message, error) {
	return c.decoder.Decode()
}

// Send writes one frame to the client.
func (c *Client) Send(m *protocol.Message) error {
	return c.encoder.Encode(m)
}

// Close the TCP connection.
func (c *Client) Close() error {
	return c.connection.Close()
}
