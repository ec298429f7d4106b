package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wordclash/internal/core"
	wcdebug "wordclash/internal/core/debug"
	"wordclash/internal/protocol"
)

// Frontend implements the concurrent client connection logic.
//
// Frames are read from any connected clients and passed to a Backend
// instance, abstracting the lower level connection details away from the
// Backends.
type Frontend struct {
	Address string
	Backend Backend
	Config  *core.Config
	Logger  *logrus.Logger

	mu               sync.Mutex
	connectedClients map[string]*Client
}

// Start initializes the server backend and opens a TCP socket for the
// specified server. A blocking loop for accepting client connections is
// spun off in its own goroutine and added to the WaitGroup. Context
// cancellations will stop the server.
func (f *Frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if err := f.Backend.Init(ctx); err != nil {
		return fmt.Errorf("error initializing %s server: %v", f.Backend.Identifier(), err)
	}

	socket, err := f.createSocket()
	if err != nil {
		return fmt.Errorf("error creating socket on %s: %v", f.Address, err)
	}

	f.connectedClients = make(map[string]*Client)

	wg.Add(1)
	go f.startBlockingLoop(ctx, socket, wg)

	return nil
}

// createSocket opens a TCP socket to listen for client connections on the
// Address provided to the Frontend.
func (f *Frontend) createSocket() (*net.TCPListener, error) {
	hostAddr, err := net.ResolveTCPAddr("tcp", f.Address)
	if err != nil {
		return nil, fmt.Errorf("error resolving address %s", err.Error())
	}

	socket, err := net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("error listening on socket: %s", err.Error())
	}

	return socket, nil
}

// startBlockingLoop implements a connection handling loop that's purely
// responsible for accepting new connections and spinning off goroutines for
// the Backend to handle them.
func (f *Frontend) startBlockingLoop(ctx context.Context, socket *net.TCPListener, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Logger.Printf("[%s] waiting for connections on %v", f.Backend.Identifier(), f.Address)

	// Closing the socket on cancellation unblocks AcceptTCP so the accept
	// goroutine exits and the port is released.
	go func() {
		<-ctx.Done()
		_ = socket.Close()
	}()

	connections := make(chan *net.TCPConn)
	go func() {
		for {
			// Poll until we can accept more clients.
			for f.connectionCount() >= f.Config.MaxConnections {
				time.Sleep(10 * time.Second)
			}

			connection, err := socket.AcceptTCP()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				f.Logger.Warnf("failed to accept connection: %s", err.Error())
				continue
			}

			select {
			case connections <- connection:
			case <-ctx.Done():
				_ = connection.Close()
				return
			}
		}
	}()

	clientWg := &sync.WaitGroup{}
handleLoop:
	for {
		select {
		case <-ctx.Done():
			break handleLoop
		case connection := <-connections:
			clientWg.Add(1)
			go f.acceptClient(ctx, connection, clientWg)
		}
	}

	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	clientWg.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
}

func (f *Frontend) connectionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.connectedClients)
}

// acceptClient takes a connection, sets up the Client, and moves into the
// frame processing loop.
func (f *Frontend) acceptClient(ctx context.Context, connection *net.TCPConn, wg *sync.WaitGroup) {
	defer wg.Done()

	c := NewClient(connection)

	f.Logger.Infof("[%s] accepted connection from %s", f.Backend.Identifier(), c.IPAddr())

	// Prevent multiple clients from connecting from the same IP address.
	f.mu.Lock()
	if _, ok := f.connectedClients[c.IPAddr()]; ok {
		f.mu.Unlock()
		f.Logger.Infof("[%s] rejected second connection from %s", f.Backend.Identifier(), c.IPAddr())
		_ = connection.Close()
		return
	}
	f.connectedClients[c.IPAddr()] = c
	f.mu.Unlock()

	f.processFrames(ctx, c)
}

// processFrames starts a blocking loop dedicated to reading frames sent
// from a game client and only returns once the connection has closed.
//
// Every decoded request produces exactly one response, written back in
// request order. An unknown message type is answered and the stream kept
// alive since the decoder consumed the whole frame; a truncated frame
// leaves the stream unsynchronized and drops the connection.
func (f *Frontend) processFrames(ctx context.Context, c *Client) {
	defer f.closeConnectionAndRecover(f.Backend.Identifier(), c)

	for {
		select {
		case <-ctx.Done():
			// Allow the deferred function to close the connection.
			return
		default:
		}

		msg, err := c.ReadMessage()

		if err == io.EOF {
			break
		} else if errors.Is(err, protocol.ErrUnknownMessageType) {
			f.Logger.Warnf("[%s] %s from %s", f.Backend.Identifier(), err, c.IPAddr())
			if err := c.Send(protocol.New(protocol.InvalidMessageFormat)); err != nil {
				f.Logger.Warn("failed to send response: " + err.Error())
				break
			}
			continue
		} else if errors.Is(err, protocol.ErrMalformedFrame) {
			f.Logger.Warnf("[%s] %s from %s", f.Backend.Identifier(), err, c.IPAddr())
			_ = c.Send(protocol.New(protocol.InvalidMessageFormat))
			break
		} else if err != nil {
			f.Logger.Warn(err.Error())
			break
		}

		if f.Config.Debugging.FrameLoggingEnabled {
			f.Logger.Debugf("[%s] frame from %s:\n%s",
				f.Backend.Identifier(), c.IPAddr(), wcdebug.DumpFrame(msg))
		}

		resp, err := f.Backend.Handle(ctx, c, msg)
		if err != nil {
			f.Logger.Warnf("[%s] error handling %s from %s: %s",
				f.Backend.Identifier(), msg.Type, c.IPAddr(), err)
			if resp == nil {
				resp = protocol.New(protocol.InternalError)
			}
		}
		if resp == nil {
			continue
		}

		if err := c.Send(resp); err != nil {
			f.Logger.Warn("error in client communication: " + err.Error())
			break
		}
	}
}

// closeConnectionAndRecover is the failsafe that catches any panics,
// disconnects the client, and removes them from the list regardless of the
// state of the connection.
func (f *Frontend) closeConnectionAndRecover(serverName string, c *Client) {
	if err := recover(); err != nil {
		f.Logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			c.IPAddr(), err, debug.Stack())
	}

	if err := c.Close(); err != nil {
		f.Logger.Warnf("failed to close client connection: %s", err)
	}

	f.mu.Lock()
	delete(f.connectedClients, c.IPAddr())
	f.mu.Unlock()

	f.Backend.Disconnected(c)

	f.Logger.Infof("[%s] disconnected client %s", serverName, c.IPAddr())
}
