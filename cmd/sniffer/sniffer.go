package main

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"

	"wordclash/internal/core/debug"
	"wordclash/internal/protocol"
)

// sniffer reassembles wordclash frames out of captured TCP segments. Each
// direction of each connection gets its own buffer since frames can span
// segment boundaries.
type sniffer struct {
	serverPort uint16
	buffers    map[string][]byte
}

func newSniffer(serverPort uint16) *sniffer {
	return &sniffer{
		serverPort: serverPort,
		buffers:    make(map[string][]byte),
	}
}

func (s *sniffer) startReading(packetChan chan gopacket.Packet) {
	for packet := range packetChan {
		transport := packet.TransportLayer()
		app := packet.ApplicationLayer()
		if transport == nil || app == nil {
			continue
		}

		flow := transport.TransportFlow()
		dstPort := binary.BigEndian.Uint16(flow.Dst().Raw())

		s.handleSegment(flow.String(), dstPort == s.serverPort, app.Payload())
	}
}

func (s *sniffer) handleSegment(flowKey string, clientSent bool, data []byte) {
	buffer := append(s.buffers[flowKey], data...)

	for {
		frameLen, ok := nextFrameLength(buffer)
		if !ok {
			break
		}

		direction := "server -> client"
		if clientSent {
			direction = "client -> server"
		}

		msg, err := protocol.Unmarshal(buffer[:frameLen])
		if err != nil {
			fmt.Printf("[%s] undecodable frame (%v): % x\n", direction, err, buffer[:frameLen])
		} else {
			fmt.Printf("[%s] %s", direction, debug.DumpFrame(msg))
		}

		buffer = buffer[frameLen:]
	}

	s.buffers[flowKey] = buffer
}

// nextFrameLength walks the frame structure far enough to find the total
// byte length of the first frame in buffer, if it has arrived in full.
func nextFrameLength(buffer []byte) (int, bool) {
	if len(buffer) < 4 {
		return 0, false
	}

	fieldCount := int(int16(binary.BigEndian.Uint16(buffer[2:4])))
	if fieldCount < 0 {
		// Garbage on the stream; hand everything over as one undecodable
		// frame rather than stalling the buffer.
		return len(buffer), true
	}

	offset := 4
	for i := 0; i < fieldCount; i++ {
		if len(buffer) < offset+2 {
			return 0, false
		}
		fieldLen := int(int16(binary.BigEndian.Uint16(buffer[offset : offset+2])))
		if fieldLen < 0 {
			return len(buffer), true
		}
		offset += 2 + fieldLen*2
	}

	if len(buffer) < offset {
		return 0, false
	}
	return offset, true
}
