// Package mux implements the Stream Multiplexer from spec.md §4.3: logical
// streams over a single transport connection, framed the way the teacher's
// internal/proxy package frames its own CONNECT tunnels (a length-prefixed
// header read in a tight loop, ported here to a fixed 8-byte binary header).
package mux

import (
	"encoding/binary"
	"fmt"
)

// Command identifies a frame's purpose.
type Command uint8

const (
	CmdSYN Command = iota
	CmdFIN
	CmdPSH
	CmdNOP
	CmdUPD
)

func (c Command) String() string {
	switch c {
	case CmdSYN:
		return "SYN"
	case CmdFIN:
		return "FIN"
	case CmdPSH:
		return "PSH"
	case CmdNOP:
		return "NOP"
	case CmdUPD:
		return "UPD"
	default:
		return "UNKNOWN"
	}
}

const (
	// ProtocolVersion is the only version byte this session emits or expects.
	ProtocolVersion = 1
	// headerSize is the 8-byte (version, command, 16-bit length, 32-bit stream-id) header.
	headerSize = 8
	// MaxPayload is the maximum payload carried by a single PSH frame. The
	// wire length field is a 16-bit unsigned int, so 65535 is the hard
	// ceiling; Encode rejects anything larger with an error.
	MaxPayload = 65535
	// InitialWindow is the starting receive window credited to each new stream.
	InitialWindow = 262144
)

// Frame is one multiplexer frame.
type Frame struct {
	Version  uint8
	Command  Command
	StreamID uint32
	Payload  []byte
}

// Encode serializes f into its wire form: version, command, little-endian
// 16-bit length, little-endian 32-bit stream id, then payload.
func (f Frame) Encode() ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, fmt.Errorf("mux: payload %d exceeds max %d", len(f.Payload), MaxPayload)
	}
	buf := make([]byte, headerSize+len(f.Payload))
	buf[0] = ProtocolVersion
	buf[1] = byte(f.Command)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(f.Payload)))
	binary.LittleEndian.PutUint32(buf[4:8], f.StreamID)
	copy(buf[headerSize:], f.Payload)
	return buf, nil
}

// DecodeHeader parses the fixed 8-byte header. The returned length is the
// payload length that follows on the wire.
func DecodeHeader(hdr []byte) (version uint8, cmd Command, length uint16, streamID uint32, err error) {
	if len(hdr) != headerSize {
		return 0, 0, 0, 0, fmt.Errorf("mux: short header (%d bytes)", len(hdr))
	}
	version = hdr[0]
	cmd = Command(hdr[1])
	length = binary.LittleEndian.Uint16(hdr[2:4])
	streamID = binary.LittleEndian.Uint32(hdr[4:8])
	return version, cmd, length, streamID, nil
}
