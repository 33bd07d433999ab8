package engine

import (
	"github.com/google/netstack/tcpip/header"
)

// Frames on the loopback wire are delimited by a 2-byte big-endian
// length prefix standing in for the length of the enclosing IP packet.
// Stream sockets carry TCP segments, datagram sockets carry UDP
// datagrams, both with their checksum filled in.
const (
	framePrefixLen = 2
	maxFrameLen    = 1<<16 - 1

	// Payload bytes per stream segment.
	mss = 1460

	windowSize = 65535
)

func encodeSegment(src, dst uint16, seq, ack uint32, flags uint8, payload []byte) []byte {
	b := make([]byte, header.TCPMinimumSize+len(payload))
	tcp := header.TCP(b)
	tcp.Encode(&header.TCPFields{
		SrcPort:    src,
		DstPort:    dst,
		SeqNum:     seq,
		AckNum:     ack,
		DataOffset: header.TCPMinimumSize,
		Flags:      flags,
		WindowSize: windowSize,
	})
	copy(b[header.TCPMinimumSize:], payload)
	tcp.SetChecksum(^header.Checksum(b, 0))
	return b
}

func decodeSegment(frame []byte) header.TCP {
	if len(frame) < header.TCPMinimumSize {
		panic("BUG: short tcp segment on loopback wire")
	}
	if header.Checksum(frame, 0) != 0xffff {
		panic("BUG: tcp checksum mismatch on loopback wire")
	}
	return header.TCP(frame)
}

func encodeDatagram(src, dst uint16, payload []byte) []byte {
	b := make([]byte, header.UDPMinimumSize+len(payload))
	udp := header.UDP(b)
	udp.Encode(&header.UDPFields{
		SrcPort: src,
		DstPort: dst,
		Length:  uint16(len(b)),
	})
	copy(b[header.UDPMinimumSize:], payload)
	udp.SetChecksum(^header.Checksum(b, 0))
	return b
}

func decodeDatagram(frame []byte) header.UDP {
	if len(frame) < header.UDPMinimumSize {
		panic("BUG: short udp datagram on loopback wire")
	}
	if header.Checksum(frame, 0) != 0xffff {
		panic("BUG: udp checksum mismatch on loopback wire")
	}
	return header.UDP(frame)
}
