// Package codec implements the framing of application packets over the
// raw byte stream. Two inbound modes coexist on one connection: packets
// wrapped in an HTTP POST body, and a raw mode with a 6-digit ASCII
// decimal length prefix. Outbound packets always carry the length
// prefix, and the first one on a connection carries a fixed preamble.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/woslots/WO/internal/protocol"
)

// Preamble precedes the very first outbound packet on a connection.
const Preamble = "Originality is undetected plagiarism.\r\n\r\n"

// lenDigits is the width of the ASCII decimal length prefix.
const lenDigits = 6

// PolicyResponse answers a cross-domain policy probe. The trailing NUL
// is part of the protocol.
var PolicyResponse = []byte("<?xml version=\"1.0\"?>\n" +
	"<!DOCTYPE cross-domain-policy SYSTEM \"http://www.macromedia.com/xml/dtds/cross-domain-policy.dtd\">\n" +
	"<cross-domain-policy>\n" +
	"   <allow-access-from domain=\"*\" to-ports=\"*\" />\n" +
	"</cross-domain-policy>\x00")

var (
	ErrEmptyFrame     = errors.New("codec: empty frame")
	ErrNoPayload      = errors.New("codec: no JSON payload in frame")
	ErrBadLength      = errors.New("codec: malformed length prefix")
	ErrTruncated      = errors.New("codec: frame shorter than declared length")
	ErrPacketTooLarge = errors.New("codec: packet exceeds length prefix capacity")
	ErrMissingCommand = errors.New("codec: packet has no command field")
)

// IsPolicyProbe reports whether inbound data is a legacy cross-domain
// policy request. Any leading '<' marks one; it is never valid JSON or
// HTTP here.
func IsPolicyProbe(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// Encode frames a packet for the wire. When first is set the preamble
// is prepended before the length field.
func Encode(p protocol.Packet, first bool) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("codec: encode %q: %w", p.Command(), err)
	}
	if len(body) >= 1000000 {
		return nil, ErrPacketTooLarge
	}
	var buf bytes.Buffer
	if first {
		buf.WriteString(Preamble)
	}
	fmt.Fprintf(&buf, "%06d", len(body))
	buf.Write(body)
	return buf.Bytes(), nil
}

// Decode extracts and parses one packet from an inbound frame. The
// caller is expected to have screened policy probes already.
func Decode(data []byte) (protocol.Packet, error) {
	payload, err := payload(data)
	if err != nil {
		return nil, err
	}
	var p protocol.Packet
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("codec: invalid JSON body: %w", err)
	}
	if p.Command() == "" {
		return nil, ErrMissingCommand
	}
	return p, nil
}

// payload locates the JSON body inside a frame, whichever framing mode
// delivered it.
func payload(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	// HTTP-wrapped delivery: body after the header block, JSON from
	// the first brace.
	if bytes.HasPrefix(data, []byte("POST")) {
		idx := bytes.Index(data, []byte("\r\n\r\n"))
		if idx < 0 {
			return nil, ErrNoPayload
		}
		body := data[idx+4:]
		start := bytes.IndexByte(body, '{')
		if start < 0 {
			return nil, ErrNoPayload
		}
		return body[start:], nil
	}

	// Raw length-prefixed mode.
	if len(data) >= lenDigits && allDigits(data[:lenDigits]) {
		n, err := strconv.Atoi(string(data[:lenDigits]))
		if err != nil {
			return nil, ErrBadLength
		}
		rest := data[lenDigits:]
		if len(rest) < n {
			return nil, ErrTruncated
		}
		return rest[:n], nil
	}

	// Bare JSON text.
	return data, nil
}

func allDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
