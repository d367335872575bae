// Package wire implements the small framing the load balancer's external
// collaborators speak on top of its otherwise-opaque byte pipe: a 2-byte
// big-endian length-prefixed UTF-8 string (matching Java's
// DataOutputStream writeUTF for the ASCII-only payloads this system
// exchanges) and an 8-byte big-endian integer.
//
// The load balancer itself never decodes this framing — it only pipes
// bytes — so its only production users are the health checker and the
// cmd/healthprobe binary, which both write the probe frame. Everything
// else that reaches for it is test code standing in for a client or a
// backend.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteUTF writes a 2-byte big-endian length prefix followed by s's UTF-8
// bytes. s must encode to at most 65535 bytes.
func WriteUTF(w io.Writer, s string) error {
	b := []byte(s)
	if len(b) > 0xFFFF {
		return fmt.Errorf("wire: string too long for UTF frame: %d bytes", len(b))
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadUTF reads a length-prefixed UTF-8 string written by WriteUTF.
func ReadUTF(r io.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteInt64 writes v as 8 big-endian bytes.
func WriteInt64(w io.Writer, v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

// ReadInt64 reads 8 big-endian bytes written by WriteInt64.
func ReadInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}
