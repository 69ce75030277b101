// Package encoding implements marshalling and unmarshalling of Aquarium
// object code as an Intel-Hex-style container, adapted from the teacher's
// 16-bit word encoding to Aquarium's byte-addressable, 32-bit address space.
//
// Each line is composed of a prefix, a byte length, a 32-bit address, a
// record type, optional data, and a checksum:
//
//	:LL AAAAAAAA TT [DD...] CC
//
// # Bugs
//
// Only the data and end-of-file record types are supported, matching the
// teacher's stated scope.
package encoding

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Chunk is a contiguous block of object code bytes destined for a fixed
// physical base address, the unit the assembler, loader, and this encoding
// all operate on.
type Chunk struct {
	Base uint32
	Data []byte
}

type kind byte

const (
	kindData kind = 0
	kindEOF  kind = 1
)

// HexEncoding implements MarshalText/UnmarshalText for a sequence of Chunks.
type HexEncoding struct {
	chunks []Chunk
}

// NewHexEncoding wraps chunks for marshalling.
func NewHexEncoding(chunks []Chunk) *HexEncoding {
	return &HexEncoding{chunks: chunks}
}

// Chunks returns the collected object code.
func (h *HexEncoding) Chunks() []Chunk {
	return h.chunks
}

func (h *HexEncoding) MarshalText() ([]byte, error) {
	var buf bytes.Buffer

	for _, c := range h.chunks {
		var check byte

		fmt.Fprintf(&buf, ":%02x", byte(len(c.Data)))
		check += byte(len(c.Data))

		var addr [4]byte
		binary.BigEndian.PutUint32(addr[:], c.Base)

		enc := hex.NewEncoder(&buf)

		if _, err := enc.Write(addr[:]); err != nil {
			return buf.Bytes(), err
		}

		for _, b := range addr {
			check += b
		}

		buf.WriteString("00")

		if _, err := enc.Write(c.Data); err != nil {
			return buf.Bytes(), err
		}

		for _, b := range c.Data {
			check += b
		}

		check = 1 + ^check

		if _, err := enc.Write([]byte{check}); err != nil {
			return buf.Bytes(), err
		}

		buf.WriteByte('\n')
	}

	buf.WriteString(":000000000001ff\n")

	return buf.Bytes(), nil
}

func (h *HexEncoding) UnmarshalText(bs []byte) error {
	lines := bufio.NewScanner(bytes.NewReader(bs))

	for lines.Scan() {
		rec := lines.Bytes()

		if len(rec) == 0 {
			continue
		}

		if rec[0] != ':' {
			return fmt.Errorf("%w: line does not start with ':'", ErrDecode)
		}

		var lenBuf [1]byte

		if _, err := hex.Decode(lenBuf[:], rec[1:3]); err != nil {
			return fmt.Errorf("%w: length: %s", ErrDecode, err)
		}

		dataLen := int(lenBuf[0])
		check := lenBuf[0]

		var addrBuf [4]byte

		if _, err := hex.Decode(addrBuf[:], rec[3:11]); err != nil {
			return fmt.Errorf("%w: address: %s", ErrDecode, err)
		}

		for _, b := range addrBuf {
			check += b
		}

		addr := binary.BigEndian.Uint32(addrBuf[:])

		var kindBuf [1]byte

		if _, err := hex.Decode(kindBuf[:], rec[11:13]); err != nil {
			return fmt.Errorf("%w: type: %s", ErrDecode, err)
		}

		check += kindBuf[0]
		recKind := kind(kindBuf[0])

		var checkBuf [1]byte

		if _, err := hex.Decode(checkBuf[:], rec[len(rec)-2:]); err != nil {
			return fmt.Errorf("%w: checksum: %s", ErrDecode, err)
		}

		switch recKind {
		case kindData:
			data := make([]byte, dataLen)

			if dataLen > 0 {
				if _, err := hex.Decode(data, rec[13:13+dataLen*2]); err != nil {
					return fmt.Errorf("%w: data: %s", ErrDecode, err)
				}
			}

			for _, b := range data {
				check += b
			}

			check = 1 + ^check
			if check != checkBuf[0] {
				return fmt.Errorf("%w: checksum invalid: %02x != %02x", ErrDecode, check, checkBuf[0])
			}

			h.chunks = append(h.chunks, Chunk{Base: addr, Data: data})
		case kindEOF:
			if len(h.chunks) == 0 {
				return ErrEmpty
			}

			return nil
		default:
			return fmt.Errorf("%w: unexpected record type: %d", ErrDecode, recKind)
		}
	}

	if len(h.chunks) == 0 {
		return ErrEmpty
	}

	return nil
}

// ErrDecode wraps every decoding failure; ErrEmpty is returned when no
// chunks were decoded at all.
var (
	ErrDecode = fmt.Errorf("encoding: decode error")
	ErrEmpty  = fmt.Errorf("%w: no data decoded", ErrDecode)
)
