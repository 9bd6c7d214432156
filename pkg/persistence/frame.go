// Package persistence stores engine runs in an append-only journal of
// checksummed binary frames.
package persistence

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

const (
	// MagicByte marks the start of every frame.
	MagicByte = 0xA5

	// HeaderSize is Magic(1) + OpCode(1) + Length(4) + CRC32(4).
	HeaderSize = 10

	// MaxPayloadSize bounds a single record. Larger lengths mean a corrupt header.
	MaxPayloadSize = 64 << 20
)

// OpCode identifies the record type carried by a frame.
type OpCode byte

const (
	OpNodeResponse OpCode = 0x01
	OpRunEnd       OpCode = 0x02
)

func (o OpCode) String() string {
	switch o {
	case OpNodeResponse:
		return "node"
	case OpRunEnd:
		return "run_end"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidMagic means the stream lost synchronization or is not a journal.
	ErrInvalidMagic = errors.New("invalid magic byte")
	// ErrChecksumMismatch means the payload was corrupted.
	ErrChecksumMismatch = errors.New("crc32 checksum mismatch")
	// ErrIncompleteFrame means the stream ended inside a frame, typically a
	// crash during write.
	ErrIncompleteFrame = errors.New("incomplete frame")
	// ErrFrameTooLarge is returned for payloads above MaxPayloadSize.
	ErrFrameTooLarge = errors.New("frame too large")
)

// FrameWriter writes frames to an io.Writer. Wrap files in a bufio.Writer so
// header and payload reach the OS in one write.
type FrameWriter struct {
	w      io.Writer
	header [HeaderSize]byte
}

func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame encodes payload as [Magic][OpCode][Length LE][CRC32 LE][Payload].
func (fw *FrameWriter) WriteFrame(op OpCode, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return ErrFrameTooLarge
	}
	fw.header[0] = MagicByte
	fw.header[1] = byte(op)
	binary.LittleEndian.PutUint32(fw.header[2:6], uint32(len(payload)))
	binary.LittleEndian.PutUint32(fw.header[6:10], crc32.ChecksumIEEE(payload))

	if _, err := fw.w.Write(fw.header[:]); err != nil {
		return err
	}
	_, err := fw.w.Write(payload)
	return err
}

// ReadFrame reads and verifies the next frame. io.EOF is returned only on a
// clean frame boundary.
func ReadFrame(r io.Reader) (OpCode, []byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, ErrIncompleteFrame
	}
	if header[0] != MagicByte {
		return 0, nil, ErrInvalidMagic
	}

	op := OpCode(header[1])
	length := binary.LittleEndian.Uint32(header[2:6])
	if length > MaxPayloadSize {
		return op, nil, ErrFrameTooLarge
	}
	want := binary.LittleEndian.Uint32(header[6:10])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return op, nil, ErrIncompleteFrame
	}
	if crc32.ChecksumIEEE(payload) != want {
		return op, nil, ErrChecksumMismatch
	}
	return op, payload, nil
}
