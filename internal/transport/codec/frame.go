package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
)

// MaxFrameSize bounds a single framed event on the raw TCP transport.
const MaxFrameSize = 64 << 10

var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// WriteFrame writes payload prefixed with its varint length in one write.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	buf := make([]byte, 0, protowire.SizeVarint(uint64(len(payload)))+len(payload))
	buf = protowire.AppendVarint(buf, uint64(len(payload)))
	buf = append(buf, payload...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed payload.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteEvent marshals ev and writes it as one frame.
func WriteEvent(w io.Writer, ev domain.Event) error {
	payload, err := Marshal(ev)
	if err != nil {
		return err
	}
	return WriteFrame(w, payload)
}

// ReadEvent reads and decodes one framed event.
func ReadEvent(r *bufio.Reader) (domain.Event, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(payload)
}
