package zet

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"timeskip/internal/container"
	"timeskip/internal/message"
	"timeskip/internal/tkerr"
)

var _ container.Reader = (*Reader)(nil)

// Reader streams records out of a .zet file in the order they were
// written. It satisfies container.Reader.
type Reader struct {
	file        *os.File
	buf         *bufio.Reader
	startTimeNs uint64
}

// NewReader opens path, validates the header's magic and version, and
// positions the cursor at the first record.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("zet: open %s: %w", path, err)
	}

	r := &Reader{file: f, buf: bufio.NewReader(f)}
	if err := r.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r.buf, hdr[:]); err != nil {
		return fmt.Errorf("zet: read header: %w: %w", tkerr.ErrBadFormat, err)
	}

	if string(hdr[0:4]) != string(magic[:]) {
		return fmt.Errorf("zet: bad magic %q: %w", hdr[0:4], tkerr.ErrBadFormat)
	}
	version := binary.LittleEndian.Uint32(hdr[4:8])
	if version != Version {
		return fmt.Errorf("zet: unsupported version %d: %w", version, tkerr.ErrBadFormat)
	}

	r.startTimeNs = binary.LittleEndian.Uint64(hdr[8:16])
	return nil
}

// StartTime returns the header's capture start timestamp.
func (r *Reader) StartTime() uint64 {
	return r.startTimeNs
}

// ReadMessage returns the next record, io.EOF at a clean end of file, or a
// tkerr.ErrBadFormat-wrapped error if the file ends mid-record.
func (r *Reader) ReadMessage() (message.Record, error) {
	var hdr [8 + 8 + 2 + 4]byte
	if _, err := io.ReadFull(r.buf, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return message.Record{}, io.EOF
		}
		return message.Record{}, fmt.Errorf("zet: truncated record header: %w: %w", tkerr.ErrBadFormat, err)
	}

	rec := message.Record{
		SentNs:     binary.LittleEndian.Uint64(hdr[0:8]),
		ReceivedNs: binary.LittleEndian.Uint64(hdr[8:16]),
	}
	subjectLen := binary.LittleEndian.Uint16(hdr[16:18])
	payloadSize := binary.LittleEndian.Uint32(hdr[18:22])

	if subjectLen == 0 {
		return message.Record{}, fmt.Errorf("zet: zero-length subject: %w", tkerr.ErrBadFormat)
	}

	subjectBuf := make([]byte, subjectLen)
	if _, err := io.ReadFull(r.buf, subjectBuf); err != nil {
		return message.Record{}, fmt.Errorf("zet: truncated subject: %w: %w", tkerr.ErrBadFormat, err)
	}
	// subjectBuf includes the terminating NUL; trim it.
	rec.Subject = string(subjectBuf[:subjectLen-1])

	if payloadSize > 0 {
		payload := make([]byte, payloadSize)
		if _, err := io.ReadFull(r.buf, payload); err != nil {
			return message.Record{}, fmt.Errorf("zet: truncated payload: %w: %w", tkerr.ErrBadFormat, err)
		}
		rec.Payload = payload
	} else {
		rec.Payload = []byte{}
	}

	return rec, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("zet: close: %w", err)
	}
	return nil
}
