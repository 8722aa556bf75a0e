package zet

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"timeskip/internal/container"
	"timeskip/internal/message"
)

var _ container.Writer = (*Writer)(nil)

// Writer appends framed records to a .zet file. It satisfies
// container.Writer. The zero value is not usable; construct with
// NewWriter.
type Writer struct {
	file        *os.File
	buf         *bufio.Writer
	startTimeNs uint64
}

// NewWriter opens path for writing, records nowNs as the capture's start
// time, and writes the fixed header immediately so the file exists and is
// structurally valid even if no record is ever appended.
func NewWriter(path string, nowNs uint64) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("zet: create %s: %w", path, err)
	}

	w := &Writer{
		file:        f,
		buf:         bufio.NewWriter(f),
		startTimeNs: nowNs,
	}

	if err := w.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}

	return w, nil
}

func (w *Writer) writeHeader() error {
	var hdr [HeaderSize]byte
	copy(hdr[0:4], magic[:])
	binary.LittleEndian.PutUint32(hdr[4:8], Version)
	binary.LittleEndian.PutUint64(hdr[8:16], w.startTimeNs)
	// hdr[16:32] reserved, left zero.

	if _, err := w.buf.Write(hdr[:]); err != nil {
		return fmt.Errorf("zet: write header: %w", err)
	}
	return w.buf.Flush()
}

// Write emits exactly one record: sent_ns, received_ns, subject_len
// (including the terminating NUL), payload_size, the NUL-terminated
// subject, then the raw payload.
func (w *Writer) Write(rec message.Record) error {
	subjectLen := uint16(len(rec.Subject) + 1)
	payloadSize := uint32(len(rec.Payload))

	var hdr [8 + 8 + 2 + 4]byte
	binary.LittleEndian.PutUint64(hdr[0:8], rec.SentNs)
	binary.LittleEndian.PutUint64(hdr[8:16], rec.ReceivedNs)
	binary.LittleEndian.PutUint16(hdr[16:18], subjectLen)
	binary.LittleEndian.PutUint32(hdr[18:22], payloadSize)

	if _, err := w.buf.Write(hdr[:]); err != nil {
		return fmt.Errorf("zet: write record header: %w", err)
	}
	if _, err := w.buf.WriteString(rec.Subject); err != nil {
		return fmt.Errorf("zet: write subject: %w", err)
	}
	if err := w.buf.WriteByte(0); err != nil {
		return fmt.Errorf("zet: write subject terminator: %w", err)
	}
	if len(rec.Payload) > 0 {
		if _, err := w.buf.Write(rec.Payload); err != nil {
			return fmt.Errorf("zet: write payload: %w", err)
		}
	}
	return nil
}

// Flush forces buffered bytes to the OS.
func (w *Writer) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("zet: flush: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("zet: flush on close: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("zet: close: %w", err)
	}
	return nil
}
