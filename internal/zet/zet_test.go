package zet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"timeskip/internal/message"
	"timeskip/internal/tkerr"
)

func TestEmptyPayloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.zet")

	w, err := NewWriter(path, 0)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	rec := message.Record{SentNs: 0, ReceivedNs: 0, Subject: "t", Payload: nil}
	if err := w.Write(rec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	got, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Subject != "t" || len(got.Payload) != 0 || got.SentNs != 0 || got.ReceivedNs != 0 {
		t.Fatalf("got %+v, want subject=t size=0 sent=0 received=0", got)
	}

	if _, err := r.ReadMessage(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after last record, got %v", err)
	}
}

func TestBinaryPayloadIntegrity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "binary.zet")
	payload := []byte{0x00, 0xFF, 0xAB, 0xCD, 0xEF, 0x00, 0x12, 0x34}

	w, err := NewWriter(path, 100)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Write(message.Record{SentNs: 5000, ReceivedNs: 6000, Subject: "b", Payload: payload}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	got, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.SentNs != 5000 || got.ReceivedNs != 6000 {
		t.Fatalf("got timestamps (%d, %d), want (5000, 6000)", got.SentNs, got.ReceivedNs)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Fatalf("got payload %x, want %x", got.Payload, payload)
	}
}

func TestHundredRepeatedSubject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hundred.zet")

	w, err := NewWriter(path, 1)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < 100; i++ {
		rec := message.Record{
			SentNs:     uint64(i * 1000),
			ReceivedNs: uint64(i*1000 + 500),
			Subject:    "r",
			Payload:    []byte(fmt.Sprintf("Message %d", i)),
		}
		if err := w.Write(rec); err != nil {
			t.Fatalf("Write(%d): %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	for i := 0; i < 100; i++ {
		got, err := r.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage(%d): %v", i, err)
		}
		want := fmt.Sprintf("Message %d", i)
		if got.Subject != "r" || string(got.Payload) != want {
			t.Fatalf("record %d: got subject=%q payload=%q, want subject=r payload=%q", i, got.Subject, got.Payload, want)
		}
		if got.SentNs != uint64(i*1000) || got.ReceivedNs != uint64(i*1000+500) {
			t.Fatalf("record %d: got timestamps (%d, %d), want (%d, %d)", i, got.SentNs, got.ReceivedNs, i*1000, i*1000+500)
		}
	}
	if _, err := r.ReadMessage(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after 100 records, got %v", err)
	}
}

func TestReaderRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zet")
	w, err := NewWriter(path, 0)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("readFile: %v", err)
	}
	raw[0] = 'X'
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	if _, err := NewReader(path); !errors.Is(err, tkerr.ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat, got %v", err)
	}
}

func TestReaderRejectsTruncatedRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncated.zet")
	w, err := NewWriter(path, 0)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Write(message.Record{Subject: "t", Payload: []byte("hello world")}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	w.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("readFile: %v", err)
	}
	truncated := raw[:len(raw)-4]
	if err := os.WriteFile(path, truncated, 0o644); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if _, err := r.ReadMessage(); !errors.Is(err, tkerr.ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat for truncated record, got %v", err)
	}
}
