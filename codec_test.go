package seqio

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func roundtrip(t *testing.T, codec Codec, records []Record) []Record {
	t.Helper()
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := codec.NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	var got []Record
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return got
		}
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		got = append(got, rec)
	}
}

func TestBinaryCodecRoundtrip(t *testing.T) {
	records := []Record{
		{
			"text":    Bytes("hello world"),
			"tokens":  Int32s{2, 5, 7},
			"ids":     Int64s{1 << 40},
			"weights": Float32s{0.5, 1.5},
		},
		{
			"text":   Bytes{},
			"tokens": Int32s{},
		},
	}

	for _, codec := range []BinaryCodec{{}, {Compress: true}} {
		got := roundtrip(t, codec, records)
		// Empty arrays decode as empty, not nil; treat them alike.
		if diff := cmp.Diff(records, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("roundtrip mismatch with compress=%v (-want +got):\n%s", codec.Compress, diff)
		}
	}
}

func TestBinaryCodecChecksum(t *testing.T) {
	var buf bytes.Buffer
	codec := BinaryCodec{}
	w := codec.NewWriter(&buf)
	if err := w.Write(Record{"tokens": Int32s{2, 3}}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// Flip one payload byte.
	data := buf.Bytes()
	data[len(data)-1] ^= 0xff

	r, err := codec.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	if _, err := r.Read(); !errors.Is(err, ErrChecksum) {
		t.Errorf("Read of corrupted frame returned %v, want ErrChecksum", err)
	}
}
