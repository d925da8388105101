package seqio

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
)

// RecordWriter persists a sequence of records to one partition file.
type RecordWriter interface {
	Write(rec Record) error
	Close() error
}

// RecordReader reads back a sequence of records from one partition
// file. Read returns io.EOF after the last record.
type RecordReader interface {
	Read() (Record, error)
	Close() error
}

// Codec defines the on-disk encoding of record partition files. The
// pipeline treats it as an external collaborator; BinaryCodec is the
// default.
type Codec interface {
	NewWriter(w io.Writer) RecordWriter
	NewReader(r io.Reader) (RecordReader, error)
}

// BinaryCodec writes records as length-prefixed frames with an
// xxHash64 payload checksum. With Compress set, the whole partition
// file is additionally gzip-compressed.
type BinaryCodec struct {
	Compress bool
}

// frameHeaderSize is 4 bytes payload length + 8 bytes xxHash64.
const frameHeaderSize = 12

// NewWriter implements Codec.
func (c BinaryCodec) NewWriter(w io.Writer) RecordWriter {
	fw := &frameWriter{w: w}
	if c.Compress {
		gz := gzip.NewWriter(w)
		fw.w = gz
		fw.closer = gz
	}
	return fw
}

// NewReader implements Codec.
func (c BinaryCodec) NewReader(r io.Reader) (RecordReader, error) {
	fr := &frameReader{r: r}
	if c.Compress {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed partition: %w", err)
		}
		fr.r = gz
		fr.closer = gz
	}
	return fr, nil
}

type frameWriter struct {
	w      io.Writer
	closer io.Closer
	header [frameHeaderSize]byte
}

func (fw *frameWriter) Write(rec Record) error {
	payload, err := marshalRecord(rec)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(fw.header[:4], uint32(len(payload)))
	binary.LittleEndian.PutUint64(fw.header[4:], xxhash.Sum64(payload))
	if _, err := fw.w.Write(fw.header[:]); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if _, err := fw.w.Write(payload); err != nil {
		return fmt.Errorf("failed to write frame payload: %w", err)
	}
	return nil
}

func (fw *frameWriter) Close() error {
	if fw.closer != nil {
		return fw.closer.Close()
	}
	return nil
}

type frameReader struct {
	r      io.Reader
	closer io.Closer
	header [frameHeaderSize]byte
}

func (fr *frameReader) Read() (Record, error) {
	if _, err := io.ReadFull(fr.r, fr.header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}
	size := binary.LittleEndian.Uint32(fr.header[:4])
	sum := binary.LittleEndian.Uint64(fr.header[4:])

	payload := make([]byte, size)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		return nil, fmt.Errorf("failed to read frame payload: %w", err)
	}
	if xxhash.Sum64(payload) != sum {
		return nil, ErrChecksum
	}
	return unmarshalRecord(payload)
}

func (fr *frameReader) Close() error {
	if fr.closer != nil {
		return fr.closer.Close()
	}
	return nil
}

// wireValue is the frame payload representation of one feature value.
type wireValue struct {
	DType  DType     `json:"dtype"`
	Bytes  []byte    `json:"bytes,omitempty"`
	Ints   []int64   `json:"ints,omitempty"`
	Floats []float32 `json:"floats,omitempty"`
}

// marshalRecord encodes a record as a frame payload.
func marshalRecord(rec Record) ([]byte, error) {
	wire := make(map[string]wireValue, len(rec))
	for name, v := range rec {
		wv := wireValue{DType: v.DType()}
		switch vals := v.(type) {
		case Bytes:
			wv.Bytes = vals
		case Int32s:
			wv.Ints = make([]int64, len(vals))
			for i, x := range vals {
				wv.Ints[i] = int64(x)
			}
		case Int64s:
			wv.Ints = vals
		case Float32s:
			wv.Floats = vals
		}
		wire[name] = wv
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return payload, nil
}

// unmarshalRecord decodes a frame payload back into a record.
func unmarshalRecord(payload []byte) (Record, error) {
	var wire map[string]wireValue
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	rec := make(Record, len(wire))
	for name, wv := range wire {
		switch wv.DType {
		case DTypeString:
			rec[name] = Bytes(wv.Bytes)
		case DTypeInt32:
			vals := make(Int32s, len(wv.Ints))
			for i, x := range wv.Ints {
				vals[i] = int32(x)
			}
			rec[name] = vals
		case DTypeInt64:
			rec[name] = Int64s(wv.Ints)
		case DTypeFloat32:
			rec[name] = Float32s(wv.Floats)
		default:
			return nil, fmt.Errorf("failed to decode record: unknown dtype %q for feature %q", wv.DType, name)
		}
	}
	return rec, nil
}
