package priority

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"slices"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/linnemanlabs/sift/internal/label"
)

// Model blob layout, all integers little endian:
//
//	magic   [4]byte "SFTM"
//	version uint16
//	flags   uint16 (bit 0: body is zstd compressed)
//	crc     uint32 (IEEE, over the uncompressed body)
//	size    uint32 (stored body length)
//	body    [size]byte
//
// The body carries the label table, observed classes, vocabulary with idf
// weights, the weight matrix, intercepts, and training settings.
const (
	blobMagic     = "SFTM"
	blobVersion   = 1
	flagZstd      = 1 << 0
	headerLen     = 4 + 2 + 2 + 4 + 4
	maxBodyBytes  = 256 << 20
	maxVocabTerms = 1 << 20
	maxTermBytes  = 1 << 10
)

var (
	errTruncated = errors.New("truncated")
	errNonFinite = errors.New("non-finite value")
)

func encodeModel(m *model) ([]byte, error) {
	var body bytes.Buffer
	w := &encoder{buf: &body}

	names := label.PriorityNames()
	w.uvarint(uint64(len(names)))
	for _, n := range names {
		w.str(n)
	}

	w.uvarint(uint64(len(m.classes)))
	for _, c := range m.classes {
		w.uvarint(uint64(c.Index()))
	}

	w.uvarint(uint64(m.vec.size()))
	for i, t := range m.vec.terms {
		w.str(t)
		w.float(m.vec.idf[i])
	}

	for k := range m.classes {
		for _, v := range m.clf.weights[k] {
			w.float(v)
		}
		w.float(m.clf.bias[k])
	}

	w.uvarint(uint64(m.cfg.MaxFeatures))
	w.float(m.cfg.C)
	w.uvarint(uint64(m.cfg.MaxIterations))
	w.uvarint(uint64(m.examples))
	w.varint(m.trainedAt.UnixNano())

	raw := body.Bytes()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	compressed := enc.EncodeAll(raw, nil)
	_ = enc.Close()

	if len(compressed) > maxBodyBytes {
		return nil, fmt.Errorf("model body too large (%d bytes)", len(compressed))
	}

	out := make([]byte, headerLen, headerLen+len(compressed))
	copy(out, blobMagic)
	binary.LittleEndian.PutUint16(out[4:], blobVersion)
	binary.LittleEndian.PutUint16(out[6:], flagZstd)
	binary.LittleEndian.PutUint32(out[8:], crc32.ChecksumIEEE(raw))
	binary.LittleEndian.PutUint32(out[12:], uint32(len(compressed))) //nolint:gosec // bounded by maxBodyBytes
	return append(out, compressed...), nil
}

// decodeModel parses a blob. Every failure wraps ErrCorruptModel.
func decodeModel(blob []byte) (*model, error) {
	m, err := decodeBlob(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}
	return m, nil
}

func decodeBlob(blob []byte) (*model, error) {
	if len(blob) < headerLen {
		return nil, fmt.Errorf("header: %w", errTruncated)
	}
	if string(blob[:4]) != blobMagic {
		return nil, errors.New("bad magic")
	}
	if v := binary.LittleEndian.Uint16(blob[4:]); v != blobVersion {
		return nil, fmt.Errorf("unsupported version %d", v)
	}
	flags := binary.LittleEndian.Uint16(blob[6:])
	sum := binary.LittleEndian.Uint32(blob[8:])
	size := binary.LittleEndian.Uint32(blob[12:])
	if size > maxBodyBytes || int(size) != len(blob)-headerLen {
		return nil, fmt.Errorf("body size %d does not match blob", size)
	}

	raw := blob[headerLen:]
	if flags&flagZstd != 0 {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		raw, err = dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress: %w", err)
		}
	}
	if crc32.ChecksumIEEE(raw) != sum {
		return nil, errors.New("checksum mismatch")
	}

	r := &decoder{buf: raw}

	names := make([]string, r.count(label.NumPriorities))
	for i := range names {
		names[i] = r.str()
	}
	if r.err == nil && !slices.Equal(names, label.PriorityNames()) {
		return nil, fmt.Errorf("label table %v does not match %v", names, label.PriorityNames())
	}

	classes := make([]label.Priority, r.count(label.NumPriorities))
	for i := range classes {
		p, err := label.PriorityFromIndex(int(r.uvarint()))
		if err != nil && r.err == nil {
			r.err = err
		}
		classes[i] = p
	}
	if r.err == nil {
		if len(classes) < 2 {
			return nil, fmt.Errorf("model has %d classes", len(classes))
		}
		for i := 1; i < len(classes); i++ {
			if classes[i] <= classes[i-1] {
				return nil, errors.New("classes not in ascending order")
			}
		}
	}

	dim := r.count(maxVocabTerms)
	terms := make([]string, dim)
	idf := make([]float64, dim)
	for i := range terms {
		terms[i] = r.str()
		idf[i] = r.float()
		if r.err == nil && i > 0 && terms[i] <= terms[i-1] {
			r.err = errors.New("vocabulary not sorted")
		}
	}

	clf := &softmaxModel{
		weights: make([][]float64, len(classes)),
		bias:    make([]float64, len(classes)),
	}
	for k := range classes {
		if r.err != nil {
			break
		}
		// 8 bytes per weight, checked before allocating
		if len(r.buf)-r.off < 8*(dim+1) {
			r.err = errTruncated
			break
		}
		row := make([]float64, dim)
		for j := range row {
			row[j] = r.float()
		}
		clf.weights[k] = row
		clf.bias[k] = r.float()
	}

	cfg := Config{
		MaxFeatures:   int(r.uvarint()), //nolint:gosec // validated below
		C:             r.float(),
		MaxIterations: int(r.uvarint()), //nolint:gosec // validated below
	}
	examples := int(r.uvarint()) //nolint:gosec // informational only
	trainedAt := r.varint()

	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(r.buf) {
		return nil, fmt.Errorf("%d trailing bytes", len(r.buf)-r.off)
	}
	if dim == 0 {
		return nil, errors.New("empty vocabulary")
	}

	return &model{
		vec:       newVectorizer(terms, idf),
		clf:       clf,
		classes:   classes,
		cfg:       cfg,
		examples:  examples,
		trainedAt: time.Unix(0, trainedAt).UTC(),
	}, nil
}

type encoder struct {
	buf     *bytes.Buffer
	scratch [binary.MaxVarintLen64]byte
}

func (e *encoder) uvarint(v uint64) {
	n := binary.PutUvarint(e.scratch[:], v)
	e.buf.Write(e.scratch[:n])
}

func (e *encoder) varint(v int64) {
	n := binary.PutVarint(e.scratch[:], v)
	e.buf.Write(e.scratch[:n])
}

func (e *encoder) str(s string) {
	e.uvarint(uint64(len(s)))
	e.buf.WriteString(s)
}

func (e *encoder) float(f float64) {
	binary.LittleEndian.PutUint64(e.scratch[:8], math.Float64bits(f))
	e.buf.Write(e.scratch[:8])
}

// decoder reads from buf; the first error sticks and later reads return
// zero values.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		d.err = errTruncated
		return 0
	}
	d.off += n
	return v
}

func (d *decoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.buf[d.off:])
	if n <= 0 {
		d.err = errTruncated
		return 0
	}
	d.off += n
	return v
}

// count reads a length prefix and rejects values above limit.
func (d *decoder) count(limit int) int {
	v := d.uvarint()
	if d.err != nil {
		return 0
	}
	if v > uint64(limit) { //nolint:gosec // limit is a small positive constant
		d.err = fmt.Errorf("count %d exceeds limit %d", v, limit)
		return 0
	}
	return int(v) //nolint:gosec // bounded by limit
}

func (d *decoder) str() string {
	n := d.count(maxTermBytes)
	if d.err != nil {
		return ""
	}
	if len(d.buf)-d.off < n {
		d.err = errTruncated
		return ""
	}
	s := string(d.buf[d.off : d.off+n])
	d.off += n
	return s
}

func (d *decoder) float() float64 {
	if d.err != nil {
		return 0
	}
	if len(d.buf)-d.off < 8 {
		d.err = errTruncated
		return 0
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(d.buf[d.off:]))
	d.off += 8
	if math.IsNaN(v) || math.IsInf(v, 0) {
		d.err = errNonFinite
		return 0
	}
	return v
}
