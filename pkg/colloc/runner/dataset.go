package runner

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cognicore/colloc/pkg/colloc/gram"
)

// datasetMagic opens every encoded dataset.
const datasetMagic = "CLP1"

// maxPairSize bounds a single encoded pair when reading.
const maxPairSize = 1 << 20

// WriteTo encodes the dataset so pass 2 can be rerun without pass 1.
// The layout is the magic, uvarint Total and partition count, then per
// partition a uvarint pair count followed by length-prefixed pairs.
func (d *Dataset) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countWriter{w: bw}

	var buf []byte
	putUvarint := func(v uint64) error {
		buf = binary.AppendUvarint(buf[:0], v)
		_, err := cw.Write(buf)
		return err
	}

	if _, err := io.WriteString(cw, datasetMagic); err != nil {
		return cw.n, err
	}
	if d.Total < 0 {
		return cw.n, fmt.Errorf("dataset: negative total %d", d.Total)
	}
	if err := putUvarint(uint64(d.Total)); err != nil {
		return cw.n, err
	}
	if err := putUvarint(uint64(len(d.Partitions))); err != nil {
		return cw.n, err
	}
	for _, part := range d.Partitions {
		if err := putUvarint(uint64(len(part))); err != nil {
			return cw.n, err
		}
		for _, p := range part {
			data, err := p.MarshalBinary()
			if err != nil {
				return cw.n, err
			}
			if err := putUvarint(uint64(len(data))); err != nil {
				return cw.n, err
			}
			if _, err := cw.Write(data); err != nil {
				return cw.n, err
			}
		}
	}
	return cw.n, bw.Flush()
}

// ReadDataset decodes a dataset written by WriteTo.
func ReadDataset(r io.Reader) (*Dataset, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(datasetMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("dataset: read header: %w", err)
	}
	if string(magic) != datasetMagic {
		return nil, fmt.Errorf("dataset: bad magic %q", magic)
	}

	total, err := readUvarint(br, "total")
	if err != nil {
		return nil, err
	}
	parts, err := readUvarint(br, "partition count")
	if err != nil {
		return nil, err
	}
	if parts == 0 || parts > 1<<16 {
		return nil, fmt.Errorf("dataset: invalid partition count %d", parts)
	}

	ds := &Dataset{Partitions: make([][]gram.Pair, parts), Total: int64(total)}
	var data []byte
	for i := range ds.Partitions {
		n, err := readUvarint(br, "pair count")
		if err != nil {
			return nil, err
		}
		part := make([]gram.Pair, 0, min(n, 1<<16))
		for j := uint64(0); j < n; j++ {
			size, err := readUvarint(br, "pair size")
			if err != nil {
				return nil, err
			}
			if size > maxPairSize {
				return nil, fmt.Errorf("dataset: partition %d pair %d: size %d too large", i, j, size)
			}
			if uint64(cap(data)) < size {
				data = make([]byte, size)
			}
			data = data[:size]
			if _, err := io.ReadFull(br, data); err != nil {
				return nil, fmt.Errorf("dataset: partition %d pair %d: %w", i, j, noEOF(err))
			}
			var p gram.Pair
			if err := p.UnmarshalBinary(data); err != nil {
				return nil, fmt.Errorf("dataset: partition %d pair %d: %w", i, j, err)
			}
			part = append(part, p)
		}
		ds.Partitions[i] = part
	}
	if _, err := br.ReadByte(); err == nil {
		return nil, errors.New("dataset: trailing data")
	}
	return ds, nil
}

func readUvarint(br *bufio.Reader, what string) (uint64, error) {
	v, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, fmt.Errorf("dataset: read %s: %w", what, noEOF(err))
	}
	return v, nil
}

// noEOF turns a clean EOF into ErrUnexpectedEOF; every read here is inside
// the encoded body.
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
