package snapshot

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/flowpod/flowpod/proto"
)

// Per-shard artifact names, keyed by shard index.
const (
	vectorsFileFmt = "vectors-%d.bin"
	metasFileFmt   = "metas-%d.bin"
)

const maxEntryLen = 1 << 26 // 64M, sanity bound per encoded field

func vectorsFile(shard int) string { return fmt.Sprintf(vectorsFileFmt, shard) }
func metasFile(shard int) string   { return fmt.Sprintf(metasFileFmt, shard) }

// The artifact layout is a flat little-endian stream, one entry per
// record in insertion order:
//
//	vectors: u32 id len, id bytes, u32 dim, dim * f32
//	metas:   u32 id len, id bytes, u32 meta len, meta bytes

func writeVectors(w io.Writer, records []proto.Record) error {
	for i := range records {
		rec := &records[i]
		if err := writeBytes(w, []byte(rec.ID)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(rec.Vector))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, rec.Vector); err != nil {
			return err
		}
	}
	return nil
}

func readVectors(r io.Reader) (ids []string, vectors [][]float32, err error) {
	for {
		id, err := readBytes(r)
		if err == io.EOF {
			return ids, vectors, nil
		}
		if err != nil {
			return nil, nil, err
		}
		var dim uint32
		if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
			return nil, nil, err
		}
		if dim > maxEntryLen {
			return nil, nil, fmt.Errorf("corrupt vector artifact: dim %d", dim)
		}
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, nil, err
		}
		ids = append(ids, string(id))
		vectors = append(vectors, vec)
	}
}

func writeMetas(w io.Writer, records []proto.Record) error {
	for i := range records {
		rec := &records[i]
		if err := writeBytes(w, []byte(rec.ID)); err != nil {
			return err
		}
		if err := writeBytes(w, rec.Meta); err != nil {
			return err
		}
	}
	return nil
}

func readMetas(r io.Reader) (ids []string, metas [][]byte, err error) {
	for {
		id, err := readBytes(r)
		if err == io.EOF {
			return ids, metas, nil
		}
		if err != nil {
			return nil, nil, err
		}
		meta, err := readBytes(r)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, string(id))
		metas = append(metas, meta)
	}
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// readBytes returns io.EOF only on a clean entry boundary; a short read
// inside an entry is ErrUnexpectedEOF.
func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > maxEntryLen {
		return nil, fmt.Errorf("corrupt artifact: entry length %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return b, nil
}
