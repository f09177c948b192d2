package snapshot

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowpod/flowpod/proto"
)

func TestCodecRoundTrip(t *testing.T) {
	records := []proto.Record{
		{Seq: 0, ID: "a", Vector: []float32{1, 2, 3}, Meta: []byte(`{"id":"a"}`)},
		{Seq: 1, ID: "b", Vector: []float32{0.5, -1.5}, Meta: nil},
		{Seq: 2, ID: "c", Vector: nil, Meta: []byte{}},
	}

	var vbuf bytes.Buffer
	require.NoError(t, writeVectors(&vbuf, records))
	ids, vectors, err := readVectors(&vbuf)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, ids)
	require.Equal(t, []float32{1, 2, 3}, vectors[0])
	require.Equal(t, []float32{0.5, -1.5}, vectors[1])
	require.Empty(t, vectors[2])

	var mbuf bytes.Buffer
	require.NoError(t, writeMetas(&mbuf, records))
	ids, metas, err := readMetas(&mbuf)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, ids)
	require.Equal(t, records[0].Meta, metas[0])
	require.Empty(t, metas[1])
	require.Empty(t, metas[2])
}

func TestCodecEmptyStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeVectors(&buf, nil))
	ids, vectors, err := readVectors(&buf)
	require.NoError(t, err)
	require.Empty(t, ids)
	require.Empty(t, vectors)
}

func TestCodecTruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeVectors(&buf, []proto.Record{
		{ID: "a", Vector: []float32{1, 2, 3, 4}},
	}))

	// cut the stream inside the last entry
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-3])
	_, _, err := readVectors(truncated)
	require.Error(t, err)
	require.NotEqual(t, io.EOF, err)
}
