// Copyright 2026 The FlowPod Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package limiter

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimiterUnlimited(t *testing.T) {
	l := NewLimiter(LimitConfig{})
	ctx := context.Background()

	// zero budget: the underlying reader/writer pass through untouched
	var buf bytes.Buffer
	require.Equal(t, io.Reader(&buf), l.Reader(ctx, &buf))
	require.Equal(t, io.Writer(&buf), l.Writer(ctx, &buf))
}

func TestLimiterPreservesData(t *testing.T) {
	l := NewLimiter(LimitConfig{ReadMBPS: 64, WriteMBPS: 64})
	ctx := context.Background()
	data := bytes.Repeat([]byte("payload"), 1<<12)

	var sink bytes.Buffer
	w := l.Writer(ctx, &sink)
	n, err := w.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, sink.Bytes())

	out, err := io.ReadAll(l.Reader(ctx, bytes.NewReader(sink.Bytes())))
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestLimiterOversizedChunk(t *testing.T) {
	// a single write larger than the burst still goes through
	l := NewLimiter(LimitConfig{WriteMBPS: 512})
	var sink bytes.Buffer
	data := make([]byte, 3<<20)

	n, err := l.Writer(context.Background(), &sink).Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
}

func TestLimiterCanceledContext(t *testing.T) {
	l := NewLimiter(LimitConfig{ReadMBPS: 1, WriteMBPS: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Reader(ctx, bytes.NewReader([]byte("x"))).Read(make([]byte, 1))
	require.Error(t, err)
	_, err = l.Writer(ctx, io.Discard).Write([]byte("x"))
	require.Error(t, err)
}
