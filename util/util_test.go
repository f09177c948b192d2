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

package util

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenTmpSiblingPath(t *testing.T) {
	base := filepath.Join(t.TempDir(), "snap")
	tmp, err := GenTmpSiblingPath(base)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(tmp, base+".tmp-"))

	info, err := os.Stat(tmp)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	// siblings never collide
	tmp2, err := GenTmpSiblingPath(base)
	require.NoError(t, err)
	require.NotEqual(t, tmp, tmp2)
}

func TestGetLocalIp(t *testing.T) {
	ip, err := GetLocalIp()
	require.NoError(t, err)
	t.Log(ip)
}

func TestTimeReader(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 1<<16)
	tr := &TimeReader{R: bytes.NewReader(data)}

	out, err := io.ReadAll(tr)
	require.NoError(t, err)
	require.Equal(t, data, out)
	require.GreaterOrEqual(t, tr.GetCost().Nanoseconds(), int64(0))
}

func TestTimeWriter(t *testing.T) {
	var buf bytes.Buffer
	tw := &TimeWriter{W: &buf}

	n, err := tw.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", buf.String())
	require.GreaterOrEqual(t, tw.GetCost().Nanoseconds(), int64(0))
}
