package snapshot

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	apierrors "github.com/flowpod/flowpod/errors"
	"github.com/flowpod/flowpod/util"
	"github.com/flowpod/flowpod/util/limiter"
)

// ImportVectors reads shard's vector artifact back in original
// insertion order. Re-reading is safe and repeatable: dumps swap whole
// generations by rename, they never rewrite an exposed path.
func ImportVectors(ctx context.Context, path string, shard int, lim limiter.Limiter) (ids []string, vectors [][]float32, err error) {
	if err := checkShard(path, shard); err != nil {
		return nil, nil, err
	}
	err = readArtifact(ctx, filepath.Join(path, vectorsFile(shard)), lim, func(r *bufio.Reader) error {
		ids, vectors, err = readVectors(r)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return ids, vectors, nil
}

// ImportMetas mirrors ImportVectors for the meta artifact.
func ImportMetas(ctx context.Context, path string, shard int, lim limiter.Limiter) (ids []string, metas [][]byte, err error) {
	if err := checkShard(path, shard); err != nil {
		return nil, nil, err
	}
	err = readArtifact(ctx, filepath.Join(path, metasFile(shard)), lim, func(r *bufio.Reader) error {
		ids, metas, err = readMetas(r)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return ids, metas, nil
}

func checkShard(path string, shard int) error {
	m, err := ReadManifest(path)
	if err != nil {
		return err
	}
	if shard < 0 || shard >= m.ShardCount {
		return &apierrors.PartitionMismatchError{ShardCount: m.ShardCount, Shard: shard}
	}
	return nil
}

func readArtifact(ctx context.Context, name string, lim limiter.Limiter, fill func(r *bufio.Reader) error) error {
	if lim == nil {
		lim = limiter.NewLimiter(limiter.LimitConfig{})
	}
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	tr := &util.TimeReader{R: lim.Reader(ctx, f)}
	return fill(bufio.NewReader(tr))
}
