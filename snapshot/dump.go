package snapshot

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"golang.org/x/sync/errgroup"

	apierrors "github.com/flowpod/flowpod/errors"
	"github.com/flowpod/flowpod/proto"
	"github.com/flowpod/flowpod/util"
	"github.com/flowpod/flowpod/util/limiter"
)

// Dump partitions records across shardCount shards and persists one
// vector and one meta artifact per shard, plus the manifest. Everything
// is written into a temporary sibling directory and renamed into place,
// so a path already exposed for reading is never mutated; readers that
// opened the previous generation keep their view.
func Dump(ctx context.Context, records []proto.Record, path string, shardCount int, lim limiter.Limiter) error {
	span := trace.SpanFromContextSafe(ctx)
	if shardCount < 1 {
		return apierrors.ErrInvalidShardCount
	}
	if lim == nil {
		lim = limiter.NewLimiter(limiter.LimitConfig{})
	}

	tmp, err := util.GenTmpSiblingPath(path)
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	for s := 0; s < shardCount; s++ {
		s := s
		eg.Go(func() error {
			start, end := Range(len(records), shardCount, s)
			return writeShard(ctx, tmp, s, records[start:end], lim)
		})
	}
	if err := eg.Wait(); err != nil {
		os.RemoveAll(tmp)
		return errors.Info(err, "write shard artifacts failed")
	}

	if err := writeManifest(tmp, &Manifest{
		ShardCount: shardCount,
		Ranges:     Ranges(len(records), shardCount),
	}); err != nil {
		os.RemoveAll(tmp)
		return err
	}

	// swap the new generation in
	os.RemoveAll(path)
	if err := os.Rename(tmp, path); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	span.Infof("dumped %d records into %d shards at %s", len(records), shardCount, path)
	return nil
}

func writeShard(ctx context.Context, dir string, shard int, records []proto.Record, lim limiter.Limiter) error {
	span := trace.SpanFromContextSafe(ctx)

	cost := writeArtifactTimed(ctx, filepath.Join(dir, vectorsFile(shard)), lim, func(w *bufio.Writer) error {
		return writeVectors(w, records)
	})
	if cost.err != nil {
		return cost.err
	}
	metaCost := writeArtifactTimed(ctx, filepath.Join(dir, metasFile(shard)), lim, func(w *bufio.Writer) error {
		return writeMetas(w, records)
	})
	if metaCost.err != nil {
		return metaCost.err
	}
	span.Debugf("shard %d: %d records, vectors io %s, metas io %s", shard, len(records), cost.io, metaCost.io)
	return nil
}

type writeCost struct {
	err error
	io  string
}

func writeArtifactTimed(ctx context.Context, name string, lim limiter.Limiter, fill func(w *bufio.Writer) error) writeCost {
	f, err := os.Create(name)
	if err != nil {
		return writeCost{err: err}
	}
	tw := &util.TimeWriter{W: lim.Writer(ctx, f)}
	bw := bufio.NewWriter(tw)
	if err := fill(bw); err != nil {
		f.Close()
		return writeCost{err: err}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return writeCost{err: err}
	}
	if err := f.Close(); err != nil {
		return writeCost{err: err}
	}
	return writeCost{io: tw.GetCost().String()}
}
