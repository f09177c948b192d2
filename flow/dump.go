package flow

import (
	"context"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/flowpod/flowpod/metrics"
	"github.com/flowpod/flowpod/snapshot"
)

// Dump full-scans the named pod's live records and persists them as a
// shardCount-way partitioned snapshot at path. A non-positive timeout
// leaves the call bounded only by ctx. Concurrent dumps of the same pod
// to the same path collapse into one; live query and index traffic on
// the pod keeps flowing for the whole duration.
func (f *Flow) Dump(ctx context.Context, podName, path string, shardCount int, timeout time.Duration) error {
	span, ctx := trace.StartSpanFromContext(ctx, "dump")

	p, err := f.Pod(podName)
	if err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	_, err, shared := f.dumpRun.Do(podName+"|"+path, func() (interface{}, error) {
		records, err := p.FullScan(ctx)
		if err != nil {
			return nil, err
		}
		return nil, snapshot.Dump(ctx, records, path, shardCount, f.lim)
	})
	if shared {
		span.Debugf("dump of pod %s to %s joined an in-flight run", podName, path)
	}
	if err != nil {
		return err
	}
	metrics.DumpDuration.WithLabelValues(podName).Observe(time.Since(start).Seconds())
	return nil
}
