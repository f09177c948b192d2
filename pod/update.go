package pod

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	apierrors "github.com/flowpod/flowpod/errors"
	"github.com/flowpod/flowpod/metrics"
)

// UpdateState is the per-pod rolling update state machine:
// Idle -> Draining(i) -> Restarting(i) -> Warming(i) -> Idle.
type UpdateState uint32

const (
	UpdateIdle UpdateState = iota
	UpdateDraining
	UpdateRestarting
	UpdateWarming
)

func (s UpdateState) String() string {
	switch s {
	case UpdateDraining:
		return "draining"
	case UpdateRestarting:
		return "restarting"
	case UpdateWarming:
		return "warming"
	default:
		return "idle"
	}
}

func (p *Pod) setUpdateState(s UpdateState) {
	atomic.StoreUint32(&p.updateState, uint32(s))
}

// UpdateStateNow reports the orchestrator's current state.
func (p *Pod) UpdateStateNow() UpdateState {
	return UpdateState(atomic.LoadUint32(&p.updateState))
}

// RollingUpdate replaces the pod's replicas one at a time while the pod
// keeps serving on its unchanged external endpoint. Never more than one
// replica of the pod is out of rotation; concurrent calls on the same
// pod are serialized. A replica that fails to come back ready within
// the bounded warm-up aborts the update with a RollingUpdateError and
// leaves the remaining replicas serving.
func (p *Pod) RollingUpdate(ctx context.Context) error {
	span, ctx := trace.StartSpanFromContext(ctx, "rolling-update")

	p.updateLock.Lock()
	defer p.updateLock.Unlock()
	defer p.setUpdateState(UpdateIdle)

	start := time.Now()
	defer func() {
		metrics.RollingUpdateDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
	}()

	n := p.group.Size()
	for i := 0; i < n; i++ {
		span.Debugf("pod %s draining replica %d", p.name, i)
		p.setUpdateState(UpdateDraining)
		p.group.exclude(i)
		old := p.group.replicaAt(i)
		if err := old.drain(ctx); err != nil {
			p.group.include(i, old)
			return &apierrors.RollingUpdateError{Pod: p.name, Replica: i, Err: err}
		}

		p.setUpdateState(UpdateRestarting)
		old.Stop()
		fresh, err := p.buildReplica(i)
		if err != nil {
			span.Errorf("pod %s rebuild replica %d failed: %s", p.name, i, err)
			return &apierrors.RollingUpdateError{Pod: p.name, Replica: i, Err: err}
		}
		fresh.Start()

		p.setUpdateState(UpdateWarming)
		if err := fresh.waitReady(ctx, p.readyTimeout); err != nil {
			span.Errorf("pod %s replica %d not ready: %s", p.name, i, err)
			fresh.Stop()
			return &apierrors.RollingUpdateError{Pod: p.name, Replica: i, Err: err}
		}

		p.group.include(i, fresh)
		span.Debugf("pod %s replica %d back in rotation", p.name, i)
	}
	return nil
}
