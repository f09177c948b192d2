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

// Package pod implements the externally addressable pipeline stage: one
// replica group of R replicas, each wrapping a shard group of P workers,
// plus the rolling update orchestrator that replaces replicas in place.
package pod

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cubefs/cubefs/blobstore/util/taskpool"

	apierrors "github.com/flowpod/flowpod/errors"
	"github.com/flowpod/flowpod/proto"
)

const defaultReadyTimeout = 5 * time.Second

// Options carries everything a pod needs to materialize its wiring.
type Options struct {
	Spec      proto.StageSpec
	Wiring    Wiring
	Workspace string

	// Aggregator merges per-shard search answers; required when
	// Spec.Shards > 1.
	Aggregator Aggregator

	// ReadyTimeout bounds how long a replacement replica may warm up
	// during a rolling update.
	ReadyTimeout time.Duration
}

// Pod combines one replica group into a single externally addressable
// unit. Its external endpoint never changes, even while the replica
// membership is being mutated by a rolling update.
type Pod struct {
	name         string
	spec         proto.StageSpec
	wiring       Wiring
	workspace    string
	agg          Aggregator
	readyTimeout time.Duration

	group *ReplicaGroup

	updateLock  sync.Mutex
	updateState uint32
}

func New(opts *Options) (*Pod, error) {
	p := &Pod{
		name:         opts.Spec.Name,
		spec:         opts.Spec,
		wiring:       opts.Wiring,
		workspace:    opts.Workspace,
		agg:          opts.Aggregator,
		readyTimeout: opts.ReadyTimeout,
	}
	if p.readyTimeout <= 0 {
		p.readyTimeout = defaultReadyTimeout
	}

	replicas := make([]*Replica, 0, len(p.wiring.Replicas))
	for i := range p.wiring.Replicas {
		r, err := p.buildReplica(i)
		if err != nil {
			// nothing started yet, tear down what was built
			for _, built := range replicas {
				built.Stop()
			}
			return nil, err
		}
		replicas = append(replicas, r)
	}
	p.group = newReplicaGroup(p.name, p.wiring, replicas)
	return p, nil
}

// buildReplica materializes replica i from the stage spec and the
// replica's fixed wiring. Rolling update reuses it so a replacement
// replica comes back on exactly the same endpoints.
func (p *Pod) buildReplica(i int) (*Replica, error) {
	rw := p.wiring.Replicas[i]
	workers := make([]*Worker, 0, len(rw.Workers))
	for s, endpoint := range rw.Workers {
		w, err := newWorker(p.spec, i, s, endpoint, p.workspace)
		if err != nil {
			for _, built := range workers {
				built.Stop()
			}
			return nil, err
		}
		workers = append(workers, w)
	}
	group := newShardGroup(p.spec.Name, rw, workers, p.agg)
	return newReplica(i, rw, group), nil
}

func (p *Pod) Start() { p.group.Start() }

func (p *Pod) Close() { p.group.Stop() }

func (p *Pod) Name() string { return p.name }

func (p *Pod) Spec() proto.StageSpec { return p.spec }

// Endpoint is the pod's stable external endpoint.
func (p *Pod) Endpoint() proto.Endpoint { return p.wiring.External }

// Head returns the pod's externally facing fan-out unit: the replica
// group head when R>1, the sole replica's shard head when R=1 and P>1,
// nil for a degenerate R=1,P=1 pod.
func (p *Pod) Head() *RoutingUnit {
	if h := p.group.Head(); h != nil {
		return h
	}
	return p.group.replicaAt(0).ShardGroup().Head()
}

// Tail mirrors Head for fan-in.
func (p *Pod) Tail() *RoutingUnit {
	if t := p.group.Tail(); t != nil {
		return t
	}
	return p.group.replicaAt(0).ShardGroup().Tail()
}

func (p *Pod) ReplicaGroup() *ReplicaGroup { return p.group }

func (p *Pod) Replicas() []*Replica { return p.group.Replicas() }

func (p *Pod) Ready() bool { return p.group.Ready() }

// NumUnits counts workers plus routing units:
// R*(P + 2 if P>1) + 2 if R>1.
func (p *Pod) NumUnits() int {
	r, s := p.spec.Replicas, p.spec.Shards
	units := s
	if s > 1 {
		units += 2
	}
	units *= r
	if r > 1 {
		units += 2
	}
	return units
}

func (p *Pod) Process(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	return p.group.Process(ctx, req)
}

// FullScan collects the records of one ready replica, deduplicated by
// id across its shards and ordered by insertion sequence. Live
// ingestion broadcasts to all shards, so any single replica holds the
// whole record set.
func (p *Pod) FullScan(ctx context.Context) ([]proto.Record, error) {
	v := p.group.currentView()
	var replica *Replica
	for i, r := range v.replicas {
		if !v.excluded[i] && r.Ready() {
			replica = r
			break
		}
	}
	if replica == nil {
		return nil, apierrors.ErrNoAvailableReplica
	}

	workers := replica.ShardGroup().Workers()
	scans := make([][]proto.Record, len(workers))
	scanErrs := make([]error, len(workers))
	pool := taskpool.New(len(workers), len(workers))
	var wg sync.WaitGroup
	wg.Add(len(workers))
	for i := range workers {
		i := i
		pool.Run(func() {
			defer wg.Done()
			scans[i], scanErrs[i] = workers[i].FullScan(ctx)
		})
	}
	wg.Wait()
	pool.Close()

	seen := make(map[string]struct{})
	records := make([]proto.Record, 0)
	for i := range scans {
		if scanErrs[i] != nil {
			return nil, scanErrs[i]
		}
		for _, rec := range scans[i] {
			if _, ok := seen[rec.ID]; ok {
				continue
			}
			seen[rec.ID] = struct{}{}
			records = append(records, rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Seq < records[j].Seq
	})
	return records, nil
}
