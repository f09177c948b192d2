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

// Package flow builds the pipeline topology and exposes the
// operational facade: index, search, rolling update and dump.
package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	apierrors "github.com/flowpod/flowpod/errors"
	"github.com/flowpod/flowpod/pod"
	"github.com/flowpod/flowpod/proto"
	"github.com/flowpod/flowpod/snapshot"
	"github.com/flowpod/flowpod/util/limiter"
)

const (
	defaultCallTimeoutS  = 30
	defaultReadyTimeoutS = 5
)

type Config struct {
	Pipeline proto.PipelineSpec `json:"pipeline"`

	CallTimeoutS  int `json:"call_timeout_s"`
	ReadyTimeoutS int `json:"ready_timeout_s"`

	// MergeLimit bounds merged search results when a request carries no
	// top-k of its own; zero returns the whole union.
	MergeLimit int `json:"merge_limit"`

	SnapshotLimit limiter.LimitConfig `json:"snapshot_limit"`
}

func initConfig(cfg *Config) {
	if cfg.CallTimeoutS <= 0 {
		cfg.CallTimeoutS = defaultCallTimeoutS
	}
	if cfg.ReadyTimeoutS <= 0 {
		cfg.ReadyTimeoutS = defaultReadyTimeoutS
	}
}

// Flow owns one built topology. The pipeline spec is immutable once
// Build starts; replica membership afterwards only changes through
// RollingUpdate.
type Flow struct {
	cfg *Config
	lim limiter.Limiter

	lock    sync.RWMutex
	built   bool
	pods    map[string]*pod.Pod
	order   []*pod.Pod
	gateway *Gateway

	dumpRun singleflight.Group
}

func New(cfg *Config) *Flow {
	if cfg == nil {
		cfg = &Config{}
	}
	initConfig(cfg)
	return &Flow{
		cfg: cfg,
		lim: limiter.NewLimiter(cfg.SnapshotLimit),
	}
}

// Add appends stages to the pipeline spec. Only valid before Build.
func (f *Flow) Add(stages ...proto.StageSpec) *Flow {
	f.lock.Lock()
	defer f.lock.Unlock()
	if !f.built {
		f.cfg.Pipeline.Stages = append(f.cfg.Pipeline.Stages, stages...)
	}
	return f
}

// Build validates the whole spec first, wires every endpoint, then
// materializes and starts the pods. A validation or wiring failure
// leaves nothing half-built and the topology unreachable.
func (f *Flow) Build(ctx context.Context) error {
	span := trace.SpanFromContextSafe(ctx)

	f.lock.Lock()
	defer f.lock.Unlock()
	if f.built {
		return errors.New("flow already built")
	}

	spec := &f.cfg.Pipeline
	if err := validateSpec(spec); err != nil {
		return err
	}
	gatewayEndpoint, wirings, err := wire(spec)
	if err != nil {
		return err
	}

	agg := snapshot.NewMerger(f.cfg.MergeLimit)
	pods := make([]*pod.Pod, 0, len(spec.Stages))
	for i := range spec.Stages {
		p, err := pod.New(&pod.Options{
			Spec:         spec.Stages[i],
			Wiring:       wirings[i],
			Workspace:    spec.Workspace,
			Aggregator:   agg,
			ReadyTimeout: time.Duration(f.cfg.ReadyTimeoutS) * time.Second,
		})
		if err != nil {
			span.Errorf("build pod %s failed: %s", spec.Stages[i].Name, err)
			for _, built := range pods {
				built.Close()
			}
			return err
		}
		pods = append(pods, p)
	}

	f.pods = make(map[string]*pod.Pod, len(pods))
	for _, p := range pods {
		p.Start()
		f.pods[p.Name()] = p
	}
	f.order = pods
	f.gateway = newGateway(gatewayEndpoint, pods)
	f.built = true

	span.Infof("built topology: %d pods, %d units", len(pods), f.NumUnits())
	return nil
}

func validateSpec(spec *proto.PipelineSpec) error {
	if len(spec.Stages) == 0 {
		return apierrors.ErrEmptyPipeline
	}
	names := make(map[string]struct{}, len(spec.Stages))
	for i := range spec.Stages {
		stage := &spec.Stages[i]
		if stage.Name == "" {
			return apierrors.ErrEmptyStageName
		}
		if _, dup := names[stage.Name]; dup {
			return fmt.Errorf("%w: %s", apierrors.ErrStageNameConflict, stage.Name)
		}
		names[stage.Name] = struct{}{}
		if stage.Replicas < 1 {
			return fmt.Errorf("%w: stage %s", apierrors.ErrInvalidReplicaCount, stage.Name)
		}
		if stage.Shards < 1 {
			return fmt.Errorf("%w: stage %s", apierrors.ErrInvalidShardCount, stage.Name)
		}
	}
	return nil
}

func (f *Flow) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	for _, p := range f.order {
		p.Close()
	}
	f.built = false
	return nil
}

// Pod looks a pod up by stage name.
func (f *Flow) Pod(name string) (*pod.Pod, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	p, ok := f.pods[name]
	if !ok {
		return nil, apierrors.ErrPodDoesNotExist
	}
	return p, nil
}

// Pods returns the pods in pipeline order.
func (f *Flow) Pods() []*pod.Pod {
	f.lock.RLock()
	defer f.lock.RUnlock()
	out := make([]*pod.Pod, len(f.order))
	copy(out, f.order)
	return out
}

// GatewayEndpoint returns the pseudo-pod endpoint at the pipeline's
// entry and exit.
func (f *Flow) GatewayEndpoint() proto.Endpoint {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.gateway.Endpoint()
}

// NumUnits counts every worker and routing unit in the topology plus
// the gateway.
func (f *Flow) NumUnits() int {
	total := 1 // gateway
	for _, p := range f.order {
		total += p.NumUnits()
	}
	return total
}

// Index broadcasts the documents through the pipeline.
func (f *Flow) Index(ctx context.Context, docs []*proto.Document) error {
	_, err := f.route(ctx, &proto.Request{
		ReqID: uuid.NewString(),
		Type:  proto.RequestIndex,
		Docs:  docs,
	})
	return err
}

// Search runs each document as a query and returns one ranked match
// list per document.
func (f *Flow) Search(ctx context.Context, docs []*proto.Document, topK int) ([]*proto.Matches, error) {
	resp, err := f.route(ctx, &proto.Request{
		ReqID: uuid.NewString(),
		Type:  proto.RequestSearch,
		Docs:  docs,
		TopK:  topK,
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (f *Flow) route(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	f.lock.RLock()
	gw := f.gateway
	f.lock.RUnlock()
	if gw == nil {
		return nil, errors.New("flow not built")
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(f.cfg.CallTimeoutS)*time.Second)
	defer cancel()
	return gw.Route(ctx, req)
}

// RollingUpdate replaces the named pod's replicas one at a time; the
// call blocks until every replica has cycled. Calls on the same pod
// serialize, calls on different pods proceed independently.
func (f *Flow) RollingUpdate(ctx context.Context, podName string) error {
	p, err := f.Pod(podName)
	if err != nil {
		return err
	}
	return p.RollingUpdate(ctx)
}
