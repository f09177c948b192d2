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

// Package executor holds the registry of processing units a stage can
// reference through its "uses" field. The orchestration core never
// inspects a unit's internals, it only calls through Executor.
package executor

import (
	"context"
	"sync"

	apierrors "github.com/flowpod/flowpod/errors"
	"github.com/flowpod/flowpod/proto"
)

// Executor is the narrow interface every processing unit implements.
type Executor interface {
	Process(ctx context.Context, req *proto.Request) (*proto.Response, error)
	Close() error
}

// FullScanner is implemented by executors that can hand out their whole
// record set in insertion order, e.g. for snapshot dumps.
type FullScanner interface {
	FullScan(ctx context.Context) ([]proto.Record, error)
}

// Config is what a worker hands to the factory of its processing unit.
type Config struct {
	Stage     string
	Replica   int
	Shard     int
	Workspace string
}

type Factory func(cfg Config) (Executor, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a processing unit available under the given name.
// Registering the same name twice overwrites the previous factory.
func Register(name string, f Factory) {
	registryMu.Lock()
	registry[name] = f
	registryMu.Unlock()
}

// New instantiates the processing unit registered under name. The empty
// name yields a passthrough unit.
func New(name string, cfg Config) (Executor, error) {
	if name == "" {
		name = Passthrough
	}
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, apierrors.ErrUnknownExecutor
	}
	return f(cfg)
}
