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

package errors

import (
	"errors"
	"fmt"
)

// Build-time configuration failures. Nothing is allocated or left
// half-built once one of these is returned.
var (
	ErrInvalidReplicaCount = errors.New("stage replica count must be >= 1")
	ErrInvalidShardCount   = errors.New("stage shard count must be >= 1")
	ErrStageNameConflict   = errors.New("stage name already used")
	ErrEmptyStageName      = errors.New("stage name must not be empty")
	ErrEmptyPipeline       = errors.New("pipeline spec has no stages")
	ErrPortConflict        = errors.New("port already allocated")
	ErrWiring              = errors.New("cannot satisfy chained port wiring")

	ErrPodDoesNotExist = errors.New("pod does not exist")

	ErrUnknownExecutor = errors.New("unknown executor reference")

	ErrNoAvailableReplica = errors.New("no available replica")
	ErrReplicaNotReady    = errors.New("replica not ready within timeout")
	ErrShardTimeout       = errors.New("shard did not respond within deadline")

	ErrSnapshotDoesNotExist = errors.New("snapshot does not exist")
)

// RollingUpdateError is returned when one replica fails to become ready
// within its timeout during a rolling update. The pod keeps serving with
// the remaining replicas.
type RollingUpdateError struct {
	Pod     string
	Replica int
	Err     error
}

func (e *RollingUpdateError) Error() string {
	return fmt.Sprintf("rolling update of pod %s failed at replica %d: %v", e.Pod, e.Replica, e.Err)
}

func (e *RollingUpdateError) Unwrap() error { return e.Err }

// PartitionMismatchError is returned when an import asks for a shard
// index the snapshot's manifest does not cover.
type PartitionMismatchError struct {
	ShardCount int
	Shard      int
}

func (e *PartitionMismatchError) Error() string {
	return fmt.Sprintf("snapshot has %d shards, shard %d out of range", e.ShardCount, e.Shard)
}

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }
