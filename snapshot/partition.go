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

// Package snapshot partitions a pod's record stream across shards,
// persists and reloads the per-shard artifacts, and merges per-shard
// query results back into one ranked list.
package snapshot

// Range returns the half-open record range [start, end) that shard s of
// shards owns in a stream of n records. Ranges are contiguous in the
// stream's logical order; the last shard absorbs the n mod shards
// remainder. The deliberate cost is uneven shard sizes; the gain is
// that re-partitioning to a different shard count is a plain re-slicing
// of the same order.
func Range(n, shards, s int) (start, end int) {
	size := n / shards
	start = s * size
	end = start + size
	if s == shards-1 {
		end = n
	}
	return start, end
}

// Ranges returns every shard's range in shard order. Concatenating them
// reproduces [0, n) exactly.
func Ranges(n, shards int) []RangeSpec {
	out := make([]RangeSpec, 0, shards)
	for s := 0; s < shards; s++ {
		start, end := Range(n, shards, s)
		out = append(out, RangeSpec{Start: start, End: end})
	}
	return out
}
