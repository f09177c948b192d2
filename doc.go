/*
 *
 * Copyright 2026 FlowPod authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

/*

# FlowPod: a replicated, sharded document pipeline runtime

FlowPod builds and operates a topology of processing stages ("pods") forming a
document pipeline: documents enter through a gateway, fan out across replicated
and sharded workers, get processed, fan back in and leave through the gateway.

## Data Model

* Document, id --> text, embedding, tags

* Stage, one logical processing step, replicated R times and sharded P ways

* Pod, the externally addressable unit wrapping one replica group; each replica
wraps one shard group of workers

* Routing unit (head/tail), inserted only when a group has more than one member

* Snapshot, the per-shard persisted form of a pod's records, with a manifest
recording how the logical keyspace was divided


## Architecture

* flow - topology builder, endpoint allocator, gateway, operational facade

* pod - replica groups, shard groups, workers, rolling update orchestrator

* executor - pluggable processing units selected by the stage "uses" reference

* snapshot - deterministic shard partitioner, dump/import codec, ranked merge

The operational surface (index, search, rolling update, dump) is exposed both
as a library facade and over a RESTful admin API.


## Guarantees

* Deterministic port wiring: adjacent units always chain port_out == port_in

* Degree-1 groups add no routing hop: straight-through latency does not depend
on the orchestration layer

* Rolling update replaces replicas one at a time with no externally visible
downtime; the pod endpoint never changes

* Shard partitioning is contiguous and remainder-absorbing, so re-partitioning
to a different shard count is a re-slicing of the same logical order

*/

package flowpod
