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

package proto

// Document is the unit of traffic flowing through a pipeline.
type Document struct {
	ID        string            `json:"id"`
	Text      string            `json:"text,omitempty"`
	Embedding []float32         `json:"embedding,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Match is one ranked answer to a query document.
type Match struct {
	ID        string            `json:"id"`
	Score     float32           `json:"score"`
	Text      string            `json:"text,omitempty"`
	Embedding []float32         `json:"embedding,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Record is the persisted form of an indexed document. Seq is the
// insertion sequence, Meta the encoded document without its embedding.
type Record struct {
	Seq    uint64
	ID     string
	Vector []float32
	Meta   []byte
}

// Endpoint is the pair of addresses a routable unit exposes.
type Endpoint struct {
	PortIn  uint32 `json:"port_in"`
	PortOut uint32 `json:"port_out"`
}
