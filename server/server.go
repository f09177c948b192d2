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

package server

import (
	"context"

	"github.com/cubefs/cubefs/blobstore/common/rpc/auditlog"

	"github.com/flowpod/flowpod/flow"
)

type Config struct {
	FlowConfig flow.Config     `json:"flow_config"`
	AuditLog   auditlog.Config `json:"audit_log"`
}

// Server owns the built flow and backs the HTTP operational surface.
type Server struct {
	cfg  *Config
	flow *flow.Flow
}

func NewServer(cfg *Config) *Server {
	return &Server{
		cfg:  cfg,
		flow: flow.New(&cfg.FlowConfig),
	}
}

func (s *Server) Start(ctx context.Context) error {
	return s.flow.Build(ctx)
}

func (s *Server) Flow() *flow.Flow { return s.flow }

func (s *Server) Close() {
	s.flow.Close()
}
