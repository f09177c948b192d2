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

// Package client is the Go client of the flowpod HTTP API.
package client

import (
	"context"
	"errors"

	"github.com/cubefs/cubefs/blobstore/common/rpc"

	"github.com/flowpod/flowpod/proto"
	"github.com/flowpod/flowpod/server"
)

type Config struct {
	Host string `json:"host"`

	Tc rpc.TransportConfig `json:"transport"`
}

type Client struct {
	host string
	cli  rpc.Client
}

func New(cfg *Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("host can't be empty")
	}
	return &Client{
		host: cfg.Host,
		cli:  rpc.NewClient(&rpc.Config{Tc: cfg.Tc}),
	}, nil
}

// Index feeds documents into the pipeline.
func (c *Client) Index(ctx context.Context, docs []*proto.Document) error {
	args := &server.IndexArgs{Docs: docs}
	return c.cli.PostWith(ctx, c.host+"/index", nil, args)
}

// Search runs every document as a query and returns one ranked match
// list per document.
func (c *Client) Search(ctx context.Context, docs []*proto.Document, topK int) ([]*proto.Matches, error) {
	args := &server.SearchArgs{Docs: docs, TopK: topK}
	result := new(server.SearchResult)
	if err := c.cli.PostWith(ctx, c.host+"/search", result, args); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// Update triggers a rolling update of the named pod and blocks until it
// finishes.
func (c *Client) Update(ctx context.Context, pod string) error {
	args := &server.UpdateArgs{Pod: pod}
	return c.cli.PostWith(ctx, c.host+"/update", nil, args)
}

// Dump persists the named pod's records as a partitioned snapshot on
// the server side.
func (c *Client) Dump(ctx context.Context, pod, path string, shards, timeoutS int) error {
	args := &server.DumpArgs{Pod: pod, Path: path, Shards: shards, TimeoutS: timeoutS}
	return c.cli.PostWith(ctx, c.host+"/dump", nil, args)
}

// Topology reports the built pipeline: gateway endpoint, unit count and
// the per-pod layout.
func (c *Client) Topology(ctx context.Context) (*server.TopologyStatus, error) {
	status := new(server.TopologyStatus)
	if err := c.cli.GetWith(ctx, c.host+"/topology", status); err != nil {
		return nil, err
	}
	return status, nil
}

func (c *Client) Close() error {
	c.cli.Close()
	return nil
}
