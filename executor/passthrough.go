package executor

import (
	"context"

	"github.com/flowpod/flowpod/proto"
)

// Passthrough is the default unit for stages with no "uses" reference.
const Passthrough = "passthrough"

func init() {
	Register(Passthrough, func(cfg Config) (Executor, error) {
		return passthrough{}, nil
	})
}

type passthrough struct{}

func (passthrough) Process(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	return &proto.Response{ReqID: req.ReqID}, nil
}

func (passthrough) Close() error { return nil }
