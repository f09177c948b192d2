package pod

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowpod/flowpod/proto"
)

func TestCollectWriteStoppedWorkers(t *testing.T) {
	g := &ShardGroup{stage: "s", workers: make([]*Worker, 2)}
	req := &proto.Request{ReqID: "r", Type: proto.RequestIndex}
	errOther := errors.New("executor failed")

	// every worker stopped
	_, err := g.collectWrite(context.Background(), req, make([]*proto.Response, 2),
		[]error{errWorkerStopped, errWorkerStopped})
	require.Equal(t, errWorkerStopped, err)

	// only one worker stopped while the replica tears down: still
	// retriable, the surviving shard's state is discarded with the
	// replica anyway
	_, err = g.collectWrite(context.Background(), req, make([]*proto.Response, 2),
		[]error{errWorkerStopped, nil})
	require.Equal(t, errWorkerStopped, err)

	_, err = g.collectWrite(context.Background(), req, make([]*proto.Response, 2),
		[]error{errOther, errWorkerStopped})
	require.Equal(t, errWorkerStopped, err)

	// a plain executor failure stays a hard error
	_, err = g.collectWrite(context.Background(), req, make([]*proto.Response, 2),
		[]error{nil, errOther})
	require.Error(t, err)
	require.NotEqual(t, errWorkerStopped, err)

	// no failures at all
	resp, err := g.collectWrite(context.Background(), req, make([]*proto.Response, 2),
		[]error{nil, nil})
	require.NoError(t, err)
	require.Equal(t, "r", resp.ReqID)
}
