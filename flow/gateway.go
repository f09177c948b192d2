package flow

import (
	"context"

	"github.com/cubefs/cubefs/blobstore/util/errors"

	"github.com/flowpod/flowpod/metrics"
	"github.com/flowpod/flowpod/pod"
	"github.com/flowpod/flowpod/proto"
)

// Gateway is the pseudo-pod at both ends of the pipeline: its port_out
// feeds the first pod, the last pod's port_out feeds its port_in.
type Gateway struct {
	endpoint proto.Endpoint
	pods     []*pod.Pod
}

func newGateway(endpoint proto.Endpoint, pods []*pod.Pod) *Gateway {
	return &Gateway{endpoint: endpoint, pods: pods}
}

func (g *Gateway) Endpoint() proto.Endpoint { return g.endpoint }

// Route walks the request through every pod in pipeline order and
// returns the last response that carried results, so passthrough
// stages downstream of an indexer do not swallow its matches.
func (g *Gateway) Route(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	metrics.GatewayRequests.WithLabelValues(req.Type.String()).Inc()

	final := &proto.Response{ReqID: req.ReqID}
	for _, p := range g.pods {
		resp, err := p.Process(ctx, req)
		if err != nil {
			return nil, errors.Info(err, "pod "+p.Name())
		}
		if resp != nil && len(resp.Results) > 0 {
			final = resp
		}
	}
	return final, nil
}
