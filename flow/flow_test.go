package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	apierrors "github.com/flowpod/flowpod/errors"
	"github.com/flowpod/flowpod/executor"
	"github.com/flowpod/flowpod/proto"
)

// replicaProbe answers every query with its own replica index, so tests
// can observe which replica served a request.
const replicaProbe = "replica_probe"

func init() {
	executor.Register(replicaProbe, func(cfg executor.Config) (executor.Executor, error) {
		return &probe{replica: cfg.Replica}, nil
	})
}

// lameShard fails every search on shard 0 and answers with the shard
// index elsewhere, so tests can watch a group degrade one shard.
const lameShard = "lame_shard"

func init() {
	executor.Register(lameShard, func(cfg executor.Config) (executor.Executor, error) {
		return &lame{shard: cfg.Shard}, nil
	})
}

type lame struct {
	shard int
}

func (l *lame) Process(_ context.Context, req *proto.Request) (*proto.Response, error) {
	if req.Type == proto.RequestSearch && l.shard == 0 {
		return nil, errors.New("shard unavailable")
	}
	resp := &proto.Response{ReqID: req.ReqID}
	if req.Type == proto.RequestSearch {
		for range req.Docs {
			resp.Results = append(resp.Results, &proto.Matches{Matches: []*proto.Match{
				{ID: strconv.Itoa(l.shard), Score: float32(l.shard)},
			}})
		}
	}
	return resp, nil
}

func (l *lame) Close() error { return nil }

type probe struct {
	replica int
}

func (p *probe) Process(_ context.Context, req *proto.Request) (*proto.Response, error) {
	resp := &proto.Response{ReqID: req.ReqID}
	if req.Type == proto.RequestSearch {
		for range req.Docs {
			resp.Results = append(resp.Results, &proto.Matches{Matches: []*proto.Match{
				{ID: strconv.Itoa(p.replica), Score: float32(p.replica)},
			}})
		}
	}
	return resp, nil
}

func (p *probe) Close() error { return nil }

func buildFlow(t *testing.T, cfg *Config, stages ...proto.StageSpec) *Flow {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Pipeline.Workspace = t.TempDir()
	f := New(cfg).Add(stages...)
	require.NoError(t, f.Build(context.Background()))
	t.Cleanup(func() { f.Close() })
	return f
}

func indexerStage(name string, replicas, shards int) proto.StageSpec {
	s := stage(name, replicas, shards)
	s.Uses = executor.VectorIndex
	return s
}

func embedding(seed, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32((seed+i)%5) + 1
	}
	return v
}

func docs(n, dim int) []*proto.Document {
	out := make([]*proto.Document, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &proto.Document{
			ID:        fmt.Sprintf("doc-%d", i),
			Text:      fmt.Sprintf("text of doc %d", i),
			Embedding: embedding(i, dim),
		})
	}
	return out
}

func TestBuildValidation(t *testing.T) {
	for _, tc := range []struct {
		stages []proto.StageSpec
		want   error
	}{
		{nil, apierrors.ErrEmptyPipeline},
		{[]proto.StageSpec{stage("", 1, 1)}, apierrors.ErrEmptyStageName},
		{[]proto.StageSpec{stage("a", 1, 1), stage("a", 1, 1)}, apierrors.ErrStageNameConflict},
		{[]proto.StageSpec{stage("a", 0, 1)}, apierrors.ErrInvalidReplicaCount},
		{[]proto.StageSpec{stage("a", 1, 0)}, apierrors.ErrInvalidShardCount},
	} {
		f := New(&Config{}).Add(tc.stages...)
		err := f.Build(context.Background())
		require.ErrorIs(t, err, tc.want)

		// a failed build leaves the topology unreachable
		_, err = f.Search(context.Background(), docs(1, 4), 0)
		require.Error(t, err)
	}
}

func TestBuildWiringFailure(t *testing.T) {
	a := stage("a", 1, 1)
	a.PortOut = 53001
	b := stage("b", 1, 1)
	b.PortIn = 53000
	f := New(&Config{}).Add(a, b)
	require.ErrorIs(t, f.Build(context.Background()), apierrors.ErrWiring)
	require.Empty(t, f.Pods())
}

func TestBuildUnknownExecutor(t *testing.T) {
	s := stage("a", 1, 1)
	s.Uses = "no_such_unit"
	f := New(&Config{}).Add(s)
	require.ErrorIs(t, f.Build(context.Background()), apierrors.ErrUnknownExecutor)
}

func TestBuildTwice(t *testing.T) {
	f := buildFlow(t, nil, stage("a", 1, 1))
	require.Error(t, f.Build(context.Background()))
}

func TestNumUnits(t *testing.T) {
	f := buildFlow(t, nil, stage("a", 3, 4))
	p, err := f.Pod("a")
	require.NoError(t, err)
	// 3 * (4 workers + head + tail) + group head + group tail
	require.Equal(t, 20, p.NumUnits())
	// plus the gateway
	require.Equal(t, 21, f.NumUnits())

	f = buildFlow(t, nil, stage("b", 1, 1))
	p, err = f.Pod("b")
	require.NoError(t, err)
	require.Equal(t, 1, p.NumUnits())
	require.Equal(t, 2, f.NumUnits())
}

func TestDegenerateTopology(t *testing.T) {
	f := buildFlow(t, nil, stage("solo", 1, 1))
	p, err := f.Pod("solo")
	require.NoError(t, err)

	require.Nil(t, p.Head())
	require.Nil(t, p.Tail())
	workers := p.Replicas()[0].ShardGroup().Workers()
	require.Len(t, workers, 1)
	require.Equal(t, p.Endpoint(), workers[0].Endpoint())
}

func TestRoutingUnits(t *testing.T) {
	f := buildFlow(t, nil, stage("a", 2, 3))
	p, err := f.Pod("a")
	require.NoError(t, err)

	head, tail := p.Head(), p.Tail()
	require.NotNil(t, head)
	require.NotNil(t, tail)
	require.Equal(t, p.Endpoint().PortIn, head.Endpoint().PortIn)
	require.Equal(t, p.Endpoint().PortOut, tail.Endpoint().PortOut)
	require.Len(t, head.Members(), 2)

	for _, r := range p.Replicas() {
		sg := r.ShardGroup()
		require.NotNil(t, sg.Head())
		require.NotNil(t, sg.Tail())
		require.Len(t, sg.Head().Members(), 3)
	}
}

func TestIndexSearch(t *testing.T) {
	f := buildFlow(t, nil, indexerStage("indexer", 2, 3))

	corpus := docs(10, 4)
	require.NoError(t, f.Index(context.Background(), corpus))

	query := &proto.Document{ID: "q", Embedding: corpus[3].Embedding}
	results, err := f.Search(context.Background(), []*proto.Document{query}, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)

	matches := results[0].Matches
	require.Len(t, matches, 3)
	require.Equal(t, corpus[3].ID, matches[0].ID)
	require.InDelta(t, 1.0, float64(matches[0].Score), 1e-6)

	// ranked, and no duplicate ids across shards
	seen := make(map[string]struct{})
	for i, m := range matches {
		if i > 0 {
			require.LessOrEqual(t, m.Score, matches[i-1].Score)
		}
		_, dup := seen[m.ID]
		require.False(t, dup)
		seen[m.ID] = struct{}{}
	}
}

func TestSearchMergeLimit(t *testing.T) {
	f := buildFlow(t, &Config{MergeLimit: 2}, indexerStage("indexer", 1, 2))
	require.NoError(t, f.Index(context.Background(), docs(6, 4)))

	// no request top-k: the configured merge limit applies
	results, err := f.Search(context.Background(), docs(1, 4), 0)
	require.NoError(t, err)
	require.Len(t, results[0].Matches, 2)

	// request top-k wins over the configured limit
	results, err = f.Search(context.Background(), docs(1, 4), 4)
	require.NoError(t, err)
	require.Len(t, results[0].Matches, 4)
}

func TestSearchShardFailure(t *testing.T) {
	s := stage("degraded", 1, 2)
	s.Uses = lameShard
	f := buildFlow(t, nil, s)

	// shard 0 errors on every search; the call still answers with the
	// healthy shard's matches
	results, err := f.Search(context.Background(), docs(1, 4), 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Matches, 1)
	require.Equal(t, "1", results[0].Matches[0].ID)
}

func TestSearchDistribution(t *testing.T) {
	s := stage("probe", 3, 1)
	s.Uses = replicaProbe
	f := buildFlow(t, nil, s)

	served := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		results, err := f.Search(context.Background(), docs(1, 4), 0)
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Len(t, results[0].Matches, 1)
		served[results[0].Matches[0].ID] = struct{}{}
	}
	// every replica took a share of the traffic
	require.Len(t, served, 3)
}

func TestPodLookup(t *testing.T) {
	f := buildFlow(t, nil, stage("a", 1, 1), stage("b", 2, 1))
	p, err := f.Pod("b")
	require.NoError(t, err)
	require.Equal(t, "b", p.Name())

	_, err = f.Pod("missing")
	require.ErrorIs(t, err, apierrors.ErrPodDoesNotExist)

	pods := f.Pods()
	require.Len(t, pods, 2)
	require.Equal(t, "a", pods[0].Name())
	require.Equal(t, "b", pods[1].Name())
}
