package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/flowpod/flowpod/proto"
)

// VectorIndex is an in-memory vector indexer with a full-scan surface,
// the reference collaborator for index/search/dump traffic.
const VectorIndex = "vector_index"

func init() {
	Register(VectorIndex, NewVectorIndexer)
}

type vectorIndexer struct {
	cfg Config

	lock    sync.RWMutex
	seq     uint64
	records []proto.Record
	byID    map[string]int
}

func NewVectorIndexer(cfg Config) (Executor, error) {
	if cfg.Workspace != "" {
		dir := filepath.Join(cfg.Workspace, fmt.Sprintf("%s-%d-%d", cfg.Stage, cfg.Replica, cfg.Shard))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &vectorIndexer{
		cfg:  cfg,
		byID: make(map[string]int),
	}, nil
}

func (v *vectorIndexer) Process(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	switch req.Type {
	case proto.RequestIndex:
		return v.index(ctx, req)
	case proto.RequestSearch:
		return v.search(ctx, req)
	default:
		return &proto.Response{ReqID: req.ReqID}, nil
	}
}

func (v *vectorIndexer) index(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	for _, doc := range req.Docs {
		meta, err := EncodeMeta(doc)
		if err != nil {
			return nil, err
		}
		vec := make([]float32, len(doc.Embedding))
		copy(vec, doc.Embedding)
		rec := proto.Record{
			Seq:    v.seq,
			ID:     doc.ID,
			Vector: vec,
			Meta:   meta,
		}
		if i, ok := v.byID[doc.ID]; ok {
			rec.Seq = v.records[i].Seq
			v.records[i] = rec
			continue
		}
		v.byID[doc.ID] = len(v.records)
		v.records = append(v.records, rec)
		v.seq++
	}
	return &proto.Response{ReqID: req.ReqID}, nil
}

func (v *vectorIndexer) search(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	span := trace.SpanFromContextSafe(ctx)

	v.lock.RLock()
	defer v.lock.RUnlock()

	resp := &proto.Response{ReqID: req.ReqID, Results: make([]*proto.Matches, 0, len(req.Docs))}
	for _, doc := range req.Docs {
		matches := make([]*proto.Match, 0, len(v.records))
		for i := range v.records {
			rec := &v.records[i]
			m := &proto.Match{
				ID:        rec.ID,
				Score:     cosine(doc.Embedding, rec.Vector),
				Embedding: rec.Vector,
			}
			if d, err := DecodeMeta(rec.Meta); err == nil {
				m.Text = d.Text
				m.Tags = d.Tags
			} else {
				span.Warnf("decode meta of record %s failed: %s", rec.ID, err)
			}
			matches = append(matches, m)
		}
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Score > matches[j].Score
		})
		if req.TopK > 0 && len(matches) > req.TopK {
			matches = matches[:req.TopK]
		}
		resp.Results = append(resp.Results, &proto.Matches{Matches: matches})
	}
	return resp, nil
}

// FullScan returns every record in insertion order.
func (v *vectorIndexer) FullScan(ctx context.Context) ([]proto.Record, error) {
	v.lock.RLock()
	defer v.lock.RUnlock()

	out := make([]proto.Record, len(v.records))
	copy(out, v.records)
	return out, nil
}

func (v *vectorIndexer) Close() error { return nil }

// EncodeMeta serializes a document with its embedding stripped, the form
// persisted into snapshot meta artifacts.
func EncodeMeta(doc *proto.Document) ([]byte, error) {
	stripped := *doc
	stripped.Embedding = nil
	return json.Marshal(&stripped)
}

func DecodeMeta(data []byte) (*proto.Document, error) {
	doc := new(proto.Document)
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
