package snapshot

import (
	"sort"

	"github.com/flowpod/flowpod/proto"
)

// Merger folds locally ranked per-shard match lists into one globally
// ranked list. Ties are broken by shard order, then local order; the
// stable sort over the shard-ordered concatenation gives exactly that.
//
// Whether the merged list is bounded to the caller's top-k is an
// explicit configuration choice: a request's TopK wins when set,
// otherwise the merger's own limit applies, and zero means the whole
// union is returned.
type Merger struct {
	limit int
}

func NewMerger(limit int) *Merger {
	return &Merger{limit: limit}
}

// Merge expects lists in shard order; nil lists (failed shards) are
// skipped. Shards fed by broadcast ingestion overlap, so matches are
// deduplicated by id, keeping the best-ranked occurrence.
func (m *Merger) Merge(lists [][]*proto.Match, topK int) []*proto.Match {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	flat := make([]*proto.Match, 0, total)
	for _, l := range lists {
		flat = append(flat, l...)
	}
	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].Score > flat[j].Score
	})

	seen := make(map[string]struct{}, len(flat))
	deduped := flat[:0]
	for _, match := range flat {
		if _, ok := seen[match.ID]; ok {
			continue
		}
		seen[match.ID] = struct{}{}
		deduped = append(deduped, match)
	}
	flat = deduped

	limit := topK
	if limit == 0 {
		limit = m.limit
	}
	if limit > 0 && len(flat) > limit {
		flat = flat[:limit]
	}
	return flat
}

// Reduce implements the shard group's aggregation collaborator: one
// merged match list per query document. resps follow shard order with
// nil entries for shards that failed the call.
func (m *Merger) Reduce(req *proto.Request, resps []*proto.Response) (*proto.Response, error) {
	out := &proto.Response{
		ReqID:   req.ReqID,
		Results: make([]*proto.Matches, 0, len(req.Docs)),
	}
	for d := range req.Docs {
		lists := make([][]*proto.Match, 0, len(resps))
		for _, resp := range resps {
			if resp == nil || d >= len(resp.Results) {
				lists = append(lists, nil)
				continue
			}
			lists = append(lists, resp.Results[d].Matches)
		}
		out.Results = append(out.Results, &proto.Matches{Matches: m.Merge(lists, req.TopK)})
	}
	return out, nil
}
