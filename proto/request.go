package proto

type RequestType uint8

const (
	RequestIndex RequestType = iota + 1
	RequestSearch
)

func (t RequestType) String() string {
	switch t {
	case RequestIndex:
		return "index"
	case RequestSearch:
		return "search"
	default:
		return "unknown"
	}
}

// Request travels the pipeline end to end. For search requests every
// document in Docs is an independent query.
type Request struct {
	ReqID string      `json:"req_id"`
	Type  RequestType `json:"type"`
	Docs  []*Document `json:"docs"`
	TopK  int         `json:"top_k,omitempty"`
}

// Response carries one ranked match list per query document, aligned
// with Request.Docs. Index responses have empty results.
type Response struct {
	ReqID   string     `json:"req_id"`
	Results []*Matches `json:"results,omitempty"`
}

// Matches is the ranked answer list for a single query document.
type Matches struct {
	Matches []*Match `json:"matches"`
}
