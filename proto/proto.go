package proto

const (
	ReqIdKey = "req-id"

	// DefaultBasePort is where the endpoint allocator starts handing out
	// fresh ports when the pipeline spec carries no overrides.
	DefaultBasePort = uint32(52000)
)

// StageSpec describes one pipeline stage. A stage is replicated Replicas
// times; each replica runs Shards parallel workers over disjoint data.
type StageSpec struct {
	Name     string `json:"name"`
	Replicas int    `json:"replicas"`
	Shards   int    `json:"shards"`
	// Uses names the registered processing unit the stage's workers
	// delegate to. Empty means passthrough.
	Uses string `json:"uses,omitempty"`

	// Optional external port overrides. Zero means allocate.
	PortIn  uint32 `json:"port_in,omitempty"`
	PortOut uint32 `json:"port_out,omitempty"`
}

// PipelineSpec is the ordered stage list handed to the topology builder.
// It is immutable once a build starts.
type PipelineSpec struct {
	Stages    []StageSpec `json:"stages"`
	BasePort  uint32      `json:"base_port,omitempty"`
	Workspace string      `json:"workspace,omitempty"`
}
