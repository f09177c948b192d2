package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/profile"
	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/common/rpc/auditlog"
	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowpod/flowpod/metrics"
	"github.com/flowpod/flowpod/proto"
	"github.com/flowpod/flowpod/util"
)

const (
	defaultShutdownTimeoutS      = 10
	defaultReadRequestTimeoutS   = 30
	defaultWriteResponseTimeoutS = 60
)

type HttpServer struct {
	httpServer    *http.Server
	auditRecorder auditlog.LogCloser

	*Server
}

func NewHttpServer(server *Server) *HttpServer {
	return &HttpServer{Server: server}
}

func (h *HttpServer) Serve(addr string) {
	lh, auditRecorder, err := auditlog.Open("FLOWPOD", &h.cfg.AuditLog)
	if err != nil {
		log.Fatal("open audit log failed:", err)
	}
	h.auditRecorder = auditRecorder

	ph := profile.NewProfileHandler(addr)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      rpc.MiddlewareHandlerWith(h.newHandler(), lh, ph),
		ReadTimeout:  defaultReadRequestTimeoutS * time.Second,
		WriteTimeout: defaultWriteResponseTimeoutS * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server exits:", err)
		}
	}()
	h.httpServer = httpServer

	log.Info("http server is running at:", addr)
}

func (h *HttpServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeoutS*time.Second)
	defer cancel()

	h.httpServer.Shutdown(ctx)
	if h.auditRecorder != nil {
		h.auditRecorder.Close()
	}
}

func (h *HttpServer) newHandler() *rpc.Router {
	rpc.POST("/index", h.Index, rpc.OptArgsBody())
	rpc.POST("/search", h.Search, rpc.OptArgsBody())
	rpc.POST("/update", h.Update, rpc.OptArgsBody())
	rpc.POST("/dump", h.Dump, rpc.OptArgsBody())
	rpc.GET("/topology", h.Topology)
	rpc.GET("/stats", h.Stats, rpc.OptArgsQuery())
	rpc.GET("/metrics", h.Metrics)

	return rpc.DefaultRouter
}

// requestContext continues the caller's trace when the request carries
// a req-id header, otherwise starts a fresh span.
func requestContext(c *rpc.Context, op string) context.Context {
	if id := c.Request.Header.Get(proto.ReqIdKey); id != "" {
		_, ctx := trace.StartSpanFromContextWithTraceID(c.Request.Context(), op, id)
		return ctx
	}
	_, ctx := trace.StartSpanFromContext(c.Request.Context(), op)
	return ctx
}

type IndexArgs struct {
	Docs []*proto.Document `json:"docs"`
}

func (h *HttpServer) Index(c *rpc.Context) {
	args := new(IndexArgs)
	if err := c.ParseArgs(args); err != nil {
		c.RespondError(err)
		return
	}
	if err := h.flow.Index(requestContext(c, "index"), args.Docs); err != nil {
		c.RespondError(err)
		return
	}
	c.RespondStatus(http.StatusOK)
}

type SearchArgs struct {
	Docs []*proto.Document `json:"docs"`
	TopK int               `json:"top_k"`
}

type SearchResult struct {
	Results []*proto.Matches `json:"results"`
}

func (h *HttpServer) Search(c *rpc.Context) {
	args := new(SearchArgs)
	if err := c.ParseArgs(args); err != nil {
		c.RespondError(err)
		return
	}
	results, err := h.flow.Search(requestContext(c, "search"), args.Docs, args.TopK)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.RespondJSON(&SearchResult{Results: results})
}

type UpdateArgs struct {
	Pod string `json:"pod"`
}

func (h *HttpServer) Update(c *rpc.Context) {
	args := new(UpdateArgs)
	if err := c.ParseArgs(args); err != nil {
		c.RespondError(err)
		return
	}
	if err := h.flow.RollingUpdate(requestContext(c, "update"), args.Pod); err != nil {
		c.RespondError(err)
		return
	}
	c.RespondStatus(http.StatusOK)
}

type DumpArgs struct {
	Pod      string `json:"pod"`
	Path     string `json:"path"`
	Shards   int    `json:"shards"`
	TimeoutS int    `json:"timeout_s"`
}

func (h *HttpServer) Dump(c *rpc.Context) {
	args := new(DumpArgs)
	if err := c.ParseArgs(args); err != nil {
		c.RespondError(err)
		return
	}
	err := h.flow.Dump(requestContext(c, "dump"), args.Pod, args.Path, args.Shards,
		time.Duration(args.TimeoutS)*time.Second)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.RespondStatus(http.StatusOK)
}

type PodStatus struct {
	Name     string         `json:"name"`
	Endpoint proto.Endpoint `json:"endpoint"`
	Replicas int            `json:"replicas"`
	Shards   int            `json:"shards"`
	Units    int            `json:"units"`
	State    string         `json:"state"`
}

type TopologyStatus struct {
	Host    string         `json:"host,omitempty"`
	Gateway proto.Endpoint `json:"gateway"`
	Units   int            `json:"units"`
	Pods    []PodStatus    `json:"pods"`
}

func (h *HttpServer) Topology(c *rpc.Context) {
	host, err := util.GetLocalIp()
	if err != nil {
		log.Warn("resolve local ip failed:", err)
	}
	status := &TopologyStatus{
		Host:    host,
		Gateway: h.flow.GatewayEndpoint(),
		Units:   h.flow.NumUnits(),
	}
	for _, p := range h.flow.Pods() {
		spec := p.Spec()
		status.Pods = append(status.Pods, PodStatus{
			Name:     p.Name(),
			Endpoint: p.Endpoint(),
			Replicas: spec.Replicas,
			Shards:   spec.Shards,
			Units:    p.NumUnits(),
			State:    p.UpdateStateNow().String(),
		})
	}
	c.RespondJSON(status)
}

type StatsArgs struct {
	Pod string `json:"pod"`
}

type ReplicaStats struct {
	Index    int            `json:"index"`
	Endpoint proto.Endpoint `json:"endpoint"`
	Ready    bool           `json:"ready"`
}

type PodStats struct {
	PodStatus
	ReplicaStats []ReplicaStats `json:"replica_stats"`
}

func (h *HttpServer) Stats(c *rpc.Context) {
	args := new(StatsArgs)
	if err := c.ParseArgs(args); err != nil {
		c.RespondError(err)
		return
	}
	p, err := h.flow.Pod(args.Pod)
	if err != nil {
		c.RespondError(err)
		return
	}

	spec := p.Spec()
	stats := &PodStats{PodStatus: PodStatus{
		Name:     p.Name(),
		Endpoint: p.Endpoint(),
		Replicas: spec.Replicas,
		Shards:   spec.Shards,
		Units:    p.NumUnits(),
		State:    p.UpdateStateNow().String(),
	}}
	for _, r := range p.Replicas() {
		stats.ReplicaStats = append(stats.ReplicaStats, ReplicaStats{
			Index:    r.Index(),
			Endpoint: r.Endpoint(),
			Ready:    r.Ready(),
		})
	}
	c.RespondJSON(stats)
}

func (h *HttpServer) Metrics(c *rpc.Context) {
	promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}).ServeHTTP(c.Writer, c.Request)
}
