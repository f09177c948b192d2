package pod

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	apierrors "github.com/flowpod/flowpod/errors"
	"github.com/flowpod/flowpod/executor"
	"github.com/flowpod/flowpod/proto"
)

const defaultInboxDepth = 64

var errWorkerStopped = errors.New("worker stopped")

type callResult struct {
	resp *proto.Response
	err  error
}

type call struct {
	ctx   context.Context
	req   *proto.Request
	respc chan callResult
}

// Worker is a leaf processing unit. It runs its own goroutine and is
// reached through asynchronous message passing over its inbox; callers
// never share memory with it.
type Worker struct {
	stage    string
	replica  int
	shard    int
	endpoint proto.Endpoint

	exec  executor.Executor
	inbox chan *call
	done  chan struct{}
	stop  sync.Once
	ready uint32
}

func newWorker(spec proto.StageSpec, replica, shard int, endpoint proto.Endpoint, workspace string) (*Worker, error) {
	exec, err := executor.New(spec.Uses, executor.Config{
		Stage:     spec.Name,
		Replica:   replica,
		Shard:     shard,
		Workspace: workspace,
	})
	if err != nil {
		return nil, err
	}
	return &Worker{
		stage:    spec.Name,
		replica:  replica,
		shard:    shard,
		endpoint: endpoint,
		exec:     exec,
		inbox:    make(chan *call, defaultInboxDepth),
		done:     make(chan struct{}),
	}, nil
}

func (w *Worker) Start() {
	go w.run()
	atomic.StoreUint32(&w.ready, 1)
}

func (w *Worker) Stop() {
	w.stop.Do(func() {
		atomic.StoreUint32(&w.ready, 0)
		close(w.done)
		w.exec.Close()
	})
}

func (w *Worker) Ready() bool {
	return atomic.LoadUint32(&w.ready) == 1
}

func (w *Worker) Endpoint() proto.Endpoint { return w.endpoint }

// Process hands the request to the worker goroutine and waits for the
// answer, bounded by the caller's context.
func (w *Worker) Process(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	c := &call{ctx: ctx, req: req, respc: make(chan callResult, 1)}
	select {
	case w.inbox <- c:
	case <-w.done:
		return nil, errWorkerStopped
	case <-ctx.Done():
		return nil, callError(ctx)
	}

	select {
	case r := <-c.respc:
		return r.resp, r.err
	case <-w.done:
		return nil, errWorkerStopped
	case <-ctx.Done():
		return nil, callError(ctx)
	}
}

// callError maps an expired call deadline to the shard timeout error;
// caller cancellation is passed through untouched.
func callError(ctx context.Context) error {
	if err := ctx.Err(); err != context.DeadlineExceeded {
		return err
	}
	return apierrors.ErrShardTimeout
}

// FullScan bypasses the inbox so a long scan never blocks live traffic
// on this worker.
func (w *Worker) FullScan(ctx context.Context) ([]proto.Record, error) {
	scanner, ok := w.exec.(executor.FullScanner)
	if !ok {
		return nil, nil
	}
	return scanner.FullScan(ctx)
}

func (w *Worker) run() {
	for {
		select {
		case c := <-w.inbox:
			resp, err := w.exec.Process(c.ctx, c.req)
			select {
			case c.respc <- callResult{resp: resp, err: err}:
			case <-c.ctx.Done():
			}
		case <-w.done:
			return
		}
	}
}
