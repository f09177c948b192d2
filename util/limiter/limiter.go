// Copyright 2026 The FlowPod Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package limiter throttles snapshot IO so a dump or import never
// starves live traffic of disk bandwidth.
package limiter

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

const burstFactor = 2

type (
	Limiter interface {
		Reader(ctx context.Context, r io.Reader) io.Reader
		Writer(ctx context.Context, w io.Writer) io.Writer
	}
	LimitConfig struct {
		ReadMBPS  int `json:"read_mbps"`
		WriteMBPS int `json:"write_mbps"`
	}

	limiter struct {
		rateReader *rate.Limiter
		rateWriter *rate.Limiter
	}
	reader struct {
		ctx        context.Context
		rate       *rate.Limiter
		underlying io.Reader
	}
	writer struct {
		ctx        context.Context
		rate       *rate.Limiter
		underlying io.Writer
	}
)

// NewLimiter builds an IO limiter from MB/s budgets. A zero budget on
// either side leaves that side unlimited.
func NewLimiter(cfg LimitConfig) Limiter {
	l := &limiter{}
	if cfg.ReadMBPS > 0 {
		bps := cfg.ReadMBPS << 20
		l.rateReader = rate.NewLimiter(rate.Limit(bps), burstFactor*bps)
	}
	if cfg.WriteMBPS > 0 {
		bps := cfg.WriteMBPS << 20
		l.rateWriter = rate.NewLimiter(rate.Limit(bps), burstFactor*bps)
	}
	return l
}

func (l *limiter) Reader(ctx context.Context, r io.Reader) io.Reader {
	if l.rateReader == nil {
		return r
	}
	return &reader{ctx: ctx, rate: l.rateReader, underlying: r}
}

func (l *limiter) Writer(ctx context.Context, w io.Writer) io.Writer {
	if l.rateWriter == nil {
		return w
	}
	return &writer{ctx: ctx, rate: l.rateWriter, underlying: w}
}

func (r *reader) Read(p []byte) (n int, err error) {
	if err = waitN(r.ctx, r.rate, len(p)); err != nil {
		return 0, err
	}
	return r.underlying.Read(p)
}

func (w *writer) Write(p []byte) (n int, err error) {
	if err = waitN(w.ctx, w.rate, len(p)); err != nil {
		return 0, err
	}
	return w.underlying.Write(p)
}

// waitN splits oversized requests so a chunk larger than the burst can
// still pass, just slowly.
func waitN(ctx context.Context, l *rate.Limiter, n int) error {
	burst := l.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := l.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
