// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package runtime bundles one of everything the core needs into a single
// explicit record (spec.md §9's design note: replace ccommon's
// process-wide globals with an explicit collaborator threaded through
// calls). A process may run several Runtimes concurrently as long as
// each owns its own pools and event.Base -- pools are never shared
// across Runtimes (spec.md §5).
//go:build unix

package runtime

import (
	"github.com/xtaci/ccommon/channel/tcp"
	"github.com/xtaci/ccommon/clog"
	"github.com/xtaci/ccommon/event"
	"github.com/xtaci/ccommon/metric"
	"github.com/xtaci/ccommon/option"
	"github.com/xtaci/ccommon/stream"
)

// Runtime is one single-threaded cooperative reactor's worth of state:
// options, log, metrics (+ optional reporter), connection pool, stream
// pool and event base (spec.md §9).
type Runtime struct {
	Options   *option.Table
	Log       *clog.Logger
	Metrics   *metric.Registry
	Reporter  *metric.Reporter
	Transport *tcp.Transport
	Conns     *tcp.ConnPool
	Bufs      *stream.BufPool
	Streams   *stream.Pool
	Events    *event.Base
}

// Config controls how New constructs a Runtime. Zero values fall back to
// the option table's declared defaults.
type Config struct {
	Options *option.Table

	LogName     string
	RotateBytes int64

	MetricsPath     string // CSV path; empty disables periodic reporting
	MetricsSchedule string // cron schedule, e.g. "@every 10s"

	EventBaseSize int

	ListenOpts tcp.ListenOptions

	// Dispatch receives the translated event.Mask for the Conn/Stream
	// carried as the readiness record's opaque data. It is the
	// reactor's single entry point, matching spec.md §3 "data flow".
	Dispatch func(data interface{}, mask event.Mask)
}

// New assembles a Runtime from cfg (tcp_setup + stream_pool_create +
// event_base_create, wired together). If cfg.Options is nil, a
// NewCoreTable() with registered defaults is used.
func New(cfg Config) (*Runtime, error) {
	opts := cfg.Options
	if opts == nil {
		opts = option.NewCoreTable()
		opts.LoadDefault()
	}

	level := clog.Level(opts.Uint(option.LogLevel.Name))
	logger, err := clog.New(level, cfg.LogName, cfg.RotateBytes)
	if err != nil {
		return nil, err
	}

	reg := metric.NewRegistry()

	backlog := int(opts.Uint(option.TCPBacklog.Name))
	listenOpts := cfg.ListenOpts
	if listenOpts.Backlog <= 0 {
		listenOpts.Backlog = backlog
	}
	if listenOpts.MaxConns <= 0 {
		listenOpts.MaxConns = int(opts.Uint(option.TCPPoolSize.Name))
	}
	transport := tcp.Setup(listenOpts, reg)

	connPoolMax := uint32(opts.Uint(option.TCPPoolSize.Name))
	conns := tcp.NewConnPool(connPoolMax)

	streamPoolMax := uint32(opts.Uint(option.StreamPoolSize.Name))
	bufs := stream.NewBufPool(0, event.DefaultSize)
	streams := stream.NewPool(streamPoolMax, bufs)

	dispatch := cfg.Dispatch
	if dispatch == nil {
		dispatch = func(interface{}, event.Mask) {}
	}
	base, err := event.Create(cfg.EventBaseSize, event.Callback(dispatch))
	if err != nil {
		logger.Close()
		return nil, err
	}

	var reporter *metric.Reporter
	if cfg.MetricsPath != "" {
		reporter = &metric.Reporter{
			Registry: reg,
			Path:     cfg.MetricsPath,
			Schedule: cfg.MetricsSchedule,
		}
		if err := reporter.Start(); err != nil {
			base.Destroy()
			logger.Close()
			return nil, err
		}
	}

	return &Runtime{
		Options:   opts,
		Log:       logger,
		Metrics:   reg,
		Reporter:  reporter,
		Transport: transport,
		Conns:     conns,
		Bufs:      bufs,
		Streams:   streams,
		Events:    base,
	}, nil
}

// Close tears down every owned collaborator in reverse dependency order.
func (r *Runtime) Close() error {
	if r.Reporter != nil {
		r.Reporter.Stop()
	}
	r.Events.Destroy()
	r.Streams.Destroy()
	r.Bufs.Destroy()
	r.Conns.Destroy()
	err := r.Transport.Teardown()
	if logErr := r.Log.Close(); logErr != nil && err == nil {
		err = logErr
	}
	return err
}
