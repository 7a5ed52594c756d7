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

//go:build unix

// Command echoserver is a minimal demonstration of the core wired end to
// end: option table -> runtime.Runtime -> event loop -> stream
// read/write, echoing back whatever a client sends.
package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/xtaci/ccommon/channel/tcp"
	"github.com/xtaci/ccommon/clog"
	"github.com/xtaci/ccommon/event"
	"github.com/xtaci/ccommon/option"
	"github.com/xtaci/ccommon/runtime"
	"github.com/xtaci/ccommon/stream"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "echoserver"
	myApp.Usage = "ccommon reactor demo: accept connections and echo back what they send"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "listen, l", Value: "127.0.0.1:7900", Usage: "listen address"},
		cli.StringFlag{Name: "config, c", Usage: "path to a ccommon option-grammar config file"},
		cli.StringFlag{Name: "log", Usage: "log file path; empty means stderr"},
		cli.IntFlag{Name: "loglevel", Value: int(clog.Info), Usage: "0=always ... 7=vverb"},
		cli.StringFlag{Name: "metrics", Usage: "CSV path for periodic metrics; empty disables reporting"},
		cli.StringFlag{Name: "metrics-schedule", Value: "@every 10s", Usage: "cron schedule for metrics snapshots"},

		cli.UintFlag{Name: "tcp-backlog", Value: 128, Usage: "listen() backlog"},
		cli.UintFlag{Name: "tcp-poolsize", Value: 0, Usage: "max concurrent connections, 0=unlimited"},
		cli.UintFlag{Name: "stream-poolsize", Value: 0, Usage: "stream pool capacity, 0=unlimited"},
	}

	myApp.Action = func(c *cli.Context) error {
		opts := option.NewCoreTable()
		opts.LoadDefault()
		if path := c.String("config"); path != "" {
			checkError(opts.LoadFile(path))
		}
		checkError(opts.Set(option.TCPBacklog.Name, strconv.FormatUint(uint64(c.Uint("tcp-backlog")), 10)))
		checkError(opts.Set(option.TCPPoolSize.Name, strconv.FormatUint(uint64(c.Uint("tcp-poolsize")), 10)))
		checkError(opts.Set(option.StreamPoolSize.Name, strconv.FormatUint(uint64(c.Uint("stream-poolsize")), 10)))
		checkError(opts.Set(option.LogLevel.Name, strconv.Itoa(c.Int("loglevel"))))

		color.Cyan("ccommon echoserver %s listening on %s", VERSION, c.String("listen"))

		srv := newEchoServer()
		cfg := runtime.Config{
			Options:         opts,
			LogName:         c.String("log"),
			MetricsPath:     c.String("metrics"),
			MetricsSchedule: c.String("metrics-schedule"),
			EventBaseSize:   event.DefaultSize,
			Dispatch:        srv.dispatch,
		}

		rt, err := runtime.New(cfg)
		checkError(err)
		defer rt.Close()
		srv.rt = rt

		listener, err := rt.Transport.Listen(c.String("listen"))
		checkError(err)
		srv.listener = listener
		checkError(rt.Events.AddRead(listener.Sd, listener))

		rt.Log.Log(clog.Info, "accepting connections")
		runLoop(rt)
		return nil
	}

	checkError(myApp.Run(os.Args))
}

// runLoop drives the reactor until SIGINT/SIGTERM, matching spec.md §5's
// single-threaded cooperative scheduling model: the only blocking call
// is event.Base.Wait.
func runLoop(rt *runtime.Runtime) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	signal.Ignore(syscall.SIGPIPE)

	done := make(chan struct{})
	go func() {
		<-sigCh
		close(done)
	}()

	for {
		select {
		case <-done:
			return
		default:
			rt.Events.Wait(100)
		}
	}
}

// echoServer holds the demo's dispatch state: the listener Conn and the
// Runtime it was built from.
type echoServer struct {
	rt       *runtime.Runtime
	listener *tcp.Conn
}

func newEchoServer() *echoServer { return &echoServer{} }

// dispatch is the reactor's single entry point (spec.md §3 data flow):
// readiness on the listener accepts new connections; readiness on a
// stream drains it and echoes back whatever arrived.
func (s *echoServer) dispatch(data interface{}, mask event.Mask) {
	switch v := data.(type) {
	case *tcp.Conn:
		s.acceptLoop()
	case *stream.Stream:
		s.serviceStream(v, mask)
	}
}

func (s *echoServer) acceptLoop() {
	for {
		conn, ok, err := s.rt.Transport.Accept(s.listener)
		if err != nil {
			s.rt.Log.Log(clog.Warn, "accept error: %v", err)
			return
		}
		if !ok {
			return
		}

		st, err := s.rt.Streams.Borrow(s.rt.Transport, conn, nil)
		if err != nil {
			s.rt.Log.Log(clog.Warn, "stream pool exhausted: %v", err)
			s.rt.Transport.Close(conn)
			continue
		}
		if err := s.rt.Events.Register(conn.Sd, st); err != nil {
			s.rt.Log.Log(clog.Warn, "event register failed: %v", err)
		}
	}
}

func (s *echoServer) serviceStream(st *stream.Stream, mask event.Mask) {
	// The event loop is the single source of readiness notifications
	// (spec.md §4.C): a dispatch callback sets recv_ready/send_ready on
	// the fd the notification names, and Read/Send/Recv clear them again
	// on EAGAIN, short I/O or EOF (spec.md §4.B).
	if mask&event.Read != 0 {
		st.Conn.RecvReady = true
	}
	if mask&event.Write != 0 {
		st.Conn.SendReady = true
	}

	if st.Conn.RecvReady && st.RBuf.WritableSize() > 0 {
		st.Read(st.RBuf.WritableSize())
	}

	// Copy whatever arrived into wbuf for echoing; mbuf leaves cursor
	// compaction to the caller (mbuf.Reset doc comment), so this demo
	// reclaims rbuf once fully drained.
	for st.RBuf.ReadableSize() > 0 && st.WBuf.WritableSize() > 0 {
		n := copy(st.WBuf.WriteSlice(), st.RBuf.ReadSlice())
		st.WBuf.AdvanceWPos(n)
		st.RBuf.AdvanceRPos(n)
	}
	if st.RBuf.ReadableSize() == 0 {
		st.RBuf.Reset()
	}

	if st.Conn.SendReady && st.WBuf.ReadableSize() > 0 {
		st.Write(st.WBuf.ReadableSize())
	}
	if st.WBuf.ReadableSize() == 0 {
		st.WBuf.Reset()
	}

	if st.Conn.State == tcp.EOF {
		s.rt.Events.Deregister(st.Conn.Sd)
		s.rt.Transport.Close(st.Conn)
		st.Destroy(s.rt.Bufs)
	}
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}
