//go:build unix

package runtime

import (
	"testing"

	"github.com/xtaci/ccommon/channel/tcp"
	"github.com/xtaci/ccommon/event"
)

func TestNewBuildsRuntimeWithDefaults(t *testing.T) {
	rt, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close()

	if rt.Options == nil || rt.Log == nil || rt.Metrics == nil {
		t.Fatalf("expected Options/Log/Metrics to be populated")
	}
	if rt.Transport == nil || rt.Conns == nil || rt.Bufs == nil || rt.Streams == nil {
		t.Fatalf("expected pools/transport to be populated")
	}
	if rt.Events == nil {
		t.Fatalf("expected an event base")
	}
	if rt.Reporter != nil {
		t.Fatalf("expected no reporter when MetricsPath is empty")
	}
}

func TestNewHonorsExplicitListenOpts(t *testing.T) {
	rt, err := New(Config{
		ListenOpts: tcp.ListenOptions{Backlog: 7, MaxConns: 3},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close()

	if rt.Transport == nil {
		t.Fatalf("expected a transport")
	}

	listener, err := rt.Transport.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if listener.State != tcp.Listen {
		t.Fatalf("expected listener state Listen, got %v", listener.State)
	}
}

func TestNewWithMetricsPathStartsReporter(t *testing.T) {
	dir := t.TempDir()
	rt, err := New(Config{
		MetricsPath:     dir + "/metrics.csv",
		MetricsSchedule: "@every 1h",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close()

	if rt.Reporter == nil {
		t.Fatalf("expected a reporter when MetricsPath is set")
	}
}

func TestDispatchDefaultsToNoopWithoutPanicking(t *testing.T) {
	rt, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close()

	if n := rt.Events.Wait(1); n < -1 {
		t.Fatalf("unexpected Wait result: %d", n)
	}
}

func TestEventBaseSizeDefaultsWhenZero(t *testing.T) {
	rt, err := New(Config{EventBaseSize: 0})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close()

	_ = event.DefaultSize // sanity: constant is reachable from this package
}
