package metric

import "testing"

func TestCounterAndGauge(t *testing.T) {
	r := NewRegistry()

	c := r.Counter("tcp_recv")
	c.Incr(1)
	c.Incr(1)
	if c.Value() != 2 {
		t.Fatalf("expected counter 2, got %d", c.Value())
	}

	g := r.Gauge("tcp_conn_active")
	g.Set(5)
	g.Incr(-2)
	if g.Value() != 3 {
		t.Fatalf("expected gauge 3, got %d", g.Value())
	}

	snap := r.Snapshot()
	if snap["tcp_recv"] != 2 || snap["tcp_conn_active"] != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestNamesSortedAndDeduped(t *testing.T) {
	r := NewRegistry()
	r.Counter("b")
	r.Counter("a")
	r.Counter("a")
	r.Gauge("c")

	names := r.Names()
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Fatalf("expected sorted [a b c], got %v", names)
	}
}
