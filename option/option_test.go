package option

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultThenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ccommon.conf")
	body := "tcp_backlog: 256\nstream_poolsize: 16\nlog_level: 5\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	tb := NewCoreTable()
	tb.LoadDefault()
	if err := tb.LoadFile(path); err != nil {
		t.Fatal(err)
	}

	if tb.Uint("tcp_backlog") != 256 {
		t.Fatalf("tcp_backlog: want 256, got %d", tb.Uint("tcp_backlog"))
	}
	if tb.Uint("stream_poolsize") != 16 {
		t.Fatalf("stream_poolsize: want 16, got %d", tb.Uint("stream_poolsize"))
	}
	if tb.Uint("log_level") != 5 {
		t.Fatalf("log_level: want 5, got %d", tb.Uint("log_level"))
	}
	if tb.Uint("tcp_poolsize") != 0 {
		t.Fatalf("tcp_poolsize: want default 0, got %d", tb.Uint("tcp_poolsize"))
	}
}

func TestCommentsAndBlankLinesIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ccommon.conf")
	body := "# a comment\n\n   \ntcp_backlog: 64\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	tb := NewCoreTable()
	if err := tb.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if tb.Uint("tcp_backlog") != 64 {
		t.Fatalf("want 64, got %d", tb.Uint("tcp_backlog"))
	}
}

func TestParseLineRejectsBadNameAndOverlongValue(t *testing.T) {
	if _, _, err := ParseLine("bad name!: 1"); err == nil {
		t.Fatal("expected error for invalid name charset")
	}

	longName := "this_name_is_definitely_longer_than_31_chars: 1"
	if _, _, err := ParseLine(longName); err == nil {
		t.Fatal("expected error for name > 31 chars")
	}

	overlong := make([]byte, 260)
	for i := range overlong {
		overlong[i] = 'a'
	}
	if _, _, err := ParseLine("log_name: " + string(overlong)); err == nil {
		t.Fatal("expected error for value > 255 bytes")
	}
}

func TestSetTypeValidation(t *testing.T) {
	tb := NewCoreTable()

	if err := tb.Set("tcp_backlog", "not-a-number"); err == nil {
		t.Fatal("expected error assigning non-uint to a Uint option")
	}

	if err := tb.Set("tcp_backlog", "0x80"); err != nil {
		t.Fatal(err)
	}
	if tb.Uint("tcp_backlog") != 128 {
		t.Fatalf("expected hex 0x80 to parse as 128, got %d", tb.Uint("tcp_backlog"))
	}
}

func TestPrintRoundTrip(t *testing.T) {
	tb := NewCoreTable()
	if err := tb.Set("log_name", "/var/log/ccommon.log"); err != nil {
		t.Fatal(err)
	}
	v, err := tb.Print("log_name")
	if err != nil {
		t.Fatal(err)
	}
	if v != "/var/log/ccommon.log" {
		t.Fatalf("round trip mismatch: got %q", v)
	}
}
