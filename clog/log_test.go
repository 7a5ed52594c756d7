package clog

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelFilteringAndAlwaysBypass(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	l, err := New(Warn, path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	l.Log(Info, "should be filtered out")
	l.Log(Warn, "should appear at threshold")
	l.Log(Always, "always appears regardless of level")

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "WARN") {
		t.Fatalf("expected WARN line first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "ALWAYS") {
		t.Fatalf("expected ALWAYS line second, got %q", lines[1])
	}
}

func TestLevelUpDown(t *testing.T) {
	l := &Logger{level: Info}
	l.LevelUp()
	if l.level != Debug {
		t.Fatalf("expected Debug after LevelUp from Info, got %v", l.level)
	}
	l.LevelDown()
	l.LevelDown()
	if l.level != Warn {
		t.Fatalf("expected Warn after two LevelDown, got %v", l.level)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}
