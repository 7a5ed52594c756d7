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

// Package option implements the ccommon config-file grammar (spec.md §6):
// one "name: value" pair per line, '#' comments, blank lines ignored, a
// restricted name charset, and three value types (bool/uint/str). No
// ecosystem config library (YAML/TOML/JSON/INI) speaks this grammar, so
// the loader is hand-written; see DESIGN.md.
package option

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Type is the value type of an option.
type Type int

const (
	Bool Type = iota
	Uint
	Str
)

const (
	maxNameLen  = 31
	maxLineLen  = 1023
	maxValueLen = 255
)

// Def declares one recognized option: its name, type, default textual
// value and description, mirroring the ACTION-macro tables in the
// original C headers (e.g. TCP_OPTION, STREAM_OPTION).
type Def struct {
	Name        string
	Type        Type
	Default     string
	Description string
}

// Recognized core option keys (spec.md §6).
var (
	TCPBacklog     = Def{"tcp_backlog", Uint, "128", "tcp conn backlog limit"}
	TCPPoolSize    = Def{"tcp_poolsize", Uint, "0", "tcp conn pool size"}
	StreamPoolSize = Def{"stream_poolsize", Uint, "0", "stream pool size"}
	LogLevel       = Def{"log_level", Uint, "4", "0=always only ... 7=vverb"}
	LogName        = Def{"log_name", Str, "", "log destination; empty means stderr"}
	CoreDefs       = []Def{TCPBacklog, TCPPoolSize, StreamPoolSize, LogLevel, LogName}
)

type entry struct {
	def   Def
	value string
}

// Table holds the resolved value of every registered option.
type Table struct {
	entries map[string]*entry
	order   []string
}

// NewTable registers defs and loads their declared defaults (equivalent to
// calling option_load_default immediately).
func NewTable(defs ...Def) *Table {
	t := &Table{entries: make(map[string]*entry)}
	for _, d := range defs {
		t.entries[d.Name] = &entry{def: d, value: d.Default}
		t.order = append(t.order, d.Name)
	}
	return t
}

// NewCoreTable is NewTable pre-populated with the spec's recognized core
// keys (tcp_backlog, tcp_poolsize, stream_poolsize, log_level, log_name).
func NewCoreTable() *Table { return NewTable(CoreDefs...) }

// LoadDefault resets every registered option back to its declared
// default value.
func (t *Table) LoadDefault() {
	for _, name := range t.order {
		t.entries[name].value = t.entries[name].def.Default
	}
}

// LoadFile parses path per the grammar in spec.md §6 and applies every
// "name: value" pair found to this table via Set. Unknown names are
// ignored (the core's option surface is a fixed, known set).
func (t *Table) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "option: open %s", path)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := sc.Text()
		if len(line) > maxLineLen {
			return errors.Errorf("option: line %d exceeds %d bytes", lineno, maxLineLen)
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		name, value, err := ParseLine(line)
		if err != nil {
			return errors.Wrapf(err, "option: line %d", lineno)
		}

		if _, known := t.entries[name]; !known {
			continue
		}
		if err := t.Set(name, value); err != nil {
			return errors.Wrapf(err, "option: line %d", lineno)
		}
	}
	return sc.Err()
}

// ParseLine splits a single non-comment, non-blank config line into
// (name, value) per the "name ':' WS* value WS*" grammar, validating the
// name charset/length and the trimmed value length.
func ParseLine(line string) (name, value string, err error) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", errors.Errorf("missing ':' in %q", line)
	}

	name = line[:idx]
	value = strings.TrimSpace(line[idx+1:])

	if len(name) == 0 || len(name) > maxNameLen {
		return "", "", errors.Errorf("invalid name length in %q", line)
	}
	for _, r := range name {
		if !isNameRune(r) {
			return "", "", errors.Errorf("invalid character %q in name %q", r, name)
		}
	}

	if len(value) > maxValueLen {
		return "", "", errors.Errorf("value exceeds %d bytes in %q", maxValueLen, line)
	}

	return name, value, nil
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_':
		return true
	default:
		return false
	}
}

// Set assigns value to the named option after type-checking it against
// the option's declared Type.
func (t *Table) Set(name, value string) error {
	e, ok := t.entries[name]
	if !ok {
		return errors.Errorf("option: unrecognized key %q", name)
	}

	switch e.def.Type {
	case Bool:
		if value != "yes" && value != "no" {
			return errors.Errorf("option %q: invalid bool value %q", name, value)
		}
	case Uint:
		if _, err := strconv.ParseUint(value, 0, 64); err != nil {
			return errors.Wrapf(err, "option %q: invalid uint value %q", name, value)
		}
	case Str:
		// free-form, preserved verbatim
	}

	e.value = value
	return nil
}

// Print returns the textual value currently held for name, round-tripping
// the semantic value per spec.md §8 property 7.
func (t *Table) Print(name string) (string, error) {
	e, ok := t.entries[name]
	if !ok {
		return "", errors.Errorf("option: unrecognized key %q", name)
	}
	return e.value, nil
}

// Bool returns the boolean value of a Bool-typed option.
func (t *Table) Bool(name string) bool {
	v, _ := t.Print(name)
	return v == "yes"
}

// Uint returns the numeric value of a Uint-typed option, auto-detecting
// base 8/10/16 exactly as strconv.ParseUint(s, 0, 64) does.
func (t *Table) Uint(name string) uint64 {
	v, _ := t.Print(name)
	n, _ := strconv.ParseUint(v, 0, 64)
	return n
}

// Str returns the string value of a Str-typed option.
func (t *Table) Str(name string) string {
	v, _ := t.Print(name)
	return v
}

// Snapshot returns a flat map of every registered option's resolved
// value, suitable for a diagnostic YAML dump (see DumpYAML); it never
// feeds back into LoadFile.
func (t *Table) Snapshot() map[string]string {
	out := make(map[string]string, len(t.order))
	for _, name := range t.order {
		out[name] = t.entries[name].value
	}
	return out
}

// String implements fmt.Stringer for debug printing.
func (t *Table) String() string {
	var b strings.Builder
	for _, name := range t.order {
		fmt.Fprintf(&b, "%s: %s\n", name, t.entries[name].value)
	}
	return b.String()
}
