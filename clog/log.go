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

// Package clog is the leveled log adapter the core's call sites use
// (spec.md §4.G/§6). Named clog, not log, to avoid shadowing the stdlib
// package it wraps.
package clog

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/fatih/color"
)

// Level mirrors the LOG_* constants in cc_log.h.
type Level int

const (
	Always Level = iota
	Crit
	Error
	Warn
	Info
	Debug
	Verb
	VVerb
)

var levelTag = map[Level]string{
	Always: "ALWAYS",
	Crit:   "CRIT",
	Error:  "ERROR",
	Warn:   "WARN",
	Info:   "INFO",
	Debug:  "DEBUG",
	Verb:   "VERB",
	VVerb:  "VVERB",
}

var levelColor = map[Level]*color.Color{
	Crit:  color.New(color.FgRed, color.Bold),
	Error: color.New(color.FgRed),
	Warn:  color.New(color.FgYellow),
	Info:  color.New(color.FgGreen),
	Debug: color.New(color.FgCyan),
	Verb:  color.New(color.FgBlue),
	VVerb: color.New(color.FgMagenta),
}

// Logger is a level-filtered text logger. Level 0 (Always) bypasses the
// filter entirely, matching spec.md §4.G. Not safe to share across
// Runtimes with different rotation targets; a single *os.File is shared
// read-only-as-in-append-only across reactors per spec.md §5, which a
// single small `write` syscall per message satisfies without a
// user-space lock -- the stdlib *log.Logger already serializes its own
// Output() calls, which is the only coordination this needs.
type Logger struct {
	mu     sync.Mutex
	level  Level
	out    io.Writer
	std    *log.Logger
	color  bool
	rotate *rotator
}

// New builds a Logger writing to name (empty means stderr) filtered at
// level. When rotateBytes > 0, the file rotates (and the rotated copy is
// gzip-compressed, see rotate.go) once it exceeds that size.
func New(level Level, name string, rotateBytes int64) (*Logger, error) {
	l := &Logger{level: level}

	if name == "" {
		l.out = os.Stderr
		l.color = true
	} else {
		r, err := newRotator(name, rotateBytes)
		if err != nil {
			return nil, err
		}
		l.rotate = r
		l.out = r
	}

	l.std = log.New(l.out, "", log.LstdFlags|log.Lmicroseconds)
	return l, nil
}

// SetLevel adjusts the filter threshold (log_level_set).
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// LevelUp raises verbosity by one step (log_level_up).
func (l *Logger) LevelUp() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level < VVerb {
		l.level++
	}
}

// LevelDown lowers verbosity by one step (log_level_down).
func (l *Logger) LevelDown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level > Always {
		l.level--
	}
}

// Log writes a message at level, subject to the filter, unless level is
// Always in which case it is never filtered.
func (l *Logger) Log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	threshold := l.level
	l.mu.Unlock()

	if level != Always && level > threshold {
		return
	}

	tag := levelTag[level]
	if l.color {
		if c, ok := levelColor[level]; ok {
			tag = c.Sprint(tag)
		}
	}
	l.std.Printf("[%s] %s", tag, fmt.Sprintf(format, args...))
}

// Panic logs at Crit (subject to the level filter, like any Crit
// message), then panics -- the Go analogue of log_panic's _log + abort().
func (l *Logger) Panic(format string, args ...interface{}) {
	l.Log(Crit, format, args...)
	panic(fmt.Sprintf(format, args...))
}

// Close releases the underlying rotating file, if any.
func (l *Logger) Close() error {
	if l.rotate != nil {
		return l.rotate.Close()
	}
	return nil
}
