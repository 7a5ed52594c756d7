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

// Package status holds the stable, ABI-level status codes shared by the
// channel/tcp and stream layers (spec.md §6). These are not OS errno
// values -- they are the sentinel return codes of the core's own I/O
// functions.
package status

// Status is the result of a core I/O operation.
type Status int

const (
	OK     Status = 0
	Error  Status = -1
	EAgain Status = -2
	ENoMem Status = -3
	EEmpty Status = -4
	ERetry Status = -5
	ERdhup Status = -6
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case Error:
		return "ERROR"
	case EAgain:
		return "EAGAIN"
	case ENoMem:
		return "ENOMEM"
	case EEmpty:
		return "EEMPTY"
	case ERetry:
		return "ERETRY"
	case ERdhup:
		return "ERDHUP"
	default:
		return "UNKNOWN"
	}
}
