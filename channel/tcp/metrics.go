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

package tcp

import "github.com/xtaci/ccommon/metric"

// metrics holds the TCP_METRIC counters/gauges a Transport increments,
// mirroring ccommon's stats/tcp.h block (spec.md §4.B "Metrics").
type metrics struct {
	accept        *metric.Counter
	acceptEx      *metric.Counter
	reject        *metric.Counter
	rejectEx      *metric.Counter
	connect       *metric.Counter
	connectEx     *metric.Counter
	connectCurr   *metric.Gauge
	close         *metric.Counter
	eof           *metric.Counter
	connErr       *metric.Counter
	connErrEx     *metric.Counter
	recv          *metric.Counter
	recvByte      *metric.Counter
	recvEx        *metric.Counter
	send          *metric.Counter
	sendByte      *metric.Counter
	sendEx        *metric.Counter
	sendvByte     *metric.Counter
	recvvByte     *metric.Counter
	rejectOverAcceptLimit *metric.Counter
	openSd        *metric.Gauge
}

// newMetrics registers every TCP metric into reg under the "tcp_" prefix
// used by the CSV reporter column names.
func newMetrics(reg *metric.Registry) *metrics {
	if reg == nil {
		reg = metric.NewRegistry()
	}
	return &metrics{
		accept:                reg.Counter("tcp_accept"),
		acceptEx:              reg.Counter("tcp_accept_ex"),
		reject:                reg.Counter("tcp_reject"),
		rejectEx:              reg.Counter("tcp_reject_ex"),
		connect:               reg.Counter("tcp_connect"),
		connectEx:             reg.Counter("tcp_connect_ex"),
		connectCurr:           reg.Gauge("tcp_connect_curr"),
		close:                 reg.Counter("tcp_close"),
		eof:                   reg.Counter("tcp_eof"),
		connErr:               reg.Counter("tcp_err"),
		connErrEx:             reg.Counter("tcp_err_ex"),
		recv:                  reg.Counter("tcp_recv"),
		recvByte:              reg.Counter("tcp_recv_byte"),
		recvEx:                reg.Counter("tcp_recv_ex"),
		send:                  reg.Counter("tcp_send"),
		sendByte:              reg.Counter("tcp_send_byte"),
		sendEx:                reg.Counter("tcp_send_ex"),
		sendvByte:             reg.Counter("tcp_sendv_byte"),
		recvvByte:             reg.Counter("tcp_recvv_byte"),
		rejectOverAcceptLimit: reg.Counter("tcp_reject_over_limit"),
		openSd:                reg.Gauge("tcp_open_sd"),
	}
}
