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

// Command echoclient connects to echoserver, sends one message and
// prints back whatever the server echoes.
package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sagernet/sing/common/bufio"
	"github.com/urfave/cli"

	"github.com/xtaci/ccommon/channel/tcp"
	"github.com/xtaci/ccommon/status"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	myApp := cli.NewApp()
	myApp.Name = "echoclient"
	myApp.Usage = "send one message to echoserver and print the reply"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "addr, a", Value: "127.0.0.1:7900", Usage: "server address"},
		cli.StringFlag{Name: "message, m", Value: "hello, ccommon", Usage: "message to send"},
	}

	myApp.Action = func(c *cli.Context) error {
		transport := tcp.Setup(tcp.ListenOptions{}, nil)
		conn, err := transport.Connect(c.String("addr"))
		checkError(err)
		defer transport.Close(conn)

		if err := waitConnected(transport, conn); err != nil {
			checkError(err)
		}

		if err := send(conn, []byte(c.String("message"))); err != nil {
			checkError(err)
		}

		reply, err := recv(transport, conn)
		checkError(err)

		color.Green("echoserver replied: %s", reply)
		return nil
	}

	checkError(myApp.Run(os.Args))
}

// waitConnected polls GetSoError until a non-blocking connect resolves,
// mirroring spec.md §4.B's "Connect state" contract.
func waitConnected(transport *tcp.Transport, conn *tcp.Conn) error {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if conn.State == tcp.Connected {
			return nil
		}
		soErr, err := tcp.GetSoError(conn.Sd)
		if err != nil {
			return err
		}
		if soErr == 0 {
			conn.State = tcp.Connected
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("echoclient: connect timed out")
}

// send writes payload using sagernet/sing's vectorised writer when the
// wrapped socket supports scatter-gather I/O (the same defensive
// CreateVectorisedWriter/ok-fallback shape SagerNet-smux's sendLoop
// uses), falling back to a single conn.Write otherwise.
func send(conn *tcp.Conn, payload []byte) error {
	// Wrap a duplicate: closing f closes the descriptor it wraps, and
	// conn.Sd must stay open for recv.
	dup, err := syscall.Dup(conn.Sd)
	if err != nil {
		return err
	}
	f := os.NewFile(uintptr(dup), "echoclient-conn")
	defer f.Close()
	nc, err := net.FileConn(f)
	if err != nil {
		return err
	}
	defer nc.Close()

	// Split the payload across two buffers purely to exercise the
	// scatter-gather path; the wire bytes are identical to a single
	// Write, so echoserver's reply is unaffected.
	if bw, ok := bufio.CreateVectorisedWriter(nc); ok && len(payload) > 1 {
		mid := len(payload) / 2
		_, err := bufio.WriteVectorised(bw, [][]byte{payload[:mid], payload[mid:]})
		return err
	}

	_, err = nc.Write(payload)
	return err
}

func recv(transport *tcp.Transport, conn *tcp.Conn) (string, error) {
	buf := make([]byte, 4096)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, st := transport.Recv(conn, buf)
		switch st {
		case status.OK:
			if n > 0 {
				return string(buf[:n]), nil
			}
		case status.EAgain:
			time.Sleep(5 * time.Millisecond)
			continue
		default:
			return "", fmt.Errorf("recv failed: %v", st)
		}
	}
	return "", fmt.Errorf("echoclient: recv timed out")
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}
