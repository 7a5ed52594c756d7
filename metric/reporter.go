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

package metric

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
)

// Reporter periodically snapshots a Registry to a CSV file, one row per
// tick with a leading unix-timestamp column and a header row written once
// per file. The schedule is parsed with cron.WithSeconds, so it is either
// a six-field cron expression with a leading seconds field or a
// descriptor such as "@every 10s", generalizing kcptun's std.SnmpLogger
// ticker. No option in option.CoreDefs sets it; callers pass the string
// directly (runtime.Config.MetricsSchedule).
type Reporter struct {
	Registry *Registry
	Path     string
	Schedule string

	cr *cron.Cron
}

// Start begins the periodic reporting job; it returns an error if the
// schedule expression is malformed. Stop must be called to release the
// cron goroutine.
func (r *Reporter) Start() error {
	if r.Path == "" || r.Schedule == "" {
		return nil
	}

	r.cr = cron.New(cron.WithSeconds())
	_, err := r.cr.AddFunc(r.Schedule, r.tick)
	if err != nil {
		return err
	}
	r.cr.Start()
	return nil
}

// Stop halts the reporting job, waiting for any in-flight tick to finish.
func (r *Reporter) Stop() {
	if r.cr != nil {
		ctx := r.cr.Stop()
		<-ctx.Done()
	}
}

func (r *Reporter) tick() {
	names := r.Registry.Names()
	snap := r.Registry.Snapshot()

	f, err := os.OpenFile(r.Path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		_ = w.Write(append([]string{"unix"}, names...))
	}

	row := make([]string, 0, len(names)+1)
	row = append(row, fmt.Sprint(time.Now().Unix()))
	for _, n := range names {
		row = append(row, fmt.Sprint(snap[n]))
	}
	_ = w.Write(row)
}
