package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/face-sorter/internal/events"
	"github.com/kozaktomas/face-sorter/internal/sorter"
)

var stageDescriptions = map[events.Stage]string{
	events.StageReference:  "Loading references",
	events.StagePreprocess: "Preprocessing",
	events.StageClassify:   "Classifying",
}

// console drains the sorter's queues until stopped. On a terminal it draws
// one progress bar per stage and shows only log lines that are not per-image
// progress; otherwise it prints every log line.
type console struct {
	sorter *sorter.Sorter
	out    io.Writer
	bars   bool

	bar   *progressbar.ProgressBar
	stage events.Stage

	stop chan struct{}
	done chan struct{}
}

func newConsole(s *sorter.Sorter, out io.Writer, bars bool) *console {
	return &console{
		sorter: s,
		out:    out,
		bars:   bars,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (c *console) start() {
	go c.run()
}

// close flushes both queues and waits for the consumer to exit.
func (c *console) close() {
	close(c.stop)
	<-c.done
}

func (c *console) run() {
	defer close(c.done)
	for {
		select {
		case <-c.sorter.Progress().Ready():
			c.drainProgress()
		case <-c.sorter.Logs().Ready():
			c.drainLogs()
		case <-c.stop:
			c.drainProgress()
			c.drainLogs()
			if c.bar != nil {
				_ = c.bar.Finish()
				fmt.Fprintln(c.out)
			}
			return
		}
	}
}

func (c *console) drainProgress() {
	for _, p := range c.sorter.Progress().Drain() {
		if !c.bars {
			continue
		}
		if c.bar == nil || p.Stage != c.stage {
			c.newBar(p)
		}
		_ = c.bar.Add(1)
	}
}

func (c *console) newBar(p events.Progress) {
	if c.bar != nil {
		_ = c.bar.Finish()
		fmt.Fprintln(c.out)
	}
	c.stage = p.Stage
	desc, ok := stageDescriptions[p.Stage]
	if !ok {
		desc = string(p.Stage)
	}
	c.bar = progressbar.NewOptions(p.Total,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func (c *console) drainLogs() {
	for _, line := range c.sorter.Logs().Drain() {
		if c.bars && isPerImageLine(line) {
			continue
		}
		if c.bar != nil {
			_ = c.bar.Clear()
		}
		fmt.Fprintln(c.out, line.String())
		if c.bar != nil {
			_ = c.bar.RenderBlank()
		}
	}
}

// isPerImageLine reports whether line is an "[i/n] ..." info message, which
// the progress bar already represents.
func isPerImageLine(line events.LogLine) bool {
	return line.Level == "info" && strings.HasPrefix(line.Message, "[")
}
