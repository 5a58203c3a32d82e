package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"

	"github.com/kozaktomas/face-sorter/internal/sorter"
)

type command int

const (
	commandPause command = iota + 1
	commandResume
	commandCancel
)

// parseCommand maps an interactive input line to a command.
func parseCommand(line string) (command, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "p", "pause":
		return commandPause, true
	case "r", "resume":
		return commandResume, true
	case "c", "cancel":
		return commandCancel, true
	}
	return 0, false
}

// controller turns signals and interactive commands into sorter controls.
type controller struct {
	sorter      *sorter.Sorter
	cancel      context.CancelFunc
	interrupted atomic.Bool
}

// interrupt cancels the session. A second interrupt, or one arriving before
// the session can be cancelled, aborts the context as well.
func (c *controller) interrupt() {
	if c.interrupted.Swap(true) || !c.sorter.Cancel() {
		c.cancel()
	}
}

func (c *controller) apply(cmd command) {
	switch cmd {
	case commandPause:
		if !c.sorter.Pause() {
			fmt.Fprintln(os.Stderr, "nothing to pause")
		}
	case commandResume:
		if !c.sorter.Resume() {
			fmt.Fprintln(os.Stderr, "nothing to resume")
		}
	case commandCancel:
		c.interrupt()
	}
}

// readCommands applies p/r/c lines from r until r is exhausted or ctx is done.
func (c *controller) readCommands(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if cmd, ok := parseCommand(scanner.Text()); ok {
			c.apply(cmd)
		}
	}
}

// watchSignals routes process signals to the controller until the returned
// stop function is called.
func (c *controller) watchSignals(ctx context.Context) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, controlSignals...)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigChan:
				c.handleSignal(sig)
			}
		}
	}()
	return func() { signal.Stop(sigChan) }
}
