//go:build !windows

package cmd

import (
	"os"
	"syscall"
)

var controlSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2}

func (c *controller) handleSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGUSR1:
		c.apply(commandPause)
	case syscall.SIGUSR2:
		c.apply(commandResume)
	default:
		c.interrupt()
	}
}
