package cmd

import (
	"os"
	"syscall"
)

var controlSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func (c *controller) handleSignal(os.Signal) {
	c.interrupt()
}
