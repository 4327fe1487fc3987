//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals lists the signals that trigger a graceful shutdown.
// SIGTERM is what systemd, kubernetes, and most process managers send.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
