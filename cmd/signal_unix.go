//go:build !windows

package cmd

import (
	"os"
	"syscall"
)

func triggerSignals() []os.Signal {
	return []os.Signal{syscall.SIGUSR1}
}
