package utils

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/groundx/dscan/dlog"
)

var logger = dlog.NewModuleLogger("cmdutils")

// Fatalf formats a message to standard error and exits the program.
// The message is also printed to standard output if standard error
// is redirected to a different file.
func Fatalf(format string, args ...interface{}) {
	w := io.MultiWriter(os.Stdout, os.Stderr)
	if runtime.GOOS == "windows" {
		// The SameFile check below doesn't work on Windows.
		// stdout is unlikely to get redirected though, so just print there.
		w = os.Stdout
	} else {
		outf, _ := os.Stdout.Stat()
		errf, _ := os.Stderr.Stat()
		if outf != nil && errf != nil && os.SameFile(outf, errf) {
			w = os.Stderr
		}
	}
	fmt.Fprintf(w, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}

// WaitForShutdown blocks until SIGINT/SIGTERM, calls stop once, and keeps
// reading further signals so repeated interrupts don't hang a stuck drain.
func WaitForShutdown(stop func()) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)
	<-sigc
	logger.Infow("got interrupt, shutting down")
	go func() {
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				logger.Warnw("already shutting down, interrupt more to panic", "times", i-1)
			}
		}
		panic("repeated interrupts during shutdown")
	}()
	stop()
}
