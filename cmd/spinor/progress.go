package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/machinebox/progress"
)

// withProgress runs fn on a reader wrapping r and prints how much of size
// bytes fn consumed.
func withProgress(label string, r io.Reader, size int64, fn func(io.Reader) error) error {
	pr := progress.NewReader(r)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		for p := range progress.NewTicker(ctx, pr, size, 200*time.Millisecond) {
			fmt.Fprintf(os.Stderr, "%s: %d %%\r", label, int(p.Percent()))
		}
	}()

	err := fn(pr)
	cancel()
	// Wait for the last status printout to not mess up the log
	<-done
	if err == nil {
		fmt.Fprintf(os.Stderr, "%s: complete\n", label)
	}
	return err
}
