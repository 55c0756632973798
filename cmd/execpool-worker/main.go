// Command execpool-worker is the reference resident worker for
// execpool.ProcessPoolBackend: it speaks the length-framed protocol
// described in spec §4.C10/§6 over its stdin/stdout and nothing else.
// ExecConfig.WorkerProgram can name this binary directly, or any other
// program built around execpool.ServeWorker.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/riftwood/execpool"
)

func main() {
	if err := execpool.ServeWorker(context.Background(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "execpool-worker:", err)
		os.Exit(1)
	}
}
