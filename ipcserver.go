package execpool

import (
	"bufio"
	"context"
	"errors"
	"io"
)

// ServeWorker runs the resident-worker side of the process-pool IPC protocol
// (§4.C10/§6): it reads one length-framed workerRequest at a time from in,
// executes it via a fresh Runner, and writes the matching workerResponse to
// out, in the order requests arrive, exactly once per request. ServeWorker
// returns when in reaches EOF (the pool closed the worker's stdin) or ctx is
// done; any other read/write failure is also returned so the caller
// (typically a small main package spawned as a ProcessPoolBackend worker)
// can exit non-zero.
//
// A program built around ServeWorker is what ExecConfig.WorkerProgram
// should name: workers "must be small, trusted programs that understand the
// protocol" per spec §9, so ServeWorker is deliberately the entire protocol
// implementation — no extra behavior is layered on top of it.
func ServeWorker(ctx context.Context, in io.Reader, out io.Writer) error {
	r := bufio.NewReader(in)
	runner := NewRunner()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := readRequest(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		resp := executeRequest(ctx, runner, req)
		if err := writeResponse(out, resp); err != nil {
			return err
		}
	}
}

// executeRequest runs one decoded request through runner and maps its
// outcome to a workerResponse, never letting a runner error escape
// unencoded: every error becomes an error_kind and error_msg in the frame.
func executeRequest(ctx context.Context, runner *Runner, req workerRequest) workerResponse {
	cmd := Command{
		Program:    req.Program,
		Args:       req.Args,
		WorkingDir: req.WorkingDir,
	}
	if req.TimeoutMs > 0 {
		cmd = cmd.WithTimeout(millisToDuration(req.TimeoutMs))
	} else {
		cmd = cmd.NoTimeout()
	}

	res, execErr := runner.Run(ctx, cmd)
	resp := workerResponse{RequestID: req.RequestID}
	if execErr == nil {
		resp.ExitCode = int32(res.ExitCode)
		resp.Stdout = res.Stdout
		resp.Stderr = res.Stderr
		return resp
	}

	switch execErr.Kind {
	case TimeoutErrorKind:
		resp.ErrorKind = ipcErrorTimeout
		resp.ErrorMsg = execErr.Error()
	case ChildErrorKind:
		resp.ErrorKind = ipcErrorChild
		resp.ErrorMsg = execErr.Error()
	default:
		resp.ErrorKind = ipcErrorIO
		resp.ErrorMsg = execErr.Error()
	}
	return resp
}
