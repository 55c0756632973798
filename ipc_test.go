package execpool

import (
	"bytes"
	"testing"
	"time"
)

func TestIPC_RequestRoundTrip(t *testing.T) {
	cmd := NewCommand("echo", []string{"a", "b"}).WithWorkingDir("/tmp").WithTimeout(0)
	req := requestFromCommand(42, cmd)

	var buf bytes.Buffer
	if err := writeRequest(&buf, req); err != nil {
		t.Fatalf("writeRequest failed: %v", err)
	}

	got, err := readRequest(&buf)
	if err != nil {
		t.Fatalf("readRequest failed: %v", err)
	}

	if got.RequestID != 42 {
		t.Errorf("expected request id 42, got %d", got.RequestID)
	}
	if got.Program != "echo" {
		t.Errorf("expected program %q, got %q", "echo", got.Program)
	}
	if len(got.Args) != 2 || got.Args[0] != "a" || got.Args[1] != "b" {
		t.Errorf("unexpected args: %v", got.Args)
	}
	if got.WorkingDir != "/tmp" {
		t.Errorf("expected working dir /tmp, got %q", got.WorkingDir)
	}
}

func TestIPC_RequestRoundTrip_NoWorkingDirOrArgs(t *testing.T) {
	cmd := NewCommand("pwd", nil)
	req := requestFromCommand(1, cmd)

	var buf bytes.Buffer
	if err := writeRequest(&buf, req); err != nil {
		t.Fatalf("writeRequest failed: %v", err)
	}

	got, err := readRequest(&buf)
	if err != nil {
		t.Fatalf("readRequest failed: %v", err)
	}
	if got.WorkingDir != "" {
		t.Errorf("expected empty working dir, got %q", got.WorkingDir)
	}
	if len(got.Args) != 0 {
		t.Errorf("expected no args, got %v", got.Args)
	}
	if got.TimeoutMs == 0 {
		t.Error("expected a non-zero timeout_ms for the default Command timeout")
	}
}

func TestIPC_ResponseRoundTrip_OK(t *testing.T) {
	resp := workerResponse{
		RequestID: 7,
		ExitCode:  0,
		Stdout:    []byte("out"),
		Stderr:    []byte("err"),
		ErrorKind: ipcErrorOK,
	}

	var buf bytes.Buffer
	if err := writeResponse(&buf, resp); err != nil {
		t.Fatalf("writeResponse failed: %v", err)
	}

	got, err := readResponse(&buf)
	if err != nil {
		t.Fatalf("readResponse failed: %v", err)
	}
	if got.RequestID != 7 || got.ExitCode != 0 {
		t.Errorf("unexpected response: %+v", got)
	}
	if string(got.Stdout) != "out" || string(got.Stderr) != "err" {
		t.Errorf("unexpected stdio: stdout=%q stderr=%q", got.Stdout, got.Stderr)
	}
	if got.ErrorKind != ipcErrorOK {
		t.Errorf("expected ipcErrorOK, got %v", got.ErrorKind)
	}
}

func TestIPC_ResponseRoundTrip_ErrorCarriesMessage(t *testing.T) {
	resp := workerResponse{RequestID: 3, ErrorKind: ipcErrorChild, ErrorMsg: "signal killed"}

	var buf bytes.Buffer
	if err := writeResponse(&buf, resp); err != nil {
		t.Fatalf("writeResponse failed: %v", err)
	}
	got, err := readResponse(&buf)
	if err != nil {
		t.Fatalf("readResponse failed: %v", err)
	}
	if got.ErrorKind != ipcErrorChild || got.ErrorMsg != "signal killed" {
		t.Errorf("unexpected response: %+v", got)
	}
}

func TestWorkerResponse_ToExecResult(t *testing.T) {
	tests := []struct {
		name     string
		resp     workerResponse
		wantKind Kind
		wantOK   bool
	}{
		{"ok", workerResponse{ExitCode: 5, ErrorKind: ipcErrorOK}, 0, true},
		{"io error", workerResponse{ErrorKind: ipcErrorIO, ErrorMsg: "boom"}, IOErrorKind, false},
		{"timeout", workerResponse{ErrorKind: ipcErrorTimeout}, TimeoutErrorKind, false},
		{"child error", workerResponse{ErrorKind: ipcErrorChild, ErrorMsg: "crash"}, ChildErrorKind, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.resp.toExecResult(250 * time.Millisecond)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if res.ExitCode != int(tt.resp.ExitCode) {
					t.Errorf("expected exit code %d, got %d", tt.resp.ExitCode, res.ExitCode)
				}
				return
			}
			if err == nil || err.Kind != tt.wantKind {
				t.Fatalf("expected kind %v, got %v", tt.wantKind, err)
			}
		})
	}
}
