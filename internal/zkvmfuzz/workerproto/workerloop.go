package workerproto

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/oracle"
)

// RunWorkerLoop is the entrypoint a subprocess launched with the hidden
// worker-loop flag runs: it reads sentinel-framed Request lines from in,
// executes each against the reference backend, and writes a
// sentinel-framed Response line to out. It returns when in reaches EOF.
func RunWorkerLoop(cfg *oracle.Config, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, Sentinel) {
			continue
		}
		var req Request
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, Sentinel)), &req); err != nil {
			resp := Response{BackendError: "malformed request: " + err.Error()}
			if writeErr := writeFramed(out, resp); writeErr != nil {
				return writeErr
			}
			continue
		}
		resp := ExecuteReference(req, cfg)
		if err := writeFramed(out, resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func writeFramed(out io.Writer, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return &SupervisorError{Code: "encode_failed", Message: "marshal response", Cause: err}
	}
	_, err = fmt.Fprintln(out, Sentinel+string(payload))
	return err
}
