package common

import (
	"encoding/json"
	"io"
	"os"
)

type ciResult struct {
	OK      bool     `json:"ok"`
	Command string   `json:"command"`
	Details []string `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// PrintCIResult writes a single machine-readable JSON line to stdout.
func PrintCIResult(ok bool, command string, details []string, err error) {
	FprintCIResult(os.Stdout, ok, command, details, err)
}

func FprintCIResult(w io.Writer, ok bool, command string, details []string, err error) {
	res := ciResult{OK: ok, Command: command, Details: details}
	if err != nil {
		res.Error = err.Error()
	}
	_ = json.NewEncoder(w).Encode(res)
}
