package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/steveyegge/plait/internal/config"
	"github.com/steveyegge/plait/internal/store"
	"github.com/steveyegge/plait/internal/types"
	"github.com/steveyegge/plait/internal/work"
)

// Exit codes. Scripts branch on these, so they are part of the
// interface.
const (
	exitOK          = 0
	exitUsage       = 2
	exitCorrupt     = 3
	exitUnknownNode = 4
	exitCycle       = 5
	exitNotReady    = 6
	exitBackend     = 7
)

// exitCode maps an error to its exit code.
func exitCode(err error) int {
	var (
		corrupt  *types.CorruptStateError
		unknown  *types.UnknownNodeError
		cycle    *types.CycleError
		notReady *types.NotReadyError
		backend  *types.BackendUnavailableError
		started  *work.AlreadyStartedError
	)
	switch {
	case errors.As(err, &corrupt):
		return exitCorrupt
	case errors.As(err, &unknown):
		return exitUnknownNode
	case errors.As(err, &cycle):
		return exitCycle
	case errors.As(err, &notReady):
		return exitNotReady
	case errors.As(err, &backend):
		return exitBackend
	case errors.As(err, &started):
		return exitUsage
	default:
		return exitUsage
	}
}

// openStore locates the store governing the current directory.
func openStore() (*store.Store, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return store.Open(wd)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func jsonOutput() bool {
	return config.Get().GetBool(config.KeyJSON)
}

// emit prints v as JSON in --json mode, otherwise runs the human
// renderer.
func emit(v any, human func()) error {
	if jsonOutput() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human()
	return nil
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "plait: warning: "+format+"\n", args...)
}
