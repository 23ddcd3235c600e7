package transport

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Identifies the calling client to the driver for behavior selection.
const (
	EnvLangName = "PW_LANG_NAME"
	langName    = "go"
)

var ErrDriverPathRequired = errors.New("transport: driver path required")

// PipeConfig describes the driver subprocess to spawn.
type PipeConfig struct {
	Path string
	Args []string
	Env  map[string]string
}

func (c PipeConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return ErrDriverPathRequired
	}
	return nil
}

// PipeTransport frames messages over a driver subprocess's stdin/stdout.
// The subprocess's stderr stays connected to the host stderr for diagnostics
// and is not part of the protocol.
type PipeTransport struct {
	*StreamTransport
	cmd *exec.Cmd
}

// NewPipeTransport spawns the driver and wires its pipes. The returned
// transport is ready for OnMessage + Run.
func NewPipeTransport(cfg PipeConfig) (*PipeTransport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cmd := exec.Command(cfg.Path, cfg.Args...)
	cmd.Env = append(os.Environ(), EnvLangName+"="+langName)
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: driver stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: driver stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("transport: start driver %q: %w", cfg.Path, err)
	}
	log.Debug().Str("path", cfg.Path).Int("pid", cmd.Process.Pid).Msg("transport: driver started")

	return &PipeTransport{
		StreamTransport: NewStreamTransport(stdout, stdin),
		cmd:             cmd,
	}, nil
}

// Run drives the read loop, then reaps the subprocess.
func (t *PipeTransport) Run() error {
	runErr := t.StreamTransport.Run()
	waitErr := t.cmd.Wait()
	if runErr != nil {
		return runErr
	}
	if waitErr != nil && !t.stopped.Load() {
		return fmt.Errorf("transport: driver exited: %w", waitErr)
	}
	return nil
}

var _ Transport = (*PipeTransport)(nil)
var _ Transport = (*StreamTransport)(nil)
