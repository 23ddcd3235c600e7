package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/pipewright/pipewright/internal/config"
	"github.com/pipewright/pipewright/internal/observability"
	"github.com/pipewright/pipewright/internal/rpc"
	"github.com/pipewright/pipewright/internal/transport"
)

var ErrUnexpectedRootObject = errors.New("client: initialize returned an unexpected object")

// Driver is one live connection to a driver process plus its top-level
// proxy. Close it with Stop when finished.
type Driver struct {
	conn       *rpc.Connection
	playwright *Playwright
}

// Launch spawns the driver subprocess described by cfg, performs the
// initialize handshake, and returns a ready Driver. The handshake is bounded
// by the configured launch timeout.
func Launch(ctx context.Context, cfg config.DriverConfig) (*Driver, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t, err := transport.NewPipeTransport(transport.PipeConfig{
		Path: cfg.Path,
		Args: cfg.Args,
		Env:  cfg.Env,
	})
	if err != nil {
		return nil, err
	}
	launchCtx, cancel := context.WithTimeout(ctx, cfg.LaunchTimeoutOrDefault())
	defer cancel()
	drv, err := Connect(launchCtx, t)
	if err != nil {
		return nil, err
	}
	drv.conn.SetDefaultTimeout(cfg.DefaultTimeoutOrDefault())
	return drv, nil
}

// Connect runs the handshake over an already-open transport. On failure the
// transport is stopped before returning.
func Connect(ctx context.Context, t transport.Transport) (*Driver, error) {
	observability.RegisterMetrics()
	conn := rpc.NewConnection(t, NewRemoteObject)
	conn.Start()
	result, err := conn.Initialize(ctx)
	if err != nil {
		conn.Stop()
		return nil, err
	}
	pw, ok := result.(*Playwright)
	if !ok {
		conn.Stop()
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedRootObject, result)
	}
	return &Driver{conn: conn, playwright: pw}, nil
}

// Playwright returns the top-level proxy.
func (d *Driver) Playwright() *Playwright {
	return d.playwright
}

// Connection exposes the underlying connection, mainly for Done.
func (d *Driver) Connection() *rpc.Connection {
	return d.conn
}

// Stop tears down the connection and waits for the dispatch loop to exit.
func (d *Driver) Stop() {
	d.conn.Stop()
}
