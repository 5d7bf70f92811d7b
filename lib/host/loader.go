// Package host provides lifecycle management for plugin processes.
// This file contains the Loader, which launches a plugin executable and
// connects a Host to it.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/snowmerak/hubplug/lib/channel"
	"github.com/snowmerak/hubplug/lib/process"
)

// TransportType selects how the Loader connects to the plugin.
type TransportType string

const (
	// TransportStdio frames messages over the plugin's stdin and stdout.
	TransportStdio TransportType = "stdio"
	// TransportUnixSocket listens on a unix domain socket the plugin dials.
	TransportUnixSocket TransportType = "unix"
)

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	Args []string
	Env  []string

	Transport TransportType
	// SocketPath is generated under the temporary directory when empty.
	SocketPath string
	Stream     channel.StreamOptions

	// Wrap, when set, decorates the channel before the Host uses it.
	Wrap func(channel.Channel) channel.Channel

	Host   *Options
	Stderr io.Writer
}

// DefaultLoaderOptions returns options using stdio communication.
func DefaultLoaderOptions() *LoaderOptions {
	return &LoaderOptions{
		Transport: TransportStdio,
		Stream:    channel.DefaultStreamOptions(),
		Host:      DefaultOptions(),
	}
}

// Loader manages the lifecycle of a plugin process and the Host talking to it.
type Loader struct {
	Path string
	Name string

	backend Backend
	options *LoaderOptions

	process *process.Process
	host    *Host

	loadCtx    context.Context
	cancelLoad context.CancelFunc
	closed     atomic.Bool
	wg         sync.WaitGroup

	processExited atomic.Bool
	serveErr      atomic.Pointer[error]
}

// NewLoader creates a Loader for the executable at path.
func NewLoader(path, name string, backend Backend, opts *LoaderOptions) *Loader {
	if opts == nil {
		opts = DefaultLoaderOptions()
	}
	return &Loader{
		Path:    path,
		Name:    name,
		backend: backend,
		options: opts,
	}
}

// Load starts the plugin process, connects to it and starts serving its requests.
func (l *Loader) Load(ctx context.Context) error {
	if l.closed.Load() {
		return fmt.Errorf("loader is closed")
	}
	if l.process != nil {
		return fmt.Errorf("loader already loaded")
	}

	args := l.options.Args
	socketPath := l.options.SocketPath
	if l.options.Transport == TransportUnixSocket {
		if socketPath == "" {
			socketPath = filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s.sock", l.Name, uuid.NewString()))
		}
		args = append(append([]string{}, args...), "--transport=unix", "--socket="+socketPath)
	}

	p, err := process.Fork(l.Path, process.Options{Args: args, Env: l.options.Env, Stderr: l.options.Stderr})
	if err != nil {
		return fmt.Errorf("failed to fork process: %w", err)
	}

	ch, err := l.connect(ctx, p, socketPath)
	if err != nil {
		p.Close()
		return err
	}
	if l.options.Wrap != nil {
		ch = l.options.Wrap(ch)
	}

	l.process = p
	l.host = New(l.Name, ch, l.backend, l.options.Host)

	// Use the provided context as parent, but create a child for internal control
	l.loadCtx, l.cancelLoad = context.WithCancel(context.WithoutCancel(ctx))

	// serving is recorded before Load returns so Close always waits for the hang-up
	served, err := l.host.Start(l.loadCtx)
	if err != nil {
		l.cancelLoad()
		l.host.Close()
		p.Close()
		return err
	}

	l.wg.Add(1)
	go l.monitorProcess()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := <-served; err != nil {
			l.serveErr.Store(&err)
		}
	}()

	return nil
}

func (l *Loader) connect(ctx context.Context, p *process.Process, socketPath string) (channel.Channel, error) {
	switch l.options.Transport {
	case TransportStdio, "":
		return channel.NewStream(p.Stdout(), p.Stdin(), l.options.Stream), nil

	case TransportUnixSocket:
		// stop listening if the plugin dies before it connects
		listenCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-p.Exited():
				cancel()
			case <-listenCtx.Done():
			}
		}()

		ch, err := channel.ListenUnix(listenCtx, socketPath, l.options.Stream)
		if err != nil {
			return nil, fmt.Errorf("failed to accept plugin connection: %w", err)
		}
		return ch, nil
	}
	return nil, fmt.Errorf("unknown transport %q", l.options.Transport)
}

// Host returns the connected Host. It is nil before Load.
func (l *Loader) Host() *Host {
	return l.host
}

// Process returns the running plugin process. It is nil before Load.
func (l *Loader) Process() *process.Process {
	return l.process
}

// Err returns the error that ended serving, if any.
func (l *Loader) Err() error {
	if err := l.serveErr.Load(); err != nil {
		return *err
	}
	return nil
}

// Close asks the plugin to stop, then terminates the process and releases resources.
func (l *Loader) Close(ctx context.Context) error {
	if !l.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("loader already closed")
	}
	if l.process == nil {
		return nil
	}

	var errs []error

	// 1. Graceful stop: the plugin hangs up after its receive loop ends
	if !l.processExited.Load() {
		if err := l.host.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	// 2. Close the channel, then cancel the load context
	if err := l.host.Close(); err != nil {
		errs = append(errs, err)
	}
	l.cancelLoad()

	// 3. Close the process (kills it if it ignored the stop)
	if err := l.process.Close(); err != nil {
		errs = append(errs, err)
	}

	// 4. Wait for goroutines to complete with timeout
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		errs = append(errs, errors.New("loader goroutines did not finish"))
	}

	return errors.Join(errs...)
}

// monitorProcess closes the Host when the plugin process exits.
func (l *Loader) monitorProcess() {
	defer l.wg.Done()

	select {
	case <-l.process.Exited():
	case <-l.loadCtx.Done():
		return
	}

	l.processExited.Store(true)
	if err := l.process.Wait(); err != nil {
		l.host.logger.Warn("Plugin process exited", "error", err)
	} else {
		l.host.logger.Info("Plugin process exited")
	}
	l.host.Close()
}

// IsProcessAlive returns true if the plugin process is still running
func (l *Loader) IsProcessAlive() bool {
	return !l.processExited.Load() && !l.closed.Load()
}
