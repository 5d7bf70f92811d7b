// Package process launches plugin executables with their standard input and
// output connected to pipes owned by the host.
package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Options configures Fork.
type Options struct {
	Args []string
	Dir  string
	// Env is appended to the host's environment.
	Env []string
	// Stderr receives the plugin's standard error. Defaults to os.Stderr;
	// stdout is reserved for the framed channel.
	Stderr io.Writer
}

// Process is a running plugin executable.
type Process struct {
	cmd          *exec.Cmd
	stdinWriter  *os.File
	stdoutReader *os.File

	exited  chan struct{}
	waitErr error

	closeOnce sync.Once
}

// Fork starts path and returns once the process is running.
func Fork(path string, options Options) (*Process, error) {
	cmd := exec.Command(path, options.Args...)
	cmd.Dir = options.Dir
	if len(options.Env) > 0 {
		cmd.Env = append(os.Environ(), options.Env...)
	}

	// os pipes keep exec from starting copy goroutines, so Wait never
	// blocks on a stdin the host keeps open
	stdinReader, stdinWriter, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdoutReader, stdoutWriter, err := os.Pipe()
	if err != nil {
		stdinReader.Close()
		stdinWriter.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	cmd.Stdin = stdinReader
	cmd.Stdout = stdoutWriter
	cmd.Stderr = options.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	err = cmd.Start()
	// the child holds its own copies; stdout reaches EOF when it exits
	stdinReader.Close()
	stdoutWriter.Close()
	if err != nil {
		stdinWriter.Close()
		stdoutReader.Close()
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	p := &Process{
		cmd:          cmd,
		stdinWriter:  stdinWriter,
		stdoutReader: stdoutReader,
		exited:       make(chan struct{}),
	}
	go p.wait()

	return p, nil
}

func (p *Process) wait() {
	if err := p.cmd.Wait(); err != nil {
		p.waitErr = fmt.Errorf("process exited with error: %w", err)
	}
	close(p.exited)
}

// Stdin is written by the host and read by the plugin.
func (p *Process) Stdin() io.WriteCloser {
	return p.stdinWriter
}

// Stdout is written by the plugin and read by the host.
func (p *Process) Stdout() io.ReadCloser {
	return p.stdoutReader
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Exited is closed when the process has terminated.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Wait blocks until the process terminates and returns its exit error.
func (p *Process) Wait() error {
	<-p.exited
	return p.waitErr
}

// Close closes the pipes and kills the process if it is still running.
func (p *Process) Close() error {
	var errs []error
	p.closeOnce.Do(func() {
		if err := p.stdinWriter.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close stdin writer: %w", err))
		}
		if err := p.stdoutReader.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close stdout reader: %w", err))
		}

		select {
		case <-p.exited:
			return
		default:
		}
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("failed to kill process: %w", err))
		}
		<-p.exited
	})
	return errors.Join(errs...)
}
