package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// unixStream closes the listener and removes the socket file along with the connection.
type unixStream struct {
	*Stream
	listener   net.Listener
	socketPath string
}

func (u *unixStream) Close() error {
	err := u.Stream.Close()
	if u.listener != nil {
		if lerr := u.listener.Close(); lerr != nil && !errors.Is(lerr, net.ErrClosed) {
			err = errors.Join(err, lerr)
		}
		os.Remove(u.socketPath)
	}
	return err
}

// ListenUnix creates a unix domain socket at socketPath and waits for exactly
// one peer to connect. It is the host side of a socket transport.
func ListenUnix(ctx context.Context, socketPath string, options StreamOptions) (Channel, error) {
	// Clean up any stale socket file
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create unix socket listener: %w", err)
	}

	connChan := make(chan net.Conn, 1)
	errChan := make(chan error, 1)

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			errChan <- err
			return
		}
		connChan <- conn
	}()

	select {
	case conn := <-connChan:
		return &unixStream{
			Stream:     NewStream(conn, conn, options),
			listener:   listener,
			socketPath: socketPath,
		}, nil
	case err := <-errChan:
		listener.Close()
		os.Remove(socketPath)
		return nil, fmt.Errorf("failed to accept connection: %w", err)
	case <-ctx.Done():
		listener.Close()
		os.Remove(socketPath)
		return nil, ctx.Err()
	}
}

// DialUnix connects to a socket created by ListenUnix, retrying until the
// socket exists or ctx is done.
func DialUnix(ctx context.Context, socketPath string, options StreamOptions) (Channel, error) {
	var dialer net.Dialer
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		conn, err := dialer.DialContext(ctx, "unix", socketPath)
		if err == nil {
			return NewStream(conn, conn, options), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to connect to unix socket %s: %w", socketPath, errors.Join(ctx.Err(), err))
		case <-ticker.C:
		}
	}
}
