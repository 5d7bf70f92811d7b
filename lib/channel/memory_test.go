package channel_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowmerak/hubplug/lib/channel"
)

func TestPipe_SendReceive(t *testing.T) {
	host, plugin := channel.Pipe(4, 32)
	defer host.Close()
	defer plugin.Close()

	ctx := context.Background()

	require.NoError(t, host.Send(ctx, []byte("first")))
	require.NoError(t, host.Send(ctx, []byte("second")))
	assert.Equal(t, 2, plugin.Pending())

	got, err := plugin.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)

	got, err = plugin.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)

	require.NoError(t, plugin.Send(ctx, []byte("back")))
	got, err = host.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("back"), got)
}

func TestPipe_CopiesPayload(t *testing.T) {
	a, b := channel.Pipe(1, 32)
	buf := []byte("abc")
	require.NoError(t, a.Send(context.Background(), buf))
	buf[0] = 'x'

	got, err := b.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestPipe_MessageTooLarge(t *testing.T) {
	a, b := channel.Pipe(1, 8)

	tests := []struct {
		name    string
		size    int
		wantErr error
	}{
		{name: "empty", size: 0},
		{name: "at limit", size: 8},
		{name: "one over", size: 9, wantErr: channel.ErrMessageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Send(context.Background(), make([]byte, tt.size))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 0, b.Pending())
				return
			}
			require.NoError(t, err)
			_, err = b.Receive(context.Background())
			require.NoError(t, err)
		})
	}
}

func TestPipe_BackpressureHonoursContext(t *testing.T) {
	a, _ := channel.Pipe(1, 8)
	require.NoError(t, a.Send(context.Background(), []byte("1")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := a.Send(ctx, []byte("2"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPipe_CloseDrainsThenFails(t *testing.T) {
	a, b := channel.Pipe(4, 8)
	ctx := context.Background()

	require.NoError(t, a.Send(ctx, []byte("last")))
	require.NoError(t, a.Close())

	got, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("last"), got)

	_, err = b.Receive(ctx)
	assert.ErrorIs(t, err, channel.ErrClosed)

	assert.ErrorIs(t, a.Send(ctx, []byte("x")), channel.ErrClosed)
}

func TestPipe_ReceiveUnblocksOnClose(t *testing.T) {
	a, b := channel.Pipe(1, 8)

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Receive(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, a.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, channel.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Receive did not unblock after Close")
	}
}

func TestPipe_Defaults(t *testing.T) {
	a, _ := channel.Pipe(0, 0)
	assert.Equal(t, channel.DefaultMaxMessageSize, a.MaxMessageSize())
}
