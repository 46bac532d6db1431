package client

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStartCommandMissingBinary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := StartCommand(ctx, "/nonexistent/lsp-server", nil, t.TempDir(), io.Discard)
	require.Error(t, err)
}

func TestCommandTransportEcho(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr, err := StartCommand(ctx, "cat", nil, t.TempDir(), io.Discard)
	require.NoError(t, err)

	_, err = tr.Write([]byte("ping\n"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = io.ReadFull(tr, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping\n", string(buf))

	require.NoError(t, tr.Close())
	exited, _ := tr.Exited()
	assert.True(t, exited)
}

func TestCommandTransportKilledOnDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// cat with no input sleeps forever; the deadline must take it down.
	tr, err := StartCommand(ctx, "cat", nil, t.TempDir(), io.Discard)
	require.NoError(t, err)
	defer tr.Close()

	deadline := time.After(5 * time.Second)
	for {
		if exited, _ := tr.Exited(); exited {
			return
		}
		select {
		case <-deadline:
			t.Fatal("process survived its context deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
