package serial

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type pipePort struct {
	*io.PipeReader
	io.Writer
}

func newPipePort() (*pipePort, *io.PipeWriter) {
	r, w := io.Pipe()
	return &pipePort{PipeReader: r, Writer: io.Discard}, w
}

func TestConnReadDeadline(t *testing.T) {
	port, device := newPipePort()
	c := NewConn(port)
	defer c.Close()

	require.NoError(t, c.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	start := time.Now()
	buf := make([]byte, 4)
	n, err := c.Read(buf)
	require.Zero(t, n)
	require.True(t, os.IsTimeout(err))
	require.True(t, time.Since(start) < time.Second)

	go device.Write([]byte{0xF9, 0x02, 0x05})
	require.NoError(t, c.SetReadDeadline(time.Now().Add(time.Second)))
	n, err = c.Read(buf[:2])
	require.NoError(t, err)
	require.Equal(t, []byte{0xF9, 0x02}, buf[:n])

	require.NoError(t, c.SetReadDeadline(time.Time{}))
	n, err = c.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0x05}, buf[:n])

	require.NoError(t, c.SetReadDeadline(time.Now().Add(-time.Millisecond)))
	_, err = c.Read(buf)
	require.True(t, os.IsTimeout(err))
}

func TestConnReadError(t *testing.T) {
	port, device := newPipePort()
	c := NewConn(port)
	defer c.Close()

	go func() {
		device.Write([]byte{0x01})
		device.Close()
	}()
	buf := make([]byte, 4)
	n, err := c.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = c.Read(buf)
	require.Equal(t, io.EOF, err)
	_, err = c.Read(buf)
	require.Equal(t, io.EOF, err)
}

func TestConnClose(t *testing.T) {
	port, _ := newPipePort()
	c := NewConn(port)
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Read(make([]byte, 1))
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, c.Close())
	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("read not released by close")
	}
}
