package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte{0xF9, 0x02, 0x05})
		conn.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rwc, err := Open(ctx, "tcp://"+ln.Addr().String())
	require.NoError(t, err)
	defer rwc.Close()
	buf := make([]byte, 3)
	_, err = rwc.Read(buf)
	require.NoError(t, err)
	require.Equal(t, byte(0xF9), buf[0])
}

func TestOpenErrors(t *testing.T) {
	for _, u := range []string{
		"gopher://host",
		"mqtt://localhost:1883/prefix/",
		"serial://?baud=x",
		"%zz",
	} {
		_, err := Open(context.Background(), u)
		require.Errorf(t, err, "%s", u)
	}
}
