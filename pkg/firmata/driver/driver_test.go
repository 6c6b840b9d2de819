package driver

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/robotalks/firmata.go/pkg/firmata"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

type testConn struct {
	*io.PipeReader
	device *io.PipeWriter
	writes chan []byte
}

func newTestConn() *testConn {
	r, w := io.Pipe()
	return &testConn{PipeReader: r, device: w, writes: make(chan []byte, 64)}
}

func (c *testConn) Write(p []byte) (int, error) {
	c.writes <- append([]byte(nil), p...)
	return len(p), nil
}

func (c *testConn) inject(t *testing.T, p ...byte) {
	go func() {
		_, err := c.device.Write(p)
		if err != nil {
			t.Logf("inject: %v", err)
		}
	}()
}

func (c *testConn) expect(t *testing.T, p ...byte) {
	select {
	case w := <-c.writes:
		require.Equal(t, p, w)
	case <-time.After(testTimeout):
		t.Fatalf("expect % x: timeout", p)
	}
}

// 4 pins: 0-1 digital, 2-3 analog.
var handshakeFrames = []byte{
	0xF0, 0x79, 0x02, 0x05, 'T', 0, 0xF7,
	0xF0, 0x6C,
	0x00, 0x01, 0x01, 0x01, 0x03, 0x08, 0x7F,
	0x00, 0x01, 0x01, 0x01, 0x7F,
	0x00, 0x01, 0x02, 0x0A, 0x7F,
	0x00, 0x01, 0x02, 0x0A, 0x7F,
	0xF7,
	0xF0, 0x6A, 0x7F, 0x7F, 0x00, 0x01, 0xF7,
}

type testEnv struct {
	t      *testing.T
	conn   *testConn
	driver *Driver
	handle *Handle
	runErr chan error
	cancel context.CancelFunc
}

func newTestEnv(t *testing.T, setup ...func(*Driver)) *testEnv {
	env := &testEnv{t: t, conn: newTestConn(), runErr: make(chan error, 1)}
	env.driver = New(env.conn)
	for _, fn := range setup {
		fn(env.driver)
	}
	env.conn.inject(t, handshakeFrames...)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(t, env.driver.Handshake(ctx))
	env.conn.expect(t, 0xF0, 0x79, 0xF7, 0xF0, 0x6B, 0xF7, 0xF0, 0x69, 0xF7)
	env.handle = env.driver.Handle()
	require.NotNil(t, env.handle)
	return env
}

func (e *testEnv) run() *testEnv {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go func() { e.runErr <- e.driver.Run(ctx) }()
	e.t.Cleanup(func() {
		cancel()
		e.conn.device.Close()
	})
	return e
}

func (e *testEnv) waitRun() error {
	select {
	case err := <-e.runErr:
		return err
	case <-time.After(testTimeout):
		e.t.Fatal("driver didn't stop")
		return nil
	}
}

func (e *testEnv) changed() firmata.BoardState {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	state, err := e.handle.Changed(ctx)
	require.NoError(e.t, err)
	return state
}

func TestHandshakePublishes(t *testing.T) {
	env := newTestEnv(t)
	state := env.changed()
	require.Equal(t, "T", state.FirmwareName)
	require.Len(t, state.Pins, 4)
	require.EqualValues(t, 2, state.AnalogPinStart)
	require.True(t, state.Pins[3].Analog)
	require.Equal(t, state, env.handle.State())
}

func TestInboundFrames(t *testing.T) {
	env := newTestEnv(t).run()
	env.changed()

	env.conn.inject(t, 0x90, 0x03, 0x00)
	state := env.changed()
	require.EqualValues(t, 1, state.Pins[0].Value)
	require.EqualValues(t, 1, state.Pins[1].Value)

	env.conn.inject(t, 0xE1, 0x00, 0x02)
	state = env.changed()
	require.EqualValues(t, 512, state.Pins[3].Value)

	env.conn.inject(t, 0xF9, 0x02, 0x05)
	state = env.changed()
	require.Equal(t, "2.5", state.ProtocolVersion)
}

func TestCommandsMirrored(t *testing.T) {
	env := newTestEnv(t).run()
	env.changed()
	ctx := context.Background()

	require.NoError(t, env.handle.SetPinMode(ctx, firmata.Digital(1), firmata.PinModeOutput))
	env.conn.expect(t, 0xF4, 0x01, 0x01)
	require.Equal(t, firmata.PinModeOutput, env.changed().Pins[1].Mode)

	require.NoError(t, env.handle.DigitalWrite(ctx, firmata.Digital(1), true))
	env.conn.expect(t, 0xF5, 0x01, 0x01)
	require.EqualValues(t, 1, env.changed().Pins[1].Value)

	require.NoError(t, env.handle.AnalogWrite(ctx, firmata.Analog(1), 300))
	env.conn.expect(t, 0xE3, 0x2C, 0x01)
	require.EqualValues(t, 300, env.changed().Pins[3].Value)

	require.NoError(t, env.handle.WritePort(ctx, 0, 0x01))
	env.conn.expect(t, 0x90, 0x01, 0x00)
	state := env.changed()
	require.EqualValues(t, 0, state.Pins[1].Value)

	require.NoError(t, env.handle.ReportAnalog(ctx, firmata.Analog(0), true))
	env.conn.expect(t, 0xC1, 0x01)
	require.NoError(t, env.handle.ReportDigital(ctx, firmata.Digital(0), false))
	env.conn.expect(t, 0xD0, 0x00)
	require.NoError(t, env.handle.SamplingInterval(ctx, 19*time.Millisecond))
	env.conn.expect(t, 0xF0, 0x7A, 0x13, 0x00, 0xF7)
	require.NoError(t, env.handle.StringWrite(ctx, "a"))
	env.conn.expect(t, 0xF0, 0x71, 'a', 0x00, 0xF7)
	require.NoError(t, env.handle.QueryFirmware(ctx))
	env.conn.expect(t, 0xF0, 0x79, 0xF7)
	require.NoError(t, env.handle.QueryCapabilities(ctx))
	env.conn.expect(t, 0xF0, 0x6B, 0xF7)
	require.NoError(t, env.handle.QueryAnalogMapping(ctx))
	env.conn.expect(t, 0xF0, 0x69, 0xF7)
	require.NoError(t, env.handle.I2CConfig(ctx, 1))
	env.conn.expect(t, 0xF0, 0x78, 0x01, 0x00, 0xF7)
	require.NoError(t, env.handle.I2CRead(ctx, 0x20, 4))
	env.conn.expect(t, 0xF0, 0x76, 0x20, 0x08, 0x04, 0x00, 0xF7)
	require.NoError(t, env.handle.I2CWrite(ctx, 0x20, []byte{0x80}))
	env.conn.expect(t, 0xF0, 0x76, 0x20, 0x00, 0x00, 0x01, 0xF7)
}

func TestCommandsNotMirrored(t *testing.T) {
	env := newTestEnv(t, func(d *Driver) { d.MirrorCommands = false }).run()
	before := env.changed()
	require.NoError(t, env.handle.SetPinMode(context.Background(), firmata.Digital(1), firmata.PinModeOutput))
	env.conn.expect(t, 0xF4, 0x01, 0x01)
	require.Equal(t, before, env.handle.State())
}

func TestCommandRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testCases := []struct {
		name string
		fn   func() error
		err  error
	}{
		{"digital write on analog", func() error { return env.handle.DigitalWrite(ctx, firmata.Analog(0), true) }, firmata.ErrWrongType},
		{"report digital on analog", func() error { return env.handle.ReportDigital(ctx, firmata.Analog(0), true) }, firmata.ErrWrongType},
		{"report analog on digital", func() error { return env.handle.ReportAnalog(ctx, firmata.Digital(0), true) }, firmata.ErrWrongType},
		{"pin beyond board", func() error { return env.handle.AnalogWrite(ctx, firmata.Analog(2), 1) }, firmata.ErrOutOfRange},
		{"port beyond nibble", func() error { return env.handle.WritePort(ctx, 16, 1) }, firmata.ErrOutOfRange},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.True(t, errors.Is(tc.fn(), tc.err))
		})
	}
	require.Empty(t, env.driver.queue.ch)
}

func TestHandshakeSilentBoard(t *testing.T) {
	conn := newTestConn()
	defer conn.device.Close()
	d := New(conn)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- d.Handshake(ctx) }()
	select {
	case err := <-errCh:
		require.Equal(t, context.DeadlineExceeded, err)
	case <-time.After(testTimeout):
		t.Fatal("handshake ignored the deadline")
	}
	conn.expect(t, 0xF0, 0x79, 0xF7, 0xF0, 0x6B, 0xF7, 0xF0, 0x69, 0xF7)
}

func TestBadFrameStops(t *testing.T) {
	env := newTestEnv(t).run()
	env.conn.inject(t, 0xF0, 0x55, 0x01, 0xF7)
	err := env.waitRun()
	var perr *firmata.ParseError
	require.True(t, errors.As(err, &perr))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	_, err = env.handle.Changed(ctx)
	require.NoError(t, err)
	_, err = env.handle.Changed(ctx)
	require.Equal(t, firmata.ErrClosed, err)
	require.Equal(t, firmata.ErrClosed, env.handle.QueryFirmware(ctx))
}

func TestSkipBadFrames(t *testing.T) {
	env := newTestEnv(t, func(d *Driver) { d.SkipBadFrames = true }).run()
	env.changed()
	env.conn.inject(t, 0xF0, 0x55, 0x01, 0xF7, 0xE3, 0x01, 0x00, 0x90, 0x01, 0x00)
	state := env.changed()
	require.EqualValues(t, 1, state.Pins[0].Value)
}

func TestTransportError(t *testing.T) {
	env := newTestEnv(t).run()
	errBroken := errors.New("broken")
	env.conn.device.CloseWithError(errBroken)
	err := env.waitRun()
	var ioErr *firmata.IOError
	require.True(t, errors.As(err, &ioErr))
	require.True(t, errors.Is(err, errBroken))
	select {
	case <-env.handle.Done():
	case <-time.After(testTimeout):
		t.Fatal("handle not done")
	}
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t).run()
	env.cancel()
	require.Equal(t, context.Canceled, env.waitRun())
}

func TestCloseAllHandles(t *testing.T) {
	env := newTestEnv(t).run()
	clone := env.handle.Clone()
	require.NotNil(t, clone)
	require.NoError(t, env.handle.Close())
	require.Nil(t, env.handle.Clone())
	require.Equal(t, firmata.ErrClosed, env.handle.QueryFirmware(context.Background()))

	require.NoError(t, clone.QueryFirmware(context.Background()))
	env.conn.expect(t, 0xF0, 0x79, 0xF7)
	require.NoError(t, clone.Close())
	require.NoError(t, clone.Close())
	require.Equal(t, firmata.ErrClosed, env.waitRun())
	require.Nil(t, env.driver.Handle())
}

func TestQueueBackpressure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < QueueSize; i++ {
		require.NoError(t, env.handle.QueryFirmware(ctx))
	}
	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.Equal(t, context.DeadlineExceeded, env.handle.QueryFirmware(ctx))
}

func TestCloseWhileQueueFull(t *testing.T) {
	env := newTestEnv(t)
	clone := env.handle.Clone()
	require.NotNil(t, clone)
	ctx := context.Background()
	for i := 0; i < QueueSize; i++ {
		require.NoError(t, env.handle.QueryFirmware(ctx))
	}
	sendErr := make(chan error, 1)
	go func() { sendErr <- env.handle.QueryFirmware(ctx) }()

	closed := make(chan struct{})
	go func() {
		clone.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(testTimeout):
		t.Fatal("close blocked by a full queue")
	}

	require.NoError(t, env.handle.Close())
	select {
	case err := <-sendErr:
		require.Equal(t, firmata.ErrClosed, err)
	case <-time.After(testTimeout):
		t.Fatal("blocked send not released")
	}

	env.run()
	require.Equal(t, firmata.ErrClosed, env.waitRun())
	require.Len(t, env.conn.writes, QueueSize)
}

func TestOrderPerHandle(t *testing.T) {
	env := newTestEnv(t).run()
	ctx := context.Background()
	for i := uint8(0); i < 10; i++ {
		require.NoError(t, env.handle.Send(ctx, firmata.SetPinMode{Pin: i, Mode: firmata.PinModeInput}))
	}
	for i := byte(0); i < 10; i++ {
		env.conn.expect(t, 0xF4, i, 0x00)
	}
}

func TestMirror(t *testing.T) {
	base := firmata.BoardState{PinStates: firmata.PinStates{Pins: []firmata.Pin{
		{Mode: firmata.PinModeOutput},
		{Mode: firmata.PinModeInput},
		{Mode: firmata.PinModeOutput, Value: 1},
	}}}
	testCases := []struct {
		name   string
		cmd    firmata.Command
		ok     bool
		values []uint16
	}{
		{"analog write", firmata.AnalogWrite{Pin: 1, Value: 9}, true, []uint16{0, 9, 1}},
		{"digital write", firmata.DigitalWrite{Pin: 2, Value: false}, true, []uint16{0, 0, 0}},
		{"port", firmata.DigitalPort{Port: 0, Mask: 0x03}, true, []uint16{1, 0, 0}},
		{"beyond pins", firmata.AnalogWrite{Pin: 3, Value: 9}, false, []uint16{0, 0, 1}},
		{"query", firmata.CapabilityQuery{}, false, []uint16{0, 0, 1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			state, ok := mirror(base, tc.cmd)
			require.Equal(t, tc.ok, ok)
			values := make([]uint16, len(state.Pins))
			for n, pin := range state.Pins {
				values[n] = pin.Value
			}
			require.Equal(t, tc.values, values)
		})
	}
	require.EqualValues(t, 1, base.Pins[2].Value)
}

func TestSnapshotLatestValue(t *testing.T) {
	c := newSnapshotCell()
	h := &Handle{queue: newCommandQueue(), cell: c}
	for i := 1; i <= 3; i++ {
		c.publish(firmata.BoardState{FirmwareName: string(rune('0' + i))})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	state, err := h.Changed(ctx)
	require.NoError(t, err)
	require.Equal(t, "3", state.FirmwareName)
	_, err = h.Changed(ctx)
	require.Equal(t, context.DeadlineExceeded, err)

	c.publish(firmata.BoardState{FirmwareName: "4"})
	c.close()
	c.publish(firmata.BoardState{FirmwareName: "5"})
	state, err = h.Changed(context.Background())
	require.NoError(t, err)
	require.Equal(t, "4", state.FirmwareName)
	state, err = h.Changed(context.Background())
	require.Equal(t, firmata.ErrClosed, err)
	require.Equal(t, "4", state.FirmwareName)
}
