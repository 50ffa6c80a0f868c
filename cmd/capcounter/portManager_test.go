package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silash35/labrob/pinout"
)

// pipePort stands in for a serial port. The test plays the board on the
// other ends of the two pipes.
type pipePort struct {
	fromBoard *io.PipeReader
	toBoard   *io.PipeWriter
}

func (p *pipePort) Read(b []byte) (int, error)  { return p.fromBoard.Read(b) }
func (p *pipePort) Write(b []byte) (int, error) { return p.toBoard.Write(b) }
func (p *pipePort) Close() error {
	p.fromBoard.Close()
	return p.toBoard.Close()
}

type board struct {
	send    *io.PipeWriter
	receive *io.PipeReader

	mu       sync.Mutex
	received []byte
}

func newPipePort() (*pipePort, *board) {
	fromBoard, boardSend := io.Pipe()
	boardReceive, toBoard := io.Pipe()
	return &pipePort{fromBoard: fromBoard, toBoard: toBoard}, &board{send: boardSend, receive: boardReceive}
}

func (b *board) readByte(t *testing.T) byte {
	t.Helper()
	got := make(chan byte, 1)
	go func() {
		buff := make([]byte, 1)
		if _, err := io.ReadFull(b.receive, buff); err == nil {
			got <- buff[0]
		}
	}()
	select {
	case v := <-got:
		return v
	case <-time.After(time.Second):
		require.FailNow(t, "board received nothing")
		return 0
	}
}

// collect keeps draining what the host writes until the port closes.
func (b *board) collect() {
	go func() {
		buff := make([]byte, 16)
		for {
			n, err := b.receive.Read(buff)
			b.mu.Lock()
			b.received = append(b.received, buff[:n]...)
			b.mu.Unlock()
			if err != nil {
				return
			}
		}
	}()
}

func (b *board) saw(values ...byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, v := range values {
		if !bytes.Contains(b.received, []byte{v}) {
			return false
		}
	}
	return true
}

// syncBuffer collects log output written from several goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

type portHarness struct {
	pm        *PortManager
	inChan    chan byte
	outChan   chan byte
	reconnect chan struct{}
}

func newTestPortManager(logger *zerolog.Logger, heartbeat time.Duration) *portHarness {
	config := DefaultConfiguration()
	config.PortName = "/dev/null-test"
	config.HeartbeatInterval = heartbeat
	h := &portHarness{
		inChan:    make(chan byte, 10),
		outChan:   make(chan byte, 10),
		reconnect: make(chan struct{}, 1),
	}
	h.pm = NewPortManager(logger, config, h.inChan, h.outChan, h.reconnect, &sync.WaitGroup{})
	h.pm.reopenDelay = 5 * time.Millisecond
	h.pm.settleDelay = 0
	return h
}

func nopLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func runServe(ctx context.Context, pm *PortManager, port io.ReadWriteCloser) <-chan bool {
	result := make(chan bool, 1)
	go func() { result <- pm.serve(ctx, port) }()
	return result
}

func waitResult(t *testing.T, result <-chan bool) bool {
	t.Helper()
	select {
	case v := <-result:
		return v
	case <-time.After(time.Second):
		require.FailNow(t, "serve did not return")
		return false
	}
}

func TestServeForwardsBothDirections(t *testing.T) {
	h := newTestPortManager(nopLogger(), time.Hour)
	port, b := newPipePort()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result := runServe(ctx, h.pm, port)

	_, err := b.send.Write([]byte{pinout.BUTTON_PIN_PGN, pinout.INFRARED_PIN})
	require.NoError(t, err)
	assert.Equal(t, pinout.BUTTON_PIN_PGN, <-h.inChan)
	assert.Equal(t, pinout.INFRARED_PIN, <-h.inChan)

	h.outChan <- pinout.LCD_PIN_PGN
	assert.Equal(t, pinout.LCD_PIN_PGN, b.readByte(t))

	// Board unplugged.
	require.NoError(t, b.send.Close())
	assert.True(t, waitResult(t, result))
}

func TestServeSignalsReconnect(t *testing.T) {
	h := newTestPortManager(nopLogger(), time.Hour)
	port, _ := newPipePort()
	ctx, cancel := context.WithCancel(context.Background())

	result := runServe(ctx, h.pm, port)

	select {
	case <-h.reconnect:
	case <-time.After(time.Second):
		require.FailNow(t, "no reconnect signal")
	}
	cancel()
	assert.False(t, waitResult(t, result))
}

func TestServeStopsOnCancel(t *testing.T) {
	h := newTestPortManager(nopLogger(), time.Hour)
	port, _ := newPipePort()
	ctx, cancel := context.WithCancel(context.Background())

	result := runServe(ctx, h.pm, port)
	cancel()

	assert.False(t, waitResult(t, result))
}

func TestServeSendsHeartbeat(t *testing.T) {
	h := newTestPortManager(nopLogger(), 10*time.Millisecond)
	port, b := newPipePort()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runServe(ctx, h.pm, port)

	assert.Equal(t, HEARTBEAT, b.readByte(t))
}

func TestReplugRestoresBoardState(t *testing.T) {
	h := newTestPortManager(nopLogger(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	tally := NewTally()
	waitGroup := &sync.WaitGroup{}
	NewSortProcessor(nopLogger(), h.inChan, h.outChan, make(chan pinout.Category), h.reconnect,
		tally, &recordingPublisher{}, waitGroup).Start(ctx)
	defer waitGroup.Wait()
	defer cancel()

	firstPort, firstBoard := newPipePort()
	firstBoard.collect()
	first := runServe(ctx, h.pm, firstPort)

	_, err := firstBoard.send.Write([]byte{pinout.BUTTON_PIN_PGN})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return firstBoard.saw(pinout.LCD_PIN_PGN) }, time.Second, 5*time.Millisecond)

	require.NoError(t, firstBoard.send.Close())
	assert.True(t, waitResult(t, first))

	secondPort, secondBoard := newPipePort()
	secondBoard.collect()
	runServe(ctx, h.pm, secondPort)

	assert.Eventually(t, func() bool {
		return secondBoard.saw(pinout.LED_PIN_PGN, pinout.LCD_PIN_PGN)
	}, time.Second, 5*time.Millisecond)

	_, err = secondBoard.send.Write([]byte{pinout.INFRARED_PIN})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return tally.Count(pinout.PGN) == 1 }, time.Second, 5*time.Millisecond)
}

func TestLoopRetriesUntilPortOpens(t *testing.T) {
	var logs syncBuffer
	logger := zerolog.New(&logs)
	h := newTestPortManager(&logger, time.Hour)

	port, _ := newPipePort()
	var attempts int
	var mu sync.Mutex
	h.pm.open = func() (io.ReadWriteCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 4 {
			return nil, errors.New("no such device")
		}
		return port, nil
	}

	opensBefore := testutil.ToFloat64(PortOpens)
	ctx, cancel := context.WithCancel(context.Background())
	h.pm.Start(ctx)

	select {
	case <-h.reconnect:
	case <-time.After(time.Second):
		require.FailNow(t, "port never served")
	}
	cancel()
	h.pm.waitGroup.Wait()

	mu.Lock()
	assert.Equal(t, 4, attempts)
	mu.Unlock()
	assert.Equal(t, opensBefore+1, testutil.ToFloat64(PortOpens))
	assert.Equal(t, 1, strings.Count(logs.String(), "Failed opening port"))
	assert.Contains(t, logs.String(), "Opened port")
}

func TestLoopStopsWhilePortMissing(t *testing.T) {
	h := newTestPortManager(nopLogger(), time.Hour)
	h.pm.open = func() (io.ReadWriteCloser, error) {
		return nil, errors.New("no such device")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.pm.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		h.pm.waitGroup.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "loop kept retrying after cancel")
	}
}
