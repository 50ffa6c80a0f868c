package main

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

const (
	reopenDelay = 500 * time.Millisecond
	settleDelay = 1 * time.Second
)

type PortManager struct {
	logger            *zerolog.Logger
	portName          string
	baudRate          int
	heartbeatInterval time.Duration
	reopenDelay       time.Duration
	settleDelay       time.Duration
	open              func() (io.ReadWriteCloser, error)
	inChan            chan<- byte
	outChan           <-chan byte
	reconnectChan     chan<- struct{}
	waitGroup         *sync.WaitGroup
}

// NewPortManager signals reconnectChan every time a freshly opened port is
// ready, so the board state can be sent again.
func NewPortManager(logger *zerolog.Logger, config *Configuration, inChan chan<- byte, outChan <-chan byte,
	reconnectChan chan<- struct{}, waitGroup *sync.WaitGroup) *PortManager {
	pm := &PortManager{
		logger:            ptr(logger.With().Str(LogKey.Module, "PortManager").Logger()),
		portName:          config.PortName,
		baudRate:          config.BaudRate,
		heartbeatInterval: config.HeartbeatInterval,
		reopenDelay:       reopenDelay,
		settleDelay:       settleDelay,
		waitGroup:         waitGroup,
		inChan:            inChan,
		outChan:           outChan,
		reconnectChan:     reconnectChan,
	}
	pm.open = pm.openSerialPort
	return pm
}

func (pm *PortManager) Start(ctx context.Context) {
	pm.waitGroup.Add(1)
	go pm.loop(ctx)
}

func (pm *PortManager) loop(ctx context.Context) {
	var errorShown = false
	defer pm.waitGroup.Done()

	for {
		port, err := pm.open()
		if err != nil {
			if !errorShown {
				pm.logger.Error().Msgf("Failed opening port '%v'", err)
				errorShown = true
			}

			select {
			case <-ctx.Done():
				{
					pm.logger.Info().Msg("Stopping")
					return
				}
			case <-time.After(pm.reopenDelay):
				{
				}
			}
			continue
		}
		errorShown = false
		PortOpens.Inc()
		pm.logger.Info().Msg("Opened port")

		// The board resets when the port opens.
		select {
		case <-ctx.Done():
			pm.closePort(port)
			return
		case <-time.After(pm.settleDelay):
		}

		if !pm.serve(ctx, port) {
			return
		}
		pm.logger.Info().Msg("Reopening port")
	}
}

// serve runs the reader, writer and heartbeat on an open port. It reports
// false when ctx was cancelled and true when the port went away.
func (pm *PortManager) serve(ctx context.Context, port io.ReadWriteCloser) bool {
	portContext, portCancel := context.WithCancel(ctx)
	defer portCancel()

	beats := make(chan byte, 1)

	var portWaitGroup sync.WaitGroup
	portWaitGroup.Add(3)
	go pm.writer(portContext, port, beats, &portWaitGroup, portCancel)
	go pm.reader(portContext, port, &portWaitGroup, portCancel)
	go pm.heartbeat(portContext, beats, &portWaitGroup)

	select {
	case pm.reconnectChan <- struct{}{}:
	default:
	}

	<-portContext.Done()
	pm.closePort(port)
	portWaitGroup.Wait()

	if ctx.Err() != nil {
		pm.logger.Info().Msg("Done")
		return false
	}
	return true
}

func (pm *PortManager) closePort(port io.Closer) {
	if err := port.Close(); err != nil {
		pm.logger.Error().Msgf("Error closing port '%v'", err)
	}
}

func (pm *PortManager) writer(ctx context.Context, port io.Writer, beats <-chan byte, wg *sync.WaitGroup, portCancel context.CancelFunc) {
	buff := make([]byte, 1)
	defer wg.Done()

	write := func(toWrite byte) bool {
		buff[0] = toWrite
		_, err := port.Write(buff)
		if err != nil {
			pm.logger.Error().Msgf("Failed writing to port '%v'", err)
			portCancel()
			return false
		}
		SerialBytes.WithLabelValues("out").Inc()
		pm.logger.Trace().Msgf("Wrote byte '%v'", toWrite)
		return true
	}

	for {
		select {
		case toWrite, more := <-pm.outChan:
			{
				if !more {
					portCancel()
					return
				}
				if !write(toWrite) {
					return
				}
			}
		case beat := <-beats:
			{
				if !write(beat) {
					return
				}
			}
		case <-ctx.Done():
			{
				pm.logger.Debug().Msg("Writer done")
				return
			}
		}
	}
}

func (pm *PortManager) reader(ctx context.Context, port io.Reader, wg *sync.WaitGroup, portCancel context.CancelFunc) {
	buff := make([]byte, 100)
	defer wg.Done()
	defer portCancel()

	for {
		n, err := port.Read(buff)
		for i := 0; i < n; i++ {
			select {
			case pm.inChan <- buff[i]:
				SerialBytes.WithLabelValues("in").Inc()
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if ctx.Err() == nil {
				pm.logger.Info().Msgf("Done reading '%v'", err)
			}
			return
		}
		if n == 0 {
			pm.logger.Info().Msg("0 bytes to read, done reading")
			return
		}
	}
}

func (pm *PortManager) openSerialPort() (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: pm.baudRate,
	}
	port, err := serial.Open(pm.portName, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}
