package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/silash35/labrob/pinout"
)

func main() {

	rootLogger := ptr(log.With().Logger())

	portName, configPath := splitArgs(os.Args[1:])

	config, err := LoadConfiguration(configPath)
	if err != nil {
		rootLogger.Fatal().Err(err).Msg("Invalid configuration")
	}
	if portName != "" {
		config.PortName = portName
	}
	if config.PortName == "" {
		rootLogger.Fatal().Msg("Usage: capcounter [port] [config.ini], the port may come from [serial] port")
	}
	zerolog.SetGlobalLevel(config.LogLevel)

	rootLogger = ptr(rootLogger.With().Str(LogKey.Port, config.PortName).Logger())
	logger := ptr(rootLogger.With().Str(LogKey.Module, "Main").Logger())

	if err := pinout.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Inconsistent pinout")
	}
	logger.Info().Msg("Starting cap counter")

	ctx, cancel := context.WithCancel(context.Background())

	inChan := make(chan byte, 10)
	outChan := make(chan byte, 10)
	selectChan := make(chan pinout.Category, 4)
	reconnectChan := make(chan struct{}, 1)

	waitGroup := &sync.WaitGroup{}
	tally := NewTally()
	publisher := NewPublisher(rootLogger, config.Mqtt)

	portManager := NewPortManager(rootLogger, config, inChan, outChan, reconnectChan, waitGroup)
	portManager.Start(ctx)

	restAPI := NewRestApi(rootLogger, config.HttpAddress, outChan, selectChan, tally, waitGroup)
	restAPI.Start(ctx)

	sortProcessor := NewSortProcessor(rootLogger, inChan, outChan, selectChan, reconnectChan, tally, publisher, waitGroup)
	sortProcessor.Start(ctx)

	waitForSignal()
	cancel()
	waitGroup.Wait()
	publisher.Close()

	close(inChan)
	close(outChan)
	close(selectChan)
	logger.Info().Msg("Done")
}

func waitForSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
}

// splitArgs tells the config file (*.ini) apart from the port name.
func splitArgs(args []string) (portName string, configPath string) {
	for _, arg := range args {
		if strings.HasSuffix(strings.ToLower(arg), ".ini") {
			configPath = arg
		} else {
			portName = arg
		}
	}
	return portName, configPath
}
