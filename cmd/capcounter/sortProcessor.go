package main

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/silash35/labrob/pinout"
)

const (
	sourceButton = "button"
	sourceApi    = "api"
)

// SortProcessor turns board input into category selections and cap counts,
// and drives the LEDs and LCD selector to match.
type SortProcessor struct {
	logger     *zerolog.Logger
	inChan     <-chan byte
	outChan    chan<- byte
	selectChan <-chan pinout.Category
	reconnect  <-chan struct{}
	tally      *Tally
	publisher  Publisher
	waitGroup  *sync.WaitGroup

	selected    pinout.Category
	hasSelected bool
}

func NewSortProcessor(logger *zerolog.Logger, inChan <-chan byte, outChan chan<- byte, selectChan <-chan pinout.Category,
	reconnect <-chan struct{}, tally *Tally, publisher Publisher, waitGroup *sync.WaitGroup) *SortProcessor {
	return &SortProcessor{
		logger:     ptr(logger.With().Str(LogKey.Module, "SortProcessor").Logger()),
		inChan:     inChan,
		outChan:    outChan,
		selectChan: selectChan,
		reconnect:  reconnect,
		tally:      tally,
		publisher:  publisher,
		waitGroup:  waitGroup,
	}
}

func (sp *SortProcessor) Start(ctx context.Context) {
	sp.waitGroup.Add(1)
	go sp.loop(ctx)
}

func (sp *SortProcessor) loop(ctx context.Context) {
	defer sp.waitGroup.Done()
	sp.logger.Info().Msg("Starting")

	sp.initLeds(ctx)

	for {
		select {
		case <-ctx.Done():
			{
				sp.logger.Info().Msg("Done")
				return
			}
		case category, more := <-sp.selectChan:
			{
				if !more {
					sp.logger.Info().Msg("No more selections")
					return
				}
				sp.selectCategory(ctx, category, sourceApi)
			}
		case <-sp.reconnect:
			{
				sp.resync(ctx)
			}
		case readByte, more := <-sp.inChan:
			{
				if !more {
					sp.logger.Info().Msg("No more input")
					return
				}
				sp.handleInput(ctx, readByte)
			}
		}
	}
}

func (sp *SortProcessor) initLeds(ctx context.Context) {
	for _, category := range pinout.Categories() {
		sp.send(ctx, ledByte(category.LED(), false))
	}
}

func (sp *SortProcessor) handleInput(ctx context.Context, readByte byte) {
	pin, released := decodeInput(readByte)
	if released {
		return
	}

	if pin == pinout.INFRARED_PIN {
		sp.countCap()
		return
	}

	category, ok := pinout.CategoryForButton(pin)
	if !ok {
		sp.logger.Debug().Msgf("Ignoring byte '%v'", readByte)
		return
	}
	sp.selectCategory(ctx, category, sourceButton)
}

func (sp *SortProcessor) selectCategory(ctx context.Context, category pinout.Category, source string) {
	sp.selected = category
	sp.hasSelected = true
	CategorySelections.WithLabelValues(category.String(), source).Inc()
	sp.logger.Info().Str(LogKey.Category, category.String()).Msgf("Selected from %s", source)

	sp.showSelection(ctx)
}

func (sp *SortProcessor) showSelection(ctx context.Context) {
	for _, c := range pinout.Categories() {
		sp.send(ctx, ledByte(c.LED(), c == sp.selected))
	}
	sp.send(ctx, sp.selected.LCD())
}

// resync replays the LED and LCD state to a board that has just reset.
func (sp *SortProcessor) resync(ctx context.Context) {
	if !sp.hasSelected {
		sp.logger.Info().Msg("Board reconnected, no selection to restore")
		sp.initLeds(ctx)
		return
	}
	sp.logger.Info().Str(LogKey.Category, sp.selected.String()).Msg("Board reconnected, restoring selection")
	sp.showSelection(ctx)
}

func (sp *SortProcessor) countCap() {
	if !sp.hasSelected {
		CapsCounted.WithLabelValues(unsortedLabel).Inc()
		sp.logger.Warn().Msg("Cap detected with no category selected")
		return
	}

	count := sp.tally.Add(sp.selected)
	CapsCounted.WithLabelValues(sp.selected.String()).Inc()
	sp.logger.Debug().Str(LogKey.Category, sp.selected.String()).Msgf("Cap counted, now %d", count)
	sp.publisher.Publish(sp.selected, count, sp.tally.Total())
}

func (sp *SortProcessor) send(ctx context.Context, b byte) {
	select {
	case sp.outChan <- b:
	case <-ctx.Done():
	}
}

func decodeInput(b byte) (pin byte, released bool) {
	return b &^ pinout.ReleaseBit, b&pinout.ReleaseBit != 0
}

func ledByte(pin byte, on bool) byte {
	if on {
		return pin
	}
	return pin | pinout.ReleaseBit
}
