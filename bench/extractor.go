package bench

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/streamingfast/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink receives every completed block, in log order.
type Sink interface {
	WriteBlock(ctx context.Context, block *BlockMetrics) error
}

type SinkFunc func(ctx context.Context, block *BlockMetrics) error

func (f SinkFunc) WriteBlock(ctx context.Context, block *BlockMetrics) error {
	return f(ctx, block)
}

// Accumulator classifies log lines one at a time and accumulates their fields into the
// block currently being connected.
type Accumulator struct {
	current BlockMetrics
	touched bool
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Feed classifies line. When line is the grand total of the current block, the
// completed block is returned and a fresh one starts. recognized reports whether any
// shape matched and updated the current block.
func (a *Accumulator) Feed(line string) (completed *BlockMetrics, recognized bool, shape string) {
	prefix := timestampRegex.FindString(line)
	if prefix == "" {
		return nil, false, ""
	}

	at, err := ParseLogTime(prefix)
	if err != nil {
		// Shaped like a timestamp but not a valid date (month 13, ...)
		return nil, false, ""
	}

	if loc := benchRegex.FindStringIndex(line); loc != nil {
		rest := line[loc[1]:]
		for _, r := range benchRecognizers {
			match := r.regex.FindStringSubmatch(rest)
			if match == nil {
				continue
			}
			if !r.apply(&a.current, match, at) {
				continue
			}

			if !r.emit {
				a.touched = true
				return nil, true, r.name
			}

			block := a.current
			a.current = BlockMetrics{}
			a.touched = false
			return &block, true, r.name
		}

		return nil, false, ""
	}

	if match := updateTipRegex.FindStringSubmatch(line); match != nil {
		if applyUpdateTip(&a.current, match) {
			a.touched = true
			return nil, true, "update_tip"
		}
	}

	return nil, false, ""
}

// Pending returns the block being accumulated and whether any line contributed to it yet.
func (a *Accumulator) Pending() (BlockMetrics, bool) {
	return a.current, a.touched
}

type Summary struct {
	LinesRead       uint64
	LinesRecognized uint64
	BlocksEmitted   uint64

	// DanglingDropped is true when the log ended in the middle of a block.
	DanglingDropped bool
}

func (s *Summary) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint64("lines_read", s.LinesRead)
	encoder.AddUint64("lines_recognized", s.LinesRecognized)
	encoder.AddUint64("blocks_emitted", s.BlocksEmitted)
	encoder.AddBool("dangling_dropped", s.DanglingDropped)
	return nil
}

type Extractor struct {
	logger *zap.Logger
	tracer logging.Tracer
}

func NewExtractor(logger *zap.Logger, tracer logging.Tracer) *Extractor {
	return &Extractor{
		logger: logger,
		tracer: tracer,
	}
}

// Run reads the whole log from reader, handing each completed block to sink. A block
// still being accumulated when the log ends is dropped.
func (e *Extractor) Run(ctx context.Context, reader io.Reader, sink Sink) (*Summary, error) {
	in := bufio.NewReaderSize(reader, 64*1024)
	accumulator := NewAccumulator()
	summary := &Summary{}

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		line, readErr := in.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return summary, fmt.Errorf("read line %d: %w", summary.LinesRead+1, readErr)
		}

		if len(line) > 0 {
			summary.LinesRead++

			block, recognized, shape := accumulator.Feed(strings.TrimRight(line, "\r\n"))
			if recognized {
				summary.LinesRecognized++
				if e.tracer.Enabled() {
					e.logger.Debug("recognized line", zap.Uint64("line", summary.LinesRead), zap.String("shape", shape))
				}
			}

			if block != nil {
				if err := sink.WriteBlock(ctx, block); err != nil {
					return summary, fmt.Errorf("write block at line %d: %w", summary.LinesRead, err)
				}
				summary.BlocksEmitted++
			}
		}

		if readErr != nil {
			break
		}
	}

	if pending, touched := accumulator.Pending(); touched {
		summary.DanglingDropped = true
		e.logger.Warn("log ended before the block being connected completed, dropping it",
			zap.Uint64("height", pending.Height),
			zap.Stringer("start_timestamp", pending.StartTimestamp),
		)
	}

	return summary, nil
}
