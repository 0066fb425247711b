package sinker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pinax-network/ibd-bench-sql/bench"
	"github.com/streamingfast/logging"
	"github.com/streamingfast/shutter"
	"go.uber.org/zap"
)

var ErrInputNotFound = errors.New("input not found")

// InputNotFoundError matches ErrInputNotFound with errors.Is.
type InputNotFoundError struct {
	Path string
}

func (e *InputNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInputNotFound, e.Path)
}

func (e *InputNotFoundError) Unwrap() error {
	return ErrInputNotFound
}

// CheckInput verifies inputPath exists, commands call it before creating any output.
func CheckInput(inputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &InputNotFoundError{Path: inputPath}
		}
		return fmt.Errorf("stat input: %w", err)
	}
	return nil
}

// Flusher is implemented by sinks buffering rows, the sinker flushes them when they ask
// for it and once at the end of the log.
type Flusher interface {
	FlushNeeded() bool
	Flush(ctx context.Context) (int, error)
}

type Sinker struct {
	*shutter.Shutter

	extractor     *bench.Extractor
	sinks         []bench.Sink
	stats         *Stats
	statsInterval uint64

	logger *zap.Logger
	tracer logging.Tracer
}

// New creates a sinker writing every block to all sinks, in order. Stats are logged every
// statsInterval blocks, 0 disables periodic logging.
func New(sinks []bench.Sink, statsInterval uint64, logger *zap.Logger, tracer logging.Tracer) *Sinker {
	return &Sinker{
		Shutter:       shutter.New(),
		extractor:     bench.NewExtractor(logger, tracer),
		sinks:         sinks,
		stats:         NewStats(logger),
		statsInterval: statsInterval,
		logger:        logger,
		tracer:        tracer,
	}
}

func (s *Sinker) Stats() *Stats {
	return s.stats
}

// Run processes the log at inputPath from start to end. A missing input is reported
// with ErrInputNotFound.
func (s *Sinker) Run(ctx context.Context, inputPath string) (*bench.Summary, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &InputNotFoundError{Path: inputPath}
		}
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	fields := []zap.Field{zap.String("path", inputPath)}
	if info, err := file.Stat(); err == nil {
		fields = append(fields, zap.String("size", humanize.Bytes(uint64(info.Size()))))
	}
	s.logger.Info("processing debug log", fields...)

	summary, err := s.extractor.Run(ctx, file, s)
	if summary != nil {
		LinesReadCount.AddInt64(int64(summary.LinesRead))
		LinesRecognizedCount.AddInt64(int64(summary.LinesRecognized))
		if summary.DanglingDropped {
			DroppedBlockCount.Inc()
		}
	}
	if err != nil {
		return summary, fmt.Errorf("extract blocks: %w", err)
	}

	if err := s.flush(ctx, true); err != nil {
		return summary, err
	}

	s.stats.Log()
	s.logger.Info("debug log processed", zap.Object("summary", summary))
	return summary, nil
}

// WriteBlock implements bench.Sink by fanning the block out to every sink.
func (s *Sinker) WriteBlock(ctx context.Context, block *bench.BlockMetrics) error {
	start := time.Now()
	for _, sink := range s.sinks {
		if err := sink.WriteBlock(ctx, block); err != nil {
			return err
		}
	}
	s.stats.AddBlock(block.Height, block.ConnectBlockTime, time.Since(start))

	BlockCount.Inc()
	HeadBlockNumber.SetUint64(block.Height)

	if s.tracer.Enabled() {
		s.logger.Debug("block written", zap.Object("block", block))
	}

	if err := s.flush(ctx, false); err != nil {
		return err
	}

	if s.statsInterval > 0 && s.stats.BlockCount%s.statsInterval == 0 {
		s.stats.Log()
	}
	return nil
}

func (s *Sinker) flush(ctx context.Context, force bool) error {
	for _, sink := range s.sinks {
		flusher, ok := sink.(Flusher)
		if !ok {
			continue
		}
		if !force && !flusher.FlushNeeded() {
			continue
		}

		start := time.Now()
		rows, err := flusher.Flush(ctx)
		if err != nil {
			return fmt.Errorf("flush: %w", err)
		}
		took := time.Since(start)

		FlushCount.Inc()
		FlushedRowsCount.AddInt(rows)
		FlushDuration.AddInt64(took.Nanoseconds())
		s.stats.FlushDuration.Add(took)
	}
	return nil
}
