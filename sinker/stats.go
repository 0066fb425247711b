package sinker

import (
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

type Average struct {
	Duration   []time.Duration
	windowSize int
	title      string
	lastX      int
}

func NewAverage(title string, windowSize int, lastX int) *Average {
	return &Average{
		title:      title,
		windowSize: windowSize,
		lastX:      lastX,
	}
}

func (a *Average) Add(d time.Duration) {
	a.Duration = append(a.Duration, d)
	if len(a.Duration) > a.windowSize {
		a.Duration = a.Duration[1:]
	}
}

func (a *Average) Average() time.Duration {
	if len(a.Duration) == 0 {
		return 0
	}
	var total int64
	for _, d := range a.Duration {
		total += d.Nanoseconds()
	}
	return time.Duration(total / int64(len(a.Duration)))
}

func (a *Average) LastItemsAverage(count int) time.Duration {
	if len(a.Duration) == 0 {
		return 0
	}
	if count <= 0 || count > len(a.Duration) {
		count = len(a.Duration)
	}
	var total int64
	for _, d := range a.Duration[len(a.Duration)-count:] {
		total += d.Nanoseconds()
	}
	return time.Duration(total / int64(count))
}

func (a *Average) Log(logger *zap.Logger) {
	logger.Info(a.title, zap.Duration("average", a.Average()), zap.Duration("last X average", a.LastItemsAverage(a.lastX)))
}

// Stats tracks what went through the sinks. It is not safe for concurrent use, the
// sinker drives it from its single processing loop.
type Stats struct {
	logger               *zap.Logger
	BlockCount           uint64
	LastHeight           uint64
	StartedAt            time.Time
	ConnectBlockDuration *Average
	SinkWriteDuration    *Average
	FlushDuration        *Average
	TotalSinkDuration    time.Duration
}

func NewStats(logger *zap.Logger) *Stats {
	return &Stats{
		logger:               logger,
		StartedAt:            time.Now(),
		ConnectBlockDuration: NewAverage("  Node Connect Block Duration", 250_000, 1000),
		SinkWriteDuration:    NewAverage("     Sink Write Duration", 250_000, 1000),
		FlushDuration:        NewAverage("          Flush duration", 1000, 10),
	}
}

// AddBlock records a block written to the sinks. connectBlockTime is the node's own
// grand total in milliseconds.
func (s *Stats) AddBlock(height uint64, connectBlockTime float64, took time.Duration) {
	s.BlockCount++
	s.LastHeight = height
	s.ConnectBlockDuration.Add(time.Duration(connectBlockTime * float64(time.Millisecond)))
	s.SinkWriteDuration.Add(took)
	s.TotalSinkDuration += took
}

func (s *Stats) Log() {
	if s.BlockCount == 0 {
		s.logger.Info("no blocks processed yet")
		return
	}

	elapsed := time.Since(s.StartedAt)
	blocksPerSecond := float64(s.BlockCount) / elapsed.Seconds()

	s.logger.Info("-----------------------------------")
	s.logger.Info("Stats",
		zap.String("block_count", humanize.Comma(int64(s.BlockCount))),
		zap.Uint64("last_height", s.LastHeight),
		zap.Duration("elapsed", elapsed),
		zap.String("blocks_per_second", humanize.FormatFloat("#,###.##", blocksPerSecond)),
		zap.Duration("total_sink_duration", s.TotalSinkDuration),
	)
	s.ConnectBlockDuration.Log(s.logger)
	s.SinkWriteDuration.Log(s.logger)
	s.FlushDuration.Log(s.logger)
	s.logger.Info("-----------------------------------")
}
