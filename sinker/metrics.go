package sinker

import (
	"github.com/streamingfast/dmetrics"
)

func RegisterMetrics() {
	metrics.Register()
}

var metrics = dmetrics.NewSet()

var LinesReadCount = metrics.NewCounter("ibd_bench_sql_lines_read_count", "The number of debug.log lines read so far")
var LinesRecognizedCount = metrics.NewCounter("ibd_bench_sql_lines_recognized_count", "The number of debug.log lines that updated a block")
var BlockCount = metrics.NewCounter("ibd_bench_sql_block_count", "The number of blocks written to the sinks")
var DroppedBlockCount = metrics.NewCounter("ibd_bench_sql_dropped_block_count", "The number of incomplete blocks dropped at the end of a log")

var FlushCount = metrics.NewCounter("ibd_bench_sql_store_flush_count", "The amount of flush that happened so far")
var FlushedRowsCount = metrics.NewCounter("ibd_bench_sql_flushed_rows_count", "The number of flushed rows so far")
var FlushDuration = metrics.NewCounter("ibd_bench_sql_store_flush_duration", "The amount of time spent flushing rows to the sinks (in nanoseconds)")

var HeadBlockNumber = metrics.NewHeadBlockNumber("ibd_bench_sql")
