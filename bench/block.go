package bench

import (
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
)

// LogTimeLayout is the layout of every timestamp found in a node's debug.log.
const LogTimeLayout = "2006-01-02T15:04:05Z"

// CellTimeLayout is the layout used when rendering timestamps into tabular outputs.
const CellTimeLayout = "2006-01-02 15:04:05"

// Timestamp is a wall-clock time that knows whether it was ever set.
type Timestamp struct {
	time  time.Time
	valid bool
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{time: t.UTC(), valid: true}
}

func ParseLogTime(value string) (Timestamp, error) {
	t, err := time.ParseInLocation(LogTimeLayout, value, time.UTC)
	if err != nil {
		return Timestamp{}, err
	}
	return NewTimestamp(t), nil
}

func (t Timestamp) IsSet() bool {
	return t.valid
}

func (t Timestamp) Time() (time.Time, bool) {
	return t.time, t.valid
}

// String renders the timestamp with CellTimeLayout, an unset timestamp renders as "".
func (t Timestamp) String() string {
	if !t.valid {
		return ""
	}
	return t.time.Format(CellTimeLayout)
}

// BlockMetrics holds everything the node reported about the connection of a single block.
type BlockMetrics struct {
	// Line timestamps of the disk load line and of the grand total line
	StartTimestamp Timestamp
	EndTimestamp   Timestamp

	// Block metadata from 'UpdateTip' lines
	Date         Timestamp
	Height       uint64
	Log2Work     float64
	TxTotal      uint64
	Progress     float64
	CacheSizeMiB float64
	CacheCount   uint64

	// Durations are in milliseconds, as printed by the node
	DiskLoadTime    float64
	SanityCheckTime float64
	ForkCheckTime   float64
	TxConnectCount  uint64
	TxConnectTime   float64
	TxinCount       uint64
	TxinVerifyTime  float64
	WriteUndoTime   float64
	WriteIndexTime  float64

	// ConnectTotalTime is the subtotal printed as "Connect total", it excludes postprocessing.
	ConnectTotalTime    float64
	FlushTime           float64
	WriteChainstateTime float64
	PostprocessTime     float64

	// ConnectBlockTime is the grand total, postprocessing included.
	ConnectBlockTime float64
}

type ColumnKind int

const (
	ColumnKindTimestamp ColumnKind = iota
	ColumnKindUint
	ColumnKindFloat
)

func (k ColumnKind) String() string {
	switch k {
	case ColumnKindTimestamp:
		return "timestamp"
	case ColumnKindUint:
		return "uint"
	case ColumnKindFloat:
		return "float"
	}
	return "unknown"
}

type Column struct {
	Name string
	Kind ColumnKind
}

// Columns is the fixed output layout, order is significant.
var Columns = []Column{
	{"start_timestamp", ColumnKindTimestamp},
	{"end_timestamp", ColumnKindTimestamp},
	{"date", ColumnKindTimestamp},
	{"height", ColumnKindUint},
	{"log2_work", ColumnKindFloat},
	{"tx_total", ColumnKindUint},
	{"progress", ColumnKindFloat},
	{"cache_size", ColumnKindFloat},
	{"cache_count", ColumnKindUint},
	{"disk_load_time", ColumnKindFloat},
	{"sanity_check_time", ColumnKindFloat},
	{"fork_check_time", ColumnKindFloat},
	{"tx_connect_count", ColumnKindUint},
	{"tx_connect_time", ColumnKindFloat},
	{"txin_count", ColumnKindUint},
	{"txin_verify_time", ColumnKindFloat},
	{"write_undo_time", ColumnKindFloat},
	{"write_index_time", ColumnKindFloat},
	{"connect_total_time", ColumnKindFloat},
	{"flush_time", ColumnKindFloat},
	{"write_chainstate_time", ColumnKindFloat},
	{"postprocess_time", ColumnKindFloat},
	{"connect_block_time", ColumnKindFloat},
}

func ColumnNames() []string {
	names := make([]string, len(Columns))
	for i, column := range Columns {
		names[i] = column.Name
	}
	return names
}

// Values returns the fields in Columns order. Timestamps are Timestamp, counters are
// uint64 and durations float64.
func (b *BlockMetrics) Values() []any {
	return []any{
		b.StartTimestamp,
		b.EndTimestamp,
		b.Date,
		b.Height,
		b.Log2Work,
		b.TxTotal,
		b.Progress,
		b.CacheSizeMiB,
		b.CacheCount,
		b.DiskLoadTime,
		b.SanityCheckTime,
		b.ForkCheckTime,
		b.TxConnectCount,
		b.TxConnectTime,
		b.TxinCount,
		b.TxinVerifyTime,
		b.WriteUndoTime,
		b.WriteIndexTime,
		b.ConnectTotalTime,
		b.FlushTime,
		b.WriteChainstateTime,
		b.PostprocessTime,
		b.ConnectBlockTime,
	}
}

// Record renders the fields as text cells in Columns order.
func (b *BlockMetrics) Record() []string {
	values := b.Values()
	record := make([]string, len(values))
	for i, value := range values {
		record[i] = FormatCell(value)
	}
	return record
}

func FormatCell(value any) string {
	switch v := value.(type) {
	case Timestamp:
		return v.String()
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	panic("unsupported cell value type")
}

func (b *BlockMetrics) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint64("height", b.Height)
	encoder.AddString("start", b.StartTimestamp.String())
	encoder.AddString("end", b.EndTimestamp.String())
	encoder.AddFloat64("connect_block_time_ms", b.ConnectBlockTime)
	return nil
}
