package bench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnNames(t *testing.T) {
	assert.Equal(t, []string{
		"start_timestamp", "end_timestamp", "date", "height", "log2_work",
		"tx_total", "progress", "cache_size", "cache_count", "disk_load_time",
		"sanity_check_time", "fork_check_time", "tx_connect_count",
		"tx_connect_time", "txin_count", "txin_verify_time", "write_undo_time",
		"write_index_time", "connect_total_time", "flush_time",
		"write_chainstate_time", "postprocess_time", "connect_block_time",
	}, ColumnNames())

	assert.Len(t, (&BlockMetrics{}).Values(), len(Columns))
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		expect string
	}{
		{"unset timestamp", Timestamp{}, ""},
		{"timestamp", NewTimestamp(time.Date(2009, 1, 3, 18, 15, 5, 0, time.UTC)), "2009-01-03 18:15:05"},
		{"timestamp other zone", NewTimestamp(time.Date(2009, 1, 3, 19, 15, 5, 0, time.FixedZone("CET", 3600))), "2009-01-03 18:15:05"},
		{"uint", uint64(647), "647"},
		{"zero uint", uint64(0), "0"},
		{"float", 0.01, "0.01"},
		{"float trailing zero", 2.10, "2.1"},
		{"float many digits", 32.000022, "32.000022"},
		{"large float", 94.934882, "94.934882"},
		{"zero float", 0.0, "0"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expect, FormatCell(test.value))
		})
	}

	assert.Panics(t, func() { FormatCell("text") })
}

func TestBlockMetrics_Record(t *testing.T) {
	start, err := ParseLogTime("2024-07-19T06:25:30Z")
	require.NoError(t, err)

	block := &BlockMetrics{
		StartTimestamp:   start,
		Height:           840000,
		CacheSizeMiB:     0.3,
		TxConnectCount:   111,
		ConnectTotalTime: 0.09,
		ConnectBlockTime: 0.27,
	}

	record := block.Record()
	require.Len(t, record, 23)
	assert.Equal(t, "2024-07-19 06:25:30", record[0])
	assert.Equal(t, "", record[1])
	assert.Equal(t, "", record[2])
	assert.Equal(t, "840000", record[3])
	assert.Equal(t, "0.3", record[7])
	assert.Equal(t, "111", record[12])
	assert.Equal(t, "0.09", record[18])
	assert.Equal(t, "0.27", record[22])
}

func TestParseLogTime(t *testing.T) {
	ts, err := ParseLogTime("2009-01-03T18:15:05Z")
	require.NoError(t, err)

	value, ok := ts.Time()
	assert.True(t, ok)
	assert.Equal(t, int64(1231006505), value.Unix())

	_, err = ParseLogTime("2009-01-03 18:15:05")
	assert.Error(t, err)
}
