package bench

import (
	"regexp"
	"strconv"
)

const timestampPattern = `\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z`

// Trailing "[<total>s (<average>ms/blk)]" running totals printed after most bench timings,
// they are validated but not retained.
const runningTotalPattern = ` \[\d+\.\d+s \(\d+\.\d+ms/blk\)\]`

var (
	timestampRegex = regexp.MustCompile(`^` + timestampPattern)
	benchRegex     = regexp.MustCompile(`^` + timestampPattern + ` \[bench\]`)

	// 2024-07-19T06:20:15Z UpdateTip: new best=000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f height=0 version=0x00000001 log2_work=32.000022 tx=1 date='2009-01-03T18:15:05Z' progress=0.000000 cache=0.3MiB(0txo)
	updateTipRegex = regexp.MustCompile(`^` + timestampPattern +
		` UpdateTip: new best=(?P<hash>[0-9a-f]{64})` +
		` height=(?P<height>\d+)` +
		` version=(?P<version>0x[0-9a-f]+)` +
		` log2_work=(?P<log2_work>\d+\.\d+)` +
		` tx=(?P<tx_total>\d+)` +
		` date='(?P<date>` + timestampPattern + `)'` +
		` progress=(?P<progress>\d+\.\d+)` +
		` cache=(?P<cache_size>\d+\.\d+)MiB\((?P<cache_count>\d+)txo\)`,
	)

	updateTipHeight     = updateTipRegex.SubexpIndex("height")
	updateTipLog2Work   = updateTipRegex.SubexpIndex("log2_work")
	updateTipTxTotal    = updateTipRegex.SubexpIndex("tx_total")
	updateTipDate       = updateTipRegex.SubexpIndex("date")
	updateTipProgress   = updateTipRegex.SubexpIndex("progress")
	updateTipCacheSize  = updateTipRegex.SubexpIndex("cache_size")
	updateTipCacheCount = updateTipRegex.SubexpIndex("cache_count")
)

// applyFunc copies the captured values of match into block. It returns false, leaving
// block untouched, when a capture does not convert.
type applyFunc func(block *BlockMetrics, match []string, at Timestamp) bool

type recognizer struct {
	name  string
	regex *regexp.Regexp
	apply applyFunc

	// emit marks the terminal line of a block.
	emit bool
}

// benchRecognizers are tried in order against the part of a '[bench]' line following
// the marker, the first one matching wins. Labels differ by indentation depth so the
// order must be kept.
var benchRecognizers = []*recognizer{
	{
		// [bench]   - Load block from disk: 0.01ms
		name:  "disk_load",
		regex: regexp.MustCompile(`   - Load block from disk: (\d+\.\d+)ms`),
		apply: func(block *BlockMetrics, match []string, at Timestamp) bool {
			if !setFloat(&block.DiskLoadTime, match[1]) {
				return false
			}
			block.StartTimestamp = at
			return true
		},
	},
	{
		// [bench]     - Sanity checks: 0.01ms [1.34s (0.01ms/blk)]
		name:  "sanity_check",
		regex: timingRegex(`     - Sanity checks: `),
		apply: timing(func(b *BlockMetrics) *float64 { return &b.SanityCheckTime }),
	},
	{
		// [bench]     - Fork checks: 1.12ms [58.31s (0.29ms/blk)]
		name:  "fork_check",
		regex: timingRegex(`     - Fork checks: `),
		apply: timing(func(b *BlockMetrics) *float64 { return &b.ForkCheckTime }),
	},
	{
		// [bench]       - Connect 111 transactions: 2.10ms (0.019ms/tx, 0.003ms/txin) [34.25s (0.17ms/blk)]
		name: "tx_connect",
		regex: regexp.MustCompile(`       - Connect (\d+) transactions: (\d+\.\d+)ms` +
			` \(\d+\.\d+ms/tx, \d+\.\d+ms/txin\)` + runningTotalPattern),
		apply: countedTiming(
			func(b *BlockMetrics) *uint64 { return &b.TxConnectCount },
			func(b *BlockMetrics) *float64 { return &b.TxConnectTime },
		),
	},
	{
		// [bench]     - Verify 647 txins: 2.12ms (0.003ms/txin) [36.44s (0.18ms/blk)]
		name: "txin",
		regex: regexp.MustCompile(`     - Verify (\d+) txins: (\d+\.\d+)ms` +
			` \(\d+\.\d+ms/txin\)` + runningTotalPattern),
		apply: countedTiming(
			func(b *BlockMetrics) *uint64 { return &b.TxinCount },
			func(b *BlockMetrics) *float64 { return &b.TxinVerifyTime },
		),
	},
	{
		// [bench]     - Write undo data: 0.01ms [0.00s (0.01ms/blk)]
		name:  "write_undo",
		regex: timingRegex(`     - Write undo data: `),
		apply: timing(func(b *BlockMetrics) *float64 { return &b.WriteUndoTime }),
	},
	{
		// [bench]     - Index writing: 0.01ms [0.00s (0.01ms/blk)]
		name:  "write_index",
		regex: timingRegex(`     - Index writing: `),
		apply: timing(func(b *BlockMetrics) *float64 { return &b.WriteIndexTime }),
	},
	{
		// Subtotal, postprocessing excluded.
		// [bench]   - Connect total: 0.09ms [0.01s (0.09ms/blk)]
		name:  "connect_total",
		regex: timingRegex(`   - Connect total: `),
		apply: timing(func(b *BlockMetrics) *float64 { return &b.ConnectTotalTime }),
	},
	{
		// [bench]   - Flush: 0.01ms [0.00s (0.01ms/blk)]
		name:  "flush",
		regex: timingRegex(`   - Flush: `),
		apply: timing(func(b *BlockMetrics) *float64 { return &b.FlushTime }),
	},
	{
		// [bench]   - Writing chainstate: 0.01ms [0.00s (0.01ms/blk)]
		name:  "write_chainstate",
		regex: timingRegex(`   - Writing chainstate: `),
		apply: timing(func(b *BlockMetrics) *float64 { return &b.WriteChainstateTime }),
	},
	{
		// [bench]   - Connect postprocess: 0.07ms [0.00s (0.07ms/blk)]
		name:  "postprocess",
		regex: timingRegex(`   - Connect postprocess: `),
		apply: timing(func(b *BlockMetrics) *float64 { return &b.PostprocessTime }),
	},
	{
		// Grand total, last line printed for a block.
		// [bench] - Connect block: 0.27ms [0.00s (0.27ms/blk)]
		name:  "connect_block",
		regex: timingRegex(` - Connect block: `),
		apply: func(block *BlockMetrics, match []string, at Timestamp) bool {
			if !setFloat(&block.ConnectBlockTime, match[1]) {
				return false
			}
			block.EndTimestamp = at
			return true
		},
		emit: true,
	},
}

func timingRegex(label string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(label) + `(\d+\.\d+)ms` + runningTotalPattern)
}

func timing(field func(*BlockMetrics) *float64) applyFunc {
	return func(block *BlockMetrics, match []string, _ Timestamp) bool {
		return setFloat(field(block), match[1])
	}
}

func countedTiming(count func(*BlockMetrics) *uint64, duration func(*BlockMetrics) *float64) applyFunc {
	return func(block *BlockMetrics, match []string, _ Timestamp) bool {
		n, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			return false
		}
		d, err := strconv.ParseFloat(match[2], 64)
		if err != nil {
			return false
		}

		*count(block) = n
		*duration(block) = d
		return true
	}
}

func setFloat(dst *float64, value string) bool {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false
	}
	*dst = v
	return true
}

func applyUpdateTip(block *BlockMetrics, match []string) bool {
	height, err := strconv.ParseUint(match[updateTipHeight], 10, 64)
	if err != nil {
		return false
	}
	log2Work, err := strconv.ParseFloat(match[updateTipLog2Work], 64)
	if err != nil {
		return false
	}
	txTotal, err := strconv.ParseUint(match[updateTipTxTotal], 10, 64)
	if err != nil {
		return false
	}
	date, err := ParseLogTime(match[updateTipDate])
	if err != nil {
		return false
	}
	progress, err := strconv.ParseFloat(match[updateTipProgress], 64)
	if err != nil {
		return false
	}
	cacheSize, err := strconv.ParseFloat(match[updateTipCacheSize], 64)
	if err != nil {
		return false
	}
	cacheCount, err := strconv.ParseUint(match[updateTipCacheCount], 10, 64)
	if err != nil {
		return false
	}

	block.Height = height
	block.Log2Work = log2Work
	block.TxTotal = txTotal
	block.Date = date
	block.Progress = progress
	block.CacheSizeMiB = cacheSize
	block.CacheCount = cacheCount
	return true
}
