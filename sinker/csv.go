package sinker

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/pinax-network/ibd-bench-sql/bench"
	"go.uber.org/zap"
)

// CSVWriter writes one record per block after a header made of bench.Columns.
type CSVWriter struct {
	writer  *csv.Writer
	closer  io.Closer
	path    string
	rows    uint64
	pending int

	flushEvery int
	logger     *zap.Logger
}

// NewCSVWriter writes the header to out right away. flushEvery is the number of rows
// buffered before the sinker asks for a flush, 0 means only at the end.
func NewCSVWriter(out io.Writer, flushEvery int, logger *zap.Logger) (*CSVWriter, error) {
	w := &CSVWriter{
		writer:     csv.NewWriter(out),
		flushEvery: flushEvery,
		logger:     logger,
	}

	if c, ok := out.(io.Closer); ok {
		w.closer = c
	}

	if err := w.writer.Write(bench.ColumnNames()); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	return w, nil
}

func CreateCSVFile(path string, flushEvery int, logger *zap.Logger) (*CSVWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	w, err := NewCSVWriter(file, flushEvery, logger)
	if err != nil {
		file.Close()
		return nil, err
	}
	w.path = path

	logger.Info("writing blocks to csv file", zap.String("path", path))
	return w, nil
}

func (w *CSVWriter) Path() string {
	return w.path
}

func (w *CSVWriter) Rows() uint64 {
	return w.rows
}

func (w *CSVWriter) WriteBlock(_ context.Context, block *bench.BlockMetrics) error {
	if err := w.writer.Write(block.Record()); err != nil {
		return fmt.Errorf("write csv record: %w", err)
	}
	w.rows++
	w.pending++
	return nil
}

func (w *CSVWriter) FlushNeeded() bool {
	return w.flushEvery > 0 && w.pending >= w.flushEvery
}

func (w *CSVWriter) Flush(_ context.Context) (int, error) {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}

	flushed := w.pending
	w.pending = 0
	return flushed, nil
}

func (w *CSVWriter) Close() error {
	if _, err := w.Flush(context.Background()); err != nil {
		return err
	}

	if w.closer != nil {
		if err := w.closer.Close(); err != nil {
			return fmt.Errorf("close csv output: %w", err)
		}
	}
	return nil
}
