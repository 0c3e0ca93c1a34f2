package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dkalman/futuresbot/internal/domain"
)

// Archiver moves trades older than the retention window out of the primary
// store into object storage as JSONL, then deletes them from PostgreSQL.
// The upload happens first; rows are only deleted once the archive is
// durable.
type Archiver struct {
	writer    *Writer
	trades    domain.TradeStore
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewArchiver creates an Archiver that keeps retentionDays of trades online.
func NewArchiver(writer *Writer, trades domain.TradeStore, retentionDays int, logger *slog.Logger) *Archiver {
	if retentionDays < 1 {
		retentionDays = 30
	}
	return &Archiver{
		writer:    writer,
		trades:    trades,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger.With(slog.String("component", "trade_archiver")),
		now:       time.Now,
	}
}

// Run archives on the given interval until ctx is cancelled. A failed cycle
// is logged and retried on the next tick; nothing is lost, the rows simply
// stay in PostgreSQL.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.ArchiveOnce(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive cycle failed",
					slog.String("error", err.Error()))
			}
		}
	}
}

// ArchiveOnce archives and prunes everything older than the retention window
// and returns the number of trades moved.
func (a *Archiver) ArchiveOnce(ctx context.Context) (int64, error) {
	cutoff := a.now().UTC().Add(-a.retention)

	trades, err := a.trades.ListBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	path := archivePath(cutoff)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	deleted, err := a.trades.DeleteBefore(ctx, cutoff)
	if err != nil {
		// The upload succeeded; next cycle re-uploads the same rows, which
		// is safe since the object key is deterministic.
		return 0, fmt.Errorf("s3blob: archive prune: %w", err)
	}

	a.logger.InfoContext(ctx, "trades archived",
		slog.String("path", path),
		slog.Int("archived", len(trades)),
		slog.Int64("deleted", deleted))
	return int64(len(trades)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time:
//
//	archive/trades/2026-08.jsonl
func archivePath(cutoff time.Time) string {
	return fmt.Sprintf("archive/trades/%s.jsonl", cutoff.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
