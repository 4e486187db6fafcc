package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tontine/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"
	// multipartThreshold switches uploads to the multipart manager.
	multipartThreshold = 8 * 1024 * 1024
	// SystemUserID owns journal entries written by background jobs.
	SystemUserID = "system"
)

// ActivityArchiver implements domain.Archiver. It writes journal entries
// older than a cutoff to one JSONL object per calendar month:
//
//	<prefix>/activity/2025-01.jsonl
//
// A month whose object already exists is skipped. Archived entries are left
// in the journal; pruning is a separate step.
type ActivityArchiver struct {
	journal domain.ActivityStore
	writer  domain.BlobWriter
	reader  domain.BlobReader
	prefix  string
	logger  *slog.Logger
}

// NewArchiver creates an ActivityArchiver writing under prefix.
func NewArchiver(journal domain.ActivityStore, writer domain.BlobWriter, reader domain.BlobReader, prefix string, logger *slog.Logger) *ActivityArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityArchiver{
		journal: journal,
		writer:  writer,
		reader:  reader,
		prefix:  prefix,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveActivity uploads every month of entries older than before and
// returns how many entries were written. Each uploaded month is recorded in
// the journal as an archive entry.
func (a *ActivityArchiver) ArchiveActivity(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.journal.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive activity query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	months := groupByMonth(entries)
	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var total int64
	for _, month := range keys {
		key := archivePath(a.prefix, month)

		exists, err := a.reader.Exists(ctx, key)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive activity check %s: %w", key, err)
		}
		if exists {
			a.logger.Info("archive: month already stored", slog.String("path", key))
			continue
		}

		buf, err := marshalJSONL(months[month])
		if err != nil {
			return total, fmt.Errorf("s3blob: archive activity marshal %s: %w", month, err)
		}
		if len(buf) >= multipartThreshold {
			err = a.writer.PutMultipart(ctx, key, bytes.NewReader(buf), minPartSize)
		} else {
			err = a.writer.Put(ctx, key, bytes.NewReader(buf), jsonlContentType)
		}
		if err != nil {
			return total, fmt.Errorf("s3blob: archive activity upload %s: %w", key, err)
		}

		count := int64(len(months[month]))
		total += count
		a.logger.Info("archive: month uploaded",
			slog.String("path", key),
			slog.Int64("count", count),
		)

		if err := a.journal.Append(ctx, domain.Activity{
			ID:      uuid.NewString(),
			UserID:  SystemUserID,
			Kind:    domain.ActivityArchive,
			Message: fmt.Sprintf("Archivage de %d activités (%s)", count, month),
			Detail: map[string]any{
				"path":   key,
				"count":  count,
				"before": before.Format(time.RFC3339),
			},
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return total, fmt.Errorf("s3blob: archive activity record: %w", err)
		}
	}
	return total, nil
}

// groupByMonth partitions entries by the UTC year-month of CreatedAt,
// keeping their order within a month.
func groupByMonth(entries []domain.Activity) map[string][]domain.Activity {
	out := make(map[string][]domain.Activity)
	for _, e := range entries {
		m := e.CreatedAt.UTC().Format("2006-01")
		out[m] = append(out[m], e)
	}
	return out
}

func archivePath(prefix, month string) string {
	return path.Join(prefix, "activity", month+".jsonl")
}

// marshalJSONL serialises records as newline-delimited JSON.
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

var _ domain.Archiver = (*ActivityArchiver)(nil)
