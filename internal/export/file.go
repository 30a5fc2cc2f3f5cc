package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/spigell/prospector/internal/leads"
)

// RowHeader is the column order of the file sink.
var RowHeader = []string{
	"Company", "Person", "Email", "Relevance Score", "Signal Type",
	"Source URL", "Status", "Notes", "Timestamp", "Run ID",
}

// FileSink appends rows as csv lines. A header is written when the file is new.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open sink file %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	s := &FileSink{file: file, w: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := s.write(RowHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("writing sink header: %w", err)
		}
	}
	return s, nil
}

func (s *FileSink) Append(_ context.Context, row leads.Row) error {
	return s.write([]string{
		row.Company,
		row.Person,
		row.Email,
		strconv.FormatFloat(row.RelevanceScore, 'g', -1, 64),
		strconv.Itoa(row.SignalType),
		row.SourceURL,
		row.Status,
		row.Notes,
		row.Timestamp.UTC().Format(time.RFC3339),
		row.RunID,
	})
}

func (s *FileSink) write(record []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.w.Write(record); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
