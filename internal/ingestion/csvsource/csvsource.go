// Package csvsource reads the players, tags and ratings CSV files of the
// FIFA 21 dataset. Columns are located by header name, so extra or
// reordered columns are tolerated. Rows whose numeric fields do not parse
// are logged and skipped.
package csvsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/ingestion"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/config"
)

// Source reads records from three CSV files.
type Source struct {
	cfg     config.SourceConfig
	logger  *slog.Logger
	skipped atomic.Int64
}

func New(cfg config.SourceConfig) *Source {
	return &Source{
		cfg:    cfg,
		logger: slog.Default().With("component", "csv-source"),
	}
}

// Skipped returns the number of malformed rows dropped so far.
func (s *Source) Skipped() int64 {
	return s.skipped.Load()
}

func (s *Source) EachPlayer(ctx context.Context, fn func(ingestion.PlayerRecord) error) error {
	cols := s.cfg.Columns
	return s.scan(ctx, s.cfg.PlayersFile, []string{cols.PlayerID, cols.Name, cols.Positions},
		func(f []string) error {
			id, err := parseID(f[0])
			if err != nil {
				return err
			}
			return fn(ingestion.PlayerRecord{ID: id, Name: f[1], Positions: f[2]})
		})
}

func (s *Source) EachTag(ctx context.Context, fn func(ingestion.TagRecord) error) error {
	cols := s.cfg.Columns
	return s.scan(ctx, s.cfg.TagsFile, []string{cols.PlayerID, cols.Tag},
		func(f []string) error {
			id, err := parseID(f[0])
			if err != nil {
				return err
			}
			return fn(ingestion.TagRecord{PlayerID: id, Tag: f[1]})
		})
}

func (s *Source) EachRating(ctx context.Context, fn func(ingestion.RatingRecord) error) error {
	cols := s.cfg.Columns
	return s.scan(ctx, s.cfg.RatingsFile, []string{cols.UserID, cols.PlayerID, cols.Rating},
		func(f []string) error {
			userID, err := parseID(f[0])
			if err != nil {
				return err
			}
			playerID, err := parseID(f[1])
			if err != nil {
				return err
			}
			score, err := strconv.ParseFloat(strings.TrimSpace(f[2]), 64)
			if err != nil {
				return &rowError{err: fmt.Errorf("rating %q: %w", f[2], err)}
			}
			return fn(ingestion.RatingRecord{UserID: userID, PlayerID: playerID, Score: score})
		})
}

// rowError marks a malformed row; the scan skips it rather than failing.
type rowError struct {
	err error
}

func (e *rowError) Error() string { return e.err.Error() }
func (e *rowError) Unwrap() error { return e.err }

func parseID(field string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(field), 10, 32)
	if err != nil {
		return 0, &rowError{err: fmt.Errorf("id %q: %w", field, err)}
	}
	return uint32(v), nil
}

// scan streams the named columns of every data row of path to fn.
func (s *Source) scan(ctx context.Context, path string, columns []string, fn func(fields []string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()
	return s.read(ctx, path, file, columns, fn)
}

func (s *Source) read(ctx context.Context, name string, r io.Reader, columns []string, fn func(fields []string) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("reading header of %s: %w", name, err)
	}
	positions, err := locate(header, columns)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	fields := make([]string, len(columns))
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s line %d: %w", name, line, err)
		}
		short := false
		for i, p := range positions {
			if p >= len(row) {
				short = true
				break
			}
			fields[i] = row[p]
		}
		if short {
			s.skip(name, line, errors.New("missing columns"))
			continue
		}
		if err := fn(fields); err != nil {
			var re *rowError
			if errors.As(err, &re) {
				s.skip(name, line, err)
				continue
			}
			return err
		}
	}
}

func (s *Source) skip(name string, line int, err error) {
	s.skipped.Add(1)
	s.logger.Warn("skipping malformed row", "file", name, "line", line, "error", err)
}

func locate(header []string, columns []string) ([]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	positions := make([]int, len(columns))
	for i, c := range columns {
		p, ok := index[c]
		if !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
		positions[i] = p
	}
	return positions, nil
}
