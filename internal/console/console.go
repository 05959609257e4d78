// Package console runs the interactive query prompt. It reads one command
// per line, executes it and prints the result as an aligned table.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/catalog"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/searcher/executor"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/searcher/parser"
	apperrors "github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/errors"
)

const Prompt = "fifadex> "

const help = `commands:
  player <prefix>      players whose name starts with prefix
  id <player id>       one player
  user <user id>       the user's top rated players
  top<N> <position>    best N players for a position, e.g. top10 ST
  tags <tag> ...       players with every tag; quote multi-word tags
  stats                index diagnostics
  exit                 leave`

type QueryExecutor interface {
	Execute(ctx context.Context, q *parser.Query) (*executor.Result, error)
}

type Console struct {
	executor QueryExecutor
	out      io.Writer
	prompt   string
	logger   *slog.Logger
}

type Option func(*Console)

// WithPrompt replaces the prompt. An empty prompt suits piped input.
func WithPrompt(p string) Option {
	return func(c *Console) { c.prompt = p }
}

func New(exec QueryExecutor, out io.Writer, opts ...Option) *Console {
	c := &Console{
		executor: exec,
		out:      out,
		prompt:   Prompt,
		logger:   slog.Default().With("component", "console"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run reads commands from in until exit, end of input or ctx is done.
// Query errors are printed and the session continues.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, c.prompt)
		if !scanner.Scan() {
			if c.prompt != "" {
				fmt.Fprintln(c.out)
			}
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "help", "?":
			fmt.Fprintln(c.out, help)
			continue
		}

		q, err := parser.Parse(line)
		if err != nil {
			c.printError(err)
			continue
		}
		if q.Kind == parser.KindExit {
			return nil
		}
		result, err := c.executor.Execute(ctx, q)
		if err != nil {
			c.printError(err)
			continue
		}
		if err := Render(c.out, result); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}
}

func (c *Console) printError(err error) {
	c.logger.Debug("query error", "error", err)
	fmt.Fprintf(c.out, "error: %s\n", apperrors.PublicMessage(err))
}

// Render prints result as a table followed by a count line.
func Render(w io.Writer, result *executor.Result) error {
	switch {
	case result.Stats != nil:
		return WriteStats(w, *result.Stats)
	case result.Kind == parser.KindUser:
		return writeRatings(w, result)
	default:
		return writePlayers(w, result)
	}
}

func writePlayers(w io.Writer, result *executor.Result) error {
	if len(result.Players) == 0 {
		_, err := fmt.Fprintln(w, "no players found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPOSITIONS\tRATING\tCOUNT")
	for _, p := range result.Players {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", p.ID, p.Name, strings.Join(p.Positions, ", "), formatRating(p.Rating, p.RatingCount), p.RatingCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writeCount(w, len(result.Players), result.Total)
}

func writeRatings(w io.Writer, result *executor.Result) error {
	if len(result.Ratings) == 0 {
		_, err := fmt.Fprintln(w, "no ratings found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPOSITIONS\tRATING\tCOUNT\tUSER RATING")
	for _, r := range result.Ratings {
		name := r.Name
		if name == "" {
			name = "(unknown)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%.1f\n", r.ID, name, strings.Join(r.Positions, ", "), formatRating(r.Rating, r.RatingCount), r.RatingCount, r.UserRating)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writeCount(w, len(result.Ratings), result.Total)
}

func writeCount(w io.Writer, shown, total int) error {
	var err error
	if shown < total {
		_, err = fmt.Fprintf(w, "%d of %d results\n", shown, total)
	} else {
		_, err = fmt.Fprintf(w, "%d results\n", total)
	}
	return err
}

// formatRating prints "-" for players nobody rated.
func formatRating(rating float64, count uint32) string {
	if count == 0 {
		return "-"
	}
	return strconv.FormatFloat(rating, 'f', 6, 64)
}

// WriteStats prints the index table, load counts and stage timings.
func WriteStats(w io.Writer, s catalog.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "stage:\t%s\n", s.Stage)
	fmt.Fprintf(tw, "trie:\t%d nodes, %d names\n", s.TrieNodes, s.TrieIDs)
	fmt.Fprintf(tw, "ratings:\t%d\n", s.Ratings)
	fmt.Fprintln(tw)

	if len(s.Indexes) > 0 {
		fmt.Fprintln(tw, "INDEX\tITEMS\tOCCUPANCY\tLONGEST CHAIN")
		for _, ix := range s.Indexes {
			fmt.Fprintf(tw, "%s\t%d\t%.2f%%\t%d\n", ix.Name, ix.Items, ix.Occupancy*100, ix.LongestChain)
		}
		fmt.Fprintln(tw)
	}

	fmt.Fprintln(tw, "STREAM\tACCEPTED\tINVALID\tDUPLICATE")
	for _, row := range []struct {
		name string
		s    catalog.StreamStats
	}{{"players", s.Load.Players}, {"tags", s.Load.Tags}, {"ratings", s.Load.Ratings}} {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", row.name, row.s.Accepted, row.s.Invalid, row.s.Duplicate)
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "fold:\t%d users, %d applied, %d orphaned\n", s.Fold.Users, s.Fold.Applied, s.Fold.Orphaned)
	fmt.Fprintf(tw, "positions:\t%d positions, %d eligible, %d below threshold\n", s.Positions.Positions, s.Positions.Eligible, s.Positions.Excluded)

	stages := make([]string, 0, len(s.Durations))
	for name := range s.Durations {
		stages = append(stages, name)
	}
	sort.Strings(stages)
	for _, name := range stages {
		fmt.Fprintf(tw, "%s took:\t%s\n", name, s.Durations[name])
	}
	return tw.Flush()
}
