// Package parser turns a console command line into a Query.
//
// Grammar (command words are case-insensitive):
//
//	player <name prefix>
//	id <player id>
//	user <user id>
//	top<N> <position>      e.g. top10 ST; "top ST" uses the default N
//	tags <tag> [<tag> ...] multi-word tags are quoted with ' or "
//	stats
//	exit | quit
package parser

import (
	"strconv"
	"strings"
	"unicode"

	apperrors "github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/errors"
)

// Kind identifies a query form. Its value doubles as a metric label.
type Kind string

const (
	KindPlayer Kind = "player"
	KindID     Kind = "id"
	KindUser   Kind = "user"
	KindTop    Kind = "top"
	KindTags   Kind = "tags"
	KindStats  Kind = "stats"
	KindExit   Kind = "exit"
)

// Query is a parsed command. Only the fields of its Kind are set.
type Query struct {
	Kind     Kind     `json:"kind"`
	Prefix   string   `json:"prefix,omitempty"`
	ID       uint32   `json:"id,omitempty"`
	N        int      `json:"n,omitempty"`
	Position string   `json:"position,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Raw      string   `json:"raw"`
}

// String returns the canonical form of q. Lines that differ only in case of
// the command word, spacing or quoting produce the same string.
func (q *Query) String() string {
	switch q.Kind {
	case KindPlayer:
		return "player " + strings.ToUpper(q.Prefix)
	case KindID, KindUser:
		return string(q.Kind) + " " + strconv.FormatUint(uint64(q.ID), 10)
	case KindTop:
		return "top" + strconv.Itoa(q.N) + " " + q.Position
	case KindTags:
		quoted := make([]string, len(q.Tags))
		for i, t := range q.Tags {
			quoted[i] = strconv.Quote(t)
		}
		return "tags " + strings.Join(quoted, " ")
	default:
		return string(q.Kind)
	}
}

// Parse parses one command line. Errors are *apperrors.AppError values
// wrapping ErrInvalidInput.
func Parse(line string) (*Query, error) {
	raw := strings.TrimSpace(line)
	if raw == "" {
		return nil, apperrors.Invalid("empty command")
	}
	word, rest := raw, ""
	if i := strings.IndexFunc(raw, unicode.IsSpace); i >= 0 {
		word, rest = raw[:i], strings.TrimSpace(raw[i:])
	}
	cmd := strings.ToLower(word)
	q := &Query{Raw: raw}

	switch {
	case cmd == "player":
		q.Kind = KindPlayer
		q.Prefix = rest
	case cmd == "id" || cmd == "user":
		q.Kind = Kind(cmd)
		id, err := parseID(rest)
		if err != nil {
			return nil, err
		}
		q.ID = id
	case strings.HasPrefix(cmd, "top"):
		q.Kind = KindTop
		if digits := cmd[len("top"):]; digits != "" {
			n, err := strconv.Atoi(digits)
			if err != nil || n <= 0 {
				return nil, apperrors.Invalid("top count %q must be a positive integer", digits)
			}
			q.N = n
		}
		if rest == "" || strings.ContainsFunc(rest, unicode.IsSpace) {
			return nil, apperrors.Invalid("top expects a single position, e.g. top10 ST")
		}
		q.Position = strings.ToUpper(rest)
	case cmd == "tags":
		q.Kind = KindTags
		tags, err := splitQuoted(rest)
		if err != nil {
			return nil, err
		}
		if len(tags) == 0 {
			return nil, apperrors.Invalid("tags expects at least one tag")
		}
		q.Tags = tags
	case cmd == "stats":
		q.Kind = KindStats
	case cmd == "exit" || cmd == "quit":
		q.Kind = KindExit
	default:
		return nil, apperrors.Invalid("unknown command %q", word)
	}
	return q, nil
}

func parseID(s string) (uint32, error) {
	if s == "" {
		return 0, apperrors.Invalid("an id is required")
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, apperrors.Invalid("id %q is not a valid unsigned integer", s)
	}
	return uint32(v), nil
}

// splitQuoted splits s on spaces, keeping quoted sections together. Quotes
// may be ' or " and must be closed.
func splitQuoted(s string) ([]string, error) {
	var (
		out   []string
		cur   strings.Builder
		quote rune
		open  bool
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case quote != 0 && r == quote:
			out = append(out, cur.String())
			cur.Reset()
			quote, open = 0, false
		case quote != 0:
			cur.WriteRune(r)
		case r == '\'' || r == '"':
			flush()
			quote, open = r, true
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if open {
		return nil, apperrors.Invalid("unterminated quote in %q", s)
	}
	flush()
	return out, nil
}
