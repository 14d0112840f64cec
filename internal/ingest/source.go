// Package ingest reads tabular input files into raw records with provenance.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/couchcryptid/flight-recon/internal/domain"
)

// Schema selects the row layout of a source file.
type Schema string

const (
	DelimitedWithJSONCell   Schema = "delimited_with_json_cell"
	SpreadsheetWide         Schema = "spreadsheet_wide"
	SpreadsheetWithTitleRow Schema = "spreadsheet_with_title_row"
)

// MessageKindField receives the configured message-type column so the
// normalizer finds it under its canonical name.
const MessageKindField = "message_kind"

// Spec describes one input file.
type Spec struct {
	Path   string
	Stream domain.Stream
	Schema Schema

	PayloadColumn       string
	MessageColumn       string
	InsertTimeColumn    string
	ImplicitTimeColumns []string

	Encoding  string // utf-8 (default) or gbk
	Delimiter string // single character, default ","
	Sheet     string // spreadsheet sheet name, default first sheet
}

func (s Spec) delimiter() rune {
	for _, r := range s.Delimiter {
		return r
	}
	return ','
}

// Source is an opened input. Records are decoded lazily.
type Source struct {
	ctx     context.Context
	spec    Spec
	file    *File
	rows    rowReader
	err     error
	seqBase int
	n       int
}

// Open opens the file and reads its header. Any failure here is fatal and
// returned as *domain.InputError.
func Open(ctx context.Context, spec Spec, opener Opener) (*Source, error) {
	if !spec.Stream.Valid() {
		return nil, &domain.InputError{Source: spec.Path, Err: fmt.Errorf("unknown stream %q", spec.Stream)}
	}
	f, err := opener.Open(ctx, spec.Path)
	if err != nil {
		return nil, &domain.InputError{Source: spec.Path, Err: err}
	}

	var rows rowReader
	switch spec.Schema {
	case DelimitedWithJSONCell:
		rows, err = newDelimitedReader(f.Body, spec)
	case SpreadsheetWide, SpreadsheetWithTitleRow:
		rows, err = newSheetReader(f.Body, spec)
	default:
		err = fmt.Errorf("unknown schema hint %q", spec.Schema)
	}
	if err != nil {
		f.Body.Close() //nolint:errcheck // already failing
		return nil, &domain.InputError{Source: spec.Path, Err: err}
	}

	if spec.PayloadColumn != "" && indexOf(rows.header(), spec.PayloadColumn) < 0 {
		rows.close()   //nolint:errcheck // already failing
		f.Body.Close() //nolint:errcheck // already failing
		return nil, &domain.InputError{
			Source: spec.Path,
			Err:    fmt.Errorf("payload column %q not in header for schema %s", spec.PayloadColumn, spec.Schema),
		}
	}
	return &Source{ctx: ctx, spec: spec, file: f, rows: rows}, nil
}

// Err returns the error that stopped iteration early, if any.
func (s *Source) Err() error { return s.err }

// Close releases the underlying file.
func (s *Source) Close() error {
	return errors.Join(s.rows.close(), s.file.Body.Close())
}

// Records yields one RawRecord per decodable data row, in file order. Rows
// that cannot be decoded are reported to sink as PARSE_ERROR and skipped.
func (s *Source) Records(sink domain.Sink) iter.Seq[domain.RawRecord] {
	return func(yield func(domain.RawRecord) bool) {
		hdr := s.rows.header()
		for {
			if err := s.ctx.Err(); err != nil {
				s.err = err
				return
			}
			row, line, err := s.rows.next()
			if errors.Is(err, io.EOF) {
				return
			}
			var rerr *rowError
			if errors.As(err, &rerr) {
				s.reject(sink, rerr.line, rerr.err)
				continue
			}
			if err != nil {
				s.err = &domain.InputError{Source: s.spec.Path, Err: fmt.Errorf("read after line %d: %w", line, err)}
				return
			}

			fields, err := s.fields(hdr, row)
			if err != nil {
				s.reject(sink, line, err)
				continue
			}

			s.n++
			rec := domain.RawRecord{
				Stream:    s.spec.Stream,
				Source:    s.spec.Path,
				Line:      line,
				Seq:       s.seqBase + s.n,
				ArrivalTS: s.arrival(fields, s.n),
				Fields:    fields,
			}
			sink.Accept(s.spec.Stream)
			if !yield(rec) {
				return
			}
		}
	}
}

func (s *Source) reject(sink domain.Sink, line int, err error) {
	sink.Reject(domain.Rejection{
		Stream: s.spec.Stream,
		Source: s.spec.Path,
		Line:   line,
		Reason: domain.ReasonParseError,
		Detail: err.Error(),
	})
}

func (s *Source) fields(hdr, row []string) (map[string]string, error) {
	fields := make(map[string]string, len(hdr))
	for i, name := range hdr {
		if name == "" {
			continue
		}
		if i < len(row) {
			fields[name] = row[i]
		} else {
			fields[name] = ""
		}
	}
	if col := s.spec.PayloadColumn; col != "" {
		if cell := fields[col]; cell != "" {
			payload, err := decodePayload(cell)
			if err != nil {
				return nil, err
			}
			merge(fields, payload)
		}
	}
	if col := s.spec.MessageColumn; col != "" {
		if v := fields[col]; v != "" && fields[MessageKindField] == "" {
			fields[MessageKindField] = v
		}
	}
	return fields, nil
}

// arrival derives the instant a row became known: the insertion-time column
// when present, else the file modification time floored to the row's own
// implicit time, else a per-file counter offset from the modification time.
func (s *Source) arrival(fields map[string]string, n int) time.Time {
	if col := s.spec.InsertTimeColumn; col != "" {
		if t, ok := domain.ParseTime(fields[col]); ok {
			return t
		}
	}
	mod := s.file.ModTime
	if !mod.IsZero() {
		for _, col := range s.spec.ImplicitTimeColumns {
			t, ok := domain.ParseTime(fields[col])
			if !ok {
				continue
			}
			if t.Before(mod) {
				return t
			}
			return mod.In(domain.Beijing)
		}
	}
	base := time.Unix(0, 0)
	if !mod.IsZero() {
		base = mod
	}
	return base.Add(time.Duration(n) * time.Millisecond).In(domain.Beijing)
}

func indexOf(hdr []string, name string) int {
	for i, h := range hdr {
		if h == name {
			return i
		}
	}
	return -1
}

// Sources is an ordered set of opened inputs read as one sequence.
type Sources []*Source

// OpenAll opens every spec before any row is read, so an unreadable input
// fails the run before output is produced. On error the already opened
// sources are closed.
func OpenAll(ctx context.Context, specs []Spec, opener Opener) (Sources, error) {
	out := make(Sources, 0, len(specs))
	for _, spec := range specs {
		src, err := Open(ctx, spec, opener)
		if err != nil {
			out.Close() //nolint:errcheck // already failing
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// Records chains the sources in order. Seq increases across sources so it
// breaks arrival-time ties by configuration order, then row order.
func (ss Sources) Records(sink domain.Sink) iter.Seq[domain.RawRecord] {
	return func(yield func(domain.RawRecord) bool) {
		base := 0
		for _, src := range ss {
			src.seqBase = base
			for rec := range src.Records(sink) {
				if !yield(rec) {
					return
				}
			}
			if src.err != nil {
				return
			}
			base += src.n
		}
	}
}

// Err returns the first source error.
func (ss Sources) Err() error {
	for _, src := range ss {
		if src.err != nil {
			return src.err
		}
	}
	return nil
}

// Close closes every source.
func (ss Sources) Close() error {
	var errs []error
	for _, src := range ss {
		errs = append(errs, src.Close())
	}
	return errors.Join(errs...)
}
