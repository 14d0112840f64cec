package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// rowReader yields data rows after the header has been consumed.
type rowReader interface {
	header() []string
	// next returns the next data row and its 1-based physical line. It
	// returns io.EOF at the end, a *rowError for a row that could not be
	// decoded, and any other error for an unreadable input.
	next() ([]string, int, error)
	close() error
}

type rowError struct {
	line int
	err  error
}

func (e *rowError) Error() string { return fmt.Sprintf("line %d: %v", e.line, e.err) }

func (e *rowError) Unwrap() error { return e.err }

func cleanHeader(hdr []string) []string {
	out := make([]string, len(hdr))
	for i, h := range hdr {
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return out
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

type delimitedReader struct {
	r   *csv.Reader
	hdr []string
}

func newDelimitedReader(body io.Reader, spec Spec) (*delimitedReader, error) {
	var dec io.Reader
	switch strings.ToLower(spec.Encoding) {
	case "gbk":
		dec = transform.NewReader(body, simplifiedchinese.GBK.NewDecoder())
	default:
		dec = transform.NewReader(body, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	}

	cr := csv.NewReader(dec)
	cr.Comma = spec.delimiter()
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	hdr, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	return &delimitedReader{r: cr, hdr: cleanHeader(hdr)}, nil
}

func (d *delimitedReader) header() []string { return d.hdr }

func (d *delimitedReader) next() ([]string, int, error) {
	for {
		row, err := d.r.Read()
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, pe.StartLine, &rowError{line: pe.StartLine, err: pe.Err}
			}
			return nil, 0, err
		}
		line, _ := d.r.FieldPos(0)
		if blank(row) {
			continue
		}
		return row, line, nil
	}
}

func (d *delimitedReader) close() error { return nil }

type sheetReader struct {
	f    *excelize.File
	rows *excelize.Rows
	hdr  []string
	line int
}

func newSheetReader(body io.Reader, spec Spec) (*sheetReader, error) {
	f, err := excelize.OpenReader(body)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	sheet := spec.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			f.Close() //nolint:errcheck // already failing
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		f.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	s := &sheetReader{f: f, rows: rows}
	skip := 0
	if spec.Schema == SpreadsheetWithTitleRow {
		skip = 1
	}
	for rows.Next() {
		s.line++
		cols, err := rows.Columns()
		if err != nil {
			s.close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("read header: %w", err)
		}
		if s.line <= skip {
			continue
		}
		s.hdr = cleanHeader(cols)
		break
	}
	if len(s.hdr) == 0 || blank(s.hdr) {
		s.close() //nolint:errcheck // already failing
		return nil, errors.New("missing header row")
	}
	return s, nil
}

func (s *sheetReader) header() []string { return s.hdr }

func (s *sheetReader) next() ([]string, int, error) {
	for s.rows.Next() {
		s.line++
		cols, err := s.rows.Columns()
		if err != nil {
			return nil, s.line, &rowError{line: s.line, err: err}
		}
		if blank(cols) {
			continue
		}
		return cols, s.line, nil
	}
	if err := s.rows.Error(); err != nil {
		return nil, 0, err
	}
	return nil, 0, io.EOF
}

func (s *sheetReader) close() error {
	rerr := s.rows.Close()
	ferr := s.f.Close()
	return errors.Join(rerr, ferr)
}
