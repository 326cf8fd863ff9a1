// Package lister prints sequences of values as console tables.
package lister

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ErrFormat is returned when a row has more cells than the header.
var ErrFormat = errors.New("lister: row wider than header")

// Table renders one row per element using a line function. The row width is
// fixed by the header, or by the first row when there is none. Shorter rows
// are padded with empty cells.
type Table[T any] struct {
	line       func(T) []string
	header     []string
	withIndex  bool
	printEmpty bool
}

// New returns a table lister with an index column and nothing printed for
// an empty sequence.
func New[T any](line func(T) []string) *Table[T] {
	return &Table[T]{line: line, withIndex: true}
}

// WithHeader sets the column titles.
func (t *Table[T]) WithHeader(cols ...string) *Table[T] {
	t.header = cols
	return t
}

// WithIndex toggles the leading "#" column.
func (t *Table[T]) WithIndex(b bool) *Table[T] {
	t.withIndex = b
	return t
}

// PrintEmpty makes List render the table even when no row was produced.
func (t *Table[T]) PrintEmpty(b bool) *Table[T] {
	t.printEmpty = b
	return t
}

// List consumes seq and writes the table to w. An error from seq stops the
// listing and is returned as is; nothing is written in that case.
func (t *Table[T]) List(w io.Writer, seq iter.Seq2[T, error]) error {
	width := -1
	if t.header != nil {
		width = len(t.header)
	}

	var rows [][]string
	i := 0
	for v, err := range seq {
		if err != nil {
			return err
		}
		cells := t.line(v)
		if width < 0 {
			width = len(cells)
		}
		if len(cells) > width {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrFormat, i, len(cells), width)
		}
		for len(cells) < width {
			cells = append(cells, "")
		}
		if t.withIndex {
			cells = append([]string{strconv.Itoa(i)}, cells...)
		}
		rows = append(rows, cells)
		i++
	}

	if len(rows) == 0 && !t.printEmpty {
		return nil
	}
	if _, err := fmt.Fprintln(w, t.render(w, rows)); err != nil {
		return fmt.Errorf("lister: write: %w", err)
	}
	return nil
}

func (t *Table[T]) render(w io.Writer, rows [][]string) string {
	r := lipgloss.NewRenderer(w)
	cell := r.NewStyle().Padding(0, 1)
	head := cell.Bold(true)

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return head
			}
			return cell
		}).
		Rows(rows...)
	if t.header != nil {
		hdr := t.header
		if t.withIndex {
			hdr = append([]string{"#"}, hdr...)
		}
		tbl = tbl.Headers(hdr...)
	}
	return tbl.String()
}

// Slice adapts a slice to the sequence List consumes.
func Slice[T any](s []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, v := range s {
			if !yield(v, nil) {
				return
			}
		}
	}
}
