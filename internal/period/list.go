// Package period manages the ordered, user-editable list of date periods.
//
// Identity is positional: period N is the N-th row, and removing a row
// renumbers every row after it. Labels default to "Período N"; a label the
// user edited survives renumbering, a label still holding its default
// follows the new position.
package period

import (
	"errors"
	"fmt"
	"strings"
)

// LabelPrefix is the prefix of every default label.
const LabelPrefix = "Período"

var ErrOutOfRange = errors.New("period index out of range")

// DefaultLabel returns the default label for the period at position n (1-based).
func DefaultLabel(n int) string {
	return fmt.Sprintf("%s %d", LabelPrefix, n)
}

type row struct {
	label        string
	defaultLabel string
	start        string
	end          string
}

// Range is a period with both dates filled in, ready for submission.
type Range struct {
	Number int // position in the list, 1-based
	Label  string
	Start  string
	End    string
}

// Row is the view of a single period row.
type Row struct {
	Number       int
	ID           string
	StartID      string
	EndID        string
	Label        string
	DefaultLabel string
	Start        string
	End          string
}

// List is the ordered period list.
type List struct {
	rows []*row
}

// New returns a list holding a single default period.
func New() *List {
	l := &List{}
	l.Add()
	return l
}

// Reset restores the single default period.
func (l *List) Reset() {
	l.rows = nil
	l.Add()
}

// Add appends a new period labelled "Período N" and returns N.
func (l *List) Add() int {
	n := len(l.rows) + 1
	def := DefaultLabel(n)
	l.rows = append(l.rows, &row{label: def, defaultLabel: def})
	return n
}

// Remove deletes period n and renumbers the rows after it.
func (l *List) Remove(n int) error {
	if err := l.check(n); err != nil {
		return err
	}
	l.rows = append(l.rows[:n-1], l.rows[n:]...)
	l.renumber()
	return nil
}

func (l *List) renumber() {
	for i, r := range l.rows {
		def := DefaultLabel(i + 1)
		if r.label == r.defaultLabel {
			r.label = def
		}
		r.defaultLabel = def
	}
}

// Rename sets the label of period n as typed. A blank label is kept until
// Blur is called.
func (l *List) Rename(n int, label string) error {
	if err := l.check(n); err != nil {
		return err
	}
	l.rows[n-1].label = label
	return nil
}

// Blur commits the label of period n on focus loss: a blank label reverts
// to the current default.
func (l *List) Blur(n int) error {
	if err := l.check(n); err != nil {
		return err
	}
	r := l.rows[n-1]
	if strings.TrimSpace(r.label) == "" {
		r.label = r.defaultLabel
	}
	return nil
}

// SetDates stores the raw date inputs of period n.
func (l *List) SetDates(n int, start, end string) error {
	if err := l.check(n); err != nil {
		return err
	}
	r := l.rows[n-1]
	r.start = strings.TrimSpace(start)
	r.end = strings.TrimSpace(end)
	return nil
}

// Label returns the display name of period n.
func (l *List) Label(n int) (string, error) {
	if err := l.check(n); err != nil {
		return "", err
	}
	return l.displayLabel(l.rows[n-1]), nil
}

func (l *List) displayLabel(r *row) string {
	if strings.TrimSpace(r.label) == "" {
		return r.defaultLabel
	}
	return r.label
}

// Periods returns the rows with both dates set, in list order.
func (l *List) Periods() []Range {
	out := make([]Range, 0, len(l.rows))
	for i, r := range l.rows {
		if r.start == "" || r.end == "" {
			continue
		}
		out = append(out, Range{
			Number: i + 1,
			Label:  l.displayLabel(r),
			Start:  r.start,
			End:    r.end,
		})
	}
	return out
}

// Rows returns the view of every row with its positional identifiers.
func (l *List) Rows() []Row {
	out := make([]Row, len(l.rows))
	for i, r := range l.rows {
		n := i + 1
		out[i] = Row{
			Number:       n,
			ID:           fmt.Sprintf("period-%d", n),
			StartID:      fmt.Sprintf("start-date-period-%d", n),
			EndID:        fmt.Sprintf("end-date-period-%d", n),
			Label:        r.label,
			DefaultLabel: r.defaultLabel,
			Start:        r.start,
			End:          r.end,
		}
	}
	return out
}

func (l *List) check(n int) error {
	if n < 1 || n > len(l.rows) {
		return fmt.Errorf("%w: %d (have %d)", ErrOutOfRange, n, len(l.rows))
	}
	return nil
}
