package alloclog

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	fieldCount = 4

	// maxLineBytes bounds a single log line. Real lines are a few dozen bytes.
	maxLineBytes = 64 * 1024
)

// Scanner reads events one at a time.
type Scanner struct {
	lines *bufio.Scanner
	line  int
	event Event
	err   error
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	lines := bufio.NewScanner(r)
	lines.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineBytes)

	return &Scanner{lines: lines}
}

// Scan advances to the next event. It returns false at end of input or on
// the first error; Err tells them apart.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}

	for s.lines.Scan() {
		s.line++

		text := s.lines.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		event, err := ParseLine(text)
		if err != nil {
			s.err = &LineError{Line: s.line, Text: text, Err: err}

			return false
		}

		event.Line = s.line
		s.event = event

		return true
	}

	readErr := s.lines.Err()
	if readErr != nil {
		s.err = fmt.Errorf("read log: %w", readErr)
	}

	return false
}

// Event returns the event read by the last successful Scan.
func (s *Scanner) Event() Event {
	return s.event
}

// Err returns the first error met by Scan.
func (s *Scanner) Err() error {
	return s.err
}

// Parse reads every event from r.
func Parse(r io.Reader) ([]Event, error) {
	scanner := NewScanner(r)

	var events []Event

	for scanner.Scan() {
		events = append(events, scanner.Event())
	}

	err := scanner.Err()
	if err != nil {
		return nil, err
	}

	return events, nil
}

// ParseLine parses a single log line. The returned event has no line number.
func ParseLine(text string) (Event, error) {
	fields := strings.Fields(text)
	if len(fields) != fieldCount {
		return Event{}, fmt.Errorf("%w, got %d", ErrMalformedLine, len(fields))
	}

	action := Action(fields[0])
	if !action.Valid() {
		return Event{}, fmt.Errorf("%w: %s", ErrUnknownAction, fields[0])
	}

	amount, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil || amount < 0 {
		return Event{}, fmt.Errorf("%w: %s", ErrInvalidAmount, fields[3])
	}

	return Event{
		Action: action,
		Pool:   fields[1],
		Parent: fields[2],
		Amount: amount,
	}, nil
}
