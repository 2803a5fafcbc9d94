package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ParseError is a sensor line that is not a number. It is recovered
// locally: the line is skipped.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse reading %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// parseReading parses one sensor line. ok is false for an empty line.
// NaN and infinities parse successfully; the store replaces them.
func parseReading(line string) (value float64, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, false, nil
	}

	value, err = strconv.ParseFloat(line, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false, &ParseError{Line: line, Err: err}
	}
	return value, true, nil
}
