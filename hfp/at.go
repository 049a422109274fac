package hfp

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCommand is returned for lines that are not AT commands.
var ErrInvalidCommand = errors.New("invalid AT command")

// CommandType distinguishes the three AT command forms.
type CommandType int

const (
	// CommandSet is AT<name>=<value>.
	CommandSet CommandType = iota
	// CommandGet is AT<name>?.
	CommandGet
	// CommandTest is AT<name>=?.
	CommandTest
)

func (t CommandType) String() string {
	switch t {
	case CommandSet:
		return "set"
	case CommandGet:
		return "get"
	case CommandTest:
		return "test"
	}
	return fmt.Sprintf("CommandType(%d)", int(t))
}

// Command is one parsed AT command.
type Command struct {
	Type  CommandType
	Name  string
	Value string
}

// ParseAT parses a single command line. Surrounding whitespace is ignored
// and the AT prefix is matched case-insensitively.
func ParseAT(line string) (Command, error) {
	s := strings.TrimSpace(line)
	if len(s) < 2 || !strings.EqualFold(s[:2], "AT") {
		return Command{}, fmt.Errorf("%w: %q", ErrInvalidCommand, line)
	}
	body := s[2:]

	if name, value, ok := strings.Cut(body, "="); ok {
		if strings.HasPrefix(value, "?") {
			return Command{Type: CommandTest, Name: name}, nil
		}
		return Command{Type: CommandSet, Name: name, Value: value}, nil
	}

	if name, _, ok := strings.Cut(body, "?"); ok {
		return Command{Type: CommandGet, Name: name}, nil
	}

	return Command{}, fmt.Errorf("%w: %q", ErrInvalidCommand, line)
}

// Lines splits raw RFCOMM data into command lines.
func Lines(data []byte) []string {
	var lines []string
	for _, l := range strings.FieldsFunc(string(data), func(r rune) bool {
		return r == '\r' || r == '\n' || r == 0
	}) {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// CompleteLines returns the command lines of data that are terminated,
// and the number of bytes they span. Bytes after the last terminator
// belong to a line still being received.
func CompleteLines(data []byte) ([]string, int) {
	end := bytes.LastIndexAny(data, "\r\n\x00")
	if end == -1 {
		return nil, 0
	}
	return Lines(data[:end+1]), end + 1
}

// Response frames a result code for transmission to the hands-free unit.
func Response(msg string) string {
	return "\r\n" + msg + "\r\n"
}
