package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrEmptyInput is returned when a required prompt is answered with a blank
// line.
var ErrEmptyInput = errors.New("input required")

// readPassword reads from the terminal without echo; tests replace it.
var readPassword = term.ReadPassword

// PromptLine asks for a required value on w and reads one line from reader.
// A final line without a newline is accepted.
func PromptLine(reader *bufio.Reader, w io.Writer, label string) (string, error) {
	if _, err := fmt.Fprintf(w, "%s: ", label); err != nil {
		return "", err
	}

	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}

	value := strings.TrimSpace(line)
	if value == "" {
		return "", fmt.Errorf("%s: %w", strings.ToLower(label), ErrEmptyInput)
	}
	return value, nil
}

// PromptSecret asks for a secret on w and reads it from the terminal with
// echo off. Callers wipe the returned slice.
func PromptSecret(w io.Writer, label string) ([]byte, error) {
	if _, err := fmt.Fprintf(w, "%s: ", label); err != nil {
		return nil, err
	}

	secret, err := readPassword(int(os.Stdin.Fd()))
	_, _ = fmt.Fprintln(w)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("%s: %w", strings.ToLower(label), ErrEmptyInput)
	}
	return secret, nil
}
