package cli

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestPromptLine(t *testing.T) {
	var out bytes.Buffer
	got, err := PromptLine(lines("  ann@example.com \n"), &out, "Email")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", got)
	assert.Equal(t, "Email: ", out.String())
}

func TestPromptLine_LastLineWithoutNewline(t *testing.T) {
	got, err := PromptLine(lines("ann@example.com"), io.Discard, "Email")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", got)
}

func TestPromptLine_Blank(t *testing.T) {
	_, err := PromptLine(lines("   \n"), io.Discard, "Email")
	require.ErrorIs(t, err, ErrEmptyInput)
	assert.EqualError(t, err, "email: input required")
}

func TestPromptLine_NoInput(t *testing.T) {
	_, err := PromptLine(lines(""), io.Discard, "Email")
	require.ErrorIs(t, err, io.EOF)
}

func TestPromptSecret(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })

	readPassword = func(int) ([]byte, error) { return []byte("secret"), nil }
	var out bytes.Buffer
	pw, err := PromptSecret(&out, "Password")
	require.NoError(t, err)
	assert.Equal(t, "secret", string(pw))
	assert.Equal(t, "Password: \n", out.String())

	readPassword = func(int) ([]byte, error) { return nil, nil }
	_, err = PromptSecret(io.Discard, "Password")
	require.ErrorIs(t, err, ErrEmptyInput)

	boom := errors.New("boom")
	readPassword = func(int) ([]byte, error) { return nil, boom }
	_, err = PromptSecret(io.Discard, "Password")
	require.ErrorIs(t, err, boom)
}
