package delimited

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
)

func TestReader_Each(t *testing.T) {
	input := "a|b|c\n\nd|e|f\n"
	var rows [][]string
	var lines []int

	err := NewReader(strings.NewReader(input), 3).Each(func(row []string, line int) error {
		rows = append(rows, row)
		lines = append(lines, line)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d", "e", "f"}}, rows)
	assert.Equal(t, []int{1, 3}, lines)
}

func TestReader_WrongColumnCount(t *testing.T) {
	input := "a|b|c\nd|e\n"

	err := NewReader(strings.NewReader(input), 3).Each(func([]string, int) error { return nil })

	require.Error(t, err)
	assert.ErrorIs(t, err, ferrors.ErrMalformedRow)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReader_Empty(t *testing.T) {
	calls := 0
	err := NewReader(strings.NewReader(""), 5).Each(func([]string, int) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Zero(t, calls)
}
