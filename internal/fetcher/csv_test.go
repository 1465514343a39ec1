package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV_Basic(t *testing.T) {
	rows, err := ReadCSV(context.Background(), strings.NewReader("code,name\n1,中京区西ノ京\n"), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"code", "name"}, rows[0])
	assert.Equal(t, []string{"1", "中京区西ノ京"}, rows[1])
}

func TestReadCSV_TabDelimited(t *testing.T) {
	rows, err := ReadCSV(context.Background(), strings.NewReader("a\tb\n1\t2\n"), CSVOptions{Delimiter: '\t'})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "2"}, rows[1])
}

func TestReadCSV_VariableFields(t *testing.T) {
	rows, err := ReadCSV(context.Background(), strings.NewReader("a,b,c\n1\n"), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1"}, rows[1])
}

func TestReadCSV_ShiftJIS(t *testing.T) {
	input := sjis(t, "code,name\n1,下京区東塩小路町\n")
	rows, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{Encoding: EncodingShiftJIS})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "下京区東塩小路町", rows[1][1])
}

func TestStreamCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadCSV(ctx, strings.NewReader("a\nb\n"), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}
