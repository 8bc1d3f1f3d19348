package batch

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csvWithRows(n int) string {
	var b strings.Builder
	b.WriteString("ID,Resume_str,Category\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d,\"Resume %d, with comma\",HR\n", 1000+i, i)
	}
	return b.String()
}

func TestReadCSV_Scenario4RowLimit(t *testing.T) {
	items, err := ReadCSV(strings.NewReader(csvWithRows(10)), "Resume.csv", 3)
	require.NoError(t, err)

	require.Len(t, items, 3)
	for i, item := range items {
		assert.Equal(t, fmt.Sprintf("Resume %d, with comma", i+1), item.Text)
		assert.Equal(t, fmt.Sprintf("Resume.csv#%d", 1001+i), item.Source)
	}
}

func TestReadCSV_FewerRowsThanLimit(t *testing.T) {
	items, err := ReadCSV(strings.NewReader(csvWithRows(2)), "r.csv", 5)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestReadCSV_RowReferenceWithoutID(t *testing.T) {
	data := "\ufeffresume_str\nfirst\n\"\"\nthird\n"
	items, err := ReadCSV(strings.NewReader(data), "r.csv", 10)
	require.NoError(t, err)

	require.Len(t, items, 3)
	assert.Equal(t, "r.csv#row-1", items[0].Source)
	assert.Equal(t, "r.csv#row-2", items[1].Source)
	assert.Empty(t, items[1].Text)
	assert.NotEmpty(t, items[1].Diagnostic)
	assert.Equal(t, "third", items[2].Text)
}

func TestReadCSV_CallerErrors(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		limit int
		want  error
	}{
		{name: "missing column", data: "ID,Text\n1,hello\n", limit: 1, want: ErrMissingColumn},
		{name: "empty file", data: "", limit: 1, want: ErrNoRows},
		{name: "header only", data: "Resume_str\n", limit: 1, want: ErrNoRows},
		{name: "zero limit", data: csvWithRows(1), limit: 0, want: ErrInvalidLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.data), "r.csv", tt.limit)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
