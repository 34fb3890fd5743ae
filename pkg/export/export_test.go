package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Installment", "Amount", "Status"},
		Rows: []map[string]string{
			{"Installment": "Registration Fee", "Amount": "20000", "Status": "paid"},
			{"Installment": "Installment 1", "Amount": "25000", "Status": "unpaid"},
		},
		Summary: [][2]string{{"Total paid", "20000"}},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset(), "")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Installment,Amount,Status", lines[0])
	assert.Equal(t, "Registration Fee,20000,paid", lines[1])
	assert.Equal(t, "Total paid,20000", lines[4])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Payment statement")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
