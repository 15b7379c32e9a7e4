package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "airports.xlsx")
	err := f.Save(path)
	require.NoError(t, err)
	return path
}

func TestReadXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Airports": {
			{"code", "name", "lat"},
			{"MIA", "Miami International", "25.79"},
			{"SJU", "Luis Munoz Marin", "18.44"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"code", "name", "lat"}, rows[0])
	assert.Equal(t, []string{"MIA", "Miami International", "25.79"}, rows[1])
	assert.Equal(t, []string{"SJU", "Luis Munoz Marin", "18.44"}, rows[2])
}

func TestReadXLSX_SkipRows(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Airports": {
			{"code", "name"},
			{"MIA", "Miami International"},
			{"FLL", "Fort Lauderdale"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"MIA", "Miami International"}, rows[0])
	assert.Equal(t, []string{"FLL", "Fort Lauderdale"}, rows[1])
}

func TestReadXLSX_SheetName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Notes":    {{"a", "b"}},
		"Airports": {{"code", "name"}, {"MIA", "Miami International"}},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Airports"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"code", "name"}, rows[0])
	assert.Equal(t, []string{"MIA", "Miami International"}, rows[1])
}

func TestReadXLSX_SheetNameNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Airports": {{"code"}},
	})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Airports": {{"code"}},
	})

	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_WithHeaderCh(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Airports": {
			{"code", "baseline_daily_travelers"},
			{"MIA", "50000"},
		},
	})

	headerCh := make(chan []string, 1)
	rows, err := ReadXLSX(path, XLSXOptions{
		SkipRows: 1,
		HeaderCh: headerCh,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"MIA", "50000"}, rows[0])

	header := <-headerCh
	assert.Equal(t, []string{"code", "baseline_daily_travelers"}, header)
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open file")
}
