package xlsx

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testWorkbookXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <sheets>
    <sheet name="Sheet1" sheetId="1" r:id="rId1"/>
  </sheets>
</workbook>`

const testWorkbookRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
</Relationships>`

const testSharedStringsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="2" uniqueCount="2">
  <si><t>a</t></si>
  <si><t>b</t></si>
</sst>`

// newTestWorkbook writes a minimal-but-real xlsx archive with one sheet
// whose raw worksheet XML is sheetXML, plus the shared strings "a","b" at
// indices 0 and 1. Returns the file path.
func newTestWorkbook(t *testing.T, sheetXML string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "book.xlsx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	writeEntry(t, zw, "xl/workbook.xml", testWorkbookXML)
	writeEntry(t, zw, "xl/_rels/workbook.xml.rels", testWorkbookRelsXML)
	writeEntry(t, zw, "xl/sharedStrings.xml", testSharedStringsXML)
	writeEntry(t, zw, "xl/worksheets/sheet1.xml", sheetXML)
	require.NoError(t, zw.Close())
	return path
}

func writeEntry(t *testing.T, zw *zip.Writer, name, content string) {
	t.Helper()
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
}
