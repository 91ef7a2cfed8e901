// Package xlsx implements the streaming XLSX front end: it opens a workbook
// as a ZIP archive, resolves one worksheet by index or name, and walks that
// worksheet's XML with a token-by-token (SAX-style) decoder instead of
// building a DOM, handing rows to pkg/batch the same way the CSV front end
// does.
package xlsx

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"strconv"

	"github.com/tabstream/tabstream/pkg/errors"
)

const (
	workbookPath      = "xl/workbook.xml"
	workbookRelsPath  = "xl/_rels/workbook.xml.rels"
	sharedStringsPath = "xl/sharedStrings.xml"
)

// resolved holds everything needed to walk one worksheet: its raw XML bytes
// and the shared-strings table it may reference.
type resolved struct {
	sheetXML      []byte
	sharedStrings []string
}

// resolveSheet opens path as a ZIP archive and extracts the target
// worksheet (by 1-based sheetIndex, or by sheetName when non-empty) plus the
// workbook's shared-strings table, if it has one.
func resolveSheet(path string, sheetIndex int, sheetName string) (*resolved, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "open xlsx as zip archive")
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	idToTarget, err := readWorkbookRels(files)
	if err != nil {
		return nil, err
	}
	sheets, err := readWorkbookSheets(files, idToTarget)
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, errors.New(errors.ErrorTypeParse, "xlsx: workbook has no sheets")
	}

	var target string
	if sheetName != "" {
		for _, s := range sheets {
			if s.name == sheetName {
				target = s.target
				break
			}
		}
		if target == "" {
			return nil, errors.Newf(errors.ErrorTypeParse, "xlsx: sheet not found: %s", sheetName)
		}
	} else {
		idx := sheetIndex
		if idx < 1 {
			idx = 1
		}
		if idx > len(sheets) {
			return nil, errors.Newf(errors.ErrorTypeParse, "xlsx: sheet index %d out of range (%d sheets)", idx, len(sheets))
		}
		target = sheets[idx-1].target
	}

	sheetFile, ok := files[target]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeParse, "xlsx: sheet file not found in archive: %s", target)
	}
	sheetXML, err := readAll(sheetFile)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "read worksheet xml")
	}

	shared, err := loadSharedStrings(path, files)
	if err != nil {
		return nil, err
	}

	return &resolved{sheetXML: sheetXML, sharedStrings: shared}, nil
}

type sheetRef struct{ name, target string }

func readAll(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// readWorkbookRels parses xl/_rels/workbook.xml.rels, mapping each
// relationship Id to its file path in the archive: relative targets are
// resolved under xl/, absolute ones ("/xl/...") against the archive root.
func readWorkbookRels(files map[string]*zip.File) (map[string]string, error) {
	f, ok := files[workbookRelsPath]
	if !ok {
		return nil, errors.New(errors.ErrorTypeParse, "xlsx: missing xl/_rels/workbook.xml.rels")
	}
	data, err := readAll(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "read workbook.xml.rels")
	}

	type relationship struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	}
	type relationships struct {
		Relationship []relationship `xml:"Relationship"`
	}
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "parse workbook.xml.rels")
	}

	out := make(map[string]string, len(rels.Relationship))
	for _, r := range rels.Relationship {
		target := r.Target
		if len(target) > 0 && target[0] == '/' {
			target = target[1:]
		} else {
			target = "xl/" + target
		}
		out[r.ID] = target
	}
	return out, nil
}

// readWorkbookSheets parses xl/workbook.xml, resolving each <sheet>'s
// r:id against idToTarget to get its archive path.
func readWorkbookSheets(files map[string]*zip.File, idToTarget map[string]string) ([]sheetRef, error) {
	f, ok := files[workbookPath]
	if !ok {
		return nil, errors.New(errors.ErrorTypeParse, "xlsx: missing xl/workbook.xml")
	}
	data, err := readAll(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "read workbook.xml")
	}

	type sheet struct {
		Name string `xml:"name,attr"`
		RID  string `xml:"id,attr"`
	}
	type sheets struct {
		Sheet []sheet `xml:"sheets>sheet"`
	}
	var wb sheets
	if err := xml.Unmarshal(data, &wb); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "parse workbook.xml")
	}

	out := make([]sheetRef, 0, len(wb.Sheet))
	for _, s := range wb.Sheet {
		target, ok := idToTarget[s.RID]
		if !ok {
			continue
		}
		out = append(out, sheetRef{name: s.Name, target: target})
	}
	return out, nil
}

// cellRefToCol converts a cell reference like "BC23" to a 0-based column
// index ("A"=0), ignoring the row-number suffix.
func cellRefToCol(ref string) int {
	col := 0
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= 'A' && c <= 'Z':
			col = col*26 + int(c-'A'+1)
		case c >= 'a' && c <= 'z':
			col = col*26 + int(c-'a'+1)
		default:
			if col == 0 {
				return -1
			}
			return col - 1
		}
	}
	return -1
}

func parseSharedStringIndex(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
