package xlsx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// sharedStringsCacheEntry pairs a workbook's cached shared-strings table
// with the archive metadata used to invalidate it.
type sharedStringsCacheEntry struct {
	size    int64
	modTime int64
	encoded []byte // goccy/go-json-encoded []string, reused verbatim across opens
}

var (
	sharedStringsCacheMu sync.Mutex
	sharedStringsCache   = map[string]sharedStringsCacheEntry{}
)

// loadSharedStrings returns the workbook's shared-strings table, serving a
// cached, goccy/go-json-encoded copy when the sharedStrings.xml entry of the
// archive at path has the same uncompressed size and modification time (as
// recorded in the ZIP entry header) as when it was last parsed. A workbook
// with no sharedStrings.xml part (no string cells used a shared reference)
// returns an empty, non-nil slice.
func loadSharedStrings(path string, files map[string]*zip.File) ([]string, error) {
	f, ok := files[sharedStringsPath]
	if !ok {
		return []string{}, nil
	}

	key := path
	info := f.FileInfo()
	size := info.Size()
	modTime := info.ModTime().UnixNano()

	sharedStringsCacheMu.Lock()
	if entry, ok := sharedStringsCache[key]; ok && entry.size == size && entry.modTime == modTime {
		sharedStringsCacheMu.Unlock()
		var out []string
		if err := gojson.Unmarshal(entry.encoded, &out); err == nil {
			return out, nil
		}
		// Fall through to re-parse on a corrupt cache entry.
	} else {
		sharedStringsCacheMu.Unlock()
	}

	data, err := readAll(f)
	if err != nil {
		return nil, err
	}
	strs, err := parseSharedStrings(data)
	if err != nil {
		return nil, err
	}

	if encoded, err := gojson.Marshal(strs); err == nil {
		sharedStringsCacheMu.Lock()
		sharedStringsCache[key] = sharedStringsCacheEntry{size: size, modTime: modTime, encoded: encoded}
		sharedStringsCacheMu.Unlock()
	}
	return strs, nil
}

// parseSharedStrings reads xl/sharedStrings.xml's <si> entries in document
// order, concatenating every <t> run inside each <si> (handling both the
// plain <si><t>text</t></si> form and the rich-text <si><r><t>a</t></r>...
// form) into one string per entry.
func parseSharedStrings(data []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var out []string
	var cur []byte
	inSI := false
	inT := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "si" {
				inSI = true
				cur = cur[:0]
			}
			if t.Name.Local == "t" {
				inT = true
			}
		case xml.CharData:
			if inSI && inT {
				cur = append(cur, t...)
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inT = false
			}
			if t.Name.Local == "si" {
				out = append(out, string(cur))
				inSI = false
			}
		}
	}
	return out, nil
}
