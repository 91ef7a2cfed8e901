package csv

import "testing"

// FuzzParserChunking checks that splitting an input across arbitrarily many
// Feed calls never changes the rows the state machine produces compared to
// feeding it in one shot, and that the parser never panics on malformed
// quoting.
func FuzzParserChunking(f *testing.F) {
	seeds := []string{
		"",
		"a,b,c\n",
		"a,\"b,b\",c\n",
		"a,\"b\nc\",d\n",
		"\"unterminated\n",
		"a\"b,c\n",
		"one\r\ntwo\r\n",
		"trailing,newline\n",
		"1,2,",
		"\"a\"\"b\",c\n",
		",,,\n",
	}
	for _, s := range seeds {
		f.Add(s, 1)
	}

	f.Fuzz(func(t *testing.T, input string, chunkSize int) {
		if len(input) > 1<<12 {
			t.Skip()
		}
		if chunkSize <= 0 {
			chunkSize = 1
		}
		chunkSize = 1 + (chunkSize % 8)

		whole := parseAll(DefaultOptions(), input)
		chunked := parseChunked(input, chunkSize)

		if !rowsEqual(whole, chunked) {
			t.Fatalf("chunking changed output: chunkSize=%d\nwhole=%v\nchunked=%v\ninput=%q", chunkSize, whole, chunked, input)
		}
	})
}

func parseChunked(input string, chunkSize int) [][]string {
	p := NewParser(DefaultOptions())
	b := []byte(input)
	for i := 0; i < len(b); i += chunkSize {
		end := i + chunkSize
		if end > len(b) {
			end = len(b)
		}
		p.Feed(b[i:end])
	}
	p.Flush()

	var rows [][]string
	for p.HasBatch() {
		rows = append(rows, decodeRows(p.TakeBatch())...)
	}
	return rows
}

func rowsEqual(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}
