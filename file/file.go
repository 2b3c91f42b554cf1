package file

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxRecordSize bounds a single line. Long charts run to a few kilobytes.
const maxRecordSize = 1024 * 1024

// Record is one song record read from a songs file.
type Record struct {
	Line int
	Text string
}

// ReadRecords reads one record per line. Blank lines and lines starting with
// "#" are skipped.
func ReadRecords(r io.Reader) ([]Record, error) {
	var res []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxRecordSize)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		res = append(res, Record{Line: line, Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read records at line %d: %w", line+1, err)
	}
	return res, nil
}

func ReadRecordsFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open songs file: %w", err)
	}
	defer f.Close()
	return ReadRecords(f)
}
