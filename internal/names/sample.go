package names

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tools.zach/dev/certmaker/internal/atomicfile"
)

// SampleCSV is the starter table written by [WriteSample].
const SampleCSV = "Name\nAlice Johnson\nBob Smith\nCharlie Brown\nDiana Prince\nEva Martinez\n"

// WriteSample writes [SampleCSV] to path, creating parent directories.
func WriteSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create table dir: %w", err)
	}
	return atomicfile.Write(path, []byte(SampleCSV), 0o644)
}

// TableInfo is a quick structural summary of a CSV file for troubleshooting.
type TableInfo struct {
	Path       string
	Size       int64
	Lines      int
	Headers    []string
	NameColumn int    // index into Headers, -1 if absent
	FirstData  string // first line after the header, raw
	Rows       int    // data rows parsed
	Blank      int    // rows with no usable name
}

// Inspect summarizes the table at path. It reads the file twice: once for
// raw line statistics and once through [Read].
func Inspect(path, column string) (*TableInfo, error) {
	if column == "" {
		column = DefaultColumn
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat table: %w", err)
	}
	info := &TableInfo{Path: path, Size: st.Size(), NameColumn: -1}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		info.Lines++
		switch info.Lines {
		case 1:
			line = strings.TrimPrefix(line, "\uFEFF")
			sep := ","
			if !strings.Contains(line, ",") && strings.Contains(line, ";") {
				sep = ";"
			}
			info.Headers = trimAll(strings.Split(line, sep))
			info.NameColumn = columnIndex(info.Headers, column)
		case 2:
			info.FirstData = line
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan table: %w", err)
	}

	if info.NameColumn >= 0 {
		recs, err := ReadFile(path, column)
		if err != nil {
			return info, err
		}
		info.Rows = len(recs)
		for _, r := range recs {
			if r.Blank() {
				info.Blank++
			}
		}
	}
	return info, nil
}
