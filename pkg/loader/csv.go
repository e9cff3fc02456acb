package loader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ParseCSV parses CSV content into a table. The delimiter is sniffed from
// the header line because laboratory exports use semicolons as often as
// commas. Ragged rows are accepted; short rows read as empty cells.
func ParseCSV(content []byte) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = sniffDelimiter(content)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records := make([][]string, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}

	return &Table{
		Headers: records[0],
		Rows:    records[1:],
	}, nil
}

func sniffDelimiter(content []byte) rune {
	line := string(content)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}
