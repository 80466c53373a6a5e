package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/yeisme/ingestvault/pkg/configs"
)

// absent 表头中不存在的可选列.
const absent = -1

// header 一个文件的表头：列名到位置的映射只构建一次，之后按位置投影每一行.
type header struct {
	names []string
	cols  configs.ColumnsConfig

	key, title, description int
	style, mainframe, size  int
	colorName, price        int
}

// newCSVReader 按配置的分隔符创建宽松的 CSV 读取器，字段数由 header 自行校验.
func newCSVReader(r io.Reader, delim rune) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	return cr
}

// readHeader 读取并校验第一行；内容问题返回 *IntakeValidationError，读取失败返回普通错误.
func readHeader(cr *csv.Reader, name string, cols configs.ColumnsConfig) (*header, error) {
	record, err := cr.Read()
	if err != nil {
		var pe *csv.ParseError

		switch {
		case errors.Is(err, io.EOF):
			return nil, &IntakeValidationError{FileName: name, Reason: "file is empty"}
		case errors.As(err, &pe):
			return nil, &IntakeValidationError{FileName: name, Reason: fmt.Sprintf("malformed header: %v", pe.Err)}
		default:
			return nil, fmt.Errorf("read header: %w", err)
		}
	}

	return parseHeader(record, name, cols)
}

func parseHeader(record []string, name string, cols configs.ColumnsConfig) (*header, error) {
	h := &header{names: make([]string, len(record)), cols: cols}

	index := make(map[string]int, len(record))

	for i, raw := range record {
		n := sanitize(raw)
		h.names[i] = n

		if _, dup := index[n]; !dup && n != "" {
			index[n] = i
		}
	}

	lookup := func(col string) int {
		if col == "" {
			return absent
		}

		if i, ok := index[col]; ok {
			return i
		}

		return absent
	}

	h.key = lookup(cols.Key)
	h.title = lookup(cols.Title)
	h.description = lookup(cols.Description)
	h.style = lookup(cols.Style)
	h.mainframe = lookup(cols.MainframeColor)
	h.size = lookup(cols.Size)
	h.colorName = lookup(cols.ColorName)
	h.price = lookup(cols.Price)

	var missing []string

	for _, req := range []struct {
		name string
		idx  int
	}{{cols.Key, h.key}, {cols.Title, h.title}, {cols.Description, h.description}} {
		if req.idx == absent {
			missing = append(missing, req.name)
		}
	}

	if len(missing) > 0 {
		return nil, &IntakeValidationError{FileName: name, Reason: "invalid header", Missing: missing}
	}

	return h, nil
}

// value 返回位置 i 的字段，列不存在时为空.
func (h *header) value(fields []string, i int) string {
	if i == absent || i >= len(fields) {
		return ""
	}

	return fields[i]
}
