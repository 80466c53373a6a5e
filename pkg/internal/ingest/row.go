package ingest

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/rule"
)

// rowKind 行处理结果.
type rowKind int

const (
	rowSuccess rowKind = iota
	rowSkippedBlank
	rowInvalid
)

// rowResult 带标签的行结果，由计数步骤消费.
type rowResult struct {
	kind   rowKind
	detail *model.DetailRecord
	reason string
}

func invalid(format string, args ...any) rowResult {
	return rowResult{kind: rowInvalid, reason: fmt.Sprintf(format, args...)}
}

// productRow 一行数据按表头投影后的结构，长度上限与表结构一致.
type productRow struct {
	Key            string `rule:"required,max=255"`
	Title          string `rule:"required,max=1024"`
	Description    string `rule:"required"`
	Style          string `rule:"max=255"`
	MainframeColor string `rule:"max=255"`
	Size           string `rule:"max=64"`
	ColorName      string `rule:"max=255"`
}

// project 清洗字段并投影为明细记录.
func (h *header) project(record []string, fileID uint) rowResult {
	fields := make([]string, len(record))
	blank := true

	for i, raw := range record {
		fields[i] = sanitize(raw)
		if fields[i] != "" {
			blank = false
		}
	}

	if blank {
		return rowResult{kind: rowSkippedBlank}
	}

	if len(fields) != len(h.names) {
		return invalid("expected %d fields, got %d", len(h.names), len(fields))
	}

	row := productRow{
		Key:            h.value(fields, h.key),
		Title:          h.value(fields, h.title),
		Description:    h.value(fields, h.description),
		Style:          h.value(fields, h.style),
		MainframeColor: h.value(fields, h.mainframe),
		Size:           h.value(fields, h.size),
		ColorName:      h.value(fields, h.colorName),
	}

	if err := rule.ValidateStruct(&row); err != nil {
		return rowResult{kind: rowInvalid, reason: h.describe(err)}
	}

	price, err := parsePrice(h.value(fields, h.price))
	if err != nil {
		return invalid("%s: %v", h.cols.Price, err)
	}

	return rowResult{kind: rowSuccess, detail: &model.DetailRecord{
		UniqueKey:          row.Key,
		ProductTitle:       row.Title,
		ProductDescription: row.Description,
		StyleNumber:        optional(row.Style),
		MainframeColor:     optional(row.MainframeColor),
		Size:               optional(row.Size),
		ColorName:          optional(row.ColorName),
		PiecePrice:         price,
		FileRecordID:       fileID,
	}}
}

// isBlank 判断一行是否全部为空字段，计数与处理两遍扫描使用同一规则.
func isBlank(record []string) bool {
	for _, f := range record {
		if sanitize(f) != "" {
			return false
		}
	}

	return true
}

// describe 把校验错误翻译为以列名表述的信息.
func (h *header) describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))

	for _, fe := range verrs {
		col := h.column(fe.StructField())

		switch fe.Tag() {
		case "required":
			msgs = append(msgs, "missing "+col)
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s exceeds %s characters", col, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", col, fe.Tag()))
		}
	}

	return strings.Join(msgs, "; ")
}

func (h *header) column(field string) string {
	switch field {
	case "Key":
		return h.cols.Key
	case "Title":
		return h.cols.Title
	case "Description":
		return h.cols.Description
	case "Style":
		return h.cols.Style
	case "MainframeColor":
		return h.cols.MainframeColor
	case "Size":
		return h.cols.Size
	case "ColorName":
		return h.cols.ColorName
	default:
		return field
	}
}

// parsePrice 空值为 NULL；其余必须是有限数值且能放进 decimal(10,2)，保留两位小数.
func parsePrice(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("not a number: %q", s)
	}

	v = math.Round(v*100) / 100
	if math.Abs(v) > model.PriceMax {
		return nil, fmt.Errorf("out of range: %q", s)
	}

	return &v, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
