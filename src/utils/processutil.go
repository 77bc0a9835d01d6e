package utils

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

// ErrEmptyTime 时间字段为空
var ErrEmptyTime = errors.New("时间为空")

// 可接受的时间格式，按顺序尝试
var timeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006 15:04:05",
	"2006-01-02",
}

// Excel 序列日期，例如 45366.5972
var excelSerial = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// excel 的 1900 日期系统以 1899-12-30 为第 0 天
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// ParseTime 解析观测时间，支持多种文本格式与 Excel 序列日期，结果统一为 UTC
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "NaN" {
		return time.Time{}, ErrEmptyTime
	}

	if excelSerial.MatchString(s) {
		if days, err := strconv.ParseFloat(s, 64); err == nil && days > 0 && days < 2958466 {
			return ExcelToTime(days), nil
		}
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析时间 %q", s)
}

// ExcelToTime excel序列日期转time.Time，精确到秒
func ExcelToTime(days float64) time.Time {
	whole := math.Floor(days)
	seconds := math.Round((days - whole) * 86400)
	return excelEpoch.AddDate(0, 0, int(whole)).Add(time.Duration(seconds) * time.Second)
}

// SaveToExcel 以流式方式把 DataFrame 写入 xlsx，NaN 写为空单元格
func SaveToExcel(df dataframe.DataFrame, filePath, sheetName string) error {
	if df.Err != nil {
		return df.Err
	}
	if sheetName == "" {
		sheetName = "Sheet1"
	}

	f := excelize.NewFile()
	defer f.Close()

	if sheetName != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheetName); err != nil {
			return fmt.Errorf("设置工作表名称失败: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("创建流式写入失败: %w", err)
	}

	// 写入列名
	colNames := df.Names()
	header := make([]interface{}, len(colNames))
	for i, name := range colNames {
		header[i] = name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}

	cols := make([]series.Series, len(colNames))
	for i, name := range colNames {
		cols[i] = df.Col(name)
	}

	// 写入数据
	for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
		row := make([]interface{}, len(cols))
		for colIdx, col := range cols {
			row[colIdx] = CellValue(col.Type(), col.Elem(rowIdx))
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("写入第 %d 行失败: %w", rowIdx+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("刷新工作表失败: %w", err)
	}

	// 保存文件
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

// CellValue 按列类型取单元格的原生值
func CellValue(t series.Type, e series.Element) interface{} {
	if e.IsNA() {
		return nil
	}
	switch t {
	case series.Float:
		v := e.Float()
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	case series.Int:
		v, err := e.Int()
		if err != nil {
			return nil
		}
		return v
	case series.Bool:
		v, err := e.Bool()
		if err != nil {
			return nil
		}
		return v
	default:
		return e.String()
	}
}
