// reader.go
package file

import (
	"FlightDelayDataset/src/utils"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// ErrEmptyInput 输入文件没有表头
var ErrEmptyInput = errors.New("输入文件为空")

// Options 读取选项
type Options struct {
	Delimiter string // 分隔符，默认逗号
	Encoding  string // 文本编码，默认 utf-8
	SheetName string // xlsx 工作表，空表示第一个
}

// ReadTable 按扩展名读取 csv 或 xlsx，所有列均为字符串
func ReadTable(filePath string, opts Options) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".xlsx":
		return ReadXLSX(filePath, opts.SheetName)
	default:
		return ReadCSV(filePath, opts)
	}
}

// ReadCSV 读取分隔文本文件并按配置的编码解码
func ReadCSV(filePath string, opts Options) (dataframe.DataFrame, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("打开文件失败 %s: %w", filePath, err)
	}
	defer f.Close()

	var r io.Reader = f
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if enc != nil {
		r = transform.NewReader(f, enc.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if opts.Delimiter != "" {
		cr.Comma = []rune(opts.Delimiter)[0]
	}

	records, err := cr.ReadAll()
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析文件失败 %s: %w", filePath, err)
	}
	if len(records) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s", ErrEmptyInput, filePath)
	}
	return recordsToDataFrame(records[0], records[1:])
}

// lookupEncoding utf-8 返回 nil，表示无需转码
func lookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "utf-8" || name == "utf8" {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("不支持的编码 %q: %w", name, err)
	}
	return enc, nil
}

// ReadXLSX 读取xlsx工作表，第一行为表头
func ReadXLSX(filePath, sheetName string) (dataframe.DataFrame, error) {
	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}

	// 2. 获取工作表
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表: %s", filePath)
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表 %s: %s", sheetName, filePath)
		}
		sheet = s
	}

	// 3. 转换为Gota DataFrame
	return convertSheetToDataFrame(sheet, filePath)
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet, filePath string) (dataframe.DataFrame, error) {
	if len(sheet.Rows) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s", ErrEmptyInput, filePath)
	}

	records := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			records = append(records, nil)
			continue
		}
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.Value
		}
		records = append(records, cells)
	}
	return recordsToDataFrame(records[0], records[1:])
}

// recordsToDataFrame 表头 + 数据行 -> 全字符串列；短行补空，长行截断
func recordsToDataFrame(header []string, rows [][]string) (dataframe.DataFrame, error) {
	if isBlank(header) {
		return dataframe.DataFrame{}, ErrEmptyInput
	}
	headers := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		headers[i] = h
	}

	// 准备数据列
	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(rows))
	}

	// 跳过完全空的行
	for _, row := range rows {
		if isBlank(row) {
			continue
		}
		for i := range headers {
			v := ""
			if i < len(row) {
				v = strings.TrimSpace(row[i])
			}
			columns[i] = append(columns[i], v)
		}
	}

	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		seriesList[i] = series.New(columns[i], series.String, colName)
	}
	df := dataframe.New(seriesList...)
	return df, df.Err
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// WriteTable 按扩展名输出 csv 或 xlsx
func WriteTable(df dataframe.DataFrame, filePath string) error {
	if df.Err != nil {
		return df.Err
	}
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建输出目录失败: %w", err)
		}
	}

	if strings.EqualFold(filepath.Ext(filePath), ".xlsx") {
		return utils.SaveToExcel(df, filePath, "features")
	}

	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("创建输出文件失败: %w", err)
	}
	if err := df.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("写入CSV失败: %w", err)
	}
	return f.Close()
}
