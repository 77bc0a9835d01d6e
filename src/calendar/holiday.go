// Package calendar 提供节假日查询，流水线只依赖 HolidayCalendar 接口
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

var (
	ErrNoCalendar       = errors.New("未配置节假日日历")
	ErrUnknownCalendar  = errors.New("未知的节假日日历")
	ErrCalendarCoverage = errors.New("节假日日历未覆盖数据年份")
)

// HolidayCalendar 只读的节假日查询
type HolidayCalendar interface {
	Name() string
	IsHoliday(date time.Time) bool
	Covers(year int) bool
}

// registry 日历名称 -> 节假日列表
var registry = map[string][]*cal.Holiday{
	"US": us.Holidays,
}

// Names 返回已注册的日历名称
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type holidayCalendar struct {
	name     string
	bc       *cal.BusinessCalendar
	fromYear int
	toYear   int
}

// New 按名称构造日历；fromYear/toYear 为 0 表示不限
func New(name string, fromYear, toYear int) (HolidayCalendar, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return nil, ErrNoCalendar
	}
	holidays, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (可选: %s)", ErrUnknownCalendar, name, strings.Join(Names(), ", "))
	}

	bc := cal.NewBusinessCalendar()
	bc.AddHoliday(holidays...)
	return &holidayCalendar{name: name, bc: bc, fromYear: fromYear, toYear: toYear}, nil
}

func (c *holidayCalendar) Name() string { return c.name }

// IsHoliday 法定日或调休日均算节假日
func (c *holidayCalendar) IsHoliday(date time.Time) bool {
	actual, observed, _ := c.bc.IsHoliday(date)
	return actual || observed
}

func (c *holidayCalendar) Covers(year int) bool {
	if c.fromYear > 0 && year < c.fromYear {
		return false
	}
	if c.toYear > 0 && year > c.toYear {
		return false
	}
	return true
}

// CheckCoverage 任一年份不在日历范围内即返回 ErrCalendarCoverage
func CheckCoverage(c HolidayCalendar, years []int) error {
	if c == nil {
		return ErrNoCalendar
	}
	var missing []int
	seen := make(map[int]bool)
	for _, y := range years {
		if seen[y] {
			continue
		}
		seen[y] = true
		if !c.Covers(y) {
			missing = append(missing, y)
		}
	}
	if len(missing) > 0 {
		sort.Ints(missing)
		return fmt.Errorf("%w: %s %v", ErrCalendarCoverage, c.Name(), missing)
	}
	return nil
}

// Fixed 固定日期集合的日历，用于测试与自定义场景
type Fixed struct {
	name  string
	dates map[string]struct{}
}

// NewFixed 以给定日期构造日历，覆盖所有年份
func NewFixed(name string, dates ...time.Time) *Fixed {
	f := &Fixed{name: name, dates: make(map[string]struct{}, len(dates))}
	for _, d := range dates {
		f.dates[d.Format("2006-01-02")] = struct{}{}
	}
	return f
}

func (f *Fixed) Name() string                  { return f.name }
func (f *Fixed) IsHoliday(date time.Time) bool { _, ok := f.dates[date.Format("2006-01-02")]; return ok }
func (f *Fixed) Covers(int) bool               { return true }
