package pkg

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseID 解析路径或载荷里的数字 id，非法或为 0 时返回 false
func ParseID(s string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func FormatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// ClampPage 页码与页大小归一化，page*size 不会溢出 int
func ClampPage(page, size, defSize, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defSize
	}
	if size > maxSize {
		size = maxSize
	}
	if page > math.MaxInt/size {
		page = math.MaxInt / size
	}
	return page, size
}

const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime ISO-8601，统一为 UTC 毫秒精度
func FormatTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}
