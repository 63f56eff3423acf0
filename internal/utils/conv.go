package utils

import (
	"strconv"
)

// StringToInt converts string to int, returns 0 if error
func StringToInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

// ParseUintParam 解析路径/查询中的正整数 ID
func ParseUintParam(s string) (uint, bool) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// OptionalUint 空串返回 nil
func OptionalUint(s string) (*uint, bool) {
	if s == "" {
		return nil, true
	}
	v, ok := ParseUintParam(s)
	if !ok {
		return nil, false
	}
	return &v, true
}
