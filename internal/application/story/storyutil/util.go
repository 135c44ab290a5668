// Package storyutil 提供 story 应用层内部共享的文本工具函数。
package storyutil

import (
	"strings"
	"unicode/utf8"
)

// TruncationMarker 预览被截断时追加的标记
const TruncationMarker = "…[truncated]"

// TruncateByRunes 按 rune 数量截断字符串。
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// Preview 超过 maxRunes 时保留前 maxRunes 个字符并追加截断标记
func Preview(s string, maxRunes int) (string, bool) {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s, false
	}
	return TruncateByRunes(s, maxRunes) + TruncationMarker, true
}

// OneLine 将空白（含换行）折叠为单个空格
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FirstLine 返回首个非空行（已去除首尾空白）
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
