package tracing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPII(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"空字符串", "", ""},
		{"单字符", "张", "*"},
		{"两字姓名", "张三", "张*"},
		{"三字姓名", "王小明", "王*明"},
		{"手机号", "13812345678", "13*******78"},
		{"邮箱", "user@mail.com", "us*********om"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskPII(tt.input))
		})
	}
}

func TestTruncateString(t *testing.T) {
	// 短于上限的字符串原样返回
	assert.Equal(t, "short", TruncateString("short", 10))

	// 超长字符串中间省略，总长不超过上限
	long := strings.Repeat("a", 50) + strings.Repeat("b", 50)
	truncated := TruncateString(long, 20)
	assert.LessOrEqual(t, len([]rune(truncated)), 20)
	assert.Contains(t, truncated, "...")
	assert.True(t, strings.HasPrefix(truncated, "a"))
	assert.True(t, strings.HasSuffix(truncated, "b"))
}

func TestSafeAttributeValue(t *testing.T) {
	// 敏感字段名触发掩码
	assert.Equal(t, "13*******78", SafeAttributeValue("phone", "13812345678", 200))
	assert.Equal(t, "王*明", SafeAttributeValue("candidate_name", "王小明", 200))

	// 普通字段只截断
	assert.Equal(t, "golang", SafeAttributeValue("skill", "golang", 200))
}

func TestSafeReason(t *testing.T) {
	reason := strings.Repeat("未满足条件; ", 100)
	safe := SafeReason(reason)
	assert.LessOrEqual(t, len([]rune(safe)), MaxReasonLength)
}
