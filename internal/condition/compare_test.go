package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolveComparisonBasicOperators 基础操作符语义
func TestResolveComparisonBasicOperators(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		actual   interface{}
		present  bool
		op       ComparisonOperator
		declared interface{}
		want     bool
	}{
		{"eq字符串相等", "major", "计算机科学", true, OpEq, "计算机科学", true},
		{"eq字符串不等", "major", "软件工程", true, OpEq, "计算机科学", false},
		{"eq数值归一化_int与float64", "work_years", 5, true, OpEq, float64(5), true},
		{"ne不等成立", "school", "某大学", true, OpNe, "清华大学", true},
		{"ne相等不成立", "school", "清华大学", true, OpNe, "清华大学", false},
		{"gt数值", "work_years", float64(5), true, OpGt, float64(3), true},
		{"gte边界相等", "work_years", float64(3), true, OpGte, float64(3), true},
		{"lt数值", "work_years", float64(2), true, OpLt, float64(3), true},
		{"lte不满足", "work_years", float64(5), true, OpLte, float64(3), false},
		{"in命中", "city", "上海", true, OpIn, []interface{}{"北京", "上海"}, true},
		{"in未命中", "city", "广州", true, OpIn, []interface{}{"北京", "上海"}, false},
		{"not_in未命中成立", "city", "广州", true, OpNotIn, []interface{}{"北京", "上海"}, true},
		{"not_in命中不成立", "city", "北京", true, OpNotIn, []interface{}{"北京", "上海"}, false},
		{"contains列表命中", "skills", []interface{}{"Python", "Java"}, true, OpContains, "Java", true},
		{"contains列表大小写敏感", "skills", []interface{}{"Python", "Java"}, true, OpContains, "java", false},
		{"contains字符串子串", "name", "张伟强", true, OpContains, "伟", true},
		{"starts_with前缀", "name", "张伟", true, OpStartsWith, "张", true},
		{"ends_with后缀", "name", "张伟", true, OpEndsWith, "伟", true},
		{"starts_with非字符串降级", "work_years", float64(5), true, OpStartsWith, "5", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveComparison(tt.field, tt.actual, tt.present, tt.op, tt.declared)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestResolveComparisonMissingField 字段缺失时除ne外一律不满足，且不报错
func TestResolveComparisonMissingField(t *testing.T) {
	ops := []ComparisonOperator{OpEq, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn, OpContains, OpStartsWith, OpEndsWith}
	for _, op := range ops {
		got, err := resolveComparison("work_years", nil, false, op, float64(3))
		require.NoError(t, err, "操作符 %s 不应报错", op)
		assert.False(t, got, "操作符 %s 对缺失字段应为不满足", op)
	}

	// ne对非空声明值: 缺失即"不等"，成立
	got, err := resolveComparison("work_years", nil, false, OpNe, float64(3))
	require.NoError(t, err)
	assert.True(t, got)

	// ne对空声明值不成立
	got, err = resolveComparison("work_years", nil, false, OpNe, nil)
	require.NoError(t, err)
	assert.False(t, got)
}

// TestEducationOrdinalComparison 学历按等级比较，不能按字符串比较。
// "master" >= "doctor" 按字符串是真，按学历等级必须是假。
func TestEducationOrdinalComparison(t *testing.T) {
	tests := []struct {
		name     string
		actual   string
		op       ComparisonOperator
		declared string
		want     bool
	}{
		{"硕士gte本科", "master", OpGte, "bachelor", true},
		{"硕士gte博士为假_字符串比较会出错", "master", OpGte, "doctor", false},
		{"博士gt硕士", "doctor", OpGt, "master", true},
		{"高中lt大专", "high_school", OpLt, "college", true},
		{"本科lte本科", "bachelor", OpLte, "bachelor", true},
		{"大专gt本科为假", "college", OpGt, "bachelor", false},
		{"未知学历降级为假", "phd", OpGte, "bachelor", false},
		{"大小写与空白归一", " Master ", OpGte, "bachelor", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveComparison(FieldEducationLevel, tt.actual, true, tt.op, tt.declared)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestNumericCoercion 数字型字符串在大小比较前强制转成数值，转不动就降级为假
func TestNumericCoercion(t *testing.T) {
	got, err := resolveComparison("work_years", "5", true, OpGte, float64(3))
	require.NoError(t, err)
	assert.True(t, got, "数字型字符串应参与数值比较")

	got, err = resolveComparison("work_years", "五年", true, OpGte, float64(3))
	require.NoError(t, err)
	assert.False(t, got, "不可转换的值应降级为不满足而不是报错")

	got, err = resolveComparison("work_years", " 10 ", true, OpGt, float64(9))
	require.NoError(t, err)
	assert.True(t, got, "允许前后空白")
}

// TestResolveKeyword 关键词搜索不区分大小写，原文缺失时不满足
func TestResolveKeyword(t *testing.T) {
	text := "精通微服务架构，有Kubernetes实战经验"

	got, err := resolveKeyword(text, true, OpContains, "kubernetes")
	require.NoError(t, err)
	assert.True(t, got, "关键词搜索应不区分大小写")

	got, err = resolveKeyword(text, true, OpContains, "大数据")
	require.NoError(t, err)
	assert.False(t, got)

	// 原文缺失直接不满足
	got, err = resolveKeyword("", false, OpContains, "微服务")
	require.NoError(t, err)
	assert.False(t, got)

	// 词列表任一命中即为真
	got, err = resolveKeyword(text, true, OpContains, []interface{}{"大数据", "微服务"})
	require.NoError(t, err)
	assert.True(t, got)

	// 取反类操作符
	got, err = resolveKeyword(text, true, OpNotIn, "大数据")
	require.NoError(t, err)
	assert.True(t, got)
}

// TestUnknownOperatorFailsFast 未知操作符是配置错误，必须快速失败
func TestUnknownOperatorFailsFast(t *testing.T) {
	_, err := resolveComparison("work_years", float64(5), true, ComparisonOperator("regex"), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadFilterConfig)

	var configErr *ConfigError
	assert.ErrorAs(t, err, &configErr)
	assert.Equal(t, "compare", configErr.Op)
}
