package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecodeTree 从持久化JSON还原条件树，按字段形状区分叶子和条件组
func TestDecodeTree(t *testing.T) {
	raw := `{
		"operator": "and",
		"conditions": [
			{
				"operator": "or",
				"conditions": [
					{"field": "skills", "operator": "contains", "value": "Python"},
					{"field": "skills", "operator": "contains", "value": "Java"}
				]
			},
			{"field": "work_years", "operator": "gte", "value": 3}
		]
	}`

	node, err := DecodeTree([]byte(raw))
	require.NoError(t, err)

	root, ok := node.(*ConditionGroup)
	require.True(t, ok, "根节点应是条件组")
	assert.Equal(t, KindGroup, root.Kind())
	assert.Equal(t, LogicAnd, root.Operator)
	require.Len(t, root.Conditions, 2)

	inner, ok := root.Conditions[0].(*ConditionGroup)
	require.True(t, ok)
	assert.Equal(t, LogicOr, inner.Operator)
	require.Len(t, inner.Conditions, 2)

	leaf, ok := root.Conditions[1].(*FilterCondition)
	require.True(t, ok)
	assert.Equal(t, KindLeaf, leaf.Kind())
	assert.Equal(t, "work_years", leaf.Field)
	assert.Equal(t, OpGte, leaf.Operator)
	assert.Equal(t, float64(3), leaf.Value)
}

// TestDecodeTreeRoundTrip 编码后再解码语义不变
func TestDecodeTreeRoundTrip(t *testing.T) {
	tree := &ConditionGroup{
		Operator: LogicNot,
		Conditions: []Node{
			&FilterCondition{Field: FieldKeywords, Operator: OpContains, Value: "大数据"},
			&ConditionGroup{
				Operator: LogicAnd,
				Conditions: []Node{
					&FilterCondition{Field: FieldEducationLevel, Operator: OpGte, Value: "bachelor"},
				},
			},
		},
	}

	data, err := EncodeTree(tree)
	require.NoError(t, err)

	decoded, err := DecodeTree(data)
	require.NoError(t, err)

	facts := Facts{"education_level": "master"}
	text := "精通大数据平台建设"

	wantBefore, err := Evaluate(tree, facts, text)
	require.NoError(t, err)
	wantAfter, err := Evaluate(decoded, facts, text)
	require.NoError(t, err)
	assert.Equal(t, wantBefore, wantAfter, "编解码前后评估结果应一致")
	assert.False(t, wantAfter, "排除词命中应不通过")
}

// TestDecodeMalformedNode 畸形节点报配置错误
func TestDecodeMalformedNode(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"非JSON对象", `"just a string"`},
		{"既无conditions也无field", `{"operator": "and"}`},
		{"conditions不是列表", `{"operator": "and", "conditions": "oops"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeTree([]byte(tc.raw))
			require.Error(t, err)
		})
	}
}

// TestEncodeNilTree 空树不可编码
func TestEncodeNilTree(t *testing.T) {
	_, err := EncodeTree(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadFilterConfig)
}
