package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 一个典型的候选人事实集合，供多个用例复用
func sampleFacts() Facts {
	return Facts{
		"name":            "张伟",
		"education_level": "master",
		"work_years":      float64(5),
		"skills":          []interface{}{"Python", "Java", "SQL", "Docker"},
		"major":           "计算机科学",
	}
}

// TestNotGroupIsNOR not组是NOR语义: 所有子条件都不成立才算通过。
// 单个子条件时退化为取反，多个子条件时任意一个命中即排除。
func TestNotGroupIsNOR(t *testing.T) {
	facts := Facts{
		"skills": []interface{}{"Java"},
	}
	text := "熟悉Java开发，有分布式系统经验"

	// 排除名单只有"大数据"，简历中没有，候选人通过
	single := &ConditionGroup{
		Operator: LogicNot,
		Conditions: []Node{
			&FilterCondition{Field: FieldKeywords, Operator: OpContains, Value: "大数据"},
		},
	}
	ok, err := Evaluate(single, facts, text)
	require.NoError(t, err)
	assert.True(t, ok, "排除词未出现时应通过")

	// 追加一个简历中确实存在的排除词，结论必须翻转为不通过
	double := &ConditionGroup{
		Operator: LogicNot,
		Conditions: []Node{
			&FilterCondition{Field: FieldKeywords, Operator: OpContains, Value: "大数据"},
			&FilterCondition{Field: FieldKeywords, Operator: OpContains, Value: "分布式"},
		},
	}
	ok, err = Evaluate(double, facts, text)
	require.NoError(t, err)
	assert.False(t, ok, "任意一个排除词命中即应排除候选人")

	// 两个排除词都不存在时通过
	clean := &ConditionGroup{
		Operator: LogicNot,
		Conditions: []Node{
			&FilterCondition{Field: FieldKeywords, Operator: OpContains, Value: "大数据"},
			&FilterCondition{Field: FieldKeywords, Operator: OpContains, Value: "区块链"},
		},
	}
	ok, err = Evaluate(clean, facts, text)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestAndOrComposition 嵌套组合: (A or B) and C
func TestAndOrComposition(t *testing.T) {
	facts := Facts{
		"skills":     []interface{}{"Go"},      // A: contains "Rust" 为假
		"major":      "软件工程",                   // B: eq "软件工程" 为真
		"work_years": float64(4),               // C 由用例控制
	}

	buildTree := func(minYears float64) Node {
		return &ConditionGroup{
			Operator: LogicAnd,
			Conditions: []Node{
				&ConditionGroup{
					Operator: LogicOr,
					Conditions: []Node{
						&FilterCondition{Field: "skills", Operator: OpContains, Value: "Rust"},
						&FilterCondition{Field: "major", Operator: OpEq, Value: "软件工程"},
					},
				},
				&FilterCondition{Field: "work_years", Operator: OpGte, Value: minYears},
			},
		}
	}

	// A=假 B=真 C=真 -> 真
	ok, err := Evaluate(buildTree(3), facts, "")
	require.NoError(t, err)
	assert.True(t, ok)

	// C=假 -> 假
	ok, err = Evaluate(buildTree(10), facts, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestKeywordsVersusAttributeField keywords查简历原文，普通字段查结构化属性，两者不能混
func TestKeywordsVersusAttributeField(t *testing.T) {
	facts := Facts{
		"skills": []interface{}{"Python", "SQL"},
	}
	text := "expertise in microservices and distributed systems"

	byKeyword := &FilterCondition{Field: FieldKeywords, Operator: OpContains, Value: "microservices"}
	ok, err := Evaluate(byKeyword, facts, text)
	require.NoError(t, err)
	assert.True(t, ok, "原文中存在该词，keywords条件应满足")

	bySkill := &FilterCondition{Field: "skills", Operator: OpContains, Value: "microservices"}
	ok, err = Evaluate(bySkill, facts, text)
	require.NoError(t, err)
	assert.False(t, ok, "技能列表中没有该项，skills条件不应满足")
}

// TestMissingFieldTolerance 候选人缺失字段时正常产出不满足，绝不抛错
func TestMissingFieldTolerance(t *testing.T) {
	facts := Facts{
		"name": "李明",
	}
	cond := &FilterCondition{Field: "work_years", Operator: OpGte, Value: float64(3)}

	ok, err := Evaluate(cond, facts, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestEvaluationIdempotence 纯函数: 相同输入重复评估结果一致
func TestEvaluationIdempotence(t *testing.T) {
	facts := sampleFacts()
	tree := &ConditionGroup{
		Operator: LogicAnd,
		Conditions: []Node{
			&FilterCondition{Field: "skills", Operator: OpContains, Value: "Python"},
			&FilterCondition{Field: FieldEducationLevel, Operator: OpGte, Value: "bachelor"},
		},
	}

	first, err := Evaluate(tree, facts, "")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Evaluate(tree, facts, "")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// TestScreeningScenario 端到端场景:
// AND(OR(contains(skills,"Python"), contains(skills,"Java")), GTE(work_years,3))
func TestScreeningScenario(t *testing.T) {
	tree := &ConditionGroup{
		Operator: LogicAnd,
		Conditions: []Node{
			&ConditionGroup{
				Operator: LogicOr,
				Conditions: []Node{
					&FilterCondition{Field: "skills", Operator: OpContains, Value: "Python"},
					&FilterCondition{Field: "skills", Operator: OpContains, Value: "Java"},
				},
			},
			&FilterCondition{Field: "work_years", Operator: OpGte, Value: float64(3)},
		},
	}

	facts := sampleFacts()
	ok, err := Evaluate(tree, facts, "")
	require.NoError(t, err)
	assert.True(t, ok)

	facts["work_years"] = float64(2)
	ok, err = Evaluate(tree, facts, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestLeafOutcomesRecorded 评估器记录每条叶子明细，供调用方拼装筛选理由
func TestLeafOutcomesRecorded(t *testing.T) {
	facts := sampleFacts()
	tree := &ConditionGroup{
		Operator: LogicAnd,
		Conditions: []Node{
			&FilterCondition{Field: "skills", Operator: OpContains, Value: "Python"},
			&FilterCondition{Field: "work_years", Operator: OpGte, Value: float64(10)},
		},
	}

	e := NewEvaluator(facts)
	ok, err := e.Evaluate(tree)
	require.NoError(t, err)
	assert.False(t, ok)

	outcomes := e.Outcomes()
	require.Len(t, outcomes, 2)
	assert.Equal(t, "skills", outcomes[0].Field)
	assert.True(t, outcomes[0].Matched)
	assert.Equal(t, "work_years", outcomes[1].Field)
	assert.False(t, outcomes[1].Matched)
}

// TestUnknownLogicalOperator 未知逻辑操作符属于配置错误
func TestUnknownLogicalOperator(t *testing.T) {
	tree := &ConditionGroup{
		Operator: LogicalOperator("xor"),
		Conditions: []Node{
			&FilterCondition{Field: "name", Operator: OpEq, Value: "张伟"},
		},
	}
	_, err := Evaluate(tree, sampleFacts(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadFilterConfig)
}

// TestNilNode 空节点同样是配置错误
func TestNilNode(t *testing.T) {
	_, err := Evaluate(nil, sampleFacts(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadFilterConfig)
}

// TestDeepNesting 深层嵌套组正确递归
func TestDeepNesting(t *testing.T) {
	// not( and( contains(skills,"Python"), not(gte(work_years,10)) ) )
	// 内层: Python命中 且 工作年限不足10年 -> and为真 -> 外层not为假
	tree := &ConditionGroup{
		Operator: LogicNot,
		Conditions: []Node{
			&ConditionGroup{
				Operator: LogicAnd,
				Conditions: []Node{
					&FilterCondition{Field: "skills", Operator: OpContains, Value: "Python"},
					&ConditionGroup{
						Operator: LogicNot,
						Conditions: []Node{
							&FilterCondition{Field: "work_years", Operator: OpGte, Value: float64(10)},
						},
					},
				},
			},
		},
	}
	ok, err := Evaluate(tree, sampleFacts(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}
