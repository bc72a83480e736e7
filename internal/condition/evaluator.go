package condition

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Facts 候选人事实集合，属性名到属性值的映射。
// 由上游简历属性提取环节产生，评估器只读，不持有调用之外的所有权。
type Facts map[string]interface{}

// Lookup 查找候选人属性，返回显式的"缺失"标记而不是抛错，
// 把"字段缺失→不满足"的约定集中在这一处。
func (f Facts) Lookup(field string) (interface{}, bool) {
	if f == nil {
		return nil, false
	}
	v, ok := f[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// LeafOutcome 单条叶子条件的评估明细，调用方用它拼装人类可读的筛选理由
type LeafOutcome struct {
	Field    string             `json:"field"`
	Operator ComparisonOperator `json:"operator"`
	Value    interface{}        `json:"value"`
	Matched  bool               `json:"matched"`
}

// Evaluator 条件评估器。每次候选人评估构造一个实例，持有该候选人的
// 事实集合和简历原文，产出结论后即丢弃。无跨评估状态，无共享可变数据，
// 不同输入上的并发调用无需任何协调。
type Evaluator struct {
	facts    Facts
	text     string
	hasText  bool
	outcomes []LeafOutcome
	logger   zerolog.Logger
}

// EvaluatorOption 评估器配置选项
type EvaluatorOption func(*Evaluator)

// WithTextContent 设置简历原文，仅keywords字段使用
func WithTextContent(text string) EvaluatorOption {
	return func(e *Evaluator) {
		e.text = text
		e.hasText = text != ""
	}
}

// WithLogger 设置诊断日志记录器
func WithLogger(logger zerolog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// NewEvaluator 创建一个新的条件评估器
func NewEvaluator(facts Facts, options ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		facts:  facts,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Evaluate 评估候选人是否满足给定节点。按节点类型分派，
// 封闭集合之外的实现视为配置错误。
func (e *Evaluator) Evaluate(node Node) (bool, error) {
	switch n := node.(type) {
	case *FilterCondition:
		return e.evaluateLeaf(n)
	case *ConditionGroup:
		return e.evaluateGroup(n)
	case nil:
		return false, newConfigError("combine", "条件节点为空")
	default:
		return false, newConfigError("combine", fmt.Sprintf("未知节点类型: %T", node))
	}
}

// Outcomes 返回本次评估记录的全部叶子明细，顺序与深度优先遍历一致
func (e *Evaluator) Outcomes() []LeafOutcome {
	return e.outcomes
}

// evaluateLeaf 解析候选人实际值并交给比较解析器
func (e *Evaluator) evaluateLeaf(c *FilterCondition) (bool, error) {
	var matched bool
	var err error

	if c.Field == FieldKeywords {
		matched, err = resolveKeyword(e.text, e.hasText, c.Operator, c.Value)
	} else {
		actual, present := e.facts.Lookup(c.Field)
		if !present {
			e.logger.Debug().Str("field", c.Field).Msg("候选人缺失该属性，条件按不满足处理")
		}
		matched, err = resolveComparison(c.Field, actual, present, c.Operator, c.Value)
	}
	if err != nil {
		return false, err
	}

	e.outcomes = append(e.outcomes, LeafOutcome{
		Field:    c.Field,
		Operator: c.Operator,
		Value:    c.Value,
		Matched:  matched,
	})
	return matched, nil
}

// evaluateGroup 深度优先评估所有子节点并按逻辑操作符归并。
// 为了让叶子明细完整，这里不做短路，评估无副作用所以结果等价。
func (e *Evaluator) evaluateGroup(g *ConditionGroup) (bool, error) {
	matchedCount := 0
	for _, child := range g.Conditions {
		ok, err := e.Evaluate(child)
		if err != nil {
			return false, err
		}
		if ok {
			matchedCount++
		}
	}

	switch g.Operator {
	case LogicAnd:
		return matchedCount == len(g.Conditions), nil
	case LogicOr:
		return matchedCount > 0, nil
	case LogicNot:
		// NOR: 所有子条件都不成立才为真。单个子条件时退化为普通取反，
		// 多个子条件时任意一个命中即排除，这正是排除名单的语义。
		return matchedCount == 0, nil
	default:
		return false, newConfigError("combine", fmt.Sprintf("未知逻辑操作符: %q", g.Operator))
	}
}

// Evaluate 一次性评估入口: 对给定条件树、候选人事实和简历原文产出是否合格。
// 纯函数，相同输入重复调用结果一致。
func Evaluate(root Node, facts Facts, textContent string) (bool, error) {
	return NewEvaluator(facts, WithTextContent(textContent)).Evaluate(root)
}
