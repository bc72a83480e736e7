package condition

import (
	"encoding/json"
	"fmt"
)

// ComparisonOperator 叶子条件的比较操作符
type ComparisonOperator string

const (
	OpEq         ComparisonOperator = "eq"
	OpNe         ComparisonOperator = "ne"
	OpGt         ComparisonOperator = "gt"
	OpGte        ComparisonOperator = "gte"
	OpLt         ComparisonOperator = "lt"
	OpLte        ComparisonOperator = "lte"
	OpIn         ComparisonOperator = "in"
	OpNotIn      ComparisonOperator = "not_in"
	OpContains   ComparisonOperator = "contains"
	OpStartsWith ComparisonOperator = "starts_with"
	OpEndsWith   ComparisonOperator = "ends_with"
)

// LogicalOperator 条件组的逻辑操作符
type LogicalOperator string

const (
	LogicAnd LogicalOperator = "and"
	LogicOr  LogicalOperator = "or"
	// LogicNot 是NOR语义: 所有子条件均不满足时为真。
	// 注意不是对第一个子条件取反，多个子条件时任意一个命中即排除。
	LogicNot LogicalOperator = "not"
)

// FieldKeywords 关键词哨兵字段。该字段不查候选人结构化属性，
// 而是在简历原文中做不区分大小写的子串搜索。
const FieldKeywords = "keywords"

// FieldEducationLevel 学历字段，大小比较按学历等级排序而非字符串排序
const FieldEducationLevel = "education_level"

// NodeKind 节点类型标记，{叶子, 条件组} 为封闭集合
type NodeKind string

const (
	// KindLeaf 叶子条件节点
	KindLeaf NodeKind = "leaf"
	// KindGroup 条件组节点
	KindGroup NodeKind = "group"
)

// Node 条件树节点。实现仅限 *FilterCondition 和 *ConditionGroup 两种。
type Node interface {
	Kind() NodeKind
}

// 确保两种节点实现了Node接口
var (
	_ Node = (*FilterCondition)(nil)
	_ Node = (*ConditionGroup)(nil)
)

// FilterCondition 叶子条件，一条 字段/操作符/比较值 规则。
// 构造后不可变，field和value没有默认值。
type FilterCondition struct {
	Field    string             `json:"field"`
	Operator ComparisonOperator `json:"operator"`
	Value    interface{}        `json:"value"`
}

// Kind 返回节点类型
func (c *FilterCondition) Kind() NodeKind {
	return KindLeaf
}

// ConditionGroup 条件组，逻辑操作符作用于有序的子节点列表。
// 子节点可以是叶子条件，也可以是嵌套条件组，深度不限。
type ConditionGroup struct {
	Operator   LogicalOperator `json:"operator"`
	Conditions []Node          `json:"conditions"`
}

// Kind 返回节点类型
func (g *ConditionGroup) Kind() NodeKind {
	return KindGroup
}

// UnmarshalJSON 按是否存在conditions字段区分条件组和叶子条件
func (g *ConditionGroup) UnmarshalJSON(data []byte) error {
	var raw struct {
		Operator   LogicalOperator   `json:"operator"`
		Conditions []json.RawMessage `json:"conditions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("解析条件组失败: %w", err)
	}

	g.Operator = raw.Operator
	g.Conditions = make([]Node, 0, len(raw.Conditions))
	for i, childRaw := range raw.Conditions {
		child, err := DecodeNode(childRaw)
		if err != nil {
			return fmt.Errorf("解析条件组第%d个子节点失败: %w", i, err)
		}
		g.Conditions = append(g.Conditions, child)
	}
	return nil
}

// DecodeNode 将JSON字节解码为条件树节点。
// 带conditions字段的对象是条件组，带field字段的对象是叶子条件，其余形状报配置错误。
func DecodeNode(data []byte) (Node, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, newConfigError("decode", fmt.Sprintf("条件节点不是合法的JSON对象: %v", err))
	}

	if _, isGroup := probe["conditions"]; isGroup {
		var group ConditionGroup
		if err := json.Unmarshal(data, &group); err != nil {
			return nil, err
		}
		return &group, nil
	}

	if _, isLeaf := probe["field"]; isLeaf {
		var leaf FilterCondition
		if err := json.Unmarshal(data, &leaf); err != nil {
			return nil, newConfigError("decode", fmt.Sprintf("解析叶子条件失败: %v", err))
		}
		return &leaf, nil
	}

	return nil, newConfigError("decode", "条件节点既没有conditions也没有field字段")
}

// DecodeTree 解码一棵完整条件树，等价于DecodeNode，命名上区分根节点入口
func DecodeTree(data []byte) (Node, error) {
	return DecodeNode(data)
}

// EncodeTree 将条件树编码为JSON，持久化时使用
func EncodeTree(root Node) ([]byte, error) {
	if root == nil {
		return nil, newConfigError("encode", "条件树根节点为空")
	}
	data, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("编码条件树失败: %w", err)
	}
	return data, nil
}
