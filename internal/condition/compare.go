package condition

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// educationRanks 学历等级全序: high_school < college < bachelor < master < doctor。
// 学历比较必须按等级而非字符串排序，否则"bachelor"会错误地排在"doctor"之上。
var educationRanks = map[string]int{
	"high_school": 1,
	"college":     2,
	"bachelor":    3,
	"master":      4,
	"doctor":      5,
}

// resolveComparison 比较解析器，对候选人实际值和条件声明值执行操作符语义。
// actual为候选人属性实际值，present标记该属性是否存在。
// 数据缺失和类型不匹配一律降级为false，只有未知操作符返回配置错误。
func resolveComparison(field string, actual interface{}, present bool, op ComparisonOperator, declared interface{}) (bool, error) {
	switch op {
	case OpEq:
		if !present {
			return false, nil
		}
		return valuesEqual(actual, declared), nil

	case OpNe:
		// 缺失字段的ne: 声明值非空时视为不等，成立
		if !present {
			return declared != nil, nil
		}
		return !valuesEqual(actual, declared), nil

	case OpGt, OpGte, OpLt, OpLte:
		if !present {
			return false, nil
		}
		if field == FieldEducationLevel {
			return compareEducation(actual, op, declared), nil
		}
		return compareNumeric(actual, op, declared), nil

	case OpIn:
		if !present {
			return false, nil
		}
		return memberOf(declared, actual), nil

	case OpNotIn:
		if !present {
			return false, nil
		}
		return !memberOf(declared, actual), nil

	case OpContains:
		if !present {
			return false, nil
		}
		return containsValue(actual, declared), nil

	case OpStartsWith:
		if !present {
			return false, nil
		}
		return stringAffix(actual, declared, strings.HasPrefix), nil

	case OpEndsWith:
		if !present {
			return false, nil
		}
		return stringAffix(actual, declared, strings.HasSuffix), nil

	default:
		return false, newConfigError("compare", fmt.Sprintf("未知比较操作符: %q", op))
	}
}

// resolveKeyword 关键词条件解析。忽略结构化属性，
// 在简历原文中做不区分大小写的子串搜索；原文缺失时直接不满足。
func resolveKeyword(text string, hasText bool, op ComparisonOperator, declared interface{}) (bool, error) {
	switch op {
	case OpContains, OpEq, OpIn:
		if !hasText {
			return false, nil
		}
		return keywordFound(text, declared), nil
	case OpNe, OpNotIn:
		if !hasText {
			return false, nil
		}
		return !keywordFound(text, declared), nil
	default:
		return false, newConfigError("compare", fmt.Sprintf("关键词字段不支持操作符: %q", op))
	}
}

// keywordFound 不区分大小写的子串搜索，声明值可以是单个词或词列表(任一命中即为真)
func keywordFound(text string, declared interface{}) bool {
	lowerText := strings.ToLower(text)
	if list, ok := asList(declared); ok {
		for _, item := range list {
			if word, ok := asString(item); ok && word != "" && strings.Contains(lowerText, strings.ToLower(word)) {
				return true
			}
		}
		return false
	}
	word, ok := asString(declared)
	if !ok || word == "" {
		return false
	}
	return strings.Contains(lowerText, strings.ToLower(word))
}

// valuesEqual 类型归一化后的相等判断。
// 双方都能转成数字时按数值比较，避免JSON反序列化产生的int/float64差异。
func valuesEqual(actual, declared interface{}) bool {
	if af, aok := toFloat(actual); aok {
		if df, dok := toFloat(declared); dok {
			return af == df
		}
	}
	if as, aok := asString(actual); aok {
		if ds, dok := asString(declared); dok {
			return as == ds
		}
	}
	return reflect.DeepEqual(actual, declared)
}

// compareNumeric 数值大小比较，任一侧无法转成数字时降级为false
func compareNumeric(actual interface{}, op ComparisonOperator, declared interface{}) bool {
	af, aok := toFloat(actual)
	df, dok := toFloat(declared)
	if !aok || !dok {
		return false
	}
	return applyOrder(compareFloats(af, df), op)
}

// compareEducation 按学历等级比较，未知学历降级为false
func compareEducation(actual interface{}, op ComparisonOperator, declared interface{}) bool {
	as, aok := asString(actual)
	ds, dok := asString(declared)
	if !aok || !dok {
		return false
	}
	actualRank, aok := educationRanks[strings.ToLower(strings.TrimSpace(as))]
	declaredRank, dok := educationRanks[strings.ToLower(strings.TrimSpace(ds))]
	if !aok || !dok {
		return false
	}
	return applyOrder(compareInts(actualRank, declaredRank), op)
}

// applyOrder 将三态比较结果(-1/0/1)映射到大小操作符
func applyOrder(cmp int, op ComparisonOperator) bool {
	switch op {
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// memberOf 成员判断，声明值必须是列表，否则降级为false
func memberOf(declared, actual interface{}) bool {
	list, ok := asList(declared)
	if !ok {
		return false
	}
	for _, item := range list {
		if valuesEqual(actual, item) {
			return true
		}
	}
	return false
}

// containsValue 包含判断:
// 实际值为列表时(如skills)，声明的标量须是列表元素，大小写敏感的精确匹配;
// 实际值为字符串时，声明值须是其子串。
func containsValue(actual, declared interface{}) bool {
	if list, ok := asList(actual); ok {
		for _, item := range list {
			if valuesEqual(item, declared) {
				return true
			}
		}
		return false
	}
	as, aok := asString(actual)
	ds, dok := asString(declared)
	if !aok || !dok {
		return false
	}
	return strings.Contains(as, ds)
}

// stringAffix 字符串前缀/后缀判断，非字符串降级为false
func stringAffix(actual, declared interface{}, test func(string, string) bool) bool {
	as, aok := asString(actual)
	ds, dok := asString(declared)
	if !aok || !dok {
		return false
	}
	return test(as, ds)
}

// toFloat 尽力把值转成float64，数字型字符串也可以(数值强制转换规则)
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// asString 仅接受真正的字符串，不做数字到字符串的隐式转换
func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asList 把JSON反序列化或调用方直接构造的列表统一成[]interface{}
func asList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []string:
		out := make([]interface{}, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}
