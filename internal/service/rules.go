package service

import (
	"fmt"
	"strconv"
	"strings"
)

// AutoFillRule 引用派生规则：选中 ReferenceModel 的记录后，
// 读取其 SourceField 字段，写入名为 TargetAttribute 的属性行的自定义文本
type AutoFillRule struct {
	ReferenceModel  string `mapstructure:"reference_model" json:"reference_model"`
	SourceField     string `mapstructure:"source_field" json:"source_field"`
	TargetAttribute string `mapstructure:"target_attribute" json:"target_attribute"`
}

// DefaultValueRule 主商品加载后，若该属性行仍为空，则预选指定值
type DefaultValueRule struct {
	Attribute string `mapstructure:"attribute" json:"attribute"`
	Value     string `mapstructure:"value" json:"value"`
}

// Rules 会话行为规则
type Rules struct {
	AutoFill      []AutoFillRule
	DefaultValues []DefaultValueRule
	// PreselectSingleValues 只有一个可选值的属性行自动选中
	PreselectSingleValues bool
}

// DefaultRules 默认规则（型材宽度自动填充、厚度默认 5-7）
func DefaultRules() Rules {
	return Rules{
		AutoFill: []AutoFillRule{
			{ReferenceModel: "profile.name", SourceField: "width", TargetAttribute: "width"},
		},
		DefaultValues: []DefaultValueRule{
			{Attribute: "thickness", Value: "5-7"},
		},
		PreselectSingleValues: true,
	}
}

// autoFillFor 查找引用模型对应的规则
func (r Rules) autoFillFor(modelName string) (AutoFillRule, bool) {
	if modelName == "" {
		return AutoFillRule{}, false
	}
	for _, rule := range r.AutoFill {
		if rule.ReferenceModel == modelName {
			return rule, true
		}
	}
	return AutoFillRule{}, false
}

// formatFieldValue 把 oracle 返回的字段值转为文本
// Odoo 空值为 false
func formatFieldValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		if !val {
			return ""
		}
		return "true"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return strings.TrimSpace(val)
	default:
		return fmt.Sprint(val)
	}
}
