package model

import (
	"errors"
	"strings"
)

// ==================== 展示类型 ====================

// DisplayType 属性展示类型（封闭枚举）
type DisplayType string

const (
	DisplayColor           DisplayType = "color"
	DisplayMulti           DisplayType = "multi"
	DisplayPills           DisplayType = "pills"
	DisplayRadio           DisplayType = "radio"
	DisplaySelect          DisplayType = "select"
	DisplayFileUpload      DisplayType = "file_upload"
	DisplayReference       DisplayType = "m2o"
	DisplayStrictlyNumeric DisplayType = "strictly_numeric"
)

// ParseDisplayType 校验并转换展示类型
func ParseDisplayType(s string) (DisplayType, error) {
	switch d := DisplayType(s); d {
	case DisplayColor, DisplayMulti, DisplayPills, DisplayRadio, DisplaySelect,
		DisplayFileUpload, DisplayReference, DisplayStrictlyNumeric:
		return d, nil
	}
	return "", ErrUnknownDisplayType
}

// AllowsMultiple 是否允许多选
func (d DisplayType) AllowsMultiple() bool { return d == DisplayMulti }

// IsOutOfBand 文件/引用类型的取值不进入组合 ID 列表，单独随载荷传递
func (d DisplayType) IsOutOfBand() bool {
	return d == DisplayFileUpload || d == DisplayReference
}

// CreateVariantMode 变体创建策略
type CreateVariantMode string

const (
	CreateVariantAlways    CreateVariantMode = "always"
	CreateVariantDynamic   CreateVariantMode = "dynamic"
	CreateVariantNoVariant CreateVariantMode = "no_variant"
)

// ==================== 错误定义 ====================

var (
	ErrUnknownDisplayType    = errors.New("unknown attribute display type")
	ErrLineNotFound          = errors.New("attribute line not found")
	ErrValueNotFound         = errors.New("attribute value not found")
	ErrCustomValueNotAllowed = errors.New("selected value does not accept custom text")
)

// ==================== 属性结构 ====================

// Attribute 属性描述
type Attribute struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	DisplayType DisplayType `json:"display_type"`
	// ReferenceModel 引用类型属性对应的模型技术名，如 "profile.name"
	ReferenceModel string `json:"m2o_model_technical_name,omitempty"`
	// PairWithPrevious 与上一行成对展示（派生字段）
	PairWithPrevious bool `json:"pair_with_previous,omitempty"`
}

// AttributeValue 属性可选值
type AttributeValue struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsCustom  bool   `json:"is_custom"`
	HTMLColor string `json:"html_color,omitempty"`
	Image     string `json:"image,omitempty"`
	RefResID  int64  `json:"m2o_res_id,omitempty"`

	// Excluded 派生字段，只由排除引擎重算
	Excluded bool `json:"excluded"`
}

// AttributeLine 商品上的一个可配置属性行
type AttributeLine struct {
	ID               int64             `json:"id"`
	Attribute        Attribute         `json:"attribute"`
	Values           []*AttributeValue `json:"attribute_values"`
	SelectedValueIDs []int64           `json:"selected_attribute_value_ids"`
	CreateVariant    CreateVariantMode `json:"create_variant"`
	CustomValue      string            `json:"custom_value,omitempty"`
}

// ValidationNotice 输入被清洗时返回的提示，不阻断保存
type ValidationNotice struct {
	LineID   int64  `json:"line_id"`
	Rejected string `json:"rejected"`
	Message  string `json:"message"`
}

// FindValue 按 ID 查找属性值
func (l *AttributeLine) FindValue(valueID int64) *AttributeValue {
	for _, v := range l.Values {
		if v.ID == valueID {
			return v
		}
	}
	return nil
}

// IsSelected 判断值是否已选中
func (l *AttributeLine) IsSelected(valueID int64) bool {
	for _, id := range l.SelectedValueIDs {
		if id == valueID {
			return true
		}
	}
	return false
}

// Select 切换选中状态
// multiAllowed 为 true 时：未选中则加入，已选中则移除；否则替换为单值
func (l *AttributeLine) Select(valueID int64, multiAllowed bool) error {
	if l.FindValue(valueID) == nil {
		return ErrValueNotFound
	}
	if !multiAllowed {
		l.SelectedValueIDs = []int64{valueID}
		return nil
	}
	if l.IsSelected(valueID) {
		kept := make([]int64, 0, len(l.SelectedValueIDs))
		for _, id := range l.SelectedValueIDs {
			if id != valueID {
				kept = append(kept, id)
			}
		}
		l.SelectedValueIDs = kept
		return nil
	}
	l.SelectedValueIDs = append(l.SelectedValueIDs, valueID)
	return nil
}

// SelectedValue 返回第一个选中的值
func (l *AttributeLine) SelectedValue() *AttributeValue {
	for _, v := range l.Values {
		if l.IsSelected(v.ID) {
			return v
		}
	}
	return nil
}

// SelectedCustomValue 返回当前选中的自定义值（如有）
func (l *AttributeLine) SelectedCustomValue() *AttributeValue {
	for _, v := range l.Values {
		if v.IsCustom && l.IsSelected(v.ID) {
			return v
		}
	}
	return nil
}

// CustomValueOf 返回第一个自定义值（无论是否选中）
func (l *AttributeLine) CustomValueOf() *AttributeValue {
	for _, v := range l.Values {
		if v.IsCustom {
			return v
		}
	}
	return nil
}

// SetCustomValue 设置自由文本
// 仅当当前选中值为自定义值时有效。
// 纯数字类型会去掉非数字字符，并返回提示（不视为错误）。
func (l *AttributeLine) SetCustomValue(text string) (*ValidationNotice, error) {
	if l.SelectedCustomValue() == nil {
		return nil, ErrCustomValueNotAllowed
	}
	if l.Attribute.DisplayType != DisplayStrictlyNumeric {
		l.CustomValue = text
		return nil, nil
	}

	clean, rejected := SanitizeDigits(text)
	l.CustomValue = clean
	if rejected == "" {
		return nil, nil
	}
	return &ValidationNotice{
		LineID:   l.ID,
		Rejected: rejected,
		Message:  "Only numeric values are allowed",
	}, nil
}

// SanitizeDigits 只保留 0-9，返回清洗后的值与被拒绝的字符
func SanitizeDigits(s string) (clean, rejected string) {
	var keep, drop strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			keep.WriteRune(r)
		} else {
			drop.WriteRune(r)
		}
	}
	return keep.String(), drop.String()
}

// HasSelectedExcluded 是否有已选值被排除
func (l *AttributeLine) HasSelectedExcluded() bool {
	for _, v := range l.Values {
		if v.Excluded && l.IsSelected(v.ID) {
			return true
		}
	}
	return false
}
