package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ProductConfiguration 会话内的一个商品实例（主商品或可选商品）
// 会话内以模板 ID 作为身份，而不是变体 ID
type ProductConfiguration struct {
	TmplID int64 `json:"product_tmpl_id"`
	// ProductID 已解析的变体 ID，0 表示尚未解析
	ProductID   int64            `json:"id"`
	DisplayName string           `json:"display_name,omitempty"`
	Lines       []*AttributeLine `json:"attribute_lines"`
	Quantity    float64          `json:"quantity"`
	// Price 仅在 oracle 往返之后才是权威值
	Price decimal.Decimal `json:"price"`

	// --- 商品图关系 ---
	ParentTmplIDs []int64 `json:"parent_product_tmpl_ids"`

	// --- 排除规则 ---
	Exclusions           map[int64][]int64 `json:"exclusions"`
	ParentExclusions     map[int64][]int64 `json:"parent_exclusions"`
	ArchivedCombinations [][]int64         `json:"archived_combinations"`
}

// Combination 当前组合：所有属性行已选值的并集（按行顺序）
func (p *ProductConfiguration) Combination() []int64 {
	combo := make([]int64, 0, len(p.Lines))
	for _, l := range p.Lines {
		combo = append(combo, l.SelectedValueIDs...)
	}
	return combo
}

// FindLine 按 ID 查找属性行
func (p *ProductConfiguration) FindLine(lineID int64) (*AttributeLine, error) {
	for _, l := range p.Lines {
		if l.ID == lineID {
			return l, nil
		}
	}
	return nil, ErrLineNotFound
}

// FindValue 在所有属性行中查找值，同时返回所属行
func (p *ProductConfiguration) FindValue(valueID int64) (*AttributeValue, *AttributeLine) {
	for _, l := range p.Lines {
		if v := l.FindValue(valueID); v != nil {
			return v, l
		}
	}
	return nil, nil
}

// LineSelecting 返回当前选中该值的属性行
func (p *ProductConfiguration) LineSelecting(valueID int64) *AttributeLine {
	for _, l := range p.Lines {
		if l.IsSelected(valueID) {
			return l
		}
	}
	return nil
}

// LineByAttributeName 按属性名（忽略大小写）查找属性行
func (p *ProductConfiguration) LineByAttributeName(name string) *AttributeLine {
	for _, l := range p.Lines {
		if strings.EqualFold(strings.TrimSpace(l.Attribute.Name), strings.TrimSpace(name)) {
			return l
		}
	}
	return nil
}

// HasParent 是否由该父商品引入
func (p *ProductConfiguration) HasParent(tmplID int64) bool {
	for _, id := range p.ParentTmplIDs {
		if id == tmplID {
			return true
		}
	}
	return false
}

// AddParent 追加父商品（去重）
func (p *ProductConfiguration) AddParent(tmplID int64) {
	if !p.HasParent(tmplID) {
		p.ParentTmplIDs = append(p.ParentTmplIDs, tmplID)
	}
}

// RemoveParent 移除父商品，返回剩余父商品数量
func (p *ProductConfiguration) RemoveParent(tmplID int64) int {
	kept := make([]int64, 0, len(p.ParentTmplIDs))
	for _, id := range p.ParentTmplIDs {
		if id != tmplID {
			kept = append(kept, id)
		}
	}
	p.ParentTmplIDs = kept
	return len(kept)
}

// AllLinesAlways 所有属性行都要求立即创建变体
func (p *ProductConfiguration) AllLinesAlways() bool {
	for _, l := range p.Lines {
		if l.CreateVariant != CreateVariantAlways {
			return false
		}
	}
	return true
}

// HasDynamicLine 是否存在动态创建变体的属性行
func (p *ProductConfiguration) HasDynamicLine() bool {
	for _, l := range p.Lines {
		if l.CreateVariant == CreateVariantDynamic {
			return true
		}
	}
	return false
}

// ArchiveCombination 记录一个已被拒绝/已消费的完整组合
func (p *ProductConfiguration) ArchiveCombination(combo []int64) {
	cp := append([]int64(nil), combo...)
	p.ArchivedCombinations = append(p.ArchivedCombinations, cp)
}

// Clone 深拷贝，用于对外输出快照
func (p *ProductConfiguration) Clone() *ProductConfiguration {
	cp := *p
	cp.Lines = make([]*AttributeLine, len(p.Lines))
	for i, l := range p.Lines {
		lc := *l
		lc.Values = make([]*AttributeValue, len(l.Values))
		for j, v := range l.Values {
			vc := *v
			lc.Values[j] = &vc
		}
		lc.SelectedValueIDs = append([]int64(nil), l.SelectedValueIDs...)
		cp.Lines[i] = &lc
	}
	cp.ParentTmplIDs = append([]int64(nil), p.ParentTmplIDs...)
	cp.Exclusions = cloneIDMap(p.Exclusions)
	cp.ParentExclusions = cloneIDMap(p.ParentExclusions)
	cp.ArchivedCombinations = make([][]int64, len(p.ArchivedCombinations))
	for i, c := range p.ArchivedCombinations {
		cp.ArchivedCombinations[i] = append([]int64(nil), c...)
	}
	return &cp
}

func cloneIDMap(m map[int64][]int64) map[int64][]int64 {
	if m == nil {
		return nil
	}
	out := make(map[int64][]int64, len(m))
	for k, v := range m {
		out[k] = append([]int64(nil), v...)
	}
	return out
}
