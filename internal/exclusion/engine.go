// Package exclusion 重算属性值的互斥状态。
//
// 每次影响选择的变更之后都从零重算，而不是增量修补：
// 属性数量很小（几十个），重算成本可以忽略。
package exclusion

import (
	"crm_configurator_v1/internal/model"
)

// Graph 商品图查询（父子关系由会话维护）
type Graph interface {
	// Find 按模板 ID 查找商品（已加入或可选）
	Find(tmplID int64) *model.ProductConfiguration
	// Children 返回把 tmplID 列为父商品的所有商品
	Children(tmplID int64) []*model.ProductConfiguration
}

// Recompute 重算商品及其所有后代的 Excluded 标记
// 每个商品在一次调用中最多处理一次（菱形依赖/环安全）
func Recompute(p *model.ProductConfiguration, g Graph) {
	if p == nil {
		return
	}
	visited := map[int64]bool{p.TmplID: true}
	recompute(p, g, visited)
}

func recompute(p *model.ProductConfiguration, g Graph, visited map[int64]bool) {
	applyRules(p, ParentCombination(p, g))

	for _, child := range g.Children(p.TmplID) {
		if visited[child.TmplID] {
			continue
		}
		visited[child.TmplID] = true
		recompute(child, g, visited)
	}
}

// applyRules 对单个商品执行重置 + 三类排除规则
func applyRules(p *model.ProductConfiguration, parentCombo []int64) {
	index := make(map[int64]*model.AttributeValue)
	for _, l := range p.Lines {
		for _, v := range l.Values {
			v.Excluded = false
			index[v.ID] = v
		}
	}
	mark := func(id int64) {
		if v, ok := index[id]; ok {
			v.Excluded = true
		}
	}

	combo := p.Combination()
	current := make(map[int64]bool, len(combo))
	for _, id := range combo {
		current[id] = true
	}

	// 1. 两两互斥：单向存储，双向生效
	for key, excluded := range p.Exclusions {
		keySelected := current[key]
		for _, ex := range excluded {
			if keySelected {
				mark(ex)
			}
			if current[ex] {
				mark(key)
			}
		}
	}

	// 2. 父商品施加的互斥（缺失的 key 视为空集）
	for _, id := range parentCombo {
		for _, ex := range p.ParentExclusions[id] {
			mark(ex)
		}
	}

	// 3. 已归档组合
	for _, archived := range p.ArchivedCombinations {
		common := make([]int64, 0, len(archived))
		for _, id := range archived {
			if current[id] {
				common = append(common, id)
			}
		}
		switch len(common) {
		case len(combo):
			for _, id := range common {
				mark(id)
			}
		case len(combo) - 1:
			// 只差一步就会重建已知的无效组合：禁用差出来的那个值
			for _, id := range archived {
				if !current[id] {
					mark(id)
					break
				}
			}
		}
	}
}

// ParentCombination 所有父商品当前组合的并集
func ParentCombination(p *model.ProductConfiguration, g Graph) []int64 {
	var combo []int64
	for _, parentID := range p.ParentTmplIDs {
		parent := g.Find(parentID)
		if parent == nil {
			continue
		}
		combo = append(combo, parent.Combination()...)
	}
	return combo
}

// IsPossibleCombination 没有任何属性行选中了被排除的值
func IsPossibleCombination(p *model.ProductConfiguration) bool {
	for _, l := range p.Lines {
		if l.HasSelectedExcluded() {
			return false
		}
	}
	return true
}

// IsPossibleConfiguration 会话级有效性：所有已加入商品均有效
func IsPossibleConfiguration(products []*model.ProductConfiguration) bool {
	for _, p := range products {
		if !IsPossibleCombination(p) {
			return false
		}
	}
	return true
}
