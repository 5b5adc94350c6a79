package exclusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm_configurator_v1/internal/model"
)

// ==================== 测试辅助 ====================

type mapGraph map[int64]*model.ProductConfiguration

func (g mapGraph) Find(tmplID int64) *model.ProductConfiguration { return g[tmplID] }

func (g mapGraph) Children(tmplID int64) []*model.ProductConfiguration {
	var out []*model.ProductConfiguration
	for _, p := range g {
		if p.HasParent(tmplID) {
			out = append(out, p)
		}
	}
	return out
}

func line(id int64, values ...int64) *model.AttributeLine {
	l := &model.AttributeLine{
		ID:            id,
		Attribute:     model.Attribute{ID: id, Name: "attr", DisplayType: model.DisplayRadio},
		CreateVariant: model.CreateVariantAlways,
	}
	for _, v := range values {
		l.Values = append(l.Values, &model.AttributeValue{ID: v})
	}
	return l
}

func product(tmplID int64, lines ...*model.AttributeLine) *model.ProductConfiguration {
	return &model.ProductConfiguration{
		TmplID:           tmplID,
		Lines:            lines,
		Exclusions:       map[int64][]int64{},
		ParentExclusions: map[int64][]int64{},
	}
}

func excluded(p *model.ProductConfiguration, valueID int64) bool {
	v, _ := p.FindValue(valueID)
	return v != nil && v.Excluded
}

const (
	A, B = 1, 2
	X, Y = 3, 4
)

// ==================== 两两互斥 ====================

func TestRecompute_PairwiseExclusion(t *testing.T) {
	l1, l2 := line(10, A, B), line(20, X, Y)
	p := product(1, l1, l2)
	p.Exclusions[A] = []int64{X}
	g := mapGraph{1: p}

	require.NoError(t, l1.Select(A, false))
	require.NoError(t, l2.Select(X, false))
	Recompute(p, g)
	assert.True(t, excluded(p, X))
	assert.False(t, IsPossibleCombination(p), "A + X 互斥，组合应无效")

	require.NoError(t, l1.Select(B, false))
	Recompute(p, g)
	assert.False(t, excluded(p, X))
	assert.True(t, excluded(p, A), "X 已选中时 A 也应被排除")
	assert.True(t, IsPossibleCombination(p))
}

func TestRecompute_ResetsPreviousFlags(t *testing.T) {
	l1, l2 := line(10, A, B), line(20, X, Y)
	p := product(1, l1, l2)
	p.Exclusions[A] = []int64{Y}
	g := mapGraph{1: p}

	_ = l1.Select(A, false)
	Recompute(p, g)
	assert.True(t, excluded(p, Y))

	l1.SelectedValueIDs = nil
	Recompute(p, g)
	assert.False(t, excluded(p, Y))
}

func TestRecompute_Idempotent(t *testing.T) {
	l1, l2 := line(10, A, B), line(20, X, Y)
	p := product(1, l1, l2)
	p.Exclusions[A] = []int64{X}
	p.ArchivedCombinations = [][]int64{{B, Y}}
	g := mapGraph{1: p}
	_ = l1.Select(B, false)

	Recompute(p, g)
	first := snapshotFlags(p)
	Recompute(p, g)
	assert.Equal(t, first, snapshotFlags(p))
}

func snapshotFlags(p *model.ProductConfiguration) map[int64]bool {
	out := map[int64]bool{}
	for _, l := range p.Lines {
		for _, v := range l.Values {
			out[v.ID] = v.Excluded
		}
	}
	return out
}

// ==================== 父商品互斥 ====================

func TestRecompute_ParentExclusionCascades(t *testing.T) {
	parentLine := line(10, A, B)
	parent := product(1, parentLine)
	childLine := line(30, 5, 6)
	child := product(2, childLine)
	child.ParentTmplIDs = []int64{1}
	child.ParentExclusions[A] = []int64{5}
	g := mapGraph{1: parent, 2: child}

	_ = parentLine.Select(A, false)
	Recompute(parent, g)
	assert.True(t, excluded(child, 5))

	_ = parentLine.Select(B, false)
	Recompute(parent, g)
	assert.False(t, excluded(child, 5))
}

func TestRecompute_MissingParentKeyIsEmpty(t *testing.T) {
	parentLine := line(10, A, B)
	parent := product(1, parentLine)
	child := product(2, line(30, 5, 6))
	child.ParentTmplIDs = []int64{1, 99} // 99 不在会话中
	g := mapGraph{1: parent, 2: child}

	_ = parentLine.Select(B, false)
	assert.NotPanics(t, func() { Recompute(parent, g) })
	assert.False(t, excluded(child, 5))
}

func TestRecompute_DiamondAndCycleVisitOnce(t *testing.T) {
	root := product(1, line(10, A))
	left := product(2, line(20, X))
	right := product(3, line(30, Y))
	leaf := product(4, line(40, 7))
	left.ParentTmplIDs = []int64{1}
	right.ParentTmplIDs = []int64{1}
	leaf.ParentTmplIDs = []int64{2, 3}
	// 环：root 也声明 leaf 为父商品
	root.ParentTmplIDs = []int64{4}
	leaf.ParentExclusions[X] = []int64{7}

	g := mapGraph{1: root, 2: left, 3: right, 4: leaf}
	_ = left.Lines[0].Select(X, false)

	assert.NotPanics(t, func() { Recompute(root, g) })
	assert.True(t, excluded(leaf, 7))
}

func TestParentCombination_UnionOfParents(t *testing.T) {
	p1 := product(1, line(10, A, B))
	p2 := product(2, line(20, X, Y))
	child := product(3)
	child.ParentTmplIDs = []int64{1, 2}
	_ = p1.Lines[0].Select(B, false)
	_ = p2.Lines[0].Select(Y, false)

	got := ParentCombination(child, mapGraph{1: p1, 2: p2, 3: child})
	assert.ElementsMatch(t, []int64{B, Y}, got)
}

// ==================== 已归档组合 ====================

func TestRecompute_ArchivedFullMatchExcludesAll(t *testing.T) {
	l1, l2 := line(10, A, B), line(20, X, Y)
	p := product(1, l1, l2)
	p.ArchivedCombinations = [][]int64{{A, X}}
	g := mapGraph{1: p}

	_ = l1.Select(A, false)
	_ = l2.Select(X, false)
	Recompute(p, g)
	assert.True(t, excluded(p, A))
	assert.True(t, excluded(p, X))
	assert.False(t, IsPossibleCombination(p))
}

func TestRecompute_ArchivedOneAwayExcludesMissingValue(t *testing.T) {
	l1, l2, l3 := line(10, A, B), line(20, X, Y), line(30, 5, 6)
	p := product(1, l1, l2, l3)
	p.ArchivedCombinations = [][]int64{{A, X, 5}}
	g := mapGraph{1: p}

	_ = l1.Select(A, false)
	_ = l2.Select(X, false)
	_ = l3.Select(6, false)
	Recompute(p, g)

	assert.True(t, excluded(p, 5), "再选 5 会重建已归档组合")
	assert.False(t, excluded(p, A))
	assert.False(t, excluded(p, X))
	assert.True(t, IsPossibleCombination(p))
}

// ==================== 多选 ====================

func TestIsPossibleCombination_ChecksAllMultiSelections(t *testing.T) {
	multi := line(10, A, B)
	multi.Attribute.DisplayType = model.DisplayMulti
	other := line(20, X, Y)
	p := product(1, multi, other)
	p.Exclusions[X] = []int64{B}
	g := mapGraph{1: p}

	_ = multi.Select(A, true)
	_ = multi.Select(B, true)
	_ = other.Select(X, false)
	Recompute(p, g)

	assert.False(t, IsPossibleCombination(p), "第二个选中值被排除时组合无效")
}

func TestIsPossibleConfiguration(t *testing.T) {
	ok := product(1, line(10, A))
	bad := product(2, line(20, X, Y))
	bad.Lines[0].SelectedValueIDs = []int64{X}
	bad.Lines[0].Values[0].Excluded = true

	assert.True(t, IsPossibleConfiguration([]*model.ProductConfiguration{ok}))
	assert.False(t, IsPossibleConfiguration([]*model.ProductConfiguration{ok, bad}))
	assert.True(t, IsPossibleConfiguration(nil))
}
