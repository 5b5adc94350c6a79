package service

import (
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"crm_configurator_v1/internal/model"
)

// ==================== 载荷构建 ====================

// LineFile 某属性行上的文件
type LineFile struct {
	LineID int64
	File   model.FilePayload
}

// LineReference 某属性行上的引用选择
type LineReference struct {
	LineID int64
	Pick   model.ReferencePick
}

// PayloadInput 构建载荷所需的会话状态
type PayloadInput struct {
	MainTmplID int64
	// Products 已加入的商品，顺序即载荷中的顺序
	Products   []*model.ProductConfiguration
	Files      map[int64][]LineFile
	References map[int64][]LineReference
	// Identities 提交前刚创建、尚未写回的变体 ID
	Identities    map[int64]int64
	CorrelationID int64
}

var ErrPayloadMainMissing = errors.New("main product is not included")

// BuildPayload 把会话状态转换为保存载荷
func BuildPayload(in PayloadInput) (*model.SavePayload, error) {
	payload := &model.SavePayload{
		OptionalProducts: []model.PayloadLine{},
		CorrelationID:    in.CorrelationID,
	}
	foundMain := false
	for _, p := range in.Products {
		line := buildLine(p, in)
		if p.TmplID == in.MainTmplID && !foundMain {
			payload.MainProduct = line
			foundMain = true
			continue
		}
		payload.OptionalProducts = append(payload.OptionalProducts, line)
	}
	if !foundMain {
		return nil, ErrPayloadMainMissing
	}
	return payload, nil
}

func buildLine(p *model.ProductConfiguration, in PayloadInput) model.PayloadLine {
	productID := p.ProductID
	if id, ok := in.Identities[p.TmplID]; ok && id != 0 {
		productID = id
	}
	qty := p.Quantity
	if qty <= 0 {
		qty = 1
	}
	price := p.Price
	if price.IsNegative() {
		price = decimal.Zero
	}

	refs := append([]LineReference(nil), in.References[p.TmplID]...)
	sort.Slice(refs, func(i, j int) bool { return refs[i].LineID < refs[j].LineID })
	picks := make(map[int64]model.ReferencePick, len(refs))
	refEntries := make([]model.ReferenceEntry, 0, len(refs))
	for _, r := range refs {
		picks[r.LineID] = r.Pick
		refEntries = append(refEntries, model.ReferenceEntry{LineID: r.LineID, ResID: r.Pick.ResID})
	}

	out := model.PayloadLine{
		ProductID:             productID,
		ProductTmplID:         p.TmplID,
		Quantity:              qty,
		Price:                 price,
		ValueIDs:              []int64{},
		CustomAttributeValues: []model.CustomValueEntry{},
		FileUpload:            firstFile(in.Files[p.TmplID]),
		ReferenceValues:       refEntries,
	}

	var parts []string
	attrs := make(map[string]string)
	var customParts []string

	for _, l := range p.Lines {
		kind := l.Attribute.DisplayType
		for _, id := range l.SelectedValueIDs {
			v := l.FindValue(id)
			if v == nil {
				continue
			}
			if !kind.IsOutOfBand() {
				out.ValueIDs = append(out.ValueIDs, id)
			}

			if v.IsCustom {
				if l.CustomValue != "" {
					out.CustomAttributeValues = append(out.CustomAttributeValues, model.CustomValueEntry{
						ValueID:     v.ID,
						CustomValue: l.CustomValue,
					})
					customParts = append(customParts, l.Attribute.Name+": "+l.CustomValue)
					attrs[l.Attribute.Name] = l.CustomValue
				}
				continue
			}

			// 描述：文件属性不展示，引用属性展示所选记录名
			name := v.Name
			switch kind {
			case model.DisplayFileUpload:
				continue
			case model.DisplayReference:
				pick, ok := picks[l.ID]
				if !ok {
					continue
				}
				if pick.DisplayName != "" {
					name = pick.DisplayName
				}
			}
			parts = append(parts, l.Attribute.Name+": "+name)
			if _, set := attrs[l.Attribute.Name]; !set {
				attrs[l.Attribute.Name] = name
			} else {
				attrs[l.Attribute.Name] += ", " + name
			}
		}
	}

	out.AttributesDescription = strings.Join(append(parts, customParts...), ", ")
	out.AttributesJSON = attrs
	return out
}

// firstFile 每个商品只提交一个文件：取属性行 ID 最小的
func firstFile(files []LineFile) *model.FilePayload {
	if len(files) == 0 {
		return nil
	}
	best := files[0]
	for _, f := range files[1:] {
		if f.LineID < best.LineID {
			best = f
		}
	}
	fp := best.File
	return &fp
}
