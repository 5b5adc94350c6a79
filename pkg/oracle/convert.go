package oracle

import (
	"fmt"

	"crm_configurator_v1/internal/model"
)

// ToProductConfiguration DTO -> 会话模型
func ToProductConfiguration(dto ProductDTO) (*model.ProductConfiguration, error) {
	p := &model.ProductConfiguration{
		TmplID:               int64(dto.ProductTmplID),
		ProductID:            int64(dto.ID),
		DisplayName:          string(dto.DisplayName),
		Quantity:             dto.Quantity,
		Price:                dto.Price,
		ParentTmplIDs:        append([]int64(nil), dto.ParentProductTmplIDs...),
		Exclusions:           dto.Exclusions,
		ParentExclusions:     dto.ParentExclusions,
		ArchivedCombinations: dto.ArchivedCombinations,
	}
	if p.Exclusions == nil {
		p.Exclusions = map[int64][]int64{}
	}
	if p.ParentExclusions == nil {
		p.ParentExclusions = map[int64][]int64{}
	}

	for _, ld := range dto.AttributeLines {
		dt, err := model.ParseDisplayType(ld.Attribute.DisplayType)
		if err != nil {
			return nil, fmt.Errorf("商品 %d 属性行 %d: %w", p.TmplID, ld.ID, err)
		}
		line := &model.AttributeLine{
			ID: ld.ID,
			Attribute: model.Attribute{
				ID:               ld.Attribute.ID,
				Name:             ld.Attribute.Name,
				DisplayType:      dt,
				ReferenceModel:   string(ld.Attribute.M2OModelTechnicalName),
				PairWithPrevious: ld.Attribute.PairWithPrevious,
			},
			SelectedValueIDs: append([]int64{}, ld.SelectedValueIDs...),
			CreateVariant:    model.CreateVariantMode(ld.CreateVariant),
			CustomValue:      string(ld.CustomValue),
		}
		if line.CreateVariant == "" {
			line.CreateVariant = model.CreateVariantAlways
		}
		for _, vd := range ld.AttributeValues {
			line.Values = append(line.Values, &model.AttributeValue{
				ID:        vd.ID,
				Name:      vd.Name,
				IsCustom:  vd.IsCustom,
				HTMLColor: string(vd.HTMLColor),
				Image:     string(vd.Image),
				RefResID:  int64(vd.M2OResID),
			})
		}
		// 过滤掉不属于本行的已选值
		valid := line.SelectedValueIDs[:0]
		for _, id := range line.SelectedValueIDs {
			if line.FindValue(id) != nil {
				valid = append(valid, id)
			}
		}
		line.SelectedValueIDs = valid
		if !dt.AllowsMultiple() && len(line.SelectedValueIDs) > 1 {
			line.SelectedValueIDs = line.SelectedValueIDs[:1]
		}
		p.Lines = append(p.Lines, line)
	}
	return p, nil
}

// ToProductConfigurations 批量转换
func ToProductConfigurations(dtos []ProductDTO) ([]*model.ProductConfiguration, error) {
	out := make([]*model.ProductConfiguration, 0, len(dtos))
	for _, d := range dtos {
		p, err := ToProductConfiguration(d)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
