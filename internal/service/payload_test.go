package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm_configurator_v1/internal/model"
)

func payloadProduct() *model.ProductConfiguration {
	color := attrLine(10, "Color", model.DisplayRadio, val(101, "Red"), val(102, "Blue"))
	color.SelectedValueIDs = []int64{102}
	extras := attrLine(20, "Extras", model.DisplayMulti, val(201, "Cushion"), val(202, "Armrest"))
	extras.SelectedValueIDs = []int64{201, 202}
	width := attrLine(30, "Width", model.DisplayStrictlyNumeric, customVal(301))
	width.SelectedValueIDs = []int64{301}
	width.CustomValue = "120"
	profile := attrLine(40, "Profile", model.DisplayReference, val(401, "Profile"))
	profile.SelectedValueIDs = []int64{401}
	drawing := attrLine(50, "Drawing", model.DisplayFileUpload, val(501, "Drawing"))
	drawing.SelectedValueIDs = []int64{501}

	p := prod(mainTmpl, color, extras, width, profile, drawing)
	p.ProductID = 900
	p.Quantity = 2
	p.Price = decimal.RequireFromString("15.75")
	return p
}

func TestBuildPayload_MainLine(t *testing.T) {
	in := PayloadInput{
		MainTmplID: mainTmpl,
		Products:   []*model.ProductConfiguration{payloadProduct()},
		Files: map[int64][]LineFile{
			mainTmpl: {
				{LineID: 60, File: model.FilePayload{FileName: "late.pdf", FileData: "Qg=="}},
				{LineID: 50, File: model.FilePayload{FileName: "plan.pdf", FileData: "QQ=="}},
			},
		},
		References: map[int64][]LineReference{
			mainTmpl: {{LineID: 40, Pick: model.ReferencePick{ResID: 77, DisplayName: "P-77"}}},
		},
		CorrelationID: 42,
	}

	payload, err := BuildPayload(in)
	require.NoError(t, err)
	assert.Equal(t, int64(42), payload.CorrelationID)
	assert.NotNil(t, payload.OptionalProducts)
	assert.Empty(t, payload.OptionalProducts)

	line := payload.MainProduct
	assert.Equal(t, int64(900), line.ProductID)
	assert.Equal(t, mainTmpl, line.ProductTmplID)
	assert.Equal(t, float64(2), line.Quantity)
	assert.True(t, decimal.RequireFromString("15.75").Equal(line.Price))

	assert.Equal(t, []int64{102, 201, 202, 301}, line.ValueIDs, "文件与引用类型不进入 ptav_ids")
	assert.Equal(t, []model.CustomValueEntry{{ValueID: 301, CustomValue: "120"}}, line.CustomAttributeValues)
	require.NotNil(t, line.FileUpload)
	assert.Equal(t, "plan.pdf", line.FileUpload.FileName, "取属性行 ID 最小的文件")
	assert.Equal(t, []model.ReferenceEntry{{LineID: 40, ResID: 77}}, line.ReferenceValues)

	assert.Equal(t,
		"Color: Blue, Extras: Cushion, Extras: Armrest, Profile: P-77, Width: 120",
		line.AttributesDescription)
	assert.Equal(t, map[string]string{
		"Color":   "Blue",
		"Extras":  "Cushion, Armrest",
		"Width":   "120",
		"Profile": "P-77",
	}, line.AttributesJSON)
}

func TestBuildPayload_Defaults(t *testing.T) {
	main := prod(mainTmpl)
	main.Quantity = 0
	main.Price = decimal.NewFromInt(-3)
	opt := prod(2, attrLine(10, "Profile", model.DisplayReference, val(11, "Profile")))
	opt.Lines[0].SelectedValueIDs = []int64{11}

	payload, err := BuildPayload(PayloadInput{
		MainTmplID: mainTmpl,
		Products:   []*model.ProductConfiguration{main, opt},
		Identities: map[int64]int64{2: 555},
	})
	require.NoError(t, err)

	assert.Equal(t, float64(1), payload.MainProduct.Quantity)
	assert.True(t, payload.MainProduct.Price.IsZero())
	assert.Nil(t, payload.MainProduct.FileUpload)
	assert.Empty(t, payload.MainProduct.ValueIDs)
	assert.Empty(t, payload.MainProduct.AttributesDescription)

	require.Len(t, payload.OptionalProducts, 1)
	optLine := payload.OptionalProducts[0]
	assert.Equal(t, int64(555), optLine.ProductID, "暂存的变体 ID 覆盖")
	assert.Empty(t, optLine.AttributesDescription, "未选引用记录时不展示")
	assert.Empty(t, optLine.ReferenceValues)
}

func TestBuildPayload_CustomValueWithoutText(t *testing.T) {
	l := attrLine(10, "Finish", model.DisplayRadio, customVal(11), val(12, "Matte"))
	l.SelectedValueIDs = []int64{11}
	p := prod(mainTmpl, l)

	payload, err := BuildPayload(PayloadInput{MainTmplID: mainTmpl, Products: []*model.ProductConfiguration{p}})
	require.NoError(t, err)

	assert.Equal(t, []int64{11}, payload.MainProduct.ValueIDs)
	assert.Empty(t, payload.MainProduct.CustomAttributeValues)
	assert.Empty(t, payload.MainProduct.AttributesJSON)
}

func TestBuildPayload_MainMissing(t *testing.T) {
	_, err := BuildPayload(PayloadInput{
		MainTmplID: mainTmpl,
		Products:   []*model.ProductConfiguration{prod(2)},
	})
	assert.ErrorIs(t, err, ErrPayloadMainMissing)
}

func TestWithoutFileData(t *testing.T) {
	p := &model.SavePayload{
		MainProduct: model.PayloadLine{FileUpload: &model.FilePayload{FileName: "a.pdf", FileData: "QUJD"}},
		OptionalProducts: []model.PayloadLine{
			{FileUpload: &model.FilePayload{FileName: "b.pdf", FileData: "REVG"}},
			{},
		},
	}

	stripped := withoutFileData(p)
	assert.Equal(t, "a.pdf", stripped.MainProduct.FileUpload.FileName)
	assert.Empty(t, stripped.MainProduct.FileUpload.FileData)
	assert.Empty(t, stripped.OptionalProducts[0].FileUpload.FileData)
	assert.Nil(t, stripped.OptionalProducts[1].FileUpload)
	assert.Equal(t, "QUJD", p.MainProduct.FileUpload.FileData, "原载荷不变")
}
