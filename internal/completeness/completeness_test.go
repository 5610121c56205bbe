package completeness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/genericrobot77/meds-job/internal/model"
)

func recordWith(populated ...model.FieldKey) *model.Record {
	rec := model.NewRecord(model.Concept{ID: "C1"}, model.DefaultFields())
	for _, key := range populated {
		switch key {
		case model.FieldATCCodes:
			rec.Fields[key] = model.ListValue([]string{"A01"}, 80)
		default:
			rec.Fields[key] = model.TextValue("x", 80)
		}
	}
	return rec
}

func TestClassify_Boundaries(t *testing.T) {
	t.Parallel()

	fields := model.DefaultFields()
	tests := []struct {
		name      string
		populated []model.FieldKey
		want      Bucket
	}{
		{"none", nil, VeryLow},
		{"one of five", []model.FieldKey{model.FieldDrugBankID}, Low},
		{"two of five", []model.FieldKey{model.FieldDrugBankID, model.FieldBeersCriteria}, Low},
		{"three of five", []model.FieldKey{model.FieldDrugBankID, model.FieldATCCodes, model.FieldClinicalNotes}, Medium},
		{"four of five", []model.FieldKey{model.FieldDrugBankID, model.FieldATCCodes, model.FieldClinicalNotes, model.FieldBeersCriteria}, Medium},
		{"all five", []model.FieldKey{model.FieldDrugBankID, model.FieldATCCodes, model.FieldClinicalNotes, model.FieldBeersCriteria, model.FieldPregnancyCategoryAU}, High},
		{"non-primary only", []model.FieldKey{model.FieldWikidataURI, model.FieldRxNormCodes, model.FieldPregnancyCategoryFDA}, VeryLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(recordWith(tt.populated...), fields))
		})
	}
}

func TestClassify_NilRecord(t *testing.T) {
	t.Parallel()
	assert.Equal(t, VeryLow, Classify(nil, model.DefaultFields()))
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	s := Evaluate(recordWith(model.FieldDrugBankID, model.FieldATCCodes, model.FieldClinicalNotes), model.DefaultFields())
	assert.Equal(t, Score{Populated: 3, Total: 5, Percent: 60, Bucket: Medium}, s)
}

func TestEvaluate_NoPrimaryFields(t *testing.T) {
	t.Parallel()

	fields := model.NewFieldRegistry([]model.FieldSpec{{Key: "x", Shape: model.ShapeText}})
	assert.Equal(t, VeryLow, Evaluate(nil, fields).Bucket)
}

func TestBucket_Limited(t *testing.T) {
	t.Parallel()
	assert.False(t, High.Limited())
	assert.False(t, Medium.Limited())
	assert.True(t, Low.Limited())
	assert.True(t, VeryLow.Limited())
}
