package cashcount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestValidate(t *testing.T) {
	cases := []struct {
		name      string
		counted   string
		manual    string
		tolerance string
		valid     bool
		diff      string
	}{
		{"exact match", "100.00", "100.00", "0.01", true, "0"},
		{"within one cent", "100.00", "100.01", "0.01", true, "0.01"},
		{"two cents off", "100.00", "100.02", "0.01", false, "0.02"},
		{"counted above manual", "105.50", "100.00", "0.01", false, "5.5"},
		{"negative tolerance acts as zero", "10.00", "10.00", "-1", true, "0"},
		{"zero tolerance rejects a cent", "10.00", "10.01", "0", false, "0.01"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			r := Validate(d(tt.counted), d(tt.manual), d(tt.tolerance))
			assert.Equal(t, tt.valid, r.IsValid)
			assert.True(t, d(tt.diff).Equal(r.Difference), "difference=%s", r.Difference)
			assert.NotEmpty(t, r.Message)
		})
	}
}

func TestValidateForClosing(t *testing.T) {
	t.Run("all three agree", func(t *testing.T) {
		r := ValidateForClosing(d("250.00"), d("250.00"), d("250.01"), DefaultTolerance)
		assert.True(t, r.OverallValid)
		assert.True(t, r.CountedVsManual.IsValid)
		assert.True(t, r.CountedVsExpected.IsValid)
		assert.True(t, r.ManualVsExpected.IsValid)
	})

	t.Run("expected differs", func(t *testing.T) {
		r := ValidateForClosing(d("250.00"), d("250.00"), d("245.00"), DefaultTolerance)
		assert.False(t, r.OverallValid)
		assert.True(t, r.CountedVsManual.IsValid)
		assert.False(t, r.CountedVsExpected.IsValid)
		assert.False(t, r.ManualVsExpected.IsValid)
		assert.True(t, d("5").Equal(r.CountedVsExpected.Difference))
	})
}

func TestCalculateTotal(t *testing.T) {
	total := CalculateTotal([]Denomination{
		{Denomination: d("20"), Count: 3},
		{Denomination: d("0.25"), Count: 4},
	})
	assert.True(t, d("61.00").Equal(total), "total=%s", total)

	assert.True(t, decimal.Zero.Equal(CalculateTotal(nil)))

	total = CalculateTotal([]Denomination{
		{Denomination: d("0.10"), Count: 3},
		{Denomination: d("0.05"), Count: 1},
		{Denomination: d("7.35"), Count: 1},
	})
	assert.True(t, d("7.70").Equal(total), "arbitrary denominations are accepted")
}

func TestValidateBreakdown(t *testing.T) {
	require.NoError(t, ValidateBreakdown(nil))
	require.NoError(t, ValidateBreakdown([]Denomination{{Denomination: d("1"), Count: 0}}))

	err := ValidateBreakdown([]Denomination{{Denomination: d("0"), Count: 1}})
	assert.ErrorIs(t, err, ErrInvalidBreakdown)

	err = ValidateBreakdown([]Denomination{{Denomination: d("5"), Count: -2}})
	assert.ErrorIs(t, err, ErrInvalidBreakdown)

	err = ValidateBreakdown([]Denomination{{Denomination: d("0.005"), Count: 10}})
	assert.ErrorIs(t, err, ErrInvalidBreakdown)

	err = ValidateBreakdown([]Denomination{{Denomination: d("100"), Count: 1 << 30}})
	assert.ErrorIs(t, err, ErrInvalidBreakdown, "total above the column range")
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"10", true},
		{"10.05", true},
		{"10.500", true},
		{"-3.25", true},
		{"9999999999.99", true},
		{"10.005", false},
		{"0.001", false},
		{"10000000000.00", false},
		{"-10000000000", false},
	}
	for _, tt := range tests {
		err := ValidateAmount(d(tt.in))
		if tt.valid {
			assert.NoError(t, err, tt.in)
		} else {
			assert.ErrorIs(t, err, ErrInvalidAmount, tt.in)
		}
	}
}
