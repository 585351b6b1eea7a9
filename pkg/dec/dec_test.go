package dec

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0", want: "0"},
		{in: "-12.50", want: "-12.5"},
		{in: "1000.001", want: "1000.001"},
		{in: "1e3", wantErr: true},
		{in: "1,000", wantErr: true},
		{in: ".5", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := Parse(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrArithmetic)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestRoundModes(t *testing.T) {
	v := MustParse("2.345")
	assert.Equal(t, "2.35", Round(v, 2, HalfUp).String())
	assert.Equal(t, "2.34", Round(v, 2, HalfEven).String())
	assert.Equal(t, "2.34", Round(v, 2, Down).String())

	// Half-up resolves ties away from zero on negatives too.
	assert.Equal(t, "-2.35", Round(MustParse("-2.345"), 2, HalfUp).String())
}

func TestCents(t *testing.T) {
	assert.Equal(t, "10.01", Cents(MustParse("10.005")).String())
	assert.Equal(t, "10", Cents(MustParse("10.0049")).String())
}

func TestDivByZero(t *testing.T) {
	_, err := Div(FromInt(1), Zero)
	assert.ErrorIs(t, err, ErrArithmetic)

	q, err := Div(FromInt(10), FromInt(4))
	require.NoError(t, err)
	assert.Equal(t, "2.5", q.String())
}

func TestPowInt(t *testing.T) {
	p, err := PowInt(MustParse("1.01"), 2)
	require.NoError(t, err)
	assert.Equal(t, "1.0201", p.String())

	inv, err := PowInt(MustParse("2"), -2)
	require.NoError(t, err)
	assert.True(t, inv.Equal(MustParse("0.25")))

	_, err = PowInt(Zero, -1)
	assert.ErrorIs(t, err, ErrArithmetic)
}

func TestValueEquality(t *testing.T) {
	// Trailing zeros do not matter for equality.
	a := MustParse("1.50")
	b := MustParse("1.5")
	assert.True(t, a.Equal(b))
	assert.Equal(t, decimal.NewFromInt(0).Cmp(Zero), 0)
}
