package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookbusy1344/tcf-agent/expr"
)

type fakeRegs map[string]uint64

func (r fakeRegs) Value(name string) (uint64, bool) {
	v, ok := r[name]
	return v, ok
}

type fakeMem map[uint64]uint64

func (m fakeMem) ReadWord(addr uint64) (uint64, error) {
	return m[addr], nil
}

func TestEvalLiterals(t *testing.T) {
	e := expr.NewEvaluator(fakeRegs{}, nil)

	cases := map[string]int64{
		"42":          42,
		"0x2A":        42,
		"0b101":       5,
		"-7":          -7,
		"1 + 2":       3,
		"2 * 3":       6,
		"7 / 2":       3,
		"1 << 4":      16,
		"0xF0 & 0x0F": 0,
		"0xF0 | 0x0F": 0xFF,
		"(1 + 2) * 3": 9,
	}
	for expression, want := range cases {
		t.Run(expression, func(t *testing.T) {
			got, err := e.Eval(expression)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestEvalRegisters(t *testing.T) {
	e := expr.NewEvaluator(fakeRegs{"r0": 0x1000, "pc": 0x8000}, nil)

	got, err := e.Eval("r0 + 4")
	require.NoError(t, err)
	assert.Equal(t, int64(0x1004), got)

	_, err = e.Eval("r99")
	assert.Error(t, err, "expected an error for an unknown register")
}

func TestEvalMemoryDereference(t *testing.T) {
	e := expr.NewEvaluator(fakeRegs{"r0": 0x2000}, fakeMem{0x2000: 0xDEADBEEF})

	got, err := e.Eval("[r0]")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xDEADBEEF), uint64(got))

	got, err = e.Eval("*r0")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xDEADBEEF), uint64(got))
}

func TestEvalValueHistory(t *testing.T) {
	e := expr.NewEvaluator(fakeRegs{}, nil)

	_, err := e.Eval("10")
	require.NoError(t, err)
	_, err = e.Eval("20")
	require.NoError(t, err)

	got, err := e.Eval("$1 + $2")
	require.NoError(t, err)
	assert.Equal(t, int64(30), got)

	_, err = e.Eval("$99")
	assert.Error(t, err, "expected an error for an out-of-range value reference")
}

func TestEvalConditionEmptyIsAlwaysTrue(t *testing.T) {
	e := expr.NewEvaluator(fakeRegs{}, nil)

	ok, err := e.EvalCondition("")
	require.NoError(t, err)
	assert.True(t, ok, "expected an empty condition to hold")
}

func TestEvalConditionNonZeroIsTrue(t *testing.T) {
	e := expr.NewEvaluator(fakeRegs{"r0": 1}, nil)

	_, err := e.EvalCondition("r0 == 1")
	assert.Error(t, err, "expected == to be rejected: this language has no comparison operators")

	ok, err := e.EvalCondition("r0")
	require.NoError(t, err)
	assert.True(t, ok, "expected a non-zero register value to hold")
}

func TestEvalDivisionByZero(t *testing.T) {
	e := expr.NewEvaluator(fakeRegs{}, nil)

	_, err := e.Eval("1 / 0")
	assert.Error(t, err, "expected division by zero to error")
}
