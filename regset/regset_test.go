package regset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookbusy1344/tcf-agent/regset"
)

func TestBuildARMCoreRegisters(t *testing.T) {
	f := regset.BuildARM(regset.Features{})

	pc, ok := f.ByRole(regset.RolePC)
	require.True(t, ok, "expected a PC role register")
	assert.Equal(t, "pc", pc.Name)
	assert.Equal(t, 15*4, pc.Offset)
	assert.False(t, pc.Writable, "pc must not be directly writable (§4.H/§4.J own PC writes)")

	sp, ok := f.ByRole(regset.RoleSP)
	require.True(t, ok)
	assert.Equal(t, "sp", sp.Name)

	cpsr, ok := f.ByName("cpsr")
	require.True(t, ok)
	assert.Equal(t, regset.RoleCPSR, cpsr.Role)

	_, ok = f.ByName("r16")
	assert.False(t, ok, "expected no r16 register on a core-only ARM build")
}

func TestBuildARMSizeExcludesVFP(t *testing.T) {
	core := regset.BuildARM(regset.Features{})
	withVFP := regset.BuildARM(regset.Features{VFP: true, VFPDoubles: 16})

	assert.Equal(t, core.Size(), withVFP.Size(),
		"VFP registers must not extend the core register snapshot size")
	assert.Equal(t, 17*4, core.Size(), "16 core regs + cpsr")
}

func TestBuildARMVFPRegisters(t *testing.T) {
	f := regset.BuildARM(regset.Features{VFP: true, VFPDoubles: 2})

	d0, ok := f.ByName("d0")
	require.True(t, ok)
	assert.True(t, d0.FloatPoint)
	assert.Equal(t, 8, d0.Size)

	s0, ok := f.ByName("s0")
	require.True(t, ok)
	assert.True(t, s0.FloatPoint)
	assert.Equal(t, 4, s0.Size)

	s1, ok := f.ByName("s1")
	require.True(t, ok)
	assert.Equal(t, d0.Offset+4, s1.Offset, "expected s1 to alias the top half of d0")
}

func TestBuildARMVFPQuads(t *testing.T) {
	f := regset.BuildARM(regset.Features{VFP: true, VFPQuads: 4})

	q0, ok := f.ByName("q0")
	require.True(t, ok)
	assert.Equal(t, 16, q0.Size)
}

func TestFileByNameUnknownRegister(t *testing.T) {
	f := regset.BuildARM(regset.Features{})
	_, ok := f.ByName("nosuchreg")
	assert.False(t, ok, "expected an unknown register name to miss")
}
