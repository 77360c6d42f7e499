package oracle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestX0AlwaysZero(t *testing.T) {
	result := Run([]uint32{0x00000013}, DefaultConfig()) // addi x0, x0, 0
	require.Equal(t, uint32(0), result.Regs[0])
	for i, v := range result.Regs {
		require.Zero(t, v, "register %d should be zero", i)
	}
}

func TestDeterministicReplay(t *testing.T) {
	words := []uint32{0x00300093, 0x00108113} // addi x1,x0,3 ; addi x2,x1,1
	r1 := Run(words, DefaultConfig())
	r2 := Run(words, DefaultConfig())
	require.Equal(t, r1.Regs, r2.Regs)
}

func TestEmptyProgram(t *testing.T) {
	result := Run(nil, DefaultConfig())
	for i, v := range result.Regs {
		require.Zero(t, v, "register %d should be zero on empty program", i)
	}
}

func TestDivisionByZero(t *testing.T) {
	// addi x2, x0, 0 ; div x3, x1, x2
	words := []uint32{
		0x00000113, // addi x2, x0, 0
		0x0220c1b3, // div x3, x1, x2
	}
	result := Run(words, DefaultConfig())
	require.Equal(t, uint32(0xFFFFFFFF), result.Regs[3])
}

func TestTimeoutBudget(t *testing.T) {
	words := []uint32{0x0000006f} // jal x0, 0 (infinite loop)
	cfg := DefaultConfig().WithMaxInstructions(10)
	result := Run(words, cfg)
	require.Equal(t, FaultBudgetExhausted, result.Fault)
	require.Equal(t, 10, result.InstructionsExec)
}

func TestAuipcSharedVsSplit(t *testing.T) {
	words := []uint32{0x00001097} // auipc x1, 1
	shared := Run(words, DefaultConfig())
	require.Equal(t, uint32(0x1000), shared.Regs[1])

	split := Run(words, DefaultConfig().WithMemoryModel(SplitCodeData).WithDataSizeBytes(4096).WithCodeBase(4096))
	require.Equal(t, uint32(4096+0x1000), split.Regs[1])
}
