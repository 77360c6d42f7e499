// Package trace defines the typed representation of a zkVM execution trace
// (instructions, chip rows, interactions) that the backend worker reports
// and the bucket matcher consumes, plus an indexed view over it.
package trace

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Insn is one per-step instruction record.
type Insn struct {
	Seq            uint64
	StepIdx        uint64
	PC             uint64
	NextPC         *uint64
	Timestamp      *uint64
	NextTimestamp  *uint64
	Opcode         uint32
	Operands       [7]int64
}

// ChipRowKind tags the 17 kinds of chip row this model recognizes.
type ChipRowKind string

const (
	KindBaseAlu         ChipRowKind = "base_alu"
	KindShift           ChipRowKind = "shift"
	KindLessThan        ChipRowKind = "less_than"
	KindMul             ChipRowKind = "mul"
	KindMulH            ChipRowKind = "mulh"
	KindDivRem          ChipRowKind = "divrem"
	KindBranchEqual     ChipRowKind = "branch_equal"
	KindBranchLessThan  ChipRowKind = "branch_less_than"
	KindJalLui          ChipRowKind = "jal_lui"
	KindJalr            ChipRowKind = "jalr"
	KindAuipc           ChipRowKind = "auipc"
	KindLoadStore       ChipRowKind = "load_store"
	KindLoadSignExtend  ChipRowKind = "load_sign_extend"
	KindPhantom         ChipRowKind = "phantom"
	KindProgram         ChipRowKind = "program"
	KindConnector       ChipRowKind = "connector"
	KindPadding         ChipRowKind = "padding"
)

// ChipRowBase holds the fields common to every chip row kind.
type ChipRowBase struct {
	Seq       uint64
	StepIdx   uint64
	OpIdx     uint64
	IsValid   bool
	Timestamp *uint64
	ChipName  string
	Kind      ChipRowKind
}

// RegPointers is embedded by chip rows whose payload exposes register
// operand pointers, used by the register-boundary/aliasing bucket family.
type RegPointers struct {
	Rd  *uint32
	Rs1 *uint32
	Rs2 *uint32
}

// ImmPayload is embedded by chip rows where rs2 is an immediate rather
// than a register. Imm carries the matcher-facing numeric value; FieldImm
// carries the same value as the backend's native field element, for
// reporting parity with a real zkVM's witness column (never consulted by
// the bucket matcher itself).
type ImmPayload struct {
	IsImm    bool
	Imm      *int64
	FieldImm *field.Element
	Sign     *bool
}

// LimbPayload carries the real operand limbs needed to classify
// division/remainder special cases.
type LimbPayload struct {
	HasLimbs bool
	Rs1Val   *uint32
	Rs2Val   *uint32
}

// MemoryAddrSpace classifies where a memory chip row's address space
// pointer resolves to.
type MemoryAddrSpace int

const (
	AddrSpaceZero MemoryAddrSpace = iota
	AddrSpaceReg
	AddrSpaceOther
)

// ChipRow is one row of one chip's table for one micro-op.
type ChipRow struct {
	Base ChipRowBase
	RegPointers
	ImmPayload
	LimbPayload

	// Memory-addressing chip rows (load_store / load_sign_extend).
	AddrSpace      *MemoryAddrSpace
	EffectivePtr   *uint32

	// System/terminate markers.
	ExitCode *int32
}

// InteractionKind tags the bus a cross-chip interaction travels on. The
// taxonomy here is the closed subset this specification's bucket model
// needs (execution/program/memory/range_check/bitwise); a backend may carry
// richer kinds internally but only these participate in bucket matching.
type InteractionKind string

const (
	InteractionExecution  InteractionKind = "execution"
	InteractionProgram    InteractionKind = "program"
	InteractionMemory     InteractionKind = "memory"
	InteractionRangeCheck InteractionKind = "range_check"
	InteractionBitwise    InteractionKind = "bitwise"
)

// InteractionDirection is send (producer) or receive (consumer).
type InteractionDirection string

const (
	DirectionSend InteractionDirection = "send"
	DirectionRecv InteractionDirection = "receive"
)

// InteractionBase holds fields common to every interaction.
type InteractionBase struct {
	Seq       uint64
	StepIdx   uint64
	OpIdx     uint64
	RowID     string
	Direction InteractionDirection
	Kind      InteractionKind
	Timestamp *uint64
}

// Interaction is one cross-chip bus message, with kind-specific payload
// fields populated only for the relevant Kind.
type Interaction struct {
	Base InteractionBase

	// execution
	PC uint64

	// memory
	AddrSpace    MemoryAddrSpace
	Pointer      uint32

	// range_check
	MaxBits uint32
	Value   uint64

	// bitwise
	Op   string
	X, Y, Z uint64
}

// ConstructionError is returned when a Trace is built from data that
// violates the (seq) / (step_idx, op_idx) uniqueness invariants.
type ConstructionError struct {
	Message string
}

func (e *ConstructionError) Error() string { return e.Message }

type stepOp struct {
	step, op uint64
}

// Trace is an indexed, read-only view over a trace's three record groups.
type Trace struct {
	Instructions []Insn
	ChipRows     []ChipRow
	Interactions []Interaction

	bySeq        map[uint64]any
	chipByStepOp map[stepOp]*ChipRow
	chipByRowID  map[string]*ChipRow
	chipsByStep  map[uint64][]*ChipRow
	interByStep  map[uint64][]*Interaction
	interByKind  map[InteractionKind][]*Interaction
}

// NewTrace builds an indexed Trace, validating the uniqueness invariants
// from the specification. A seq repeated anywhere in the trace (across
// instructions, chip rows and interactions alike) or a duplicate
// (step_idx, op_idx) among chip rows is a fatal construction error.
func NewTrace(instructions []Insn, chipRows []ChipRow, interactions []Interaction) (*Trace, error) {
	tr := &Trace{
		Instructions: instructions,
		ChipRows:     chipRows,
		Interactions: interactions,
		bySeq:        make(map[uint64]any),
		chipByStepOp: make(map[stepOp]*ChipRow),
		chipByRowID:  make(map[string]*ChipRow),
		chipsByStep:  make(map[uint64][]*ChipRow),
		interByStep:  make(map[uint64][]*Interaction),
		interByKind:  make(map[InteractionKind][]*Interaction),
	}

	for i := range instructions {
		in := &instructions[i]
		if _, dup := tr.bySeq[in.Seq]; dup {
			return nil, &ConstructionError{Message: fmt.Sprintf("duplicate seq %d in instructions", in.Seq)}
		}
		tr.bySeq[in.Seq] = in
	}

	for i := range chipRows {
		row := &chipRows[i]
		if _, dup := tr.bySeq[row.Base.Seq]; dup {
			return nil, &ConstructionError{Message: fmt.Sprintf("duplicate seq %d in chip rows", row.Base.Seq)}
		}
		tr.bySeq[row.Base.Seq] = row
		key := stepOp{row.Base.StepIdx, row.Base.OpIdx}
		if _, dup := tr.chipByStepOp[key]; dup {
			return nil, &ConstructionError{Message: fmt.Sprintf("duplicate (step_idx, op_idx) %v in chip rows", key)}
		}
		tr.chipByStepOp[key] = row
		rowID := rowIdentity(row)
		tr.chipByRowID[rowID] = row
		tr.chipsByStep[row.Base.StepIdx] = append(tr.chipsByStep[row.Base.StepIdx], row)
	}

	for i := range interactions {
		ia := &interactions[i]
		if _, dup := tr.bySeq[ia.Base.Seq]; dup {
			return nil, &ConstructionError{Message: fmt.Sprintf("duplicate seq %d in interactions", ia.Base.Seq)}
		}
		tr.bySeq[ia.Base.Seq] = ia
		tr.interByStep[ia.Base.StepIdx] = append(tr.interByStep[ia.Base.StepIdx], ia)
		tr.interByKind[ia.Base.Kind] = append(tr.interByKind[ia.Base.Kind], ia)
	}

	return tr, nil
}

// rowIdentity derives a stable row_id for a chip row: step_idx/op_idx
// suffices since that pair is already unique within the trace.
func rowIdentity(row *ChipRow) string {
	return fmt.Sprintf("%d:%d", row.Base.StepIdx, row.Base.OpIdx)
}

// BySeq looks up any record (instruction, chip row, or interaction) by its
// global sequence number.
func (t *Trace) BySeq(seq uint64) (any, bool) {
	v, ok := t.bySeq[seq]
	return v, ok
}

// ChipRowAt looks up a chip row by (step_idx, op_idx).
func (t *Trace) ChipRowAt(step, op uint64) (*ChipRow, bool) {
	v, ok := t.chipByStepOp[stepOp{step, op}]
	return v, ok
}

// ChipRowByID looks up a chip row by its row_id.
func (t *Trace) ChipRowByID(rowID string) (*ChipRow, bool) {
	v, ok := t.chipByRowID[rowID]
	return v, ok
}

// ChipRowsForStep returns all chip rows belonging to step s.
func (t *Trace) ChipRowsForStep(step uint64) []*ChipRow {
	return t.chipsByStep[step]
}

// InteractionsForStep returns all interactions belonging to step s.
func (t *Trace) InteractionsForStep(step uint64) []*Interaction {
	return t.interByStep[step]
}

// InteractionsByKind returns all interactions on a given bus kind.
func (t *Trace) InteractionsByKind(kind InteractionKind) []*Interaction {
	return t.interByKind[kind]
}
