package bucket

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/trace"
)

func u32p(v uint32) *uint32 { return &v }
func i64p(v int64) *int64   { return &v }
func boolp(v bool) *bool    { return &v }

func TestCanonicalSignatureOrderIndependent(t *testing.T) {
	hitsA := []Hit{{BucketID: "b.two"}, {BucketID: "a.one"}, {BucketID: "a.one"}}
	hitsB := []Hit{{BucketID: "a.one"}, {BucketID: "b.two"}}
	require.Equal(t, CanonicalSignature(hitsA), CanonicalSignature(hitsB))
	require.Equal(t, "a.one;b.two", CanonicalSignature(hitsA))
}

func TestCanonicalSignatureEmpty(t *testing.T) {
	require.Equal(t, "", CanonicalSignature(nil))
}

func TestCanonicalSignatureIdempotent(t *testing.T) {
	hits := []Hit{{BucketID: "z.last"}, {BucketID: "a.first"}}
	sig := CanonicalSignature(hits)
	tokens := SplitSignature(sig)
	var reHits []Hit
	for _, tok := range tokens {
		reHits = append(reHits, Hit{BucketID: tok})
	}
	require.Equal(t, sig, CanonicalSignature(reHits))
}

func TestEcallInputBucket(t *testing.T) {
	hits := Match(MatchInput{Words: []uint32{0x00000073}}) // ecall
	found := false
	for _, h := range hits {
		if h.BucketID == "input.has_ecall" {
			found = true
		}
	}
	require.True(t, found)
}

func TestX0WriteBucketSet(t *testing.T) {
	rows := []trace.ChipRow{
		{
			Base:        trace.ChipRowBase{Seq: 1, StepIdx: 0, OpIdx: 0, IsValid: true, Kind: trace.KindBaseAlu},
			RegPointers: trace.RegPointers{Rd: u32p(0), Rs1: u32p(0)},
			ImmPayload:  trace.ImmPayload{IsImm: true, Imm: i64p(0)},
		},
	}
	tr, err := trace.NewTrace(nil, rows, nil)
	require.NoError(t, err)
	hits := Match(MatchInput{Words: []uint32{0x00000013}, Trace: tr})
	ids := map[string]bool{}
	for _, h := range hits {
		ids[h.BucketID] = true
	}
	for _, want := range []string{"reg.write_x0", "reg.read_rs1_x0", "imm.rs2_is_imm", "imm.value.0", "alu.base_alu_seen"} {
		require.True(t, ids[want], "missing bucket %s", want)
	}
}

func TestDivisionByZeroBucket(t *testing.T) {
	rows := []trace.ChipRow{
		{
			Base:        trace.ChipRowBase{Seq: 1, StepIdx: 0, OpIdx: 0, IsValid: true, Kind: trace.KindDivRem},
			LimbPayload: trace.LimbPayload{HasLimbs: true, Rs1Val: u32p(5), Rs2Val: u32p(0)},
		},
	}
	tr, err := trace.NewTrace(nil, rows, nil)
	require.NoError(t, err)
	hits := Match(MatchInput{Trace: tr})
	var found bool
	for _, h := range hits {
		if h.BucketID == "divrem.div_by_zero" {
			found = true
		}
	}
	require.True(t, found)
}

func TestMisalignedEffectivePointer(t *testing.T) {
	ptr := uint32(0x3)
	rows := []trace.ChipRow{
		{
			Base:         trace.ChipRowBase{Seq: 1, StepIdx: 0, OpIdx: 0, IsValid: true, Kind: trace.KindLoadStore},
			EffectivePtr: &ptr,
		},
	}
	tr, err := trace.NewTrace(nil, rows, nil)
	require.NoError(t, err)
	hits := Match(MatchInput{Trace: tr})
	ids := map[string]bool{}
	for _, h := range hits {
		ids[h.BucketID] = true
	}
	require.True(t, ids["mem.effective_ptr_unaligned2"])
	require.True(t, ids["mem.effective_ptr_unaligned4"])
}

func TestBaseAluImmLimbsLoop2Target(t *testing.T) {
	rows := []trace.ChipRow{
		{
			Base:       trace.ChipRowBase{Seq: 1, StepIdx: 0, OpIdx: 0, IsValid: true, Kind: trace.KindBaseAlu},
			ImmPayload: trace.ImmPayload{IsImm: true, Imm: i64p(7)},
		},
		{
			Base: trace.ChipRowBase{Seq: 2, StepIdx: 1, OpIdx: 0, IsValid: true, Kind: trace.KindShift},
			ImmPayload: trace.ImmPayload{IsImm: true, Imm: i64p(7)},
		},
	}
	tr, err := trace.NewTrace(nil, rows, nil)
	require.NoError(t, err)
	hits := Match(MatchInput{Trace: tr})
	ids := map[string]bool{}
	for _, h := range hits {
		ids[h.BucketID] = true
	}
	require.True(t, ids["loop2.target.base_alu_imm_limbs"])
	require.True(t, ids["imm.rs2_is_imm"])
}

func TestLoop2InactiveRowStepHasInteraction(t *testing.T) {
	insns := []trace.Insn{{Seq: 1, StepIdx: 0}}
	rows := []trace.ChipRow{
		{Base: trace.ChipRowBase{Seq: 2, StepIdx: 0, OpIdx: 0, IsValid: false, Kind: trace.KindBaseAlu}},
	}
	interactions := []trace.Interaction{
		{Base: trace.InteractionBase{Seq: 3, StepIdx: 0, OpIdx: 0, Kind: trace.InteractionExecution}},
	}
	tr, err := trace.NewTrace(insns, rows, interactions)
	require.NoError(t, err)
	hits := Match(MatchInput{Trace: tr})
	var details map[string]any
	for _, h := range hits {
		if h.BucketID == "loop2.inactive_row.step_has_interaction" {
			details = h.Details
		}
	}
	require.NotNil(t, details)
	require.EqualValues(t, 0, details["step_idx"])
	require.EqualValues(t, 1, details["interaction_count"])
}

func TestLoop2InactiveRowStepHasInteractionSkipsValidRows(t *testing.T) {
	insns := []trace.Insn{{Seq: 1, StepIdx: 0}}
	rows := []trace.ChipRow{
		{Base: trace.ChipRowBase{Seq: 2, StepIdx: 0, OpIdx: 0, IsValid: true, Kind: trace.KindBaseAlu}},
	}
	interactions := []trace.Interaction{
		{Base: trace.InteractionBase{Seq: 3, StepIdx: 0, OpIdx: 0, Kind: trace.InteractionExecution}},
	}
	tr, err := trace.NewTrace(insns, rows, interactions)
	require.NoError(t, err)
	hits := Match(MatchInput{Trace: tr})
	for _, h := range hits {
		require.NotEqual(t, "loop2.inactive_row.step_has_interaction", h.BucketID)
	}
}

func TestDuplicateStepOpIsFatal(t *testing.T) {
	rows := []trace.ChipRow{
		{Base: trace.ChipRowBase{Seq: 1, StepIdx: 0, OpIdx: 0, Kind: trace.KindBaseAlu}},
		{Base: trace.ChipRowBase{Seq: 2, StepIdx: 0, OpIdx: 0, Kind: trace.KindBaseAlu}},
	}
	_, err := trace.NewTrace(nil, rows, nil)
	require.Error(t, err)
}
