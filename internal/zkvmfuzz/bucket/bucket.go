// Package bucket implements the trace-derived coverage "bucket" taxonomy:
// a pure, per-trace matcher that emits a multi-hot set of bucket hits, and
// canonical signature derivation over those hits.
package bucket

import (
	"sort"
	"strings"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/riscv"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/trace"
)

// Hit is one coverage signal derived from a trace. Details is for
// reporting only and must never participate in matching or signature
// computation.
type Hit struct {
	BucketID string         `json:"bucket_id"`
	Details  map[string]any `json:"details,omitempty"`
}

// CanonicalSignatureSeparator is fixed at ";" for this implementation (see
// DESIGN.md: both loop1.rs and loop2.rs canonical_bucket_sig join with ";").
const CanonicalSignatureSeparator = ";"

// MatchInput bundles the raw program words alongside the trace, since some
// buckets (input.has_ecall, input.has_csr, input.has_fence) are derived
// from the program independent of trace success.
type MatchInput struct {
	Words []uint32
	Trace *trace.Trace
}

// Match performs a single pass over a trace's chip rows and interactions
// (plus the raw program) and returns the multi-hot set of bucket hits.
// Per-trace deduplication is by bucket_id only; emission order does not
// matter because canonical signature derivation sorts.
func Match(in MatchInput) []Hit {
	seen := make(map[string]bool)
	var hits []Hit
	emit := func(id string, details map[string]any) {
		if seen[id] {
			return
		}
		seen[id] = true
		hits = append(hits, Hit{BucketID: id, Details: details})
	}

	matchInputBuckets(in.Words, emit)
	if in.Trace == nil {
		return hits
	}
	matchTimingBuckets(in.Trace, emit)
	matchRowBuckets(in.Trace, emit)
	matchInteractionBuckets(in.Trace, emit)
	matchLoop2InactiveRowBuckets(in.Trace, emit)
	return hits
}

// matchLoop2InactiveRowBuckets flags steps that still carry an interaction
// despite having an invalid chip row — a coarse Loop2 mutation target,
// since the inactive row's witness columns are candidates for injection.
func matchLoop2InactiveRowBuckets(t *trace.Trace, emit func(string, map[string]any)) {
	for step := uint64(0); step < uint64(len(t.Instructions)); step++ {
		hasInvalid := false
		for _, row := range t.ChipRowsForStep(step) {
			if !row.Base.IsValid {
				hasInvalid = true
				break
			}
		}
		if !hasInvalid {
			continue
		}
		iaCount := len(t.InteractionsForStep(step))
		if iaCount == 0 {
			continue
		}
		emit("loop2.inactive_row.step_has_interaction", map[string]any{
			"step_idx":          step,
			"interaction_count": iaCount,
		})
	}
}

func matchInputBuckets(words []uint32, emit func(string, map[string]any)) {
	for _, w := range words {
		in, err := riscv.Decode(w)
		if err != nil {
			continue
		}
		switch in.Mnemonic {
		case riscv.Ecall:
			emit("input.has_ecall", nil)
		case riscv.Csrrw, riscv.Csrrs, riscv.Csrrc, riscv.Csrrwi, riscv.Csrrsi, riscv.Csrrci:
			emit("input.has_csr", nil)
		case riscv.Fence, riscv.FenceI:
			emit("input.has_fence", nil)
		}
	}
}

func matchTimingBuckets(t *trace.Trace, emit func(string, map[string]any)) {
	for _, in := range t.Instructions {
		if in.Timestamp != nil && *in.Timestamp != 0 && in.StepIdx == 0 {
			emit("time.start_nonzero", nil)
		}
		if in.Timestamp != nil && in.NextTimestamp != nil {
			if *in.NextTimestamp <= *in.Timestamp {
				emit("time.non_monotonic", nil)
			} else if delta := *in.NextTimestamp - *in.Timestamp; delta != 1 {
				emit("time.delta_not_one", nil)
			}
		}
	}
	for _, row := range t.ChipRows {
		if row.Base.Timestamp == nil {
			emit("time.row_timestamp_missing", nil)
		}
	}
}

func matchRowBuckets(t *trace.Trace, emit func(string, map[string]any)) {
	anyInvalid := false
	for i := range t.ChipRows {
		row := &t.ChipRows[i]
		if !row.Base.IsValid {
			anyInvalid = true
			emit("row.invalid_in_kind", map[string]any{"kind": string(row.Base.Kind)})
		}
		if row.Base.Kind == trace.KindPadding {
			emit("row.padding_kind_seen", nil)
		}
		matchRegisterBuckets(row, emit)
		matchImmediateBuckets(row, emit)
		matchChipFamilyBuckets(row, emit)
		matchDivRemBuckets(row, emit)
		matchBranchBuckets(row, emit)
		matchMemoryBuckets(row, emit)
	}
	if anyInvalid {
		emit("row.invalid_seen", nil)
	}
}

func matchRegisterBuckets(row *trace.ChipRow, emit func(string, map[string]any)) {
	if row.Rd != nil && *row.Rd == 0 {
		emit("reg.write_x0", nil)
	}
	if row.Rs1 != nil && *row.Rs1 == 0 {
		emit("reg.read_rs1_x0", nil)
	}
	if row.Rs2 != nil && *row.Rs2 == 0 {
		emit("reg.read_rs2_x0", nil)
	}
	if row.Rd != nil && row.Rs1 != nil && *row.Rd == *row.Rs1 {
		emit("reg.alias.rd_eq_rs1", nil)
	}
	if row.Rd != nil && row.Rs2 != nil && *row.Rd == *row.Rs2 {
		emit("reg.alias.rd_eq_rs2", nil)
	}
	if row.Rs1 != nil && row.Rs2 != nil && *row.Rs1 == *row.Rs2 {
		emit("reg.alias.rs1_eq_rs2", nil)
	}
}

func matchImmediateBuckets(row *trace.ChipRow, emit func(string, map[string]any)) {
	if !row.ImmPayload.IsImm || row.ImmPayload.Imm == nil {
		return
	}
	emit("imm.rs2_is_imm", nil)
	v := *row.ImmPayload.Imm
	switch {
	case v == 0:
		emit("imm.value.0", nil)
	case v == -1:
		emit("imm.value.minus1", nil)
	case v == -2147483648:
		emit("imm.value.min", nil)
	case v == 2147483647:
		emit("imm.value.max", nil)
	}
	if row.ImmPayload.Sign != nil && *row.ImmPayload.Sign {
		emit("imm.sign_true", nil)
	}
	if row.Base.Kind == trace.KindBaseAlu {
		emit("loop2.target.base_alu_imm_limbs", nil)
	}
}

func matchChipFamilyBuckets(row *trace.ChipRow, emit func(string, map[string]any)) {
	switch row.Base.Kind {
	case trace.KindBaseAlu:
		emit("alu.base_alu_seen", nil)
	case trace.KindAuipc:
		emit("auipc.seen", nil)
	case trace.KindLoadStore, trace.KindLoadSignExtend:
		emit("mem.access_seen", nil)
	case trace.KindProgram:
		emit("system.program_row", nil)
	}
	if row.ExitCode != nil {
		emit("system.terminate", map[string]any{"exit_code": *row.ExitCode})
	}
}

func matchDivRemBuckets(row *trace.ChipRow, emit func(string, map[string]any)) {
	if row.Base.Kind != trace.KindDivRem || !row.LimbPayload.HasLimbs {
		return
	}
	rs1, rs2 := row.LimbPayload.Rs1Val, row.LimbPayload.Rs2Val
	if rs1 == nil || rs2 == nil {
		return
	}
	if *rs2 == 0 {
		emit("divrem.div_by_zero", nil)
	}
	if *rs1 == 0x80000000 && *rs2 == 0xFFFFFFFF {
		emit("divrem.overflow_case", nil)
	}
	if *rs1 == *rs2 {
		emit("divrem.rs1_eq_rs2", nil)
	}
}

func matchBranchBuckets(row *trace.ChipRow, emit func(string, map[string]any)) {
	if row.Base.Kind != trace.KindBranchEqual && row.Base.Kind != trace.KindBranchLessThan {
		return
	}
	if !row.ImmPayload.IsImm || row.ImmPayload.Imm == nil {
		return
	}
	v := *row.ImmPayload.Imm
	switch {
	case v == 0:
		emit("branch.imm.0", nil)
	case v == 2 || v == -2:
		emit("branch.imm.pm2", nil)
	case v == 2048 || v == -2048:
		emit("branch.imm.pm2048", nil)
	}
}

func matchMemoryBuckets(row *trace.ChipRow, emit func(string, map[string]any)) {
	if row.Base.Kind != trace.KindLoadStore && row.Base.Kind != trace.KindLoadSignExtend {
		return
	}
	if row.AddrSpace != nil {
		switch *row.AddrSpace {
		case trace.AddrSpaceZero:
			emit("mem.addr_space.is_0", nil)
		case trace.AddrSpaceReg:
			emit("mem.addr_space.is_reg", nil)
		case trace.AddrSpaceOther:
			emit("mem.addr_space.is_other", nil)
		}
	}
	if row.ImmPayload.Sign != nil && *row.ImmPayload.Sign {
		emit("mem.imm_sign_true", nil)
	}
	if row.EffectivePtr != nil {
		ptr := *row.EffectivePtr
		if ptr == 0 {
			emit("mem.effective_ptr_zero", nil)
		}
		if ptr%2 != 0 {
			emit("mem.effective_ptr_unaligned2", nil)
		}
		if ptr%4 != 0 {
			emit("mem.effective_ptr_unaligned4", nil)
		}
	}
	// rs1 is compared with rd on a load-shaped row (rd set, no rs2) and
	// with rs2 on a store-shaped row (rs2 set, no rd).
	kindSuffix, other := "other", row.Rd
	switch {
	case row.Rd != nil && row.Rs2 == nil:
		kindSuffix = "load"
	case row.Rs2 != nil && row.Rd == nil:
		kindSuffix, other = "store", row.Rs2
	}
	if row.Rs1 != nil && other != nil && *row.Rs1 == *other {
		emit("mem.alias.rs1_eq_rd_rs2."+kindSuffix, nil)
	}
}

func matchInteractionBuckets(t *trace.Trace, emit func(string, map[string]any)) {
	lastTimestampByKind := make(map[trace.InteractionKind]uint64)
	for i := range t.Interactions {
		ia := &t.Interactions[i]
		switch ia.Base.Kind {
		case trace.InteractionExecution:
			emit("interaction.execution.seen", nil)
			if ia.PC == 0 {
				emit("interaction.execution.pc_zero", nil)
			}
			checkMonotonic(ia, lastTimestampByKind, "interaction.execution.timestamp_non_monotonic", emit)
		case trace.InteractionRangeCheck:
			emit("interaction.range_check.seen", nil)
			if ia.MaxBits == 0 {
				emit("interaction.range_check.max_bits_0", nil)
			}
			if ia.MaxBits > 32 {
				emit("interaction.range_check.max_bits_gt_32", nil)
			}
			if ia.MaxBits > 0 && ia.MaxBits <= 63 && ia.Value >= (uint64(1)<<ia.MaxBits) {
				emit("interaction.range_check.value_out_of_range", nil)
			}
		case trace.InteractionMemory:
			emit("interaction.memory.seen", nil)
			switch ia.AddrSpace {
			case trace.AddrSpaceZero:
				emit("interaction.memory.addr_space.is_0", nil)
			case trace.AddrSpaceReg:
				emit("interaction.memory.addr_space.is_reg", nil)
			case trace.AddrSpaceOther:
				emit("interaction.memory.addr_space.is_other", nil)
			}
			if ia.Pointer == 0 {
				emit("interaction.memory.pointer_zero", nil)
			}
			checkMonotonic(ia, lastTimestampByKind, "interaction.memory.timestamp_non_monotonic", emit)
		case trace.InteractionBitwise:
			emit("interaction.bitwise.seen", nil)
			switch ia.Op {
			case "range":
				emit("interaction.bitwise.op_range_mode", nil)
			case "xor":
				emit("interaction.bitwise.op_xor", nil)
			}
			if ia.X == ia.Y {
				emit("interaction.bitwise.x_eq_y", nil)
			}
			if ia.Z == 0 {
				emit("interaction.bitwise.z_eq_0", nil)
			}
		}
	}
}

func checkMonotonic(ia *trace.Interaction, last map[trace.InteractionKind]uint64, bucketID string, emit func(string, map[string]any)) {
	if ia.Base.Timestamp == nil {
		return
	}
	if prev, ok := last[ia.Base.Kind]; ok && *ia.Base.Timestamp <= prev {
		emit(bucketID, nil)
	}
	last[ia.Base.Kind] = *ia.Base.Timestamp
}

// CanonicalSignature sorts bucket ids lexicographically, deduplicates
// while preserving first-occurrence order among equal sorted keys, and
// joins with the fixed separator. An empty hit set yields the empty
// string ("no novelty").
func CanonicalSignature(hits []Hit) string {
	if len(hits) == 0 {
		return ""
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.BucketID)
	}
	sort.Strings(ids)
	deduped := ids[:0]
	var prev string
	first := true
	for _, id := range ids {
		if !first && id == prev {
			continue
		}
		deduped = append(deduped, id)
		prev = id
		first = false
	}
	return strings.Join(deduped, CanonicalSignatureSeparator)
}

// SplitSignature reverses CanonicalSignature's join for callers that need
// the individual bucket ids back (e.g. novelty tracking).
func SplitSignature(sig string) []string {
	if sig == "" {
		return nil
	}
	return strings.Split(sig, CanonicalSignatureSeparator)
}
