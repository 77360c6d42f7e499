package fuzz

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/bucket"
	"github.com/vybium/zkvm-diff-fuzz/internal/zkvmfuzz/workerproto"
)

func TestInjectionTargetsUsesLoop2TargetBucket(t *testing.T) {
	require.Equal(t, "loop2.target.base_alu_imm_limbs", InjectionTargets[0].SourceBucket)
	require.Equal(t, workerproto.InjectRs2ImmLimbs, InjectionTargets[0].Anchor)
}

func TestMatchedAnchorsFiltersByHitSourceBucket(t *testing.T) {
	hits := []bucket.Hit{{BucketID: "auipc.seen"}, {BucketID: "divrem.div_by_zero"}}
	anchors := matchedAnchors(hits)
	require.Len(t, anchors, 2)
	require.Equal(t, workerproto.InjectAuipcPCLimbs, anchors[0].Anchor)
	require.Equal(t, workerproto.InjectDivRemSpecialCase, anchors[1].Anchor)
}

func TestMatchedAnchorsDedupesSharedAnchor(t *testing.T) {
	hits := []bucket.Hit{
		{BucketID: "divrem.div_by_zero"},
		{BucketID: "divrem.overflow_case"},
		{BucketID: "divrem.rs1_eq_rs2"},
	}
	anchors := matchedAnchors(hits)
	require.Len(t, anchors, 1)
	require.Equal(t, workerproto.InjectDivRemSpecialCase, anchors[0].Anchor)
}

func TestMatchedAnchorsEmptyWhenNoHitsMatch(t *testing.T) {
	anchors := matchedAnchors([]bucket.Hit{{BucketID: "input.has_ecall"}})
	require.Empty(t, anchors)
}

func TestCorpusRecordForTagsPhase(t *testing.T) {
	s := newBareSession()
	rec := corpusRecordFor(s, candidateOutcome{words: []uint32{1}}, "baseline")
	require.Equal(t, "baseline", rec.Metadata["phase"])
}

func TestCorpusRecordForOmitsMetadataWhenPhaseEmpty(t *testing.T) {
	s := newBareSession()
	rec := corpusRecordFor(s, candidateOutcome{words: []uint32{1}}, "")
	require.Nil(t, rec.Metadata)
}

func TestBugRecordForTagsPhaseAndKind(t *testing.T) {
	s := newBareSession()
	rec := bugRecordFor(s, candidateOutcome{words: []uint32{1}}, BugUnderconstrainedCandidate, "injected "+workerproto.InjectRs2ImmLimbs, "injected")
	require.Equal(t, string(BugUnderconstrainedCandidate), rec.Metadata["kind"])
	require.Equal(t, "injected", rec.Metadata["phase"])
}

func TestRecordOutcomeBugsWritesMismatchKind(t *testing.T) {
	s := newBareSession()
	corpusOut, err := openJSONLWriter(jsonlTestPath(t, "corpus"))
	require.NoError(t, err)
	bugOut, err := openJSONLWriter(jsonlTestPath(t, "bugs"))
	require.NoError(t, err)
	s.corpusOut = corpusOut
	s.bugOut = bugOut
	defer corpusOut.Close()
	defer bugOut.Close()

	outcome := candidateOutcome{words: []uint32{1}, mismatch: true}
	require.NoError(t, recordOutcomeBugs(s, outcome, "injected"))
	require.EqualValues(t, 1, s.BugsFound())
}

func jsonlTestPath(t *testing.T, name string) string {
	t.Helper()
	return t.TempDir() + "/" + name + ".jsonl"
}
