package merkle

import "testing"

func TestSignResponse_Completed(t *testing.T) {
	first := SignResponse{Success: true, NeedsSecondSignature: true, MerkleRoot: "0x01"}
	done := SignResponse{Success: true, MerkleRoot: "0x01", TransactionHash: "0xtx"}

	if first.Completed() {
		t.Fatalf("first signature must not be completed")
	}
	if !done.Completed() {
		t.Fatalf("expected completed update")
	}
}

func TestPending_AwaitingSignatureFrom(t *testing.T) {
	p := Pending{Pending: []PendingUpdate{{MerkleRoot: "0xroot", FirstAdmin: "0xaaa"}}}

	if p.AwaitingSignatureFrom("0xroot", "0xAAA") {
		t.Fatalf("first admin cannot provide the second signature")
	}
	if !p.AwaitingSignatureFrom("0xroot", "0xbbb") {
		t.Fatalf("another admin should be able to sign")
	}
	if p.AwaitingSignatureFrom("0xother", "0xbbb") {
		t.Fatalf("unknown root is not pending")
	}
}
