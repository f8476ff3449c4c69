package audit

import (
	"testing"
)

func TestChainLogger(t *testing.T) {
	logger := NewChainLogger()

	e1 := logger.Append("account.create", "number=ACC-001")
	e2 := logger.Append("transaction.create", "account=acc-1 kind=DEPOSIT amount=50.00")
	e3 := logger.Append("transfer", "from=acc-1 to=acc-2 amount=10.00")

	chain := []*LogEntry{e1, e2, e3}
	if !VerifyChain(chain) {
		t.Error("VerifyChain failed for valid chain")
	}

	// Tampering with a detail breaks the chain.
	originalDetail := e2.Detail
	e2.Detail = "account=acc-1 kind=DEPOSIT amount=5000.00"
	if VerifyChain(chain) {
		t.Error("VerifyChain succeeded for tampered detail")
	}

	// So does rewriting a hash.
	e2.Detail = originalDetail
	originalHash := e2.Hash
	e2.Hash = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	if VerifyChain(chain) {
		t.Error("VerifyChain succeeded for tampered hash")
	}

	// And breaking a link.
	e2.Hash = originalHash
	e3.PreviousHash = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	if VerifyChain(chain) {
		t.Error("VerifyChain succeeded for broken link")
	}
}

func TestChainLoggerEntriesSnapshot(t *testing.T) {
	logger := NewChainLogger()
	logger.Append("account.create", "number=ACC-001")
	logger.Append("account.create", "number=ACC-002")

	entries := logger.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !VerifyChain(entries) {
		t.Error("VerifyChain failed for snapshot")
	}

	// Mutating the snapshot must not poison the journal.
	entries[0].Detail = "tampered"
	if !VerifyChain(logger.Entries()) {
		t.Error("journal affected by snapshot mutation")
	}
}
