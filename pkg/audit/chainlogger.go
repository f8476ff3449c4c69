package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// LogEntry is a single record in the tamper-evident journal. Operation names
// the action taken; Detail carries its parameters.
type LogEntry struct {
	Timestamp    string `json:"timestamp"`
	PreviousHash string `json:"previous_hash"`
	Operation    string `json:"operation"`
	Detail       string `json:"detail"`
	Hash         string `json:"hash"`
}

// ChainLogger is a hash-chained journal. Each entry's hash covers the
// previous entry's hash, so any edit breaks the chain from that point on.
type ChainLogger struct {
	mu           sync.Mutex
	previousHash string
	entries      []*LogEntry
}

// NewChainLogger returns a journal anchored on a zero hash.
func NewChainLogger() *ChainLogger {
	return &ChainLogger{
		previousHash: strings.Repeat("0", 64),
	}
}

// Append records an operation and returns the new entry.
func (c *ChainLogger) Append(operation, detail string) *LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &LogEntry{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		PreviousHash: c.previousHash,
		Operation:    operation,
		Detail:       detail,
	}
	entry.Hash = entryHash(entry)

	c.previousHash = entry.Hash
	c.entries = append(c.entries, entry)
	return entry
}

// Entries returns a snapshot of the journal in append order.
func (c *ChainLogger) Entries() []*LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*LogEntry, len(c.entries))
	for i, e := range c.entries {
		cp := *e
		out[i] = &cp
	}
	return out
}

func entryHash(e *LogEntry) string {
	input := fmt.Sprintf("%s|%s|%s|%s", e.PreviousHash, e.Timestamp, e.Operation, e.Detail)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks that entries form an unbroken hash chain.
func VerifyChain(entries []*LogEntry) bool {
	for i, entry := range entries {
		if i > 0 && entry.PreviousHash != entries[i-1].Hash {
			return false
		}
		if entryHash(entry) != entry.Hash {
			return false
		}
	}
	return true
}
