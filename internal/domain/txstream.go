package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Instruction is one decoded instruction inside an observed transaction.
// Data is the raw instruction payload; the detector only looks at its length
// and the owning program, never at venue-specific encodings.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []solana.PublicKey
	Data      []byte
}

// TxRecord is one transaction pushed by the stream service. Delivery is
// best-effort: records may arrive late or not at all, and consumers must not
// assume gap-free slots.
type TxRecord struct {
	Signature    string
	Slot         uint64
	ObservedAt   time.Time
	Instructions []Instruction
}
