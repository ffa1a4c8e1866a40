package llama

import (
	"fmt"
	"unsafe"
)

// A Batch stages tokens for one decode step. The backing arrays are
// allocated by the backend and sized at creation.
type Batch struct {
	b *binder
	c batchRaw

	batchSize int
	maxSeq    int
}

// NewBatch allocates a batch for up to batchSize tokens, each a member
// of up to maxSeq sequences.
func NewBatch(batchSize, maxSeq int) (*Batch, error) {
	b, err := ensureBackend()
	if err != nil {
		return nil, err
	}
	if err := b.require("llama_batch_init", "llama_batch_free"); err != nil {
		return nil, err
	}
	return &Batch{
		b:         b,
		c:         b.llama.batchInit(int32(batchSize), 0, int32(maxSeq)),
		batchSize: batchSize,
		maxSeq:    maxSeq,
	}, nil
}

func (b *Batch) NumTokens() int { return int(b.c.NTokens) }

// Add stages one token at pos in the given sequences. logits marks the
// token whose logits the caller will read after the decode.
func (b *Batch) Add(token Token, pos Pos, logits bool, seqIDs ...SeqID) error {
	if int(b.c.NTokens) >= b.batchSize {
		return fmt.Errorf("batch is full (%d tokens)", b.batchSize)
	}
	if len(seqIDs) > b.maxSeq {
		return fmt.Errorf("too many sequences: %d > %d", len(seqIDs), b.maxSeq)
	}

	i := int(b.c.NTokens)
	*index[Token](b.c.Token, i) = token
	*index[Pos](b.c.Pos, i) = pos
	*index[int32](b.c.NSeqID, i) = int32(len(seqIDs))
	seqArr := *index[uintptr](b.c.SeqID, i)
	for j, seq := range seqIDs {
		*index[SeqID](seqArr, j) = seq
	}
	if logits {
		*index[int8](b.c.Logits, i) = 1
	} else {
		*index[int8](b.c.Logits, i) = 0
	}
	b.c.NTokens++
	return nil
}

func (b *Batch) Clear() { b.c.NTokens = 0 }

func (b *Batch) Free() {
	if b.c.Token != 0 {
		b.b.llama.batchFree(b.c)
		b.c = batchRaw{}
	}
}

// index treats base as a native array of T and returns the address of
// element i.
func index[T any](base uintptr, i int) *T {
	return (*T)(unsafe.Pointer(base + uintptr(i)*unsafe.Sizeof(*new(T))))
}
