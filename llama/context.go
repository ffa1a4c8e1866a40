package llama

import (
	"fmt"
	"runtime"
	"unsafe"
)

// ContextOptions control inference context creation. Zero fields fall
// back to the backend defaults.
type ContextOptions struct {
	NCtx          int
	NBatch        int
	NThreads      int
	NThreadsBatch int
	Embeddings    bool
	FlashAttn     bool
}

// A Context wraps a llama_context handle. A context is not safe for
// concurrent use; that discipline is the caller's.
type Context struct {
	b     *binder
	c     uintptr
	model *Model
}

// NewContext creates an inference context over a loaded model.
func NewContext(model *Model, opts ContextOptions) (*Context, error) {
	b := model.b
	if err := b.require("llama_context_default_params", "llama_new_context_with_model"); err != nil {
		return nil, err
	}

	params := b.llama.contextDefaultParams()
	if opts.NCtx > 0 {
		params.NCtx = uint32(opts.NCtx)
	}
	if opts.NBatch > 0 {
		params.NBatch = uint32(opts.NBatch)
	}
	if opts.NThreads > 0 {
		params.NThreads = int32(opts.NThreads)
	} else {
		params.NThreads = int32(runtime.NumCPU())
	}
	if opts.NThreadsBatch > 0 {
		params.NThreadsBatch = int32(opts.NThreadsBatch)
	} else {
		params.NThreadsBatch = params.NThreads
	}
	params.Embeddings = opts.Embeddings
	params.FlashAttn = opts.FlashAttn

	handle := b.llama.newContextWithModel(model.c, params)
	if handle == 0 {
		return nil, fmt.Errorf("unable to create inference context")
	}
	return &Context{b: b, c: handle, model: model}, nil
}

func (c *Context) Model() *Model { return c.model }

func (c *Context) Free() {
	if c.c != 0 && c.b.require("llama_free") == nil {
		c.b.llama.free(c.c)
		c.c = 0
	}
}

// Decode runs one decode step over the batch. A positive return from
// the engine means no KV slot was available, which is reported as an
// error the caller can react to by shrinking the cache.
func (c *Context) Decode(batch *Batch) error {
	if err := c.b.require("llama_decode"); err != nil {
		return err
	}
	switch status := c.b.llama.decode(c.c, batch.c); {
	case status == 0:
		return nil
	case status > 0:
		return fmt.Errorf("could not find a kv cache slot (status %d)", status)
	default:
		return fmt.Errorf("decode failed (status %d)", status)
	}
}

func (c *Context) NumCtx() (int, error) {
	if err := c.b.require("llama_n_ctx"); err != nil {
		return 0, err
	}
	return int(c.b.llama.nCtx(c.c)), nil
}

func (c *Context) NumBatch() (int, error) {
	if err := c.b.require("llama_n_batch"); err != nil {
		return 0, err
	}
	return int(c.b.llama.nBatch(c.c)), nil
}

// GetLogitsIth returns the logits of the i-th batch token. The slice
// aliases backend memory and is valid until the next decode.
func (c *Context) GetLogitsIth(i int) ([]float32, error) {
	if err := c.b.require("llama_get_logits_ith", "llama_n_vocab"); err != nil {
		return nil, err
	}
	p := c.b.llama.getLogitsIth(c.c, int32(i))
	if p == nil {
		return nil, fmt.Errorf("no logits for batch index %d", i)
	}
	return unsafe.Slice(p, c.b.llama.nVocab(c.model.c)), nil
}

// GetEmbeddingsIth returns the embeddings of the i-th batch token,
// aliasing backend memory.
func (c *Context) GetEmbeddingsIth(i int) ([]float32, error) {
	if err := c.b.require("llama_get_embeddings_ith", "llama_n_embd"); err != nil {
		return nil, err
	}
	p := c.b.llama.getEmbeddingsIth(c.c, int32(i))
	if p == nil {
		return nil, fmt.Errorf("no embeddings for batch index %d", i)
	}
	return unsafe.Slice(p, c.b.llama.nEmbd(c.model.c)), nil
}

// GetEmbeddingsSeq returns pooled embeddings for one sequence, aliasing
// backend memory.
func (c *Context) GetEmbeddingsSeq(seq SeqID) ([]float32, error) {
	if err := c.b.require("llama_get_embeddings_seq", "llama_n_embd"); err != nil {
		return nil, err
	}
	p := c.b.llama.getEmbeddingsSeq(c.c, seq)
	if p == nil {
		return nil, fmt.Errorf("no embeddings for sequence %d", seq)
	}
	return unsafe.Slice(p, c.b.llama.nEmbd(c.model.c)), nil
}

// KV cache sequence management.

func (c *Context) KvCacheClear() error {
	if err := c.b.require("llama_kv_cache_clear"); err != nil {
		return err
	}
	c.b.llama.kvCacheClear(c.c)
	return nil
}

// KvCacheSeqRm removes seq's entries in [p0, p1). Negative bounds cover
// the whole sequence. A false engine return means a partial removal was
// refused.
func (c *Context) KvCacheSeqRm(seq SeqID, p0, p1 Pos) (bool, error) {
	if err := c.b.require("llama_kv_cache_seq_rm"); err != nil {
		return false, err
	}
	return c.b.llama.kvCacheSeqRm(c.c, seq, p0, p1), nil
}

func (c *Context) KvCacheSeqCp(src, dst SeqID, p0, p1 Pos) error {
	if err := c.b.require("llama_kv_cache_seq_cp"); err != nil {
		return err
	}
	c.b.llama.kvCacheSeqCp(c.c, src, dst, p0, p1)
	return nil
}

// KvCacheSeqAdd shifts seq's positions in [p0, p1) by delta.
func (c *Context) KvCacheSeqAdd(seq SeqID, p0, p1 Pos, delta Pos) error {
	if err := c.b.require("llama_kv_cache_seq_add"); err != nil {
		return err
	}
	c.b.llama.kvCacheSeqAdd(c.c, seq, p0, p1, delta)
	return nil
}

func (c *Context) KvCacheSeqDiv(seq SeqID, p0, p1 Pos, d int) error {
	if err := c.b.require("llama_kv_cache_seq_div"); err != nil {
		return err
	}
	c.b.llama.kvCacheSeqDiv(c.c, seq, p0, p1, int32(d))
	return nil
}

// KvCacheSeqKeep drops every sequence except seq.
func (c *Context) KvCacheSeqKeep(seq SeqID) error {
	if err := c.b.require("llama_kv_cache_seq_keep"); err != nil {
		return err
	}
	c.b.llama.kvCacheSeqKeep(c.c, seq)
	return nil
}

func (c *Context) KvCacheSeqPosMax(seq SeqID) (Pos, error) {
	if err := c.b.require("llama_kv_cache_seq_pos_max"); err != nil {
		return -1, err
	}
	return c.b.llama.kvCacheSeqPosMax(c.c, seq), nil
}

// KvCacheDefrag schedules a defragmentation, applied by the next
// KvCacheUpdate or decode.
func (c *Context) KvCacheDefrag() error {
	if err := c.b.require("llama_kv_cache_defrag"); err != nil {
		return err
	}
	c.b.llama.kvCacheDefrag(c.c)
	return nil
}

func (c *Context) KvCacheUpdate() error {
	if err := c.b.require("llama_kv_cache_update"); err != nil {
		return err
	}
	c.b.llama.kvCacheUpdate(c.c)
	return nil
}

func (c *Context) KvCacheTokenCount() (int, error) {
	if err := c.b.require("llama_get_kv_cache_token_count"); err != nil {
		return 0, err
	}
	return int(c.b.llama.kvCacheTokenCount(c.c)), nil
}

func (c *Context) KvCacheUsedCells() (int, error) {
	if err := c.b.require("llama_get_kv_cache_used_cells"); err != nil {
		return 0, err
	}
	return int(c.b.llama.kvCacheUsedCells(c.c)), nil
}

// Full-state snapshots.

func (c *Context) StateSize() (int, error) {
	if err := c.b.require("llama_get_state_size"); err != nil {
		return 0, err
	}
	return int(c.b.llama.getStateSize(c.c)), nil
}

// CopyState serializes the full context state.
func (c *Context) CopyState() ([]byte, error) {
	size, err := c.StateSize()
	if err != nil {
		return nil, err
	}
	if err := c.b.require("llama_copy_state_data"); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n := c.b.llama.copyStateData(c.c, &buf[0])
	return buf[:n], nil
}

// SetState restores a state produced by CopyState on the same model.
func (c *Context) SetState(data []byte) error {
	if err := c.b.require("llama_set_state_data"); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("empty state data")
	}
	c.b.llama.setStateData(c.c, &data[0])
	return nil
}

// SaveSession writes the context state and its token history to path.
func (c *Context) SaveSession(path string, tokens []Token) error {
	if err := c.b.require("llama_save_session_file"); err != nil {
		return err
	}
	var first *Token
	if len(tokens) > 0 {
		first = &tokens[0]
	}
	if !c.b.llama.saveSessionFile(c.c, path, first, uint64(len(tokens))) {
		return fmt.Errorf("unable to save session to %s", path)
	}
	return nil
}

// LoadSession restores a session from path and returns its token
// history, up to maxTokens.
func (c *Context) LoadSession(path string, maxTokens int) ([]Token, error) {
	if err := c.b.require("llama_load_session_file"); err != nil {
		return nil, err
	}
	if maxTokens < 1 {
		return nil, fmt.Errorf("maxTokens must be positive")
	}
	tokens := make([]Token, maxTokens)
	var count uint64
	if !c.b.llama.loadSessionFile(c.c, path, &tokens[0], uint64(len(tokens)), &count) {
		return nil, fmt.Errorf("unable to load session from %s", path)
	}
	return tokens[:count], nil
}
