package llama

import (
	"log/slog"
	"unsafe"

	"github.com/llamalink/llamalink/dl"
	"github.com/llamalink/llamalink/llm"
)

// Native handle and scalar types. Handles are opaque pointers owned by
// the backend; they are never dereferenced on the Go side.
type (
	Token int32
	Pos   int32
	SeqID int32
)

// modelParams mirrors llama_model_params.
type modelParams struct {
	NGPULayers               int32
	SplitMode                int32
	MainGPU                  int32
	_                        int32
	TensorSplit              uintptr
	RPCServers               uintptr
	ProgressCallback         uintptr
	ProgressCallbackUserData uintptr
	KVOverrides              uintptr
	VocabOnly                bool
	UseMmap                  bool
	UseMlock                 bool
	CheckTensors             bool
}

// contextParams mirrors llama_context_params.
type contextParams struct {
	NCtx              uint32
	NBatch            uint32
	NUBatch           uint32
	NSeqMax           uint32
	NThreads          int32
	NThreadsBatch     int32
	RopeScalingType   int32
	PoolingType       int32
	AttentionType     int32
	RopeFreqBase      float32
	RopeFreqScale     float32
	YarnExtFactor     float32
	YarnAttnFactor    float32
	YarnBetaFast      float32
	YarnBetaSlow      float32
	YarnOrigCtx       uint32
	DefragThold       float32
	CbEval            uintptr
	CbEvalUserData    uintptr
	TypeK             int32
	TypeV             int32
	LogitsAll         bool
	Embeddings        bool
	OffloadKQV        bool
	FlashAttn         bool
	NoPerf            bool
	_                 [3]byte
	AbortCallback     uintptr
	AbortCallbackData uintptr
}

// batchRaw mirrors llama_batch. The arrays behind the pointer fields are
// allocated by llama_batch_init and owned by the backend.
type batchRaw struct {
	NTokens int32
	Token   uintptr
	Embd    uintptr
	Pos     uintptr
	NSeqID  uintptr
	SeqID   uintptr
	Logits  uintptr
}

// tokenData / tokenDataArray mirror llama_token_data(_array).
type tokenData struct {
	ID    Token
	Logit float32
	P     float32
}

type tokenDataArray struct {
	Data     *tokenData
	Size     uint64
	Selected int64
	Sorted   bool
}

// samplerChainParams mirrors llama_sampler_chain_params.
type samplerChainParams struct {
	NoPerf bool
}

// llamaFuncs is the resolved entry-point table of the inference library.
type llamaFuncs struct {
	backendInit func()
	backendFree func()
	numaInit    func(strategy uint32)
	logSet      func(callback uintptr, userData uintptr)

	modelDefaultParams func() modelParams
	loadModelFromFile  func(path string, params modelParams) uintptr
	freeModel          func(model uintptr)
	getModel           func(ctx uintptr) uintptr
	modelMetaValStr    func(model uintptr, key string, buf *byte, size uint64) int32
	tokenize           func(model uintptr, text string, textLen int32, tokens *Token, nTokensMax int32, addSpecial, parseSpecial bool) int32
	tokenIsEOG         func(model uintptr, token Token) bool
	addBOSToken        func(model uintptr) bool
	tokenBOS           func(model uintptr) Token
	tokenEOS           func(model uintptr) Token
	tokenNL            func(model uintptr) Token
	nCtxTrain          func(model uintptr) int32
	nVocab             func(model uintptr) int32
	nEmbd              func(model uintptr) int32

	contextDefaultParams func() contextParams
	newContextWithModel  func(model uintptr, params contextParams) uintptr
	free                 func(ctx uintptr)
	decode               func(ctx uintptr, batch batchRaw) int32
	nCtx                 func(ctx uintptr) uint32
	nBatch               func(ctx uintptr) uint32
	getLogitsIth         func(ctx uintptr, i int32) *float32
	getEmbeddingsIth     func(ctx uintptr, i int32) *float32
	getEmbeddingsSeq     func(ctx uintptr, seq SeqID) *float32

	kvCacheClear         func(ctx uintptr)
	kvCacheSeqRm         func(ctx uintptr, seq SeqID, p0, p1 Pos) bool
	kvCacheSeqCp         func(ctx uintptr, src, dst SeqID, p0, p1 Pos)
	kvCacheSeqAdd        func(ctx uintptr, seq SeqID, p0, p1 Pos, delta Pos)
	kvCacheSeqDiv        func(ctx uintptr, seq SeqID, p0, p1 Pos, d int32)
	kvCacheSeqKeep       func(ctx uintptr, seq SeqID)
	kvCacheSeqPosMax     func(ctx uintptr, seq SeqID) Pos
	kvCacheDefrag        func(ctx uintptr)
	kvCacheUpdate        func(ctx uintptr)
	kvCacheTokenCount    func(ctx uintptr) int32
	kvCacheUsedCells     func(ctx uintptr) int32

	getStateSize    func(ctx uintptr) uint64
	copyStateData   func(ctx uintptr, dst *byte) uint64
	setStateData    func(ctx uintptr, src *byte) uint64
	loadSessionFile func(ctx uintptr, path string, tokensOut *Token, nTokenCapacity uint64, nTokenCountOut *uint64) bool
	saveSessionFile func(ctx uintptr, path string, tokens *Token, nTokenCount uint64) bool

	batchInit func(nTokens, embd, nSeqMax int32) batchRaw
	batchFree func(batch batchRaw)

	samplerChainDefaultParams func() samplerChainParams
	samplerChainInit          func(params samplerChainParams) uintptr
	samplerChainAdd           func(chain, sampler uintptr)
	samplerInitTopK           func(k int32) uintptr
	samplerInitTopP           func(p float32, minKeep uint64) uintptr
	samplerInitMinP           func(p float32, minKeep uint64) uintptr
	samplerInitTypical        func(p float32, minKeep uint64) uintptr
	samplerInitTemp           func(t float32) uintptr
	samplerInitPenalties      func(nVocab int32, eos Token, nl Token, lastN int32, repeat, freq, present float32, penalizeNL, ignoreEOS bool) uintptr
	samplerInitMirostatV2     func(seed uint32, tau, eta float32) uintptr
	samplerInitDist           func(seed uint32) uintptr
	samplerInitGreedy         func() uintptr
	samplerFree               func(sampler uintptr)
	samplerAccept             func(sampler uintptr, token Token)
	samplerReset              func(sampler uintptr)
	samplerApply              func(sampler uintptr, candidates *tokenDataArray)
}

// llavaFuncs is the resolved entry-point table of the multimodal
// library.
type llavaFuncs struct {
	clipModelLoad           func(path string, verbosity int32) uintptr
	clipFree                func(ctx uintptr)
	imageEmbedMakeWithBytes func(clip uintptr, nThreads int32, bytes *byte, length int32) uintptr
	imageEmbedFree          func(embed uintptr)
	evalImageEmbed          func(ctx uintptr, embed uintptr, nBatch int32, nPast *int32) bool
}

// binder holds the loaded triplet and its resolved function tables.
// Symbols missing at bind time are recorded, not fatal: only the call
// paths needing them fail, each with a SymbolError.
type binder struct {
	libs    *llm.Libraries
	missing map[string]*SymbolError

	llama llamaFuncs
	llava llavaFuncs
}

type symbol struct {
	name string
	fptr any
}

func newBinder(libs *llm.Libraries) *binder {
	b := &binder{libs: libs, missing: make(map[string]*SymbolError)}
	b.bindAll(libs.Llama, []symbol{
		{"llama_backend_init", &b.llama.backendInit},
		{"llama_backend_free", &b.llama.backendFree},
		{"llama_numa_init", &b.llama.numaInit},
		{"llama_log_set", &b.llama.logSet},

		{"llama_model_default_params", &b.llama.modelDefaultParams},
		{"llama_load_model_from_file", &b.llama.loadModelFromFile},
		{"llama_free_model", &b.llama.freeModel},
		{"llama_get_model", &b.llama.getModel},
		{"llama_model_meta_val_str", &b.llama.modelMetaValStr},
		{"llama_tokenize", &b.llama.tokenize},
		{"llama_token_is_eog", &b.llama.tokenIsEOG},
		{"llama_add_bos_token", &b.llama.addBOSToken},
		{"llama_token_bos", &b.llama.tokenBOS},
		{"llama_token_eos", &b.llama.tokenEOS},
		{"llama_token_nl", &b.llama.tokenNL},
		{"llama_n_ctx_train", &b.llama.nCtxTrain},
		{"llama_n_vocab", &b.llama.nVocab},
		{"llama_n_embd", &b.llama.nEmbd},

		{"llama_context_default_params", &b.llama.contextDefaultParams},
		{"llama_new_context_with_model", &b.llama.newContextWithModel},
		{"llama_free", &b.llama.free},
		{"llama_decode", &b.llama.decode},
		{"llama_n_ctx", &b.llama.nCtx},
		{"llama_n_batch", &b.llama.nBatch},
		{"llama_get_logits_ith", &b.llama.getLogitsIth},
		{"llama_get_embeddings_ith", &b.llama.getEmbeddingsIth},
		{"llama_get_embeddings_seq", &b.llama.getEmbeddingsSeq},

		{"llama_kv_cache_clear", &b.llama.kvCacheClear},
		{"llama_kv_cache_seq_rm", &b.llama.kvCacheSeqRm},
		{"llama_kv_cache_seq_cp", &b.llama.kvCacheSeqCp},
		{"llama_kv_cache_seq_add", &b.llama.kvCacheSeqAdd},
		{"llama_kv_cache_seq_div", &b.llama.kvCacheSeqDiv},
		{"llama_kv_cache_seq_keep", &b.llama.kvCacheSeqKeep},
		{"llama_kv_cache_seq_pos_max", &b.llama.kvCacheSeqPosMax},
		{"llama_kv_cache_defrag", &b.llama.kvCacheDefrag},
		{"llama_kv_cache_update", &b.llama.kvCacheUpdate},
		{"llama_get_kv_cache_token_count", &b.llama.kvCacheTokenCount},
		{"llama_get_kv_cache_used_cells", &b.llama.kvCacheUsedCells},

		{"llama_get_state_size", &b.llama.getStateSize},
		{"llama_copy_state_data", &b.llama.copyStateData},
		{"llama_set_state_data", &b.llama.setStateData},
		{"llama_load_session_file", &b.llama.loadSessionFile},
		{"llama_save_session_file", &b.llama.saveSessionFile},

		{"llama_batch_init", &b.llama.batchInit},
		{"llama_batch_free", &b.llama.batchFree},

		{"llama_sampler_chain_default_params", &b.llama.samplerChainDefaultParams},
		{"llama_sampler_chain_init", &b.llama.samplerChainInit},
		{"llama_sampler_chain_add", &b.llama.samplerChainAdd},
		{"llama_sampler_init_top_k", &b.llama.samplerInitTopK},
		{"llama_sampler_init_top_p", &b.llama.samplerInitTopP},
		{"llama_sampler_init_min_p", &b.llama.samplerInitMinP},
		{"llama_sampler_init_typical", &b.llama.samplerInitTypical},
		{"llama_sampler_init_temp", &b.llama.samplerInitTemp},
		{"llama_sampler_init_penalties", &b.llama.samplerInitPenalties},
		{"llama_sampler_init_mirostat_v2", &b.llama.samplerInitMirostatV2},
		{"llama_sampler_init_dist", &b.llama.samplerInitDist},
		{"llama_sampler_init_greedy", &b.llama.samplerInitGreedy},
		{"llama_sampler_free", &b.llama.samplerFree},
		{"llama_sampler_accept", &b.llama.samplerAccept},
		{"llama_sampler_reset", &b.llama.samplerReset},
		{"llama_sampler_apply", &b.llama.samplerApply},
	})
	b.bindAll(libs.Llava, []symbol{
		{"clip_model_load", &b.llava.clipModelLoad},
		{"clip_free", &b.llava.clipFree},
		{"llava_image_embed_make_with_bytes", &b.llava.imageEmbedMakeWithBytes},
		{"llava_image_embed_free", &b.llava.imageEmbedFree},
		{"llava_eval_image_embed", &b.llava.evalImageEmbed},
	})
	return b
}

func (b *binder) bindAll(lib *dl.Library, symbols []symbol) {
	for _, s := range symbols {
		if err := lib.Bind(s.name, s.fptr); err != nil {
			slog.Warn("backend entry point missing", "symbol", s.name, "library", lib.Path)
			b.missing[s.name] = &SymbolError{Symbol: s.name, Library: lib.Path, Err: err}
		}
	}
}

// require fails a call path whose entry point did not resolve.
func (b *binder) require(names ...string) error {
	for _, name := range names {
		if err, ok := b.missing[name]; ok {
			return err
		}
	}
	return nil
}

func goString(p uintptr) string {
	if p == 0 {
		return ""
	}
	var buf []byte
	for {
		c := *(*byte)(unsafe.Pointer(p))
		if c == 0 {
			break
		}
		buf = append(buf, c)
		p++
	}
	return string(buf)
}
