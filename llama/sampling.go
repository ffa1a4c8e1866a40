package llama

import (
	"fmt"
	"unsafe"
)

// SamplingParams configure a sampler chain. DefaultSamplingParams gives
// the conventional temperature-0.8 setup.
type SamplingParams struct {
	TopK           int
	TopP           float32
	MinP           float32
	TypicalP       float32
	Temp           float32
	RepeatLastN    int
	PenaltyRepeat  float32
	PenaltyFreq    float32
	PenaltyPresent float32
	Mirostat       int
	MirostatTau    float32
	MirostatEta    float32
	PenalizeNL     bool
	Seed           uint32
}

func DefaultSamplingParams() SamplingParams {
	return SamplingParams{
		TopK:          40,
		TopP:          0.95,
		MinP:          0.05,
		TypicalP:      1.0,
		Temp:          0.8,
		RepeatLastN:   64,
		PenaltyRepeat: 1.1,
		MirostatTau:   5.0,
		MirostatEta:   0.1,
	}
}

// A SamplerChain owns a llama_sampler chain built from SamplingParams.
type SamplerChain struct {
	b *binder
	c uintptr
}

// NewSamplerChain builds the chain for model: penalties, then the
// truncation samplers, then the final selection stage (greedy when
// temperature is zero or negative, mirostat v2 when requested, seeded
// distribution otherwise).
func NewSamplerChain(model *Model, params SamplingParams) (*SamplerChain, error) {
	b := model.b
	if err := b.require(
		"llama_sampler_chain_default_params", "llama_sampler_chain_init", "llama_sampler_chain_add",
		"llama_sampler_init_penalties", "llama_sampler_init_top_k", "llama_sampler_init_top_p",
		"llama_sampler_init_min_p", "llama_sampler_init_typical", "llama_sampler_init_temp",
		"llama_sampler_init_mirostat_v2", "llama_sampler_init_dist", "llama_sampler_init_greedy",
	); err != nil {
		return nil, err
	}

	nVocab, err := model.NumVocab()
	if err != nil {
		return nil, err
	}
	eos, err := model.TokenEOS()
	if err != nil {
		return nil, err
	}
	nl, err := model.TokenNL()
	if err != nil {
		return nil, err
	}

	chain := b.llama.samplerChainInit(b.llama.samplerChainDefaultParams())
	if chain == 0 {
		return nil, fmt.Errorf("unable to create sampler chain")
	}
	add := func(sampler uintptr) { b.llama.samplerChainAdd(chain, sampler) }

	add(b.llama.samplerInitPenalties(int32(nVocab), eos, nl,
		int32(params.RepeatLastN), params.PenaltyRepeat, params.PenaltyFreq, params.PenaltyPresent,
		params.PenalizeNL, false))

	switch {
	case params.Temp <= 0:
		add(b.llama.samplerInitGreedy())
	case params.Mirostat == 2:
		add(b.llama.samplerInitTemp(params.Temp))
		add(b.llama.samplerInitMirostatV2(params.Seed, params.MirostatTau, params.MirostatEta))
	default:
		if params.TopK > 0 {
			add(b.llama.samplerInitTopK(int32(params.TopK)))
		}
		if params.TypicalP > 0 && params.TypicalP < 1 {
			add(b.llama.samplerInitTypical(params.TypicalP, 1))
		}
		if params.TopP > 0 && params.TopP < 1 {
			add(b.llama.samplerInitTopP(params.TopP, 1))
		}
		if params.MinP > 0 {
			add(b.llama.samplerInitMinP(params.MinP, 1))
		}
		add(b.llama.samplerInitTemp(params.Temp))
		add(b.llama.samplerInitDist(params.Seed))
	}

	return &SamplerChain{b: b, c: chain}, nil
}

// Sample picks the next token from the logits of batch index idx.
func (s *SamplerChain) Sample(ctx *Context, idx int) (Token, error) {
	if err := s.b.require("llama_sampler_apply"); err != nil {
		return -1, err
	}
	logits, err := ctx.GetLogitsIth(idx)
	if err != nil {
		return -1, err
	}

	candidates := make([]tokenData, len(logits))
	for i, logit := range logits {
		candidates[i] = tokenData{ID: Token(i), Logit: logit}
	}
	arr := tokenDataArray{
		Data:     &candidates[0],
		Size:     uint64(len(candidates)),
		Selected: -1,
	}
	s.b.llama.samplerApply(s.c, &arr)
	if arr.Selected < 0 || arr.Selected >= int64(arr.Size) {
		return -1, fmt.Errorf("sampler selected no token")
	}
	// The sampler may have sorted or truncated the array in place.
	return unsafe.Slice(arr.Data, arr.Size)[arr.Selected].ID, nil
}

// Accept informs stateful samplers (penalties, mirostat) of the chosen
// token.
func (s *SamplerChain) Accept(token Token) error {
	if err := s.b.require("llama_sampler_accept"); err != nil {
		return err
	}
	s.b.llama.samplerAccept(s.c, token)
	return nil
}

// Reset clears all sampler state, for reuse across generations.
func (s *SamplerChain) Reset() error {
	if err := s.b.require("llama_sampler_reset"); err != nil {
		return err
	}
	s.b.llama.samplerReset(s.c)
	return nil
}

func (s *SamplerChain) Free() {
	if s.c != 0 && s.b.require("llama_sampler_free") == nil {
		s.b.llama.samplerFree(s.c)
		s.c = 0
	}
}
