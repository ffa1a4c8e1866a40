package llama

import (
	"fmt"
)

// ModelOptions control model loading. The zero value loads fully on the
// accelerator-selected defaults with memory mapping enabled.
type ModelOptions struct {
	NGPULayers int
	MainGPU    int
	VocabOnly  bool
	UseMmap    bool
	UseMlock   bool
}

// A Model wraps a loaded llama_model handle.
type Model struct {
	b *binder
	c uintptr
}

// LoadModelFromFile loads a gguf model, initializing the backend on
// first use.
func LoadModelFromFile(path string, opts ModelOptions) (*Model, error) {
	b, err := ensureBackend()
	if err != nil {
		return nil, err
	}
	if err := b.require("llama_model_default_params", "llama_load_model_from_file"); err != nil {
		return nil, err
	}

	params := b.llama.modelDefaultParams()
	params.NGPULayers = int32(opts.NGPULayers)
	params.MainGPU = int32(opts.MainGPU)
	params.VocabOnly = opts.VocabOnly
	params.UseMmap = opts.UseMmap
	params.UseMlock = opts.UseMlock

	handle := b.llama.loadModelFromFile(path, params)
	if handle == 0 {
		return nil, fmt.Errorf("unable to load model %s", path)
	}
	return &Model{b: b, c: handle}, nil
}

func (m *Model) Free() {
	if m.c != 0 && m.b.require("llama_free_model") == nil {
		m.b.llama.freeModel(m.c)
		m.c = 0
	}
}

// Tokenize converts text to token ids. addSpecial controls BOS/EOS
// insertion; parseSpecial lets special tokens in the text tokenize to
// their ids.
func (m *Model) Tokenize(text string, addSpecial, parseSpecial bool) ([]Token, error) {
	if err := m.b.require("llama_tokenize"); err != nil {
		return nil, err
	}

	tokens := make([]Token, len(text)+2)
	n := m.b.llama.tokenize(m.c, text, int32(len(text)), &tokens[0], int32(len(tokens)), addSpecial, parseSpecial)
	if n < 0 {
		// Buffer was too small; the negated return is the required size.
		tokens = make([]Token, -n)
		n = m.b.llama.tokenize(m.c, text, int32(len(text)), &tokens[0], int32(len(tokens)), addSpecial, parseSpecial)
		if n < 0 {
			return nil, fmt.Errorf("tokenization failed, required %d tokens", -n)
		}
	}
	return tokens[:n], nil
}

// Meta looks up one model metadata value, e.g. "general.architecture".
// Missing keys return the empty string.
func (m *Model) Meta(key string) string {
	if m.b.require("llama_model_meta_val_str") != nil {
		return ""
	}
	buf := make([]byte, 256)
	n := m.b.llama.modelMetaValStr(m.c, key, &buf[0], uint64(len(buf)))
	if n < 0 {
		return ""
	}
	if int(n) > len(buf) {
		buf = make([]byte, n+1)
		n = m.b.llama.modelMetaValStr(m.c, key, &buf[0], uint64(len(buf)))
		if n < 0 {
			return ""
		}
	}
	return string(buf[:n])
}

// TokenIsEOG reports whether token ends generation.
func (m *Model) TokenIsEOG(token Token) (bool, error) {
	if err := m.b.require("llama_token_is_eog"); err != nil {
		return false, err
	}
	return m.b.llama.tokenIsEOG(m.c, token), nil
}

// AddBOSToken reports whether the model expects a BOS token prepended.
func (m *Model) AddBOSToken() (bool, error) {
	if err := m.b.require("llama_add_bos_token"); err != nil {
		return false, err
	}
	return m.b.llama.addBOSToken(m.c), nil
}

func (m *Model) TokenBOS() (Token, error) {
	if err := m.b.require("llama_token_bos"); err != nil {
		return -1, err
	}
	return m.b.llama.tokenBOS(m.c), nil
}

func (m *Model) TokenEOS() (Token, error) {
	if err := m.b.require("llama_token_eos"); err != nil {
		return -1, err
	}
	return m.b.llama.tokenEOS(m.c), nil
}

func (m *Model) TokenNL() (Token, error) {
	if err := m.b.require("llama_token_nl"); err != nil {
		return -1, err
	}
	return m.b.llama.tokenNL(m.c), nil
}

// NumCtxTrain is the context length the model was trained with.
func (m *Model) NumCtxTrain() (int, error) {
	if err := m.b.require("llama_n_ctx_train"); err != nil {
		return 0, err
	}
	return int(m.b.llama.nCtxTrain(m.c)), nil
}

func (m *Model) NumVocab() (int, error) {
	if err := m.b.require("llama_n_vocab"); err != nil {
		return 0, err
	}
	return int(m.b.llama.nVocab(m.c)), nil
}

func (m *Model) NumEmbd() (int, error) {
	if err := m.b.require("llama_n_embd"); err != nil {
		return 0, err
	}
	return int(m.b.llama.nEmbd(m.c)), nil
}
