package llama

import (
	"fmt"
	"unsafe"
)

// A ClipContext wraps a loaded clip (vision encoder) model from the
// multimodal library.
type ClipContext struct {
	b *binder
	c uintptr
}

// NewClipContext loads the vision projector model at path.
func NewClipContext(path string) (*ClipContext, error) {
	b, err := ensureBackend()
	if err != nil {
		return nil, err
	}
	if err := b.require("clip_model_load"); err != nil {
		return nil, err
	}
	handle := b.llava.clipModelLoad(path, 0)
	if handle == 0 {
		return nil, fmt.Errorf("unable to load clip model %s", path)
	}
	return &ClipContext{b: b, c: handle}, nil
}

func (c *ClipContext) Free() {
	if c.c != 0 && c.b.require("clip_free") == nil {
		c.b.llava.clipFree(c.c)
		c.c = 0
	}
}

// imageEmbedRaw mirrors llava_image_embed.
type imageEmbedRaw struct {
	Embed     uintptr
	NImagePos int32
}

// An ImageEmbed holds image embeddings produced by the clip encoder,
// ready to evaluate into a context.
type ImageEmbed struct {
	b *binder
	c uintptr
}

// NewImageEmbed encodes an image (png/jpeg bytes) into embeddings.
func NewImageEmbed(clip *ClipContext, threads int, data []byte) (*ImageEmbed, error) {
	if err := clip.b.require("llava_image_embed_make_with_bytes"); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	handle := clip.b.llava.imageEmbedMakeWithBytes(clip.c, int32(threads), &data[0], int32(len(data)))
	if handle == 0 {
		return nil, fmt.Errorf("unable to create image embedding")
	}
	return &ImageEmbed{b: clip.b, c: handle}, nil
}

// Tokens is the number of positions the embedding occupies in a
// context.
func (e *ImageEmbed) Tokens() int {
	return int((*imageEmbedRaw)(unsafe.Pointer(e.c)).NImagePos)
}

func (e *ImageEmbed) Free() {
	if e.c != 0 && e.b.require("llava_image_embed_free") == nil {
		e.b.llava.imageEmbedFree(e.c)
		e.c = 0
	}
}

// EvalImageEmbed evaluates the embedding into the context at *nPast,
// advancing it by the number of positions consumed.
func (c *Context) EvalImageEmbed(embed *ImageEmbed, nBatch int, nPast *int) error {
	if err := c.b.require("llava_eval_image_embed"); err != nil {
		return err
	}
	pos := int32(*nPast)
	if !c.b.llava.evalImageEmbed(c.c, embed.c, int32(nBatch), &pos) {
		return fmt.Errorf("image embedding evaluation failed")
	}
	*nPast = int(pos)
	return nil
}
