package llm

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/llamalink/llamalink/discover"
)

// Library stems every variant directory must supply, in the order they
// are loaded: the inference library depends on the core math library,
// and the multimodal library on both.
const (
	coreLibrary       = "ggml"
	inferenceLibrary  = "llama"
	multimodalLibrary = "llava_shared"
)

// ErrMixedLibraries reports a candidate set holding GPU variants of more
// than one backend family, which the ranking comparator cannot order.
var ErrMixedLibraries = errors.New("mixed gpu libraries in candidate set")

// A Variant names one prebuilt backend build: a library kind plus an
// optional tag, e.g. cpu, cpu_avx2 or cuda_v12.4. The directory name is
// the sole source of truth for both fields.
type Variant struct {
	Library string
	Variant string
}

func (v Variant) String() string {
	if v.Variant == "" {
		return v.Library
	}
	return v.Library + "_" + v.Variant
}

func parseVariant(name string) Variant {
	lib, tag, _ := strings.Cut(name, "_")
	return Variant{Library: lib, Variant: tag}
}

// AvailableVariants scans the immediate subdirectories of base for
// variant directories, identified by the presence of the core math
// library. Unreadable or malformed entries are skipped with a
// diagnostic; the scan itself never fails.
func AvailableVariants(base string) []Variant {
	entries, err := os.ReadDir(base)
	if err != nil {
		slog.Debug("unable to scan variant directory", "base", base, "error", err)
		return nil
	}

	var variants []Variant
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		marker := filepath.Join(base, entry.Name(), libraryFile(coreLibrary))
		if _, err := os.Stat(marker); err != nil {
			slog.Debug("skipping directory without core library", "dir", entry.Name())
			continue
		}
		v := parseVariant(entry.Name())
		if v.Library == "" {
			slog.Warn("skipping malformed variant directory", "dir", entry.Name())
			continue
		}
		variants = append(variants, v)
	}
	slog.Debug("available backend variants", "base", base, "variants", variants)
	return variants
}

// RankedVariants returns the catalog variants device can use, most
// capable first.
func RankedVariants(catalog []Variant, device discover.DeviceInfo) ([]Variant, error) {
	return rankVariants(matchingVariants(catalog, device))
}

// matchingVariants filters the catalog down to what one device can use.
// A CPU device takes CPU variants at or below its instruction-set tier;
// a GPU device takes its own family's variants plus every CPU variant as
// a fallback path.
func matchingVariants(catalog []Variant, device discover.DeviceInfo) []Variant {
	var matched []Variant
	for _, v := range catalog {
		if device.Library == "cpu" {
			if v.Library == "cpu" && device.Capability >= discover.ParseCPUCapability(v.Variant) {
				matched = append(matched, v)
			}
		} else if v.Library == device.Library || v.Library == "cpu" {
			matched = append(matched, v)
		}
	}
	return matched
}

// rankVariants orders candidates most capable first: native GPU builds
// by descending version, then CPU builds by descending tier. A set
// mixing two GPU families fails with ErrMixedLibraries rather than
// producing an arbitrary order.
func rankVariants(variants []Variant) ([]Variant, error) {
	kind := ""
	for _, v := range variants {
		if v.Library == "cpu" {
			continue
		}
		if kind == "" {
			kind = v.Library
		} else if kind != v.Library {
			return nil, fmt.Errorf("%w: %s and %s", ErrMixedLibraries, kind, v.Library)
		}
	}

	ranked := slices.Clone(variants)
	slices.SortStableFunc(ranked, compareVariants)
	slices.Reverse(ranked)
	return ranked, nil
}

// compareVariants sorts ascending by capability: CPU before GPU, CPU by
// required tier, same-family GPU by version.
func compareVariants(a, b Variant) int {
	aCPU, bCPU := a.Library == "cpu", b.Library == "cpu"
	switch {
	case aCPU && !bCPU:
		return -1
	case !aCPU && bCPU:
		return 1
	case aCPU:
		return cmp.Compare(discover.ParseCPUCapability(a.Variant), discover.ParseCPUCapability(b.Variant))
	default:
		return cmp.Compare(variantVersion(a.Variant), variantVersion(b.Variant))
	}
}

// variantVersion ranks a "v<major>.<minor>" tag as major*1000+minor.
// Components that fail to parse are 0, ranking unknown tags last.
func variantVersion(tag string) int {
	var major, minor int
	fmt.Sscanf(tag, "v%d.%d", &major, &minor)
	return major*1000 + minor
}
