package surface

import (
	"encoding/json"
	"io"

	"github.com/socialweight/socialweight/pkg/scoring"
)

// JSONRenderer marshals reports to indented JSON.
type JSONRenderer struct{}

type jsonReport struct {
	*Report
	CacheAgeSeconds *int64 `json:"cacheAgeSeconds,omitempty"`
}

func (r *JSONRenderer) Render(w io.Writer, rep *Report) error {
	out := jsonReport{Report: rep}
	if rep.Cached {
		age := int64(rep.CacheAge.Seconds())
		out.CacheAgeSeconds = &age
	}
	return encode(w, out)
}

func (r *JSONRenderer) RenderTiers(w io.Writer, tiers scoring.Tiers) error {
	return encode(w, map[string]any{"tiers": tiers})
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
