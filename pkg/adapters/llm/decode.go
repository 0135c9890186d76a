package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/arbor/pkg/domain"
)

// decodeJSON decodes a model answer into out. Markdown code fences around the object are
// tolerated. Any failure is reported as domain.ErrInvalidOutput.
func decodeJSON(text string, out any) error {
	raw := map[string]any{}
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidOutput, err)
	}
	return decodeMap(raw, out)
}

func decodeMap(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidOutput, err)
	}
	return nil
}

func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "```"))
}
