package adapter

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/normalize"
)

// Response maps a concept code to its partial field map.
type Response map[string]map[string]any

// researchKey nests fields in the persisted record shape.
const researchKey = "research"

// ParseResponse decodes a source reply. The reply may be wrapped in Markdown
// code fences or surrounded by prose; the outermost JSON object is used.
// Entries shaped like persisted records have their research object
// flattened. Any decode failure wraps ErrMalformed.
func ParseResponse(text string) (Response, error) {
	body := ExtractJSON(text)
	if body == "" {
		return nil, eris.Wrap(ErrMalformed, "adapter: empty response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, eris.Wrapf(ErrMalformed, "adapter: decode response: %v", err)
	}

	out := make(Response, len(raw))
	for code, msg := range raw {
		var entry map[string]any
		d := json.NewDecoder(bytes.NewReader(msg))
		d.UseNumber()
		if err := d.Decode(&entry); err != nil {
			return nil, eris.Wrapf(ErrMalformed, "adapter: entry %s is not an object", code)
		}
		out[strings.TrimSpace(code)] = flatten(entry)
	}
	return out, nil
}

func flatten(entry map[string]any) map[string]any {
	nested, ok := entry[researchKey].(map[string]any)
	if !ok {
		return entry
	}
	out := make(map[string]any, len(entry)+len(nested))
	for k, v := range entry {
		if k != researchKey {
			out[k] = v
		}
	}
	for k, v := range nested {
		out[k] = v
	}
	return out
}

// ExtractJSON strips Markdown code fences and returns the text between the
// first '{' and the last '}'.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}

// Results converts a parsed response into one result per concept. Concepts
// absent from the response get NoData. Response codes outside the batch are
// logged and ignored.
func Results(fields *model.FieldRegistry, src model.Source, concepts []model.Concept, resp Response) []Result {
	requested := make(map[string]bool, len(concepts))
	out := make([]Result, len(concepts))
	for i, c := range concepts {
		requested[c.ID] = true
		out[i] = resultFor(fields, src, c.ID, resp[c.ID])
	}
	for code := range resp {
		if !requested[code] {
			zap.L().Warn("adapter: response for unrequested concept",
				zap.String("source", string(src)),
				zap.String("concept_id", code),
			)
		}
	}
	return out
}

func resultFor(fields *model.FieldRegistry, src model.Source, code string, raw map[string]any) Result {
	cands, unknown := normalize.NormalizeFields(fields, src, raw)
	res := Result{ConceptID: code, Outcome: NoData, Candidates: cands, Unknown: unknown}
	if !cands.IsEmpty() {
		res.Outcome = Found
	}
	if len(unknown) > 0 {
		zap.L().Debug("adapter: unknown response keys",
			zap.String("source", string(src)),
			zap.String("concept_id", code),
			zap.Strings("keys", unknown),
		)
	}
	return res
}
