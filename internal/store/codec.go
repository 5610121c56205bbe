package store

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/normalize"
)

// Record-level document keys.
const (
	keyPreferredTerm = "preferred_term"
	keyConceptID     = "concept_ID"
	keyURI           = "SNOMED_uri"
	keyStatus        = "status"
	keyResearch      = "research"
)

// Decode parses a research document. Missing confidences are back-filled,
// legacy value shapes are coerced and unrecognized keys are retained.
func Decode(data []byte, fields *model.FieldRegistry) (*model.Document, error) {
	doc := model.NewDocument()
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, eris.Wrap(ErrCorrupt, err.Error())
	}

	for code, raw := range top {
		rec, err := decodeRecord(code, raw, fields)
		if err != nil {
			return nil, eris.Wrapf(err, "store: decode record %s", code)
		}
		doc.Records[code] = rec
	}
	return doc, nil
}

func decodeRecord(code string, raw json.RawMessage, fields *model.FieldRegistry) (*model.Record, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	rec := &model.Record{
		ConceptID: code,
		Fields:    make(map[model.FieldKey]model.FieldValue, fields.Len()),
	}
	for key, v := range obj {
		switch key {
		case keyPreferredTerm:
			rec.PreferredTerm = decodeText(v)
		case keyConceptID:
			if id := decodeText(v); id != "" {
				rec.ConceptID = id
			}
		case keyURI:
			rec.URI = decodeText(v)
		case keyStatus:
			rec.Status = decodeText(v)
		case keyResearch:
			// handled below
		default:
			if rec.Extra == nil {
				rec.Extra = make(map[string]json.RawMessage)
			}
			rec.Extra[key] = v
		}
	}

	research := map[string]json.RawMessage{}
	if v, ok := obj[keyResearch]; ok && !isNull(v) {
		research, err = decodeObject(v)
		if err != nil {
			return nil, eris.Wrap(err, "research")
		}
	}

	known := map[string]bool{
		model.KeyAutoLookupAttempted: true,
		model.KeyResearchedDate:      true,
	}
	for _, spec := range fields.Fields {
		known[string(spec.Key)] = true
		known[spec.ConfidenceKey()] = true

		value := decodeAny(research[string(spec.Key)])
		conf, hasConf := research[spec.ConfidenceKey()]
		if hasConf && isNull(conf) {
			hasConf = false
		}
		rec.Fields[spec.Key] = normalize.NormalizeWithConfidence(&spec, value, decodeAny(conf), hasConf)
	}

	if v, ok := research[model.KeyAutoLookupAttempted]; ok {
		rec.AutoLookupAttempted, _ = normalize.Flag(decodeAny(v))
	}
	rec.ResearchedDate = decodeText(research[model.KeyResearchedDate])

	for key, v := range research {
		if known[key] {
			continue
		}
		if rec.ResearchExtra == nil {
			rec.ResearchExtra = make(map[string]json.RawMessage)
		}
		rec.ResearchExtra[key] = v
	}
	return rec, nil
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, eris.Wrap(ErrCorrupt, err.Error())
	}
	if obj == nil {
		return nil, eris.Wrap(ErrCorrupt, "expected an object")
	}
	return obj, nil
}

func decodeAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

func decodeText(raw json.RawMessage) string {
	return normalize.Text(decodeAny(raw))
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// Encode serializes doc with sorted keys and two-space indentation.
// Non-ASCII text is written as-is.
func Encode(doc *model.Document, fields *model.FieldRegistry) ([]byte, error) {
	top := make(map[string]any, doc.Len())
	for code, rec := range doc.Records {
		top[code] = EncodeRecord(rec, fields)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(top); err != nil {
		return nil, eris.Wrap(err, "store: encode document")
	}
	return buf.Bytes(), nil
}

// EncodeRecord returns the document form of one record.
func EncodeRecord(rec *model.Record, fields *model.FieldRegistry) map[string]any {
	research := make(map[string]any, 2*fields.Len()+2+len(rec.ResearchExtra))
	for k, v := range rec.ResearchExtra {
		research[k] = v
	}
	for _, spec := range fields.Fields {
		v := rec.Field(spec.Key)
		research[string(spec.Key)] = v.Interface(spec.Shape)
		research[spec.ConfidenceKey()] = v.Confidence
	}
	research[model.KeyAutoLookupAttempted] = rec.AutoLookupAttempted
	research[model.KeyResearchedDate] = rec.ResearchedDate

	out := make(map[string]any, 5+len(rec.Extra))
	for k, v := range rec.Extra {
		out[k] = v
	}
	out[keyPreferredTerm] = rec.PreferredTerm
	out[keyConceptID] = rec.ConceptID
	out[keyURI] = rec.URI
	out[keyStatus] = rec.Status
	out[keyResearch] = research
	return out
}
