// Package knowledgegraph resolves concepts against Wikidata by SNOMED CT
// code, falling back to an English label match.
package knowledgegraph

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/genericrobot77/meds-job/internal/adapter"
	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/normalize"
	"github.com/genericrobot77/meds-job/pkg/wikidata"
)

// Confidence assigned by match kind.
const (
	ConfidenceCodeMatch      = 100
	ConfidenceLabelMatch     = 90
	ConfidenceAmbiguousLabel = 60
)

const drugBankPrefix = "DB"

// Config holds adapter settings.
type Config struct {
	Timeout time.Duration
	// LabelFallback enables the label query when the code finds nothing.
	LabelFallback bool
}

// Adapter implements adapter.Source over a Wikidata client.
type Adapter struct {
	client wikidata.Client
	fields *model.FieldRegistry
	cfg    Config
}

// New creates a knowledge-graph adapter.
func New(client wikidata.Client, fields *model.FieldRegistry, cfg Config) *Adapter {
	return &Adapter{client: client, fields: fields, cfg: cfg}
}

// Name implements adapter.Source.
func (a *Adapter) Name() model.Source { return model.SourceKnowledgeGraph }

// Lookup queries each concept in turn.
func (a *Adapter) Lookup(ctx context.Context, concepts []model.Concept) ([]adapter.Result, error) {
	out := make([]adapter.Result, 0, len(concepts))
	for _, c := range concepts {
		if err := ctx.Err(); err != nil {
			return out, eris.Wrap(err, "knowledgegraph: lookup cancelled")
		}
		out = append(out, a.lookupOne(ctx, c))
	}
	return out, nil
}

func (a *Adapter) lookupOne(ctx context.Context, c model.Concept) adapter.Result {
	callCtx, cancel := adapter.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	entity, confidence, err := a.resolve(callCtx, c)
	if err != nil {
		zap.L().Warn("knowledgegraph: lookup failed",
			zap.String("concept_id", c.ID),
			zap.Error(err),
		)
		return adapter.FailAll(a.Name(), []model.Concept{c}, err)[0]
	}
	if entity == nil {
		return adapter.Results(a.fields, a.Name(), []model.Concept{c}, nil)[0]
	}

	resp := adapter.Response{c.ID: Fields(*entity, confidence)}
	return adapter.Results(a.fields, a.Name(), []model.Concept{c}, resp)[0]
}

// resolve returns the best entity for c and the confidence of the match.
func (a *Adapter) resolve(ctx context.Context, c model.Concept) (*wikidata.Entity, int, error) {
	entities, err := a.client.BySNOMED(ctx, c.ID)
	if err != nil {
		return nil, 0, classify(err)
	}
	if len(entities) > 0 {
		return &entities[0], ConfidenceCodeMatch, nil
	}
	if !a.cfg.LabelFallback || strings.TrimSpace(c.PreferredTerm) == "" {
		return nil, 0, nil
	}

	entities, err = a.client.ByLabel(ctx, c.PreferredTerm)
	if err != nil {
		return nil, 0, classify(err)
	}
	return pickByLabel(entities, c.PreferredTerm)
}

func pickByLabel(entities []wikidata.Entity, label string) (*wikidata.Entity, int, error) {
	switch len(entities) {
	case 0:
		return nil, 0, nil
	case 1:
		return &entities[0], ConfidenceLabelMatch, nil
	}
	want := normalize.Label(label)
	for i := range entities {
		if normalize.Label(entities[i].Label) == want && len(entities[i].DrugBankID) > 0 {
			return &entities[i], ConfidenceAmbiguousLabel, nil
		}
	}
	return &entities[0], ConfidenceAmbiguousLabel, nil
}

func classify(err error) error {
	if eris.Is(err, wikidata.ErrDecode) {
		return eris.Wrap(adapter.ErrMalformed, err.Error())
	}
	return eris.Wrap(adapter.ErrUnavailable, err.Error())
}

// Fields renders an entity as a structured field map at confidence.
func Fields(e wikidata.Entity, confidence int) map[string]any {
	pair := func(v any) map[string]any {
		return map[string]any{"value": v, "confidence": confidence}
	}
	out := map[string]any{
		string(model.FieldWikidataURI): pair(e.URI),
	}
	if len(e.DrugBankID) > 0 {
		out[string(model.FieldDrugBankID)] = pair(DrugBankID(e.DrugBankID[0]))
	}
	if len(e.ATCCodes) > 0 {
		out[string(model.FieldATCCodes)] = pair(e.ATCCodes)
	}
	if len(e.RxNorm) > 0 {
		out[string(model.FieldRxNormCodes)] = pair(e.RxNorm)
	}
	return out
}

// DrugBankID adds the "DB" prefix to the bare digits Wikidata stores.
func DrugBankID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(strings.ToUpper(id), drugBankPrefix) {
		return id
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return id
		}
	}
	return drugBankPrefix + id
}
