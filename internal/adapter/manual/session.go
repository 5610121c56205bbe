// Package manual drives operator data entry as a resumable session. Every
// answer is merged into the in-memory record as soon as it is given, so
// stopping the session at any point leaves all accepted input in place.
package manual

import (
	"strings"
	"time"

	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/normalize"
	"github.com/genericrobot77/meds-job/internal/reconcile"
)

// Control answers.
const (
	AnswerSkip = "s"
	AnswerQuit = "q"
)

// Action is the session's reaction to one answer.
type Action int

const (
	// Continue means the next question belongs to the same product.
	Continue Action = iota
	// Completed means the product was finalized.
	Completed
	// Skipped means the operator left the product for later.
	Skipped
	// Quit means the operator ended the session.
	Quit
	// Finished means there were no questions left.
	Finished
)

// Step is one question in the per-product sequence.
type Step struct {
	Number int
	Field  model.FieldKey
	Title  string
	Hints  []string
	Prompt string
	// BlankValue replaces a blank answer. Empty means a blank skips the field.
	BlankValue string
	// When reports whether the step applies to the record.
	When func(rec *model.Record) bool
}

// Steps is the per-product question sequence.
var Steps = []Step{
	{
		Number: 1, Field: model.FieldDrugBankID, Title: "DrugBank ID",
		Hints: []string{
			"Search: https://go.drugbank.com/",
			"Format: DB##### (e.g., DB17449)",
			"Note: Only for single-substance drugs, skip combinations",
		},
		Prompt: "Enter DrugBank ID (or press Enter to skip)",
	},
	{
		Number: 2, Field: model.FieldATCCodes, Title: "ATC Code(s)",
		Hints: []string{
			"Search: https://atcddd.fhi.no/atc_ddd_index/",
			"Format: D03BA03 or B06AC08 (may have multiple)",
			"Note: Very new drugs may not have ATC codes yet",
		},
		Prompt: "Enter ATC code(s), comma-separated (or press Enter)",
	},
	{
		Number: 3, Field: model.FieldATCClassification, Title: "ATC Classification",
		Hints:  []string{"Example: 'Proteolytic enzymes' or 'Drugs used in hereditary angioedema'"},
		Prompt: "Enter classification (or press Enter)",
		When: func(rec *model.Record) bool {
			return len(rec.Field(model.FieldATCCodes).List) > 0
		},
	},
	{
		Number: 4, Field: model.FieldPregnancyCategoryAU, Title: "Pregnancy Category (Australian TGA)",
		Hints: []string{
			"Search: https://www.tga.gov.au/prescribing-medicines-pregnancy-database",
			"Categories: A, B1, B2, B3, C, D, X",
		},
		Prompt: "Enter category (or press Enter to skip)",
	},
	{
		Number: 5, Field: model.FieldPregnancyCategoryFDA, Title: "Pregnancy Category (FDA)",
		Hints:  []string{"Note: FDA doesn't use letter categories since 2015"},
		Prompt: "Enter category (or press Enter to skip)",
	},
	{
		Number: 6, Field: model.FieldBeersCriteria, Title: "Beers Criteria",
		Hints: []string{
			"American Geriatrics Society Beers Criteria",
			"Options: 'Listed', 'Not listed' (most new drugs aren't)",
		},
		Prompt:     "Enter status (default: Not listed)",
		BlankValue: "Not listed",
	},
	{
		Number: 7, Field: model.FieldSingleSubstance, Title: "Single Substance Drug?",
		Hints:  []string{"Single substance = pure drug, Combination = multiple active ingredients"},
		Prompt: "Single substance? (Y/N)",
		When: func(rec *model.Record) bool {
			return rec.Field(model.FieldSingleSubstance).Flag == nil
		},
	},
	{
		Number: 8, Field: model.FieldClinicalNotes, Title: "Clinical Notes",
		Hints:  []string{"Brief description: drug class, indication, brand name"},
		Prompt: "Enter notes (or press Enter to skip)",
	},
}

// Question is the next prompt to show.
type Question struct {
	Record  *model.Record
	Product int // 1-based
	Total   int
	Step    Step
	Spec    *model.FieldSpec
	Current model.FieldValue
}

// Summary reports session progress.
type Summary struct {
	Total     int  `json:"total"`
	Completed int  `json:"completed"`
	Skipped   int  `json:"skipped"`
	Quit      bool `json:"quit"`
}

// Session holds the position in the product queue and the question
// sequence.
type Session struct {
	fields  *model.FieldRegistry
	merger  *reconcile.Merger
	queue   []*model.Record
	product int
	step    int
	now     func() time.Time
	summary Summary
	kept    *model.FieldDecision
}

// NewSession queues the unfinalized records of concepts with the "new"
// status, in listing order. Concepts without a record are created.
func NewSession(doc *model.Document, concepts []model.Concept, fields *model.FieldRegistry, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	s := &Session{fields: fields, merger: reconcile.NewMerger(fields), now: now}
	for _, c := range model.NewConcepts(concepts) {
		rec, _ := doc.CreateIfAbsent(c, fields)
		if !rec.Finalized() {
			s.queue = append(s.queue, rec)
		}
	}
	s.summary.Total = len(s.queue)
	return s
}

// Next returns the pending question, or false when the session is over.
func (s *Session) Next() (Question, bool) {
	for !s.Done() {
		rec := s.queue[s.product]
		if s.step >= len(Steps) {
			s.complete(rec)
			continue
		}
		st := Steps[s.step]
		spec := s.fields.ByKey(st.Field)
		if spec == nil || (st.When != nil && !st.When(rec)) {
			s.step++
			continue
		}
		return Question{
			Record:  rec,
			Product: s.product + 1,
			Total:   len(s.queue),
			Step:    st,
			Spec:    spec,
			Current: rec.Field(st.Field),
		}, true
	}
	return Question{}, false
}

// Answer applies input to the pending question.
func (s *Session) Answer(input string) Action {
	q, ok := s.Next()
	if !ok {
		return Finished
	}
	input = strings.TrimSpace(input)
	s.kept = nil

	switch strings.ToLower(input) {
	case AnswerQuit:
		s.Quit()
		return Quit
	case AnswerSkip:
		s.summary.Skipped++
		s.advanceProduct()
		return Skipped
	}

	if input == "" {
		input = q.Step.BlankValue
	}
	if v, ok := parse(q.Step.Field, input); ok {
		res := s.merger.Merge(q.Record, model.Candidates{
			Source: model.SourceManual,
			Fields: map[model.FieldKey]model.FieldValue{q.Step.Field: v},
		})
		if rejected := res.Rejected(); len(rejected) > 0 {
			s.kept = &rejected[0]
		}
	}

	product := s.product
	s.step++
	if _, more := s.Next(); !more || s.product != product {
		return Completed
	}
	return Continue
}

// Kept returns the decision for the last answer when the merge kept the
// existing value instead.
func (s *Session) Kept() (model.FieldDecision, bool) {
	if s.kept == nil {
		return model.FieldDecision{}, false
	}
	return *s.kept, true
}

// Quit ends the session. Answers already given stay merged.
func (s *Session) Quit() {
	s.summary.Quit = true
	s.product = len(s.queue)
}

// Done reports whether the session has no questions left.
func (s *Session) Done() bool {
	return s.product >= len(s.queue)
}

// Summary returns the session progress so far.
func (s *Session) Summary() Summary {
	return s.summary
}

func (s *Session) complete(rec *model.Record) {
	s.merger.Merge(rec, model.Candidates{
		Source:         model.SourceManual,
		ResearchedDate: s.now().Format(time.DateOnly),
	})
	s.summary.Completed++
	s.advanceProduct()
}

func (s *Session) advanceProduct() {
	s.product++
	s.step = 0
}

// parse converts an operator answer to a field value at full confidence.
func parse(key model.FieldKey, input string) (model.FieldValue, bool) {
	if input == "" {
		return model.FieldValue{}, false
	}
	switch key {
	case model.FieldATCCodes:
		codes := normalize.List(strings.Split(input, ","))
		if len(codes) == 0 {
			return model.FieldValue{}, false
		}
		return model.ListValue(codes, model.MaxConfidence), true
	case model.FieldSingleSubstance:
		switch strings.ToUpper(input) {
		case "Y":
			return model.FlagValue(true, model.MaxConfidence), true
		case "N":
			return model.FlagValue(false, model.MaxConfidence), true
		}
		return model.FieldValue{}, false
	default:
		return model.TextValue(input, model.MaxConfidence), true
	}
}
