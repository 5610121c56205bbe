package manual

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

const rule = "----------------------------------------------------------------------"

// Run asks the session's questions on out and reads answers line by line
// from in. End of input quits the session like 'q'. The onProduct callback,
// when set, runs after each completed or skipped product so the caller can
// checkpoint.
func Run(s *Session, in io.Reader, out io.Writer, onProduct func() error) (Summary, error) {
	scanner := bufio.NewScanner(in)
	w := &errWriter{w: out}

	if s.Summary().Total == 0 {
		w.printf("\nAll products have been researched!\n")
		return s.Summary(), w.err
	}

	w.printf("\nFound %d products to research\n", s.Summary().Total)
	w.printf("  - Press Enter to skip a field\n")
	w.printf("  - Type '%s' to skip this product and come back later\n", AnswerSkip)
	w.printf("  - Type '%s' to quit and save progress\n", AnswerQuit)

	lastProduct := 0
	for {
		q, ok := s.Next()
		if !ok {
			break
		}
		if q.Product != lastProduct {
			lastProduct = q.Product
			w.printf("\n[%d/%d] %s\nSNOMED: %s\n%s\n", q.Product, q.Total, q.Record.PreferredTerm, q.Record.ConceptID, rule)
		}
		w.printf("\n%d. %s\n", q.Step.Number, q.Step.Title)
		for _, h := range q.Step.Hints {
			w.printf("   %s\n", h)
		}
		if !q.Current.IsEmpty() {
			w.printf("   Current: %s (confidence %d)\n", q.Current.Display(q.Spec.Shape, ", "), q.Current.Confidence)
		}
		w.printf("   %s: ", q.Step.Prompt)
		if w.err != nil {
			return s.Summary(), w.err
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				s.Quit()
				return s.Summary(), eris.Wrap(err, "manual: read answer")
			}
			s.Quit()
			break
		}

		action := s.Answer(scanner.Text())
		if d, kept := s.Kept(); kept {
			w.printf("   Kept existing value (confidence %d)\n", d.PreviousConfidence)
		}
		switch action {
		case Completed:
			w.printf("\nResearch saved for %s\n", q.Record.PreferredTerm)
			if err := checkpoint(onProduct); err != nil {
				return s.Summary(), err
			}
		case Skipped:
			if err := checkpoint(onProduct); err != nil {
				return s.Summary(), err
			}
		}
	}

	sum := s.Summary()
	w.printf("\n%s\nResearched: %d/%d products\n", strings.Repeat("=", len(rule)), sum.Completed, sum.Total)
	return sum, w.err
}

func checkpoint(fn func() error) error {
	if fn == nil {
		return nil
	}
	return eris.Wrap(fn(), "manual: checkpoint")
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
