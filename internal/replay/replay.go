package replay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vincentbai/formtrack/internal/datalayer"
	"github.com/vincentbai/formtrack/internal/dom"
	"github.com/vincentbai/formtrack/internal/emitter"
	"github.com/vincentbai/formtrack/internal/tracker"
)

// Runner replays scripts against freshly parsed documents.
type Runner struct {
	Logger      *slog.Logger
	EmitterOpts []emitter.Option
}

// Run loads the script's page, attaches a tracker that emits into queue and
// applies each step. It stops at the first failing step or when ctx is done.
func (r *Runner) Run(ctx context.Context, script Script, queue datalayer.Queue) error {
	if err := script.Validate(); err != nil {
		return err
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	loc, err := dom.NewLocation(script.URL)
	if err != nil {
		return err
	}
	doc, err := dom.ParseString(script.HTML, loc)
	if err != nil {
		return err
	}

	t := tracker.New(loc, emitter.New(queue, loc, logger, r.EmitterOpts...), logger)
	watcher := t.Attach(doc)
	defer watcher.Stop()

	for i, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := apply(doc, step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		logger.Debug("replay step applied", "index", i, "action", step.Action)
	}
	return nil
}

func apply(doc *dom.Document, step Step) error {
	switch step.Action {
	case ActionSet:
		field, err := findField(doc, step.Form, step.Field)
		if err != nil {
			return err
		}
		field.SetValue(step.Value)
		field.Dispatch("change")
	case ActionCheck:
		field, err := findField(doc, step.Form, step.Field)
		if err != nil {
			return err
		}
		field.SetChecked(step.Checked)
		field.Dispatch("change")
	case ActionSubmit:
		form := doc.ElementByID(step.Form)
		if !form.Is("form") {
			return fmt.Errorf("%w: form %q", ErrUnknownTarget, step.Form)
		}
		form.Dispatch("submit")
	case ActionInsert:
		parent := doc.Body()
		if step.Parent != "" {
			parent = doc.ElementByID(step.Parent)
		}
		if parent == nil {
			return fmt.Errorf("%w: parent %q", ErrUnknownTarget, step.Parent)
		}
		nodes, err := doc.ParseFragment(step.HTML)
		if err != nil {
			return err
		}
		for _, node := range nodes {
			if err := parent.AppendChild(node); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidStep, step.Action)
	}
	return nil
}

func findField(doc *dom.Document, formID, name string) (*dom.Element, error) {
	scope := doc.Body()
	if formID != "" {
		scope = doc.ElementByID(formID)
		if !scope.Is("form") {
			return nil, fmt.Errorf("%w: form %q", ErrUnknownTarget, formID)
		}
	}
	for _, field := range scope.Find(tracker.FieldTags...) {
		if n, _ := field.Attr("name"); n == name {
			return field, nil
		}
	}
	return nil, fmt.Errorf("%w: field %q", ErrUnknownTarget, name)
}
