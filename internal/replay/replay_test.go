package replay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/vincentbai/formtrack/internal/datalayer"
	"github.com/vincentbai/formtrack/internal/emitter"
	"github.com/vincentbai/formtrack/internal/models"
)

func newTestRunner() *Runner {
	return &Runner{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		EmitterOpts: []emitter.Option{
			emitter.WithClock(func() time.Time { return time.Unix(1234567890, 0) }),
		},
	}
}

func TestLoadContactScript(t *testing.T) {
	script, err := Load(filepath.Join("testdata", "contact.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	dl := datalayer.New()
	if err := newTestRunner().Run(context.Background(), script, dl); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	events := dl.Events()
	want := []string{
		models.EventFormStart,
		models.EventFieldInteraction,
		models.EventFieldInteraction,
		models.EventFieldInteraction,
		models.EventFormSubmit,
		models.EventFormStart,
		models.EventFieldInteraction,
	}
	if len(events) != len(want) {
		t.Fatalf("Expected %d events, got %d: %v", len(want), len(events), events)
	}
	for i, name := range want {
		if events[i].Name() != name {
			t.Errorf("Event %d: got %s, want %s", i, events[i].Name(), name)
		}
	}

	if events[3]["field"] != "subscribe" || events[3]["value"] != "on" {
		t.Errorf("Unexpected checkbox interaction %v", events[3])
	}
	data := events[4]["data"].(map[string]string)
	if data["email"] != "c@d.com" || data["subscribe"] != "on" {
		t.Errorf("Unexpected submit data %v", data)
	}
	if events[0].Path() != "/contact-us" || events[0].Timestamp() != "2009-02-13T23:31:30.000Z" {
		t.Errorf("Unexpected tagging %v", events[0])
	}
	if events[6]["field"] != "code" || events[6]["count"] != 1 {
		t.Errorf("Unexpected inserted form interaction %v", events[6])
	}
}

func TestParseJSONScript(t *testing.T) {
	script, err := Parse([]byte(`{"url": "/a", "html": "<form id=f></form>", "steps": [{"action": "submit", "form": "f"}]}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(script.Steps) != 1 || script.Steps[0].Action != ActionSubmit {
		t.Errorf("Unexpected script %+v", script)
	}
}

func TestParseRejectsInvalidSteps(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown action", "steps:\n  - action: hover\n"},
		{"set without field", "steps:\n  - action: set\n    value: x\n"},
		{"submit without form", "steps:\n  - action: submit\n"},
		{"insert without html", "steps:\n  - action: insert\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if !errors.Is(err, ErrInvalidStep) {
				t.Errorf("Expected ErrInvalidStep, got %v", err)
			}
		})
	}

	if _, err := Parse([]byte("steps: [")); err == nil {
		t.Error("Expected YAML syntax error")
	}
}

func TestRunUnknownTargets(t *testing.T) {
	page := `<html><body><form id="f"><input name="a"></form><div id="d"></div></body></html>`
	tests := []struct {
		name string
		step Step
	}{
		{"missing form", Step{Action: ActionSubmit, Form: "nope"}},
		{"id is not a form", Step{Action: ActionSubmit, Form: "d"}},
		{"missing field", Step{Action: ActionSet, Form: "f", Field: "zzz"}},
		{"missing parent", Step{Action: ActionInsert, Parent: "nope", HTML: "<p></p>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := Script{URL: "/p", HTML: page, Steps: []Step{tt.step}}
			err := newTestRunner().Run(context.Background(), script, datalayer.New())
			if !errors.Is(err, ErrUnknownTarget) {
				t.Errorf("Expected ErrUnknownTarget, got %v", err)
			}
		})
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	script := Script{URL: "/p", HTML: `<form id="f"></form>`, Steps: []Step{{Action: ActionSubmit, Form: "f"}}}
	dl := datalayer.New()
	err := newTestRunner().Run(ctx, script, dl)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if dl.Len() != 0 {
		t.Errorf("Expected no events, got %d", dl.Len())
	}
}

func TestRunWithoutQueue(t *testing.T) {
	script := Script{URL: "/p", HTML: `<form id="f"><input name="a"></form>`, Steps: []Step{
		{Action: ActionSet, Form: "f", Field: "a", Value: "x"},
		{Action: ActionSubmit, Form: "f"},
	}}

	if err := newTestRunner().Run(context.Background(), script, nil); err != nil {
		t.Errorf("Expected a missing data layer to be non-fatal, got %v", err)
	}
}
