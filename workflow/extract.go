package workflow

import (
	"context"
	"log/slog"
	"strings"

	"blindmark/watermark"
)

// ExtractInput holds the extract panel's inputs
type ExtractInput struct {
	ImagePath string
	Length    string
}

// ExtractWorkflow recovers watermark text from an image given its bit-length
type ExtractWorkflow struct {
	runner *Runner[*watermark.ExtractResponse]
	svc    Service
	gate   Gate

	input ExtractInput
	text  string
}

// NewExtractWorkflow creates an extract workflow whose length input follows link
func NewExtractWorkflow(svc Service, link *LengthLink, messages Messages, logger *slog.Logger) *ExtractWorkflow {
	w := &ExtractWorkflow{
		runner: NewRunner[*watermark.ExtractResponse]("extract", messages.ExtractProgress, messages, logger),
		svc:    svc,
		gate:   Gate{Message: messages.ExtractRequired},
	}
	if link != nil {
		link.Subscribe(w.SetLength)
	}
	return w
}

// Input returns the current inputs
func (w *ExtractWorkflow) Input() ExtractInput { return w.input }

// SetImagePath sets the image file input
func (w *ExtractWorkflow) SetImagePath(path string) { w.input.ImagePath = path }

// SetLength overwrites the length input
func (w *ExtractWorkflow) SetLength(length string) { w.input.Length = length }

// State returns the workflow state
func (w *ExtractWorkflow) State() State { return w.runner.State() }

// Text returns the extracted text; it is only meaningful while Succeeded
func (w *ExtractWorkflow) Text() string { return w.text }

// Begin validates the inputs and, if valid, returns the pending request
func (w *ExtractWorkflow) Begin() (*Pending[*watermark.ExtractResponse], error) {
	if w.runner.State().Busy() {
		return nil, ErrBusy
	}
	w.text = ""

	in := w.input
	var file *watermark.File

	check := func() error {
		if err := w.gate.Validate(Field{"image", in.ImagePath}, Field{"wm_length", in.Length}); err != nil {
			return err
		}
		f, err := watermark.LoadFile(in.ImagePath)
		if err != nil {
			return &ValidationError{Field: "image", Message: err.Error()}
		}
		file = f
		return nil
	}

	call := func(ctx context.Context) (*watermark.ExtractResponse, error) {
		return w.svc.Extract(ctx, &watermark.ExtractRequest{File: file, Length: strings.TrimSpace(in.Length)})
	}

	return w.runner.Begin(check, call)
}

// Finish applies a request outcome
func (w *ExtractWorkflow) Finish(p *Pending[*watermark.ExtractResponse], out Outcome[*watermark.ExtractResponse]) bool {
	return w.runner.Finish(p, out, func(resp *watermark.ExtractResponse) {
		w.text = resp.ExtractedText
	})
}

// Run performs a whole attempt synchronously
func (w *ExtractWorkflow) Run(ctx context.Context) (State, error) {
	p, err := w.Begin()
	if err != nil {
		return w.State(), err
	}
	if p != nil {
		w.Finish(p, p.Do(ctx))
	}
	return w.State(), nil
}
