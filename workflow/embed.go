package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"blindmark/watermark"
)

// Service is the remote watermark API as seen by the workflows
type Service interface {
	Embed(ctx context.Context, req *watermark.EmbedRequest) (*watermark.EmbedResponse, error)
	Extract(ctx context.Context, req *watermark.ExtractRequest) (*watermark.ExtractResponse, error)
	ResolveURL(ref string) string
}

// EmbedInput holds the embed panel's inputs
type EmbedInput struct {
	ImagePath string
	Text      string
}

// EmbedView is what the embed result container shows after a success
type EmbedView struct {
	Message string

	// Length is the exact value published to the extract workflow
	Length string

	// Locator is processed_image_url as returned by the service
	Locator string

	PreviewURL   string
	DownloadURL  string
	DownloadName string

	SourceName string
	Text       string
}

// EmbedWorkflow embeds a text watermark into an image
type EmbedWorkflow struct {
	runner   *Runner[*watermark.EmbedResponse]
	svc      Service
	link     *LengthLink
	gate     Gate
	messages Messages

	input EmbedInput
	sent  EmbedInput
	view  EmbedView
}

// NewEmbedWorkflow creates an embed workflow that publishes lengths on link
func NewEmbedWorkflow(svc Service, link *LengthLink, messages Messages, logger *slog.Logger) *EmbedWorkflow {
	return &EmbedWorkflow{
		runner:   NewRunner[*watermark.EmbedResponse]("embed", messages.EmbedProgress, messages, logger),
		svc:      svc,
		link:     link,
		gate:     Gate{Message: messages.EmbedRequired},
		messages: messages,
	}
}

// Input returns the current inputs
func (w *EmbedWorkflow) Input() EmbedInput { return w.input }

// SetImagePath sets the image file input
func (w *EmbedWorkflow) SetImagePath(path string) { w.input.ImagePath = path }

// SetText sets the watermark text input
func (w *EmbedWorkflow) SetText(text string) { w.input.Text = text }

// State returns the workflow state
func (w *EmbedWorkflow) State() State { return w.runner.State() }

// View returns the result presentation; it is only meaningful while Succeeded
func (w *EmbedWorkflow) View() EmbedView { return w.view }

// Begin validates the inputs and, if valid, returns the pending request
func (w *EmbedWorkflow) Begin() (*Pending[*watermark.EmbedResponse], error) {
	if w.runner.State().Busy() {
		return nil, ErrBusy
	}
	w.view = EmbedView{}

	in := w.input
	w.sent = in
	var file *watermark.File

	check := func() error {
		if err := w.gate.Validate(Field{"image", in.ImagePath}, Field{"watermark_text", in.Text}); err != nil {
			return err
		}
		f, err := watermark.LoadFile(in.ImagePath)
		if err != nil {
			return &ValidationError{Field: "image", Message: err.Error()}
		}
		file = f
		return nil
	}

	call := func(ctx context.Context) (*watermark.EmbedResponse, error) {
		return w.svc.Embed(ctx, &watermark.EmbedRequest{File: file, Text: in.Text})
	}

	return w.runner.Begin(check, call)
}

// Finish applies a request outcome
func (w *EmbedWorkflow) Finish(p *Pending[*watermark.EmbedResponse], out Outcome[*watermark.EmbedResponse]) bool {
	return w.runner.Finish(p, out, func(resp *watermark.EmbedResponse) {
		w.present(resp)
	})
}

// Run performs a whole attempt synchronously
func (w *EmbedWorkflow) Run(ctx context.Context) (State, error) {
	p, err := w.Begin()
	if err != nil {
		return w.State(), err
	}
	if p != nil {
		w.Finish(p, p.Do(ctx))
	}
	return w.State(), nil
}

func (w *EmbedWorkflow) present(resp *watermark.EmbedResponse) {
	length := strconv.Itoa(resp.Length)
	resolved := w.svc.ResolveURL(resp.ProcessedImageURL)

	w.view = EmbedView{
		Message:      fmt.Sprintf(w.messages.EmbedSuccess, length),
		Length:       length,
		Locator:      resp.ProcessedImageURL,
		PreviewURL:   resolved,
		DownloadURL:  resolved,
		DownloadName: watermark.DownloadName(resp.ProcessedImageURL),
		SourceName:   filepath.Base(w.sent.ImagePath),
		Text:         w.sent.Text,
	}

	if w.link != nil {
		w.link.Publish(length)
	}
}
