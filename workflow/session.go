package workflow

import (
	"context"
	"log/slog"

	"blindmark/watermark"
)

// Name identifies a workflow
type Name string

const (
	EmbedName   Name = "embed"
	ExtractName Name = "extract"
)

// Panel and nav control ids registered with the session's Tabs
const (
	PanelEmbed   = "embed"
	PanelExtract = "extract"
	PanelHistory = "history"

	NavEmbed   = "nav-embed"
	NavExtract = "nav-extract"
	NavHistory = "nav-history"
)

// Session ties the tabs and both workflows to one pair of shared loading and error surfaces.
// Only one request runs at a time across the session.
type Session struct {
	Tabs    *Tabs
	Embed   *EmbedWorkflow
	Extract *ExtractWorkflow
	Link    *LengthLink

	messages Messages
	current  Name
}

type sessionOptions struct {
	messages Messages
	logger   *slog.Logger
}

// Option configures a Session
type Option func(*sessionOptions)

// WithMessages selects the message catalog
func WithMessages(m Messages) Option {
	return func(o *sessionOptions) {
		o.messages = m
	}
}

// WithLogger sets the logger shared by both workflows
func WithLogger(logger *slog.Logger) Option {
	return func(o *sessionOptions) {
		o.logger = logger
	}
}

// NewSession wires both workflows to svc and shows the embed panel
func NewSession(svc Service, opts ...Option) *Session {
	o := sessionOptions{messages: English}
	for _, opt := range opts {
		opt(&o)
	}

	link := &LengthLink{}
	s := &Session{
		Tabs: NewTabs(
			[]string{PanelEmbed, PanelExtract, PanelHistory},
			[]string{NavEmbed, NavExtract, NavHistory},
		),
		Embed:    NewEmbedWorkflow(svc, link, o.messages, o.logger),
		Extract:  NewExtractWorkflow(svc, link, o.messages, o.logger),
		Link:     link,
		messages: o.messages,
	}
	s.Tabs.Switch(NavEmbed, PanelEmbed)
	return s
}

// Messages returns the session's catalog
func (s *Session) Messages() Messages {
	return s.messages
}

// Current returns the most recently triggered workflow, or "" if none
func (s *Session) Current() Name {
	return s.current
}

// Busy reports whether either workflow has a request in flight
func (s *Session) Busy() bool {
	return s.Embed.State().Busy() || s.Extract.State().Busy()
}

// BeginEmbed triggers the embed workflow
func (s *Session) BeginEmbed() (*Pending[*watermark.EmbedResponse], error) {
	if s.Busy() {
		return nil, ErrBusy
	}
	s.current = EmbedName
	return s.Embed.Begin()
}

// FinishEmbed applies an embed outcome
func (s *Session) FinishEmbed(p *Pending[*watermark.EmbedResponse], out Outcome[*watermark.EmbedResponse]) bool {
	return s.Embed.Finish(p, out)
}

// RunEmbed performs a whole embed attempt synchronously
func (s *Session) RunEmbed(ctx context.Context) (State, error) {
	p, err := s.BeginEmbed()
	if err != nil {
		return s.Embed.State(), err
	}
	if p != nil {
		s.FinishEmbed(p, p.Do(ctx))
	}
	return s.Embed.State(), nil
}

// BeginExtract triggers the extract workflow
func (s *Session) BeginExtract() (*Pending[*watermark.ExtractResponse], error) {
	if s.Busy() {
		return nil, ErrBusy
	}
	s.current = ExtractName
	return s.Extract.Begin()
}

// FinishExtract applies an extract outcome
func (s *Session) FinishExtract(p *Pending[*watermark.ExtractResponse], out Outcome[*watermark.ExtractResponse]) bool {
	return s.Extract.Finish(p, out)
}

// RunExtract performs a whole extract attempt synchronously
func (s *Session) RunExtract(ctx context.Context) (State, error) {
	p, err := s.BeginExtract()
	if err != nil {
		return s.Extract.State(), err
	}
	if p != nil {
		s.FinishExtract(p, p.Do(ctx))
	}
	return s.Extract.State(), nil
}

// Surface renders the session
func (s *Session) Surface() Surface {
	return Render(s)
}
