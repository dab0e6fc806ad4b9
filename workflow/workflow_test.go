package workflow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blindmark/watermark"
)

type fakeService struct {
	embedResp   *watermark.EmbedResponse
	embedErr    error
	extractResp *watermark.ExtractResponse
	extractErr  error

	embedCalls   []*watermark.EmbedRequest
	extractCalls []*watermark.ExtractRequest
}

func (f *fakeService) Embed(ctx context.Context, req *watermark.EmbedRequest) (*watermark.EmbedResponse, error) {
	f.embedCalls = append(f.embedCalls, req)
	return f.embedResp, f.embedErr
}

func (f *fakeService) Extract(ctx context.Context, req *watermark.ExtractRequest) (*watermark.ExtractResponse, error) {
	f.extractCalls = append(f.extractCalls, req)
	return f.extractResp, f.extractErr
}

func (f *fakeService) ResolveURL(ref string) string {
	return "http://wm.test" + ref
}

func writeImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake image"), 0644))
	return path
}

func TestTransition(t *testing.T) {
	idle := State{Phase: Idle, Attempt: "a1"}
	loading := State{Phase: Loading, Attempt: "a1", Progress: "working"}

	tests := []struct {
		name string
		from State
		ev   Event
		want State
	}{
		{"trigger from idle", State{}, Event{Type: EventTrigger, Attempt: "a1"}, idle},
		{"trigger clears failure", State{Phase: Failed, Attempt: "a0", LastError: "x", Kind: ServerFailure}, Event{Type: EventTrigger, Attempt: "a1"}, idle},
		{"trigger clears success", State{Phase: Succeeded, Attempt: "a0"}, Event{Type: EventTrigger, Attempt: "a1"}, idle},
		{"trigger ignored while loading", loading, Event{Type: EventTrigger, Attempt: "a2"}, loading},
		{"reject", idle, Event{Type: EventReject, Attempt: "a1", Message: "need input"}, State{Phase: Failed, Attempt: "a1", LastError: "need input", Kind: ValidationFailure}},
		{"start", idle, Event{Type: EventStart, Attempt: "a1", Message: "working"}, loading},
		{"succeed", loading, Event{Type: EventSucceed, Attempt: "a1"}, State{Phase: Succeeded, Attempt: "a1"}},
		{"fail", loading, Event{Type: EventFail, Attempt: "a1", Kind: TransportFailure, Message: "down"}, State{Phase: Failed, Attempt: "a1", LastError: "down", Kind: TransportFailure}},
		{"stale succeed", loading, Event{Type: EventSucceed, Attempt: "old"}, loading},
		{"succeed from idle", idle, Event{Type: EventSucceed, Attempt: "a1"}, idle},
		{"reject while loading", loading, Event{Type: EventReject, Attempt: "a1"}, loading},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transition(tt.from, tt.ev))
		})
	}
}

func TestPhaseAndKindStrings(t *testing.T) {
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "unknown", Phase(42).String())
	assert.Equal(t, "transport", TransportFailure.String())
	assert.Equal(t, "none", NoError.String())
}

func TestGate(t *testing.T) {
	g := Gate{Message: "both required"}

	assert.NoError(t, g.Validate(Field{"a", "x"}, Field{"b", &watermark.File{Name: "f", Data: []byte{1}}}))

	cases := []Field{
		{"nil", nil},
		{"blank", "   "},
		{"file", &watermark.File{Name: "f"}},
		{"bytes", []byte{}},
	}
	for _, f := range cases {
		err := g.Validate(Field{"ok", "x"}, f)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr, f.Name)
		assert.Equal(t, f.Name, vErr.Field)
		assert.Equal(t, "both required", vErr.Error())
	}
}

func TestTabs(t *testing.T) {
	tabs := NewTabs([]string{"a", "b", "c"}, []string{"nav-a", "nav-b", "nav-c"})
	assert.Equal(t, "", tabs.Current())

	for _, step := range [][2]string{{"nav-b", "b"}, {"nav-a", "a"}, {"nav-a", "a"}, {"nav-c", "c"}} {
		tabs.Switch(step[0], step[1])

		visible, active := 0, 0
		for _, p := range tabs.Panels() {
			if tabs.Visible(p) {
				visible++
			}
		}
		for _, c := range tabs.Controls() {
			if tabs.Active(c) {
				active++
			}
		}
		assert.Equal(t, 1, visible)
		assert.Equal(t, 1, active)
		assert.True(t, tabs.Visible(step[1]))
		assert.True(t, tabs.Active(step[0]))
	}

	assert.Panics(t, func() { tabs.Switch("nav-a", "missing") })
	assert.Panics(t, func() { tabs.Switch("missing", "a") })
	assert.True(t, tabs.Visible("c"), "failed switch must not change state")
}

func TestLengthLink(t *testing.T) {
	var link LengthLink
	_, ok := link.Value()
	assert.False(t, ok)

	var got []string
	link.Subscribe(func(v string) { got = append(got, v) })
	link.Publish("40")
	link.Publish("72")

	v, ok := link.Value()
	assert.True(t, ok)
	assert.Equal(t, "72", v)
	assert.Equal(t, []string{"40", "72"}, got)
}

func TestCatalog(t *testing.T) {
	assert.Equal(t, English, Catalog(""))
	assert.Equal(t, English, Catalog("en"))
	assert.Equal(t, Chinese, Catalog("zh"))
	assert.Equal(t, Chinese, Catalog("zh-CN"))
	assert.NotEqual(t, English.CommunicationError, Chinese.CommunicationError)
}

// Scenario: embed succeeds, result is presented and the length reaches extract.
func TestEmbedSuccess(t *testing.T) {
	svc := &fakeService{embedResp: &watermark.EmbedResponse{Length: 40, ProcessedImageURL: "/out/img123.png"}}
	s := NewSession(svc)

	s.Embed.SetImagePath(writeImage(t, "cat.png"))
	s.Embed.SetText("hello")

	st, err := s.RunEmbed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, st.Phase)

	require.Len(t, svc.embedCalls, 1)
	assert.Equal(t, "hello", svc.embedCalls[0].Text)
	assert.Equal(t, "cat.png", svc.embedCalls[0].File.Name)

	view := s.Embed.View()
	assert.Contains(t, view.Message, "40")
	assert.Equal(t, "40", view.Length)
	assert.Equal(t, "img123.png", view.DownloadName)
	assert.Equal(t, "http://wm.test/out/img123.png", view.PreviewURL)
	assert.Equal(t, "http://wm.test/out/img123.png", view.DownloadURL)
	assert.Equal(t, "cat.png", view.SourceName)

	assert.Equal(t, "40", s.Extract.Input().Length)
	v, _ := s.Link.Value()
	assert.Equal(t, view.Length, v)

	surf := s.Surface()
	assert.True(t, surf.EmbedResultVisible)
	assert.False(t, surf.LoadingVisible)
	assert.False(t, surf.ErrorVisible)
	assert.False(t, surf.ExtractResultVisible)
}

// Scenario: missing text never reaches the server.
func TestEmbedValidation(t *testing.T) {
	svc := &fakeService{}
	s := NewSession(svc)
	s.Embed.SetImagePath(writeImage(t, "cat.png"))

	st, err := s.RunEmbed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Failed, st.Phase)
	assert.Equal(t, ValidationFailure, st.Kind)
	assert.Equal(t, English.EmbedRequired, st.LastError)
	assert.Empty(t, svc.embedCalls)

	surf := s.Surface()
	assert.True(t, surf.ErrorVisible)
	assert.Equal(t, English.EmbedRequired, surf.ErrorText)
	assert.False(t, surf.LoadingVisible)
}

func TestEmbedMissingImage(t *testing.T) {
	svc := &fakeService{}
	s := NewSession(svc)
	s.Embed.SetText("hello")

	st, _ := s.RunEmbed(context.Background())
	assert.Equal(t, ValidationFailure, st.Kind)
	assert.Equal(t, English.EmbedRequired, st.LastError)

	s.Embed.SetImagePath(filepath.Join(t.TempDir(), "nope.png"))
	st, _ = s.RunEmbed(context.Background())
	assert.Equal(t, ValidationFailure, st.Kind)
	assert.Empty(t, svc.embedCalls)
}

// Scenario: extract returns the text verbatim.
func TestExtractSuccess(t *testing.T) {
	svc := &fakeService{extractResp: &watermark.ExtractResponse{ExtractedText: "hello"}}
	s := NewSession(svc)
	s.Extract.SetImagePath(writeImage(t, "marked.png"))
	s.Extract.SetLength(" 40 ")

	st, err := s.RunExtract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, st.Phase)
	require.Len(t, svc.extractCalls, 1)
	assert.Equal(t, "40", svc.extractCalls[0].Length)

	surf := s.Surface()
	assert.True(t, surf.ExtractResultVisible)
	assert.Equal(t, "hello", surf.ExtractedText)
	assert.False(t, surf.EmbedResultVisible)
}

func TestExtractValidation(t *testing.T) {
	svc := &fakeService{}
	s := NewSession(svc)
	s.Extract.SetImagePath(writeImage(t, "marked.png"))

	st, _ := s.RunExtract(context.Background())
	assert.Equal(t, English.ExtractRequired, st.LastError)
	assert.Empty(t, svc.extractCalls)
}

// Scenario: a server error message is shown verbatim.
func TestExtractServerError(t *testing.T) {
	svc := &fakeService{extractErr: &watermark.APIError{StatusCode: 400, Message: "length mismatch"}}
	s := NewSession(svc)
	s.Extract.SetImagePath(writeImage(t, "marked.png"))
	s.Extract.SetLength("40")

	st, _ := s.RunExtract(context.Background())
	assert.Equal(t, ServerFailure, st.Kind)

	surf := s.Surface()
	assert.True(t, surf.ErrorVisible)
	assert.Equal(t, "length mismatch", surf.ErrorText)
	assert.False(t, surf.LoadingVisible)
}

func TestServerErrorWithoutMessage(t *testing.T) {
	svc := &fakeService{extractErr: &watermark.APIError{StatusCode: 500}}
	s := NewSession(svc)
	s.Extract.SetImagePath(writeImage(t, "marked.png"))
	s.Extract.SetLength("40")

	st, _ := s.RunExtract(context.Background())
	assert.Equal(t, English.UnknownError, st.LastError)
}

// Scenario: transport failure shows the generic message and clears loading.
func TestEmbedTransportError(t *testing.T) {
	svc := &fakeService{embedErr: &watermark.TransportError{Op: "request", Err: errors.New("connection refused")}}
	s := NewSession(svc)
	s.Embed.SetImagePath(writeImage(t, "cat.png"))
	s.Embed.SetText("hello")

	st, _ := s.RunEmbed(context.Background())
	assert.Equal(t, TransportFailure, st.Kind)

	surf := s.Surface()
	assert.Equal(t, English.CommunicationError, surf.ErrorText)
	assert.False(t, surf.LoadingVisible)
	assert.False(t, s.Busy())

	_, set := s.Link.Value()
	assert.False(t, set)
}

func TestEmbedIncompleteSuccessBody(t *testing.T) {
	bodies := map[string]string{
		"empty object":   `{}`,
		"null":           `null`,
		"missing url":    `{"wm_length": 40}`,
		"wrong type":     `{"wm_length": "40", "processed_image_url": "/processed/a.png"}`,
		"missing length": `{"processed_image_url": "/processed/a.png"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer server.Close()

			client, err := watermark.NewClient(server.URL)
			require.NoError(t, err)

			s := NewSession(client)
			s.Extract.SetLength("232")
			s.Embed.SetImagePath(writeImage(t, "cat.png"))
			s.Embed.SetText("hello")

			st, err := s.RunEmbed(context.Background())
			require.NoError(t, err)
			assert.Equal(t, Failed, st.Phase)
			assert.Equal(t, TransportFailure, st.Kind)

			surf := s.Surface()
			assert.True(t, surf.ErrorVisible)
			assert.Equal(t, English.CommunicationError, surf.ErrorText)
			assert.False(t, surf.EmbedResultVisible)
			assert.False(t, surf.LoadingVisible)

			_, set := s.Link.Value()
			assert.False(t, set)
			assert.Equal(t, "232", s.Extract.Input().Length)
		})
	}
}

func TestExtractIncompleteSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, err := watermark.NewClient(server.URL)
	require.NoError(t, err)

	s := NewSession(client)
	s.Tabs.Switch(NavExtract, PanelExtract)
	s.Extract.SetImagePath(writeImage(t, "out.png"))
	s.Extract.SetLength("40")

	st, err := s.RunExtract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TransportFailure, st.Kind)

	surf := s.Surface()
	assert.Equal(t, English.CommunicationError, surf.ErrorText)
	assert.False(t, surf.ExtractResultVisible)
}

func TestTriggerHidesPreviousOutput(t *testing.T) {
	svc := &fakeService{embedResp: &watermark.EmbedResponse{Length: 40, ProcessedImageURL: "/out/a.png"}}
	s := NewSession(svc)
	s.Embed.SetImagePath(writeImage(t, "cat.png"))
	s.Embed.SetText("hello")

	_, err := s.RunEmbed(context.Background())
	require.NoError(t, err)
	require.True(t, s.Surface().EmbedResultVisible)

	p, err := s.BeginExtract()
	require.NoError(t, err)
	assert.Nil(t, p)

	surf := s.Surface()
	assert.False(t, surf.EmbedResultVisible)
	assert.False(t, surf.ExtractResultVisible)
	assert.True(t, surf.ErrorVisible)
	assert.Equal(t, English.ExtractRequired, surf.ErrorText)
}

func TestLoadingAndBusy(t *testing.T) {
	svc := &fakeService{
		embedResp:   &watermark.EmbedResponse{Length: 8, ProcessedImageURL: "/out/a.png"},
		extractResp: &watermark.ExtractResponse{ExtractedText: "x"},
	}
	s := NewSession(svc)
	s.Embed.SetImagePath(writeImage(t, "cat.png"))
	s.Embed.SetText("hi")
	s.Extract.SetImagePath(writeImage(t, "marked.png"))
	s.Extract.SetLength("8")

	p, err := s.BeginEmbed()
	require.NoError(t, err)
	require.NotNil(t, p)

	surf := s.Surface()
	assert.True(t, surf.LoadingVisible)
	assert.Equal(t, English.EmbedProgress, surf.LoadingText)
	assert.False(t, surf.ErrorVisible)

	_, err = s.BeginEmbed()
	assert.ErrorIs(t, err, ErrBusy)
	_, err = s.BeginExtract()
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, EmbedName, s.Current())

	assert.True(t, s.FinishEmbed(p, p.Do(context.Background())))
	assert.False(t, s.Surface().LoadingVisible)
	assert.False(t, s.FinishEmbed(p, p.Do(context.Background())), "a finished attempt is stale")
	assert.Len(t, svc.embedCalls, 2)
}

func TestStaleOutcomeDropped(t *testing.T) {
	r := NewRunner[string]("test", "working", English, nil)
	call := func(context.Context) (string, error) { return "v", nil }

	p1, err := r.Begin(nil, call)
	require.NoError(t, err)
	require.True(t, r.Finish(p1, Fail[string](errors.New("boom")), nil))

	p2, err := r.Begin(nil, call)
	require.NoError(t, err)
	assert.False(t, r.Finish(p1, Succeed("late"), nil))
	assert.Equal(t, Loading, r.State().Phase)

	assert.True(t, r.Finish(p2, p2.Do(context.Background()), nil))
	v, ok := r.Result()
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestRunnerPanicClearsLoading(t *testing.T) {
	r := NewRunner[string]("test", "working", English, nil)
	p, err := r.Begin(nil, func(context.Context) (string, error) { return "v", nil })
	require.NoError(t, err)

	var applied bool
	assert.NotPanics(t, func() {
		applied = r.Finish(p, Succeed("v"), func(string) { panic("render failed") })
	})
	assert.True(t, applied)

	st := r.State()
	assert.Equal(t, Failed, st.Phase)
	assert.Equal(t, TransportFailure, st.Kind)
	assert.Equal(t, English.CommunicationError, st.LastError)
	_, ok := r.Result()
	assert.False(t, ok)
}

func TestRunnerCheckError(t *testing.T) {
	r := NewRunner[int]("test", "working", English, nil)
	st, err := r.Run(context.Background(), func() error { return errors.New("plain") }, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Failed, st.Phase)
	assert.Equal(t, "plain", st.LastError)
}

func TestSessionDefaults(t *testing.T) {
	s := NewSession(&fakeService{})
	assert.Equal(t, PanelEmbed, s.Tabs.Current())
	assert.True(t, s.Tabs.Active(NavEmbed))
	assert.Equal(t, Name(""), s.Current())
	assert.Equal(t, Surface{}, s.Surface())

	zh := NewSession(&fakeService{}, WithMessages(Chinese))
	assert.Equal(t, Chinese, zh.Messages())
	st, _ := zh.RunEmbed(context.Background())
	assert.Equal(t, Chinese.EmbedRequired, st.LastError)
}
