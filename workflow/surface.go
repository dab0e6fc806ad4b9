package workflow

// Surface is the visible output of a session: the shared loading indicator
// and error slot plus each workflow's result container
type Surface struct {
	LoadingVisible bool
	LoadingText    string

	ErrorVisible bool
	ErrorText    string
	ErrorKind    ErrorKind

	EmbedResultVisible bool
	Embed              EmbedView

	ExtractResultVisible bool
	ExtractedText        string
}

// Render derives the surface from the state of the most recently triggered
// workflow. Starting any attempt therefore hides every result and error.
func Render(s *Session) Surface {
	var out Surface

	var st State
	switch s.current {
	case EmbedName:
		st = s.Embed.State()
	case ExtractName:
		st = s.Extract.State()
	default:
		return out
	}

	switch st.Phase {
	case Loading:
		out.LoadingVisible = true
		out.LoadingText = st.Progress
	case Failed:
		out.ErrorVisible = true
		out.ErrorText = st.LastError
		out.ErrorKind = st.Kind
	case Succeeded:
		if s.current == EmbedName {
			out.EmbedResultVisible = true
			out.Embed = s.Embed.View()
		} else {
			out.ExtractResultVisible = true
			out.ExtractedText = s.Extract.Text()
		}
	}

	return out
}
