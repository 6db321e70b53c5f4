package domain

// DownloadRequest describes one invocation of the external downloader.
// It is constructed per qualifying message and owned exclusively by the
// goroutine that runs it.
type DownloadRequest struct {
	ID          string // correlation id for logs and metrics
	URL         string
	OutputDir   string
	CookiesPath string // optional; passed to the tool via --cookies
}

// FailureKind classifies where on the download path a failure happened.
// The user-visible reply is the same for all kinds; logs and metrics
// keep them apart.
type FailureKind int

const (
	FailureNone   FailureKind = iota // success
	FailureSetup                     // output directory could not be created
	FailureLaunch                    // process could not be spawned or awaited
	FailureTool                      // downloader exited non-zero
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureSetup:
		return "setup"
	case FailureLaunch:
		return "launch"
	case FailureTool:
		return "tool"
	default:
		return "unknown"
	}
}

// DownloadOutcome is the terminal result of a download: success, or a
// failure with a human-readable diagnostic. Consumed exactly once to
// compose the follow-up reply.
type DownloadOutcome struct {
	Kind       FailureKind
	Diagnostic string
}

// Success returns the success outcome.
func Success() DownloadOutcome {
	return DownloadOutcome{Kind: FailureNone}
}

// Failure returns a failure outcome of the given kind.
func Failure(kind FailureKind, diagnostic string) DownloadOutcome {
	return DownloadOutcome{Kind: kind, Diagnostic: diagnostic}
}

// OK reports whether the download succeeded.
func (o DownloadOutcome) OK() bool { return o.Kind == FailureNone }
