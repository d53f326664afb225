package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MahdiBaghbani/sessionkit/internal/harness"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/logutil"
	"github.com/MahdiBaghbani/sessionkit/internal/session"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Index    int
	Session  string
	Method   string
	Path     string
	Status   int
	Requests int

	// Err is the dispatch error, if any. Failures lists unmet expectations.
	Err      error
	Failures []string
}

// OK reports whether the step ran and met every expectation.
func (r *StepResult) OK() bool { return r.Err == nil && len(r.Failures) == 0 }

// Report collects the results of a run.
type Report struct {
	Scenario string
	Steps    []StepResult

	// SessionIDs maps scenario session names to session ids, for
	// looking up transcripts.
	SessionIDs map[string]string
}

// OK reports whether every step passed.
func (r *Report) OK() bool {
	for i := range r.Steps {
		if !r.Steps[i].OK() {
			return false
		}
	}
	return true
}

// Failed returns the number of failed steps.
func (r *Report) Failed() int {
	n := 0
	for i := range r.Steps {
		if !r.Steps[i].OK() {
			n++
		}
	}
	return n
}

// Write renders the report as text.
func (r *Report) Write(w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "scenario %q: %d steps, %d failed\n", r.Scenario, len(r.Steps), r.Failed())
	for _, st := range r.Steps {
		mark := "ok  "
		if !st.OK() {
			mark = "FAIL"
		}
		fmt.Fprintf(&sb, "%s %2d [%s] %s %s -> %d\n", mark, st.Index, st.Session, st.Method, st.Path, st.Status)
		if st.Err != nil {
			fmt.Fprintf(&sb, "       error: %v\n", st.Err)
		}
		for _, f := range st.Failures {
			fmt.Fprintf(&sb, "       %s\n", f)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Run replays sc through h. Every step runs even after a failure; the
// returned error is reserved for problems with the scenario itself.
func Run(ctx context.Context, h *harness.Harness, sc *Scenario, log *slog.Logger) (*Report, error) {
	log = logutil.NoopIfNil(log).With("scenario", sc.Name)
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	sessions := map[string]*session.Session{DefaultSession: h.Session()}
	for _, decl := range sc.Sessions {
		decl := decl
		sessions[decl.Name] = h.OpenSession(func(s *session.Session) {
			if decl.Host != "" {
				s.SetHost(decl.Host)
			}
			s.SetHTTPS(decl.HTTPS)
			for _, k := range sortedKeys(decl.Cookies) {
				s.SetCookie(k, decl.Cookies[k])
			}
		})
	}

	report := &Report{Scenario: sc.Name, SessionIDs: make(map[string]string, len(sessions))}
	for name, s := range sessions {
		report.SessionIDs[name] = s.ID()
	}

	for i := range sc.Steps {
		st := &sc.Steps[i]
		s := sessions[st.session()]
		res := StepResult{
			Index:   i + 1,
			Session: st.session(),
			Method:  st.method(),
			Path:    st.Path,
		}

		before := s.RequestCount()
		var err error
		switch {
		case st.XHR:
			_, err = s.XHR(ctx, st.method(), st.Path, st.params(), st.headers())
		case st.FollowRedirects:
			_, err = s.RequestViaRedirect(ctx, st.method(), st.Path, st.params(), st.headers())
		default:
			_, err = s.Process(ctx, st.method(), st.Path, st.params(), st.headers())
		}
		res.Requests = s.RequestCount() - before
		res.Status = s.Status()

		if err != nil {
			res.Err = err
		} else if st.Expect != nil {
			res.Failures = check(s, st.Expect)
		}

		if res.OK() {
			log.Debug("step passed", "step", res.Index, "session", res.Session, "status", res.Status)
		} else {
			log.Info("step failed", "step", res.Index, "session", res.Session, "status", res.Status,
				"error", res.Err, "failures", res.Failures)
		}
		report.Steps = append(report.Steps, res)
	}
	return report, nil
}

func check(s *session.Session, want *Expect) []string {
	var failures []string

	if want.Status != 0 && s.Status() != want.Status {
		failures = append(failures, fmt.Sprintf("expected status %d, got %d", want.Status, s.Status()))
	}
	if want.Response != "" {
		ok, err := harness.StatusMatches(s.Status(), want.Response)
		if err != nil {
			failures = append(failures, err.Error())
		} else if !ok {
			failures = append(failures, fmt.Sprintf("expected %s response, got %s", want.Response, s.Response().StatusLine()))
		}
	}
	for _, sub := range want.BodyContains {
		if !strings.Contains(s.Body(), sub) {
			failures = append(failures, fmt.Sprintf("body does not contain %q", sub))
		}
	}
	if want.Location != "" {
		if loc, got := harness.RedirectTarget(s, want.Location); got != loc {
			failures = append(failures, fmt.Sprintf("expected Location %s, got %q", loc, got))
		}
	}

	jar := s.Cookies()
	for _, name := range sortedKeys(want.Cookies) {
		got, ok := jar[name]
		if !ok {
			failures = append(failures, fmt.Sprintf("cookie %q missing", name))
			continue
		}
		if got != want.Cookies[name] {
			failures = append(failures, fmt.Sprintf("cookie %q = %q, want %q", name, got, want.Cookies[name]))
		}
	}
	for _, name := range want.HasCookies {
		if jar[name] == "" {
			failures = append(failures, fmt.Sprintf("cookie %q not set", name))
		}
	}
	return failures
}
