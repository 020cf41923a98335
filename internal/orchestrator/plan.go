package orchestrator

import (
	"time"

	"go.uber.org/zap"

	"github.com/n0madic/go-agentquery/internal/backend"
	"github.com/n0madic/go-agentquery/internal/runner"
	"github.com/n0madic/go-agentquery/internal/types"
	"github.com/n0madic/go-agentquery/internal/upstream"
)

// PlanInput is everything needed to build the strategy chain of one query.
type PlanInput struct {
	Executable  string // discovered CLI path, "" when none
	Selection   backend.Selection
	DisableHTTP bool
	CLIArgs     []string
	CLIPayload  []byte
	TempDir     string
	Timeout     time.Duration
	HTTPRequest *types.ChatCompletionRequest
	Runner      *runner.Runner
	Client      *upstream.Client
	Logger      *zap.Logger
}

// cliStyles lists the CLI invocation styles in fallback order.
var cliStyles = []struct {
	name    string
	style   runner.Style
	collect bool
}{
	{"cli-direct", runner.StyleDirect, false},
	{"cli-pipe", runner.StyleShellPipe, false},
	{"cli-redirect", runner.StyleShellRedirect, true},
}

// Plan builds the ordered strategy chain. CLI strategies come first when an
// executable exists and the selection is not local; the HTTP strategy
// follows unless disabled. A local selection always uses HTTP since it is
// the primary backend there, not a fallback.
func Plan(in PlanInput) ([]Strategy, error) {
	local := in.Selection.Kind == backend.KindHTTPLocal
	var out []Strategy

	if in.Executable != "" && !local {
		for _, st := range cliStyles {
			out = append(out, &CLIStrategy{
				Label:  st.name,
				Runner: in.Runner,
				Invocation: runner.Invocation{
					Executable: in.Executable,
					Args:       in.CLIArgs,
					Payload:    in.CLIPayload,
					Style:      st.style,
					TempDir:    in.TempDir,
					Timeout:    in.Timeout,
				},
				Collect: st.collect,
				Logger:  in.Logger,
			})
		}
	}

	if local || !in.DisableHTTP {
		out = append(out, &HTTPStrategy{Client: in.Client, Selection: in.Selection, Request: in.HTTPRequest})
	}

	if len(out) == 0 {
		return nil, ErrBackendUnavailable
	}
	return out, nil
}
