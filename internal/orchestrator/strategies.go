package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/n0madic/go-agentquery/internal/backend"
	"github.com/n0madic/go-agentquery/internal/runner"
	"github.com/n0madic/go-agentquery/internal/stream"
	"github.com/n0madic/go-agentquery/internal/types"
	"github.com/n0madic/go-agentquery/internal/upstream"
)

// CLIStrategy runs the CLI with one invocation style. In streaming mode
// stdout lines are decoded as they arrive and an error line ends the chain.
// In collect mode the whole output is parsed after the process exits and an
// error line is an ordinary failure.
type CLIStrategy struct {
	Label      string
	Runner     *runner.Runner
	Invocation runner.Invocation
	Collect    bool
	Logger     *zap.Logger
}

func (s *CLIStrategy) Name() string { return s.Label }

func (s *CLIStrategy) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *CLIStrategy) Run(ctx context.Context, emit func(stream.Event)) error {
	p, err := s.Runner.Start(ctx, s.Invocation)
	if err != nil {
		return err
	}
	if s.Collect {
		return s.collect(p, emit)
	}

	var protoErr error
	stream.ParseLines(p.Lines(), s.logger(), func(ev stream.Event) bool {
		switch ev.Type {
		case stream.EventError:
			protoErr = &stream.ProtocolError{Message: ev.Error}
			emit(ev)
			return false
		case stream.EventDone:
			return false
		}
		emit(ev)
		return true
	})
	if protoErr != nil {
		p.Stop()
		if err := p.Wait(); ctx.Err() != nil {
			return err
		}
		return protoErr
	}
	return p.Wait()
}

func (s *CLIStrategy) collect(p *runner.Process, emit func(stream.Event)) error {
	var out strings.Builder
	for line := range p.Lines() {
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := p.Wait(); err != nil {
		return err
	}
	agg, err := stream.Collect([]byte(out.String()), s.logger())
	if err != nil {
		return err
	}
	emitAggregate(agg, emit)
	return nil
}

func emitAggregate(agg stream.Aggregate, emit func(stream.Event)) {
	if agg.Thinking != "" {
		emit(stream.Thinking(agg.Thinking))
	}
	if agg.Text != "" {
		emit(stream.Text(agg.Text))
	}
}

// HTTPStrategy serves the query from a chat-completions endpoint.
type HTTPStrategy struct {
	Client    *upstream.Client
	Selection backend.Selection
	Request   *types.ChatCompletionRequest
}

func (s *HTTPStrategy) Name() string { return "http" }

func (s *HTTPStrategy) Run(ctx context.Context, emit func(stream.Event)) error {
	if s.Request.Stream {
		return s.Client.Stream(ctx, s.Selection, s.Request, emit)
	}
	agg, err := s.Client.Complete(ctx, s.Selection, s.Request)
	if err != nil {
		return err
	}
	emitAggregate(agg, emit)
	return nil
}
