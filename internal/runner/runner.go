package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/petasbytes/budgetchat/internal/config"
	"github.com/petasbytes/budgetchat/internal/metrics"
	"github.com/petasbytes/budgetchat/internal/provider"
	"github.com/petasbytes/budgetchat/internal/telemetry"
	"github.com/petasbytes/budgetchat/internal/tokenizer"
	"github.com/petasbytes/budgetchat/internal/windowing"
	"github.com/petasbytes/budgetchat/memory"
)

// Greeting is printed once when the session starts.
const Greeting = "Hello! How can I help you today? (type 'quit' or 'exit' to leave)"

// Labels prefix the user prompt and the agent's reply.
type Labels struct {
	User  string
	Agent string
}

// DefaultLabels are unstyled.
var DefaultLabels = Labels{User: "You: ", Agent: "Chatbot: "}

// Deps are the collaborators a Runner needs. Completer, Counter and Store are
// required; the rest have usable zero values.
type Deps struct {
	Completer provider.Completer
	Counter   tokenizer.Counter
	Store     *memory.Store
	Config    config.Config

	Logger   *zap.Logger
	Emitter  *telemetry.Emitter
	Recorder *metrics.Recorder

	In     io.Reader
	Out    io.Writer
	Labels Labels
}

// Runner runs one chat session over a single in-memory log.
type Runner struct {
	completer provider.Completer
	counter   tokenizer.Counter
	store     *memory.Store
	cfg       config.Config

	logger   *zap.Logger
	emitter  *telemetry.Emitter
	recorder *metrics.Recorder

	in     io.Reader
	out    io.Writer
	labels Labels

	log memory.Conversation
}

// New returns a Runner. A nil Logger, In or Out falls back to a no-op default.
func New(d Deps) *Runner {
	r := &Runner{
		completer: d.Completer,
		counter:   d.Counter,
		store:     d.Store,
		cfg:       d.Config,
		logger:    d.Logger,
		emitter:   d.Emitter,
		recorder:  d.Recorder,
		in:        d.In,
		out:       d.Out,
		labels:    d.Labels,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.With(zap.String("component", "runner"))
	if r.in == nil {
		r.in = strings.NewReader("")
	}
	if r.out == nil {
		r.out = io.Discard
	}
	if r.labels == (Labels{}) {
		r.labels = DefaultLabels
	}
	return r
}

// Conversation returns the current in-memory log.
func (r *Runner) Conversation() memory.Conversation { return r.log }

// LoadHistory restores the persisted log. A missing, empty or unreadable file
// starts a fresh log holding only the directive; read errors are logged.
func (r *Runner) LoadHistory() {
	conv, err := r.store.Load()
	if err != nil {
		r.logger.Warn("failed to load history; starting fresh",
			zap.String("path", r.store.Path()), zap.Error(err))
		conv = nil
	}
	if len(conv) == 0 {
		conv = memory.New(r.cfg.SystemMessage)
	}
	r.log = conv
	r.logger.Debug("history loaded", zap.Int("messages", len(r.log)))
}

// IsExitCommand reports whether line asks to end the session.
func IsExitCommand(line string) bool {
	s := strings.TrimSpace(line)
	return strings.EqualFold(s, "quit") || strings.EqualFold(s, "exit")
}

// RunTurn runs one full turn for input and returns the agent's reply.
// A completion error leaves the user message in memory and persists nothing.
func (r *Runner) RunTurn(ctx context.Context, input string) (string, error) {
	if r.log == nil {
		r.log = memory.New(r.cfg.SystemMessage)
	}
	ctx, turnID := telemetry.EnsureTurnID(ctx)
	r.emitter.EmitLocalFeatures(ctx, input)

	r.log = append(r.log, memory.User(input))

	enforced, stats := windowing.EnforceBudget(r.log, r.cfg.TokenLimit, r.counter)
	r.log = enforced
	fmt.Fprintf(r.out, "[tokens: %d / %d]\n", stats.Before, r.cfg.TokenLimit)

	r.logger.Debug("budget enforced",
		zap.String("turn_id", turnID),
		zap.Int("before", stats.Before),
		zap.Int("total", stats.Total),
		zap.Int("evicted", stats.Evicted),
		zap.Bool("over_budget", stats.OverBudget),
	)
	if stats.OverBudget {
		r.logger.Warn("context still over budget after eviction",
			zap.Int("total", stats.Total), zap.Int("budget", stats.Budget))
	}
	r.emitter.EmitBudget(ctx, stats, len(r.log))
	r.recorder.ObserveBudget(stats.Evicted, stats.Total)

	start := time.Now()
	reply, err := r.complete(ctx)
	elapsed := time.Since(start)
	if err != nil {
		r.recorder.ObserveTurn(metrics.StatusError, elapsed)
		r.emitter.EmitTurnCompleted(ctx, elapsed, reply, metrics.StatusError)
		return "", fmt.Errorf("completion: %w", err)
	}
	r.recorder.ObserveTurn(metrics.StatusOK, elapsed)
	r.emitter.EmitTurnCompleted(ctx, elapsed, reply, metrics.StatusOK)

	r.log = append(r.log, memory.Assistant(reply))

	if err := r.store.Save(r.log); err != nil {
		r.logger.Warn("failed to save history",
			zap.String("path", r.store.Path()), zap.Error(err))
	}
	return reply, nil
}

func (r *Runner) complete(ctx context.Context) (string, error) {
	if r.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RequestTimeout)
		defer cancel()
	}
	req := provider.Request{
		Model:       r.cfg.Model,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
		Messages:    r.log,
	}

	fmt.Fprint(r.out, r.labels.Agent)
	defer fmt.Fprintln(r.out)

	if r.cfg.Stream {
		return provider.Collect(r.completer.Stream(ctx, req), r.out)
	}
	reply, err := r.completer.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	fmt.Fprint(r.out, reply)
	return reply, nil
}

// Run loads history, greets, and reads input lines until an exit command,
// end of input, or ctx cancellation. A completion error ends the session and
// is returned.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.LoadHistory()
	fmt.Fprintf(r.out, "%s%s\n", r.labels.Agent, Greeting)

	// Reading stdin blocks; feed lines through a channel so ctx can interrupt.
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		br := bufio.NewReader(r.in)
		for {
			s, err := br.ReadString('\n')
			if err == nil || s != "" {
				select {
				case lines <- strings.TrimRight(s, "\r\n"):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	for {
		fmt.Fprint(r.out, r.labels.User)

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(r.out)
			select {
			case err := <-readErr:
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}
			default:
			}
			return nil
		}
		if IsExitCommand(line) {
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		if _, err := r.RunTurn(ctx, line); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
