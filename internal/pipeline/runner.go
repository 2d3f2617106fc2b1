package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/tgconv/internal/dataset"
	"github.com/MikeSquared-Agency/tgconv/internal/export"
	"github.com/MikeSquared-Agency/tgconv/internal/hermes"
	"github.com/MikeSquared-Agency/tgconv/internal/thread"
)

// Config holds the conversion settings for one run.
type Config struct {
	InputPath     string
	OutputPath    string
	SamplesPath   string // empty disables sample output
	ChatID        int64
	ModelFromID   string // empty means the chat peer (user<chat id>)
	ThreadGap     time.Duration
	MaxContext    int
	IncludeMedia  bool
	StrictReplies bool
}

// Sink mirrors the conversation table somewhere besides the CSV file.
type Sink interface {
	WriteRows(ctx context.Context, runID uuid.UUID, chatID int64, rows []dataset.Row) error
}

// Publisher announces finished runs.
type Publisher interface {
	Publish(subject string, data any) error
}

// Summary describes a completed run.
type Summary struct {
	RunID         uuid.UUID
	ChatID        int64
	ChatName      string
	Messages      int
	TextMessages  int
	Conversations int
	Fallbacks     int
	Samples       int
	Sinks         int
	Duration      time.Duration
}

// Runner orchestrates the conversion pipeline.
type Runner struct {
	cfg       Config
	sinks     []namedSink
	publisher Publisher
	logger    *slog.Logger
}

type namedSink struct {
	name string
	sink Sink
}

// NewRunner creates a runner. Sinks and a publisher are optional and can be
// attached with AddSink and SetPublisher.
func NewRunner(cfg Config, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		logger: logger,
	}
}

// AddSink registers a named sink. Sinks run in registration order.
func (r *Runner) AddSink(name string, s Sink) {
	r.sinks = append(r.sinks, namedSink{name: name, sink: s})
}

// SetPublisher sets the completion publisher.
func (r *Runner) SetPublisher(p Publisher) {
	r.publisher = p
}

// Run executes the pipeline once: load, filter, resolve, write.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	runID := uuid.New()
	logger := r.logger.With("run_id", runID.String())

	chat, err := export.Load(r.cfg.InputPath, r.cfg.ChatID)
	if err != nil {
		return nil, fmt.Errorf("load export: %w", err)
	}
	logger.Info("export loaded",
		"path", r.cfg.InputPath,
		"chat_id", chat.ID,
		"chat", chat.Name,
		"messages", len(chat.Messages),
	)

	msgs := export.TextMessages(chat.Messages, r.cfg.IncludeMedia)
	export.SortByTime(msgs)
	logger.Info("text messages selected", "count", len(msgs), "include_media", r.cfg.IncludeMedia)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := thread.Resolve(msgs, thread.Options{
		Gap:    r.cfg.ThreadGap,
		Strict: r.cfg.StrictReplies,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve threads: %w", err)
	}
	for _, a := range res.Assignments {
		if a.Fallback != "" {
			logger.Debug("reply reference ignored", "message_id", a.MessageID, "reason", a.Fallback)
		}
	}
	if n := res.Fallbacks(); n > 0 {
		logger.Warn("reply references ignored", "count", n)
	}
	logger.Info("threads resolved", "conversations", res.Conversations())

	modelID := r.cfg.ModelFromID
	if modelID == "" {
		modelID = dataset.ModelIdentity(chat.ID)
	}
	rows, err := dataset.BuildRows(msgs, res, modelID)
	if err != nil {
		return nil, fmt.Errorf("build rows: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := dataset.WriteCSV(r.cfg.OutputPath, rows); err != nil {
		return nil, fmt.Errorf("write table: %w", err)
	}
	logger.Info("table written", "path", r.cfg.OutputPath, "rows", len(rows))

	var samples []dataset.Sample
	if r.cfg.SamplesPath != "" {
		samples = dataset.BuildSamples(rows, r.cfg.MaxContext)
		if err := dataset.WriteSamples(r.cfg.SamplesPath, samples); err != nil {
			return nil, fmt.Errorf("write samples: %w", err)
		}
		logger.Info("samples written",
			"path", r.cfg.SamplesPath,
			"samples", len(samples),
			"model_from_id", modelID,
			"max_context", r.cfg.MaxContext,
		)
	}

	for _, ns := range r.sinks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := ns.sink.WriteRows(ctx, runID, chat.ID, rows); err != nil {
			return nil, fmt.Errorf("sink %s: %w", ns.name, err)
		}
		logger.Info("sink written", "sink", ns.name, "rows", len(rows))
	}

	summary := &Summary{
		RunID:         runID,
		ChatID:        chat.ID,
		ChatName:      chat.Name,
		Messages:      len(chat.Messages),
		TextMessages:  len(msgs),
		Conversations: res.Conversations(),
		Fallbacks:     res.Fallbacks(),
		Samples:       len(samples),
		Sinks:         len(r.sinks),
		Duration:      time.Since(started),
	}

	r.publish(summary, logger)

	logger.Info("conversion complete",
		"messages", summary.Messages,
		"text_messages", summary.TextMessages,
		"conversations", summary.Conversations,
		"samples", summary.Samples,
		"duration", summary.Duration.String(),
	)
	return summary, nil
}

// publish announces the run. Failures only produce a warning: the table is
// already written.
func (r *Runner) publish(s *Summary, logger *slog.Logger) {
	if r.publisher == nil {
		return
	}
	evt := hermes.RunCompleted{
		RunID:         s.RunID.String(),
		ChatID:        s.ChatID,
		ChatName:      s.ChatName,
		Messages:      s.Messages,
		TextMessages:  s.TextMessages,
		Conversations: s.Conversations,
		Fallbacks:     s.Fallbacks,
		Samples:       s.Samples,
		Output:        r.cfg.OutputPath,
		SamplesOutput: r.cfg.SamplesPath,
		CompletedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.publisher.Publish(hermes.SubjectConversionCompleted, evt); err != nil {
		logger.Warn("failed to publish completion event", "error", err)
	}
}

// PrintSummary writes a human-readable run summary.
func PrintSummary(w io.Writer, s *Summary, cfg Config) {
	fmt.Fprintf(w, "\n=== Conversion Summary ===\n")
	fmt.Fprintf(w, "Run: %s\n", s.RunID)
	fmt.Fprintf(w, "Chat: %s (%d)\n", s.ChatName, s.ChatID)
	fmt.Fprintf(w, "Total messages: %d\n", s.Messages)
	fmt.Fprintf(w, "Text messages: %d\n", s.TextMessages)
	fmt.Fprintf(w, "Conversations: %d\n", s.Conversations)
	fmt.Fprintf(w, "Reply fallbacks: %d\n", s.Fallbacks)
	fmt.Fprintf(w, "Output: %s\n", cfg.OutputPath)
	if cfg.SamplesPath != "" {
		fmt.Fprintf(w, "Samples: %d (%s)\n", s.Samples, cfg.SamplesPath)
	}
	if s.Sinks > 0 {
		fmt.Fprintf(w, "Sinks: %d\n", s.Sinks)
	}
	fmt.Fprintf(w, "Duration: %s\n", s.Duration.Round(time.Millisecond))
}
