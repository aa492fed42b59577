package usecase

import (
	"context"
	"fmt"
	"time"

	"maildigest-service/internal/domain/entity"
	"maildigest-service/internal/domain/repository"
	"maildigest-service/pkg/logger"
	"maildigest-service/pkg/metrics"

	"github.com/google/uuid"
)

// FetchOptions carries the standing filter set applied to every fetch.
type FetchOptions struct {
	UnreadOnly  bool
	StarredOnly bool
	Sender      string
	Keyword     string
	MaxResults  int64
}

// ReportPipeline drives one digest run: fetch, normalize, merge, score,
// compose, summarize, persist. Each invocation handles exactly one date and
// either persists exactly one report or returns a classified failure.
type ReportPipeline struct {
	mailRepo   repository.MailRepository
	messageLog repository.MessageLogRepository
	summarizer repository.SummarizerRepository
	normalizer *Normalizer
	merger     *ThreadMerger
	scorer     *ImportanceScorer
	composer   *PromptComposer
	assembler  *ReportAssembler
	fetchOpts  FetchOptions
	metrics    *metrics.Metrics
	logger     logger.Logger
}

// NewReportPipeline creates a new report pipeline
func NewReportPipeline(
	mailRepo repository.MailRepository,
	messageLog repository.MessageLogRepository,
	summarizer repository.SummarizerRepository,
	normalizer *Normalizer,
	merger *ThreadMerger,
	scorer *ImportanceScorer,
	composer *PromptComposer,
	assembler *ReportAssembler,
	fetchOpts FetchOptions,
	metrics *metrics.Metrics,
	logger logger.Logger,
) *ReportPipeline {
	return &ReportPipeline{
		mailRepo:   mailRepo,
		messageLog: messageLog,
		summarizer: summarizer,
		normalizer: normalizer,
		merger:     merger,
		scorer:     scorer,
		composer:   composer,
		assembler:  assembler,
		fetchOpts:  fetchOpts,
		metrics:    metrics,
		logger:     logger,
	}
}

// RunForDate runs the digest pipeline for one date and returns the persisted
// report id. A cancelled run writes nothing.
func (p *ReportPipeline) RunForDate(ctx context.Context, date time.Time) (uint, error) {
	start := time.Now()
	day := date.UTC().Truncate(24 * time.Hour)
	log := p.logger.With("runId", uuid.NewString(), "date", day.Format("2006-01-02"))

	log.Info("Starting digest pipeline run")

	reportID, err := p.run(ctx, day, log)

	p.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.PipelineRuns.WithLabelValues("failed").Inc()
		log.Error("Digest pipeline run failed", "error", err)
		return 0, err
	}

	p.metrics.PipelineRuns.WithLabelValues("completed").Inc()
	log.Info("Digest pipeline run completed",
		"reportId", reportID,
		"durationMs", time.Since(start).Milliseconds())
	return reportID, nil
}

func (p *ReportPipeline) run(ctx context.Context, day time.Time, log logger.Logger) (uint, error) {
	raws, err := p.mailRepo.FetchMessages(ctx, repository.MailQuery{
		From:        day,
		To:          day.Add(24 * time.Hour),
		UnreadOnly:  p.fetchOpts.UnreadOnly,
		StarredOnly: p.fetchOpts.StarredOnly,
		Sender:      p.fetchOpts.Sender,
		Keyword:     p.fetchOpts.Keyword,
		MaxResults:  p.fetchOpts.MaxResults,
	})
	if err != nil {
		p.metrics.ErrorsCount.WithLabelValues("fetch").Inc()
		return 0, fmt.Errorf("failed to fetch messages: %w", err)
	}
	log.Info("Fetched messages", "count", len(raws))

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// A day with no mail still gets a report, so "ran with nothing to say"
	// is never mistaken for "not yet run". The generation service is not
	// called.
	if len(raws) == 0 {
		log.Info("No messages for date, persisting placeholder report")
		return p.assembler.Persist(ctx, day, entity.EmptyGenerationResult(), nil)
	}

	canonical := p.normalizer.NormalizeBatch(raws)
	p.metrics.MessagesNormalized.Add(float64(len(canonical)))
	parseFailures := 0
	for _, msg := range canonical {
		if msg.ParseFailed {
			parseFailures++
		}
	}
	if parseFailures > 0 {
		log.Warn("Some message bodies fell back to snippets", "count", parseFailures)
	}

	// Archive what this report is built from. Best effort: the run does not
	// fail when the log store is unavailable.
	if err := p.messageLog.SaveBatch(ctx, day, canonical); err != nil {
		p.metrics.ErrorsCount.WithLabelValues("message_log").Inc()
		log.Warn("Failed to archive canonical messages", "error", err)
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	contexts := p.merger.Merge(canonical)
	p.metrics.ThreadsMerged.Add(float64(len(contexts)))

	ranked := p.scorer.Prioritize(contexts)
	if len(ranked) > 0 {
		log.Info("Conversations ranked",
			"threads", len(ranked),
			"topScore", ranked[0].Score,
			"topPriority", ranked[0].Priority)
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	request, skip := p.composer.Compose(day, ranked)

	var result *entity.GenerationResult
	if skip {
		result = entity.EmptyGenerationResult()
	} else {
		p.metrics.GenerationAttempts.Inc()
		result, err = p.summarizer.Summarize(ctx, request)
		if err != nil {
			p.metrics.ErrorsCount.WithLabelValues("generation").Inc()
			return 0, fmt.Errorf("generation failed: %w", err)
		}
		log.Info("Generation succeeded",
			"highlights", len(result.Highlights),
			"todos", len(result.Todos),
			"conversations", len(result.Conversations))
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// References follow the ranked order so the report lists the most
	// important conversations first.
	ordered := make([]*entity.ConversationContext, 0, len(ranked))
	for _, sc := range ranked {
		ordered = append(ordered, sc.Context)
	}

	reportID, err := p.assembler.Persist(ctx, day, result, ordered)
	if err != nil {
		p.metrics.ErrorsCount.WithLabelValues("persist").Inc()
		return 0, err
	}

	return reportID, nil
}
