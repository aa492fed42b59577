package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"maildigest-service/internal/domain/entity"
	"maildigest-service/internal/domain/repository"
	"maildigest-service/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Metrics register globally, so the package shares one instance.
var testMetrics = metrics.NewMetrics("maildigest_test")

type fakeMailRepo struct {
	messages []*entity.RawMessage
	err      error
	queries  []repository.MailQuery
}

func (f *fakeMailRepo) FetchMessages(_ context.Context, query repository.MailQuery) ([]*entity.RawMessage, error) {
	f.queries = append(f.queries, query)
	return f.messages, f.err
}

type fakeMessageLog struct {
	saved []*entity.CanonicalMessage
	err   error
}

func (f *fakeMessageLog) SaveBatch(_ context.Context, _ time.Time, messages []*entity.CanonicalMessage) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, messages...)
	return nil
}

func (f *fakeMessageLog) FindByReportDate(_ context.Context, _ time.Time) ([]*entity.CanonicalMessage, error) {
	return f.saved, nil
}

type fakeSummarizer struct {
	result   *entity.GenerationResult
	err      error
	calls    int
	requests []*entity.GenerationRequest
}

func (f *fakeSummarizer) Summarize(_ context.Context, request *entity.GenerationRequest) (*entity.GenerationResult, error) {
	f.calls++
	f.requests = append(f.requests, request)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type storedReport struct {
	result *entity.GenerationResult
	refs   []*entity.EmailReference
}

type fakeReportRepo struct {
	reports map[string]*storedReport
	nextID  uint
	upserts int
	err     error
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{reports: make(map[string]*storedReport)}
}

func (f *fakeReportRepo) UpsertByDate(_ context.Context, date time.Time, result *entity.GenerationResult, refs []*entity.EmailReference) (uint, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.upserts++
	key := date.UTC().Format("2006-01-02")
	if _, exists := f.reports[key]; !exists {
		f.nextID++
	}
	f.reports[key] = &storedReport{result: result, refs: refs}
	return f.nextID, nil
}

func (f *fakeReportRepo) GetByDate(_ context.Context, date time.Time) (*entity.Report, error) {
	stored, ok := f.reports[date.UTC().Format("2006-01-02")]
	if !ok {
		return nil, nil
	}
	return &entity.Report{Result: stored.result, References: stored.refs}, nil
}

func (f *fakeReportRepo) ListReports(_ context.Context, _, _ *time.Time) ([]*entity.ReportSummary, error) {
	return nil, nil
}

func validResult() *entity.GenerationResult {
	return &entity.GenerationResult{
		Highlights: []string{"Server incident resolved"},
		Todos:      []string{"Reply to the billing question"},
		Conversations: []entity.ConversationSummary{
			{ThreadID: "t-incident", Category: entity.CategoryActionRequired, Summary: "Production incident thread", NextStep: "Monitor the deploy"},
		},
	}
}

func digestDay() time.Time {
	return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
}

func newTestPipeline(mail *fakeMailRepo, msgLog *fakeMessageLog, summarizer *fakeSummarizer, reports *fakeReportRepo) *ReportPipeline {
	log := testLogger()
	return NewReportPipeline(
		mail,
		msgLog,
		summarizer,
		NewNormalizer(log),
		NewThreadMerger(0, log),
		NewImportanceScorer(DefaultRuleTable(), 0, 0, log),
		NewPromptComposer(0, log),
		NewReportAssembler(reports, log),
		FetchOptions{},
		testMetrics,
		log,
	)
}

func sampleRawMessages(day time.Time) []*entity.RawMessage {
	return []*entity.RawMessage{
		{
			MessageID: "m1", ThreadID: "t-incident",
			Subject: "Urgent: production down",
			From:    "Ops <ops@example.com>", To: "me@example.com",
			ReceivedAt: day.Add(9 * time.Hour),
			Body:       "The API is returning errors, action required.",
			Labels:     []string{"INBOX", "UNREAD", "IMPORTANT"},
		},
		{
			MessageID: "m2", ThreadID: "t-incident",
			Subject: "Re: Urgent: production down",
			From:    "Dev <dev@example.com>", To: "me@example.com",
			ReceivedAt: day.Add(10 * time.Hour),
			HTMLBody:   "<p>Fix is <b>deployed</b>.</p>",
			Labels:     []string{"INBOX"},
		},
		{
			MessageID: "m3", ThreadID: "t-newsletter",
			Subject: "Weekly digest",
			From:    "news@example.org", To: "me@example.com",
			ReceivedAt: day.Add(6 * time.Hour),
			Body:       "This week in tech.",
			Labels:     []string{"INBOX"},
		},
		{
			MessageID: "m4", ThreadID: "t-billing",
			Subject: "Invoice overdue",
			From:    "billing@shop.example", To: "me@example.com",
			ReceivedAt: day.Add(8 * time.Hour),
			Body:       "Your payment deadline is tomorrow.",
			Labels:     []string{"INBOX", "UNREAD"},
		},
	}
}

func TestRunForDateEndToEnd(t *testing.T) {
	day := digestDay()
	mail := &fakeMailRepo{messages: sampleRawMessages(day)}
	msgLog := &fakeMessageLog{}
	summarizer := &fakeSummarizer{result: validResult()}
	reports := newFakeReportRepo()

	pipeline := newTestPipeline(mail, msgLog, summarizer, reports)

	reportID, err := pipeline.RunForDate(context.Background(), day.Add(15*time.Hour))
	require.NoError(t, err)
	assert.NotZero(t, reportID)

	// One fetch covering exactly the report day.
	require.Len(t, mail.queries, 1)
	assert.Equal(t, day, mail.queries[0].From)
	assert.Equal(t, day.Add(24*time.Hour), mail.queries[0].To)

	// All messages archived in canonical form.
	assert.Len(t, msgLog.saved, 4)

	// One generation call whose prompt carries all three threads.
	require.Equal(t, 1, summarizer.calls)
	prompt := summarizer.requests[0].UserPrompt
	assert.Contains(t, prompt, "3 conversations follow")
	// The urgent thread outranks the newsletter and is rendered first.
	incident := strings.Index(prompt, "thread t-incident")
	newsletter := strings.Index(prompt, "thread t-newsletter")
	assert.True(t, incident >= 0 && newsletter >= 0 && incident < newsletter)

	// Exactly one report with one reference per message.
	stored, err := reports.GetByDate(context.Background(), day)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, validResult(), stored.Result)
	require.Len(t, stored.References, 4)
	// References follow ranked thread order; the incident messages come first.
	assert.Equal(t, "m1", stored.References[0].MessageID)
	assert.Equal(t, "m2", stored.References[1].MessageID)
	assert.Contains(t, stored.References[0].DeepLink, "m1")
}

func TestRunForDateZeroMessages(t *testing.T) {
	mail := &fakeMailRepo{}
	summarizer := &fakeSummarizer{result: validResult()}
	reports := newFakeReportRepo()

	pipeline := newTestPipeline(mail, &fakeMessageLog{}, summarizer, reports)

	reportID, err := pipeline.RunForDate(context.Background(), digestDay())
	require.NoError(t, err)
	assert.NotZero(t, reportID)

	// The generation service is never called for an empty day.
	assert.Equal(t, 0, summarizer.calls)

	stored, err := reports.GetByDate(context.Background(), digestDay())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, entity.EmptyGenerationResult(), stored.Result)
	assert.Empty(t, stored.References)
}

func TestRunForDateIsIdempotent(t *testing.T) {
	day := digestDay()
	mail := &fakeMailRepo{messages: sampleRawMessages(day)}
	summarizer := &fakeSummarizer{result: validResult()}
	reports := newFakeReportRepo()

	pipeline := newTestPipeline(mail, &fakeMessageLog{}, summarizer, reports)

	first, err := pipeline.RunForDate(context.Background(), day)
	require.NoError(t, err)
	second, err := pipeline.RunForDate(context.Background(), day)
	require.NoError(t, err)

	// Re-running the same date replaces the report instead of adding one.
	assert.Equal(t, first, second)
	assert.Len(t, reports.reports, 1)
	assert.Equal(t, 2, reports.upserts)
}

func TestRunForDateFetchFailure(t *testing.T) {
	mail := &fakeMailRepo{err: errors.New("gmail unavailable")}
	reports := newFakeReportRepo()

	pipeline := newTestPipeline(mail, &fakeMessageLog{}, &fakeSummarizer{}, reports)

	_, err := pipeline.RunForDate(context.Background(), digestDay())
	require.Error(t, err)
	assert.Empty(t, reports.reports)
}

func TestRunForDateGenerationFailureWritesNothing(t *testing.T) {
	day := digestDay()
	mail := &fakeMailRepo{messages: sampleRawMessages(day)}
	summarizer := &fakeSummarizer{err: &entity.GenerationError{
		Class:    entity.FailureRateLimited,
		Status:   429,
		Attempts: 3,
	}}
	reports := newFakeReportRepo()

	pipeline := newTestPipeline(mail, &fakeMessageLog{}, summarizer, reports)

	_, err := pipeline.RunForDate(context.Background(), day)
	require.Error(t, err)

	var genErr *entity.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, entity.FailureRateLimited, genErr.Class)

	// A failed run leaves no partial report behind.
	assert.Empty(t, reports.reports)
}

func TestRunForDateMessageLogFailureIsNotFatal(t *testing.T) {
	day := digestDay()
	mail := &fakeMailRepo{messages: sampleRawMessages(day)}
	msgLog := &fakeMessageLog{err: errors.New("mongo down")}
	reports := newFakeReportRepo()

	pipeline := newTestPipeline(mail, msgLog, &fakeSummarizer{result: validResult()}, reports)

	_, err := pipeline.RunForDate(context.Background(), day)
	require.NoError(t, err)
	assert.Len(t, reports.reports, 1)
}

func TestRunForDateCancelledContext(t *testing.T) {
	day := digestDay()
	mail := &fakeMailRepo{messages: sampleRawMessages(day)}
	reports := newFakeReportRepo()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline := newTestPipeline(mail, &fakeMessageLog{}, &fakeSummarizer{result: validResult()}, reports)

	_, err := pipeline.RunForDate(ctx, day)
	require.Error(t, err)
	assert.Empty(t, reports.reports)
}
