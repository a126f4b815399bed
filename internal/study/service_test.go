package study

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyowl-platform/studyowl/internal/credentials"
	"github.com/studyowl-platform/studyowl/internal/documents"
	"github.com/studyowl-platform/studyowl/internal/llm"
	"github.com/studyowl-platform/studyowl/internal/usage"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(_ context.Context, _ string, _ []byte) (string, error) {
	return f.text, f.err
}

type fakeChat struct {
	reply     string
	usage     llm.Usage
	chatErr   error
	embedErr  error
	gotKey    string
	gotMsgs   []llm.Message
	chatCalls int
}

func (f *fakeChat) ChatCompletion(_ context.Context, apiKey string, messages []llm.Message, _ int) (*llm.ChatResult, error) {
	f.chatCalls++
	f.gotKey = apiKey
	f.gotMsgs = messages
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &llm.ChatResult{Content: f.reply, Model: "gpt-4o", Usage: f.usage}, nil
}

func (f *fakeChat) Embed(_ context.Context, _, _ string) ([]float32, llm.Usage, error) {
	if f.embedErr != nil {
		return nil, llm.Usage{}, f.embedErr
	}
	return []float32{0.1, 0.2}, llm.Usage{PromptTokens: 10, TotalTokens: 10}, nil
}

func (f *fakeChat) ChatModel() string      { return "gpt-4o" }
func (f *fakeChat) EmbeddingModel() string { return "text-embedding-3-small" }

type fakeDocRepo struct {
	docs map[uuid.UUID]*documents.Document
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: map[uuid.UUID]*documents.Document{}}
}

func (f *fakeDocRepo) Create(_ context.Context, doc *documents.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now()
	copied := *doc
	f.docs[doc.ID] = &copied
	return nil
}

func (f *fakeDocRepo) GetByID(_ context.Context, id, userID uuid.UUID) (*documents.Document, error) {
	doc, ok := f.docs[id]
	if !ok || doc.UserID != userID {
		return nil, nil
	}
	return doc, nil
}

func (f *fakeDocRepo) List(_ context.Context, _ uuid.UUID, _, _ int) ([]documents.Document, error) {
	return nil, nil
}

func (f *fakeDocRepo) Count(_ context.Context, _ uuid.UUID) (int64, error) { return 0, nil }

func (f *fakeDocRepo) Delete(_ context.Context, id, _ uuid.UUID) error {
	delete(f.docs, id)
	return nil
}

func (f *fakeDocRepo) SearchSimilar(_ context.Context, _ uuid.UUID, _ []float32, _ int, _ float64) ([]documents.SearchResult, error) {
	return nil, nil
}

func (f *fakeDocRepo) Latest(_ context.Context, userID uuid.UUID) (*documents.Document, error) {
	var latest *documents.Document
	for _, doc := range f.docs {
		if doc.UserID != userID {
			continue
		}
		if latest == nil || doc.CreatedAt.After(latest.CreatedAt) {
			latest = doc
		}
	}
	return latest, nil
}

type fakeUsageRepo struct {
	records []usage.Record
	logErr  error
}

func (f *fakeUsageRepo) LogUsage(_ context.Context, rec usage.Record) error {
	if f.logErr != nil {
		return f.logErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeUsageRepo) ResetDailyIfStale(_ context.Context, _ uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeUsageRepo) GetSummary(_ context.Context, _ uuid.UUID) (*usage.Summary, error) {
	return nil, nil
}

type fakeCredRepo struct {
	creds map[uuid.UUID]*credentials.StoredCredential
}

func (f *fakeCredRepo) Get(_ context.Context, userID uuid.UUID) (*credentials.StoredCredential, error) {
	return f.creds[userID], nil
}

func (f *fakeCredRepo) Set(_ context.Context, userID uuid.UUID, encrypted string) error {
	now := time.Now()
	f.creds[userID] = &credentials.StoredCredential{UserID: userID, Encrypted: encrypted, HasKey: true, SetAt: &now}
	return nil
}

func (f *fakeCredRepo) Clear(_ context.Context, userID uuid.UUID) error {
	delete(f.creds, userID)
	return nil
}

type fixture struct {
	svc       *Service
	chat      *fakeChat
	extractor *fakeExtractor
	docRepo   *fakeDocRepo
	usageRepo *fakeUsageRepo
	credRepo  *fakeCredRepo
	codec     *credentials.Codec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	codec, err := credentials.NewCodec("study-test-secret")
	require.NoError(t, err)

	credRepo := &fakeCredRepo{creds: map[uuid.UUID]*credentials.StoredCredential{}}
	resolver, err := credentials.NewResolver(credRepo, codec, "sk-default-key")
	require.NoError(t, err)

	chat := &fakeChat{
		reply: "Cell biology notes: mitochondria produce ATP.",
		usage: llm.Usage{PromptTokens: 2000, CompletionTokens: 400, TotalTokens: 2400},
	}
	extractor := &fakeExtractor{text: "Chapter 1: The cell is the basic unit of life."}
	docRepo := newFakeDocRepo()
	usageRepo := &fakeUsageRepo{}

	docSvc := documents.NewService(docRepo, nil)
	usageSvc := usage.NewService(usageRepo, nil)

	return &fixture{
		svc:       NewService(resolver, chat, docSvc, usageSvc, extractor),
		chat:      chat,
		extractor: extractor,
		docRepo:   docRepo,
		usageRepo: usageRepo,
		credRepo:  credRepo,
		codec:     codec,
	}
}

func TestService_AnalyzePDF(t *testing.T) {
	ctx := context.Background()

	t.Run("stores document and records usage", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()

		result, err := f.svc.AnalyzePDF(ctx, userID, "cell_biology.pdf", []byte("%PDF-1.4"))
		require.NoError(t, err)

		assert.Equal(t, "cell biology", result.Title)
		assert.Equal(t, "Cell biology notes: mitochondria produce ATP.", result.Summary)
		assert.Equal(t, "gpt-4o", result.Model)
		assert.Positive(t, result.Cost)

		require.Len(t, f.docRepo.docs, 1)
		stored := f.docRepo.docs[result.DocumentID]
		require.NotNil(t, stored)
		assert.Equal(t, userID, stored.UserID)
		assert.NotEmpty(t, stored.Embedding)

		require.Len(t, f.usageRepo.records, 1)
		rec := f.usageRepo.records[0]
		assert.Equal(t, usage.RequestTypeAnalyze, rec.RequestType)
		assert.Equal(t, usage.EndpointAnalyze, rec.Endpoint)
		assert.Equal(t, 2010, rec.PromptTokens) // chat prompt + embedding
		assert.Equal(t, 400, rec.CompletionTokens)
		assert.False(t, rec.UsedPersonalKey)
	})

	t.Run("uses the personal key when one is stored", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()

		encrypted, err := f.codec.Encrypt("sk-personal-key-xyz")
		require.NoError(t, err)
		require.NoError(t, f.credRepo.Set(ctx, userID, encrypted))

		_, err = f.svc.AnalyzePDF(ctx, userID, "notes.pdf", []byte("%PDF-1.4"))
		require.NoError(t, err)

		assert.Equal(t, "sk-personal-key-xyz", f.chat.gotKey)
		require.Len(t, f.usageRepo.records, 1)
		assert.True(t, f.usageRepo.records[0].UsedPersonalKey)
	})

	t.Run("extraction failure skips the LLM entirely", func(t *testing.T) {
		f := newFixture(t)
		f.extractor.err = errors.New("malformed PDF")

		_, err := f.svc.AnalyzePDF(ctx, uuid.New(), "broken.pdf", []byte("junk"))
		require.Error(t, err)

		assert.Zero(t, f.chat.chatCalls)
		assert.Empty(t, f.usageRepo.records)
		assert.Empty(t, f.docRepo.docs)
	})

	t.Run("LLM failure records nothing", func(t *testing.T) {
		f := newFixture(t)
		f.chat.chatErr = errors.New("rate limited")

		_, err := f.svc.AnalyzePDF(ctx, uuid.New(), "notes.pdf", []byte("%PDF-1.4"))
		require.Error(t, err)

		assert.Empty(t, f.usageRepo.records)
		assert.Empty(t, f.docRepo.docs)
	})

	t.Run("embedding failure still stores the document", func(t *testing.T) {
		f := newFixture(t)
		f.chat.embedErr = errors.New("embeddings unavailable")
		userID := uuid.New()

		result, err := f.svc.AnalyzePDF(ctx, userID, "notes.pdf", []byte("%PDF-1.4"))
		require.NoError(t, err)

		stored := f.docRepo.docs[result.DocumentID]
		require.NotNil(t, stored)
		assert.Empty(t, stored.Embedding)

		require.Len(t, f.usageRepo.records, 1)
		assert.Equal(t, 2000, f.usageRepo.records[0].PromptTokens)
	})

	t.Run("ledger failure does not lose the summary", func(t *testing.T) {
		f := newFixture(t)
		f.usageRepo.logErr = errors.New("database down")

		result, err := f.svc.AnalyzePDF(ctx, uuid.New(), "notes.pdf", []byte("%PDF-1.4"))
		require.NoError(t, err)
		assert.NotEmpty(t, result.Summary)
	})
}

func TestService_AnswerQuestion(t *testing.T) {
	ctx := context.Background()
	image := []byte{0xFF, 0xD8, 0xFF} // jpeg magic

	analyze := func(t *testing.T, f *fixture, userID uuid.UUID) uuid.UUID {
		t.Helper()
		result, err := f.svc.AnalyzePDF(ctx, userID, "notes.pdf", []byte("%PDF-1.4"))
		require.NoError(t, err)
		f.usageRepo.records = nil
		return result.DocumentID
	}

	t.Run("answers against the latest document", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()
		docID := analyze(t, f, userID)

		f.chat.reply = "The answer is B."
		result, err := f.svc.AnswerQuestion(ctx, userID, AnswerRequest{Image: image, MimeType: "image/jpeg"})
		require.NoError(t, err)

		assert.Equal(t, "The answer is B.", result.Answer)
		assert.Equal(t, docID, result.DocumentID)

		// System prompt carries the stored summary, user turn carries the image.
		require.Len(t, f.chat.gotMsgs, 2)
		assert.Contains(t, f.chat.gotMsgs[0].Content[0].Text, "mitochondria produce ATP")
		require.Len(t, f.chat.gotMsgs[1].Content, 2)
		assert.Equal(t, "image_url", f.chat.gotMsgs[1].Content[1].Type)
		assert.Contains(t, f.chat.gotMsgs[1].Content[1].ImageURL.URL, "data:image/jpeg;base64,")

		require.Len(t, f.usageRepo.records, 1)
		assert.Equal(t, usage.RequestTypeAnswer, f.usageRepo.records[0].RequestType)
		assert.Equal(t, usage.EndpointAnswer, f.usageRepo.records[0].Endpoint)
	})

	t.Run("explicit document selection", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()
		docID := analyze(t, f, userID)

		result, err := f.svc.AnswerQuestion(ctx, userID, AnswerRequest{
			Image: image, MimeType: "image/jpeg", Question: "Which organelle?", DocumentID: &docID,
		})
		require.NoError(t, err)
		assert.Equal(t, docID, result.DocumentID)
		assert.Equal(t, "Which organelle?", f.chat.gotMsgs[1].Content[0].Text)
	})

	t.Run("inline analysis replaces the stored document", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()

		// No document was ever analyzed; the supplied notes are the context.
		result, err := f.svc.AnswerQuestion(ctx, userID, AnswerRequest{
			Image: image, MimeType: "image/jpeg",
			Analysis: "Osmosis moves water across a membrane.",
		})
		require.NoError(t, err)

		assert.Equal(t, uuid.Nil, result.DocumentID)
		assert.Contains(t, f.chat.gotMsgs[0].Content[0].Text, "Osmosis moves water")

		require.Len(t, f.usageRepo.records, 1)
		assert.Equal(t, usage.EndpointAnswer, f.usageRepo.records[0].Endpoint)
	})

	t.Run("no documents yet", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.AnswerQuestion(ctx, uuid.New(), AnswerRequest{Image: image, MimeType: "image/jpeg"})
		assert.ErrorIs(t, err, ErrNoDocument)
	})

	t.Run("unknown document id", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()
		analyze(t, f, userID)

		unknown := uuid.New()
		_, err := f.svc.AnswerQuestion(ctx, userID, AnswerRequest{
			Image: image, MimeType: "image/jpeg", DocumentID: &unknown,
		})
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})

	t.Run("cannot read another user's document", func(t *testing.T) {
		f := newFixture(t)
		owner := uuid.New()
		docID := analyze(t, f, owner)

		_, err := f.svc.AnswerQuestion(ctx, uuid.New(), AnswerRequest{
			Image: image, MimeType: "image/jpeg", DocumentID: &docID,
		})
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"cell_biology.pdf", "cell biology"},
		{"exam-prep-2024.pdf", "exam prep 2024"},
		{"notes", "notes"},
		{"", "Untitled document"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, titleFromFilename(tt.input), "input %q", tt.input)
	}
}
