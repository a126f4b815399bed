package study

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/studyowl-platform/studyowl/internal/credentials"
	"github.com/studyowl-platform/studyowl/internal/documents"
	"github.com/studyowl-platform/studyowl/internal/llm"
	"github.com/studyowl-platform/studyowl/internal/metrics"
	"github.com/studyowl-platform/studyowl/internal/usage"
)

const (
	// maxSourceTokens bounds how much extracted PDF text enters the prompt.
	maxSourceTokens = 24_000

	// maxAnswerTokens bounds completion length for question answering.
	maxAnswerTokens = 1024

	summarizePrompt = "You are a study assistant. Summarize the following course material " +
		"into concise study notes. Preserve definitions, formulas, and key facts. " +
		"Structure the notes with headings and bullet points."

	answerPrompt = "You are a study assistant helping with exam questions. " +
		"The student's study notes follow. Answer the question in the image using " +
		"these notes where relevant. State the answer first, then a short explanation.\n\n" +
		"Study notes:\n"
)

// ErrNoDocument is returned when answering is requested before any document
// has been analyzed.
var ErrNoDocument = errors.New("study: no analyzed document available")

// ErrDocumentNotFound is returned when the named document does not exist or
// belongs to another user.
var ErrDocumentNotFound = errors.New("study: document not found")

// ChatClient is the slice of the LLM client the orchestrators use.
type ChatClient interface {
	ChatCompletion(ctx context.Context, apiKey string, messages []llm.Message, maxTokens int) (*llm.ChatResult, error)
	Embed(ctx context.Context, apiKey, text string) ([]float32, llm.Usage, error)
	ChatModel() string
	EmbeddingModel() string
}

// Service orchestrates the two LLM flows: summarizing an uploaded PDF and
// answering a photographed question against a stored summary.
type Service struct {
	resolver  *credentials.Resolver
	chat      ChatClient
	docs      *documents.Service
	usage     *usage.Service
	extractor Extractor
}

// NewService creates a study Service.
func NewService(resolver *credentials.Resolver, chat ChatClient, docs *documents.Service, usageSvc *usage.Service, extractor Extractor) *Service {
	return &Service{
		resolver:  resolver,
		chat:      chat,
		docs:      docs,
		usage:     usageSvc,
		extractor: extractor,
	}
}

// AnalyzeResult is the outcome of a PDF analysis.
type AnalyzeResult struct {
	DocumentID uuid.UUID `json:"document_id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	Model      string    `json:"model"`
	Usage      llm.Usage `json:"usage"`
	Cost       float64   `json:"cost"`
}

// AnswerResult is the outcome of answering a photographed question.
// DocumentID is empty when the context came from inline analysis text.
type AnswerResult struct {
	Answer     string    `json:"answer"`
	DocumentID uuid.UUID `json:"document_id,omitzero"`
	Model      string    `json:"model"`
	Usage      llm.Usage `json:"usage"`
	Cost       float64   `json:"cost"`
}

// AnalyzePDF extracts the PDF's text, summarizes it, embeds the summary,
// stores the document, and records the usage. A ledger write failure after
// the LLM call succeeded is logged and does not fail the request.
func (s *Service) AnalyzePDF(ctx context.Context, userID uuid.UUID, filename string, pdf []byte) (*AnalyzeResult, error) {
	text, err := s.extractor.ExtractText(ctx, filename, pdf)
	if err != nil {
		return nil, fmt.Errorf("extracting PDF text: %w", err)
	}

	truncated, err := llm.Truncate(s.chat.ChatModel(), text, maxSourceTokens)
	if err != nil {
		slog.Warn("tokenizer unavailable, sending untruncated text", "error", err)
		truncated = text
	}

	apiKey := s.resolver.ResolveKey(ctx, &userID)
	personalKey := s.resolver.UsesPersonalKey(ctx, userID)

	messages := []llm.Message{
		llm.TextMessage(llm.RoleSystem, summarizePrompt),
		llm.TextMessage(llm.RoleUser, truncated),
	}

	result, err := s.chat.ChatCompletion(ctx, apiKey, messages, 0)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(usage.RequestTypeAnalyze, "error").Inc()
		return nil, fmt.Errorf("summarizing document: %w", err)
	}
	s.observeLLMCall(usage.RequestTypeAnalyze, result.Usage)

	cost := llm.CostFor(result.Model, result.Usage.PromptTokens, result.Usage.CompletionTokens)
	totalUsage := result.Usage

	// The embedding enables similarity search but is not essential; the
	// document is stored without one when the call fails.
	var embedding []float32
	if vec, embedUsage, err := s.chat.Embed(ctx, apiKey, result.Content); err != nil {
		slog.Warn("embedding summary failed, storing document without embedding", "error", err)
	} else {
		embedding = vec
		totalUsage.PromptTokens += embedUsage.PromptTokens
		totalUsage.TotalTokens += embedUsage.TotalTokens
		cost += llm.CostFor(s.chat.EmbeddingModel(), embedUsage.PromptTokens, 0)
	}

	doc := &documents.Document{
		UserID:     userID,
		Title:      titleFromFilename(filename),
		Summary:    result.Content,
		SourceText: truncated,
		Model:      result.Model,
		Embedding:  embedding,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("storing document: %w", err)
	}

	s.recordUsage(ctx, usage.Record{
		UserID:           userID,
		Endpoint:         usage.EndpointAnalyze,
		RequestType:      usage.RequestTypeAnalyze,
		Model:            result.Model,
		PromptTokens:     totalUsage.PromptTokens,
		CompletionTokens: totalUsage.CompletionTokens,
		Cost:             cost,
		UsedPersonalKey:  personalKey,
	})

	return &AnalyzeResult{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Summary:    result.Content,
		Model:      result.Model,
		Usage:      totalUsage,
		Cost:       cost,
	}, nil
}

// AnswerRequest carries a photographed exam question and its notes context.
// Analysis, when set, is the context itself and no stored document is
// consulted. Otherwise DocumentID names the document, nil meaning the user's
// latest.
type AnswerRequest struct {
	Image      []byte
	MimeType   string
	Question   string
	DocumentID *uuid.UUID
	Analysis   string
}

// AnswerQuestion answers a photographed exam question using study notes as
// context, taken either from a stored summary or from inline analysis text.
func (s *Service) AnswerQuestion(ctx context.Context, userID uuid.UUID, req AnswerRequest) (*AnswerResult, error) {
	notes := req.Analysis
	var docID uuid.UUID
	if notes == "" {
		var doc *documents.Document
		var err error
		if req.DocumentID != nil {
			doc, err = s.docs.Get(ctx, *req.DocumentID, userID)
		} else {
			doc, err = s.docs.Latest(ctx, userID)
		}
		if err != nil {
			return nil, fmt.Errorf("loading document: %w", err)
		}
		if doc == nil {
			if req.DocumentID != nil {
				return nil, ErrDocumentNotFound
			}
			return nil, ErrNoDocument
		}
		notes = doc.Summary
		docID = doc.ID
	}

	apiKey := s.resolver.ResolveKey(ctx, &userID)
	personalKey := s.resolver.UsesPersonalKey(ctx, userID)

	questionText := req.Question
	if questionText == "" {
		questionText = "Answer the question shown in this image."
	}

	dataURI := "data:" + req.MimeType + ";base64," + base64.StdEncoding.EncodeToString(req.Image)
	messages := []llm.Message{
		llm.TextMessage(llm.RoleSystem, answerPrompt+notes),
		{Role: llm.RoleUser, Content: []llm.ContentPart{
			{Type: "text", Text: questionText},
			llm.ImagePart(dataURI),
		}},
	}

	result, err := s.chat.ChatCompletion(ctx, apiKey, messages, maxAnswerTokens)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(usage.RequestTypeAnswer, "error").Inc()
		return nil, fmt.Errorf("answering question: %w", err)
	}
	s.observeLLMCall(usage.RequestTypeAnswer, result.Usage)

	cost := llm.CostFor(result.Model, result.Usage.PromptTokens, result.Usage.CompletionTokens)

	s.recordUsage(ctx, usage.Record{
		UserID:           userID,
		Endpoint:         usage.EndpointAnswer,
		RequestType:      usage.RequestTypeAnswer,
		Model:            result.Model,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		Cost:             cost,
		UsedPersonalKey:  personalKey,
	})

	return &AnswerResult{
		Answer:     result.Content,
		DocumentID: docID,
		Model:      result.Model,
		Usage:      result.Usage,
		Cost:       cost,
	}, nil
}

// recordUsage writes the ledger after an LLM call has already succeeded.
// The user got their result; a failed write must not take it away.
func (s *Service) recordUsage(ctx context.Context, rec usage.Record) {
	if err := s.usage.LogUsage(ctx, rec); err != nil {
		slog.Error("recording usage after successful LLM call",
			"error", err, "user_id", rec.UserID, "request_type", rec.RequestType)
	}
}

func (s *Service) observeLLMCall(requestType string, u llm.Usage) {
	metrics.LLMRequestsTotal.WithLabelValues(requestType, "success").Inc()
	metrics.LLMTokensTotal.WithLabelValues(requestType, "prompt").Add(float64(u.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(requestType, "completion").Add(float64(u.CompletionTokens))
}

func titleFromFilename(filename string) string {
	name := filename
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return "Untitled document"
	}
	return name
}
