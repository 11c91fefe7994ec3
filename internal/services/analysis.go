package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"requirements-assistant/internal/parser"
	"requirements-assistant/internal/session"
)

// analystPromptTemplate drives the initial requirement generation. The strict
// formatting rules must stay in sync with the markers the parser and the
// validator recognize.
const analystPromptTemplate = `Sua tarefa é atuar como um Analista de Requisitos Sênior.
Com base no contexto (documentos de template e exemplos) e na solicitação do cliente abaixo, gere uma lista de Requisitos Funcionais como User Stories.

**REGRAS ESTRITAS DE FORMATAÇÃO:**
1.  **NÃO** inclua nenhum título, cabeçalho, introdução ou texto de conclusão. Sua resposta deve começar IMEDIATAMENTE com o primeiro "**Como um:**".
2.  Cada User Story DEVE seguir o formato: "**Como um:**...", "**Eu quero:**...", "**Para que:**...".
3.  CADA User Story DEVE ter uma seção "**Critérios de Aceite:**" com pelo menos 2 critérios.

---
Solicitação do Cliente: "%s"
---
`

// refinementPromptTemplate reapplies the formatting rules over the full
// conversation history plus the new instruction.
const refinementPromptTemplate = `Histórico da conversa:
---
%s
---
Nova instrução do usuário: %s
---
Com base no histórico e na nova instrução, refine a última resposta do assistente.

**REGRAS ESTRITAS DE FORMATAÇÃO (APLIQUE NOVAMENTE):**
1.  **NÃO** inclua nenhum título, cabeçalho, introdução ou texto de conclusão. Sua resposta deve começar IMEDIATAMENTE com o primeiro "**Como um:**".
2.  Cada User Story DEVE seguir o formato: "**Como um:**...", "**Eu quero:**...", "**Para que:**...".
3.  CADA User Story DEVE ter uma seção "**Critérios de Aceite:**" com pelo menos 2 critérios.
`

// ragTemplate wraps a question with retrieved context.
const ragTemplate = `Contexto: %s
---
Pergunta: %s
---
Use o contexto para responder a pergunta. Se não souber, diga "Eu não sei". Responda em Português.
Resposta:
`

// AnalysisService runs the begin/refine conversation flows: fetch context,
// build the prompt, call the generation oracle, normalize the output and
// advance the session.
type AnalysisService struct {
	retriever Retriever
	generator Generator
	topK      int
	logger    *slog.Logger
}

// NewAnalysisService creates a new analysis service. A nil retriever disables
// retrieval; prompts are then sent without context.
func NewAnalysisService(retriever Retriever, generator Generator, topK int, logger *slog.Logger) *AnalysisService {
	return &AnalysisService{
		retriever: retriever,
		generator: generator,
		topK:      topK,
		logger:    logger,
	}
}

// Begin analyzes the first client request and returns the started
// conversation together with the generated draft.
func (s *AnalysisService) Begin(ctx context.Context, clientRequest string) (*session.Conversation, string, error) {
	if strings.TrimSpace(clientRequest) == "" {
		return nil, "", session.ErrEmptyRequest
	}

	prompt := fmt.Sprintf(analystPromptTemplate, clientRequest)
	draft, err := s.generate(ctx, clientRequest, prompt)
	if err != nil {
		return nil, "", err
	}
	draft = parser.Normalize(draft)

	conv := session.New()
	if err := conv.Begin(clientRequest, draft); err != nil {
		return nil, "", err
	}

	s.logger.Info("initial analysis completed", "request_chars", len(clientRequest))
	return conv, draft, nil
}

// Refine runs one refinement round against the full turn history and appends
// the new pair of turns to the conversation.
func (s *AnalysisService) Refine(ctx context.Context, conv *session.Conversation, instruction string) (string, error) {
	prompt := fmt.Sprintf(refinementPromptTemplate, conv.FormattedHistory(), instruction)
	revision, err := s.generate(ctx, instruction, prompt)
	if err != nil {
		return "", err
	}
	revision = parser.Normalize(revision)

	if err := conv.Refine(instruction, revision); err != nil {
		return "", err
	}

	s.logger.Info("refinement completed")
	return revision, nil
}

// Answer responds to a free question over the document corpus, used by the
// audio flow.
func (s *AnalysisService) Answer(ctx context.Context, question string) (string, error) {
	answer, err := s.generate(ctx, question, question)
	if err != nil {
		return "", err
	}
	return parser.Normalize(answer), nil
}

// generate fetches context for the query and completes the prompt. Retrieval
// failures are upstream failures; an empty context is not.
func (s *AnalysisService) generate(ctx context.Context, query, prompt string) (string, error) {
	if s.retriever != nil {
		snippets, err := s.retriever.Fetch(ctx, query, s.topK)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		if len(snippets) > 0 {
			prompt = fmt.Sprintf(ragTemplate, strings.Join(snippets, "\n\n"), prompt)
		}
	}
	return s.generator.Complete(ctx, prompt)
}
