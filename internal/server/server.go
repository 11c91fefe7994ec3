// Package server exposes the assistant's HTTP surface: requirement
// generation and refinement, approval with ticket fan-out, sprint planning
// and the audio chat flow. The server is stateless: clients carry the
// conversation history and submit it with each request.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"requirements-assistant/internal/models"
	"requirements-assistant/internal/parser"
	"requirements-assistant/internal/services"
	"requirements-assistant/internal/session"
	"requirements-assistant/internal/store"
	"requirements-assistant/internal/validator"
)

// chatTitleLen caps persisted chat titles.
const chatTitleLen = 200

// Server holds the services behind the HTTP handlers. Analysis, audio and
// chats may be nil when the corresponding backend is not configured; their
// endpoints then answer 503.
type Server struct {
	analysis   *services.AnalysisService
	sprint     *services.SprintService
	dispatcher *services.Dispatcher
	audio      *services.AudioService
	parser     parser.Parser
	chats      *store.Store
	logger     *slog.Logger
}

// New creates a new server.
func New(
	analysis *services.AnalysisService,
	sprint *services.SprintService,
	dispatcher *services.Dispatcher,
	audio *services.AudioService,
	p parser.Parser,
	chats *store.Store,
	logger *slog.Logger,
) *Server {
	return &Server{
		analysis:   analysis,
		sprint:     sprint,
		dispatcher: dispatcher,
		audio:      audio,
		parser:     p,
		chats:      chats,
		logger:     logger,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /start_analysis", s.handleStartAnalysis)
	mux.HandleFunc("POST /refine", s.handleRefine)
	mux.HandleFunc("POST /approve", s.handleApprove)
	mux.HandleFunc("POST /generate_sprint", s.handleGenerateSprint)
	mux.HandleFunc("POST /replan_sprint", s.handleReplanSprint)
	mux.HandleFunc("POST /send_sprint_to_jira", s.handleSendSprint)
	mux.HandleFunc("POST /audio_chat", s.handleAudioChat)
	mux.HandleFunc("GET /chats", s.handleListChats)
	mux.HandleFunc("GET /chats/{id}", s.handleChatMessages)
	return mux
}

type analysisRequest struct {
	ClientRequest string `json:"client_request"`
}

type analysisResponse struct {
	GeneratedRequirements string               `json:"generated_requirements"`
	History               []models.ChatMessage `json:"history"`
	ChatID                string               `json:"chat_id,omitempty"`
}

type refineRequest struct {
	Instruction string               `json:"instruction"`
	History     []models.ChatMessage `json:"history"`
	ChatID      string               `json:"chat_id,omitempty"`
}

type refineResponse struct {
	RefinedRequirements string               `json:"refined_requirements"`
	History             []models.ChatMessage `json:"history"`
	ChatID              string               `json:"chat_id,omitempty"`
}

type approveRequest struct {
	FinalRequirements string `json:"final_requirements"`
	OriginalRequest   string `json:"original_request"`
}

type createdTicket struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

type approveResponse struct {
	Message             string                 `json:"message"`
	CreatedTickets      []createdTicket        `json:"created_tickets"`
	FailedTickets       []models.TicketOutcome `json:"failed_tickets,omitempty"`
	InvalidRequirements []validator.Rejection  `json:"invalid_requirements,omitempty"`
}

type sprintRequest struct {
	UserStories []models.Requirement `json:"user_stories"`
}

type replanRequest struct {
	Tasks       []models.Task `json:"tasks"`
	Instruction string        `json:"instruction"`
}

type sendSprintRequest struct {
	SprintName string        `json:"sprint_name"`
	Tasks      []models.Task `json:"tasks"`
}

type sendSprintResponse struct {
	SprintID      *int     `json:"sprint_id"`
	CreatedIssues []string `json:"created_issues"`
	Errors        []string `json:"errors"`
}

type audioResponse struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Transcript      string  `json:"transcript"`
	LLMResponse     string  `json:"llm_response"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "API do Assistente de Requisitos está online.",
	})
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.analysis == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Cadeia de análise não inicializada.")
		return
	}

	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	conv, draft, err := s.analysis.Begin(r.Context(), req.ClientRequest)
	if err != nil {
		if errors.Is(err, session.ErrEmptyRequest) {
			s.writeError(w, http.StatusBadRequest, "client_request não pode ser vazio")
			return
		}
		s.writeUpstreamError(w, "start_analysis", err)
		return
	}

	resp := analysisResponse{
		GeneratedRequirements: draft,
		History:               toChatMessages(conv.Turns()),
	}
	resp.ChatID = s.persistNewChat(req.ClientRequest, conv.Turns())
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	if s.analysis == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Cadeia de análise não inicializada.")
		return
	}

	var req refineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	conv := session.Restore(toTurns(req.History))
	if conv.Phase() != session.Refining {
		s.writeError(w, http.StatusBadRequest, "histórico vazio: inicie a análise antes de refinar")
		return
	}

	revision, err := s.analysis.Refine(r.Context(), conv, req.Instruction)
	if err != nil {
		s.writeUpstreamError(w, "refine", err)
		return
	}

	if s.chats != nil && req.ChatID != "" {
		s.persistTurns(req.ChatID, []session.Turn{
			{Speaker: session.SpeakerUser, Text: req.Instruction},
			{Speaker: session.SpeakerAssistant, Text: revision},
		})
	}

	s.writeJSON(w, http.StatusOK, refineResponse{
		RefinedRequirements: revision,
		History:             toChatMessages(conv.Turns()),
		ChatID:              req.ChatID,
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	reqs, err := s.parser.Parse(req.FinalRequirements)
	if err != nil || len(reqs) == 0 {
		s.writeError(w, http.StatusBadRequest,
			"Nenhum requisito reconhecido. Verifique a formatação da resposta do assistente.")
		return
	}

	valid, invalid := validator.Partition(reqs)
	if len(invalid) > 0 {
		// All-or-nothing: one invalid unit blocks the whole batch.
		s.writeJSON(w, http.StatusOK, approveResponse{
			Message:             "Alguns requisitos precisam ser revisados antes de enviar ao Jira.",
			CreatedTickets:      []createdTicket{},
			InvalidRequirements: invalid,
		})
		return
	}

	outcomes := s.dispatcher.Dispatch(r.Context(), valid, req.OriginalRequest)
	succeeded, failed := models.CountOutcomes(outcomes)

	resp := approveResponse{CreatedTickets: []createdTicket{}}
	for _, o := range outcomes {
		if o.Succeeded() {
			resp.CreatedTickets = append(resp.CreatedTickets, createdTicket{Key: o.Key, Title: o.Title})
		} else {
			resp.FailedTickets = append(resp.FailedTickets, o)
		}
	}

	if failed > 0 {
		resp.Message = fmt.Sprintf("Processo concluído com %d erros e %d sucessos.", failed, succeeded)
	} else {
		resp.Message = fmt.Sprintf("Sucesso! %d tickets criados no Jira.", succeeded)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerateSprint(w http.ResponseWriter, r *http.Request) {
	var req sprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	tasks, err := s.sprint.Decompose(r.Context(), req.UserStories)
	if err != nil {
		s.writeUpstreamError(w, "generate_sprint", err)
		return
	}

	s.writeJSON(w, http.StatusOK, models.SprintPlan{SprintName: "Sprint 1", Tasks: tasks})
}

func (s *Server) handleReplanSprint(w http.ResponseWriter, r *http.Request) {
	var req replanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	tasks, err := s.sprint.Replan(r.Context(), req.Tasks, req.Instruction)
	if err != nil {
		s.writeUpstreamError(w, "replan_sprint", err)
		return
	}

	s.writeJSON(w, http.StatusOK, models.SprintPlan{SprintName: "Sprint 1", Tasks: tasks})
}

func (s *Server) handleSendSprint(w http.ResponseWriter, r *http.Request) {
	var req sendSprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	if req.SprintName == "" {
		req.SprintName = "Sprint 1"
	}

	result := s.sprint.SendSprint(r.Context(), req.SprintName, req.Tasks)

	resp := sendSprintResponse{
		SprintID:      result.SprintID,
		CreatedIssues: []string{},
		Errors:        []string{},
	}
	for _, o := range result.Outcomes {
		if o.Succeeded() {
			resp.CreatedIssues = append(resp.CreatedIssues, o.Key)
		} else {
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %s", o.SourceID, o.Error))
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAudioChat(w http.ResponseWriter, r *http.Request) {
	if s.audio == nil || s.analysis == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Transcrição de áudio não inicializada.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Nenhum arquivo enviado.")
		return
	}
	defer file.Close()

	suffix := filepath.Ext(header.Filename)
	if suffix == "" {
		suffix = ".wav"
	}
	tmp, err := os.CreateTemp("", "audio-*"+suffix)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "falha ao salvar o áudio")
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.ReadFrom(file); err != nil {
		tmp.Close()
		s.writeError(w, http.StatusInternalServerError, "falha ao salvar o áudio")
		return
	}
	tmp.Close()

	duration, transcript, err := s.audio.Transcribe(r.Context(), tmp.Name())
	if err != nil {
		var tooLong *services.AudioTooLongError
		if errors.As(err, &tooLong) {
			s.writeError(w, http.StatusBadRequest, tooLong.Error())
			return
		}
		s.writeUpstreamError(w, "audio_chat", err)
		return
	}

	answer, err := s.analysis.Answer(r.Context(), transcript)
	if err != nil {
		s.writeUpstreamError(w, "audio_chat", err)
		return
	}

	s.writeJSON(w, http.StatusOK, audioResponse{
		DurationSeconds: duration,
		Transcript:      transcript,
		LLMResponse:     answer,
	})
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	if s.chats == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Persistência de conversas desabilitada.")
		return
	}

	chats, err := s.chats.ListChats()
	if err != nil {
		s.logger.Error("listing chats failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "falha ao listar conversas")
		return
	}
	if chats == nil {
		chats = []store.Chat{}
	}
	s.writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	if s.chats == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Persistência de conversas desabilitada.")
		return
	}

	messages, err := s.chats.Messages(r.PathValue("id"))
	if err != nil {
		s.logger.Error("loading chat messages failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "falha ao carregar a conversa")
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	s.writeJSON(w, http.StatusOK, messages)
}

// persistNewChat stores a fresh conversation and returns its id, or "" when
// persistence is disabled or fails. Persistence failures never fail the
// request that produced the draft.
func (s *Server) persistNewChat(clientRequest string, turns []session.Turn) string {
	if s.chats == nil {
		return ""
	}

	title := clientRequest
	if runes := []rune(title); len(runes) > chatTitleLen {
		title = string(runes[:chatTitleLen])
	}

	chat, err := s.chats.CreateChat(title)
	if err != nil {
		s.logger.Warn("persisting chat failed", "error", err)
		return ""
	}
	s.persistTurns(chat.ID, turns)
	return chat.ID
}

func (s *Server) persistTurns(chatID string, turns []session.Turn) {
	for _, t := range turns {
		if err := s.chats.AppendMessage(chatID, t.Speaker, t.Text); err != nil {
			s.logger.Warn("persisting message failed", "chat_id", chatID, "error", err)
			return
		}
	}
}

func (s *Server) writeUpstreamError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, services.ErrUpstreamUnavailable) {
		s.logger.Warn("upstream unavailable", "op", op, "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "Serviço de geração indisponível. Tente novamente mais tarde.")
		return
	}
	s.logger.Error("request failed", "op", op, "error", err)
	s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Erro ao processar %s: %v", op, err))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writing response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}

func toChatMessages(turns []session.Turn) []models.ChatMessage {
	messages := make([]models.ChatMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, models.ChatMessage{Role: t.Speaker, Content: t.Text})
	}
	return messages
}

func toTurns(messages []models.ChatMessage) []session.Turn {
	turns := make([]session.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, session.Turn{Speaker: m.Role, Text: m.Content})
	}
	return turns
}
