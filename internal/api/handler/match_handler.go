package handler

import (
	"net/http"

	"code_duel/internal/api/middleware"
	"code_duel/internal/app/service"
	"code_duel/internal/common"

	"github.com/go-chi/chi/v5"
)

type MatchHandler struct {
	matches     *service.MatchService
	submissions *service.SubmissionService
	drafts      *service.DraftService
}

func NewMatchHandler(ms *service.MatchService, ss *service.SubmissionService, ds *service.DraftService) *MatchHandler {
	return &MatchHandler{matches: ms, submissions: ss, drafts: ds}
}

func (h *MatchHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Get("/{matchID}", h.getMatch)
	r.Post("/{matchID}/submissions", h.submit)
	r.Get("/{matchID}/submissions", h.listSubmissions)
	r.Get("/{matchID}/draft", h.getDraft)
	r.Put("/{matchID}/draft", h.saveDraft)
}

func (h *MatchHandler) getMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	view, err := h.matches.GetMatchView(r.Context(), chi.URLParam(r, "matchID"), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, view)
}

func (h *MatchHandler) submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	var req service.SubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.submissions.Submit(r.Context(), chi.URLParam(r, "matchID"), userID, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusAccepted, res) // evaluation is asynchronous
}

func (h *MatchHandler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	subs, err := h.submissions.ListMatchSubmissions(r.Context(), chi.URLParam(r, "matchID"), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, subs)
}

func (h *MatchHandler) getDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	d, err := h.drafts.GetDraft(r.Context(), chi.URLParam(r, "matchID"), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, d)
}

func (h *MatchHandler) saveDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	var req service.SaveDraftRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := h.drafts.SaveDraft(r.Context(), chi.URLParam(r, "matchID"), userID, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, d)
}
