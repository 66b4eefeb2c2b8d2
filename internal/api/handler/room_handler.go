package handler

import (
	"net/http"

	"code_duel/internal/api/middleware"
	"code_duel/internal/app/service"
	"code_duel/internal/common"

	"github.com/go-chi/chi/v5"
)

type RoomHandler struct {
	matchmaking *service.MatchmakingService
	matches     *service.MatchService
}

func NewRoomHandler(mm *service.MatchmakingService, ms *service.MatchService) *RoomHandler {
	return &RoomHandler{matchmaking: mm, matches: ms}
}

func (h *RoomHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Post("/", h.createRoom)             // POST /api/v1/rooms
	r.Post("/quickplay", h.joinQuickplay) // POST /api/v1/rooms/quickplay
	r.Post("/join", h.joinByCode)         // POST /api/v1/rooms/join
	r.Get("/{roomID}", h.getRoom)
	r.Post("/{roomID}/join", h.joinRoom)
	r.Post("/{roomID}/start", h.startMatch)
	r.Post("/{roomID}/rematch", h.rematch)
}

func (h *RoomHandler) createRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	var req service.CreateRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.matchmaking.CreateRoom(r.Context(), userID, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if res.Joined {
		status = http.StatusOK
	}
	common.RespondWithJSON(w, status, res)
}

func (h *RoomHandler) joinQuickplay(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	var req service.QuickplayRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.matchmaking.JoinQuickplay(r.Context(), userID, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, res)
}

func (h *RoomHandler) joinByCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	var req service.JoinByCodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	room, err := h.matchmaking.JoinRoomByCode(r.Context(), userID, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.matchmaking.GetRoom(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) joinRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	room, err := h.matchmaking.JoinRoom(r.Context(), chi.URLParam(r, "roomID"), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) startMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	res, err := h.matches.StartMatch(r.Context(), chi.URLParam(r, "roomID"), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, res)
}

func (h *RoomHandler) rematch(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	room, err := h.matchmaking.Rematch(r.Context(), chi.URLParam(r, "roomID"), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, room)
}
