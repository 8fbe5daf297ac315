package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dimitrije/raidroom-api/internal/middleware"
	"github.com/dimitrije/raidroom-api/internal/models"
	"github.com/dimitrije/raidroom-api/internal/services"
	"github.com/dimitrije/raidroom-api/pkg/clock"
	"github.com/dimitrije/raidroom-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/sirupsen/logrus"
)

type RoomHandler struct {
	roomService RoomServiceInterface
	loc         *time.Location
	log         logrus.FieldLogger
	now         func() time.Time
}

func NewRoomHandler(roomService RoomServiceInterface, loc *time.Location, log logrus.FieldLogger) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
		loc:         loc,
		log:         log,
		now:         time.Now,
	}
}

// caller returns the authenticated user and the room id from the path. It
// writes the error response itself and reports false when either is missing.
func (h *RoomHandler) caller(c *drift.Context) (uuid.UUID, uuid.UUID, bool) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		middleware.Reject(c, "not authenticated")
		return uuid.Nil, uuid.Nil, false
	}

	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		respond(c, http.StatusBadRequest, CodeInvalidInput, "invalid room id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, roomID, true
}

func (h *RoomHandler) snapshot(c *drift.Context, status int, state *models.RoomState, userID uuid.UUID) {
	_ = c.JSON(status, snapshotResponse(state, userID, h.now(), h.loc))
}

func (h *RoomHandler) Create(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		middleware.Reject(c, "not authenticated")
		return
	}

	var req dto.CreateRoomRequest
	if err := c.BindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, CodeInvalidInput, "invalid request body")
		return
	}

	start, err := clock.ParseStart(req.StartTime, h.loc)
	if err != nil {
		respond(c, http.StatusBadRequest, CodeInvalidInput, err.Error())
		return
	}

	state, err := h.roomService.Create(c.Request.Context(), userID, services.CreateRoomInput{
		BossID:     req.BossID,
		StartTime:  start,
		MaxMembers: req.MaxMembers,
		Note:       req.Note,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.snapshot(c, http.StatusCreated, state, userID)
}

func (h *RoomHandler) List(c *drift.Context) {
	if middleware.GetUserID(c) == uuid.Nil {
		middleware.Reject(c, "not authenticated")
		return
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respond(c, http.StatusBadRequest, CodeInvalidInput, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	rooms, err := h.roomService.List(c.Request.Context(), c.QueryParam("status"), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response := make([]dto.RoomResponse, len(rooms))
	for i := range rooms {
		response[i] = roomResponse(&rooms[i], h.loc)
	}

	_ = c.JSON(http.StatusOK, response)
}

func (h *RoomHandler) Get(c *drift.Context) {
	userID, roomID, ok := h.caller(c)
	if !ok {
		return
	}

	state, err := h.roomService.Get(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.snapshot(c, http.StatusOK, state, userID)
}

func (h *RoomHandler) Join(c *drift.Context) {
	userID, roomID, ok := h.caller(c)
	if !ok {
		return
	}

	state, err := h.roomService.Join(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.snapshot(c, http.StatusOK, state, userID)
}

func (h *RoomHandler) Leave(c *drift.Context) {
	userID, roomID, ok := h.caller(c)
	if !ok {
		return
	}

	state, err := h.roomService.Leave(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.snapshot(c, http.StatusOK, state, userID)
}

func (h *RoomHandler) SetReady(c *drift.Context) {
	userID, roomID, ok := h.caller(c)
	if !ok {
		return
	}

	var req dto.SetReadyRequest
	if err := c.BindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, CodeInvalidInput, "invalid request body")
		return
	}

	state, err := h.roomService.SetReady(c.Request.Context(), roomID, userID, req.Ready, req.TargetUserID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.snapshot(c, http.StatusOK, state, userID)
}

func (h *RoomHandler) Invite(c *drift.Context) {
	userID, roomID, ok := h.caller(c)
	if !ok {
		return
	}

	state, err := h.roomService.Invite(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.snapshot(c, http.StatusOK, state, userID)
}

func (h *RoomHandler) Cancel(c *drift.Context) {
	userID, roomID, ok := h.caller(c)
	if !ok {
		return
	}

	state, err := h.roomService.Cancel(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.snapshot(c, http.StatusOK, state, userID)
}

func (h *RoomHandler) Close(c *drift.Context) {
	userID, roomID, ok := h.caller(c)
	if !ok {
		return
	}

	state, err := h.roomService.Close(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.snapshot(c, http.StatusOK, state, userID)
}

func (h *RoomHandler) Review(c *drift.Context) {
	userID, roomID, ok := h.caller(c)
	if !ok {
		return
	}

	var req dto.ReviewRequest
	if err := c.BindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, CodeInvalidInput, "invalid request body")
		return
	}

	state, err := h.roomService.Review(c.Request.Context(), roomID, userID, services.ReviewInput{
		Rating:        req.Rating,
		Comment:       req.Comment,
		Outcome:       req.Outcome,
		FailureReason: req.FailureReason,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.snapshot(c, http.StatusOK, state, userID)
}
