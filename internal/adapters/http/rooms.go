package http

import (
	"errors"
	nethttp "net/http"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/auth"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type roomHandlers struct {
	orch *app.Orchestrator
}

func roomState(room core.RoomService) protocol.RoomState {
	snap := room.MembersSnapshot()
	out := protocol.RoomState{
		RoomID:       room.Room().ID,
		Kind:         room.Room().Kind,
		Participants: make([]protocol.RosterEntry, 0, len(snap)),
	}
	for _, m := range snap {
		out.Participants = append(out.Participants, protocol.RosterEntry{
			UserID:       m.ID,
			JoinedAt:     m.JoinedAt.UnixMilli(),
			AudioEnabled: m.AudioEnabled,
			VideoEnabled: m.VideoEnabled,
			Online:       m.Online,
		})
	}
	return out
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, protocol.ErrorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, app.ErrRoomNotFound):
		return nethttp.StatusNotFound
	case errors.Is(err, core.ErrNotMember):
		return nethttp.StatusConflict
	}
	return nethttp.StatusInternalServerError
}

func (h *roomHandlers) list(c *gin.Context) {
	infos := h.orch.Rooms.List()
	out := make([]protocol.RoomSummary, 0, len(infos))
	for _, info := range infos {
		out = append(out, protocol.RoomSummary{RoomID: info.ID, Kind: info.Kind, Participants: info.MemberCount})
	}
	c.JSON(nethttp.StatusOK, out)
}

func (h *roomHandlers) create(c *gin.Context) {
	user, _ := auth.UserFrom(c)
	var req protocol.CreateRoomRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, nethttp.StatusBadRequest, err)
			return
		}
	}
	kind, err := domain.ParseCallKind(string(req.Kind))
	if err != nil {
		abort(c, nethttp.StatusBadRequest, err)
		return
	}
	room := h.orch.CreateRoom(user, kind)
	log.Info().Str("module", "adapters.http").Str("room", room.Room().ID.String()).Str("user", user.ID.String()).Msg("room created")
	c.JSON(nethttp.StatusCreated, roomState(room))
}

func (h *roomHandlers) join(c *gin.Context) {
	user, _ := auth.UserFrom(c)
	room, err := h.orch.JoinRoom(user, domain.RoomID(c.Param("id")))
	if err != nil {
		abort(c, statusOf(err), err)
		return
	}
	c.JSON(nethttp.StatusOK, roomState(room))
}

func (h *roomHandlers) leave(c *gin.Context) {
	user, _ := auth.UserFrom(c)
	if err := h.orch.LeaveRoom(user.ID, domain.RoomID(c.Param("id"))); err != nil {
		abort(c, statusOf(err), err)
		return
	}
	c.Status(nethttp.StatusNoContent)
}
