package app

import (
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

var _ core.RoomManager = (*RoomManagerImpl)(nil)

func NewRoomManager() *RoomManagerImpl {
	return &RoomManagerImpl{rooms: make(map[domain.RoomID]core.RoomService)}
}

func (f *RoomManagerImpl) CreateRoom(kind domain.CallKind) core.RoomService {
	room := core.NewRoomService(&domain.Room{ID: domain.NewRoomID(), Kind: kind})
	f.mu.Lock()
	f.rooms[room.Room().ID] = room
	f.mu.Unlock()
	log.Info().Str("module", "app.rooms").Str("room", room.Room().ID.String()).Str("kind", string(kind)).Msg("room created")
	return room
}

func (f *RoomManagerImpl) GetRoom(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, r := range f.rooms {
		out = append(out, core.RoomInfo{ID: id, Kind: r.Room().Kind, MemberCount: r.MemberCount()})
	}
	slices.SortFunc(out, func(a, b core.RoomInfo) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}

func (f *RoomManagerImpl) StopRoom(id domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[id]; ok {
		delete(f.rooms, id)
		log.Info().Str("module", "app.rooms").Str("room", id.String()).Msg("room stopped")
	}
}
