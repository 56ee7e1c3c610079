// Package callsvc talks to the relay's call-control REST API.
package callsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRejected     = errors.New("call service rejected request")
)

// Room is what the call service reports after a create or join.
type Room struct {
	ID           domain.RoomID
	Kind         domain.CallKind
	Participants []domain.Participant
}

type Service interface {
	CreateRoom(ctx context.Context, kind domain.CallKind) (Room, error)
	JoinRoom(ctx context.Context, id domain.RoomID) (Room, error)
	LeaveRoom(ctx context.Context, id domain.RoomID) error
}

type Client struct {
	base  string
	token string
	http  *http.Client
}

var _ Service = (*Client)(nil)

// New accepts the relay base url (http or https). A nil hc gets a 10s timeout client.
func New(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), token: token, http: hc}
}

func (c *Client) CreateRoom(ctx context.Context, kind domain.CallKind) (Room, error) {
	var st protocol.RoomState
	if err := c.do(ctx, http.MethodPost, "/api/rooms", protocol.CreateRoomRequest{Kind: kind}, &st); err != nil {
		return Room{}, fmt.Errorf("create room: %w", err)
	}
	return toRoom(st), nil
}

func (c *Client) JoinRoom(ctx context.Context, id domain.RoomID) (Room, error) {
	var st protocol.RoomState
	if err := c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(id.String())+"/join", nil, &st); err != nil {
		return Room{}, fmt.Errorf("join room %s: %w", id, err)
	}
	return toRoom(st), nil
}

func (c *Client) LeaveRoom(ctx context.Context, id domain.RoomID) error {
	if err := c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(id.String())+"/leave", nil, nil); err != nil {
		return fmt.Errorf("leave room %s: %w", id, err)
	}
	return nil
}

func toRoom(st protocol.RoomState) Room {
	r := Room{ID: st.RoomID, Kind: st.Kind}
	for _, e := range st.Participants {
		r.Participants = append(r.Participants, e.Participant())
	}
	return r
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var er protocol.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&er)
		log.Warn().
			Str("module", "callsvc").
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("error", er.Error).
			Msg("request failed")
		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrRoomNotFound
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict, http.StatusBadRequest:
			return fmt.Errorf("%w: %s %s", ErrRejected, resp.Status, er.Error)
		}
		return fmt.Errorf("call service: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
