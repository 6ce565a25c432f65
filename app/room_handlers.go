package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warasin/roomsync/core"
	"github.com/warasin/roomsync/pkg/router"
	"github.com/warasin/roomsync/session"
)

type RoomHandler struct {
	resolver   *session.Resolver
	membership *session.Manager
	rooms      core.RoomStore
	messages   core.MessageStore
	profiles   core.ProfileStore
}

func NewRoomHandler(
	resolver *session.Resolver,
	membership *session.Manager,
	rooms core.RoomStore,
	messages core.MessageStore,
	profiles core.ProfileStore,
) *RoomHandler {
	return &RoomHandler{
		resolver:   resolver,
		membership: membership,
		rooms:      rooms,
		messages:   messages,
		profiles:   profiles,
	}
}

type RoomListResponse struct {
	Rooms []core.Room `json:"rooms"`
	// Degraded is set when one of the two room sources failed and the list
	// is partial.
	Degraded bool `json:"degraded,omitempty"`
}

func (h *RoomHandler) ListRoomsHandler(w http.ResponseWriter, r *http.Request) error {
	s := core.SessionFromRequest(r)

	rooms, err := h.resolver.AccessibleRooms(r.Context(), s.UserID)
	if rooms == nil && err != nil {
		return err
	}

	res := RoomListResponse{Rooms: rooms, Degraded: err != nil}
	if res.Rooms == nil {
		res.Rooms = []core.Room{}
	}
	if err := json.NewEncoder(w).Encode(res); err != nil {
		return fmt.Errorf("Encode: %w", err)
	}
	return nil
}

func (h *RoomHandler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) error {
	s := core.SessionFromRequest(r)

	var input session.CreateRoomInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	defer r.Body.Close()

	room, err := h.membership.Create(r.Context(), s.UserID, input)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return router.NewJsonError(http.StatusBadRequest, "invalid input")
		}
		return err
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(room); err != nil {
		return fmt.Errorf("Encode: %w", err)
	}
	return nil
}

type JoinRoomPayload struct {
	Code     string `json:"room_code"`
	RoomID   string `json:"room_id"`
	Password string `json:"password"`
}

type JoinRoomResponse struct {
	Membership *core.Membership `json:"membership"`
	// AlreadyMember reports the informational outcome of joining a room the
	// user is already in; it is not an error.
	AlreadyMember bool `json:"already_member,omitempty"`
}

func (h *RoomHandler) JoinRoomHandler(w http.ResponseWriter, r *http.Request) error {
	s := core.SessionFromRequest(r)

	var payload JoinRoomPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	defer r.Body.Close()

	membership, err := h.membership.Join(r.Context(), s.UserID,
		session.JoinRef{Code: payload.Code, RoomID: payload.RoomID}, payload.Password)
	if err != nil && !errors.Is(err, core.ErrAlreadyMember) {
		return err
	}

	res := JoinRoomResponse{
		Membership:    membership,
		AlreadyMember: errors.Is(err, core.ErrAlreadyMember),
	}
	if err := json.NewEncoder(w).Encode(res); err != nil {
		return fmt.Errorf("Encode: %w", err)
	}
	return nil
}

func (h *RoomHandler) DeleteRoomHandler(w http.ResponseWriter, r *http.Request) error {
	s := core.SessionFromRequest(r)

	if err := h.membership.Delete(r.Context(), s.UserID, chi.URLParam(r, "roomID")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *RoomHandler) LeaveRoomHandler(w http.ResponseWriter, r *http.Request) error {
	s := core.SessionFromRequest(r)

	if err := h.membership.Leave(r.Context(), s.UserID, chi.URLParam(r, "roomID")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// requireMemberOrCreator gates room-scoped reads and writes. Non-members
// get ErrRoomNotFound rather than a dedicated forbidden error, so the
// response does not confirm that the room exists.
func (h *RoomHandler) requireMemberOrCreator(ctx context.Context, userID, roomID string) error {
	isMember, err := h.rooms.IsMember(ctx, userID, roomID)
	if err != nil {
		return fmt.Errorf("IsMember: %w", err)
	}
	if isMember {
		return nil
	}
	room, err := h.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("GetRoomByID: %w", err)
	}
	if room == nil || room.CreatedBy != userID {
		return core.ErrRoomNotFound
	}
	return nil
}

func (h *RoomHandler) RoomMessagesHandler(w http.ResponseWriter, r *http.Request) error {
	s := core.SessionFromRequest(r)
	roomID := chi.URLParam(r, "roomID")

	if err := h.requireMemberOrCreator(r.Context(), s.UserID, roomID); err != nil {
		return err
	}

	messages, err := h.messages.RoomMessages(r.Context(), roomID)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []core.Message{}
	}
	if err := json.NewEncoder(w).Encode(messages); err != nil {
		return fmt.Errorf("Encode: %w", err)
	}
	return nil
}

type SendMessagePayload struct {
	Content string `json:"content"`
}

func (h *RoomHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) error {
	s := core.SessionFromRequest(r)
	roomID := chi.URLParam(r, "roomID")

	var payload SendMessagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	defer r.Body.Close()

	if err := h.requireMemberOrCreator(r.Context(), s.UserID, roomID); err != nil {
		return err
	}

	message, err := h.messages.SendMessage(r.Context(), core.MessageCreateInput{
		RoomID:  roomID,
		UserID:  s.UserID,
		Content: payload.Content,
	})
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return router.NewJsonError(http.StatusBadRequest, "invalid input")
		}
		return err
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(message); err != nil {
		return fmt.Errorf("Encode: %w", err)
	}
	return nil
}

func (h *RoomHandler) RoomMemberEmailsHandler(w http.ResponseWriter, r *http.Request) error {
	s := core.SessionFromRequest(r)
	roomID := chi.URLParam(r, "roomID")

	if err := h.requireMemberOrCreator(r.Context(), s.UserID, roomID); err != nil {
		return err
	}

	emails, err := h.profiles.RoomMemberEmails(r.Context(), roomID)
	if err != nil {
		return err
	}
	if emails == nil {
		emails = []string{}
	}
	if err := json.NewEncoder(w).Encode(emails); err != nil {
		return fmt.Errorf("Encode: %w", err)
	}
	return nil
}
