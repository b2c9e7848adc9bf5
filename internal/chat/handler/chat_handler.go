// Package handler exposes the chat service over HTTP/JSON.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"gochat/internal/chat/service"
	"gochat/internal/common"
	"gochat/internal/dbmysql"
	"gochat/internal/logger"
)

const maxBodyBytes = 1 << 20

type ChatHandler struct {
	chatService service.ChatService
}

func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// RegisterRoutes mounts the chat endpoints on an authenticated router.
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/conversations", h.listConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations", h.createGroup).Methods(http.MethodPost)
	r.HandleFunc("/conversations/direct", h.openDirect).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id:[0-9]+}/pin", h.setPinned).Methods(http.MethodPut)
	r.HandleFunc("/conversations/{id:[0-9]+}/mute", h.setMuted).Methods(http.MethodPut)
	r.HandleFunc("/conversations/{id:[0-9]+}/unread", h.unreadCount).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id:[0-9]+}/messages", h.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id:[0-9]+}/messages", h.history).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id:[0-9]+}/read", h.markRead).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id:[0-9]+}/read-all", h.markAllRead).Methods(http.MethodPost)

	r.HandleFunc("/messages/{id:[0-9]+}", h.getMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id:[0-9]+}", h.editMessage).Methods(http.MethodPatch)
	r.HandleFunc("/messages/{id:[0-9]+}", h.deleteForMe).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id:[0-9]+}/everyone", h.deleteForEveryone).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id:[0-9]+}/status", h.advanceStatus).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id:[0-9]+}/receipts", h.receipts).Methods(http.MethodGet)

	r.HandleFunc("/forward", h.forward).Methods(http.MethodPost)
}

type envelope struct {
	Data interface{} `json:"data"`
	Meta interface{} `json:"meta,omitempty"`
}

// cursorMeta.Cursor is null when there is nothing further to read.
type cursorMeta struct {
	Cursor  *string `json:"cursor"`
	HasMore bool    `json:"has_more"`
}

func respond(w http.ResponseWriter, code int, data interface{}) {
	common.WriteJSON(w, code, envelope{Data: data})
}

// actor returns the authenticated user or writes a 401.
func actor(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "Unauthenticated", "authorization required")
	}
	return userID, ok
}

func pathID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, common.Validationf("invalid id")
	}
	return id, nil
}

// decode reads a JSON body into v and runs the struct validators.
func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return common.Validationf("invalid JSON body")
	}
	return common.Validate(v)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, common.Validationf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func (h *ChatHandler) listConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	list, err := h.chatService.ListForUser(r.Context(), userID)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, list)
}

func (h *ChatHandler) openDirect(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	var req createDirectRequest
	if err := decode(r, &req); err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	conv, err := h.chatService.FindOrCreateDirect(r.Context(), userID, req.UserID)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, conv)
}

func (h *ChatHandler) createGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	var req createGroupRequest
	if err := decode(r, &req); err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	conv, err := h.chatService.CreateGroup(r.Context(), userID, dbmysql.ConversationKind(req.Kind), req.Title, req.MemberIDs)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusCreated, conv)
}

func (h *ChatHandler) setPinned(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	conversationID, err := pathID(r)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	var req pinRequest
	if err := decode(r, &req); err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	member, err := h.chatService.SetPinned(r.Context(), conversationID, userID, *req.Pinned)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, member)
}

func (h *ChatHandler) setMuted(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	conversationID, err := pathID(r)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	var req muteRequest
	if err := decode(r, &req); err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	member, err := h.chatService.SetMuted(r.Context(), conversationID, userID, req.Until)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, member)
}

func (h *ChatHandler) unreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	conversationID, err := pathID(r)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	n, err := h.chatService.UnreadCount(r.Context(), conversationID, userID)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, unreadResponse{ConversationID: conversationID, Unread: n})
}

func (h *ChatHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	conversationID, err := pathID(r)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	var req sendMessageRequest
	if err := decode(r, &req); err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}

	in := service.SendInput{
		ConversationID: conversationID,
		SenderID:       userID,
		Body:           req.Body,
		ReplyTo:        req.ReplyTo,
		ForwardFrom:    req.ForwardFrom,
		ClientUUID:     req.ClientUUID,
		TTL:            time.Duration(req.TTLSeconds) * time.Second,
	}
	for _, a := range req.Attachments {
		in.Attachments = append(in.Attachments, service.AttachmentInput{
			StorageRef: a.StorageRef,
			MimeType:   a.MimeType,
			SizeBytes:  a.SizeBytes,
			FileName:   a.FileName,
		})
	}

	msg, replay, err := h.chatService.Send(r.Context(), in)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	if replay {
		logger.FromContext(r.Context()).Debug().Uint64("message_id", msg.ID).Msg("duplicate send replayed")
		respond(w, http.StatusOK, msg)
		return
	}
	respond(w, http.StatusCreated, msg)
}

func (h *ChatHandler) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	conversationID, err := pathID(r)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}

	q := service.HistoryQuery{Cursor: r.URL.Query().Get("cursor")}
	for key, dst := range map[string]*int{"limit": &q.Limit, "page": &q.Page, "per_page": &q.PerPage} {
		if *dst, err = queryInt(r, key); err != nil {
			common.WriteAppError(r.Context(), w, err)
			return
		}
	}

	page, err := h.chatService.History(r.Context(), conversationID, userID, q)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	if page.Page != nil {
		common.WriteJSON(w, http.StatusOK, envelope{Data: page.Messages, Meta: page.Page})
		return
	}
	meta := cursorMeta{HasMore: page.HasMore}
	if page.NextCursor != "" {
		meta.Cursor = &page.NextCursor
	}
	common.WriteJSON(w, http.StatusOK, envelope{Data: page.Messages, Meta: meta})
}

func (h *ChatHandler) markRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	conversationID, err := pathID(r)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	var req markReadRequest
	if err := decode(r, &req); err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	advanced, err := h.chatService.MarkRead(r.Context(), conversationID, userID, req.MessageIDs)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, markReadResponse{Advanced: advanced})
}

func (h *ChatHandler) markAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	conversationID, err := pathID(r)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	last, err := h.chatService.MarkAllRead(r.Context(), conversationID, userID)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, markAllReadResponse{ConversationID: conversationID, LastReadMessageID: last})
}

func (h *ChatHandler) getMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	messageID, err := pathID(r)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	msg, err := h.chatService.Get(r.Context(), messageID, userID)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, msg)
}

func (h *ChatHandler) editMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	messageID, err := pathID(r)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	var req editRequest
	if err := decode(r, &req); err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	msg, err := h.chatService.EditBody(r.Context(), messageID, userID, req.Body)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, msg)
}

func (h *ChatHandler) deleteForMe(w http.ResponseWriter, r *http.Request) {
	h.deleteMessage(w, r, h.chatService.DeleteForMe)
}

func (h *ChatHandler) deleteForEveryone(w http.ResponseWriter, r *http.Request) {
	h.deleteMessage(w, r, h.chatService.DeleteForEveryone)
}

func (h *ChatHandler) deleteMessage(w http.ResponseWriter, r *http.Request, del func(ctx context.Context, messageID, actorID uint64) error) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	messageID, err := pathID(r)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	if err := del(r.Context(), messageID, userID); err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *ChatHandler) advanceStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	messageID, err := pathID(r)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	var req statusRequest
	if err := decode(r, &req); err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	to, err := dbmysql.ParseDeliveryStatus(req.Type)
	if err != nil {
		common.WriteAppError(r.Context(), w, common.Validationf("type must be delivered or read"))
		return
	}
	st, _, err := h.chatService.Advance(r.Context(), messageID, userID, to)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, statusResponse{
		MessageID:   st.MessageID,
		UserID:      st.UserID,
		Status:      st.Status,
		DeliveredAt: st.DeliveredAt,
		ReadAt:      st.ReadAt,
	})
}

func (h *ChatHandler) receipts(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	messageID, err := pathID(r)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	rec, err := h.chatService.Receipts(r.Context(), messageID, userID)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, rec)
}

func (h *ChatHandler) forward(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	var req forwardRequest
	if err := decode(r, &req); err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	targets := make([]service.ForwardTarget, 0, len(req.Targets))
	for _, t := range req.Targets {
		targets = append(targets, service.ForwardTarget{Type: t.Type, ID: t.ID})
	}
	results, err := h.chatService.Forward(r.Context(), userID, req.MessageID, targets)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, results)
}
