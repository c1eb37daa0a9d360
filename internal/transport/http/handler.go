package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/amarket/chat-service/internal/domain"
	"github.com/amarket/chat-service/internal/service"
	httpmw "github.com/amarket/chat-service/internal/transport/http/middleware"
	"github.com/amarket/chat-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

const conversationsPath = "/chat/conversations"

type ChatSvc interface {
	StartConversation(ctx context.Context, me domain.User, username string) (*domain.Conversation, *domain.User, error)
	DeleteThreadWith(ctx context.Context, me domain.User, username string) (*domain.User, error)
}

type HistorySvc interface {
	Conversations(ctx context.Context, me domain.User) ([]domain.ConversationSummary, error)
	ConversationsWith(ctx context.Context, me, peer domain.User) ([]domain.ConversationSummary, error)
	Thread(ctx context.Context, me domain.User, username, search string) (*service.ThreadView, error)
}

type Handler struct {
	chatSvc    ChatSvc
	historySvc HistorySvc
}

func NewHandler(chat ChatSvc, history HistorySvc) *Handler {
	return &Handler{chatSvc: chat, historySvc: history}
}

func threadURL(username string) string {
	return "/chat/threads/" + url.PathEscape(username)
}

// fail: self-chat и отсутствующий диалог возвращают к списку, остальное — JSON-ошибка.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if service.IsRedirect(err) {
		http.Redirect(w, r, conversationsPath, http.StatusSeeOther)
		return
	}
	httputil.Fail(r.Context(), w, err)
}

func currentUser(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	me, ok := httpmw.UserFromCtx(r.Context())
	if !ok {
		httputil.Fail(r.Context(), w, domain.ErrAuthenticationRequired)
	}
	return me, ok
}

// GET /chat/conversations?room=
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	me, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.historySvc.Conversations(r.Context(), me)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.OK(w, ConversationsResponse{
		Active:        strings.TrimSpace(r.URL.Query().Get("room")),
		Conversations: toConversationItems(list, me),
	})
}

// POST /chat/start/{username}
func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	me, ok := currentUser(w, r)
	if !ok {
		return
	}

	conv, peer, err := h.chatSvc.StartConversation(r.Context(), me, chi.URLParam(r, "username"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	loc := threadURL(peer.Username)
	w.Header().Set("Location", loc)
	httputil.OK(w, StartResponse{
		ConversationID: conv.ID,
		Peer:           toUserItem(*peer),
		ThreadURL:      loc,
		RoomKey:        domain.RoomKeyOf(me, *peer),
	})
}

// GET /chat/threads/{username}?search=
// HX-Request: true -> только панель сообщений.
func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	me, ok := currentUser(w, r)
	if !ok {
		return
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	view, err := h.historySvc.Thread(r.Context(), me, chi.URLParam(r, "username"), search)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := ThreadResponse{
		Peer:     toUserItem(view.Peer),
		Search:   view.Search,
		Messages: make([]MessageItem, 0, len(view.Messages)),
		RoomKey:  domain.RoomKeyOf(me, view.Peer),
	}
	for _, m := range view.Messages {
		resp.Messages = append(resp.Messages, toMessageItem(m, me, view.Peer))
	}

	if !httpmw.IsPartial(r.Context()) {
		list, err := h.historySvc.ConversationsWith(r.Context(), me, view.Peer)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		resp.Conversations = toConversationItems(list, me)
	}

	httputil.OK(w, resp)
}

// DELETE /chat/threads/{username}
func (h *Handler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	me, ok := currentUser(w, r)
	if !ok {
		return
	}

	peer, err := h.chatSvc.DeleteThreadWith(r.Context(), me, chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			httputil.Fail(r.Context(), w, err)
			return
		}
		h.fail(w, r, err)
		return
	}

	httputil.OK(w, map[string]string{"status": "deleted", "peer": peer.Username})
}
