package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"expensedash/internal/authform"
	"expensedash/internal/dashboard"
	"expensedash/internal/log"
	"expensedash/internal/session"
)

// ClientCookie identifies a browser. Its value is the browser's session
// namespace in the session backend.
const ClientCookie = "expdash_client"

// browser is everything the server keeps for one browser: its session
// store, the dashboard controller and auth form bound to it, and messages
// waiting to be shown.
type browser struct {
	id    string
	store *session.Store
	ctrl  *dashboard.Controller
	form  *authform.Form

	mu      sync.Mutex
	notices []string
}

// Notify queues msg for the next page render.
func (b *browser) Notify(_ context.Context, msg string) {
	b.mu.Lock()
	b.notices = append(b.notices, msg)
	b.mu.Unlock()
}

// takeNotices returns and clears the queued messages.
func (b *browser) takeNotices() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.notices
	b.notices = nil
	return n
}

func (b *browser) close() {
	b.ctrl.Close()
}

func (s *Server) newBrowser(id string) *browser {
	b := &browser{id: id}
	b.store = session.NewStore(s.sessions.Backend(id),
		session.WithLogger(s.logger.With(log.FieldClientID, id)))
	b.ctrl = dashboard.New(s.api, b.store, b, dashboard.Config{
		EnableCreate: s.enableCreate,
		Now:          s.now,
		Logger:       s.logger.With(log.FieldClientID, id),
		Events:       s.events,
	})
	b.form = authform.New(s.api, b.store, b, s.logger.With(log.FieldClientID, id))
	return b
}

// browserFor returns the state for the requesting browser, issuing a new
// client cookie when the request carries none or a malformed one.
func (s *Server) browserFor(w http.ResponseWriter, r *http.Request) *browser {
	id := ""
	if c, err := r.Cookie(ClientCookie); err == nil {
		if u, err := uuid.Parse(c.Value); err == nil {
			id = u.String()
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     ClientCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   int(s.cookieMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s.browsers.GetOrCreate(id, func() *browser { return s.newBrowser(id) })
}
