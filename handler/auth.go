package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phbpx/crm"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

// TokenIssuer signs a session token for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type AuthHandler struct {
	users  crm.UserService
	tokens TokenIssuer
	log    *otelzap.SugaredLogger
}

func NewAuthHandler(users crm.UserService, tokens TokenIssuer, log *otelzap.SugaredLogger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		log:    log,
	}
}

type session struct {
	Success bool     `json:"success"`
	Token   string   `json:"token,omitempty"`
	User    crm.User `json:"user"`
}

// Routes mounts the public endpoints. Me is mounted separately behind
// Authenticate.
func (ah AuthHandler) Routes(r chi.Router) {
	r.Post("/register", ah.Register)
	r.Post("/login", ah.Login)
}

func (ah AuthHandler) Register(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var nu crm.NewUser
	if err := decode(r, &nu); err != nil {
		fail(ctx, rw, ah.log, "auth.Register", err)
		return
	}

	user, err := ah.users.Register(ctx, nu)
	if err != nil {
		fail(ctx, rw, ah.log, "auth.Register", err)
		return
	}

	token, err := ah.tokens.Issue(user.ID)
	if err != nil {
		fail(ctx, rw, ah.log, "auth.Register", err)
		return
	}

	ah.log.Ctx(ctx).Infow("auth.Register", "user", user.ID)
	respond(ctx, rw, http.StatusCreated, session{Success: true, Token: token, User: user})
}

func (ah AuthHandler) Login(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cred crm.Credentials
	if err := decode(r, &cred); err != nil {
		fail(ctx, rw, ah.log, "auth.Login", err)
		return
	}

	user, err := ah.users.Authenticate(ctx, cred)
	if err != nil {
		fail(ctx, rw, ah.log, "auth.Login", err)
		return
	}

	token, err := ah.tokens.Issue(user.ID)
	if err != nil {
		fail(ctx, rw, ah.log, "auth.Login", err)
		return
	}

	respond(ctx, rw, http.StatusOK, session{Success: true, Token: token, User: user})
}

func (ah AuthHandler) Me(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := ah.users.GetByID(ctx, currentUser(r))
	if err != nil {
		fail(ctx, rw, ah.log, "auth.Me", err)
		return
	}

	respond(ctx, rw, http.StatusOK, session{Success: true, User: user})
}
