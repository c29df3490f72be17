package httpapi

import (
	"net/http"
	"time"

	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

type usernameBody struct {
	Username string `json:"username"`
}

type roleBody struct {
	Role string `json:"role"`
}

type sessionResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	Username  string     `json:"username"`
	Role      types.Role `json:"role"`
}

func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	var body usernameBody
	if err := decodeBody(r, &body); err != nil {
		s.badJSON(w)
		return
	}
	u, err := s.directory.BootstrapAdmin(r.Context(), body.Username)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	respond(w, r, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body usernameBody
	if err := decodeBody(r, &body); err != nil {
		s.badJSON(w)
		return
	}
	sess, err := s.directory.Login(r.Context(), body.Username)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	token, exp, err := s.sessions.Issue(sess.Username)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	respond(w, r, http.StatusOK, sessionResponse{
		Token:     token,
		ExpiresAt: exp.UTC(),
		Username:  sess.Username,
		Role:      sess.Role,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body usernameBody
	if err := decodeBody(r, &body); err != nil {
		s.badJSON(w)
		return
	}
	p, err := s.directory.Register(r.Context(), body.Username)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	respond(w, r, http.StatusAccepted, p)
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request, actor types.Actor) {
	out, err := s.directory.ListPending(r.Context(), actor)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	respond(w, r, http.StatusOK, nonNil(out))
}

func (s *Server) handleApproveRegistration(w http.ResponseWriter, r *http.Request, actor types.Actor) {
	var body roleBody
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			s.badJSON(w)
			return
		}
	}
	role, err := optionalRole(body.Role)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	u, err := s.directory.ApproveRegistration(r.Context(), actor, r.PathValue("username"), role)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	respond(w, r, http.StatusOK, u)
}

func (s *Server) handleRejectRegistration(w http.ResponseWriter, r *http.Request, actor types.Actor) {
	if err := s.directory.RejectRegistration(r.Context(), actor, r.PathValue("username")); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, actor types.Actor) {
	out, err := s.directory.ListUsers(r.Context(), actor)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	respond(w, r, http.StatusOK, nonNil(out))
}

func (s *Server) handleChangeRole(w http.ResponseWriter, r *http.Request, actor types.Actor) {
	var body roleBody
	if err := decodeBody(r, &body); err != nil {
		s.badJSON(w)
		return
	}
	role, ok := types.ParseRole(body.Role)
	if !ok {
		writeDomainError(w, r, s.logger, types.Invalid("unknown role %q", body.Role))
		return
	}
	u, err := s.directory.ChangeRole(r.Context(), actor, r.PathValue("username"), role)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	respond(w, r, http.StatusOK, u)
}

func optionalRole(v string) (types.Role, error) {
	if v == "" {
		return "", nil
	}
	role, ok := types.ParseRole(v)
	if !ok {
		return "", types.Invalid("unknown role %q", v)
	}
	return role, nil
}

// nonNil keeps empty listings encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
