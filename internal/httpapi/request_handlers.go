package httpapi

import (
	"net/http"

	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

type transitionBody struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

type resubmitBody struct {
	Description string `json:"description"`
}

func (s *Server) handleRequestTypes(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, s.lifecycle.RequestTypes())
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, actor types.Actor) {
	var in types.NewRequest
	if err := decodeBody(r, &in); err != nil {
		s.badJSON(w)
		return
	}
	req, err := s.lifecycle.Create(r.Context(), actor, in)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	w.Header().Set("Location", "/v1/requests/"+req.ID)
	respond(w, r, http.StatusCreated, req)
}

// handleListRequests serves the list projections. ?status= selects
// ListByStatus, ?user= selects ListByUser, both narrow the user listing by
// status, and neither lists everything.
func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request, actor types.Actor) {
	q := r.URL.Query()
	user := q.Get("user")

	var status types.Status
	if v := q.Get("status"); v != "" {
		st, ok := types.ParseStatus(v)
		if !ok {
			writeDomainError(w, r, s.logger, types.Invalid("unknown status %q", v))
			return
		}
		status = st
	}

	var (
		out []types.Request
		err error
	)
	switch {
	case user != "":
		out, err = s.lifecycle.ListByUser(r.Context(), actor, user)
		if err == nil && status != "" {
			out = filterStatus(out, status)
		}
	case status != "":
		out, err = s.lifecycle.ListByStatus(r.Context(), actor, status)
	default:
		out, err = s.lifecycle.ListAll(r.Context(), actor)
	}
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	respond(w, r, http.StatusOK, nonNil(out))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, actor types.Actor) {
	req, err := s.lifecycle.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	respond(w, r, http.StatusOK, req)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, actor types.Actor) {
	var body transitionBody
	if err := decodeBody(r, &body); err != nil {
		s.badJSON(w)
		return
	}
	status, ok := types.ParseStatus(body.Status)
	if !ok {
		writeDomainError(w, r, s.logger, types.Invalid("unknown status %q", body.Status))
		return
	}
	req, err := s.lifecycle.Transition(r.Context(), actor, r.PathValue("id"), status, body.Comment)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	respond(w, r, http.StatusOK, req)
}

func (s *Server) handleResubmit(w http.ResponseWriter, r *http.Request, actor types.Actor) {
	var body resubmitBody
	if err := decodeBody(r, &body); err != nil {
		s.badJSON(w)
		return
	}
	req, err := s.lifecycle.Resubmit(r.Context(), actor, r.PathValue("id"), body.Description)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	respond(w, r, http.StatusOK, req)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, actor types.Actor) {
	del, err := s.lifecycle.Delete(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	respond(w, r, http.StatusOK, del)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, actor types.Actor) {
	out, err := s.lifecycle.History(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	respond(w, r, http.StatusOK, nonNil(out))
}

func (s *Server) handleListDeleted(w http.ResponseWriter, r *http.Request, actor types.Actor) {
	out, err := s.lifecycle.ListDeleted(r.Context(), actor)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	respond(w, r, http.StatusOK, nonNil(out))
}

func filterStatus(in []types.Request, status types.Status) []types.Request {
	out := in[:0]
	for _, r := range in {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}
