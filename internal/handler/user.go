package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/event-rsvp/internal/model"
	"github.com/sakif/event-rsvp/internal/service"
)

// UserHandler serves the guest list: CRUD on users plus the RSVP flag.
//
// The handler only knows HTTP: it decodes bodies, reads URL params, and maps
// results to status codes. Validation and persistence live in
// service.UserService.
type UserHandler struct {
	users  *service.UserService
	errors *Errors
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, errs *Errors, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, errors: errs, logger: logger}
}

// HandleCreate registers a new user.
//
// HTTP: POST /users
// REQUEST BODY: {"firstName":"Jo","lastName":"Doe","email":"jo@doe.com","phone":"555-0100"}
// RESPONSE: 201 with the stored user
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.CreateUserInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.logger.Debug("invalid user JSON", slog.String("error", err.Error()))
		h.errors.Write(w, r, badRequest("", "Invalid JSON body"))
		return
	}

	user, err := h.users.Create(r.Context(), in)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleList returns every user, newest first.
//
// HTTP: GET /users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleGet returns one user.
//
// HTTP: GET /users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdate applies a partial update.
//
// HTTP: PUT /users/{id}
// REQUEST BODY: any subset of {"firstName","lastName","email","phone","picture","hasRSVPd"}
//
// Server-owned keys (id, _id, googleId, createdAt, updatedAt) and unknown
// keys are ignored. A present hasRSVPd must be a JSON boolean.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	patch, err := patchFromBody(body)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	user, err := h.users.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleDelete removes a user.
//
// HTTP: DELETE /users/{id}
// RESPONSE: 204 No Content; a second delete of the same ID is 404.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RSVPResponse is the body of GET /users/{id}/rsvp.
type RSVPResponse struct {
	HasRSVPd bool `json:"hasRSVPd"`
}

// HandleGetRSVP returns only the RSVP flag.
//
// HTTP: GET /users/{id}/rsvp
// RESPONSE: {"hasRSVPd": true}
func (h *UserHandler) HandleGetRSVP(w http.ResponseWriter, r *http.Request) {
	rsvp, err := h.users.GetRSVP(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RSVPResponse{HasRSVPd: rsvp})
}

// HandleSetRSVP sets the RSVP flag.
//
// HTTP: PUT /users/{id}/rsvp
// REQUEST BODY: {"hasRSVPd": true}
// RESPONSE: 200 with the updated user
//
// "true" (a string), 1, null or a missing key are all rejected: the flag must
// be a JSON boolean.
func (h *UserHandler) HandleSetRSVP(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	attending, ok := jsonBool(body["hasRSVPd"])
	if !ok {
		h.errors.Write(w, r, badRequest("hasRSVPd", "hasRSVPd must be a boolean value"))
		return
	}

	user, err := h.users.SetRSVP(r.Context(), chi.URLParam(r, "id"), attending)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// decodeObject reads a JSON object body, keeping each value raw so callers
// can check its JSON type and whether the key was present at all.
func decodeObject(r *http.Request) (map[string]json.RawMessage, error) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		return nil, badRequest("", "Request body must be a JSON object")
	}
	return body, nil
}

// jsonBool reports the value of raw if it is exactly true or false.
func jsonBool(raw json.RawMessage) (bool, bool) {
	switch string(bytes.TrimSpace(raw)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// patchFromBody maps the mutable keys of an update body onto a UserPatch.
//
// String fields must be JSON strings. null clears the optional fields (phone,
// picture) and is a validation error for the required ones, which is what
// the service reports for an empty string.
func patchFromBody(body map[string]json.RawMessage) (model.UserPatch, error) {
	var p model.UserPatch

	stringFields := []struct {
		key string
		dst **string
	}{
		{"firstName", &p.FirstName},
		{"lastName", &p.LastName},
		{"email", &p.Email},
		{"phone", &p.Phone},
		{"picture", &p.Picture},
	}
	for _, f := range stringFields {
		raw, present := body[f.key]
		if !present {
			continue
		}
		var v *string
		if err := json.Unmarshal(raw, &v); err != nil {
			return model.UserPatch{}, badRequest(f.key, f.key+" must be a string")
		}
		if v == nil {
			empty := ""
			v = &empty
		}
		*f.dst = v
	}

	if raw, present := body["hasRSVPd"]; present {
		v, ok := jsonBool(raw)
		if !ok {
			return model.UserPatch{}, badRequest("hasRSVPd", "hasRSVPd must be a boolean value")
		}
		p.HasRSVPd = &v
	}

	return p, nil
}
