package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/user"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	Username string `json:"username"`
}

type signInResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// handleSignUp creates the account and provisions the user's namespace
// root, so the drive is immediately browsable after sign-up.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	hash, err := user.HashPassword(creds.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := s.users.Create(r.Context(), creds.Username, hash)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.dirs.CreateUserRoot(r.Context(), record.ID); err != nil {
		// The account exists but its namespace does not; surface the store
		// failure rather than pretending sign-up worked.
		logger.Error("Failed to provision root for user %d: %v", record.ID, err)
		writeError(w, err)
		return
	}

	logger.Info("User %q signed up (id %d)", record.Username, record.ID)

	writeJSON(w, http.StatusCreated, userResponse{Username: record.Username})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	record, err := s.users.GetByUsername(r.Context(), creds.Username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			writeMessage(w, http.StatusUnauthorized, "bad credentials")
			return
		}
		writeError(w, err)
		return
	}

	match, err := user.VerifyPassword(creds.Password, record.PasswordHash)
	if err != nil {
		writeError(w, err)
		return
	}
	if !match {
		writeMessage(w, http.StatusUnauthorized, "bad credentials")
		return
	}

	token, err := s.tokens.Issue(record.ID, record.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, signInResponse{Username: record.Username, Token: token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, userResponse{Username: sess.Username})
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var creds credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeMessage(w, http.StatusBadRequest, "malformed request body")
		return creds, false
	}

	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" {
		writeMessage(w, http.StatusBadRequest, "username must not be blank")
		return creds, false
	}
	if len(creds.Password) < 6 {
		writeMessage(w, http.StatusBadRequest, "password must be at least 6 characters")
		return creds, false
	}

	return creds, true
}
