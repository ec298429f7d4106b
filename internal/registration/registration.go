// Package registration exposes account creation over HTTP+JSON, off the
// framed game protocol so new users can sign up with any HTTP client.
package registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"wordclash/internal/core/auth"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerResponse struct {
	Username string `json:"username,omitempty"`
	Error    string `json:"error,omitempty"`
}

type service struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// Start runs the registration HTTP server listening on addr until ctx is
// canceled. Startup failures and serve errors are reported on errChan;
// readyChan is signaled once the listener is up.
func Start(ctx context.Context, logger *logrus.Logger, db *gorm.DB, addr string, readyChan chan bool, errChan chan error) {
	s := &service{db: db, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/register", s.handleRegister)

	httpServer := &http.Server{Handler: mux}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		errChan <- fmt.Errorf("error starting registration listener on %s: %s", addr, err)
		return
	}

	// Spin off the listener in its own goroutine since we need to listen
	// for context cancellations.
	go func() {
		logger.Printf("REGISTRATION waiting for requests on %s", addr)

		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("error starting registration service on %s: %s", addr, err)
			return
		}

		close(errChan)
	}()

	readyChan <- true
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Printf("REGISTRATION server exited")
}

var errTitler = cases.Title(language.English)

func (s *service) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(w, http.StatusBadRequest, registerResponse{Error: "malformed request body"})
		return
	}

	account, err := auth.CreateAccount(s.db, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrVoidUsername),
			errors.Is(err, auth.ErrVoidPassword),
			errors.Is(err, auth.ErrUsernameTaken):
			s.writeResponse(w, http.StatusBadRequest, registerResponse{Error: errTitler.String(err.Error())})
		default:
			s.logger.Errorf("error creating account %s: %s", req.Username, err)
			s.writeResponse(w, http.StatusInternalServerError, registerResponse{Error: "internal error"})
		}
		return
	}

	s.logger.Infof("registered account %s", account.Username)
	s.writeResponse(w, http.StatusCreated, registerResponse{Username: account.Username})
}

func (s *service) writeResponse(w http.ResponseWriter, status int, resp registerResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warnf("error writing registration response: %s", err)
	}
}
