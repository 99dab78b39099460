package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookboard-app/bookboard/internal/auth"
	"github.com/bookboard-app/bookboard/internal/model"
	"github.com/bookboard-app/bookboard/internal/remote"
)

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, token, err := s.auth.Signup(c.Request.Context(), req.Email, req.Password, req.Name)
	switch {
	case errors.Is(err, remote.ErrEmailTaken):
		abortError(c, http.StatusConflict, "email already in use")
		return
	case errors.Is(err, model.ErrInvalid), errors.Is(err, auth.ErrWeakPassword):
		abortError(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.Error("signup failed", "error", err)
		abortError(c, http.StatusInternalServerError, "signup failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "user": profile})
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, token, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		abortError(c, http.StatusUnauthorized, "invalid email or password")
		return
	case err != nil:
		s.log.Error("login failed", "error", err)
		abortError(c, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": profile})
}
