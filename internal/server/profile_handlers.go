package server

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/bookboard-app/bookboard/internal/images"
	"github.com/bookboard-app/bookboard/internal/model"
)

func (s *Server) getMe(c *gin.Context) {
	profile, err := s.profiles.GetLocal(c.Request.Context(), currentUser(c))
	if err != nil {
		s.log.Error("fetching profile", "error", err)
		abortError(c, http.StatusInternalServerError, "fetching profile failed")
		return
	}
	if profile == nil {
		// Not cached yet; pull it from the remote collection.
		profile, err = s.profiles.Refresh(c.Request.Context(), currentUser(c))
		if err != nil || profile == nil {
			abortError(c, http.StatusNotFound, "profile not found")
			return
		}
	}
	c.JSON(http.StatusOK, profile)
}

type updateMeRequest struct {
	Name  string         `json:"name"`
	Image model.ImageRef `json:"image"`
}

func (s *Server) updateMe(c *gin.Context) {
	profile, err := s.profiles.GetLocal(c.Request.Context(), currentUser(c))
	if err != nil || profile == nil {
		abortError(c, http.StatusNotFound, "profile not found")
		return
	}

	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	profile.Name = req.Name
	if !req.Image.IsZero() {
		profile.Image = req.Image
	}

	err = s.profiles.Update(c.Request.Context(), profile)
	if errors.Is(err, model.ErrInvalid) {
		abortError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.log.Error("updating profile", "error", err)
		abortError(c, http.StatusInternalServerError, "updating profile failed")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// getProfile serves any user's profile, refreshing from the remote collection
// when it is not cached locally.
func (s *Server) getProfile(c *gin.Context) {
	id := c.Param("id")
	profile, err := s.profiles.GetLocal(c.Request.Context(), id)
	if err != nil {
		s.log.Error("fetching profile", "id", id, "error", err)
		abortError(c, http.StatusInternalServerError, "fetching profile failed")
		return
	}
	if profile == nil {
		profile, err = s.profiles.Refresh(c.Request.Context(), id)
		if err != nil {
			s.log.Warn("profile refresh failed", "id", id, "error", err)
			abortError(c, http.StatusBadGateway, "remote store unreachable")
			return
		}
		if profile == nil {
			abortError(c, http.StatusNotFound, "profile not found")
			return
		}
	}
	c.JSON(http.StatusOK, profile)
}

// uploadImage accepts a multipart image and returns the stored reference for
// the client to embed in a post or profile.
func (s *Server) uploadImage(c *gin.Context) {
	if s.images == nil {
		abortError(c, http.StatusServiceUnavailable, "image storage not configured")
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		abortError(c, http.StatusBadRequest, "multipart field 'image' is required")
		return
	}
	defer file.Close()

	ref, err := s.images.Upload(c.Request.Context(), filepath.Ext(header.Filename), file)
	if errors.Is(err, images.ErrTooLarge) {
		abortError(c, http.StatusRequestEntityTooLarge, "image too large")
		return
	}
	if err != nil {
		s.log.Error("uploading image", "error", err)
		abortError(c, http.StatusInternalServerError, "uploading image failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"image": ref})
}

type deleteImageRequest struct {
	Image model.ImageRef `json:"image"`
}

// deleteImage removes a stored image by its reference, e.g. after the owning
// post was deleted or its picture replaced.
func (s *Server) deleteImage(c *gin.Context) {
	if s.images == nil {
		abortError(c, http.StatusServiceUnavailable, "image storage not configured")
		return
	}

	var req deleteImageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Image.IsZero() {
		abortError(c, http.StatusBadRequest, "image reference is required")
		return
	}

	if err := s.images.Delete(c.Request.Context(), req.Image); err != nil {
		s.log.Error("deleting image", "error", err)
		abortError(c, http.StatusInternalServerError, "deleting image failed")
		return
	}
	c.Status(http.StatusNoContent)
}
