package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookboard-app/bookboard/internal/model"
)

type postRequest struct {
	Title  string         `json:"title"`
	Author string         `json:"author"`
	Review string         `json:"review"`
	Rating float64        `json:"rating"`
	Image  model.ImageRef `json:"image"`
}

// listPosts serves the local cache, optionally filtered by ?q=. The cache is
// only as fresh as the last refresh; clients pull /posts/refresh explicitly.
func (s *Server) listPosts(c *gin.Context) {
	posts, err := s.posts.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		s.log.Error("listing posts", "error", err)
		abortError(c, http.StatusInternalServerError, "listing posts failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// refreshPosts re-pulls the full remote collection into the local cache.
func (s *Server) refreshPosts(c *gin.Context) {
	posts, err := s.posts.LoadAll(c.Request.Context())
	if err != nil {
		s.log.Warn("refresh failed, serving cached posts", "error", err)
		abortError(c, http.StatusBadGateway, "remote store unreachable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (s *Server) myPosts(c *gin.Context) {
	posts, err := s.posts.GetByOwner(c.Request.Context(), currentUser(c))
	if err != nil {
		s.log.Error("listing own posts", "error", err)
		abortError(c, http.StatusInternalServerError, "listing posts failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (s *Server) getPost(c *gin.Context) {
	post, err := s.posts.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.log.Error("fetching post", "id", c.Param("id"), "error", err)
		abortError(c, http.StatusInternalServerError, "fetching post failed")
		return
	}
	if post == nil {
		abortError(c, http.StatusNotFound, "post not found")
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *Server) createPost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ownerID := currentUser(c)
	ownerName := "User"
	if profile, err := s.profiles.GetLocal(c.Request.Context(), ownerID); err == nil && profile != nil {
		ownerName = profile.Name
	}

	post, err := s.posts.Create(c.Request.Context(), &model.Post{
		OwnerID:   ownerID,
		OwnerName: ownerName,
		Title:     req.Title,
		Author:    req.Author,
		Review:    req.Review,
		Rating:    req.Rating,
		Image:     req.Image,
	})
	if errors.Is(err, model.ErrInvalid) {
		abortError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.log.Error("creating post", "error", err)
		abortError(c, http.StatusInternalServerError, "creating post failed")
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (s *Server) updatePost(c *gin.Context) {
	existing, err := s.posts.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.log.Error("fetching post", "id", c.Param("id"), "error", err)
		abortError(c, http.StatusInternalServerError, "updating post failed")
		return
	}
	if existing == nil {
		abortError(c, http.StatusNotFound, "post not found")
		return
	}
	if existing.OwnerID != currentUser(c) {
		abortError(c, http.StatusForbidden, "not your post")
		return
	}

	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	existing.Title = req.Title
	existing.Author = req.Author
	existing.Review = req.Review
	existing.Rating = req.Rating
	existing.Image = req.Image

	err = s.posts.Update(c.Request.Context(), existing)
	if errors.Is(err, model.ErrInvalid) {
		abortError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.log.Error("updating post", "id", existing.ID, "error", err)
		abortError(c, http.StatusInternalServerError, "updating post failed")
		return
	}
	c.JSON(http.StatusOK, existing)
}

func (s *Server) deletePost(c *gin.Context) {
	existing, err := s.posts.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.log.Error("fetching post", "id", c.Param("id"), "error", err)
		abortError(c, http.StatusInternalServerError, "deleting post failed")
		return
	}
	if existing == nil {
		abortError(c, http.StatusNotFound, "post not found")
		return
	}
	if existing.OwnerID != currentUser(c) {
		abortError(c, http.StatusForbidden, "not your post")
		return
	}

	if err := s.posts.Delete(c.Request.Context(), existing.ID); err != nil {
		s.log.Error("deleting post", "id", existing.ID, "error", err)
		abortError(c, http.StatusInternalServerError, "deleting post failed")
		return
	}
	c.Status(http.StatusNoContent)
}
