package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/annotation"
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/convert"
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/store"
)

// ProjectRequest is the body for creating or renaming a project.
type ProjectRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateProject(c echo.Context) error {
	var req ProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := s.project.Create(c.Request().Context(), currentUser(c).ID, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleListProjects(c echo.Context) error {
	out, err := s.project.List(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return err
	}
	if out == nil {
		out = []*store.Project{}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetProject(c echo.Context) error {
	p, err := s.project.Get(c.Request().Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleRenameProject(c echo.Context) error {
	var req ProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := s.project.Rename(c.Request().Context(), currentUser(c).ID, c.Param("id"), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeleteProject(c echo.Context) error {
	if err := s.project.Delete(c.Request().Context(), currentUser(c).ID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadResponse is returned after a successful PDF upload and conversion.
type UploadResponse struct {
	Project *store.Project     `json:"project"`
	Pages   []convert.PageMeta `json:"pages"`
}

// handleUpload receives a PDF, validates it, renders its pages and records
// the upload on the project.
func (s *Server) handleUpload(c echo.Context) error {
	ctx := c.Request().Context()
	ownerID := currentUser(c).ID
	projectID := c.Param("id")

	// Ownership check before touching the filesystem.
	if _, err := s.project.Get(ctx, ownerID, projectID); err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}
	if fh.Size > s.config.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload exceeds %d bytes", s.config.MaxUploadBytes))
	}

	pdfPath, err := s.saveUpload(fh, projectID)
	if err != nil {
		return err
	}

	pageCount, err := s.convert.Inspect(ctx, pdfPath)
	if err != nil {
		_ = os.Remove(pdfPath)
		return err
	}

	// Re-uploading replaces the previous conversion.
	if err := s.convert.Remove(projectID); err != nil {
		s.logger.Warn("failed to drop stale page cache",
			zap.String("project_id", projectID), zap.Error(err))
	}
	pages, err := s.convert.Convert(ctx, projectID, pdfPath)
	if err != nil {
		_ = os.Remove(pdfPath)
		return err
	}

	p, err := s.project.SetUpload(ctx, ownerID, projectID, filepath.Base(fh.Filename), pageCount)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, UploadResponse{Project: p, Pages: pages})
}

// saveUpload streams the multipart file to the upload directory. Uploads
// are stored under the project id, not the client filename.
func (s *Server) saveUpload(fh *multipart.FileHeader, projectID string) (string, error) {
	if err := os.MkdirAll(s.config.UploadDir, 0o700); err != nil {
		return "", fmt.Errorf("http: create upload dir: %w", err)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("http: open upload: %w", err)
	}
	defer src.Close()

	path := filepath.Join(s.config.UploadDir, projectID+".pdf")
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("http: create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("http: write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("http: close upload: %w", err)
	}
	return path, nil
}

func (s *Server) handleThumbnail(c echo.Context) error {
	ctx := c.Request().Context()
	projectID := c.Param("id")
	if _, err := s.project.Get(ctx, currentUser(c).ID, projectID); err != nil {
		return err
	}
	path, err := s.convert.ThumbnailPath(ctx, projectID)
	if err != nil {
		return err
	}
	return c.File(path)
}

func (s *Server) handlePages(c echo.Context) error {
	ctx := c.Request().Context()
	projectID := c.Param("id")
	if _, err := s.project.Get(ctx, currentUser(c).ID, projectID); err != nil {
		return err
	}
	pages, err := s.convert.Pages(ctx, projectID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pages)
}

func (s *Server) handlePageImage(c echo.Context) error {
	ctx := c.Request().Context()
	projectID := c.Param("id")
	if _, err := s.project.Get(ctx, currentUser(c).ID, projectID); err != nil {
		return err
	}
	page, err := pageParam(c)
	if err != nil {
		return err
	}
	path, err := s.convert.PagePath(ctx, projectID, page)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.File(path)
}

// handleGetAnnotations returns the stored annotation document for a page,
// or a fresh empty document when none has been saved yet.
func (s *Server) handleGetAnnotations(c echo.Context) error {
	ctx := c.Request().Context()
	projectID := c.Param("id")
	p, err := s.project.Get(ctx, currentUser(c).ID, projectID)
	if err != nil {
		return err
	}
	page, err := pageParam(c)
	if err != nil {
		return err
	}
	if p.PageCount > 0 && page > p.PageCount {
		return echo.NewHTTPError(http.StatusNotFound,
			fmt.Sprintf("page %d out of range 1..%d", page, p.PageCount))
	}

	doc, err := s.store.PageAnnotations(ctx, projectID, page)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusOK, annotation.NewPageAnnotations(projectID, page))
		}
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handlePutAnnotations(c echo.Context) error {
	ctx := c.Request().Context()
	projectID := c.Param("id")
	p, err := s.project.Get(ctx, currentUser(c).ID, projectID)
	if err != nil {
		return err
	}
	page, err := pageParam(c)
	if err != nil {
		return err
	}
	if p.PageCount > 0 && page > p.PageCount {
		return echo.NewHTTPError(http.StatusNotFound,
			fmt.Sprintf("page %d out of range 1..%d", page, p.PageCount))
	}

	var doc annotation.PageAnnotations
	if err := c.Bind(&doc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	// Path wins over body for identity fields.
	doc.ProjectID = projectID
	doc.Page = page
	doc.UpdatedAt = time.Now().UTC()

	if err := doc.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.store.PutPageAnnotations(ctx, &doc); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &doc)
}

func (s *Server) handleDeleteAnnotations(c echo.Context) error {
	ctx := c.Request().Context()
	projectID := c.Param("id")
	if _, err := s.project.Get(ctx, currentUser(c).ID, projectID); err != nil {
		return err
	}
	page, err := pageParam(c)
	if err != nil {
		return err
	}
	if err := s.store.DeletePageAnnotations(ctx, projectID, page); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func pageParam(c echo.Context) (int, error) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "page must be a positive integer")
	}
	return page, nil
}
