package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	DB "cdhsearch/internal/db"
	pkgerrors "cdhsearch/pkg/errors"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handleGetDataset() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := s.db.Stats()
		resp := DatasetResponse{
			DatasetID: stats.DatasetID,
			Bins:      stats.Bins,
			ImageSize: stats.ImageSize,
			Count:     stats.Entries,
			Entries:   []EntryResponse{},
		}
		if !stats.LoadedAt.IsZero() {
			resp.LoadedAt = &stats.LoadedAt
		}
		for _, e := range s.db.Entries() {
			resp.Entries = append(resp.Entries, EntryResponse{ID: e.ID, Position: e.Position})
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) handleLoadDataset() gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		files := form.File["images"]
		sources := make([]DB.Source, 0, len(files))
		for _, fh := range files {
			sources = append(sources, uploadSource(fh))
		}

		report, err := s.db.LoadDataset(c.Request.Context(), sources, nil)
		if err != nil {
			c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
			return
		}

		resp := LoadResponse{
			DatasetID:  report.DatasetID,
			Total:      report.Total,
			Indexed:    report.Indexed,
			Failures:   []FailureResponse{},
			DurationMS: report.Duration.Milliseconds(),
		}
		for _, f := range report.Failures {
			resp.Failures = append(resp.Failures, FailureResponse{ID: f.ID, Error: f.Err.Error()})
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) handleAddImage() gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		entry, err := s.db.AddImage(c.Request.Context(), uploadSource(fh))
		if err != nil {
			c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusCreated, EntryResponse{ID: entry.ID, Position: entry.Position})
	}
}

func (s *Server) handleResetDataset() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.db.Reset()
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) handleSearch() gin.HandlerFunc {
	return func(c *gin.Context) {
		var form SearchForm
		if err := c.ShouldBind(&form); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		fh, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		results, err := s.db.Search(c.Request.Context(), uploadSource(fh), form.TopK)
		if err != nil {
			c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
			return
		}

		resp := SearchResponse{Results: make([]SearchResult, 0, len(results))}
		for _, r := range results {
			resp.Results = append(resp.Results, SearchResult{
				ID:       r.Entry.ID,
				Position: r.Entry.Position,
				Score:    r.Score,
			})
		}
		c.JSON(http.StatusOK, resp)
	}
}

func uploadSource(fh *multipart.FileHeader) DB.Source {
	return DB.Source{
		ID:   fh.Filename,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pkgerrors.ErrDecodeFailure), errors.Is(err, pkgerrors.ErrDegenerateInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pkgerrors.ErrEmptyDataset):
		return http.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrDimensionMismatch), errors.Is(err, pkgerrors.ErrLoadInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
