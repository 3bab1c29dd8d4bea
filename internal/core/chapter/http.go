// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
HTTP interface for chapter ingestion and management.

# Routing Strategy

  - Public (v1): Reading endpoints (chapter lists, a chapter with its pages, view counting).
  - Restricted (v1): Every write requires the admin role.

Uploads are multipart/form-data. The [Uploader] stores the files before the
[Service] runs; from then on the service owns their cleanup.
*/
package chapter

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/inkshelf/internal/platform/apperr"
	"github.com/taibuivan/inkshelf/internal/platform/constants"
	"github.com/taibuivan/inkshelf/internal/platform/middleware"
	requestutil "github.com/taibuivan/inkshelf/internal/platform/request"
	"github.com/taibuivan/inkshelf/internal/platform/respond"
	"github.com/taibuivan/inkshelf/internal/platform/sec"
	"github.com/taibuivan/inkshelf/internal/platform/validate"
	"github.com/taibuivan/inkshelf/pkg/pagination"
	"github.com/taibuivan/inkshelf/pkg/pointer"
	"github.com/taibuivan/inkshelf/pkg/query"
	"github.com/taibuivan/inkshelf/pkg/uuid"
)

// Multipart form field names.
const (
	formChapterNumber = "chapter_number"
	formOrder         = "order"
	formTitle         = "title"
	formPages         = "pages"
	formPageOrder     = "page_order"
)

// chapterListLimits lets readers fetch a long serial's chapter index in few pages.
var chapterListLimits = pagination.Limits{Default: 50, Max: 200}

// # Handler Implementation

// Handler implements the HTTP layer for chapters and pages.
type Handler struct {
	service  *Service
	uploader *Uploader
}

// NewHandler constructs a new chapter [Handler].
func NewHandler(service *Service, uploader *Uploader) *Handler {
	return &Handler{service: service, uploader: uploader}
}

// RegisterRoutes attaches chapter and page endpoints to the versioned API router.
// Routes span the /works, /chapters and /pages prefixes.
func (handler *Handler) RegisterRoutes(api chi.Router) {
	// Public endpoints
	api.Get("/works/{workID}/chapters", handler.ListChapters)
	api.Get("/chapters/{chapterID}", handler.GetChapter)
	api.Post("/chapters/{chapterID}/view", handler.RecordView)

	// Admin protected endpoints
	api.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireRole(sec.RoleAdmin))
		admin.Post("/works/{workID}/chapters", handler.CreateChapter)
		admin.Patch("/chapters/{chapterID}", handler.UpdateChapter)
		admin.Delete("/chapters/{chapterID}", handler.DeleteChapter)
		admin.Post("/chapters/{chapterID}/pages", handler.AddPages)
		admin.Put("/chapters/{chapterID}/pages", handler.ReorderPages)
		admin.Delete("/pages/{pageID}", handler.DeletePage)
	})
}

// # Chapter Retrieval

/*
GET /api/v1/works/{workID}/chapters.

Description: Returns a paginated list of a work's chapters ordered by sort order.

Request:
  - workID: string (UUID)
  - page: int
  - limit: int

Response:
  - 200: []Chapter: Paginated list (without pages)
  - 404: ErrNotFound: Work not found
*/
func (handler *Handler) ListChapters(writer http.ResponseWriter, request *http.Request) {
	workID := requestutil.ID(request, "workID")
	paginationParams := chapterListLimits.FromRequest(request)

	chapters, total, err := handler.service.ListChapters(request.Context(), workID, paginationParams.Limit, paginationParams.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, chapters, pagination.NewMeta(paginationParams.Page, paginationParams.Limit, total))
}

/*
GET /api/v1/chapters/{chapterID}.

Response:
  - 200: Chapter: With pages sorted by page number
  - 404: ErrNotFound: Chapter not found
*/
func (handler *Handler) GetChapter(writer http.ResponseWriter, request *http.Request) {
	chapter, err := handler.service.GetChapter(request.Context(), requestutil.ID(request, "chapterID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, chapter)
}

/*
POST /api/v1/chapters/{chapterID}/view.

Response:
  - 200: Message: View recorded
  - 404: ErrNotFound: Chapter not found
*/
func (handler *Handler) RecordView(writer http.ResponseWriter, request *http.Request) {
	if err := handler.service.RecordView(request.Context(), requestutil.ID(request, "chapterID")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{constants.FieldMessage: "View recorded"})
}

// # Chapter Ingestion

/*
POST /api/v1/works/{workID}/chapters.

Description: Creates a chapter from uploaded page images. Pages are numbered
in the order the files appear in the form.

Request (multipart/form-data):
  - chapter_number: string (Decimal, e.g. "10.5")
  - order: number (Sort position within the work)
  - title: string (Optional; defaults to "Chapter {number}")
  - pages: file[] (Page images)

Response:
  - 201: Chapter: Created chapter with its pages
  - 400: Validation: Missing fields, bad numbers, no or unsupported files
  - 404: ErrNotFound: Work not found
  - 409: ErrConflict: Chapter number or order already used in this work
*/
func (handler *Handler) CreateChapter(writer http.ResponseWriter, request *http.Request) {
	workID := requestutil.ID(request, "workID")
	if !uuid.Valid(workID) {
		respond.Error(writer, request, apperr.NotFound("Work"))
		return
	}

	form, err := handler.parseMultipart(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	defer form.RemoveAll()

	input := CreateInput{
		WorkID:        workID,
		ChapterNumber: formValue(form, formChapterNumber),
		Title:         formValue(form, formTitle),
	}

	if raw := formValue(form, formOrder); raw != "" {
		order, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respond.Error(writer, request, validate.Fail(FieldOrder, "Must be a number"))
			return
		}
		input.SortOrder = pointer.To(order)
	}

	input.Files, err = handler.uploader.Store(request.Context(), workID, form.File[formPages])
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	chapter, err := handler.service.CreateChapter(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, chapter)
}

/*
POST /api/v1/chapters/{chapterID}/pages.

Description: Appends uploaded images after the chapter's last page.

Request (multipart/form-data):
  - pages: file[] (Page images, in reading order)

Response:
  - 200: Chapter: With all pages
  - 400: Validation: No or unsupported files
  - 404: ErrNotFound: Chapter not found
*/
func (handler *Handler) AddPages(writer http.ResponseWriter, request *http.Request) {
	chapterID := requestutil.ID(request, "chapterID")

	workID, err := handler.service.WorkIDOf(request.Context(), chapterID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	form, err := handler.parseMultipart(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	defer form.RemoveAll()

	files, err := handler.uploader.Store(request.Context(), workID, form.File[formPages])
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	chapter, err := handler.service.AddPages(request.Context(), chapterID, files)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, chapter)
}

/*
PUT /api/v1/chapters/{chapterID}/pages.

Description: Renumbers existing pages and optionally appends new ones.
Pages left out of page_order keep their current numbers.

Request (multipart/form-data):
  - page_order: string (Comma separated page ids, new order)
  - pages: file[] (Optional new images appended after the reorder)

Response:
  - 200: Chapter: With all pages
  - 400: Validation: Nothing to do, or a page id repeats
  - 404: ErrNotFound: Chapter not found, or a page id outside the chapter
*/
func (handler *Handler) ReorderPages(writer http.ResponseWriter, request *http.Request) {
	chapterID := requestutil.ID(request, "chapterID")

	workID, err := handler.service.WorkIDOf(request.Context(), chapterID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	form, err := handler.parseMultipart(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	defer form.RemoveAll()

	order := query.List(form.Value[formPageOrder])

	var files []UploadedFile
	if headers := form.File[formPages]; len(headers) > 0 {
		files, err = handler.uploader.Store(request.Context(), workID, headers)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	chapter, err := handler.service.ReorderAndExtend(request.Context(), chapterID, order, files)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, chapter)
}

// # Chapter Management

/*
PATCH /api/v1/chapters/{chapterID}.

Request:
  - body: Patch (title, chapter_number, order; all optional, at least one)

Response:
  - 200: Chapter: Updated chapter
  - 400: Validation: Empty patch or invalid values
  - 404: ErrNotFound: Chapter not found
  - 409: ErrConflict: Number or order already used in this work
*/
func (handler *Handler) UpdateChapter(writer http.ResponseWriter, request *http.Request) {
	var patch Patch
	if err := requestutil.DecodeJSON(writer, request, &patch); err != nil {
		respond.Error(writer, request, err)
		return
	}

	chapter, err := handler.service.UpdateChapterInfo(request.Context(), requestutil.ID(request, "chapterID"), patch)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, chapter)
}

/*
DELETE /api/v1/chapters/{chapterID}.

Response:
  - 204: No Content
  - 404: ErrNotFound: Chapter not found
*/
func (handler *Handler) DeleteChapter(writer http.ResponseWriter, request *http.Request) {
	if err := handler.service.DeleteChapter(request.Context(), requestutil.ID(request, "chapterID")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
DELETE /api/v1/pages/{pageID}.

Response:
  - 204: No Content
  - 404: ErrNotFound: Page not found
*/
func (handler *Handler) DeletePage(writer http.ResponseWriter, request *http.Request) {
	if err := handler.service.DeletePage(request.Context(), requestutil.ID(request, "pageID")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Helpers

// parseMultipart reads a size-bounded multipart body. The caller must RemoveAll the form.
func (handler *Handler) parseMultipart(writer http.ResponseWriter, request *http.Request) (*multipart.Form, error) {
	request.Body = http.MaxBytesReader(writer, request.Body, handler.uploader.MaxRequestBytes())

	if err := request.ParseMultipartForm(constants.MultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.PayloadTooLarge(fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit))
		}
		return nil, validate.Fail(FieldPages, "Expected a multipart/form-data body")
	}

	return request.MultipartForm, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}
