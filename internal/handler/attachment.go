package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/bugtracker/internal/domain"
	"github.com/sumire/bugtracker/internal/repository"
	"github.com/sumire/bugtracker/internal/service"
)

// AttachmentHandler handles attachment endpoints. Uploads are multipart form
// data with the file under the "file" field.
type AttachmentHandler struct {
	attachments *service.AttachmentService
}

// NewAttachmentHandler creates a new AttachmentHandler.
func NewAttachmentHandler(attachments *service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments}
}

// Register registers the handler's routes on the issue group.
func (h *AttachmentHandler) Register(g *echo.Group) {
	g.GET("/:issueID/attachments", h.ListForIssue)
	g.POST("/:issueID/attachments", h.AddToIssue)
	g.GET("/:issueID/attachments/:attachmentID", h.Get)
	g.GET("/:issueID/attachments/:attachmentID/download", h.Download)
	g.DELETE("/:issueID/attachments/:attachmentID", h.Remove)
	g.GET("/:issueID/comments/:commentID/attachments", h.ListForComment)
	g.POST("/:issueID/comments/:commentID/attachments", h.AddToComment)
}

// AddToIssue attaches an uploaded file directly to the issue.
func (h *AttachmentHandler) AddToIssue(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}
	upload, closeFn, err := formUpload(c)
	if err != nil {
		return err
	}
	defer closeFn()

	attachment, err := h.attachments.AddToIssue(c.Request().Context(), issueID, id, upload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, attachment)
}

// AddToComment attaches an uploaded file to one of the issue's comments.
func (h *AttachmentHandler) AddToComment(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}
	commentID, err := pathID(c, "commentID")
	if err != nil {
		return err
	}
	upload, closeFn, err := formUpload(c)
	if err != nil {
		return err
	}
	defer closeFn()

	attachment, err := h.attachments.AddToComment(c.Request().Context(), issueID, commentID, id, upload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, attachment)
}

// Remove deletes an attachment and its backing file.
func (h *AttachmentHandler) Remove(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}
	attachmentID, err := pathID(c, "attachmentID")
	if err != nil {
		return err
	}

	if err := h.attachments.Remove(c.Request().Context(), issueID, attachmentID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Get retrieves attachment metadata.
func (h *AttachmentHandler) Get(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}
	attachmentID, err := pathID(c, "attachmentID")
	if err != nil {
		return err
	}

	attachment, err := h.attachments.Get(c.Request().Context(), issueID, attachmentID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, attachment)
}

// Download streams the attachment's content under its original filename.
func (h *AttachmentHandler) Download(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}
	attachmentID, err := pathID(c, "attachmentID")
	if err != nil {
		return err
	}

	attachment, content, err := h.attachments.Download(c.Request().Context(), issueID, attachmentID, id)
	if err != nil {
		return err
	}
	defer content.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, attachment.Filename))
	return c.Stream(http.StatusOK, echo.MIMEOctetStream, content)
}

// ListForIssue returns the issue's attachments, direct and comment-level.
func (h *AttachmentHandler) ListForIssue(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}
	params, err := ListParams(c)
	if err != nil {
		return err
	}

	attachments, count, err := h.attachments.ListForIssue(c.Request().Context(), issueID, id, attachmentFilter(c), params)
	if err != nil {
		return err
	}
	return JSONPage(c, params, count, attachments)
}

// ListForComment returns one comment's attachments.
func (h *AttachmentHandler) ListForComment(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}
	commentID, err := pathID(c, "commentID")
	if err != nil {
		return err
	}
	params, err := ListParams(c)
	if err != nil {
		return err
	}

	attachments, count, err := h.attachments.ListForComment(c.Request().Context(), issueID, commentID, id, attachmentFilter(c), params)
	if err != nil {
		return err
	}
	return JSONPage(c, params, count, attachments)
}

func attachmentFilter(c echo.Context) repository.AttachmentFilter {
	var filter repository.AttachmentFilter
	if v := c.QueryParam("extension"); v != "" {
		filter.Extension = &v
	}
	return filter
}

// formUpload extracts the uploaded file from the multipart form. The caller
// must invoke the returned close function.
func formUpload(c echo.Context) (service.Upload, func(), error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return service.Upload{}, nil, fmt.Errorf("%w: missing file field", domain.ErrInvalidInput)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return service.Upload{}, nil, fmt.Errorf("open uploaded file: %w", err)
	}

	return service.Upload{
		Filename: fileHeader.Filename,
		Content:  file,
	}, func() { file.Close() }, nil
}
