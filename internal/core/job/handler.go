package job

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"recfetch/internal/core/batch"
	"recfetch/internal/logger"
)

// Handler exposes the async batch endpoints: submit, poll, collect, cancel.
type Handler struct {
	svc *Service
	log *logger.Logger
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, log: logger.New("JobHandler")}
}

// HandleSubmit accepts the same body as the synchronous batch endpoint but
// returns immediately with a process id.
func (h *Handler) HandleSubmit(c *fiber.Ctx) error {
	var req batch.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	jobID, err := h.svc.Submit(c.Context(), req.Recordings, req.ConvertToMP3)
	if err != nil {
		h.log.LogErrorf("failed to submit batch job: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to submit job"})
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"processId": jobID})
}

func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	rec, err := h.svc.Status(c.Context(), c.Params("processId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "process not found"})
		}
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load process"})
	}
	return c.Status(http.StatusOK).JSON(rec.Snapshot())
}

func (h *Handler) HandleCancel(c *fiber.Ctx) error {
	err := h.svc.RequestCancel(c.Context(), c.Params("processId"))
	switch {
	case err == nil:
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": "cancellation requested"})
	case errors.Is(err, ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "process not found"})
	case errors.Is(err, ErrAlreadyTerminal):
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "process already finished"})
	default:
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to cancel process"})
	}
}

// HandleDownload streams the finished archive. The record and workspace
// are reclaimed only after the whole file went over the wire, so an
// interrupted download can be retried.
func (h *Handler) HandleDownload(c *fiber.Ctx) error {
	jobID := c.Params("processId")
	rec, err := h.svc.Result(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotReady) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "no completed result for this process"})
		}
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load process"})
	}

	archivePath := rec.ResultArchivePath
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="recordings_batch_%d.zip"`, time.Now().Unix()))

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		h.deliverArchive(w, jobID, archivePath)
	})
	return nil
}

// deliverArchive copies the archive into the response and reclaims the job
// only once the bytes actually reached the connection. The copy lands in
// the response buffer; a dead client surfaces on the flush, so the flush
// must succeed before anything is deleted.
func (h *Handler) deliverArchive(w *bufio.Writer, jobID, archivePath string) {
	f, err := os.Open(archivePath)
	if err != nil {
		h.log.LogErrorf("job %s: failed to open archive %s: %v", jobID, archivePath, err)
		return
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		// Client went away mid-stream; keep the result for a retry.
		h.log.LogDebugf("job %s: archive stream interrupted: %v", jobID, err)
		return
	}
	if err := w.Flush(); err != nil {
		h.log.LogDebugf("job %s: archive stream interrupted: %v", jobID, err)
		return
	}
	h.svc.FinishDelivery(context.Background(), jobID)
}
