package batch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"recfetch/internal/core/candidate"
	"recfetch/internal/core/provider"
	"recfetch/internal/logger"
	"recfetch/internal/workspace"
)

// Request is the body shared by the synchronous and asynchronous batch
// endpoints.
type Request struct {
	Recordings   []candidate.Candidate `json:"recordings"`
	ConvertToMP3 bool                  `json:"convertToMp3"`
}

// Validate rejects empty batches and items without a fetchable URL, like
// the original backend: one bad item fails the whole request so the caller
// fixes its data.
func (r Request) Validate() error {
	if len(r.Recordings) == 0 {
		return errors.New("no recordings provided")
	}
	invalid := 0
	for _, rec := range r.Recordings {
		if strings.TrimSpace(rec.SourceURL) == "" {
			invalid++
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d recording(s) have no url_gravacao", invalid)
	}
	return nil
}

type searchRequest struct {
	URLBase    string `json:"url_base"`
	Login      string `json:"login"`
	Token      string `json:"token"`
	DataInicio string `json:"datainicio"`
	DataFim    string `json:"datafim"`
}

type Handler struct {
	svc        *Service
	provider   *provider.Client
	workspaces *workspace.Manager
	log        *logger.Logger
}

func NewHandler(svc *Service, providerClient *provider.Client, workspaces *workspace.Manager) *Handler {
	return &Handler{svc: svc, provider: providerClient, workspaces: workspaces, log: logger.New("BatchHandler")}
}

// HandleSearch queries the provider over the requested window and returns
// the normalized download candidates.
func (h *Handler) HandleSearch(c *fiber.Ctx) error {
	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.URLBase == "" || req.Login == "" || req.Token == "" || req.DataInicio == "" || req.DataFim == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url_base, login, token, datainicio and datafim are required"})
	}

	start, err := time.Parse(provider.TimeLayout, req.DataInicio)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "datainicio must be formatted as YYYY-MM-DD HH:MM:SS"})
	}
	end, err := time.Parse(provider.TimeLayout, req.DataFim)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "datafim must be formatted as YYYY-MM-DD HH:MM:SS"})
	}
	if end.Before(start) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "datafim cannot precede datainicio"})
	}

	baseURL := req.URLBase
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}

	records, err := h.provider.FetchAll(c.Context(), provider.Query{
		BaseURL: baseURL,
		Login:   req.Login,
		Token:   req.Token,
		Start:   start,
		End:     end,
	})
	if err != nil {
		return h.providerError(c, err)
	}

	candidates := candidate.MapToCandidates(records, baseURL)
	return c.JSON(fiber.Map{
		"total_records": len(records),
		"recordings":    candidates,
	})
}

func (h *Handler) providerError(c *fiber.Ctx, err error) error {
	var statusErr *provider.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Kind() {
		case provider.KindAuth:
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "provider authentication failed, check login and token"})
		case provider.KindClient:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": statusErr.Error()})
		default:
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": statusErr.Error()})
		}
	}
	h.log.LogErrorf("provider fetch failed: %v", err)
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
}

// HandleDownloadBatch is the synchronous flow: download, convert, archive
// and stream the zip back in one request. The scratch dir is released when
// the response stream ends, whether it completed or the client went away.
func (h *Handler) HandleDownloadBatch(c *fiber.Ctx) error {
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	h.log.LogInfof("batch request: %d recordings, convert=%v", len(req.Recordings), req.ConvertToMP3)

	ws, err := h.workspaces.Create("sync")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	ctx := c.Context()
	startedAt := time.Now()
	result, err := h.svc.Run(ctx, req.Recordings, req.ConvertToMP3, ws.Path(), NopSink{}, func() bool {
		select {
		case <-ctx.Done():
			return true
		default:
			return false
		}
	})
	if err != nil {
		defer ws.Release()
		if errors.Is(err, ErrNoFilesProduced) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":             "none of the requested recordings could be downloaded",
				"failedDownloads":   result.FailedDownloads,
				"failedConversions": result.FailedConversions,
			})
		}
		h.log.LogErrorf("batch run failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	report := BuildReport(startedAt, len(req.Recordings), req.ConvertToMP3, result)
	archivePath := ws.File("recordings.zip")
	if err := WriteArchive(result, report, archivePath); err != nil {
		ws.Release()
		h.log.LogErrorf("archive assembly failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":             err.Error(),
			"failedDownloads":   result.FailedDownloads,
			"failedConversions": result.FailedConversions,
		})
	}

	filename := fmt.Sprintf("recordings_batch_%d.zip", time.Now().Unix())
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	h.streamFileAndRelease(c, archivePath, ws)
	return nil
}

// HandleDownloadSingle downloads one recording, converts it and streams
// the MP3 back.
func (h *Handler) HandleDownloadSingle(c *fiber.Ctx) error {
	var req struct {
		RecordingURL string `json:"recordingUrl"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.RecordingURL) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "recordingUrl is required"})
	}

	ws, err := h.workspaces.Create("single")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	originalPath := ws.File("original.gsm")
	if err := h.svc.download(c.Context(), req.RecordingURL, originalPath); err != nil {
		ws.Release()
		h.log.LogErrorf("single download failed for %s: %v", req.RecordingURL, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to download the recording", "details": err.Error()})
	}

	base := singleBaseName(req.RecordingURL)
	mp3Path := ws.File(base + ".mp3")
	if err := h.svc.transcoder.ToMP3(c.Context(), originalPath, mp3Path); err != nil {
		ws.Release()
		h.log.LogErrorf("single conversion failed for %s: %v", req.RecordingURL, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to convert the recording", "details": err.Error()})
	}

	c.Set(fiber.HeaderContentType, "audio/mpeg")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", base+".mp3"))
	h.streamFileAndRelease(c, mp3Path, ws)
	return nil
}

// streamFileAndRelease hands the file to fasthttp's body stream writer.
func (h *Handler) streamFileAndRelease(c *fiber.Ctx, filePath string, ws *workspace.Workspace) {
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		h.streamWorkspaceFile(w, filePath, ws)
	})
}

// streamWorkspaceFile copies filePath into the response and tears the
// workspace down when the stream ends, on normal completion and on client
// disconnect alike; Release being idempotent makes the overlap of those
// two harmless.
func (h *Handler) streamWorkspaceFile(w *bufio.Writer, filePath string, ws *workspace.Workspace) {
	defer ws.Release()
	f, err := os.Open(filePath)
	if err != nil {
		h.log.LogErrorf("open %s for streaming: %v", filePath, err)
		return
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		// The client is gone; nobody is left to report this to.
		h.log.LogDebugf("response stream ended early: %v", err)
		return
	}
	if err := w.Flush(); err != nil {
		h.log.LogDebugf("response stream ended early: %v", err)
	}
}

// singleBaseName derives the download filename from the recording URL,
// dropping query, fragment and the source extension.
func singleBaseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	name := rawURL
	if err == nil {
		name = u.Path
	}
	name = path.Base(name)
	name = strings.TrimSuffix(name, path.Ext(name))
	if name == "" || name == "." || name == "/" {
		return "recording"
	}
	return sanitize(name)
}
