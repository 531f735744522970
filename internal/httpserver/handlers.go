package httpserver

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"imgtranslate/internal/imaging"
	"imgtranslate/internal/language"
	"imgtranslate/internal/logger"
	"imgtranslate/internal/session"
)

func (s *Server) index(c *fiber.Ctx) error {
	return s.pages.renderIndex(c, buildPage(sessionFrom(c)))
}

func (s *Server) setLanguage(c *fiber.Ctx) error {
	sess := sessionFrom(c)
	lang, ok := language.Lookup(c.FormValue("language"))
	if !ok {
		return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("unsupported language %q", c.FormValue("language")))
	}
	sess.SetLanguage(lang)
	sessLog := logger.WithSession("httpserver", sess.ID)
	sessLog.Debug().Str("language", lang.Name).Msg("Language selected")
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (s *Server) upload(c *fiber.Ctx) error {
	sess := sessionFrom(c)
	log := logger.WithSession("httpserver", sess.ID)

	form, err := c.MultipartForm()
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "multipart form required")
	}
	headers := form.File["images"]
	if len(headers) == 0 {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	for _, fh := range headers {
		if !imaging.HasAllowedExtension(fh.Filename) {
			return writeError(c, fiber.StatusBadRequest,
				fmt.Sprintf("unsupported file type %q: accepted extensions are .png, .jpg, .jpeg", fh.Filename))
		}
	}

	uploads := make([]session.Upload, 0, len(headers))
	for _, fh := range headers {
		data, err := readFormFile(fh)
		if err != nil {
			// An unreadable part becomes an empty upload and is reported on its record.
			log.Warn().Err(err).Str("file", fh.Filename).Msg("Failed to read upload")
		}
		uploads = append(uploads, session.Upload{Filename: fh.Filename, Data: data})
	}

	lang := sess.Language()
	sess.SetProgress(session.Progress{Total: len(uploads), Running: true})

	results := s.deps.Pipeline.Run(c.UserContext(), uploads, lang, sess.SetProgress)
	sess.LoadBatch(uploads, results)

	log.Info().Int("images", len(results)).Str("language", lang.Name).Msg("Batch loaded")
	return c.Redirect("/", fiber.StatusSeeOther)
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) reset(c *fiber.Ctx) error {
	sess := sessionFrom(c)
	sess.Reset()
	sessLog := logger.WithSession("httpserver", sess.ID)
	sessLog.Debug().Msg("Session reset")
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (s *Server) retranslate(c *fiber.Ctx) error {
	sess := sessionFrom(c)
	results := sess.Results()
	if len(results) == 0 {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	sess.ReplaceResults(s.deps.Pipeline.Retranslate(c.UserContext(), results, sess.Language()))
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (s *Server) progress(c *fiber.Ctx) error {
	p := sessionFrom(c).Progress()
	return c.JSON(fiber.Map{
		"done":     p.Done,
		"total":    p.Total,
		"fraction": p.Fraction(),
		"filename": p.Filename,
		"running":  p.Running,
	})
}

// resultAt resolves the :idx route parameter against the session results.
func resultAt(c *fiber.Ctx) (*session.Result, error) {
	idx, err := strconv.Atoi(c.Params("idx"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid result index")
	}
	r, ok := sessionFrom(c).Result(idx)
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "result not found")
	}
	return r, nil
}

func (s *Server) resultImage(c *fiber.Ctx) error {
	r, err := resultAt(c)
	if err != nil {
		return err
	}
	if r.Image == nil {
		return writeError(c, fiber.StatusNotFound, noPreviewMessage)
	}
	data, err := imaging.EncodePNG(r.Image)
	if err != nil {
		return err
	}
	c.Type("png")
	return c.Send(data)
}

func (s *Server) resultDownload(c *fiber.Ctx) error {
	r, err := resultAt(c)
	if err != nil {
		return err
	}
	if !r.HasTranslation() {
		return writeError(c, fiber.StatusNotFound, "no translation available")
	}
	c.Attachment(r.DownloadFilename())
	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	return c.SendString(r.Translated)
}

func (s *Server) resultAudio(c *fiber.Ctx) error {
	r, err := resultAt(c)
	if err != nil {
		return err
	}
	if !r.HasTranslation() {
		return writeError(c, fiber.StatusNotFound, "no translation available")
	}

	audio, ok := r.Audio()
	if !ok {
		out := s.deps.Synthesizer.Synthesize(c.UserContext(), r.Translated, r.Language.SpeechCode)
		if !out.OK() {
			return writeError(c, fiber.StatusBadGateway, "Audio generation failed: "+out.Err.Error())
		}
		audio = out.Bytes()
		r.AttachAudio(audio)
	}

	c.Set(fiber.HeaderContentType, "audio/mpeg")
	return c.Send(audio)
}

func (s *Server) languages(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"default":   language.Default().Name,
		"languages": language.All(),
	})
}

func (s *Server) healthz(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	start := time.Now()
	check := fiber.Map{
		"status":  "ok",
		"backend": s.deps.Translator.Backend().Name(),
	}
	overall := "ok"
	if err := s.deps.Translator.Ready(ctx); err != nil {
		check["status"] = "error"
		check["error"] = err.Error()
		overall = "degraded"
	}
	check["latency_ms"] = time.Since(start).Milliseconds()

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{"translator": check},
	})
}
