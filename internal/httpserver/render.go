package httpserver

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gofiber/fiber/v2"
	fiberfs "github.com/gofiber/fiber/v2/middleware/filesystem"

	"imgtranslate/internal/language"
	"imgtranslate/internal/session"
)

// Placeholder copy shown in result cards.
const (
	noPreviewMessage = "No image preview available"
	noTextMessage    = "No text could be extracted from this image"
)

//go:embed web/templates web/static
var webFS embed.FS

type renderer struct {
	index *template.Template
}

func newRenderer() (*renderer, error) {
	index, err := template.ParseFS(webFS, "web/templates/index.html")
	if err != nil {
		return nil, err
	}
	return &renderer{index: index}, nil
}

func mountStatic(app *fiber.App) {
	static, err := fs.Sub(webFS, "web/static")
	if err != nil {
		return
	}
	app.Use("/static", fiberfs.New(fiberfs.Config{
		Root:   http.FS(static),
		Browse: false,
	}))
}

type pageView struct {
	Languages        []language.Language
	Selected         language.Language
	Results          []resultView
	Loaded           bool
	Stale            bool
	NoPreviewMessage string
	NoTextMessage    string
}

type resultView struct {
	Index        int
	Filename     string
	HasImage     bool
	ShowText     bool
	Extracted    string
	Translated   string
	Language     string
	DownloadName string
	Diagnostics  []string
}

func buildPage(sess *session.Session) pageView {
	selected := sess.Language()
	results := sess.Results()

	page := pageView{
		Languages:        language.All(),
		Selected:         selected,
		Loaded:           sess.State() == session.BatchLoaded,
		NoPreviewMessage: noPreviewMessage,
		NoTextMessage:    noTextMessage,
		Results:          make([]resultView, 0, len(results)),
	}

	for i, r := range results {
		if retranslatable(r, selected) {
			page.Stale = true
		}
		page.Results = append(page.Results, resultView{
			Index:        i,
			Filename:     r.Filename,
			HasImage:     r.Image != nil,
			ShowText:     r.HasText(),
			Extracted:    r.Extracted,
			Translated:   r.Translated,
			Language:     r.Language.Name,
			DownloadName: r.DownloadFilename(),
			Diagnostics:  r.Diagnostics,
		})
	}
	return page
}

// retranslatable reports whether r holds recognized text that has no
// translation under selected.
func retranslatable(r *session.Result, selected language.Language) bool {
	if r.Image == nil || !r.HasText() {
		return false
	}
	return !r.HasTranslation() || r.Language.Name != selected.Name
}

func (r *renderer) renderIndex(c *fiber.Ctx, page pageView) error {
	var buf bytes.Buffer
	if err := r.index.Execute(&buf, page); err != nil {
		return err
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}
