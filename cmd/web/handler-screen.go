package main

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/contexthelpers"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/models"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/repositories"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/screening"
	"github.com/gabriel-vasile/mimetype"
)

const (
	imageFormField    = "image"
	multipartMemory   = 1 << 20
	genericBinaryType = "application/octet-stream"
)

var profileFields = []string{models.FieldAge, models.FieldGender, models.FieldTobaccoUse}

// profileUpdates picks the intake fields present in the form. Missing fields keep their current value.
func profileUpdates(form url.Values) []screening.ProfileUpdate {
	var updates []screening.ProfileUpdate
	for _, field := range profileFields {
		if _, ok := form[field]; ok {
			updates = append(updates, screening.ProfileUpdate{Field: field, Value: form.Get(field)})
		}
	}
	return updates
}

// parseForm parses both url-encoded and multipart bodies.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(multipartMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return errors.Wrap(err, "parse multipart form")
	}
	if err = r.ParseForm(); err != nil {
		return errors.Wrap(err, "parse form")
	}
	return nil
}

// readImage returns the uploaded image. ok is false when no file was selected.
func readImage(r *http.Request) (models.ImageFile, bool, error) {
	if r.MultipartForm == nil {
		return models.ImageFile{}, false, nil
	}
	var (
		file   multipart.File
		header *multipart.FileHeader
		err    error
	)
	if file, header, err = r.FormFile(imageFormField); err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return models.ImageFile{}, false, nil
		}
		return models.ImageFile{}, false, errors.Wrap(err, "form file")
	}
	defer func() {
		_ = file.Close()
	}()
	data, err := io.ReadAll(file)
	if err != nil {
		return models.ImageFile{}, false, errors.Wrap(err, "read image")
	}
	if len(data) == 0 {
		return models.ImageFile{}, false, nil
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == genericBinaryType {
		contentType = mimetype.Detect(data).String()
	}
	return models.ImageFile{
		Filename:    filepath.Base(header.Filename),
		ContentType: contentType,
		Data:        data,
	}, true, nil
}

func (app *application) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := parseForm(r); err != nil {
		app.screeningError(w, r, err)
		return
	}
	screen, err := app.screens.UpdateProfile(ctx, contexthelpers.ScreenID(ctx), profileUpdates(r.PostForm)...)
	if err != nil {
		app.screeningError(w, r, err)
		return
	}
	app.respond(w, r, screen)
}

func (app *application) uploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := contexthelpers.ScreenID(ctx)
	if err := parseForm(r); err != nil {
		app.screeningError(w, r, err)
		return
	}
	file, ok, err := readImage(r)
	if err != nil {
		app.screeningError(w, r, err)
		return
	}
	var screen models.Screen
	if ok {
		screen, err = app.screens.UploadImage(ctx, id, file)
	} else {
		screen, err = app.screens.Screen(ctx, id)
	}
	if err != nil {
		app.screeningError(w, r, err)
		return
	}
	app.respond(w, r, screen)
}

// image serves the current upload. The version query parameter only busts caches, the latest image always wins.
func (app *application) image(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	file, err := app.screens.Image(ctx, contexthelpers.ScreenID(ctx))
	if errors.Is(err, repositories.ErrNotFound) {
		app.notFound(w, r)
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	// Uploads are served as images or not at all, whatever the client declared.
	contentType := file.ContentType
	if !strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "image/svg") {
		contentType = genericBinaryType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	w.Header().Set("Cache-Control", "private, no-cache")
	if _, err = w.Write(file.Data); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelDebug, "write image", errors.SlogError(err))
	}
}

// analyze takes the intake fields and the image of the combined form, stores them and runs the analysis. Missing
// image and upstream failures are shown on the screen rather than as HTTP errors.
func (app *application) analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := contexthelpers.ScreenID(ctx)
	if err := parseForm(r); err != nil {
		app.screeningError(w, r, err)
		return
	}
	if updates := profileUpdates(r.PostForm); len(updates) > 0 {
		if _, err := app.screens.UpdateProfile(ctx, id, updates...); err != nil {
			app.screeningError(w, r, err)
			return
		}
	}
	file, ok, err := readImage(r)
	if err != nil {
		app.screeningError(w, r, err)
		return
	}
	if ok {
		if _, err = app.screens.UploadImage(ctx, id, file); err != nil {
			app.screeningError(w, r, err)
			return
		}
	}

	screen, err := app.screens.Analyze(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, screening.ErrMissingImage), errors.Is(err, screening.ErrAnalysisFailed):
		app.logger.LogAttrs(ctx, slog.LevelInfo, "analysis not completed", errors.SlogError(err))
	default:
		app.screeningError(w, r, err)
		return
	}
	app.respond(w, r, screen)
}

func (app *application) sendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := parseForm(r); err != nil {
		app.screeningError(w, r, err)
		return
	}
	screen, err := app.screens.SendMessage(ctx, contexthelpers.ScreenID(ctx), r.PostForm.Get("message"))
	if err != nil {
		app.screeningError(w, r, err)
		return
	}
	app.respond(w, r, screen)
}

func (app *application) answerQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := parseForm(r); err != nil {
		app.screeningError(w, r, err)
		return
	}
	screen, err := app.screens.AnswerQuestion(ctx, contexthelpers.ScreenID(ctx), r.PostForm.Get("answer"))
	if err != nil {
		app.screeningError(w, r, err)
		return
	}
	app.respond(w, r, screen)
}
