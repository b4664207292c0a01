package main

import (
	"log/slog"
	"net/http"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/models"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/screening"
)

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status),
		slog.String("method", method), slog.String("uri", uri), slog.Any("formdata", r.PostForm))
	http.Error(w, http.StatusText(status), status)
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.clientError(w, r, http.StatusNotFound)
}

// screeningError responds to the errors of [screening.Service] that are caused by the request.
func (app *application) screeningError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, screening.ErrBusy), errors.Is(err, screening.ErrNoPrediction):
		app.clientError(w, r, http.StatusConflict)
	case errors.Is(err, models.ErrUnknownField), errors.Is(err, models.ErrInvalidValue):
		app.clientError(w, r, http.StatusBadRequest)
	case errors.As(err, &maxBytesErr):
		app.clientError(w, r, http.StatusRequestEntityTooLarge)
	default:
		app.serverError(w, r, err)
	}
}
