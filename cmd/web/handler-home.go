package main

import (
	"net/http"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/contexthelpers"
)

func (app *application) home(w http.ResponseWriter, r *http.Request) {
	screen, err := app.screens.Screen(r.Context(), contexthelpers.ScreenID(r.Context()))
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	app.render(w, r, http.StatusOK, "home", app.newScreenTemplateData(r, screen))
}
