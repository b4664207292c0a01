package main

import (
	"net/http"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
)

// healthy reports whether the server can reach its database.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	if err := app.db.ReadOnly.PingContext(r.Context()); err != nil {
		app.serverError(w, r, errors.Wrap(err, "ping database"))
		return
	}
	app.writeJSON(w, r, map[string]string{"status": "ok"})
}
