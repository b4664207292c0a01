package main

import (
	"net/http"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/ui"
	htmxmiddleware "github.com/donseba/go-htmx/middleware"
	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", cacheHeaders(http.FileServerFS(ui.Files)))

	session := alice.New(app.sessionManager.LoadAndSave, app.screenSession)
	dynamic := session.Append(app.limitBody, noSurf, commonContext, htmxmiddleware.MiddleWare)

	mux.Handle("GET /{$}", dynamic.ThenFunc(app.home))
	mux.Handle("POST /profile", dynamic.ThenFunc(app.updateProfile))
	mux.Handle("GET /image", dynamic.ThenFunc(app.image))
	mux.Handle("POST /image", dynamic.ThenFunc(app.uploadImage))
	mux.Handle("POST /analyze", dynamic.ThenFunc(app.analyze))
	mux.Handle("POST /chat", dynamic.ThenFunc(app.sendMessage))
	mux.Handle("POST /questions", dynamic.ThenFunc(app.answerQuestion))

	api := alice.New()
	if app.cors != nil {
		api = api.Append(app.cors.Handler)
	}
	mux.Handle("GET /api/screen", api.Extend(session).ThenFunc(app.screenSnapshot))
	mux.Handle("GET /api/etiology", api.ThenFunc(app.etiology))
	mux.HandleFunc("GET /api/healthy", app.healthy)
	mux.Handle("GET /metrics", app.metrics.Handler())

	common := alice.New(app.recoverPanic, secureHeaders, app.logRequest)
	return timeoutHandler(common.Then(mux), app.requestTimeout)
}
