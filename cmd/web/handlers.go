package main

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/contexthelpers"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/models"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/ssr"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/ui"
)

// screenTarget is the element the htmx partial responses replace.
const screenTarget = "#screen"

// pageTemplate returns a template for the given page name.
//
// pageName corresponds to directory inside ui/templates/pages folder. It has to include a template named "page".
func (app *application) pageTemplate(pageName string) (*template.Template, error) {
	patterns := []string{
		"templates/base.gohtml",
		fmt.Sprintf("templates/pages/%s/*.gohtml", pageName),
	}

	// We need to initialize the FuncMap before parsing the files. These will be overridden in the render function.
	t, err := template.New(pageName).Funcs(template.FuncMap{
		"nonce": func() template.HTMLAttr {
			panic("not implemented")
		},
		"csrf": func() template.HTML {
			panic("not implemented")
		},
		"clock": formatTime,
	}).ParseFS(ui.Files, patterns...)
	if err != nil {
		return nil, errors.Wrap(err, "parse page templates", slog.String("page", pageName))
	}
	return t, nil
}

// execute runs the named template of the page into a buffer so that a failure never writes a partial response.
func (app *application) execute(r *http.Request, page string, name string, data any) (*bytes.Buffer, error) {
	t, err := app.pageTemplate(page)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()
	nonce := fmt.Sprintf("nonce=\"%s\"", contexthelpers.CSPNonce(ctx))
	csrf := fmt.Sprintf("<input type=\"hidden\" name=\"csrf_token\" value=\"%s\"/>",
		template.HTMLEscapeString(contexthelpers.CSRFToken(ctx)))
	t.Funcs(template.FuncMap{
		"nonce": func() template.HTMLAttr {
			return template.HTMLAttr(nonce) //nolint:gosec // we trust the nonce since it's not provided by user.
		},
		"csrf": func() template.HTML {
			return template.HTML(csrf) //nolint:gosec // the token is escaped above.
		},
	})

	buf := new(bytes.Buffer)
	if err = t.ExecuteTemplate(buf, name, data); err != nil {
		return nil, errors.Wrap(err, "execute template", slog.String("page", page), slog.String("template", name))
	}
	return buf, nil
}

// render writes the whole page with the custom elements expanded.
func (app *application) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	buf, err := app.execute(r, page, "base", data)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	out := new(bytes.Buffer)
	if err = ssr.ReplaceCustomElements(out, buf); err != nil {
		app.serverError(w, r, errors.Wrap(err, "replace custom elements", slog.String("page", page)))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = out.WriteTo(w)
}

// renderFragment writes a single template of the page, e.g. for an htmx swap.
func (app *application) renderFragment(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	page string,
	name string,
	data any,
) {
	buf, err := app.execute(r, page, name, data)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	out := new(bytes.Buffer)
	if err = ssr.ReplaceCustomElementsFragment(out, buf); err != nil {
		app.serverError(w, r, errors.Wrap(err, "replace custom elements", slog.String("template", name)))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = out.WriteTo(w)
}

// respond finishes a form submission. htmx requests get the updated screen for swapping in place, plain form
// submissions are redirected back to the page.
func (app *application) respond(w http.ResponseWriter, r *http.Request, screen models.Screen) {
	hx := app.htmx.NewHandler(w, r)
	if req := hx.Request(); req.HxRequest && !req.HxBoosted {
		hx.ReTarget(screenTarget)
		app.renderFragment(w, r, http.StatusOK, "home", "screen", app.newScreenTemplateData(r, screen))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
