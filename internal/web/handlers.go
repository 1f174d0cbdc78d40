package web

import (
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgnsrekt/graphview/internal/chart"
	"github.com/dgnsrekt/graphview/internal/export"
	"github.com/dgnsrekt/graphview/internal/series"
)

const (
	// activeElementHeader carries the value of the control that triggered an
	// htmx request.
	activeElementHeader = "HX-Active-Element-Value"
	htmxRequestHeader   = "HX-Request"
)

type searchResult struct {
	Collection string
	Label      string
}

func (p *Pages) handleIndex(w http.ResponseWriter, r *http.Request) {
	p.render(w, "index.html", map[string]any{
		"Title":  p.title,
		"Prefix": p.prefix,
	})
}

func (p *Pages) handleStatic(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	contentType, ok := staticTypes[ext]
	if !ok {
		http.Error(w, "Unsupported extension", http.StatusBadRequest)
		return
	}
	body, err := fs.ReadFile(embeddedFiles, "static/"+path.Base(filename))
	if err != nil {
		http.Error(w, "File not found", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(body)
}

func handleFavicon(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (p *Pages) handleSearch(w http.ResponseWriter, r *http.Request) {
	labels, err := p.reader.Search(r.Context(), r.URL.Query().Get("label-filter"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	results := make([]searchResult, 0, len(labels))
	for _, l := range labels {
		collection, label, _ := strings.Cut(l, "/")
		results = append(results, searchResult{Collection: collection, Label: label})
	}
	p.render(w, "search.html", map[string]any{
		"Prefix":  p.prefix,
		"Results": results,
	})
}

func (p *Pages) handleSeries(w http.ResponseWriter, r *http.Request) {
	collection := pathParam(r, "collection")
	label := pathParam(r, "series")

	schema, err := p.reader.Store().Schema(r.Context(), collection)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p.render(w, "series.html", map[string]any{
		"Prefix":     p.prefix,
		"Collection": collection,
		"Label":      label,
		"Columns":    schema.Columns,
	})
}

func (p *Pages) handleGraph(w http.ResponseWriter, r *http.Request) {
	req := series.GraphRequest{
		Collection:    pathParam(r, "collection"),
		Label:         pathParam(r, "label"),
		Column:        pathParam(r, "column"),
		Params:        r.URL.Query(),
		ActiveElement: r.Header.Get(activeElementHeader),
	}
	if req.ActiveElement == "" {
		req.ActiveElement = req.Params.Get("ui.nav")
	}
	if raw := chi.URLParam(r, "page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			writeError(w, r, chart.NewError(chart.CodeValidation, "invalid page "+strconv.Quote(raw), err))
			return
		}
		req.Page = page
	}

	view, err := p.reader.Graph(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	graph := map[string]any{
		"View":     view,
		"NextID":   view.GraphID + "-next",
		"GraphURL": p.graphURL(req),
	}
	if r.Header.Get(htmxRequestHeader) == "" {
		// Direct navigation gets the full page so a browser tab can open a graph URL.
		p.render(w, "index.html", map[string]any{
			"Title":  p.title,
			"Prefix": p.prefix,
			"Graph":  graph,
		})
		return
	}
	p.render(w, "graph.html", graph)
}

func (p *Pages) graphURL(req series.GraphRequest) string {
	return p.prefix + "/graph/" + pathEscapeAll(req.Collection, req.Label, req.Column)
}

func (p *Pages) handleRead(w http.ResponseWriter, r *http.Request) {
	q, err := readQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := p.reader.Read(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p.writeJSON(w, resp)
}

func (p *Pages) handleExport(w http.ResponseWriter, r *http.Request) {
	q, err := readQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := p.reader.ReadPage(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filename := strings.NewReplacer("/", "_", `"`, "").Replace(q.Label + "-" + q.Column + ".xlsx")
	w.Header().Set("Content-Type", export.XLSXContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := export.WriteXLSX(w, q.Column, page); err != nil {
		writeError(w, r, err)
	}
}

// readQuery extracts ui.* paging and bounds; every other non-empty query
// parameter is a dim filter.
func readQuery(r *http.Request) (series.ReadQuery, error) {
	params := r.URL.Query()
	q := series.ReadQuery{
		Collection: pathParam(r, "collection"),
		Label:      pathParam(r, "label"),
		Column:     pathParam(r, "column"),
		Start:      params.Get("ui.start"),
		Stop:       params.Get("ui.stop"),
		Filters:    map[string]string{},
	}
	if raw := params.Get("ui.page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return q, chart.NewError(chart.CodeValidation, "invalid ui.page "+strconv.Quote(raw), err)
		}
		q.Page = page
	}
	for name, values := range params {
		if strings.HasPrefix(name, "ui.") || name == "page_len" || len(values) == 0 || values[0] == "" {
			continue
		}
		q.Filters[name] = values[0]
	}
	return q, nil
}

func pathEscapeAll(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, s := range parts {
		escaped[i] = url.PathEscape(s)
	}
	return strings.Join(escaped, "/")
}
