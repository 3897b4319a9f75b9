package httpadapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/precip-render-service/internal/adapter/chart"
	"github.com/couchcryptid/precip-render-service/internal/domain"
)

var validate = validator.New()

// GridSource serves metadata and raw realization grids.
type GridSource interface {
	GetMetadata(ctx context.Context) (domain.Metadata, error)
	GetGrid(ctx context.Context, realization int, t domain.TimeLabel) (domain.Grid, error)
	GetAllRealizations(ctx context.Context, t domain.TimeLabel) ([]domain.Grid, error)
}

// Aggregator reduces all realizations at one hour to a single grid.
type Aggregator interface {
	Aggregate(ctx context.Context, mode domain.VisualizationMode, t domain.TimeLabel) (domain.Grid, error)
}

// FrameRenderer produces encoded overlay frames.
type FrameRenderer interface {
	Render(ctx context.Context, key domain.RenderKey) (domain.RenderedImage, error)
}

// PointInspector builds the per-cell time series.
type PointInspector interface {
	PointSeries(ctx context.Context, x, y int) (domain.PointSeries, error)
}

// API holds the /api/v1 handlers.
type API struct {
	grids     GridSource
	agg       Aggregator
	frames    FrameRenderer
	inspector PointInspector
	logger    *slog.Logger
}

// NewAPI creates the API handlers.
func NewAPI(grids GridSource, agg Aggregator, frames FrameRenderer, inspector PointInspector, logger *slog.Logger) *API {
	return &API{grids: grids, agg: agg, frames: frames, inspector: inspector, logger: logger}
}

// Register mounts the API routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/metadata", a.handleMetadata)
	mux.HandleFunc("GET /api/v1/grids/{time}", a.handleRealizations)
	mux.HandleFunc("GET /api/v1/grids/{time}/{realization}", a.handleGrid)
	mux.HandleFunc("GET /api/v1/aggregates/{mode}/{time}", a.handleAggregate)
	mux.HandleFunc("GET /api/v1/frames/{mode}/{time}", a.handleFrame)
	mux.HandleFunc("GET /api/v1/series", a.handleSeries)
	mux.HandleFunc("GET /api/v1/series/chart", a.handleChart)
}

type pointQuery struct {
	X *int `validate:"required,gte=0"`
	Y *int `validate:"required,gte=0"`
}

type chartQuery struct {
	pointQuery
	Width  int `validate:"omitempty,min=100,max=2000"`
	Height int `validate:"omitempty,min=100,max=2000"`
}

// badRequest marks caller errors that map to 400.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func (a *API) handleMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := a.grids.GetMetadata(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, newMetadataResponse(meta))
}

func (a *API) handleGrid(w http.ResponseWriter, r *http.Request) {
	t, err := timeParam(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	realization, err := strconv.Atoi(r.PathValue("realization"))
	if err != nil {
		a.writeError(w, r, badRequest{fmt.Sprintf("invalid realization %q", r.PathValue("realization"))})
		return
	}

	g, err := a.grids.GetGrid(r.Context(), realization, t)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := newGridResponse(t, g)
	resp.Realization = &realization
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (a *API) handleRealizations(w http.ResponseWriter, r *http.Request) {
	t, err := timeParam(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	meta, err := a.grids.GetMetadata(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	grids, err := a.grids.GetAllRealizations(r.Context(), t)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	resp := make([]gridResponse, len(grids))
	for i, g := range grids {
		realization := meta.RealizationMin + i
		resp[i] = newGridResponse(t, g)
		resp[i].Realization = &realization
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (a *API) handleAggregate(w http.ResponseWriter, r *http.Request) {
	key, err := renderKeyParam(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	g, err := a.agg.Aggregate(r.Context(), key.Mode, key.Time)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := newGridResponse(key.Time, g)
	resp.Mode = key.Mode.String()
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (a *API) handleFrame(w http.ResponseWriter, r *http.Request) {
	key, err := renderKeyParam(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	img, err := a.frames.Render(r.Context(), key)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if img.Empty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img.PNG)))
	w.Header().Set("Last-Modified", img.RenderedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.PNG)
}

func (a *API) handleSeries(w http.ResponseWriter, r *http.Request) {
	var q pointQuery
	if err := parsePointQuery(r, &q); err != nil {
		a.writeError(w, r, err)
		return
	}
	s, err := a.inspector.PointSeries(r.Context(), *q.X, *q.Y)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, newSeriesResponse(s))
}

func (a *API) handleChart(w http.ResponseWriter, r *http.Request) {
	var q chartQuery
	if err := parsePointQuery(r, &q.pointQuery); err != nil {
		a.writeError(w, r, err)
		return
	}
	var err error
	if q.Width, err = optionalInt(r, "width"); err != nil {
		a.writeError(w, r, err)
		return
	}
	if q.Height, err = optionalInt(r, "height"); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := validate.Struct(q); err != nil {
		a.writeError(w, r, badRequest{err.Error()})
		return
	}

	s, err := a.inspector.PointSeries(r.Context(), *q.X, *q.Y)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := chart.Render(&buf, s, q.Width, q.Height); err != nil {
		a.writeError(w, r, fmt.Errorf("render chart: %w", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func timeParam(r *http.Request) (domain.TimeLabel, error) {
	t, err := domain.ParseTimeLabel(r.PathValue("time"))
	if err != nil {
		return "", badRequest{err.Error()}
	}
	return t, nil
}

func renderKeyParam(r *http.Request) (domain.RenderKey, error) {
	mode, err := domain.ParseMode(r.PathValue("mode"))
	if err != nil {
		return domain.RenderKey{}, err
	}
	t, err := timeParam(r)
	if err != nil {
		return domain.RenderKey{}, err
	}
	return domain.RenderKey{Mode: mode, Time: t}, nil
}

func parsePointQuery(r *http.Request, q *pointQuery) error {
	for name, dst := range map[string]**int{"x": &q.X, "y": &q.Y} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest{fmt.Sprintf("invalid %s %q", name, raw)}
		}
		*dst = &v
	}
	if err := validate.Struct(q); err != nil {
		return badRequest{err.Error()}
	}
	return nil
}

func optionalInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest{fmt.Sprintf("invalid %s %q", name, raw)}
	}
	return v, nil
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		bad       badRequest
		unknown   *domain.UnknownModeError
		fetchErr  *domain.FetchError
		formatErr *domain.FormatError
	)
	switch {
	case errors.As(err, &bad), errors.As(err, &unknown):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRealizationOutOfRange),
		errors.Is(err, domain.ErrTimeOutOfRange),
		errors.Is(err, domain.ErrPointOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &fetchErr), errors.As(err, &formatErr):
		return http.StatusBadGateway
	default:
		// Dimension mismatches and empty realization ranges land here.
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		a.logger.Debug("request cancelled", "path", r.URL.Path)
		return
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		a.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
