// Package httpmetrics counts handled requests, tagged by path and status.
package httpmetrics

import (
	"net/http"
	"strconv"

	"github.com/golang/glog"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	pathKey   = tag.MustNewKey("path")
	statusKey = tag.MustNewKey("status")
)

type Wrapper struct {
	requestCount     *stats.Int64Measure
	requestCountView *view.View

	inner http.Handler
}

func New(inner http.Handler) *Wrapper {
	w := &Wrapper{}

	w.requestCount = stats.Int64("requests", "", stats.UnitDimensionless)
	w.requestCountView = &view.View{
		Name:        "requests",
		Description: "Counter of requests that have been handled",

		TagKeys: []tag.Key{pathKey, statusKey},

		Measure:     w.requestCount,
		Aggregation: view.Count(),
	}

	w.inner = inner

	return w
}

func (h *Wrapper) RegisterMetrics() {
	view.Register(h.requestCountView)
}

// statusRecorder remembers the status code written by the inner handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (h *Wrapper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	h.inner.ServeHTTP(recorder, r)

	glog.Infof("Served path=%q status=%d remoteaddr=%q", r.URL.Path, recorder.status, r.RemoteAddr)

	stats.RecordWithOptions(
		r.Context(),
		stats.WithTags(
			tag.Insert(pathKey, r.URL.Path),
			tag.Insert(statusKey, strconv.Itoa(recorder.status)),
		),
		stats.WithMeasurements(h.requestCount.M(1)))
}
