// Package serve exposes training and batch prediction over HTTP.
package serve

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"html/template"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/codegangsta/negroni"
	"github.com/gocarina/gocsv"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru"
	"github.com/netsec-ml/netsec/netsec-go/bundle"
	"github.com/netsec-ml/netsec/netsec-go/pipeline/config"
	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/fileutil"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"go.uber.org/zap"
)

const (
	// PredictedColumn is appended to every uploaded row
	PredictedColumn = "predicted_column"
	maxUploadBytes  = 32 << 20
	cacheSize       = 4
)

// Options configures a Server.
type Options struct {
	ModelPath        string
	PreprocessorPath string
	// OutputPath receives the latest prediction table as CSV
	OutputPath   string
	Schema       *config.Schema
	TargetColumn string
	// Train runs a fresh pipeline; nil disables /train
	Train func(ctx context.Context) error
	// Context bounds training runs instead of the request, so a client that disconnects
	// does not abort a run. Defaults to context.Background().
	Context context.Context
	Log     *zap.Logger
}

// Server handles the HTTP routes. Safe for concurrent use.
type Server struct {
	opts     Options
	features featureList
	models   *lru.Cache

	m        sync.Mutex
	training bool

	// out serializes writes of the prediction table
	out sync.Mutex
}

// NewServer validates opts and creates a Server.
func NewServer(opts Options) (*Server, error) {
	if opts.Schema == nil {
		return nil, errors.E(errors.ConfigError, nil, "server needs a schema")
	}
	features := opts.Schema.FeatureNames(opts.TargetColumn)
	if len(features) == 0 {
		return nil, errors.E(errors.ConfigError, nil, "schema has no feature columns besides %s", opts.TargetColumn)
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Server{opts: opts, features: features, models: cache}, nil
}

// Handler returns the routes wrapped in panic recovery and permissive CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.HandleRoot).Methods("GET")
	r.HandleFunc("/docs", s.HandleDocs).Methods("GET")
	r.HandleFunc("/train", s.HandleTrain).Methods("GET")
	r.HandleFunc("/predict", s.HandlePredict).Methods("POST")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedHeaders([]string{"content-type", "pragma", "cache-control"}),
		handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "OPTIONS"}),
		handlers.AllowCredentials(),
	)

	return negroni.New(
		negroni.NewRecovery(),
		negroni.Wrap(cors(r)),
	)
}

// HandleRoot redirects to the route listing.
func (s *Server) HandleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/docs", http.StatusTemporaryRedirect)
}

// HandleDocs lists the routes.
func (s *Server) HandleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	docsTemplate.Execute(w, s.features)
}

// HandleTrain runs the training pipeline to completion. Only one run is allowed at a time.
func (s *Server) HandleTrain(w http.ResponseWriter, r *http.Request) {
	if s.opts.Train == nil {
		http.Error(w, "training is disabled", http.StatusNotFound)
		return
	}
	s.m.Lock()
	if s.training {
		s.m.Unlock()
		http.Error(w, "training already in progress", http.StatusConflict)
		return
	}
	s.training = true
	s.m.Unlock()
	defer func() {
		s.m.Lock()
		s.training = false
		s.m.Unlock()
	}()

	if err := s.opts.Train(s.opts.Context); err != nil {
		s.opts.Log.Error("training failed", zap.Error(err), zap.String("kind", string(errors.KindOf(err))), zap.NamedError("root", errors.Root(err)))
		http.Error(w, "training failed", http.StatusInternalServerError)
		return
	}
	s.opts.Log.Info("training complete")
	w.Write([]byte("Training is successful"))
}

// HandlePredict reads an uploaded CSV file, predicts every row with the final model and
// returns the rows with the prediction column as an HTML table.
func (s *Server) HandlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "expected a csv upload in field file", http.StatusBadRequest)
		return
	}
	defer file.Close()
	buf, err := ioutil.ReadAll(file)
	if err != nil {
		http.Error(w, "could not read upload", http.StatusBadRequest)
		return
	}

	header, rows, err := parseUpload(buf)
	if err != nil {
		s.opts.Log.Warn("bad upload", zap.Error(err))
		http.Error(w, "could not parse csv upload", http.StatusBadRequest)
		return
	}
	x, err := s.features.matrix(rows)
	if err != nil {
		s.opts.Log.Warn("bad upload", zap.Error(err))
		http.Error(w, "could not parse csv upload", http.StatusBadRequest)
		return
	}

	table, err := s.predict(header, rows, x)
	if err != nil {
		s.opts.Log.Error("prediction failed", zap.Error(err), zap.String("kind", string(errors.KindOf(err))), zap.NamedError("root", errors.Root(err)))
		http.Error(w, "prediction failed", http.StatusInternalServerError)
		return
	}
	s.opts.Log.Info("predicted", zap.Int("rows", len(rows)), zap.String("output", s.opts.OutputPath))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	tableTemplate.Execute(w, table)
}

type predictionTable struct {
	Header []string
	Rows   [][]string
}

func (s *Server) predict(header []string, rows []map[string]string, x frame.Matrix) (predictionTable, error) {
	b, err := s.model()
	if err != nil {
		return predictionTable{}, err
	}
	pred, err := b.Predict(x)
	if err != nil {
		return predictionTable{}, err
	}

	table := predictionTable{Header: append(append([]string(nil), header...), PredictedColumn)}
	for i, row := range rows {
		cells := make([]string, 0, len(table.Header))
		for _, h := range header {
			cells = append(cells, row[h])
		}
		table.Rows = append(table.Rows, append(cells, strconv.FormatFloat(pred[i], 'f', -1, 64)))
	}

	if s.opts.OutputPath != "" {
		s.out.Lock()
		err := writeTable(s.opts.OutputPath, table)
		s.out.Unlock()
		if err != nil {
			return predictionTable{}, errors.E(errors.PredictionError, err, "writing %s", s.opts.OutputPath)
		}
	}
	return table, nil
}

// model returns the final bundle, reloading it when either file changed.
func (s *Server) model() (*bundle.Bundle, error) {
	key, err := cacheKey(s.opts.ModelPath, s.opts.PreprocessorPath)
	if err != nil {
		return nil, errors.E(errors.PredictionError, err, "no final model available")
	}
	if b, ok := s.models.Get(key); ok {
		return b.(*bundle.Bundle), nil
	}
	b, err := bundle.LoadPair(s.opts.ModelPath, s.opts.PreprocessorPath)
	if err != nil {
		return nil, err
	}
	s.models.Add(key, b)
	s.opts.Log.Info("loaded final model", zap.String("model", s.opts.ModelPath), zap.String("kind", b.Model.Kind()))
	return b, nil
}

func cacheKey(paths ...string) (string, error) {
	var parts []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("%s@%d", p, info.ModTime().UnixNano()))
	}
	return strings.Join(parts, "|"), nil
}

func parseUpload(buf []byte) ([]string, []map[string]string, error) {
	header, err := gocsv.LazyCSVReader(bytes.NewReader(buf)).Read()
	if err != nil {
		return nil, nil, errors.Errorf("reading header: %v", err)
	}
	rows, err := gocsv.CSVToMaps(bytes.NewReader(buf))
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, errors.Errorf("no rows")
	}
	return header, rows, nil
}

type featureList []string

// matrix orders each row by the feature list. Absent columns and missing tokens become Missing.
func (f featureList) matrix(rows []map[string]string) (frame.Matrix, error) {
	x := make(frame.Matrix, len(rows))
	for i, row := range rows {
		x[i] = make([]float64, len(f))
		for j, name := range f {
			cell := strings.TrimSpace(row[name])
			if isMissing(cell) {
				x[i][j] = frame.Missing
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.Errorf("row %d column %s: %v", i+1, name, err)
			}
			x[i][j] = v
		}
	}
	return x, nil
}

func isMissing(cell string) bool {
	if cell == "" {
		return true
	}
	for _, t := range frame.DefaultMissingTokens {
		if cell == t {
			return true
		}
	}
	return false
}

func writeTable(path string, t predictionTable) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	w, err := fileutil.NewBufferedWriter(path)
	if err != nil {
		return err
	}
	defer errors.Defer(&err, w.Close)

	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	return cw.WriteAll(t.Rows)
}

var docsTemplate = template.Must(template.New("docs").Parse(`<html>
<head><title>Network Security</title></head>
<body>
<h2>Routes</h2>
<ul>
<li><code>GET /train</code> runs the training pipeline</li>
<li><code>POST /predict</code> predicts an uploaded csv file (form field <code>file</code>)</li>
</ul>
<h3>Feature columns</h3>
<ol>{{range .}}<li>{{.}}</li>{{end}}</ol>
</body>
</html>`))

var tableTemplate = template.Must(template.New("table").Parse(`<!DOCTYPE html>
<html>
<head><title>Predicted Data</title></head>
<body>
<h2>Predicted Data</h2>
<table class="table table-striped">
<thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</body>
</html>`))
