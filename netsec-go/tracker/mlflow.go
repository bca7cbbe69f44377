package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/fileutil"
)

const apiPrefix = "/api/2.0/mlflow"

// MLflowTracker talks to the REST API of an MLflow tracking server.
type MLflowTracker struct {
	base       string
	httpClient *http.Client
	// Username and Password are sent as basic auth when Username is set
	Username string
	Password string

	experiments map[string]string
}

// NewMLflowTracker returns a tracker for the server at base. A nil client uses a client
// with a 30 second timeout.
func NewMLflowTracker(base string, client *http.Client) *MLflowTracker {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &MLflowTracker{
		base:        strings.TrimRight(base, "/"),
		httpClient:  client,
		experiments: make(map[string]string),
	}
}

type mlflowTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type mlflowMetric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

type mlflowError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

type apiError struct {
	status int
	mlflowError
}

func (e *apiError) Error() string {
	return fmt.Sprintf("mlflow returned %d: %s %s", e.status, e.ErrorCode, e.Message)
}

func isCode(err error, code string) bool {
	e, ok := err.(*apiError)
	return ok && e.ErrorCode == code
}

// LogRun implements Tracker. It creates a run, logs params and metrics in one batch,
// uploads the model and registers it as a new version of RegisteredModelName.
func (m *MLflowTracker) LogRun(ctx context.Context, run Run) (Result, error) {
	expID, err := m.experimentID(ctx, run.experiment())
	if err != nil {
		return Result{}, errors.E(errors.TrackingError, err, "resolving experiment %s", run.experiment())
	}

	now := time.Now().UnixNano() / int64(time.Millisecond)
	var created struct {
		Run struct {
			Info struct {
				RunID       string `json:"run_id"`
				ArtifactURI string `json:"artifact_uri"`
			} `json:"info"`
		} `json:"run"`
	}
	err = m.post(ctx, "/runs/create", map[string]interface{}{
		"experiment_id": expID,
		"start_time":    now,
		"tags": []mlflowTag{
			{Key: "mlflow.runName", Value: run.ModelName + "-" + run.Stage},
			{Key: "pipeline_run_id", Value: run.PipelineRunID},
		},
	}, &created)
	if err != nil {
		return Result{}, errors.E(errors.TrackingError, err, "creating run")
	}
	res := Result{RunID: created.Run.Info.RunID}

	status := "FAILED"
	defer func() {
		m.post(ctx, "/runs/update", map[string]interface{}{
			"run_id":   res.RunID,
			"status":   status,
			"end_time": time.Now().UnixNano() / int64(time.Millisecond),
		}, nil)
	}()

	var metrics []mlflowMetric
	for k, v := range run.metrics() {
		metrics = append(metrics, mlflowMetric{Key: k, Value: v, Timestamp: now})
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Key < metrics[j].Key })
	var params []mlflowTag
	for k, v := range stringParams(run) {
		params = append(params, mlflowTag{Key: k, Value: v})
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Key < params[j].Key })

	err = m.post(ctx, "/runs/log-batch", map[string]interface{}{
		"run_id":  res.RunID,
		"metrics": metrics,
		"params":  params,
	}, nil)
	if err != nil {
		return res, errors.E(errors.TrackingError, err, "logging metrics")
	}

	if run.ModelPath != "" {
		source, err := m.upload(ctx, expID, res.RunID, created.Run.Info.ArtifactURI, run.ModelPath)
		if err != nil {
			return res, errors.E(errors.TrackingError, err, "uploading model")
		}
		version, err := m.register(ctx, res.RunID, source)
		if err != nil {
			return res, errors.E(errors.TrackingError, err, "registering model")
		}
		res.Registered = true
		res.Version = version
	}

	status = "FINISHED"
	return res, nil
}

// Close implements Tracker
func (m *MLflowTracker) Close() error {
	m.httpClient.CloseIdleConnections()
	return nil
}

func (m *MLflowTracker) experimentID(ctx context.Context, name string) (string, error) {
	if id, ok := m.experiments[name]; ok {
		return id, nil
	}

	var found struct {
		Experiment struct {
			ExperimentID string `json:"experiment_id"`
		} `json:"experiment"`
	}
	err := m.do(ctx, "GET", apiPrefix+"/experiments/get-by-name?experiment_name="+url.QueryEscape(name), nil, "", &found)
	switch {
	case err == nil:
		m.experiments[name] = found.Experiment.ExperimentID
		return found.Experiment.ExperimentID, nil
	case !isCode(err, "RESOURCE_DOES_NOT_EXIST"):
		return "", err
	}

	var created struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := m.post(ctx, "/experiments/create", map[string]string{"name": name}, &created); err != nil {
		return "", err
	}
	m.experiments[name] = created.ExperimentID
	return created.ExperimentID, nil
}

// upload stores the model through the artifact proxy and returns the artifact source uri.
func (m *MLflowTracker) upload(ctx context.Context, expID, runID, artifactURI, modelPath string) (string, error) {
	r, err := fileutil.NewReader(modelPath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	rel := path.Join(expID, runID, "artifacts", "model", path.Base(modelPath))
	if err := m.do(ctx, "PUT", "/api/2.0/mlflow-artifacts/artifacts/"+rel, r, "application/octet-stream", nil); err != nil {
		return "", err
	}
	if artifactURI == "" {
		artifactURI = "mlflow-artifacts:/" + path.Join(expID, runID, "artifacts")
	}
	return strings.TrimRight(artifactURI, "/") + "/model", nil
}

func (m *MLflowTracker) register(ctx context.Context, runID, source string) (int, error) {
	err := m.post(ctx, "/registered-models/create", map[string]string{"name": RegisteredModelName}, nil)
	if err != nil && !isCode(err, "RESOURCE_ALREADY_EXISTS") {
		return 0, err
	}

	var created struct {
		ModelVersion struct {
			Version string `json:"version"`
		} `json:"model_version"`
	}
	err = m.post(ctx, "/model-versions/create", map[string]string{
		"name":   RegisteredModelName,
		"source": source,
		"run_id": runID,
	}, &created)
	if err != nil {
		return 0, err
	}
	version, err := strconv.Atoi(created.ModelVersion.Version)
	if err != nil {
		return 0, errors.Errorf("bad model version %q", created.ModelVersion.Version)
	}
	return version, nil
}

func (m *MLflowTracker) post(ctx context.Context, endpoint string, body, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return m.do(ctx, "POST", apiPrefix+endpoint, bytes.NewReader(buf), "application/json", out)
}

func (m *MLflowTracker) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, m.base+endpoint, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if m.Username != "" {
		req.SetBasicAuth(m.Username, m.Password)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e := &apiError{status: resp.StatusCode}
		buf, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(buf, &e.mlflowError) != nil {
			e.Message = strings.TrimSpace(string(buf))
		}
		return e
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
