package server

import (
	"bytes"
	"encoding/json"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gonum.org/v1/gonum/mat"

	"modechoice-env/internal/env"
	"modechoice-env/internal/publisher"
	"modechoice-env/internal/trajectory"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type countingPublisher struct{ n int }

func (p *countingPublisher) PublishStep(publisher.StepMessage) error {
	p.n++
	return nil
}

func newTestServer(t *testing.T) (*Server, *gin.Engine, *countingPublisher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ds := &trajectory.Dataset{
		Features: []string{"feat_a", "feat_b"},
		Modes:    []string{"Mode::Car", "Mode::Walk"},
		Norm:     trajectory.Norm{Mean: []float64{0, 0}, Std: []float64{1, 0}},
		Trajectories: []trajectory.Trajectory{{
			Key:     "p12020-01-01",
			States:  mat.NewDense(3, 2, []float64{0.5, math.NaN(), 1.5, math.NaN(), 2.5, math.NaN()}),
			Actions: mat.NewDense(3, 2, []float64{1, 0, 0, 1, 1, 0}),
			Rewards: []float64{1, 1, 1},
		}},
	}
	e, err := env.New(ds, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("env.New: %v", err)
	}
	pub := &countingPublisher{}
	srv := New(e, pub, nil, 1)
	return srv, srv.Router(), pub
}

func do(t *testing.T, r http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var out envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, out
}

func TestSessionEpisodeOverHTTP(t *testing.T) {
	_, r, pub := newTestServer(t)

	code, resp := do(t, r, http.MethodPost, "/api/v1/sessions", "")
	if code != http.StatusCreated {
		t.Fatalf("create: status %d", code)
	}
	var created struct{ ID string }
	_ = json.Unmarshal(resp.Data, &created)
	if created.ID == "" {
		t.Fatalf("expected session id")
	}
	base := "/api/v1/sessions/" + created.ID

	code, _ = do(t, r, http.MethodPost, base+"/step", `{"action":0}`)
	if code != http.StatusConflict {
		t.Fatalf("step before reset: expected 409, got %d", code)
	}

	code, resp = do(t, r, http.MethodPost, base+"/reset", "")
	if code != http.StatusOK {
		t.Fatalf("reset: status %d", code)
	}
	var reset struct {
		State []*float64
		Phase string
	}
	_ = json.Unmarshal(resp.Data, &reset)
	if len(reset.State) != 2 || reset.State[0] == nil || *reset.State[0] != 0.5 || reset.State[1] != nil {
		t.Fatalf("unexpected reset state %+v", reset.State)
	}
	if reset.Phase != "running" {
		t.Fatalf("expected running phase, got %q", reset.Phase)
	}

	type stepOut struct {
		State  []*float64
		Reward float64
		Done   bool
		Info   map[string]any
	}
	actions := []int{0, 0, 0}
	wantReward := []float64{1, 0, 1}
	wantDone := []bool{false, false, true}
	for i, a := range actions {
		body, _ := json.Marshal(map[string]int{"action": a})
		code, resp = do(t, r, http.MethodPost, base+"/step", string(body))
		if code != http.StatusOK {
			t.Fatalf("step %d: status %d", i, code)
		}
		var out stepOut
		_ = json.Unmarshal(resp.Data, &out)
		if out.Reward != wantReward[i] || out.Done != wantDone[i] {
			t.Fatalf("step %d: got reward %v done %v", i, out.Reward, out.Done)
		}
		if out.Info == nil {
			t.Fatalf("step %d: expected empty info object", i)
		}
	}
	if pub.n != 3 {
		t.Fatalf("expected 3 published steps, got %d", pub.n)
	}

	code, _ = do(t, r, http.MethodDelete, base, "")
	if code != http.StatusOK {
		t.Fatalf("delete: status %d", code)
	}
	code, _ = do(t, r, http.MethodPost, base+"/reset", "")
	if code != http.StatusNotFound {
		t.Fatalf("reset after delete: expected 404, got %d", code)
	}
}

func TestStepRejectsMalformedBody(t *testing.T) {
	_, r, _ := newTestServer(t)
	_, resp := do(t, r, http.MethodPost, "/api/v1/sessions", "")
	var created struct{ ID string }
	_ = json.Unmarshal(resp.Data, &created)
	code, _ := do(t, r, http.MethodPost, "/api/v1/sessions/"+created.ID+"/step", `{"move":1}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestEnvInfo(t *testing.T) {
	_, r, _ := newTestServer(t)
	code, resp := do(t, r, http.MethodGet, "/api/v1/env", "")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	var info envInfo
	if err := json.Unmarshal(resp.Data, &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.NumActions != 2 || info.NumFeatures != 2 || info.Trajectories != 1 {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.LabelCounts[0] != 2 || info.LabelCounts[1] != 1 {
		t.Fatalf("unexpected label counts %v", info.LabelCounts)
	}
}

func TestEvaluate(t *testing.T) {
	_, r, _ := newTestServer(t)
	code, resp := do(t, r, http.MethodPost, "/api/v1/evaluate", `{"policy":"oracle","episodes":3}`)
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, resp.Message)
	}
	var sum struct {
		Episodes int
		Accuracy float64
	}
	_ = json.Unmarshal(resp.Data, &sum)
	if sum.Episodes != 3 || sum.Accuracy != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	code, _ = do(t, r, http.MethodPost, "/api/v1/evaluate", `{"policy":"nope","episodes":3}`)
	if code != http.StatusBadRequest {
		t.Fatalf("unknown policy: expected 400, got %d", code)
	}
}

func TestVectorMarshalNonFinite(t *testing.T) {
	b, err := json.Marshal(Vector{1, math.NaN(), math.Inf(-1), 0.25})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(b); got != "[1,null,null,0.25]" {
		t.Fatalf("unexpected encoding %s", got)
	}
}
