package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tripwire/internal/platform/config"
	perr "tripwire/internal/platform/errors"
	phttp "tripwire/internal/platform/net/http"
	hookshttp "tripwire/internal/services/api/hooks/http"
	discdomain "tripwire/internal/services/discovery/domain"
)

type fakeIngest struct {
	seen map[string]discdomain.Candidate
}

func (f *fakeIngest) Ingest(_ context.Context, c discdomain.Candidate) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]discdomain.Candidate{}
	}
	if _, dup := f.seen[c.VideoID]; dup {
		return false, nil
	}
	f.seen[c.VideoID] = c
	return true, nil
}

type fakeIntake struct {
	videoID   string
	violation bool
}

func (f *fakeIntake) Record(_ context.Context, videoID string, violation bool) error {
	if videoID == "missing" {
		return perr.NotFoundf("video %q is not tracked", videoID)
	}
	f.videoID = videoID
	f.violation = violation
	return nil
}

func newHooksRouter(ing *fakeIngest, res *fakeIntake) phttp.Router {
	r := phttp.NewServer(config.New()).Router()
	hookshttp.Register(r, hookshttp.Ports{Ingest: ing, Results: res})
	return r
}

func post(t *testing.T, r phttp.Router, path, body string) (*httptest.ResponseRecorder, phttp.Envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.Mux().ServeHTTP(rec, req)
	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return rec, env
}

func TestHooks_DiscoveredCreatesThenAbsorbs(t *testing.T) {
	ing := &fakeIngest{}
	r := newHooksRouter(ing, &fakeIntake{})

	body := `{"video_id":"vid-1","channel_id":"UC9","duration_secs":240,"views":1000,"keyword_hits":2}`

	rec, _ := post(t, r, "/discovered", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	c := ing.seen["vid-1"]
	if c.Strategy != discdomain.StrategyTracking {
		t.Fatalf("expected tracking default, got %q", c.Strategy)
	}
	if c.ChannelID != "UC9" || c.DurationSecs != 240 || c.KeywordHits != 2 {
		t.Fatalf("candidate lost fields: %+v", c)
	}

	rec, env := post(t, r, "/discovered", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d", rec.Code)
	}
	out, ok := env.Data.(map[string]any)
	if !ok || out["created"] != false {
		t.Fatalf("expected created=false on duplicate, got %#v", env.Data)
	}
}

func TestHooks_DiscoveredRejectsBadPayload(t *testing.T) {
	r := newHooksRouter(&fakeIngest{}, &fakeIntake{})

	// missing video_id
	rec, _ := post(t, r, "/discovered", `{"channel_id":"UC9","duration_secs":240}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	// unknown strategy
	rec, _ = post(t, r, "/discovered", `{"video_id":"v","channel_id":"UC9","duration_secs":240,"strategy":"psychic"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHooks_ResultsQueueVerdict(t *testing.T) {
	res := &fakeIntake{}
	r := newHooksRouter(&fakeIngest{}, res)

	rec, env := post(t, r, "/results", `{"video_id":"vid-1","violation":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if res.videoID != "vid-1" || !res.violation {
		t.Fatalf("verdict not recorded: %+v", res)
	}
	out, ok := env.Data.(map[string]any)
	if !ok || out["queued"] != true {
		t.Fatalf("expected queued=true, got %#v", env.Data)
	}

	rec, _ = post(t, r, "/results", `{"video_id":"missing","violation":false}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for untracked video, got %d", rec.Code)
	}
}
