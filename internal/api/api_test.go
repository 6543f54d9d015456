package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/raido/internal/affinity"
	"github.com/starford/raido/internal/queueservice"
	"github.com/starford/raido/internal/router"
	"github.com/starford/raido/internal/store"
	"github.com/starford/raido/internal/testutil"
	"github.com/starford/raido/internal/update"
)

type testEnv struct {
	server  *httptest.Server
	project store.Provider
}

func newTestEnv(t *testing.T, mutate func(*queueservice.Options)) *testEnv {
	t.Helper()
	_, project := testutil.TestStore(t)
	_, registry := testutil.TestStore(t)
	opts := queueservice.Options{
		Sources: router.Sources{Project: project, Registry: registry},
		Rules: affinity.Registry{
			"everyone": {Condition: affinity.CondAlways},
		},
		LedgerPath: filepath.Join(t.TempDir(), "applied-updates.json"),
		Index:      testutil.TestDB(t),
		Role:       router.RoleBuilder,
		Policy:     router.PolicyAdvisory,
	}
	if mutate != nil {
		mutate(&opts)
	}
	svc := queueservice.New(opts)
	srv := httptest.NewServer(NewRouter(svc, false, "", nil))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, project: project}
}

func putRecord(t *testing.T, p store.Provider, name string, meta update.Meta) {
	t.Helper()
	if meta.CreatedBy == "" {
		meta.CreatedBy = "test"
	}
	if meta.Date == "" {
		meta.Date = "2026-01-01"
	}
	if meta.Priority == "" {
		meta.Priority = update.PriorityNormal
	}
	data, err := update.Compose(meta, "A record", map[string]string{
		"What to do":     "Do it.",
		"Files affected": "- internal/server.go",
		"Why":            "Reasons.",
		"Verification":   "Check.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Write(name, data); err != nil {
		t.Fatal(err)
	}
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestListPending(t *testing.T) {
	e := newTestEnv(t, nil)
	putRecord(t, e.project, "2026-01-01-fix.md", update.Meta{Type: "schema"})

	var got PendingListResponse
	status := doJSON(t, http.MethodGet, e.server.URL+"/updates", nil, &got)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got.Total != 1 || len(got.Updates) != 1 {
		t.Fatalf("total = %d, updates = %d", got.Total, len(got.Updates))
	}
	u := got.Updates[0]
	if u.ID != "2026-01-01-fix" || u.Origin != "project" || u.Type != "schema" {
		t.Errorf("unexpected pending: %+v", u)
	}
	if !u.Authorized {
		t.Error("advisory policy should authorize")
	}
}

func TestListPending_Filters(t *testing.T) {
	e := newTestEnv(t, nil)
	putRecord(t, e.project, "2026-01-01-low.md", update.Meta{Priority: update.PriorityLow})
	putRecord(t, e.project, "2026-01-02-high.md", update.Meta{Priority: update.PriorityHigh})

	var got PendingListResponse
	doJSON(t, http.MethodGet, e.server.URL+"/updates?priority=high", nil, &got)
	if got.Total != 1 || got.Updates[0].ID != "2026-01-02-high" {
		t.Errorf("priority filter = %+v", got)
	}

	doJSON(t, http.MethodGet, e.server.URL+"/updates?origin=registry", nil, &got)
	if got.Total != 0 {
		t.Errorf("origin filter = %+v", got)
	}
}

func TestGetUpdate(t *testing.T) {
	e := newTestEnv(t, nil)
	putRecord(t, e.project, "2026-01-01-fix.md", update.Meta{})

	var got UpdateDetail
	status := doJSON(t, http.MethodGet, e.server.URL+"/updates/2026-01-01-fix", nil, &got)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got.ID != "2026-01-01-fix" {
		t.Errorf("id = %q", got.ID)
	}
	if got.Sections["What to do"] != "Do it." {
		t.Errorf("sections = %v", got.Sections)
	}
	if got.Checksum == "" {
		t.Error("checksum missing")
	}

	status = doJSON(t, http.MethodGet, e.server.URL+"/updates/nope", nil, nil)
	if status != http.StatusNotFound {
		t.Errorf("missing id status = %d", status)
	}
}

func TestApplyLifecycle(t *testing.T) {
	e := newTestEnv(t, nil)
	putRecord(t, e.project, "2026-01-01-fix.md", update.Meta{Type: "schema"})

	var applied AppliedResponse
	status := doJSON(t, http.MethodPost, e.server.URL+"/updates/2026-01-01-fix/apply", nil, &applied)
	if status != http.StatusOK {
		t.Fatalf("apply status = %d", status)
	}
	if applied.ID != "2026-01-01-fix" || applied.UpdateType != "schema" {
		t.Errorf("applied = %+v", applied)
	}

	// Second apply conflicts.
	status = doJSON(t, http.MethodPost, e.server.URL+"/updates/2026-01-01-fix/apply", nil, nil)
	if status != http.StatusConflict {
		t.Errorf("second apply status = %d", status)
	}

	// Record is gone from the queue and recorded in the ledger.
	var pending PendingListResponse
	doJSON(t, http.MethodGet, e.server.URL+"/updates", nil, &pending)
	if pending.Total != 0 {
		t.Errorf("pending after apply = %d", pending.Total)
	}
	var led LedgerResponse
	doJSON(t, http.MethodGet, e.server.URL+"/ledger", nil, &led)
	if len(led.Applied) != 1 || led.Applied[0].ID != "2026-01-01-fix" {
		t.Errorf("ledger = %+v", led)
	}
}

func TestApply_StrictPolicyForbidden(t *testing.T) {
	e := newTestEnv(t, func(o *queueservice.Options) {
		o.Policy = router.PolicyStrict
		o.Role = router.RoleBuilder
	})
	putRecord(t, e.project, "2026-01-01-plan.md", update.Meta{Scope: update.ScopePlanning})

	status := doJSON(t, http.MethodPost, e.server.URL+"/updates/2026-01-01-plan/apply", nil, nil)
	if status != http.StatusForbidden {
		t.Fatalf("status = %d", status)
	}
	var pending PendingListResponse
	doJSON(t, http.MethodGet, e.server.URL+"/updates", nil, &pending)
	if pending.Total != 1 {
		t.Errorf("record should remain pending, got %d", pending.Total)
	}
}

func TestSkipLeavesRecordPending(t *testing.T) {
	e := newTestEnv(t, nil)
	putRecord(t, e.project, "2026-01-01-fix.md", update.Meta{})

	var got PendingUpdate
	status := doJSON(t, http.MethodPost, e.server.URL+"/updates/2026-01-01-fix/skip", nil, &got)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got.ID != "2026-01-01-fix" {
		t.Errorf("id = %q", got.ID)
	}

	var pending PendingListResponse
	doJSON(t, http.MethodGet, e.server.URL+"/updates", nil, &pending)
	if pending.Total != 1 {
		t.Errorf("skipped record should resurface, got %d", pending.Total)
	}
}

func TestPublish(t *testing.T) {
	e := newTestEnv(t, nil)

	req := PublishRequest{
		Title:         "Move config to YAML",
		CreatedBy:     "orchestrator",
		Date:          "2026-02-01",
		Priority:      update.PriorityHigh,
		Type:          "config",
		WhatToDo:      "Switch to YAML.",
		FilesAffected: "- internal/config.go",
		Why:           "Consistency.",
		Verification:  "Service boots.",
	}
	var created map[string]string
	status := doJSON(t, http.MethodPost, e.server.URL+"/updates", req, &created)
	if status != http.StatusCreated {
		t.Fatalf("status = %d", status)
	}
	if created["id"] != "2026-02-01-move-config-to-yaml" {
		t.Errorf("id = %q", created["id"])
	}

	// Duplicate publish conflicts.
	status = doJSON(t, http.MethodPost, e.server.URL+"/updates", req, nil)
	if status != http.StatusConflict {
		t.Errorf("duplicate status = %d", status)
	}

	// Published record is discoverable.
	var pending PendingListResponse
	doJSON(t, http.MethodGet, e.server.URL+"/updates", nil, &pending)
	if pending.Total != 1 || pending.Updates[0].Priority != update.PriorityHigh {
		t.Errorf("pending = %+v", pending)
	}
}

func TestPublish_Invalid(t *testing.T) {
	e := newTestEnv(t, nil)

	status := doJSON(t, http.MethodPost, e.server.URL+"/updates",
		PublishRequest{Title: "No author"}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("missing createdBy status = %d", status)
	}

	status = doJSON(t, http.MethodPost, e.server.URL+"/updates", PublishRequest{
		Title:     "Bad priority",
		CreatedBy: "x",
		Priority:  "extreme",
		WhatToDo:  "y", FilesAffected: "- a.go", Why: "z", Verification: "w",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("bad priority status = %d", status)
	}
}

func TestListRecords_RawIndexView(t *testing.T) {
	e := newTestEnv(t, nil)

	publish := func(title, priority string) {
		t.Helper()
		status := doJSON(t, http.MethodPost, e.server.URL+"/updates", PublishRequest{
			Title: title, CreatedBy: "planner", Date: "2026-02-01", Priority: priority,
			WhatToDo: "x", FilesAffected: "- a.go", Why: "y", Verification: "z",
		}, nil)
		if status != http.StatusCreated {
			t.Fatalf("publish %q status = %d", title, status)
		}
	}
	publish("First change", update.PriorityHigh)
	publish("Second change", update.PriorityNormal)

	var got RecordListResponse
	status := doJSON(t, http.MethodGet, e.server.URL+"/records", nil, &got)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got.Total != 2 {
		t.Fatalf("total = %d, want 2", got.Total)
	}

	doJSON(t, http.MethodGet, e.server.URL+"/records?priority=high", nil, &got)
	if got.Total != 1 || got.Records[0].ID != "2026-02-01-first-change" {
		t.Errorf("priority filter = %+v", got)
	}

	doJSON(t, http.MethodGet, e.server.URL+"/records?limit=1&offset=1", nil, &got)
	if len(got.Records) != 1 || got.Total != 2 {
		t.Errorf("paged records = %d, total = %d", len(got.Records), got.Total)
	}

	// Applying a file-backed record removes its index row too.
	status = doJSON(t, http.MethodPost, e.server.URL+"/updates/2026-02-01-second-change/apply", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("apply status = %d", status)
	}
	doJSON(t, http.MethodGet, e.server.URL+"/records", nil, &got)
	if got.Total != 1 || got.Records[0].ID != "2026-02-01-first-change" {
		t.Errorf("records after apply = %+v", got)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	e := newTestEnv(t, nil)
	status := doJSON(t, http.MethodGet, e.server.URL+"/search", nil, nil)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d", status)
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, project := testutil.TestStore(t)
	svc := queueservice.New(queueservice.Options{
		Sources:    router.Sources{Project: project},
		LedgerPath: filepath.Join(t.TempDir(), "applied-updates.json"),
		Role:       router.RoleBuilder,
		Policy:     router.PolicyAdvisory,
	})
	srv := httptest.NewServer(NewRouter(svc, true, "secret", nil))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/updates")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/updates", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid token status = %d", resp.StatusCode)
	}
}
