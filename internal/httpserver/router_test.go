package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"symbio/internal/handler"
	"symbio/internal/notify"
	"symbio/internal/payment"
	"symbio/internal/service/account"
	"symbio/internal/service/milestone"
	"symbio/internal/service/notification"
	"symbio/internal/service/project"
	"symbio/internal/service/proposal"
	"symbio/internal/service/review"
	"symbio/internal/store/storetest"
)

const testSecret = "router-secret"

func newTestRouter(t *testing.T, opts Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	st := storetest.NewSQLite(t)
	emitter := notify.NewEmitter(log)

	h := Handlers{
		Account:      handler.NewAccountHandler(account.NewService(st, testSecret, time.Hour, log), log),
		Project:      handler.NewProjectHandler(project.NewService(st, emitter, log), log),
		Proposal:     handler.NewProposalHandler(proposal.NewService(st, emitter, log), log),
		Milestone:    handler.NewMilestoneHandler(milestone.NewService(st, payment.NewLogGateway(log), emitter, log), log),
		Review:       handler.NewReviewHandler(review.NewService(st, emitter, log), log),
		Notification: handler.NewNotificationHandler(notification.NewService(st, log), log),
	}
	opts.JWTSecret = testSecret
	return NewRouter(h, opts, log).Engine
}

type client struct {
	t      *testing.T
	engine *gin.Engine
	token  string
}

func (c *client) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.engine.ServeHTTP(w, req)

	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func signup(t *testing.T, engine *gin.Engine, email, role string) *client {
	t.Helper()
	c := &client{t: t, engine: engine}
	if code, body := c.do(http.MethodPost, "/register", gin.H{"email": email, "password": "password1", "role": role}); code != http.StatusCreated {
		t.Fatalf("register %s: %d %v", email, code, body)
	}
	code, body := c.do(http.MethodPost, "/login", gin.H{"email": email, "password": "password1"})
	if code != http.StatusOK {
		t.Fatalf("login %s: %d %v", email, code, body)
	}
	c.token = body["token"].(string)
	return c
}

func id(body map[string]any) int64 {
	return int64(body["id"].(float64))
}

func TestProposalFlowOverHTTP(t *testing.T) {
	engine := newTestRouter(t, Options{})
	owner := signup(t, engine, "owner@example.com", "CLIENT")
	alice := signup(t, engine, "alice@example.com", "FREELANCER")
	bob := signup(t, engine, "bob@example.com", "FREELANCER")

	code, body := owner.do(http.MethodPost, "/projects", gin.H{"title": "Shop", "budget": 100000})
	if code != http.StatusCreated {
		t.Fatalf("create project: %d %v", code, body)
	}
	projectID := id(body)
	if code, body := owner.do(http.MethodPost, fmt.Sprintf("/projects/%d/publish", projectID), nil); code != http.StatusOK {
		t.Fatalf("publish: %d %v", code, body)
	}

	_, pa := alice.do(http.MethodPost, fmt.Sprintf("/projects/%d/proposals", projectID), gin.H{"cover_letter": "a", "bid_amount": 900})
	_, pb := bob.do(http.MethodPost, fmt.Sprintf("/projects/%d/proposals", projectID), gin.H{"cover_letter": "b", "bid_amount": 800})
	if pa["id"] == nil || pb["id"] == nil {
		t.Fatalf("submit proposals: %v %v", pa, pb)
	}

	// freelancer 没有 proposal:decide 权限
	if code, _ := alice.do(http.MethodPost, fmt.Sprintf("/proposals/%d/accept", id(pa)), nil); code != http.StatusForbidden {
		t.Errorf("freelancer accept: got %d", code)
	}

	code, body = owner.do(http.MethodPost, fmt.Sprintf("/proposals/%d/accept", id(pa)), nil)
	if code != http.StatusOK {
		t.Fatalf("accept: %d %v", code, body)
	}
	if body["rejected_count"].(float64) != 1 {
		t.Errorf("rejected_count = %v", body["rejected_count"])
	}

	code, body = owner.do(http.MethodPost, fmt.Sprintf("/proposals/%d/accept", id(pa)), nil)
	if code != http.StatusConflict || body["kind"] != "invalid_state" {
		t.Errorf("second accept: %d %v", code, body)
	}

	code, body = bob.do(http.MethodGet, "/notifications", nil)
	if code != http.StatusOK {
		t.Fatalf("notifications: %d", code)
	}
	ns := body["notifications"].([]any)
	if len(ns) != 1 || ns[0].(map[string]any)["type"] != "proposal_rejected" {
		t.Errorf("bob notifications = %v", ns)
	}
	nid := int64(ns[0].(map[string]any)["id"].(float64))
	if code, _ := alice.do(http.MethodPost, fmt.Sprintf("/notifications/%d/read", nid), nil); code != http.StatusForbidden {
		t.Errorf("mark other user's notification: got %d", code)
	}
	if code, _ := bob.do(http.MethodPost, fmt.Sprintf("/notifications/%d/read", nid), nil); code != http.StatusOK {
		t.Errorf("mark read: got %d", code)
	}

	code, body = alice.do(http.MethodGet, fmt.Sprintf("/projects/%d/team", projectID), nil)
	if code != http.StatusOK || len(body["team"].([]any)) != 1 {
		t.Errorf("team: %d %v", code, body)
	}
}

func TestAuthAndValidation(t *testing.T) {
	engine := newTestRouter(t, Options{})
	anon := &client{t: t, engine: engine}

	if code, _ := anon.do(http.MethodGet, "/me/profile", nil); code != http.StatusUnauthorized {
		t.Errorf("no token: got %d", code)
	}
	anon.token = "garbage"
	if code, _ := anon.do(http.MethodGet, "/me/profile", nil); code != http.StatusUnauthorized {
		t.Errorf("bad token: got %d", code)
	}

	owner := signup(t, engine, "owner@example.com", "CLIENT")
	tests := []struct {
		method, path string
		body         any
		want         int
	}{
		{http.MethodGet, "/projects/abc", nil, http.StatusBadRequest},
		{http.MethodGet, "/projects/999", nil, http.StatusNotFound},
		{http.MethodPost, "/projects", gin.H{"title": ""}, http.StatusBadRequest},
		{http.MethodPost, "/proposals/999/accept", nil, http.StatusNotFound},
		{http.MethodPost, "/register", gin.H{"email": "owner@example.com", "password": "password1", "role": "CLIENT"}, http.StatusConflict},
		{http.MethodPost, "/login", gin.H{"email": "owner@example.com", "password": "nope"}, http.StatusUnauthorized},
		{http.MethodGet, "/healthz", nil, http.StatusOK},
		{http.MethodGet, "/readyz", nil, http.StatusOK},
		{http.MethodPost, "/admin/outbox/replay?id=1", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			owner.t = t
			if code, body := owner.do(tt.method, tt.path, tt.body); code != tt.want {
				t.Errorf("got %d %v, want %d", code, body, tt.want)
			}
		})
	}
}

func TestWriteRateLimit(t *testing.T) {
	engine := newTestRouter(t, Options{WriteRPS: 0.001, WriteBurst: 2})
	owner := signup(t, engine, "owner@example.com", "CLIENT")

	for i := 0; i < 2; i++ {
		if code, body := owner.do(http.MethodPost, "/projects", gin.H{"title": "p"}); code != http.StatusCreated {
			t.Fatalf("request %d: %d %v", i, code, body)
		}
	}
	if code, _ := owner.do(http.MethodPost, "/projects", gin.H{"title": "p"}); code != http.StatusTooManyRequests {
		t.Errorf("third write: got %d, want 429", code)
	}
	// 读请求不限流
	if code, _ := owner.do(http.MethodGet, "/me/profile", nil); code != http.StatusOK {
		t.Errorf("read after limit: got %d", code)
	}
}

func TestDraftProjectHiddenOverHTTP(t *testing.T) {
	engine := newTestRouter(t, Options{})
	owner := signup(t, engine, "owner@example.com", "CLIENT")
	outsider := signup(t, engine, "eve@example.com", "FREELANCER")
	anon := &client{t: t, engine: engine}

	code, body := owner.do(http.MethodPost, "/projects", gin.H{"title": "Secret", "budget": 5000})
	if code != http.StatusCreated {
		t.Fatalf("create project: %d %v", code, body)
	}
	path := fmt.Sprintf("/projects/%d", id(body))

	if code, body := owner.do(http.MethodGet, path, nil); code != http.StatusOK || body["status"] != "DRAFT" {
		t.Errorf("owner get draft: %d %v", code, body)
	}
	if code, _ := outsider.do(http.MethodGet, path, nil); code != http.StatusForbidden {
		t.Errorf("outsider get draft: got %d", code)
	}
	if code, _ := anon.do(http.MethodGet, path, nil); code != http.StatusForbidden {
		t.Errorf("anonymous get draft: got %d", code)
	}
	bad := &client{t: t, engine: engine, token: "not-a-jwt"}
	if code, _ := bad.do(http.MethodGet, path, nil); code != http.StatusUnauthorized {
		t.Errorf("invalid token: got %d", code)
	}

	if code, body := owner.do(http.MethodPost, path+"/publish", nil); code != http.StatusOK {
		t.Fatalf("publish: %d %v", code, body)
	}
	if code, _ := anon.do(http.MethodGet, path, nil); code != http.StatusOK {
		t.Errorf("anonymous get open project: got %d", code)
	}
}
