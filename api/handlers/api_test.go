package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanlongden/lead-formatter-waitlist/config"
	"github.com/seanlongden/lead-formatter-waitlist/databases/mocks"
	"github.com/seanlongden/lead-formatter-waitlist/events"
	"github.com/seanlongden/lead-formatter-waitlist/mailer"
	"github.com/seanlongden/lead-formatter-waitlist/waitlist"
)

type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event) {}
func (nopBus) Subscribe(events.Handler) error        { return nil }
func (nopBus) Close() error                          { return nil }

type testApp struct {
	App
	users     *mocks.WaitlistUserDatabase
	referrals *mocks.ReferralDatabase
}

func testConfig() config.Config {
	return config.Config{
		Env:                  "production",
		BaseURL:              "https://leadformatter.com",
		AdminKey:             "s3cret",
		VerificationTokenTTL: 24 * time.Hour,
		Limits: config.Limits{
			SignupRequests: 3,
			SignupWindow:   24 * time.Hour,
			ResendRequests: 5,
			ResendWindow:   time.Hour,
		},
	}
}

func newTestApp(t *testing.T, conf config.Config) *testApp {
	t.Helper()
	ta := &testApp{
		users:     &mocks.WaitlistUserDatabase{},
		referrals: &mocks.ReferralDatabase{},
	}
	ta.Config = conf
	ta.Service = waitlist.NewService(&ta.Config, ta.users, ta.referrals, nopBus{}, mailer.NewLogMailer())
	ta.Router = ta.New()
	t.Cleanup(ta.Service.Wait)
	return ta
}

func (ta *testApp) executeRequest(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ta.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m), rr.Body.String())
	return m
}

func TestUnknownRoute(t *testing.T) {
	ta := newTestApp(t, testConfig())
	req, _ := http.NewRequest("GET", "/asdf", nil)
	response := ta.executeRequest(req)

	assert.Equal(t, http.StatusNotFound, response.Code)
}

func TestHealthCheckRoute(t *testing.T) {
	ta := newTestApp(t, testConfig())
	req, _ := http.NewRequest("GET", "/health", nil)
	response := ta.executeRequest(req)

	assert.Equal(t, http.StatusOK, response.Code)
	m := decodeJSON(t, response)
	assert.Equal(t, true, m["alive"])
	assert.Equal(t, "ok", m["status"])
}

func TestMetricsRoute(t *testing.T) {
	ta := newTestApp(t, testConfig())
	req, _ := http.NewRequest("GET", "/metrics", nil)
	response := ta.executeRequest(req)

	assert.Equal(t, http.StatusOK, response.Code)
}

func TestWrongMethod(t *testing.T) {
	ta := newTestApp(t, testConfig())
	req, _ := http.NewRequest("GET", "/waitlist/signup", nil)
	response := ta.executeRequest(req)

	assert.Equal(t, http.StatusMethodNotAllowed, response.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	ta := newTestApp(t, testConfig())
	ta.referrals.On("CountDocuments", anyCtx).Return(int64(0), nil)
	ta.users.On("CountUsers", anyCtx, boolPtr(true)).Return(int64(0), nil)
	ta.users.On("TopReferrers", anyCtx, int64(10)).Return(nil, nil)

	req, _ := http.NewRequest("GET", "/waitlist/stats", nil)
	req.Header.Set("X-Request-ID", "req-123")
	response := ta.executeRequest(req)

	assert.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "req-123", response.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	conf := testConfig()
	conf.FrontendURL = "https://app.leadformatter.com"
	ta := newTestApp(t, conf)

	req, _ := http.NewRequest("OPTIONS", "/waitlist/signup", nil)
	req.Header.Set("Origin", "https://app.leadformatter.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	response := ta.executeRequest(req)

	assert.Equal(t, "https://app.leadformatter.com", response.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", response.Header().Get("Access-Control-Allow-Credentials"))
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>waitlist</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	conf := testConfig()
	conf.StaticDir = dir
	ta := newTestApp(t, conf)

	req, _ := http.NewRequest("GET", "/app.js", nil)
	response := ta.executeRequest(req)
	assert.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "console.log(1)", response.Body.String())

	req, _ = http.NewRequest("GET", "/waitlist", nil)
	response = ta.executeRequest(req)
	assert.Equal(t, http.StatusOK, response.Code)
	assert.True(t, strings.Contains(response.Body.String(), "waitlist"))

	req, _ = http.NewRequest("GET", "/dashboard/LF-ABC234", nil)
	response = ta.executeRequest(req)
	assert.Equal(t, http.StatusOK, response.Code)
	assert.Contains(t, response.Body.String(), "<html>waitlist</html>")
}

func TestNewScheduler(t *testing.T) {
	ta := newTestApp(t, testConfig())

	s := ta.newScheduler(&mocks.SchedulerLockDatabase{})
	assert.False(t, s.SyncEnabled, "no convertkit credentials")
	assert.LessOrEqual(t, s.ResyncBatch, int64(eventQueueSize/2))

	ta.Config.ConvertKit = config.ConvertKit{APIKey: "key", FormID: "123"}
	s = ta.newScheduler(&mocks.SchedulerLockDatabase{})
	assert.True(t, s.SyncEnabled)
	assert.Less(t, s.ResyncBatch, int64(eventQueueSize))
}
