package handlers

import (
	"context"
	"net/http"

	"calibration_console/internal/models"
	"calibration_console/internal/service"
	"calibration_console/internal/view"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

// mockActions returns env/err for every action and records the last call.
type mockActions struct {
	env models.CommandEnvelope
	err error

	lastAction   string
	lastOperator int
	lastForm     any
	lastSession  string
	lastKind     string
	lastBody     []byte
}

func (m *mockActions) call(action string, operatorID int, form any) (models.CommandEnvelope, error) {
	m.lastAction = action
	m.lastOperator = operatorID
	m.lastForm = form
	return m.env, m.err
}

func (m *mockActions) RunSystemCalibration(ctx context.Context, operatorID int, f service.SystemCalibrationForm) (models.CommandEnvelope, error) {
	return m.call(service.ActionSystemCalibration, operatorID, f)
}
func (m *mockActions) RunStandardCalibration(ctx context.Context, operatorID int, f service.StandardCalibrationForm) (models.CommandEnvelope, error) {
	return m.call(service.ActionStandardCalibration, operatorID, f)
}
func (m *mockActions) SignOff(ctx context.Context, operatorID int, sessionType string, f service.SignoffForm) (models.CommandEnvelope, error) {
	m.lastSession = sessionType
	return m.call("signoff", operatorID, f)
}
func (m *mockActions) RerunSingle(ctx context.Context, operatorID int, f service.RerunForm) (models.CommandEnvelope, error) {
	return m.call(service.ActionRerunSingle, operatorID, f)
}
func (m *mockActions) RawCommand(ctx context.Context, operatorID int, f service.RawCommandForm) (models.CommandEnvelope, error) {
	return m.call(service.ActionRawCommand, operatorID, f)
}
func (m *mockActions) UpdateSettings(ctx context.Context, operatorID int, kind string, body []byte) (models.CommandEnvelope, error) {
	m.lastKind = kind
	m.lastBody = body
	return m.call("settings", operatorID, nil)
}
func (m *mockActions) StartDRSCalibration(ctx context.Context, operatorID int) (models.CommandEnvelope, error) {
	return m.call(service.ActionDRSCalib, operatorID, nil)
}
func (m *mockActions) CompleteUserAction(ctx context.Context, operatorID int) error {
	_, err := m.call(models.EventCompleteUserAction, operatorID, nil)
	return err
}

type mockMonitoring struct {
	status      view.StatusView
	session     service.SessionSnapshot
	histograms  map[string]view.HistogramView
	settings    map[string]any
	settingsErr error

	watching     map[string]bool
	lastWatchCtx context.Context
}

func (m *mockMonitoring) LatestStatus() view.StatusView    { return m.status }
func (m *mockMonitoring) Session() service.SessionSnapshot { return m.session }
func (m *mockMonitoring) WatchDebug(ctx context.Context, process string) bool {
	if m.watching == nil {
		m.watching = map[string]bool{}
	}
	m.lastWatchCtx = ctx
	if m.watching[process] {
		return false
	}
	m.watching[process] = true
	return true
}
func (m *mockMonitoring) LatestHistogram(process string) (view.HistogramView, bool) {
	v, ok := m.histograms[process]
	return v, ok
}
func (m *mockMonitoring) RigSettings(ctx context.Context) (map[string]any, error) {
	return m.settings, m.settingsErr
}

type mockCatalog struct {
	boards     map[string]view.OptionList
	references view.OptionList
	refreshErr error
	refreshed  int
}

func (m *mockCatalog) Options(kind string) (view.OptionList, bool) {
	l, ok := m.boards[kind]
	return l, ok
}
func (m *mockCatalog) References() view.OptionList { return m.references }
func (m *mockCatalog) RefreshAll(ctx context.Context) error {
	m.refreshed++
	return m.refreshErr
}

type mockActionLog struct {
	resp []models.ActionRecord
	err  error
	last service.LogFilter
}

func (m *mockActionLog) List(ctx context.Context, f service.LogFilter) ([]models.ActionRecord, error) {
	m.last = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
