package http

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"messforecast/db"
	"messforecast/ml"
	"messforecast/predict"
)

type testEnv struct {
	api     *API
	handler http.Handler
	service *predict.Service
	store   *db.Store
}

func newTestEnv(t *testing.T, config ServerConfig) *testEnv {
	t.Helper()

	store, err := db.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	service := predict.NewService(nil)
	trainer := NewTrainer(TrainerConfig{Train: ml.TrainConfig{Trees: 20}}, service, store, nil)
	sessions, err := NewSessionStore(8)
	require.NoError(t, err)

	api := NewAPI(service, trainer, sessions, nil, APIOptions{AllowedOrigins: config.AllowedOrigins})
	server := NewServer(config, api, nil)
	return &testEnv{api: api, handler: server.Handler(), service: service, store: store}
}

func (e *testEnv) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func attendanceCSV(n int, seed int64) string {
	rnd := rand.New(rand.NewSource(seed))
	var b strings.Builder
	b.WriteString("day_of_week,meal_type,is_holiday,weather,exam_week,previous_week_attendance,students_present\n")
	for i := 0; i < n; i++ {
		day, meal := rnd.Intn(7), rnd.Intn(3)
		holiday, weather, exam := rnd.Intn(2), rnd.Intn(2), rnd.Intn(2)
		prev := 800 + rnd.Intn(400)
		present := prev*4/5 + 100*meal - 150*holiday - 60*weather + 70*exam + rnd.Intn(30)
		fmt.Fprintf(&b, "%d,%d,%d,%d,%d,%d,%d\n", day, meal, holiday, weather, exam, prev, present)
	}
	return b.String()
}
