package httpservice

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-httpservice/internal/container"
)

type testEnv struct {
	host     *container.Host
	registry *Registry
	workDir  string
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	host := container.NewHost("localhost")
	require.NoError(t, host.Start())

	workDir := t.TempDir()
	logger, _ := zap.NewDevelopment()
	reg := New(host, Config{WorkDir: workDir}, logger, opts...)
	return &testEnv{host: host, registry: reg, workDir: workDir}
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.host.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (e *testEnv) scratchDirs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(e.workDir)
	require.NoError(t, err)
	return len(entries)
}

// servlet answers with a fixed body and counts its lifecycle calls.
type servlet struct {
	body      string
	served    atomic.Int32
	inits     atomic.Int32
	destroyed atomic.Int32
	initErr   error
	panicInit bool
	params    map[string]string
}

func newServlet(body string) *servlet { return &servlet{body: body} }

func (s *servlet) Init(cfg container.ServletConfig) error {
	s.inits.Add(1)
	if s.panicInit {
		panic("init exploded")
	}
	s.params = make(map[string]string)
	for _, name := range cfg.InitParameterNames() {
		s.params[name] = cfg.InitParameter(name)
	}
	return s.initErr
}

func (s *servlet) Destroy() { s.destroyed.Add(1) }

func (s *servlet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.served.Add(1)
	w.Header().Set("X-Path-Info", container.PathInfo(r))
	_, _ = io.WriteString(w, s.body)
}

var errInit = errors.New("cannot start")
