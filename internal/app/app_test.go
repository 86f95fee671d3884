package app

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fyerfyer/lgpd-explica/config"
	"github.com/fyerfyer/lgpd-explica/internal/lazy"
	"github.com/fyerfyer/lgpd-explica/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lawText = `Art. 1º Esta Lei dispõe sobre o tratamento de dados pessoais.

Art. 18. O titular dos dados pessoais tem direito a obter do controlador a confirmação da existência de tratamento e o acesso aos dados.

Art. 55-A. Fica criada a Autoridade Nacional de Proteção de Dados (ANPD).`

func hashVector(text string) []float32 {
	v := make([]float32, 32)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,()")))
		v[h.Sum32()%32]++
	}
	v[0] += 0.01
	return v
}

// modelServer 模拟本地模型服务，同时提供嵌入和生成接口
type modelServer struct {
	*httptest.Server
	embedCalls    atomic.Int32
	generateCalls atomic.Int32
	loadFails     atomic.Bool
}

func newModelServer(t *testing.T) *modelServer {
	s := &modelServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)

		switch r.URL.Path {
		case "/api/embeddings/batch":
			s.embedCalls.Add(1)
			var vectors [][]float32
			for _, text := range body["texts"].([]interface{}) {
				vectors = append(vectors, hashVector(text.(string)))
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "embeddings": vectors})
		case "/api/load":
			if s.loadFails.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"detail":"model not downloaded"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
		case "/api/generate":
			s.generateCalls.Add(1)
			prompt := body["prompt"].(string)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"generated_text": prompt + " O titular pode solicitar acesso aos dados.",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func testConfig(t *testing.T, server *modelServer) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lgpd.txt"), []byte(lawText), 0o644))

	cfg := config.Default()
	cfg.Storage.Root = dir
	cfg.Document.Path = "lgpd.txt"
	cfg.Document.ChunkSize = 120
	cfg.Document.ChunkOverlap = 20
	cfg.Embed.Endpoint = server.URL + "/api"
	cfg.Embed.MaxRetries = 0
	cfg.LLM.Endpoint = server.URL + "/api"
	cfg.Cache.Enable = false
	return cfg
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestAppAnswers(t *testing.T) {
	server := newModelServer(t)
	cfg := testConfig(t, server)

	a, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	res := a.Initialize(context.Background())
	require.True(t, res.Ready(), "init error: %v", res.Err())

	answer, err := a.QA.Answer(context.Background(), "Quais são os direitos do titular dos dados?")
	require.NoError(t, err)
	assert.Equal(t, "O titular pode solicitar acesso aos dados.", answer.Text)
	require.Len(t, answer.Sources, 2)
	assert.True(t, strings.Contains(answer.Sources[0].Text, "titular") || strings.Contains(answer.Sources[1].Text, "titular"))
	assert.Greater(t, answer.PromptTokens, 0)

	status := a.QA.Status()
	assert.True(t, status.Ready())
}

func TestAppQueryCacheRedis(t *testing.T) {
	server := newModelServer(t)
	cfg := testConfig(t, server)

	mr := miniredis.RunT(t)
	cfg.Cache.Enable = true
	cfg.Cache.Type = "redis"
	cfg.Cache.Address = mr.Addr()

	a, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()
	require.True(t, a.Initialize(context.Background()).Ready())

	before := server.embedCalls.Load()
	for i := 0; i < 3; i++ {
		_, err := a.QA.Answer(context.Background(), "O que é a ANPD?")
		require.NoError(t, err)
	}
	// 同一问题只嵌入一次
	assert.Equal(t, before+1, server.embedCalls.Load())
	assert.NotEmpty(t, mr.Keys())
}

func TestAppCacheUnavailable(t *testing.T) {
	server := newModelServer(t)
	cfg := testConfig(t, server)
	cfg.Cache.Enable = true
	cfg.Cache.Type = "redis"
	cfg.Cache.Address = "127.0.0.1:1"

	a, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()
	assert.True(t, a.Initialize(context.Background()).Ready())
}

func TestAppDegraded(t *testing.T) {
	server := newModelServer(t)
	cfg := testConfig(t, server)
	cfg.Document.Path = "missing.pdf"
	server.loadFails.Store(true)

	a, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	res := a.Initialize(context.Background())
	assert.False(t, res.Ready())
	assert.Error(t, res.KnowledgeBaseErr)
	assert.Error(t, res.GeneratorErr)

	_, err = a.QA.Answer(context.Background(), "O que é dado pessoal?")
	assert.ErrorIs(t, err, services.ErrNotInitialized)
	assert.Zero(t, server.generateCalls.Load())

	status := a.QA.Status()
	assert.Equal(t, lazy.StateFailed, status.KnowledgeBase.State)
	assert.Equal(t, lazy.StateIdle, status.Generator.State)
	assert.Error(t, status.Generator.Err)
}

func TestNewRejectsBadConfig(t *testing.T) {
	server := newModelServer(t)

	cfg := testConfig(t, server)
	cfg.Embed.Provider = "tongyi"
	_, err := New(cfg, quietLogger())
	assert.Error(t, err)

	cfg = testConfig(t, server)
	cfg.LLM.PostProcess = "regex"
	_, err = New(cfg, quietLogger())
	assert.Error(t, err)

	cfg = testConfig(t, server)
	cfg.Document.ChunkOverlap = cfg.Document.ChunkSize
	_, err = New(cfg, quietLogger())
	assert.Error(t, err)
}
