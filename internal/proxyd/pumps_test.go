package proxyd

import (
	"bufio"
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingkinl/oclsp-proxy/internal/config"
	"github.com/wingkinl/oclsp-proxy/internal/dialect"
	"github.com/wingkinl/oclsp-proxy/internal/dynjson"
	"github.com/wingkinl/oclsp-proxy/internal/env"
	"github.com/wingkinl/oclsp-proxy/internal/ids"
	"github.com/wingkinl/oclsp-proxy/internal/inject"
	"github.com/wingkinl/oclsp-proxy/internal/logging"
	"github.com/wingkinl/oclsp-proxy/internal/shutdown"
	"github.com/wingkinl/oclsp-proxy/internal/transport"
	"github.com/wingkinl/oclsp-proxy/internal/version"
)

func newPumpTestContext(t *testing.T) *dialect.Context {
	t.Helper()
	return &dialect.Context{
		Env:    env.Environment{OrgDirExe: "/opt/origin", OrgVersion: version.Parse("10.23")},
		Config: &config.Snapshot{AllowedRefType: map[int]bool{0: true, 1: true, 4: true, 5: true}},
		IDs:    ids.New(),
		Templates: &dialect.Templates{
			Initialize:             map[string]interface{}{},
			DidChangeCppProperties: map[string]interface{}{},
		},
		Injector: inject.New(),
		ErrorLog: logging.NewFile("", "t", false),
	}
}

func frameMessage(t *testing.T, msg dynjson.Message) []byte {
	t.Helper()
	body, err := msg.Bytes()
	require.NoError(t, err)
	var buf bytes.Buffer
	var mu sync.Mutex
	require.NoError(t, transport.WriteMessage(&buf, &mu, body, nil, ""))
	return buf.Bytes()
}

func TestRunHostToBackendRewritesHoverAndAliases(t *testing.T) {
	dctx := newPumpTestContext(t)
	input := frameMessage(t, dynjson.Message{
		"jsonrpc": "2.0", "id": 7.0, "method": "textDocument/hover",
		"params": map[string]interface{}{"textDocument": map[string]interface{}{"uri": "file:///x.c"}},
	})

	var out bytes.Buffer
	var outMu sync.Mutex
	sd := shutdown.New(logging.NewFile("", "t", false), nil)

	runHostToBackend(dctx, bufio.NewReader(bytes.NewReader(input)), &out, &outMu, sd)

	assert.True(t, sd.IsSet())
	assert.Equal(t, shutdown.ReasonHostClosed, sd.Reason())

	body, err := transport.ReadMessage(bufio.NewReader(&out), nil)
	require.NoError(t, err)
	m, err := dynjson.Parse(body)
	require.NoError(t, err)
	assert.Equal(t, "cpptools/hover", m.Method())
	backendID, ok := m.IntID()
	require.True(t, ok)
	assert.NotEqual(t, int64(7), backendID)

	aliases, proxyOriginated := dctx.IDs.Outstanding()
	assert.Equal(t, 1, aliases)
	assert.Equal(t, 0, proxyOriginated)
}

func TestRunHostToBackendForwardsMalformedJSONRaw(t *testing.T) {
	dctx := newPumpTestContext(t)
	raw := []byte(`{not valid json`)
	var buf bytes.Buffer
	var bufMu sync.Mutex
	require.NoError(t, transport.WriteMessage(&buf, &bufMu, raw, nil, ""))

	var out bytes.Buffer
	var outMu sync.Mutex
	sd := shutdown.New(logging.NewFile("", "t", false), nil)

	runHostToBackend(dctx, bufio.NewReader(&buf), &out, &outMu, sd)

	body, err := transport.ReadMessage(bufio.NewReader(&out), nil)
	require.NoError(t, err)
	assert.Equal(t, raw, body)
}

func TestRunBackendToHostResolvesAliasAndTranslates(t *testing.T) {
	dctx := newPumpTestContext(t)
	backendID := dctx.IDs.Alias(1.0, "cpptools/hover")

	input := frameMessage(t, dynjson.Message{
		"jsonrpc": "2.0", "id": backendID,
		"result": map[string]interface{}{"contents": map[string]interface{}{"value": "int foo"}},
	})

	var out bytes.Buffer
	var outMu sync.Mutex
	sd := shutdown.New(logging.NewFile("", "t", false), nil)

	runBackendToHost(dctx, bufio.NewReader(bytes.NewReader(input)), &out, &outMu, sd)

	body, err := transport.ReadMessage(bufio.NewReader(&out), nil)
	require.NoError(t, err)
	m, err := dynjson.Parse(body)
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.RawID())

	result := dynjson.EnsureMap(m, "result")
	contents, ok := dynjson.GetMap(result, "contents")
	require.True(t, ok)
	assert.Equal(t, "markdown", contents["kind"])

	aliases, _ := dctx.IDs.Outstanding()
	assert.Equal(t, 0, aliases)
}

func TestRunBackendToHostSwallowsProxyOriginatedResponse(t *testing.T) {
	dctx := newPumpTestContext(t)
	injID := dctx.IDs.NewInjectionID()

	input := frameMessage(t, dynjson.Message{"jsonrpc": "2.0", "id": injID, "result": map[string]interface{}{}})

	var out bytes.Buffer
	var outMu sync.Mutex
	sd := shutdown.New(logging.NewFile("", "t", false), nil)

	runBackendToHost(dctx, bufio.NewReader(bytes.NewReader(input)), &out, &outMu, sd)

	assert.Zero(t, out.Len())
}

func TestRunBackendToHostForwardsServerInitiatedRequestUnchanged(t *testing.T) {
	dctx := newPumpTestContext(t)
	input := frameMessage(t, dynjson.Message{
		"jsonrpc": "2.0", "id": 99.0, "method": "window/workDoneProgress/create", "params": map[string]interface{}{},
	})

	var out bytes.Buffer
	var outMu sync.Mutex
	sd := shutdown.New(logging.NewFile("", "t", false), nil)

	runBackendToHost(dctx, bufio.NewReader(bytes.NewReader(input)), &out, &outMu, sd)

	body, err := transport.ReadMessage(bufio.NewReader(&out), nil)
	require.NoError(t, err)
	m, err := dynjson.Parse(body)
	require.NoError(t, err)
	assert.Equal(t, "window/workDoneProgress/create", m.Method())
	assert.Equal(t, 99.0, m.RawID())
}

func TestRunInjectorDrainsQueueInOrder(t *testing.T) {
	q := inject.New()
	q.Put([]byte(`{"a":1}`))
	q.Put([]byte(`{"a":2}`))

	var out bytes.Buffer
	var outMu sync.Mutex
	sd := shutdown.New(logging.NewFile("", "t", false), nil)

	done := make(chan struct{})
	go func() {
		runInjector(q, &out, &outMu, sd)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	sd.Trigger("test complete")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("injector pump did not stop after shutdown")
	}

	outMu.Lock()
	defer outMu.Unlock()
	r := bufio.NewReader(bytes.NewReader(out.Bytes()))
	first, err := transport.ReadMessage(r, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(first))
	second, err := transport.ReadMessage(r, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(second))
}

func TestRunStderrWrapsLinesAsNotifications(t *testing.T) {
	in := strings.NewReader("line one\nline two\n")
	var out bytes.Buffer
	var outMu sync.Mutex
	sd := shutdown.New(logging.NewFile("", "t", false), nil)

	runStderr(in, &out, &outMu, sd, logging.NewFile("", "t", false))

	r := bufio.NewReader(&out)
	first, err := transport.ReadMessage(r, nil)
	require.NoError(t, err)
	m, err := dynjson.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, "cpptools/stderr", m.Method())
	assert.Equal(t, "line one", m.Params()["message"])

	second, err := transport.ReadMessage(r, nil)
	require.NoError(t, err)
	m2, err := dynjson.Parse(second)
	require.NoError(t, err)
	assert.Equal(t, "line two", m2.Params()["message"])
}
