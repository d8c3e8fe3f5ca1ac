package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/apischema/packages/core/config"
)

func resetFlags() {
	schemaFlag = nil
	rootURLFlag = ""
	configFlag = ""
	envFileFlag = ""
	varFlag = keyValueFlag{}
	pathParamFlag = keyValueFlag{}
	queryFlag = keyValueFlag{}
	bodyFlag = ""
	uploadFlag = keyValueFlag{}
	headerFlag = keyValueFlag{}
	maxBodyFlag = 2000
	showResultFlag = false
	expectFlag = nil
	expectStatusFlag = 0
	jqFlag = ""
	outputFlag = "console"
	timeoutFlag = ""
	proxyFlag = ""
	insecureFlag = false
	verboseFlag = 0
	noColorFlag = true
	dryRunFlag = false
	watchFlag = false
	forceInit = false
	importOutputFlag = ""
	importRootURLFlag = ""
	importTagsFlag = ""
	importExcludeTagsFlag = ""
	importOperationsFlag = ""
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == nethttp.MethodPost {
			w.WriteHeader(nethttp.StatusCreated)
		}
		fmt.Fprintf(w, `{"path":%q,"query":%q,"method":%q}`, r.URL.Path, r.URL.RawQuery, r.Method)
	}))
	t.Cleanup(server.Close)
	return server
}

// writeWorkspace writes a schema for rootURL and an empty config, returning
// the schema and config paths.
func writeWorkspace(t *testing.T, rootURL string) (string, string) {
	t.Helper()
	dir := t.TempDir()

	schemaPath := filepath.Join(dir, "blog.yaml")
	content := fmt.Sprintf(`rootUrl: %s
endpoints:
  - name: getPost
    path: /posts/:postId
    method: GET
    pathParams:
      postId: 1
  - name: search
    path: /search
    method: GET
    queryString:
      term: go
  - name: newPost
    path: /posts
    method: POST
    body:
      title: hello
`, rootURL)
	require.NoError(t, os.WriteFile(schemaPath, []byte(content), 0644))

	configPath := filepath.Join(dir, "apischema.config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{}`), 0644))

	return schemaPath, configPath
}

func TestKeyValueFlag(t *testing.T) {
	var f keyValueFlag

	assert.Nil(t, f.Params())
	require.NoError(t, f.Set("postId=7"))
	require.NoError(t, f.Set("q=a=b"))
	assert.Error(t, f.Set("novalue"))
	assert.Error(t, f.Set("=x"))

	assert.Equal(t, "postId=7,q=a=b", f.String())
	assert.Equal(t, "name=value", f.Type())
	assert.Equal(t, "postId=7&q=a%3Db", f.Params().Encode())
	assert.Equal(t, map[string]string{"postId": "7", "q": "a=b"}, f.Map())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitTestFailure, exitCode(errors.New("x")))
	assert.Equal(t, ExitNetworkError, exitCode(fmt.Errorf("wrapped: %w", withExitCode(ExitNetworkError, errors.New("x")))))
	assert.Nil(t, withExitCode(ExitUsageError, nil))
}

func TestCallCommand(t *testing.T) {
	server := newEchoServer(t)
	schemaPath, configPath := writeWorkspace(t, server.URL)

	t.Run("path param and expectations", func(t *testing.T) {
		out, err := executeCommand(t, "call", "getPost", "-s", schemaPath, "--config", configPath,
			"-p", "postId=7", "--expect-status", "200", "--expect", "body.path == /posts/7")
		require.NoError(t, err, out)
		assert.Contains(t, out, "getPost")
		assert.Contains(t, out, "/posts/7")
	})

	t.Run("query replaces static query", func(t *testing.T) {
		out, err := executeCommand(t, "call", "search", "-s", schemaPath, "--config", configPath,
			"-q", "page=2", "--jq", ".query")
		require.NoError(t, err, out)
		assert.Contains(t, out, "page=2")
		assert.NotContains(t, out, "term=go")
	})

	t.Run("json output", func(t *testing.T) {
		out, err := executeCommand(t, "call", "newPost", "-s", schemaPath, "--config", configPath,
			"-o", "json", "-b", `{"title":"other"}`)
		require.NoError(t, err, out)

		var doc struct {
			Endpoint string `json:"endpoint"`
			Response struct {
				StatusCode int            `json:"statusCode"`
				Body       map[string]any `json:"body"`
			} `json:"response"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &doc), out)
		assert.Equal(t, "newPost", doc.Endpoint)
		assert.Equal(t, 201, doc.Response.StatusCode)
		assert.Equal(t, "POST", doc.Response.Body["method"])
	})

	t.Run("show result", func(t *testing.T) {
		out, err := executeCommand(t, "call", "getPost", "-s", schemaPath, "--config", configPath, "--show-result")
		require.NoError(t, err, out)
		assert.Contains(t, out, "-= Request =-")
		assert.Contains(t, out, "Status Code: 200")
	})

	t.Run("dry run", func(t *testing.T) {
		out, err := executeCommand(t, "call", "getPost", "-s", schemaPath, "--config", configPath,
			"--dry-run", "-p", "postId=3")
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("Would call: GET %s/posts/3\n", server.URL), out)
	})

	t.Run("dry run json body", func(t *testing.T) {
		out, err := executeCommand(t, "call", "newPost", "-s", schemaPath, "--config", configPath, "--dry-run")
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("Would call: POST %s/posts\nContent-Type: application/json\nBody: {\"title\":\"hello\"}\n", server.URL), out)
	})

	t.Run("dry run multipart", func(t *testing.T) {
		upload := filepath.Join(t.TempDir(), "notes.json")
		require.NoError(t, os.WriteFile(upload, []byte(`{"n":1}`), 0644))

		out, err := executeCommand(t, "call", "newPost", "-s", schemaPath, "--config", configPath, "--dry-run",
			"-b", `{"title":"x","n":1}`, "-f", "attachment="+upload)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 5, out)
		assert.Equal(t, fmt.Sprintf("Would call: POST %s/posts", server.URL), lines[0])
		assert.Equal(t, "Content-Type: multipart/form-data", lines[1])
		assert.True(t, strings.HasPrefix(lines[2], "  file attachment: "+upload+" (application/json"), lines[2])
		assert.Equal(t, "  field n: 1", lines[3])
		assert.Equal(t, "  field title: x", lines[4])
	})

	t.Run("dry run missing upload", func(t *testing.T) {
		_, err := executeCommand(t, "call", "newPost", "-s", schemaPath, "--config", configPath, "--dry-run",
			"-f", "attachment="+filepath.Join(t.TempDir(), "missing.txt"))
		require.Error(t, err)
		assert.Equal(t, ExitUsageError, exitCode(err))
	})

	t.Run("max body", func(t *testing.T) {
		out, err := executeCommand(t, "call", "getPost", "-s", schemaPath, "--config", configPath, "--max-body", "5")
		require.NoError(t, err, out)
		assert.Contains(t, out, `{"met...`)
		assert.NotContains(t, out, `"query"`)
	})

	t.Run("failed expectation", func(t *testing.T) {
		_, err := executeCommand(t, "call", "getPost", "-s", schemaPath, "--config", configPath,
			"--expect", "body.path == /posts/2")
		require.Error(t, err)
		assert.Equal(t, ExitTestFailure, exitCode(err))
	})

	t.Run("failed status expectation", func(t *testing.T) {
		_, err := executeCommand(t, "call", "newPost", "-s", schemaPath, "--config", configPath,
			"--expect-status", "200")
		require.Error(t, err)
		assert.Equal(t, ExitTestFailure, exitCode(err))
	})

	t.Run("unknown endpoint", func(t *testing.T) {
		_, err := executeCommand(t, "call", "nope", "-s", schemaPath, "--config", configPath)
		require.Error(t, err)
		assert.Equal(t, ExitUsageError, exitCode(err))
	})

	t.Run("missing path param", func(t *testing.T) {
		_, err := executeCommand(t, "call", "getPost", "-s", schemaPath, "--config", configPath, "-p", "postId=")
		require.Error(t, err)
		assert.Equal(t, ExitUsageError, exitCode(err))
	})

	t.Run("invalid body", func(t *testing.T) {
		_, err := executeCommand(t, "call", "newPost", "-s", schemaPath, "--config", configPath, "-b", "[1]")
		require.Error(t, err)
		assert.Equal(t, ExitUsageError, exitCode(err))
	})
}

func TestCallCommandTransportError(t *testing.T) {
	server := newEchoServer(t)
	schemaPath, configPath := writeWorkspace(t, server.URL)
	server.Close()

	_, err := executeCommand(t, "call", "getPost", "-s", schemaPath, "--config", configPath)
	require.Error(t, err)
	assert.Equal(t, ExitNetworkError, exitCode(err))
}

func TestCallCommandRootURLOverride(t *testing.T) {
	server := newEchoServer(t)
	schemaPath, configPath := writeWorkspace(t, "http://unused.invalid")

	out, err := executeCommand(t, "call", "getPost", "-s", schemaPath, "--config", configPath,
		"--root-url", server.URL, "--jq", ".path")
	require.NoError(t, err, out)
	assert.Contains(t, out, "/posts/1")
}

func TestCallCommandEndpointTimeout(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "slow.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(fmt.Sprintf(`rootUrl: %s
endpoints:
  - name: slow
    path: /slow
    method: GET
    timeout: 50
`, server.URL)), 0644))
	configPath := filepath.Join(dir, "apischema.config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"timeout": 10000}`), 0644))

	out, err := executeCommand(t, "call", "slow", "-s", schemaPath, "--config", configPath, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Timeout: 50ms")

	_, err = executeCommand(t, "call", "slow", "-s", schemaPath, "--config", configPath)
	require.Error(t, err)
	assert.Equal(t, ExitNetworkError, exitCode(err))
}

func TestCallCommandMergesFlagsOverConfig(t *testing.T) {
	var gotHeaders nethttp.Header
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	schemaPath, _ := writeWorkspace(t, server.URL)
	configPath := filepath.Join(t.TempDir(), "apischema.config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"headers": {"X-Team": "blog", "X-Env": "file"}}`), 0644))

	out, err := executeCommand(t, "call", "getPost", "-s", schemaPath, "--config", configPath, "-H", "X-Env=flag")
	require.NoError(t, err, out)
	assert.Equal(t, "blog", gotHeaders.Get("X-Team"))
	assert.Equal(t, "flag", gotHeaders.Get("X-Env"))
}

func TestFlagConfig(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	fileConfig := &config.Config{Timeout: 30000, Proxy: "http://file.proxy:3128", EnvFile: ".env.file", Verbose: config.BoolPtr(true)}

	overrides, err := flagConfig()
	require.NoError(t, err)
	cfg := fileConfig.Merge(overrides)
	assert.Equal(t, 30*time.Second, cfg.TimeoutDuration())
	assert.Equal(t, "http://file.proxy:3128", cfg.Proxy)
	assert.True(t, cfg.GetValidateSSL())
	assert.True(t, cfg.GetVerbose(), "unset flags keep file values")

	timeoutFlag = "1500ms"
	proxyFlag = "http://flag.proxy:8080"
	envFileFlag = ".env.flag"
	insecureFlag = true
	showResultFlag = true
	require.NoError(t, headerFlag.Set("Authorization=Bearer t"))

	overrides, err = flagConfig()
	require.NoError(t, err)
	cfg = fileConfig.Merge(overrides)
	assert.Equal(t, 1500*time.Millisecond, cfg.TimeoutDuration())
	assert.Equal(t, "http://flag.proxy:8080", cfg.Proxy)
	assert.Equal(t, ".env.flag", cfg.EnvFile)
	assert.False(t, cfg.GetValidateSSL())
	assert.True(t, cfg.GetShowResult())
	assert.Equal(t, map[string]string{"Authorization": "Bearer t"}, cfg.Headers)

	timeoutFlag = "soon"
	_, err = flagConfig()
	assert.Error(t, err)
}

func TestWatchLoopBatchesChanges(t *testing.T) {
	events := make(chan fsnotify.Event)
	errs := make(chan error)
	batches := make(chan []string, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watchLoop(ctx, events, errs, 200*time.Millisecond, func(changed []string) {
			batches <- changed
		}, func(error) {})
	}()

	events <- fsnotify.Event{Name: "b.yaml", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "a.yaml", Op: fsnotify.Create}
	events <- fsnotify.Event{Name: "b.yaml", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "notes.txt", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "c.yaml", Op: fsnotify.Remove}

	select {
	case got := <-batches:
		assert.Equal(t, []string{"a.yaml", "b.yaml"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch delivered")
	}

	events <- fsnotify.Event{Name: "c.yaml", Op: fsnotify.Write}
	select {
	case got := <-batches:
		assert.Equal(t, []string{"c.yaml"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no second batch delivered")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, batches)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(good, []byte("- name: ok\n  path: /\n  method: GET\n"), 0644))
	require.NoError(t, os.WriteFile(bad, []byte("- name: a-b\n  path: /\n  method: GET\n- name: x\n  path: /\n  method: GET\n- name: x\n  path: /\n  method: GET\n"), 0644))

	out, err := executeCommand(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid: "+good)

	out, err = executeCommand(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitParseError, exitCode(err))
	assert.Contains(t, out, "Error in "+bad)
	assert.Contains(t, out, "invalid endpoint name")
	assert.Contains(t, out, "duplicate endpoint")
}

func TestListCommand(t *testing.T) {
	schemaPath, _ := writeWorkspace(t, "http://list.example.test")

	out, err := executeCommand(t, "list", schemaPath)
	require.NoError(t, err)
	assert.Contains(t, out, "root: http://list.example.test")
	lines := strings.Split(out, "\n")
	var names []string
	for _, line := range lines {
		if strings.HasPrefix(line, "  - ") {
			names = append(names, strings.Fields(line)[1])
		}
	}
	assert.Equal(t, []string{"getPost", "search", "newPost"}, names)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	out, err := executeCommand(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "apischema project initialized!")

	_, err = os.Stat(filepath.Join(dir, ".apischema.config.json"))
	require.NoError(t, err)

	out, err = executeCommand(t, "validate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Valid: apischema.yaml")

	_, err = executeCommand(t, "init")
	require.Error(t, err)

	_, err = executeCommand(t, "init", "--force")
	require.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "apischema version")
}

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()

	t.Run("openapi", func(t *testing.T) {
		spec := filepath.Join(dir, "openapi.yaml")
		require.NoError(t, os.WriteFile(spec, []byte(`openapi: "3.0.3"
info:
  title: Blog
  version: "1"
servers:
  - url: https://blog.example.com
paths:
  /posts/{id}:
    get:
      operationId: getPost
      tags: [posts]
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: integer
      responses:
        "200":
          description: ok
  /health:
    get:
      operationId: health
      responses:
        "200":
          description: ok
`), 0644))

		out := filepath.Join(dir, "out", "blog.yaml")
		output, err := executeCommand(t, "import", "openapi", spec, "--tags", "posts", "-o", out)
		require.NoError(t, err)
		assert.Contains(t, output, "Imported 1 endpoints")

		listOutput, err := executeCommand(t, "list", out)
		require.NoError(t, err)
		assert.Contains(t, listOutput, "root: https://blog.example.com")
		assert.Contains(t, listOutput, "getPost  GET /posts/:id")
		assert.NotContains(t, listOutput, "health")
	})

	t.Run("curl to stdout", func(t *testing.T) {
		commands := filepath.Join(dir, "commands.sh")
		require.NoError(t, os.WriteFile(commands, []byte(
			"curl https://api.example.com/users?page=2\ncurl -X DELETE https://api.example.com/users/3\n"), 0644))

		output, err := executeCommand(t, "import", "curl", commands)
		require.NoError(t, err)
		assert.Contains(t, output, "rootUrl: https://api.example.com")
		assert.Contains(t, output, "name: get_users")
		assert.Contains(t, output, "name: delete_users_3")
	})

	t.Run("missing source", func(t *testing.T) {
		_, err := executeCommand(t, "import", "curl", filepath.Join(dir, "nope.sh"))
		require.Error(t, err)
		assert.Equal(t, ExitParseError, exitCode(err))
	})
}
