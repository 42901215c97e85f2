package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"

	"github.com/petal-labs/sfmctools/tool"
)

// newTestRoot returns a root command that never touches the OS keychain.
func newTestRoot(client *http.Client) *cobra.Command {
	return NewRootCmd(Options{
		Version:    "test",
		HTTPClient: client,
		Secrets: func(name string) (string, error) {
			return "", fmt.Errorf("secret %q unavailable in tests", name)
		},
	})
}

// executeCommand runs a cobra command with the given args and captures stdout/stderr.
func executeCommand(root *cobra.Command, args ...string) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

// writeTestFile creates a temporary file with the given content and returns its path.
func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{"SFMC_SUBDOMAIN", "SFMC_CLIENT_ID", "SFMC_ACCESS_TOKEN", "SFMC_AUTH_BASE_URL"} {
		t.Setenv(key, "")
	}
}

// fakeSFMC serves the three auth endpoints the catalogue calls.
func fakeSFMC(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["client_secret"] != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok123","expires_in":3600}`))
	})
	mux.HandleFunc("GET /v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"user":{"sub":"u1"}}`))
	})
	mux.HandleFunc("GET /v2/discovery", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"resource":"` + r.URL.Query().Get("resource") + `"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL, token string) string {
	t.Helper()
	return writeTestFile(t, "sfmctools.yaml", strings.Join([]string{
		"sfmc:",
		"  subdomain: tenant",
		"  client_id: cid",
		"  access_token: " + token,
		"  auth_base_url: " + baseURL,
	}, "\n"))
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want *ExitError", err)
	}
	return exitErr.Code
}

func TestToolsList(t *testing.T) {
	isolateEnv(t)
	stdout, _, err := executeCommand(newTestRoot(nil), "tools", "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	for _, want := range []string{"NAME", "request_sfmc_token", "get_base_urls", "get_user_info", "userId*"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("list output missing %q: %q", want, stdout)
		}
	}
}

func TestToolsInspectFormats(t *testing.T) {
	isolateEnv(t)
	stdout, _, err := executeCommand(newTestRoot(nil), "tools", "inspect", "get_base_urls")
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	if !strings.Contains(stdout, `"name": "get_base_urls"`) || !strings.Contains(stdout, `"userId"`) {
		t.Fatalf("inspect output = %q", stdout)
	}

	stdout, _, err = executeCommand(newTestRoot(nil), "tools", "inspect", "get_base_urls", "--format", "openai")
	if err != nil {
		t.Fatalf("inspect openai error = %v", err)
	}
	if !strings.Contains(stdout, `"function"`) {
		t.Fatalf("openai output = %q", stdout)
	}

	stdout, _, err = executeCommand(newTestRoot(nil), "tools", "inspect", "get_base_urls", "--format", "anthropic")
	if err != nil {
		t.Fatalf("inspect anthropic error = %v", err)
	}
	if !strings.Contains(stdout, `"input_schema"`) {
		t.Fatalf("anthropic output = %q", stdout)
	}

	_, _, err = executeCommand(newTestRoot(nil), "tools", "inspect", "get_base_urls", "--format", "xml")
	if code := exitCode(t, err); code != exitValidation {
		t.Fatalf("exit code = %d, want %d", code, exitValidation)
	}
}

func TestToolsInspectUnknown(t *testing.T) {
	isolateEnv(t)
	_, _, err := executeCommand(newTestRoot(nil), "tools", "inspect", "missing_tool")
	if code := exitCode(t, err); code != exitNotFound {
		t.Fatalf("exit code = %d, want %d", code, exitNotFound)
	}
}

func TestToolsInvokeRequestToken(t *testing.T) {
	isolateEnv(t)
	srv := fakeSFMC(t)
	cfg := writeConfig(t, srv.URL, "good")

	stdout, _, err := executeCommand(newTestRoot(srv.Client()), "--config", cfg, "tools", "invoke", "request_sfmc_token",
		"--arg", "et_subdomain=abc", "--arg", "et_clientId=id1", "--arg", "et_clientSecret=secret1", "--arg", "et_mid=123")
	if err != nil {
		t.Fatalf("invoke error = %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("unmarshal %q: %v", stdout, err)
	}
	if out["access_token"] != "tok123" || out["expires_in"] != float64(3600) {
		t.Fatalf("out = %v", out)
	}
}

func TestToolsInvokeArgsJSON(t *testing.T) {
	isolateEnv(t)
	srv := fakeSFMC(t)
	cfg := writeConfig(t, srv.URL, "good")

	stdout, _, err := executeCommand(newTestRoot(srv.Client()), "--config", cfg, "tools", "invoke", "get_base_urls", "--args-json", `{"userId":"u1"}`)
	if err != nil {
		t.Fatalf("invoke error = %v", err)
	}
	if !strings.Contains(stdout, `"resource": "acct:u1"`) {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestToolsInvokeUpstreamFailure(t *testing.T) {
	isolateEnv(t)
	srv := fakeSFMC(t)
	cfg := writeConfig(t, srv.URL, "expired")

	stdout, stderr, err := executeCommand(newTestRoot(srv.Client()), "--config", cfg, "tools", "invoke", "get_user_info")
	if code := exitCode(t, err); code != exitToolFailed {
		t.Fatalf("exit code = %d, want %d", code, exitToolFailed)
	}
	if !strings.Contains(stdout, `"error": "An error occurred while getting user info."`) {
		t.Fatalf("stdout = %q", stdout)
	}
	if !strings.Contains(stderr, "UPSTREAM_FAILURE") {
		t.Fatalf("stderr missing fault log: %q", stderr)
	}
}

func TestToolsInvokeMissingArgument(t *testing.T) {
	isolateEnv(t)
	_, stderr, err := executeCommand(newTestRoot(nil), "tools", "invoke", "get_base_urls")
	if code := exitCode(t, err); code != exitValidation {
		t.Fatalf("exit code = %d, want %d", code, exitValidation)
	}
	if !strings.Contains(stderr, "REQUIRED_PARAMETER_MISSING") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestToolsInvokeBadArgs(t *testing.T) {
	isolateEnv(t)
	_, _, err := executeCommand(newTestRoot(nil), "tools", "invoke", "get_base_urls", "--arg", "novalue")
	if code := exitCode(t, err); code != exitInputParse {
		t.Fatalf("exit code = %d, want %d", code, exitInputParse)
	}
	_, _, err = executeCommand(newTestRoot(nil), "tools", "invoke", "get_base_urls", "--args-json", "[1]")
	if code := exitCode(t, err); code != exitInputParse {
		t.Fatalf("exit code = %d, want %d", code, exitInputParse)
	}
}

func TestMissingExplicitConfig(t *testing.T) {
	isolateEnv(t)
	_, _, err := executeCommand(newTestRoot(nil), "--config", filepath.Join(t.TempDir(), "nope.yaml"), "tools", "list")
	if code := exitCode(t, err); code != exitFileNotFound {
		t.Fatalf("exit code = %d, want %d", code, exitFileNotFound)
	}
}

func TestUnresolvableKeyringReference(t *testing.T) {
	isolateEnv(t)
	cfg := writeConfig(t, "https://example.invalid", "keyring:sfmc-token")
	_, _, err := executeCommand(newTestRoot(nil), "--config", cfg, "tools", "list")
	if code := exitCode(t, err); code != exitValidation {
		t.Fatalf("exit code = %d, want %d", code, exitValidation)
	}
}

func TestVerboseAndQuietConflict(t *testing.T) {
	isolateEnv(t)
	_, _, err := executeCommand(newTestRoot(nil), "--verbose", "--quiet", "tools", "list")
	if code := exitCode(t, err); code != exitValidation {
		t.Fatalf("exit code = %d, want %d", code, exitValidation)
	}
}

func TestJSONLogFormat(t *testing.T) {
	isolateEnv(t)
	srv := fakeSFMC(t)
	cfg := writeConfig(t, srv.URL, "expired")
	_, stderr, _ := executeCommand(newTestRoot(srv.Client()), "--config", cfg, "--log-format", "json", "tools", "invoke", "get_user_info")
	line := strings.TrimSpace(strings.Split(strings.TrimSpace(stderr), "\n")[0])
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("stderr is not JSON: %q", stderr)
	}
	if record["msg"] != "tool invocation failed" {
		t.Fatalf("record = %v", record)
	}
}

func TestSecretsSet(t *testing.T) {
	keyring.MockInit()
	root := newTestRoot(nil)
	root.SetIn(strings.NewReader("s3cret\n"))
	stdout, _, err := executeCommand(root, "secrets", "set", "sfmc-token")
	if err != nil {
		t.Fatalf("secrets set error = %v", err)
	}
	if !strings.Contains(stdout, "keyring:sfmc-token") {
		t.Fatalf("stdout = %q", stdout)
	}
	got, err := keyring.Get("sfmctools", "sfmc-token")
	if err != nil || got != "s3cret" {
		t.Fatalf("keyring.Get() = %q, %v", got, err)
	}
}

func TestParseInvokeArgsCoercesTypes(t *testing.T) {
	schema := testCoercionSchema()
	args, err := parseInvokeArgs(schema, `{"name":"x","count":1}`, []string{"count=5", "ratio=0.5", "enabled=true", "tags=[\"a\"]", "extra=raw"})
	if err != nil {
		t.Fatalf("parseInvokeArgs() error = %v", err)
	}
	if args["name"] != "x" || args["count"] != int64(5) || args["ratio"] != 0.5 || args["enabled"] != true || args["extra"] != "raw" {
		t.Fatalf("args = %#v", args)
	}
	if tags, ok := args["tags"].([]any); !ok || len(tags) != 1 {
		t.Fatalf("tags = %#v", args["tags"])
	}
	if _, err := parseInvokeArgs(schema, "", []string{"count=abc"}); err == nil {
		t.Fatal("non-integer count accepted")
	}
}

func testCoercionSchema() tool.Schema {
	return tool.Schema{
		Name: "coerce_test",
		Parameters: []tool.Parameter{
			{Name: "name", Type: tool.TypeString},
			{Name: "count", Type: tool.TypeInteger},
			{Name: "ratio", Type: tool.TypeNumber},
			{Name: "enabled", Type: tool.TypeBoolean},
			{Name: "tags", Type: tool.TypeArray},
		},
	}
}

func TestVerboseConfigLogMasksAccessToken(t *testing.T) {
	isolateEnv(t)
	srv := fakeSFMC(t)
	path := writeConfig(t, srv.URL, "very-secret-token")

	_, stderr, err := executeCommand(newTestRoot(srv.Client()), "--verbose", "--config", path, "tools", "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(stderr, "loaded config") || !strings.Contains(stderr, tool.MaskedSecretValue) {
		t.Fatalf("stderr missing masked config log: %q", stderr)
	}
	if strings.Contains(stderr, "very-secret-token") {
		t.Fatalf("access token leaked into logs: %q", stderr)
	}
}
