package sfmc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/petal-labs/sfmctools/tool"
)

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func quiet() tool.HTTPOption {
	return tool.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() Config {
	return Config{Subdomain: "tenant", ClientID: "cid", AccessToken: "access"}
}

func newTestRegistry(t *testing.T, cfg Config, rt roundTripFunc) *tool.Registry {
	t.Helper()
	reg, err := NewRegistry(cfg, quiet(), tool.WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

// validArgs returns arguments satisfying every tool's schema.
func validArgs(name string) tool.Args {
	switch name {
	case ToolRequestToken:
		return tool.Args{"et_subdomain": "abc", "et_clientId": "id1", "et_clientSecret": "secret1", "et_mid": "mid1"}
	case ToolGetBaseURLs:
		return tool.Args{"userId": "u1"}
	default:
		return tool.Args{}
	}
}

func TestCatalogueSchemas(t *testing.T) {
	reg := newTestRegistry(t, testConfig(), func(r *http.Request) (*http.Response, error) {
		return respond(http.StatusOK, `{}`), nil
	})

	schemas := reg.ListSchemas()
	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		names = append(names, s.Name)
	}
	want := []string{ToolRequestToken, ToolGetBaseURLs, ToolGetUserInfo}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("tool names = %v, want %v", names, want)
	}

	token, _ := reg.Lookup(ToolRequestToken)
	if got := token.Schema().Required(); !reflect.DeepEqual(got, []string{"et_subdomain", "et_clientId", "et_clientSecret", "et_mid"}) {
		t.Fatalf("request_sfmc_token required = %v", got)
	}
	secret, _ := token.Schema().Parameter("et_clientSecret")
	if !secret.Sensitive {
		t.Fatal("et_clientSecret should be sensitive")
	}
}

func TestRequestTokenScenario(t *testing.T) {
	reg := newTestRegistry(t, Config{}, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.URL.String(); got != "https://abc.auth.marketingcloudapis.com/v2/token" {
			t.Errorf("url = %s", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		want := map[string]any{
			"grant_type":    "client_credentials",
			"client_id":     "id1",
			"client_secret": "secret1",
			"account_id":    "mid1",
		}
		if !reflect.DeepEqual(body, want) {
			t.Errorf("body = %v, want %v", body, want)
		}
		return respond(http.StatusOK, `{"access_token":"tok123","expires_in":3600}`), nil
	})

	result, err := reg.Invoke(context.Background(), ToolRequestToken, tool.Invocation{Args: validArgs(ToolRequestToken)})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	want := map[string]any{"access_token": "tok123", "expires_in": float64(3600)}
	if !reflect.DeepEqual(result.Value, want) {
		t.Fatalf("Value = %#v, want %#v", result.Value, want)
	}
}

func TestGetUserInfoUnauthorizedScenario(t *testing.T) {
	reg := newTestRegistry(t, testConfig(), func(r *http.Request) (*http.Response, error) {
		if got := r.URL.String(); got != "https://tenant.auth.marketingcloudapis.com/v2/userinfo" {
			t.Errorf("url = %s", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access" {
			t.Errorf("Authorization = %q", got)
		}
		return respond(http.StatusUnauthorized, `{"error":"invalid_token"}`), nil
	})

	result, err := reg.Invoke(context.Background(), ToolGetUserInfo, tool.Invocation{})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(raw) != `{"error":"An error occurred while getting user info."}` {
		t.Fatalf("result = %s", raw)
	}
}

func TestGetBaseURLsScenario(t *testing.T) {
	reg := newTestRegistry(t, testConfig(), func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/v2/discovery" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("resource") != "acct:u1" {
			t.Errorf("resource = %q, want acct:u1", q.Get("resource"))
		}
		if q.Get("client_id") != "cid" {
			t.Errorf("client_id = %q, want cid", q.Get("client_id"))
		}
		return respond(http.StatusOK, `{"rest":{"rest_instance_url":"https://rest.example"}}`), nil
	})

	result, err := reg.Invoke(context.Background(), ToolGetBaseURLs, tool.Invocation{Args: tool.Args{"userId": "u1"}})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !result.OK() {
		t.Fatalf("result = %+v", result.Err)
	}
}

func TestEveryToolNeverPropagatesFaults(t *testing.T) {
	reg := newTestRegistry(t, testConfig(), func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("network unreachable")
	})

	for _, schema := range reg.ListSchemas() {
		result, err := reg.Invoke(context.Background(), schema.Name, tool.Invocation{Args: validArgs(schema.Name)})
		if err != nil {
			t.Errorf("%s: Invoke() error = %v, want nil", schema.Name, err)
			continue
		}
		if result.OK() || result.Err.Message == "" {
			t.Errorf("%s: result = %+v, want ErrorValue", schema.Name, result)
		}
	}
}

func TestEveryToolPassesSuccessPayloadThrough(t *testing.T) {
	body := `{"a":[1,"two",{"three":3}],"b":null,"c":true}`
	reg := newTestRegistry(t, testConfig(), func(r *http.Request) (*http.Response, error) {
		return respond(http.StatusOK, body), nil
	})

	var want any
	if err := json.Unmarshal([]byte(body), &want); err != nil {
		t.Fatal(err)
	}
	for _, schema := range reg.ListSchemas() {
		result, err := reg.Invoke(context.Background(), schema.Name, tool.Invocation{Args: validArgs(schema.Name)})
		if err != nil {
			t.Fatalf("%s: Invoke() error = %v", schema.Name, err)
		}
		if !reflect.DeepEqual(result.Value, want) {
			t.Errorf("%s: Value = %#v, want %#v", schema.Name, result.Value, want)
		}
	}
}

func TestEveryToolMapsNon2xxToErrorValue(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError} {
		reg := newTestRegistry(t, testConfig(), func(r *http.Request) (*http.Response, error) {
			return respond(status, `{"error":"upstream detail"}`), nil
		})
		for _, schema := range reg.ListSchemas() {
			result, _ := reg.Invoke(context.Background(), schema.Name, tool.Invocation{Args: validArgs(schema.Name)})
			if result.OK() || result.Err.Message == "" {
				t.Errorf("%s/%d: result = %+v, want ErrorValue", schema.Name, status, result)
				continue
			}
			if strings.Contains(result.Err.Message, "upstream detail") {
				t.Errorf("%s/%d: upstream body leaked into message", schema.Name, status)
			}
		}
	}
}

func TestEveryRequiredParameterIsEnforced(t *testing.T) {
	calls := 0
	reg := newTestRegistry(t, testConfig(), func(r *http.Request) (*http.Response, error) {
		calls++
		return respond(http.StatusOK, `{}`), nil
	})

	for _, schema := range reg.ListSchemas() {
		for _, name := range schema.Required() {
			args := validArgs(schema.Name)
			delete(args, name)
			_, err := reg.Invoke(context.Background(), schema.Name, tool.Invocation{Args: args})
			var argErr *tool.ArgumentError
			if !errors.As(err, &argErr) {
				t.Errorf("%s without %s: error = %v, want *ArgumentError", schema.Name, name, err)
			}
		}
	}
	if calls != 0 {
		t.Fatalf("transport calls = %d, want 0", calls)
	}
}

func TestAuthBaseURLOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/userinfo" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"sub":"u1"}}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.AuthBaseURL = srv.URL + "/"
	reg, err := NewRegistry(cfg, quiet(), tool.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	result, err := reg.Invoke(context.Background(), ToolGetUserInfo, tool.Invocation{})
	if err != nil || !result.OK() {
		t.Fatalf("Invoke() = %+v, %v", result, err)
	}
}

func TestMissingConfiguredSubdomainFailsWithoutRequest(t *testing.T) {
	calls := 0
	reg := newTestRegistry(t, Config{AccessToken: "access"}, func(r *http.Request) (*http.Response, error) {
		calls++
		return respond(http.StatusOK, `{}`), nil
	})

	result, err := reg.Invoke(context.Background(), ToolGetUserInfo, tool.Invocation{})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if result.OK() || calls != 0 {
		t.Fatalf("result = %+v, calls = %d", result, calls)
	}
}

func TestArgumentsCannotOverrideConfiguredValues(t *testing.T) {
	reg := newTestRegistry(t, testConfig(), func(r *http.Request) (*http.Response, error) {
		if r.URL.Host != "tenant.auth.marketingcloudapis.com" {
			t.Errorf("host = %q, want the configured tenant", r.URL.Host)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access" {
			t.Errorf("Authorization = %q, want Bearer access", got)
		}
		if r.URL.Path == "/v2/discovery" {
			if got := r.URL.Query().Get("client_id"); got != "cid" {
				t.Errorf("client_id = %q, want cid", got)
			}
		}
		return respond(http.StatusOK, `{}`), nil
	})

	calls := []struct {
		tool string
		args tool.Args
	}{
		{ToolGetUserInfo, tool.Args{"et_subdomain": "attacker.example/x?"}},
		{ToolGetBaseURLs, tool.Args{"userId": "u1", "dne_etAccessToken": "forged", "et_clientId": "other"}},
	}
	for _, c := range calls {
		result, err := reg.Invoke(context.Background(), c.tool, tool.Invocation{Args: c.args})
		if err != nil || !result.OK() {
			t.Fatalf("%s: Invoke() = %+v, %v", c.tool, result, err)
		}
	}
}

func TestRequestTokenRejectsUnsafeSubdomain(t *testing.T) {
	calls := 0
	reg := newTestRegistry(t, testConfig(), func(r *http.Request) (*http.Response, error) {
		calls++
		return respond(http.StatusOK, `{}`), nil
	})

	for _, subdomain := range []string{"attacker.example/x?", "evil#", "a/b", ""} {
		args := validArgs(ToolRequestToken)
		args["et_subdomain"] = subdomain
		result, err := reg.Invoke(context.Background(), ToolRequestToken, tool.Invocation{Args: args})
		if err != nil {
			t.Fatalf("%q: Invoke() error = %v", subdomain, err)
		}
		if result.OK() {
			t.Errorf("%q: Invoke() succeeded, want error value", subdomain)
		}
	}
	if calls != 0 {
		t.Fatalf("transport calls = %d, want 0", calls)
	}
}

func TestRegisterTwiceRejectsDuplicates(t *testing.T) {
	reg := tool.NewRegistry()
	if err := Register(reg, testConfig()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := Register(reg, testConfig()); !errors.Is(err, tool.ErrDuplicateTool) {
		t.Fatalf("second Register() error = %v, want ErrDuplicateTool", err)
	}
}
