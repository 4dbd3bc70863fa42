package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/habitat-network/bskykit/internal/credstore"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testToken(t *testing.T, did string) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   did,
		"scope": "com.atproto.appPass",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("pds-secret"))
	require.NoError(t, err)
	return token
}

func newFakePDS(t *testing.T, token string) *httptest.Server {
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+token {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"AuthenticationRequired"}`))
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /xrpc/com.atproto.server.createSession", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in["password"] != "app-password" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"accessJwt":  token,
			"refreshJwt": "refresh",
			"handle":     in["identifier"],
			"did":        "did:plc:alice",
		})
	})
	mux.HandleFunc("POST /xrpc/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in["username"] != "alice.test" || in["password"] != "app-password" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"AuthenticationRequired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": token})
	})
	mux.HandleFunc("GET /xrpc/app.bsky.feed.getTimeline", auth(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"feed":[{"post":{"uri":"at://did:plc:test/app.bsky.feed.post/1","record":{"text":"Hello, Bluesky!","createdAt":"2023-06-01T12:00:00Z"}}}],"cursor":"` + r.URL.Query().Get("limit") + `"}`))
	}))
	mux.HandleFunc("POST /xrpc/com.atproto.repo.createRecord", auth(func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Repo   string `json:"repo"`
			Record struct {
				Text string `json:"text"`
			} `json:"record"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Equal(t, "hello world", in.Record.Text)
		_, _ = w.Write([]byte(`{"uri":"at://` + in.Repo + `/app.bsky.feed.post/3kxyz","cid":"bafy"}`))
	}))
	mux.HandleFunc("GET /xrpc/app.bsky.actor.getProfile", func(w http.ResponseWriter, r *http.Request) {
		actor := r.URL.Query().Get("actor")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"did":            "did:plc:" + strings.Split(actor, ".")[0],
			"handle":         actor,
			"followersCount": 7,
		})
	})
	mux.HandleFunc("GET /xrpc/com.example.echo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"query": r.URL.RawQuery,
			"auth":  r.Header.Get("Authorization"),
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type cliEnv struct {
	t        *testing.T
	instance string
}

func setupCLI(t *testing.T, token string) *cliEnv {
	home := t.TempDir()
	t.Chdir(home)
	key, err := credstore.GenerateKey()
	require.NoError(t, err)
	t.Setenv("BSKY_HOME", home)
	t.Setenv("BSKY_CREDENTIAL_KEY", key)
	t.Setenv("BSKY_CREDENTIAL_DB", filepath.Join(home, "creds.db"))
	t.Setenv("BSKY_IDENTIFIER", "alice.test")
	t.Setenv("BSKY_PASSWORD", "")

	server := newFakePDS(t, token)
	return &cliEnv{t: t, instance: server.URL + "/xrpc"}
}

// run executes one bsky invocation the way a fresh process would.
func (e *cliEnv) run(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newCommand(newApp(&out))
	err := cmd.Run(e.t.Context(), append([]string{"bsky"}, args...))
	return out.String(), err
}

func TestCLI_Session(t *testing.T) {
	token := testToken(t, "did:plc:alice")
	env := setupCLI(t, token)

	out, err := env.run("--instance", env.instance, "login", "-p", "app-password")
	require.NoError(t, err)
	var login loginResult
	require.NoError(t, json.Unmarshal([]byte(out), &login))
	require.Equal(t, "alice.test", login.Account)
	require.Equal(t, "did:plc:alice", login.Did)
	require.Equal(t, env.instance, login.InstanceURL)

	// the stored instance is used without --instance
	out, err = env.run("timeline", "--limit", "5")
	require.NoError(t, err)
	var feed struct {
		Feed   []json.RawMessage `json:"feed"`
		Cursor string            `json:"cursor"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &feed))
	require.Len(t, feed.Feed, 1)
	require.Equal(t, "5", feed.Cursor)

	out, err = env.run("whoami")
	require.NoError(t, err)
	var who whoamiResult
	require.NoError(t, json.Unmarshal([]byte(out), &who))
	require.Equal(t, "did:plc:alice", who.Did)
	require.Equal(t, "com.atproto.appPass", who.Scope)
	require.False(t, who.Expired)

	out, err = env.run("post", "hello", "world")
	require.NoError(t, err)
	require.Contains(t, out, "at://did:plc:alice/app.bsky.feed.post/3kxyz")

	out, err = env.run("get", "--auth", "com.example.echo", "b=2", "a=1")
	require.NoError(t, err)
	var echo map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &echo))
	require.Equal(t, "b=2&a=1", echo["query"])
	require.Equal(t, "Bearer "+token, echo["auth"])

	_, err = env.run("logout")
	require.NoError(t, err)
	_, err = env.run("timeline")
	require.ErrorContains(t, err, "not logged in")

	// logging out twice is fine
	_, err = env.run("logout")
	require.NoError(t, err)
}

func TestCLI_LoginRejected(t *testing.T) {
	env := setupCLI(t, testToken(t, "did:plc:alice"))

	_, err := env.run("--instance", env.instance, "login", "-p", "wrong")
	require.Error(t, err)

	_, err = env.run("--instance", env.instance, "login")
	require.ErrorContains(t, err, "password are required")
}

func TestCLI_LegacyLogin(t *testing.T) {
	token := testToken(t, "did:plc:alice")
	env := setupCLI(t, token)
	t.Setenv("BSKY_LOGIN_ENDPOINT", "auth/login")

	out, err := env.run("--instance", env.instance, "login", "--legacy", "-p", "app-password")
	require.NoError(t, err)
	var login loginResult
	require.NoError(t, json.Unmarshal([]byte(out), &login))
	require.Equal(t, "alice.test", login.Account)
	require.Equal(t, "alice.test", login.Handle)
	require.Equal(t, "did:plc:alice", login.Did)

	// the stored token authenticates later commands
	out, err = env.run("get", "--auth", "com.example.echo")
	require.NoError(t, err)
	var echo map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &echo))
	require.Equal(t, "Bearer "+token, echo["auth"])

	out, err = env.run("post", "hello", "world")
	require.NoError(t, err)
	require.Contains(t, out, "at://did:plc:alice/app.bsky.feed.post/3kxyz")

	_, err = env.run("--instance", env.instance, "login", "--legacy", "-p", "wrong")
	require.ErrorContains(t, err, "login rejected")
}

func TestCLI_LegacyLoginDefaultEndpoint(t *testing.T) {
	env := setupCLI(t, testToken(t, "did:plc:alice"))

	// the fake instance only serves auth/login, so the default path is not found
	_, err := env.run("--instance", env.instance, "login", "--legacy", "-p", "app-password")
	require.ErrorContains(t, err, "login rejected")
	_, err = env.run("whoami")
	require.ErrorContains(t, err, "not logged in")
}

func TestCLI_ProfilesYAML(t *testing.T) {
	env := setupCLI(t, testToken(t, "did:plc:alice"))

	out, err := env.run(
		"--instance", env.instance,
		"--output", "yaml",
		"profile", "bob.test", "carol.test",
	)
	require.NoError(t, err)

	var profiles []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &profiles))
	require.Len(t, profiles, 2)
	require.Equal(t, "bob.test", profiles[0]["handle"])
	require.Equal(t, "did:plc:carol", profiles[1]["did"])
	require.Equal(t, 7, profiles[1]["followersCount"])
}

func TestCLI_AnonymousGet(t *testing.T) {
	env := setupCLI(t, testToken(t, "did:plc:alice"))

	out, err := env.run("--instance", env.instance, "get", "com.example.echo", "q=hello world")
	require.NoError(t, err)
	var echo map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &echo))
	require.Equal(t, "q=hello+world", echo["query"])
	require.Empty(t, echo["auth"])

	_, err = env.run("--instance", env.instance, "get", "com.example.echo", "novalue")
	require.ErrorContains(t, err, "not key=value")
}

func TestCLI_BadOutput(t *testing.T) {
	env := setupCLI(t, testToken(t, "did:plc:alice"))
	_, err := env.run("--output", "xml", "whoami")
	require.ErrorContains(t, err, "unsupported output format")
}

func TestCLI_Keygen(t *testing.T) {
	var out bytes.Buffer
	err := newCommand(newApp(&out)).Run(t.Context(), []string{"bsky", "keygen"})
	require.NoError(t, err)
	_, err = credstore.ParseKey(strings.TrimSpace(out.String()))
	require.NoError(t, err)
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"limit=10", "cursor=", "q=a=b"})
	require.NoError(t, err)
	require.Equal(t, "limit=10&cursor=&q=a%3Db", params.Encode())

	_, err = parseParams([]string{"=x"})
	require.Error(t, err)
}
