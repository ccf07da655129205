package secret

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordandevai/LiteFetch-API-Client/internal/crypto"
	"github.com/jordandevai/LiteFetch-API-Client/internal/model"
)

func sampleRequest() *model.Request {
	return &model.Request{
		ID:     "r1",
		Name:   "login",
		Method: "POST",
		URL:    "https://example.com/login",
		Headers: map[string]string{
			"Authorization": "Bearer token",
			"Accept":        "application/json",
		},
		SecretHeaders: map[string]bool{"Authorization": true},
		QueryParams: []model.QueryParam{
			{Key: "api_key", Value: "qk-123", Enabled: true},
			{Key: "page", Value: "1", Enabled: true},
		},
		SecretQueryParams: map[string]bool{"api_key": true},
		FormBody: []model.FormField{
			{Key: "password", Type: "text", Value: "s3cret", Enabled: true},
			{Key: "avatar", Type: "file", Value: "ignored", FilePath: "/tmp/a.png", Enabled: true},
		},
		SecretFormFields: map[string]bool{"password": true, "avatar": true},
		AuthParams:       map[string]string{"token": "tk", "username": "alice"},
		SecretAuthParams: map[string]bool{"token": true},
		Body:             "top secret body",
		SecretBody:       true,
	}
}

func TestEncryptRequestHonorsMarkers(t *testing.T) {
	key := testKey(t)
	r := sampleRequest()
	require.NoError(t, EncryptRequest(r, key))

	assert.True(t, IsCiphertext(r.Headers["Authorization"]))
	assert.Equal(t, "application/json", r.Headers["Accept"])
	assert.True(t, IsCiphertext(r.QueryParams[0].Value))
	assert.Equal(t, "1", r.QueryParams[1].Value)
	assert.True(t, IsCiphertext(r.FormBody[0].Value))
	// File rows are never encrypted, marker or not.
	assert.Equal(t, "ignored", r.FormBody[1].Value)
	assert.True(t, IsCiphertext(r.AuthParams["token"]))
	assert.Equal(t, "alice", r.AuthParams["username"])
	assert.True(t, IsCiphertext(r.Body))
	assert.True(t, RequestContainsCiphertext(r))
}

func TestDecryptRequestIgnoresMarkerChanges(t *testing.T) {
	key := testKey(t)
	r := sampleRequest()
	require.NoError(t, EncryptRequest(r, key))

	// Clear every marker before decrypting: values must still come back.
	r.SecretHeaders = nil
	r.SecretQueryParams = nil
	r.SecretFormFields = nil
	r.SecretAuthParams = nil
	r.SecretBody = false

	var diags Diagnostics
	DecryptRequest(r, key, &diags)
	assert.Empty(t, diags)
	assert.Equal(t, "Bearer token", r.Headers["Authorization"])
	assert.Equal(t, "qk-123", r.QueryParams[0].Value)
	assert.Equal(t, "s3cret", r.FormBody[0].Value)
	assert.Equal(t, "tk", r.AuthParams["token"])
	assert.Equal(t, "top secret body", r.Body)
	assert.False(t, RequestContainsCiphertext(r))
}

func TestDecryptRequestCollectsFieldErrors(t *testing.T) {
	key := testKey(t)
	other := testKey(t)
	r := sampleRequest()
	require.NoError(t, EncryptRequest(r, key))

	var diags Diagnostics
	DecryptRequest(r, other, &diags)

	// Every encrypted field fails under the wrong key, each reported
	// individually; the plaintext fields are untouched.
	assert.NotEmpty(t, diags)
	paths := make(map[string]bool, len(diags))
	for _, d := range diags {
		paths[d.Path] = true
	}
	assert.True(t, paths["request:r1.headers.Authorization"])
	assert.True(t, paths["request:r1.body"])
	assert.Equal(t, "application/json", r.Headers["Accept"])
	// Failed fields keep their ciphertext for a later retry.
	assert.True(t, IsCiphertext(r.Headers["Authorization"]))
}

func TestTreeWalkersRecurse(t *testing.T) {
	key := testKey(t)
	col := model.NewCollection("c1", "api")
	col.Items = []model.Node{
		model.FolderNode(&model.Folder{
			ID:   "f1",
			Name: "nested",
			Items: []model.Node{
				model.FolderNode(&model.Folder{
					ID:    "f2",
					Name:  "deeper",
					Items: []model.Node{model.RequestNode(sampleRequest())},
				}),
			},
		}),
	}

	require.NoError(t, EncryptTree(col.Items, key))
	assert.True(t, TreeContainsCiphertext(col.Items))

	inner := col.Items[0].Folder.Items[0].Folder.Items[0].Request
	assert.True(t, IsCiphertext(inner.Headers["Authorization"]))

	var diags Diagnostics
	DecryptTree(col.Items, key, &diags)
	assert.Empty(t, diags)
	assert.False(t, TreeContainsCiphertext(col.Items))
	assert.Equal(t, "Bearer token", inner.Headers["Authorization"])
}

func TestEnvironmentWalkers(t *testing.T) {
	key := testKey(t)
	f := model.NewEnvironmentFile()
	def := f.Envs["default"]
	def.Variables["API_KEY"] = "k-123"
	def.Variables["HOST"] = "example.com"
	def.Secrets["API_KEY"] = true

	require.NoError(t, EncryptEnvironments(f, key))
	assert.True(t, IsCiphertext(def.Variables["API_KEY"]))
	assert.Equal(t, "example.com", def.Variables["HOST"])
	assert.True(t, EnvironmentContainsCiphertext(f))

	// Drop the secret mark, then rename-proof decryption still recovers it.
	def.Secrets = map[string]bool{}
	var diags Diagnostics
	DecryptEnvironments(f, key, &diags)
	assert.Empty(t, diags)
	assert.Equal(t, "k-123", def.Variables["API_KEY"])
	assert.False(t, EnvironmentContainsCiphertext(f))
}

func TestEnvironmentEncryptSkipsMissingVariables(t *testing.T) {
	key := testKey(t)
	f := model.NewEnvironmentFile()
	f.Envs["default"].Secrets["GHOST"] = true

	require.NoError(t, EncryptEnvironments(f, key))
	_, present := f.Envs["default"].Variables["GHOST"]
	assert.False(t, present)
}

// A null env entry is valid wire JSON; the walkers must skip it rather
// than dereference it.
func TestEnvironmentWalkersTolerateNullEnv(t *testing.T) {
	key := testKey(t)
	var f model.EnvironmentFile
	require.NoError(t, json.Unmarshal([]byte(`{"active_env":"default","envs":{"default":null,"live":{"variables":{"API_KEY":"k-123"},"secrets":{"API_KEY":true}}}}`), &f))

	require.NoError(t, EncryptEnvironments(&f, key))
	assert.True(t, IsCiphertext(f.Envs["live"].Variables["API_KEY"]))
	assert.True(t, EnvironmentContainsCiphertext(&f))

	var diags Diagnostics
	DecryptEnvironments(&f, key, &diags)
	assert.Empty(t, diags)
	assert.Equal(t, "k-123", f.Envs["live"].Variables["API_KEY"])
	assert.False(t, EnvironmentContainsCiphertext(&f))
	assert.Nil(t, f.Envs["default"])
}

func TestNoKeyWalksAreNoOps(t *testing.T) {
	r := sampleRequest()
	require.NoError(t, EncryptRequest(r, nil))
	assert.Equal(t, "Bearer token", r.Headers["Authorization"])

	key := testKey(t)
	enc, err := crypto.EncryptWithKey("x", key)
	require.NoError(t, err)
	r.Headers["Authorization"] = enc
	var diags Diagnostics
	DecryptRequest(r, nil, &diags)
	assert.Equal(t, enc, r.Headers["Authorization"])
	assert.Empty(t, diags)
}
