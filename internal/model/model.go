// Package model defines the documents the workspace persists per
// collection: the request tree, environments with their secret markers,
// run history, last results and cookies. Field names follow the on-disk
// JSON produced by earlier releases; changing a tag is a format break.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh document/node identifier.
func NewID() string { return uuid.NewString() }

// Now returns the wire-format timestamp (float seconds since epoch).
func Now() float64 { return float64(time.Now().UnixNano()) / 1e9 }

type CollectionMeta struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	CreatedAt float64 `json:"created_at"`
	UpdatedAt float64 `json:"updated_at"`
}

// Collection is the root of a request tree.
type Collection struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Items []Node `json:"items"`
}

func NewCollection(id, name string) *Collection {
	return &Collection{ID: id, Name: name, Items: []Node{}}
}

// Clone deep-copies the collection via its wire encoding, so the save path
// can encrypt a copy without mutating the caller's document.
func (c *Collection) Clone() (*Collection, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var out Collection
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type Folder struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Items []Node `json:"items"`
}

// QueryParam is one query-string row. Value stays loosely typed: only
// string values participate in encryption, anything else passes through.
type QueryParam struct {
	Key     string `json:"key"`
	Value   any    `json:"value"`
	Enabled bool   `json:"enabled"`
}

// FormField is one form-body row. Kind "text" rows may be encrypted;
// file and binary rows are never touched by the secret codec.
type FormField struct {
	Key        string `json:"key"`
	Type       string `json:"type,omitempty"`
	Value      any    `json:"value,omitempty"`
	FilePath   string `json:"file_path,omitempty"`
	FileInline string `json:"file_inline,omitempty"`
	FileName   string `json:"file_name,omitempty"`
	Enabled    bool   `json:"enabled"`
}

type ExtractionRule struct {
	ID             string `json:"id"`
	SourcePath     string `json:"source_path"`
	TargetVariable string `json:"target_variable"`
}

// Request carries both the request definition and the secret markers
// declaring which fields must be encrypted at rest. Markers declare
// intent; a field's actual ciphertext state may lag behind them.
type Request struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        any               `json:"body,omitempty"`
	BodyMode    string            `json:"body_mode,omitempty"`
	FormBody    []FormField       `json:"form_body,omitempty"`
	Binary      map[string]any    `json:"binary,omitempty"`
	AuthType    string            `json:"auth_type,omitempty"`
	AuthParams  map[string]string `json:"auth_params,omitempty"`
	QueryParams []QueryParam      `json:"query_params,omitempty"`

	ExtractRules []ExtractionRule `json:"extract_rules,omitempty"`

	SecretHeaders     map[string]bool `json:"secret_headers,omitempty"`
	SecretQueryParams map[string]bool `json:"secret_query_params,omitempty"`
	SecretFormFields  map[string]bool `json:"secret_form_fields,omitempty"`
	SecretAuthParams  map[string]bool `json:"secret_auth_params,omitempty"`
	SecretBody        bool            `json:"secret_body,omitempty"`

	TimeoutSeconds int  `json:"timeout_seconds,omitempty"`
	VerifySSL      bool `json:"verify_ssl,omitempty"`
}

// Environment is one named variable set. Secrets marks, per variable
// name, which values must be encrypted at rest.
type Environment struct {
	Name      string          `json:"name"`
	Variables map[string]any  `json:"variables"`
	Secrets   map[string]bool `json:"secrets"`
}

type EnvironmentFile struct {
	ActiveEnv string                  `json:"active_env"`
	Envs      map[string]*Environment `json:"envs"`
}

func NewEnvironmentFile() *EnvironmentFile {
	return &EnvironmentFile{
		ActiveEnv: "default",
		Envs: map[string]*Environment{
			"default": {Name: "default", Variables: map[string]any{}, Secrets: map[string]bool{}},
		},
	}
}

// Clone deep-copies the environment file via its wire encoding.
func (f *EnvironmentFile) Clone() (*EnvironmentFile, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var out EnvironmentFile
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestResult is one recorded run outcome.
type RequestResult struct {
	RequestID   string            `json:"request_id"`
	StatusCode  int               `json:"status_code"`
	DurationMS  float64           `json:"duration_ms"`
	Headers     map[string]string `json:"headers"`
	Body        any               `json:"body"`
	BodyIsJSON  bool              `json:"body_is_json"`
	ContentType string            `json:"content_type,omitempty"`
	BodyBytes   int               `json:"body_bytes"`
	Error       string            `json:"error,omitempty"`
	Timestamp   float64           `json:"timestamp"`
}

type StoredCookie struct {
	Name     string   `json:"name"`
	Value    string   `json:"value"`
	Domain   string   `json:"domain"`
	Path     string   `json:"path"`
	Expires  *float64 `json:"expires,omitempty"`
	Secure   bool     `json:"secure"`
	HTTPOnly bool     `json:"http_only"`
}

type UIState struct {
	OpenFolders []string `json:"openFolders"`
}

// CollectionBundle aggregates every per-collection document for clients
// that load a collection in one round trip.
type CollectionBundle struct {
	Meta        CollectionMeta           `json:"meta"`
	Collection  *Collection              `json:"collection"`
	Environment *EnvironmentFile         `json:"environment"`
	UIState     UIState                  `json:"ui_state"`
	LastResults map[string]RequestResult `json:"last_results"`
	History     []RequestResult          `json:"history"`
}

// WorkspaceStatus is the vault health report. Locked folds in the
// orphaned-ciphertext case so clients prompt for a passphrase whenever
// encrypted data is unreadable.
type WorkspaceStatus struct {
	HasVault   bool `json:"has_vault"`
	Locked     bool `json:"locked"`
	Legacy     bool `json:"legacy"`
	Ciphertext bool `json:"ciphertext"`
}
