package secret

import (
	"strings"

	"github.com/jordandevai/LiteFetch-API-Client/internal/model"
)

// FieldError is one per-field decrypt diagnostic. Documents load with
// these attached instead of failing outright.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Diagnostics collects field errors across a document walk.
type Diagnostics []FieldError

func (d *Diagnostics) add(path, msg string) {
	if msg != "" {
		*d = append(*d, FieldError{Path: path, Message: msg})
	}
}

// formRowKind normalizes a form row type; absent means text.
func formRowKind(t string) string {
	if t == "" {
		return "text"
	}
	return strings.ToLower(t)
}

// EncryptRequest encrypts a request's marked fields in place: headers,
// query values, text form values, auth values and (when flagged) the
// whole body. File and binary form rows are never touched.
func EncryptRequest(r *model.Request, key []byte) error {
	if len(key) == 0 {
		return nil
	}
	for k, v := range r.Headers {
		enc, err := EncryptIfSecret(v, r.SecretHeaders[k], key)
		if err != nil {
			return err
		}
		r.Headers[k] = enc.(string)
	}
	for i := range r.QueryParams {
		row := &r.QueryParams[i]
		enc, err := EncryptIfSecret(row.Value, r.SecretQueryParams[row.Key], key)
		if err != nil {
			return err
		}
		row.Value = enc
	}
	for i := range r.FormBody {
		row := &r.FormBody[i]
		if formRowKind(row.Type) != "text" {
			continue
		}
		enc, err := EncryptIfSecret(row.Value, r.SecretFormFields[row.Key], key)
		if err != nil {
			return err
		}
		row.Value = enc
	}
	for k, v := range r.AuthParams {
		enc, err := EncryptIfSecret(v, r.SecretAuthParams[k], key)
		if err != nil {
			return err
		}
		r.AuthParams[k] = enc.(string)
	}
	body, err := EncryptJSONIfSecret(r.Body, r.SecretBody, key)
	if err != nil {
		return err
	}
	r.Body = body
	return nil
}

// DecryptRequest decrypts every detected ciphertext in place, ignoring the
// current secret markers entirely.
func DecryptRequest(r *model.Request, key []byte, diags *Diagnostics) {
	if len(key) == 0 {
		return
	}
	prefix := "request:" + r.ID
	for k, v := range r.Headers {
		dec, msg := DecryptIfCiphertext(v, key)
		diags.add(prefix+".headers."+k, msg)
		r.Headers[k] = dec.(string)
	}
	for i := range r.QueryParams {
		row := &r.QueryParams[i]
		dec, msg := DecryptIfCiphertext(row.Value, key)
		diags.add(prefix+".query_params."+row.Key, msg)
		row.Value = dec
	}
	for i := range r.FormBody {
		row := &r.FormBody[i]
		if formRowKind(row.Type) != "text" {
			continue
		}
		dec, msg := DecryptIfCiphertext(row.Value, key)
		diags.add(prefix+".form_body."+row.Key, msg)
		row.Value = dec
	}
	for k, v := range r.AuthParams {
		dec, msg := DecryptIfCiphertext(v, key)
		diags.add(prefix+".auth_params."+k, msg)
		r.AuthParams[k] = dec.(string)
	}
	body, msg := DecryptBodyIfCiphertext(r.Body, key)
	diags.add(prefix+".body", msg)
	r.Body = body
}

// EncryptTree walks a collection tree and encrypts each request; folders
// recurse into their children unchanged otherwise.
func EncryptTree(nodes []model.Node, key []byte) error {
	if len(key) == 0 {
		return nil
	}
	for _, n := range nodes {
		switch n.Kind() {
		case model.KindFolder:
			if err := EncryptTree(n.Folder.Items, key); err != nil {
				return err
			}
		case model.KindRequest:
			if err := EncryptRequest(n.Request, key); err != nil {
				return err
			}
		}
	}
	return nil
}

// DecryptTree walks a collection tree decrypting every request.
func DecryptTree(nodes []model.Node, key []byte, diags *Diagnostics) {
	if len(key) == 0 {
		return
	}
	for _, n := range nodes {
		switch n.Kind() {
		case model.KindFolder:
			DecryptTree(n.Folder.Items, key, diags)
		case model.KindRequest:
			DecryptRequest(n.Request, key, diags)
		}
	}
}

// EncryptEnvironments encrypts, per environment, every variable whose
// secret-map entry is set.
func EncryptEnvironments(f *model.EnvironmentFile, key []byte) error {
	if len(key) == 0 {
		return nil
	}
	for _, env := range f.Envs {
		if env == nil {
			continue
		}
		for name, marked := range env.Secrets {
			if !marked {
				continue
			}
			v, ok := env.Variables[name]
			if !ok {
				continue
			}
			enc, err := EncryptIfSecret(v, true, key)
			if err != nil {
				return err
			}
			env.Variables[name] = enc
		}
	}
	return nil
}

// DecryptEnvironments decrypts every variable that looks like ciphertext,
// regardless of its secret-map entry.
func DecryptEnvironments(f *model.EnvironmentFile, key []byte, diags *Diagnostics) {
	if len(key) == 0 {
		return
	}
	for id, env := range f.Envs {
		if env == nil {
			continue
		}
		for name, v := range env.Variables {
			dec, msg := DecryptIfCiphertext(v, key)
			diags.add("env:"+id+".variables."+name, msg)
			env.Variables[name] = dec
		}
	}
}

// RequestContainsCiphertext reports whether any field of the request is
// currently ciphertext. Health reporting only; load/save never consult it.
func RequestContainsCiphertext(r *model.Request) bool {
	for _, v := range r.Headers {
		if IsCiphertext(v) {
			return true
		}
	}
	for _, row := range r.QueryParams {
		if IsCiphertext(row.Value) {
			return true
		}
	}
	for _, row := range r.FormBody {
		if formRowKind(row.Type) == "text" && IsCiphertext(row.Value) {
			return true
		}
	}
	for _, v := range r.AuthParams {
		if IsCiphertext(v) {
			return true
		}
	}
	return IsCiphertext(r.Body)
}

// TreeContainsCiphertext reports whether any request anywhere in the tree
// holds ciphertext.
func TreeContainsCiphertext(nodes []model.Node) bool {
	for _, n := range nodes {
		switch n.Kind() {
		case model.KindFolder:
			if TreeContainsCiphertext(n.Folder.Items) {
				return true
			}
		case model.KindRequest:
			if RequestContainsCiphertext(n.Request) {
				return true
			}
		}
	}
	return false
}

// EnvironmentContainsCiphertext reports whether any variable in any named
// environment is currently ciphertext.
func EnvironmentContainsCiphertext(f *model.EnvironmentFile) bool {
	for _, env := range f.Envs {
		if env == nil {
			continue
		}
		for _, v := range env.Variables {
			if IsCiphertext(v) {
				return true
			}
		}
	}
	return false
}
