package model

import (
	"encoding/json"
	"errors"
)

// NodeKind discriminates the two tree node variants.
type NodeKind int

const (
	KindFolder NodeKind = iota + 1
	KindRequest
)

// Node is one entry in a collection tree: exactly one of Folder or
// Request is set. On the wire a node stays a flat object; folders are
// recognized by the presence of an "items" array, which older writers
// relied on and existing workspaces contain.
type Node struct {
	Folder  *Folder
	Request *Request
}

func FolderNode(f *Folder) Node   { return Node{Folder: f} }
func RequestNode(r *Request) Node { return Node{Request: r} }

func (n Node) Kind() NodeKind {
	if n.Folder != nil {
		return KindFolder
	}
	return KindRequest
}

func (n Node) MarshalJSON() ([]byte, error) {
	switch {
	case n.Folder != nil:
		return json.Marshal(n.Folder)
	case n.Request != nil:
		return json.Marshal(n.Request)
	default:
		return nil, errors.New("model: node has no variant")
	}
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var probe struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if probe.Items != nil {
		f := &Folder{}
		if err := json.Unmarshal(b, f); err != nil {
			return err
		}
		n.Folder, n.Request = f, nil
		return nil
	}
	r := &Request{}
	if err := json.Unmarshal(b, r); err != nil {
		return err
	}
	n.Folder, n.Request = nil, r
	return nil
}
