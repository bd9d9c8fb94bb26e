package peers

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"sync"
)

const jsonNodesPath = "nodes.json"

// JSONNodes is used to provide node persistence on disk in the form of a JSON
// file. This allows human operators to manipulate the file.
type JSONNodes struct {
	l    sync.Mutex
	path string
}

// NewJSONNodes creates a new JSONNodes store rooted at base.
func NewJSONNodes(base string) *JSONNodes {
	return &JSONNodes{
		path: filepath.Join(base, jsonNodesPath),
	}
}

// Path returns the location of the JSON file.
func (j *JSONNodes) Path() string {
	return j.path
}

// Registry reads the file and returns the corresponding Registry.
func (j *JSONNodes) Registry() (*Registry, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(buf)) == 0 {
		return NewRegistry(nil), nil
	}

	var urls []string
	dec := json.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode(&urls); err != nil {
		return nil, err
	}

	nodes := make([]*Node, 0, len(urls))
	for _, u := range urls {
		nodes = append(nodes, NewNode(u))
	}

	return NewRegistry(nodes), nil
}

// Write persists the registry to the JSON file.
func (j *JSONNodes) Write(r *Registry) error {
	j.l.Lock()
	defer j.l.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.URLs()); err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, buf.Bytes(), 0644)
}
