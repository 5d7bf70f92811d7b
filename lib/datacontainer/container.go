// Package datacontainer holds the structured blobs exchanged with the host:
// configurations, device details, command data and type info. A Container is
// a JSON object addressed by dotted paths ("serial.port").
package datacontainer

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"
)

var (
	ErrPathNotFound = errors.New("path not found")
	ErrType         = errors.New("value has another type")
	ErrInvalidPath  = errors.New("invalid path")
)

// Separator splits path segments.
const Separator = "."

// Container is not safe for concurrent mutation.
type Container struct {
	root map[string]any
}

func New() *Container {
	return &Container{root: make(map[string]any)}
}

// Parse reads a serialized container. Comments and trailing commas are
// accepted. An empty string yields an empty container.
func Parse(s string) (*Container, error) {
	if strings.TrimSpace(s) == "" {
		return New(), nil
	}

	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON([]byte(s))))
	decoder.UseNumber()

	var root map[string]any
	if err := decoder.Decode(&root); err != nil {
		return nil, fmt.Errorf("parsing data container: %w", err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("parsing data container: trailing data after object")
	}
	if root == nil {
		root = make(map[string]any)
	}
	return &Container{root: root}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) *Container {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// FromStrings builds a flat container from a string map.
func FromStrings(values map[string]string) *Container {
	c := New()
	for k, v := range values {
		c.root[k] = v
	}
	return c
}

// FromValue builds a container from any value that marshals to a JSON object.
func FromValue(v any) (*Container, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal data container: %w", err)
	}
	return Parse(string(b))
}

// Serialize returns the JSON form. Keys are sorted so equal containers
// serialize identically.
func (c *Container) Serialize() string {
	if c == nil || len(c.root) == 0 {
		return "{}"
	}
	b, err := json.Marshal(c.root)
	if err != nil {
		// only values set through Set can get here and they are checked there
		panic(fmt.Sprintf("datacontainer: %v", err))
	}
	return string(b)
}

// Fingerprint is the hex BLAKE3 digest of Serialize.
func (c *Container) Fingerprint() string {
	sum := blake3.Sum256([]byte(c.Serialize()))
	return hex.EncodeToString(sum[:])
}

func (c *Container) Empty() bool {
	return c == nil || len(c.root) == 0
}

// Keys returns the sorted top-level keys.
func (c *Container) Keys() []string {
	if c == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(c.root))
}

func (c *Container) Equal(other *Container) bool {
	return c.Serialize() == other.Serialize()
}

// Clone returns a deep copy.
func (c *Container) Clone() *Container {
	return MustParse(c.Serialize())
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	parts := strings.Split(path, Separator)
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return parts, nil
}

// Get returns the raw value at path.
func (c *Container) Get(path string) (any, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}

	var node any = c.root
	for _, p := range parts {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		if node, ok = m[p]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
	}
	return node, nil
}

// Contains reports whether a value exists at path.
func (c *Container) Contains(path string) bool {
	_, err := c.Get(path)
	return err == nil
}

// Set stores v at path, creating intermediate objects. v must marshal to JSON;
// a *Container is stored as a nested object.
func (c *Container) Set(path string, v any) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}

	value, err := normalize(v)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	node := c.root
	for _, p := range parts[:len(parts)-1] {
		next, ok := node[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			node[p] = next
		}
		node = next
	}
	node[parts[len(parts)-1]] = value
	return nil
}

// Remove deletes the value at path. Removing a missing path is not an error.
func (c *Container) Remove(path string) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	node := c.root
	for _, p := range parts[:len(parts)-1] {
		next, ok := node[p].(map[string]any)
		if !ok {
			return nil
		}
		node = next
	}
	delete(node, parts[len(parts)-1])
	return nil
}

func normalize(v any) (any, error) {
	switch t := v.(type) {
	case *Container:
		return t.Clone().root, nil
	case string, bool, json.Number, nil:
		return t, nil
	case int:
		return json.Number(strconv.Itoa(t)), nil
	case int32:
		return json.Number(strconv.FormatInt(int64(t), 10)), nil
	case int64:
		return json.Number(strconv.FormatInt(t, 10)), nil
	case float64:
		return json.Number(strconv.FormatFloat(t, 'g', -1, 64)), nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(b))
	decoder.UseNumber()
	var out any
	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Container) String(path string) (string, error) {
	v, err := c.Get(path)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	}
	return "", fmt.Errorf("%w: %s is %T", ErrType, path, v)
}

func (c *Container) Int(path string) (int64, error) {
	v, err := c.Get(path)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
	case string:
		if i, err := strconv.ParseInt(t, 10, 64); err == nil {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s is not an integer", ErrType, path)
}

func (c *Container) Float(path string) (float64, error) {
	v, err := c.Get(path)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f, nil
		}
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %s is not a number", ErrType, path)
}

func (c *Container) Bool(path string) (bool, error) {
	v, err := c.Get(path)
	if err != nil {
		return false, err
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("%w: %s is not a boolean", ErrType, path)
}

// Child returns a copy of the object at path.
func (c *Container) Child(path string) (*Container, error) {
	v, err := c.Get(path)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an object", ErrType, path)
	}
	return (&Container{root: m}).Clone(), nil
}

// Decode unmarshals the value at path into out. An empty path decodes the whole container.
func (c *Container) Decode(path string, out any) error {
	var v any = c.root
	if path != "" {
		var err error
		if v, err = c.Get(path); err != nil {
			return err
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrType, path, err)
	}
	return nil
}

// StringOr returns the string at path or def when it is missing or mistyped.
func (c *Container) StringOr(path, def string) string {
	if s, err := c.String(path); err == nil {
		return s
	}
	return def
}
