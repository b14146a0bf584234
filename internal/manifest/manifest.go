// Package manifest decodes and edits component resource specifications.
//
// Documents keep the yaml.v3 node tree so key order and comments survive an
// edit. Only the image reference of a ReplicationController is ever mutated.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	sigyaml "sigs.k8s.io/yaml"

	oerrors "github.com/envctl/envctl/internal/errors"
)

// WorkloadKind is the only resource kind whose image reference is managed.
const WorkloadKind = "ReplicationController"

// imagePath is the location of the managed image inside a WorkloadKind document.
var imagePath = []string{"spec", "template", "spec", "containers", "0", "image"}

// Document is a decoded resource specification.
type Document struct {
	root *yaml.Node
}

// Decode parses a single YAML resource specification. Input holding more
// than one document is rejected, so an edit never drops the others.
func Decode(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", oerrors.ErrMalformedSpecification, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: root is not a mapping", oerrors.ErrMalformedSpecification)
	}

	for {
		var extra yaml.Node
		err := dec.Decode(&extra)
		if errors.Is(err, io.EOF) {
			return &Document{root: &doc}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", oerrors.ErrMalformedSpecification, err)
		}
		if len(extra.Content) == 0 || extra.Content[0].Tag == "!!null" {
			continue
		}
		return nil, fmt.Errorf("%w: multiple documents, expected exactly one resource", oerrors.ErrMalformedSpecification)
	}
}

// DecodeAll parses a stream of YAML documents separated by "---". Empty
// documents are skipped.
func DecodeAll(data []byte) ([]*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var docs []*Document
	for i := 0; ; i++ {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: document %d: %v", oerrors.ErrMalformedSpecification, i, err)
		}
		if len(doc.Content) == 0 || doc.Content[0].Tag == "!!null" {
			continue
		}
		if doc.Content[0].Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: document %d: root is not a mapping", oerrors.ErrMalformedSpecification, i)
		}
		docs = append(docs, &Document{root: &doc})
	}
}

// Encode serializes the document with two-space indentation.
func (d *Document) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.root); err != nil {
		return nil, fmt.Errorf("encoding specification: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding specification: %w", err)
	}
	return buf.Bytes(), nil
}

// Kind returns the declared resource kind, or "" when absent.
func (d *Document) Kind() string {
	n := lookup(d.root.Content[0], "kind")
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}

// ImageReference returns the raw image reference of a WorkloadKind document.
// It reports false for other kinds or when the image field is missing.
func (d *Document) ImageReference() (string, bool) {
	n := d.imageNode()
	if n == nil {
		return "", false
	}
	return n.Value, true
}

// SetImageTag replaces the tag of the managed image reference. Documents of
// another kind, or without an image field, are left untouched.
func (d *Document) SetImageTag(tag string) error {
	if tag == "" {
		return oerrors.ErrInvalidTag
	}
	n := d.imageNode()
	if n == nil {
		return nil
	}
	ref, err := ParseImageReference(n.Value)
	if err != nil {
		return err
	}
	ref.Tag = tag
	n.Value = ref.String()
	return nil
}

// Unstructured converts the document for use with the dynamic client.
func (d *Document) Unstructured() (*unstructured.Unstructured, error) {
	data, err := d.Encode()
	if err != nil {
		return nil, err
	}
	jsonData, err := sigyaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", oerrors.ErrMalformedSpecification, err)
	}
	obj := &unstructured.Unstructured{}
	if err := obj.UnmarshalJSON(jsonData); err != nil {
		return nil, fmt.Errorf("%w: %v", oerrors.ErrMalformedSpecification, err)
	}
	return obj, nil
}

func (d *Document) imageNode() *yaml.Node {
	if d.Kind() != WorkloadKind {
		return nil
	}
	n := d.root.Content[0]
	for _, key := range imagePath {
		switch n.Kind {
		case yaml.MappingNode:
			n = lookup(n, key)
		case yaml.SequenceNode:
			if key != "0" || len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		default:
			return nil
		}
		if n == nil {
			return nil
		}
	}
	if n.Kind != yaml.ScalarNode {
		return nil
	}
	return n
}

// lookup returns the value node for key in a mapping node.
func lookup(m *yaml.Node, key string) *yaml.Node {
	if m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// ImageReference is a container image split into repository and tag.
type ImageReference struct {
	// Name is the registry and repository portion, e.g. "registry:5000/team/api".
	Name string `json:"name"`

	// Tag is the portion after the tag separator.
	Tag string `json:"tag"`
}

// String joins the reference back together.
func (r ImageReference) String() string {
	if r.Tag == "" {
		return r.Name
	}
	return r.Name + ":" + r.Tag
}

// ParseImageReference splits ref on its last tag separator. A colon that is
// followed by a path segment belongs to a registry port and is ignored.
//
// When ref carries no tag the error wraps ErrMalformedImageReference and the
// returned reference still holds ref as its Name.
func ParseImageReference(ref string) (ImageReference, error) {
	i := strings.LastIndex(ref, ":")
	if i < 0 || strings.Contains(ref[i+1:], "/") {
		return ImageReference{Name: ref}, fmt.Errorf("%w: %q has no tag", oerrors.ErrMalformedImageReference, ref)
	}
	return ImageReference{Name: ref[:i], Tag: ref[i+1:]}, nil
}
