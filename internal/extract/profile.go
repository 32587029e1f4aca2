package extract

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry resolves variant names to rule sets: the built-ins plus any
// profiles loaded from a YAML file.
type Registry struct {
	variants map[string]Variant
}

func NewRegistry() *Registry {
	r := &Registry{variants: make(map[string]Variant, len(builtin))}
	for _, v := range Variants() {
		r.variants[v.Name] = v
	}
	return r
}

type profileFile struct {
	Variants []yaml.Node `yaml:"variants"`
}

type profileRef struct {
	Name string `yaml:"name"`
	Base string `yaml:"base"`
}

// LoadRegistry returns the built-in registry, overlaid with the profiles in
// path when path is non-empty.
//
// A profile either overrides a variant of the same name or, with `base:`,
// starts from another variant and changes only the keys it lists:
//
//	variants:
//	  - name: cc-seq-lab2
//	    base: cc-seq
//	    layout:
//	      body_end: 34
func LoadRegistry(path string) (*Registry, error) {
	r := NewRegistry()
	if strings.TrimSpace(path) == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	if err := r.Merge(data); err != nil {
		return nil, fmt.Errorf("load profiles %s: %w", path, err)
	}
	return r, nil
}

// Merge applies a YAML profile document to the registry.
func (r *Registry) Merge(data []byte) error {
	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	for i := range pf.Variants {
		node := &pf.Variants[i]
		var ref profileRef
		if err := node.Decode(&ref); err != nil {
			return fmt.Errorf("profile %d: %w", i, err)
		}
		name := strings.ToLower(strings.TrimSpace(ref.Name))
		if name == "" {
			return fmt.Errorf("profile %d: name is required", i)
		}
		baseName := name
		if ref.Base != "" {
			baseName = strings.ToLower(strings.TrimSpace(ref.Base))
		}
		v, ok := r.variants[baseName]
		if !ok {
			return fmt.Errorf("profile %s: %w: %q", name, ErrUnknownVariant, baseName)
		}
		v = v.clone()
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
		v.Name = name
		if err := v.Validate(); err != nil {
			return err
		}
		r.variants[name] = v
	}
	return nil
}

func (r *Registry) Lookup(name string) (Variant, error) {
	v, ok := r.variants[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return v.clone(), nil
}

// Engine builds an engine for the named variant.
func (r *Registry) Engine(name string) (*Engine, error) {
	v, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return New(v)
}

func (r *Registry) All() []Variant {
	out := make([]Variant, 0, len(r.variants))
	for _, v := range r.variants {
		out = append(out, v.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
