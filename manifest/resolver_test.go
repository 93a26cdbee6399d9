package manifest

import (
	"strings"
	"testing"

	"oss.nandlabs.io/fleet/testing/assert"
)

func bundleDoc(name string, deps ...string) Document {
	depList := make([]interface{}, len(deps))
	for i, d := range deps {
		depList[i] = d
	}
	return Document{
		"schema":   SchemaBundle,
		"metadata": map[string]interface{}{"name": name},
		"data": map[string]interface{}{
			"dependencies": depList,
			"values":       map[string]interface{}{"replicas": 1},
		},
	}
}

func groupDoc(name string, bundles ...string) Document {
	bundleList := make([]interface{}, len(bundles))
	for i, b := range bundles {
		bundleList[i] = b
	}
	return Document{
		"schema":   SchemaBundleGroup,
		"metadata": map[string]interface{}{"name": name},
		"data": map[string]interface{}{
			"bundles": bundleList,
		},
	}
}

func manifestDoc(name, prefix string, groups ...string) Document {
	groupList := make([]interface{}, len(groups))
	for i, g := range groups {
		groupList[i] = g
	}
	return Document{
		"schema":   SchemaManifest,
		"metadata": map[string]interface{}{"name": name},
		"data": map[string]interface{}{
			"prefix": prefix,
			"groups": groupList,
		},
	}
}

func TestResolveInlinesReferences(t *testing.T) {
	docs := []Document{
		bundleDoc("db"),
		bundleDoc("app", "db"),
		groupDoc("core", "app"),
		manifestDoc("release", "rel", "core"),
	}

	r, err := NewResolver(docs, "")
	assert.NoError(t, err)

	resolved, err := r.Resolve()
	assert.NoError(t, err)
	assert.NotNil(t, resolved)

	bundles, err := r.Bundles()
	assert.NoError(t, err)
	assert.Equal(t, 1, len(bundles))

	prefix, err := r.ReleasePrefix()
	assert.NoError(t, err)
	assert.Equal(t, "rel", prefix)
}

func TestResolveDetectsCycle(t *testing.T) {
	docs := []Document{
		bundleDoc("a", "b"),
		bundleDoc("b", "a"),
		groupDoc("core", "a"),
		manifestDoc("release", "rel", "core"),
	}

	r, err := NewResolver(docs, "")
	assert.NoError(t, err)

	_, err = r.Resolve()
	assert.Error(t, err)
	merr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	assert.Equal(t, ErrCycle, merr.Kind)
}

func TestResolveMissingReference(t *testing.T) {
	docs := []Document{
		bundleDoc("app"),
		groupDoc("core", "app", "missing"),
		manifestDoc("release", "rel", "core"),
	}

	r, err := NewResolver(docs, "")
	assert.NoError(t, err)

	_, err = r.Resolve()
	assert.Error(t, err)
	merr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	assert.Equal(t, ErrMissingReference, merr.Kind)
	assert.True(t, strings.Contains(merr.Message, "core"))
	assert.True(t, strings.Contains(merr.Message, "missing"))
}

func TestResolveMissingDependencyReference(t *testing.T) {
	docs := []Document{
		bundleDoc("app", "missing"),
		groupDoc("core", "app"),
		manifestDoc("release", "rel", "core"),
	}

	r, err := NewResolver(docs, "")
	assert.NoError(t, err)

	_, err = r.Resolve()
	assert.Error(t, err)
	merr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	assert.Equal(t, ErrMissingReference, merr.Kind)
	assert.True(t, strings.Contains(merr.Message, "app"))
	assert.True(t, strings.Contains(merr.Message, "missing"))
}

func TestNewResolverRequiresAllKinds(t *testing.T) {
	_, err := NewResolver([]Document{bundleDoc("app")}, "")
	assert.Error(t, err)
	merr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	assert.Equal(t, ErrMissingKind, merr.Kind)
}

func TestNewResolverMultipleManifestsRequireTarget(t *testing.T) {
	docs := []Document{
		bundleDoc("app"),
		groupDoc("core", "app"),
		manifestDoc("one", "one", "core"),
		manifestDoc("two", "two", "core"),
	}

	_, err := NewResolver(docs, "")
	assert.Error(t, err)
	merr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	assert.Equal(t, ErrMultipleTargets, merr.Kind)

	r, err := NewResolver(docs, "two")
	assert.NoError(t, err)
	prefix, err := r.ReleasePrefix()
	assert.NoError(t, err)
	assert.Equal(t, "two", prefix)
}

func TestNewResolverUnknownTargetIsMissing(t *testing.T) {
	docs := []Document{
		bundleDoc("app"),
		groupDoc("core", "app"),
		manifestDoc("one", "one", "core"),
	}

	_, err := NewResolver(docs, "nonexistent")
	assert.Error(t, err)
	merr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	assert.Equal(t, ErrMissingTarget, merr.Kind)
}

func TestLoadDocumentsParsesMultiDocumentStream(t *testing.T) {
	stream := strings.NewReader(`
schema: fleet/Bundle/v1
metadata:
  name: app
data:
  dependencies: []
---
schema: fleet/BundleGroup/v1
metadata:
  name: core
data:
  bundles: [app]
---
schema: fleet/Manifest/v1
metadata:
  name: release
data:
  prefix: rel
  groups: [core]
`)

	docs, err := LoadDocuments(stream)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(docs))

	r, err := NewResolver(docs, "")
	assert.NoError(t, err)
	bundles, err := r.BundleDocuments()
	assert.NoError(t, err)
	assert.Equal(t, 1, len(bundles))
}
