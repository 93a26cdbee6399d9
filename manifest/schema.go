// Package manifest resolves a set of named bundle, bundle-group, and
// manifest documents into a single, fully dereferenced deployment graph: a
// manifest names its groups by reference, each group names its bundles by
// reference, and each bundle names its dependency bundles by reference.
// Resolving replaces every name reference with the document it names, so a
// caller holding the resolved manifest never has to go looking for another
// document again.
package manifest

import (
	"oss.nandlabs.io/fleet/l3"
	"oss.nandlabs.io/fleet/managers"
)

var logger = l3.Get()

// Document is a decoded bundle, bundle group, or manifest document: a
// "schema" string, a "metadata" section (at minimum a "name"), and a
// "data" section whose shape depends on the document's kind.
type Document = map[string]interface{}

// The three document kinds a Resolver classifies documents into.
const (
	KindBundle      = "Bundle"
	KindBundleGroup = "BundleGroup"
	KindManifest    = "Manifest"
)

// Schema strings recognized out of the box.
const (
	SchemaBundle      = "fleet/Bundle/v1"
	SchemaBundleGroup = "fleet/BundleGroup/v1"
	SchemaManifest    = "fleet/Manifest/v1"
)

// SchemaInfo describes what kind of document a schema string identifies.
type SchemaInfo struct {
	Kind    string
	Version string
}

var schemaRegistry = managers.NewItemManager[SchemaInfo]()

func init() {
	RegisterSchema(SchemaBundle, SchemaInfo{Kind: KindBundle, Version: "v1"})
	RegisterSchema(SchemaBundleGroup, SchemaInfo{Kind: KindBundleGroup, Version: "v1"})
	RegisterSchema(SchemaManifest, SchemaInfo{Kind: KindManifest, Version: "v1"})
}

// RegisterSchema teaches the resolver about an additional schema string,
// e.g. a versioned successor like "fleet/Bundle/v2". Documents whose schema
// isn't registered are ignored during classification, the same as the
// source this package was modeled on.
func RegisterSchema(schema string, info SchemaInfo) {
	schemaRegistry.Register(schema, info)
}

func classify(schema string) (SchemaInfo, bool) {
	info := schemaRegistry.Get(schema)
	return info, info.Kind != ""
}

// bundles/groups/prefix/dependencies are the well-known keys inside a
// document's "data" section; data/metadata/name/schema are the top-level
// document keys.
const (
	keyData         = "data"
	keyMetadata     = "metadata"
	keyName         = "name"
	keySchema       = "schema"
	keyBundles      = "bundles"
	keyGroups       = "groups"
	keyPrefix       = "prefix"
	keyDependencies = "dependencies"
)

func documentName(doc Document) string {
	meta, _ := doc[keyMetadata].(map[string]interface{})
	name, _ := meta[keyName].(string)
	return name
}

func documentData(doc Document) map[string]interface{} {
	data, _ := doc[keyData].(map[string]interface{})
	return data
}
