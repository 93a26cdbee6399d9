// Package fleet implements the hard-engineering core of a bundle-group
// deployment orchestrator: a cluster-backed distributed lock coordinator
// and a manifest resolver that turns a set of named bundle/group/manifest
// documents into a fully dereferenced deployment graph.
//
// Sub-packages:
//
//	import "oss.nandlabs.io/fleet/lock"       // distributed lock coordinator
//	import "oss.nandlabs.io/fleet/manifest"   // manifest/bundle graph resolver
//	import "oss.nandlabs.io/fleet/clusterapi" // cluster custom-resource client contract
//	import "oss.nandlabs.io/fleet/l3"         // logging
//	import "oss.nandlabs.io/fleet/config"     // configuration helpers
//	import "oss.nandlabs.io/fleet/codec"      // document encoding/decoding
//
// The release-installation engine that consumes a resolved manifest, the
// HTTP surface, and cluster API client bindings proper are external
// collaborators and are not implemented here.
package fleet
