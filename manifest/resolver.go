package manifest

// Resolver classifies a flat set of documents into bundles, bundle groups,
// and a single target manifest, and turns name references between them
// into a fully inlined graph.
type Resolver struct {
	bundles  []Document
	groups   []Document
	manifest Document
	resolved Document
}

// NewResolver classifies documents into bundles, bundle groups, and a
// manifest. When documents contains more than one Manifest document,
// targetManifest selects which one to resolve; pass an empty string when
// there is exactly one. Unrecognized document schemas are ignored, as are
// Manifest documents whose name does not match a non-empty targetManifest.
func NewResolver(documents []Document, targetManifest string) (*Resolver, error) {
	docs := deepCopyDocuments(documents)

	var bundles, groups, manifests []Document
	for _, doc := range docs {
		schema, _ := doc[keySchema].(string)
		info, ok := classify(schema)
		if !ok {
			continue
		}
		switch info.Kind {
		case KindBundle:
			bundles = append(bundles, doc)
		case KindBundleGroup:
			groups = append(groups, doc)
		case KindManifest:
			if targetManifest == "" || documentName(doc) == targetManifest {
				manifests = append(manifests, doc)
			}
		}
	}

	if targetManifest != "" && len(manifests) == 0 {
		err := newError(ErrMissingTarget, "no manifest named %q found", targetManifest)
		logger.ErrorF("%v", err)
		return nil, err
	}
	if len(manifests) > 1 {
		err := newError(ErrMultipleTargets, "multiple manifest documents found; specify a target manifest")
		logger.ErrorF("%v", err)
		return nil, err
	}
	if len(bundles) == 0 || len(groups) == 0 || len(manifests) == 0 {
		err := newError(ErrMissingKind,
			"documents must include at least one %s and %s document and exactly one %s document",
			KindBundle, KindBundleGroup, KindManifest)
		logger.ErrorF("%v", err)
		return nil, err
	}

	logger.InfoF("classified %d bundle(s), %d bundle group(s), target manifest %q", len(bundles), len(groups), documentName(manifests[0]))
	return &Resolver{bundles: bundles, groups: groups, manifest: manifests[0]}, nil
}

// FindBundle returns the bundle document named name.
func (r *Resolver) FindBundle(name string) (Document, error) {
	for _, bundle := range r.bundles {
		if documentName(bundle) == name {
			return bundle, nil
		}
	}
	return nil, newError(ErrMissingReference, "could not find %s named %q", KindBundle, name)
}

// FindBundleGroup returns the bundle group document named name.
func (r *Resolver) FindBundleGroup(name string) (Document, error) {
	for _, group := range r.groups {
		if documentName(group) == name {
			return group, nil
		}
	}
	return nil, newError(ErrMissingReference, "could not find %s named %q", KindBundleGroup, name)
}

// buildDependencies recursively replaces bundle.data.dependencies name
// references with the referenced bundle documents, in place. visiting
// tracks the chain of bundle names currently being resolved, so a
// dependency cycle is reported instead of recursing forever.
func (r *Resolver) buildDependencies(bundle Document, visiting map[string]bool) (Document, error) {
	name := documentName(bundle)
	if visiting[name] {
		return nil, newError(ErrCycle, "dependency cycle detected at %s %q", KindBundle, name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	data := documentData(bundle)
	if data == nil {
		return bundle, nil
	}
	deps, _ := data[keyDependencies].([]interface{})
	for i, dep := range deps {
		if _, alreadyInlined := dep.(map[string]interface{}); alreadyInlined {
			continue
		}
		depName, ok := dep.(string)
		if !ok {
			return nil, newError(ErrMissingReference, "dependency %d of %s %q is not a name reference", i, KindBundle, name)
		}
		depBundle, err := r.FindBundle(depName)
		if err != nil {
			return nil, newError(ErrMissingReference, "%s %q depends on %q: %v", KindBundle, name, depName, err)
		}
		resolvedDep, err := r.buildDependencies(depBundle, visiting)
		if err != nil {
			return nil, err
		}
		deps[i] = resolvedDep
	}
	return bundle, nil
}

// buildGroup replaces a bundle group's data.bundles name references with
// the referenced (and fully dependency-resolved) bundle documents.
func (r *Resolver) buildGroup(group Document, visiting map[string]bool) (Document, error) {
	data := documentData(group)
	if data == nil {
		return group, nil
	}
	bundles, _ := data[keyBundles].([]interface{})
	for i, entry := range bundles {
		if _, alreadyInlined := entry.(map[string]interface{}); alreadyInlined {
			continue
		}
		name, ok := entry.(string)
		if !ok {
			return nil, newError(ErrMissingReference, "bundle %d of %s %q is not a name reference", i, KindBundleGroup, documentName(group))
		}
		bundle, err := r.FindBundle(name)
		if err != nil {
			return nil, newError(ErrMissingReference, "%s %q references %q: %v", KindBundleGroup, documentName(group), name, err)
		}
		resolved, err := r.buildDependencies(bundle, visiting)
		if err != nil {
			return nil, err
		}
		bundles[i] = resolved
	}
	return group, nil
}

// Resolve builds and returns the fully dereferenced manifest: every group
// reference under data.groups is replaced with its bundle group document,
// and within each, every bundle reference (and its transitive
// dependencies) is replaced with its bundle document. The result is cached,
// so calling Resolve again is a no-op that returns the same document.
func (r *Resolver) Resolve() (Document, error) {
	if r.resolved != nil {
		return r.resolved, nil
	}

	data := documentData(r.manifest)
	if data == nil {
		return nil, newError(ErrMissingKind, "manifest document has no data section")
	}
	groups, _ := data[keyGroups].([]interface{})
	visiting := make(map[string]bool)
	for i, entry := range groups {
		if _, alreadyInlined := entry.(map[string]interface{}); alreadyInlined {
			continue
		}
		name, ok := entry.(string)
		if !ok {
			return nil, newError(ErrMissingReference, "group %d of manifest is not a name reference", i)
		}
		group, err := r.FindBundleGroup(name)
		if err != nil {
			return nil, err
		}
		resolved, err := r.buildGroup(group, visiting)
		if err != nil {
			return nil, err
		}
		groups[i] = resolved
	}

	r.resolved = r.manifest
	return r.resolved, nil
}

// GroupDocuments returns the bundle group documents referenced by the
// resolved manifest.
func (r *Resolver) GroupDocuments() ([]Document, error) {
	resolved, err := r.Resolve()
	if err != nil {
		return nil, err
	}
	groups, _ := documentData(resolved)[keyGroups].([]interface{})
	out := make([]Document, 0, len(groups))
	for _, g := range groups {
		if doc, ok := g.(map[string]interface{}); ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Groups returns the data section of each bundle group document referenced
// by the resolved manifest.
func (r *Resolver) Groups() ([]map[string]interface{}, error) {
	docs, err := r.GroupDocuments()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		out = append(out, documentData(doc))
	}
	return out, nil
}

// BundleDocuments returns the bundle documents referenced by every bundle
// group in the resolved manifest, in group order.
func (r *Resolver) BundleDocuments() ([]Document, error) {
	groups, err := r.Groups()
	if err != nil {
		return nil, err
	}
	var out []Document
	for _, group := range groups {
		bundles, _ := group[keyBundles].([]interface{})
		for _, b := range bundles {
			if doc, ok := b.(map[string]interface{}); ok {
				out = append(out, doc)
			}
		}
	}
	return out, nil
}

// Bundles returns the data section of every bundle document referenced by
// the resolved manifest.
func (r *Resolver) Bundles() ([]map[string]interface{}, error) {
	docs, err := r.BundleDocuments()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		out = append(out, documentData(doc))
	}
	return out, nil
}

// ReleasePrefix returns the release prefix declared in the resolved
// manifest's data section.
func (r *Resolver) ReleasePrefix() (string, error) {
	resolved, err := r.Resolve()
	if err != nil {
		return "", err
	}
	prefix, _ := documentData(resolved)[keyPrefix].(string)
	return prefix, nil
}
