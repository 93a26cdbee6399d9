package clusterapi

import (
	"strconv"
	"sync"

	"oss.nandlabs.io/fleet/l3"
	"oss.nandlabs.io/fleet/uuid"
)

var logger = l3.Get()

var _ ClusterAPI = (*MemoryClusterAPI)(nil)

// MemoryClusterAPI is an in-memory ClusterAPI used for tests and local
// development. It reproduces the server behaviors the lock coordinator
// depends on: conflict-on-duplicate-create, optimistic concurrency on
// replace, and not-found on missing reads/deletes/definitions.
type MemoryClusterAPI struct {
	mutex       sync.Mutex
	definitions map[string]bool
	objects     map[string]Object
}

// NewMemoryClusterAPI returns an empty MemoryClusterAPI.
func NewMemoryClusterAPI() *MemoryClusterAPI {
	return &MemoryClusterAPI{
		definitions: make(map[string]bool),
		objects:     make(map[string]Object),
	}
}

func crdKey(group, plural string) string {
	return plural + "." + group
}

func objKey(group, version, namespace, plural, name string) string {
	return group + "/" + version + "/" + namespace + "/" + plural + "/" + name
}

func objName(body Object) (string, bool) {
	meta, ok := body["metadata"].(map[string]interface{})
	if !ok {
		return "", false
	}
	name, ok := meta["name"].(string)
	return name, ok
}

func deepCopy(o Object) Object {
	out := make(Object, len(o))
	for k, v := range o {
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = deepCopy(nested)
		} else {
			out[k] = v
		}
	}
	return out
}

func (m *MemoryClusterAPI) CreateCustomResource(group, version, namespace, plural string, body Object) (Object, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.definitions[crdKey(group, plural)] {
		return nil, NewStatusError(404, "custom resource definition %s not found", crdKey(group, plural))
	}

	name, ok := objName(body)
	if !ok || name == "" {
		return nil, NewStatusError(400, "object metadata.name is required")
	}

	key := objKey(group, version, namespace, plural, name)
	if _, exists := m.objects[key]; exists {
		return nil, NewStatusError(409, "object %s already exists", name)
	}

	stored := deepCopy(body)
	meta, _ := stored["metadata"].(map[string]interface{})
	if meta == nil {
		meta = make(map[string]interface{})
		stored["metadata"] = meta
	}
	id, err := uuid.V4()
	if err != nil {
		return nil, err
	}
	meta["uid"] = id.String()
	meta["resourceVersion"] = "1"
	m.objects[key] = stored

	logger.DebugF("created custom resource %s", key)
	return deepCopy(stored), nil
}

func (m *MemoryClusterAPI) ReadCustomResource(group, version, namespace, plural, name string) (Object, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	key := objKey(group, version, namespace, plural, name)
	obj, exists := m.objects[key]
	if !exists {
		return nil, NewStatusError(404, "object %s not found", name)
	}
	return deepCopy(obj), nil
}

func (m *MemoryClusterAPI) ReplaceCustomResource(group, version, namespace, plural, name string, body Object) (Object, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	key := objKey(group, version, namespace, plural, name)
	existing, exists := m.objects[key]
	if !exists {
		return nil, NewStatusError(404, "object %s not found", name)
	}

	existingMeta, _ := existing["metadata"].(map[string]interface{})
	bodyMeta, _ := body["metadata"].(map[string]interface{})
	existingVersion, _ := existingMeta["resourceVersion"].(string)
	bodyVersion, _ := bodyMeta["resourceVersion"].(string)
	if bodyVersion == "" || bodyVersion != existingVersion {
		return nil, NewStatusError(409, "stale resourceVersion for object %s", name)
	}

	stored := deepCopy(body)
	meta, _ := stored["metadata"].(map[string]interface{})
	if meta == nil {
		meta = make(map[string]interface{})
		stored["metadata"] = meta
	}
	meta["uid"] = existingMeta["uid"]
	nextVersion, err := bumpResourceVersion(existingVersion)
	if err != nil {
		return nil, err
	}
	meta["resourceVersion"] = nextVersion
	m.objects[key] = stored

	logger.TraceF("replaced custom resource %s (resourceVersion=%s)", key, nextVersion)
	return deepCopy(stored), nil
}

func (m *MemoryClusterAPI) DeleteCustomResource(group, version, namespace, plural, name string, _ DeleteOptions) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	key := objKey(group, version, namespace, plural, name)
	if _, exists := m.objects[key]; !exists {
		return NewStatusError(404, "object %s not found", name)
	}
	delete(m.objects, key)
	logger.DebugF("deleted custom resource %s", key)
	return nil
}

func (m *MemoryClusterAPI) CreateCustomResourceDefinition(definition Object) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	spec, _ := definition["spec"].(map[string]interface{})
	group, _ := spec["group"].(string)
	names, _ := spec["names"].(map[string]interface{})
	plural, _ := names["plural"].(string)
	if group == "" || plural == "" {
		return NewStatusError(400, "definition spec.group and spec.names.plural are required")
	}

	key := crdKey(group, plural)
	if m.definitions[key] {
		return NewStatusError(409, "definition %s already exists", key)
	}
	m.definitions[key] = true
	logger.InfoF("installed custom resource definition %s", key)
	return nil
}

func bumpResourceVersion(current string) (string, error) {
	n, err := strconv.Atoi(current)
	if err != nil {
		id, uidErr := uuid.V4()
		if uidErr != nil {
			return "", uidErr
		}
		return id.String(), nil
	}
	return strconv.Itoa(n + 1), nil
}
