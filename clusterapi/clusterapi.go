// Package clusterapi defines the cluster custom-resource capability that
// the lock coordinator and the release pipeline around it depend on.
//
// Per the system design, the cluster API client itself — the thing that
// actually talks CRDs to a Kubernetes-like control plane — is an external
// collaborator. This package only names the contract (ClusterAPI) plus a
// small set of status-aware errors, and ships two implementations: an
// in-memory fake for tests and local development, and a thin generic REST
// adapter for talking to a real control plane without pulling in a full
// client-go style SDK.
package clusterapi

import (
	"fmt"
)

// Object is the generic representation of a cluster custom resource: a
// decoded JSON/YAML document with metadata and arbitrary data.
type Object = map[string]interface{}

// DeleteOptions mirrors the (mostly empty) options body sent on delete.
type DeleteOptions = map[string]interface{}

// StatusError carries an HTTP-like numeric status from the cluster API, the
// same way the Kubernetes API server reports 404/409 on its REST surface.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("cluster api: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("cluster api: status %d", e.Status)
}

// NewStatusError builds a StatusError for the given HTTP-like status.
func NewStatusError(status int, format string, args ...any) *StatusError {
	return &StatusError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is a StatusError carrying a 404.
func IsNotFound(err error) bool {
	return statusIs(err, 404)
}

// IsConflict reports whether err is a StatusError carrying a 409.
func IsConflict(err error) bool {
	return statusIs(err, 409)
}

func statusIs(err error, status int) bool {
	se, ok := err.(*StatusError)
	return ok && se.Status == status
}

// ClusterAPI is the capability surface the lock coordinator relies on. It
// corresponds directly to §6.1 of the design: create/read/replace/delete a
// namespaced custom resource, plus installing its CustomResourceDefinition
// on first use.
type ClusterAPI interface {
	// CreateCustomResource creates body as a new object of the given
	// group/version/plural kind. Returns a *StatusError{Status: 409} if an
	// object with the same name already exists, or {Status: 404} if the
	// CustomResourceDefinition itself hasn't been installed.
	CreateCustomResource(group, version, namespace, plural string, body Object) (Object, error)
	// ReadCustomResource fetches the named object. Returns a
	// *StatusError{Status: 404} if it does not exist.
	ReadCustomResource(group, version, namespace, plural, name string) (Object, error)
	// ReplaceCustomResource updates the named object using optimistic
	// concurrency on body's metadata.resourceVersion. Returns
	// *StatusError{Status: 409} on a stale resourceVersion and {Status: 404}
	// if the object is gone.
	ReplaceCustomResource(group, version, namespace, plural, name string, body Object) (Object, error)
	// DeleteCustomResource deletes the named object. Returns
	// *StatusError{Status: 404} if it is already gone.
	DeleteCustomResource(group, version, namespace, plural, name string, options DeleteOptions) error
	// CreateCustomResourceDefinition registers the CRD backing a kind. A
	// *StatusError{Status: 409} indicates it is already registered.
	CreateCustomResourceDefinition(definition Object) error
}
