package clusterapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"oss.nandlabs.io/fleet/clients"
	"oss.nandlabs.io/fleet/codec"
	"oss.nandlabs.io/fleet/ioutils"
)

// HTTPClusterAPI is a generic, client-go-free implementation of ClusterAPI
// that talks to a Kubernetes-style REST API over HTTP. It exists so a
// deployment can exercise the lock coordinator against a real control plane
// without pulling in a full CRD client SDK; the URL layout follows the
// conventional `/apis/{group}/{version}/namespaces/{namespace}/{plural}`
// and `/apis/{group}/{version}/customresourcedefinitions` shape.
type HTTPClusterAPI struct {
	baseURL string
	http    *http.Client
	retry   *clients.RetryInfo
	breaker *clients.CircuitBreaker
	codec   codec.Codec
}

// NewHTTPClusterAPI builds an HTTPClusterAPI against baseURL. retry and
// breaker may be nil to disable retries/circuit-breaking respectively.
var _ clients.Client[*http.Request, Object] = (*HTTPClusterAPI)(nil)
var _ ClusterAPI = (*HTTPClusterAPI)(nil)

func NewHTTPClusterAPI(baseURL string, retry *clients.RetryInfo, breaker *clients.CircuitBreaker) *HTTPClusterAPI {
	return &HTTPClusterAPI{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   retry,
		breaker: breaker,
		codec:   codec.JsonCodec(),
	}
}

func (c *HTTPClusterAPI) resourceURL(group, version, namespace, plural, name string) string {
	u := fmt.Sprintf("%s/apis/%s/%s/namespaces/%s/%s", c.baseURL, group, version, namespace, plural)
	if name != "" {
		u += "/" + name
	}
	return u
}

func (c *HTTPClusterAPI) definitionURL(group, version string) string {
	return fmt.Sprintf("%s/apis/%s/%s/customresourcedefinitions", c.baseURL, group, version)
}

// SetOptions implements clients.Client[*http.Request, Object].
func (c *HTTPClusterAPI) SetOptions(options *clients.ClientOptions) {
	if options == nil {
		return
	}
	if options.RetryInfo != nil {
		c.retry = options.RetryInfo
	}
	if options.CircuitBreaker != nil {
		c.breaker = options.CircuitBreaker
	}
}

// Execute implements clients.Client[*http.Request, Object]: it round-trips
// req, applying the circuit breaker and retry policy, and decodes a JSON
// body into an Object. A non-2xx response is translated to a *StatusError.
func (c *HTTPClusterAPI) Execute(req *http.Request) (Object, error) {
	var bodyBytes []byte
	if req.Body != nil {
		bodyBytes, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}

	maxRetries := 0
	if c.retry != nil {
		maxRetries = c.retry.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if c.breaker != nil {
			if err := c.breaker.CanExecute(); err != nil {
				return nil, err
			}
		}

		attemptReq := req.Clone(req.Context())
		if bodyBytes != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, err := c.http.Do(attemptReq)
		if err != nil {
			lastErr = err
			if c.breaker != nil {
				c.breaker.OnExecution(false)
			}
			if attempt < maxRetries && c.retry != nil {
				time.Sleep(c.retry.WaitTime(attempt))
				continue
			}
			return nil, lastErr
		}

		obj, statusErr := c.decodeResponse(resp)
		success := statusErr == nil || (statusErr != nil && isHandledStatus(statusErr))
		if c.breaker != nil {
			c.breaker.OnExecution(success)
		}
		if statusErr == nil {
			return obj, nil
		}
		if isHandledStatus(statusErr) || attempt >= maxRetries || c.retry == nil {
			return obj, statusErr
		}
		lastErr = statusErr
		time.Sleep(c.retry.WaitTime(attempt))
	}
	return nil, lastErr
}

func isHandledStatus(err *StatusError) bool {
	return err.Status == 404 || err.Status == 409
}

func (c *HTTPClusterAPI) decodeResponse(resp *http.Response) (Object, *StatusError) {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, NewStatusError(404, "not found")
	}
	if resp.StatusCode == http.StatusConflict {
		return nil, NewStatusError(409, "conflict")
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, NewStatusError(resp.StatusCode, "%s", string(body))
	}
	if resp.ContentLength == 0 {
		return Object{}, nil
	}

	var obj Object
	if err := c.codec.Read(resp.Body, &obj); err != nil && err != io.EOF {
		return nil, NewStatusError(resp.StatusCode, "decode response: %v", err)
	}
	return obj, nil
}

func (c *HTTPClusterAPI) newJSONRequest(method, url string, body Object) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := c.codec.Write(body, &buf); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", ioutils.MimeApplicationJSON)
	return req, nil
}

func (c *HTTPClusterAPI) CreateCustomResource(group, version, namespace, plural string, body Object) (Object, error) {
	req, err := c.newJSONRequest(http.MethodPost, c.resourceURL(group, version, namespace, plural, ""), body)
	if err != nil {
		return nil, err
	}
	return c.Execute(req)
}

func (c *HTTPClusterAPI) ReadCustomResource(group, version, namespace, plural, name string) (Object, error) {
	req, err := c.newJSONRequest(http.MethodGet, c.resourceURL(group, version, namespace, plural, name), nil)
	if err != nil {
		return nil, err
	}
	return c.Execute(req)
}

func (c *HTTPClusterAPI) ReplaceCustomResource(group, version, namespace, plural, name string, body Object) (Object, error) {
	req, err := c.newJSONRequest(http.MethodPut, c.resourceURL(group, version, namespace, plural, name), body)
	if err != nil {
		return nil, err
	}
	return c.Execute(req)
}

func (c *HTTPClusterAPI) DeleteCustomResource(group, version, namespace, plural, name string, options DeleteOptions) error {
	req, err := c.newJSONRequest(http.MethodDelete, c.resourceURL(group, version, namespace, plural, name), options)
	if err != nil {
		return err
	}
	_, err = c.Execute(req)
	return err
}

func (c *HTTPClusterAPI) CreateCustomResourceDefinition(definition Object) error {
	spec, _ := definition["spec"].(map[string]interface{})
	group, _ := spec["group"].(string)
	version, _ := spec["version"].(string)
	req, err := c.newJSONRequest(http.MethodPost, c.definitionURL(group, version), definition)
	if err != nil {
		return err
	}
	_, err = c.Execute(req)
	return err
}
