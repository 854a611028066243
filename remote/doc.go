// Package remote exposes agents over HTTP and consumes them from other
// processes. Server publishes registered agents under
// POST /v1/agents/{name}/runs streaming events as SSE; ProxyAgent implements
// core.Agent against such an endpoint so a remote agent slots into local
// topologies like any other child.
package remote
