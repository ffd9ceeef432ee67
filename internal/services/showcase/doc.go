// Package showcase hosts the multi-tenant showcase backend.
//
// Every request is bound to one tenant's wallet session, derived from a
// signed bearer credential at the HTTP boundary. Tenants grouped in a
// sandbox exchange out-of-band messages, starting with a connection
// invitation, and the wallet agent performs the actual handshake.
//
// Subpackages:
//   - app: server wiring and lifecycle
//   - api/httpapi: HTTP routes, bearer middleware, error rendering
//   - tenantauth: bearer credential minting and verification
//   - invitation: invitation/acceptance coordination
//   - outofband: out-of-band message model
//   - tenant: tenant and sandbox model
//   - wallet: wallet agent admin API client
//   - storage: persistence interfaces and SQLite implementation
//   - bootstrap: sandbox and tenant provisioning from a fixture file
package showcase
