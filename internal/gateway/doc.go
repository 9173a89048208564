// Package gateway is the HTTP front door for the dorc-engine backend.
//
// Every inbound request passes through a fixed pipeline:
//
//  1. Route lookup — the method and path map to a named operation via the
//     static route table; unknown routes get a local 404.
//  2. Credential extraction — the Authorization header must carry a
//     Bearer credential.
//  3. Resolution — the credential becomes a capability, either by
//     verifying an HS256 token offline or by looking up a static key.
//  4. Authorization — the capability must be unexpired, carry the
//     operation's scope, and match the request's target tenant.
//  5. Forwarding — authorized requests are proxied verbatim to the
//     backend with the original credential attached.
//
// The gateway holds no session state; identical requests at the same
// instant produce identical decisions. Health and metrics endpoints are
// served locally and bypass the pipeline entirely.
package gateway
