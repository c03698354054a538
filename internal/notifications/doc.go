// Package notifications delivers batch lifecycle events via pluggable
// notifiers.
//
// ntfy receives plain-text pushes over HTTP when a topic URL is configured;
// an MQTT broker receives JSON events when a broker address is configured.
// Both may be active at once. With neither configured the service is a no-op.
// Pipeline code depends only on the Service interface.
package notifications
