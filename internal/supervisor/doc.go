// Package supervisor brings up the desktop application's local services.
//
// On Start it probes the inference daemon and then the backend API. A
// service that already answers on its port is left alone; otherwise the
// supervisor seeds the model cache (inference only), resolves the
// executable, spawns it, and records the child in a sidecar.Registry. The
// backend is then polled until its port opens or the readiness budget runs
// out. Close kills and reaps every recorded child exactly once.
//
// Start holds an inter-process flock for its whole duration so two shells
// launched together do not both spawn the same service.
package supervisor
