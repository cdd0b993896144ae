// Package health provides composable probes and the HTTP handlers that serve
// them.
//
// [All] ANDs probes together, [Named] labels a probe's failure and [Fixed]
// is a static result. [CheckFunc] adapts a plain function into a [Probe].
//
// [ShutdownGate] flips readiness to failing at the start of a drain, so the
// load balancer stops routing new contact and stats requests before the
// public listener is shut down.
package health
