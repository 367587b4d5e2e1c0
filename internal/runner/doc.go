// Package runner executes external tools as subprocesses and converts
// their outcomes into uniform results. Failures of any kind (nonzero
// exit, timeout, missing executable) are folded into the result value
// and never surface as errors to callers.
package runner
