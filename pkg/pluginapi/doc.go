// Package pluginapi defines the contract between the inference scheduler and
// the plugins that feed it input and consume its output.
//
// A plugin supplies seven capabilities:
//
//   - GetConfig: worker counts, queue limit and output format, read once.
//   - SetConfig: receives the loaded model's descriptor before workers start.
//   - Init / Uninit: per-worker setup and teardown of ThreadContext.Private.
//   - CollectInput / ReleaseInput: produce an InputUnit on an input worker,
//     and free it on the inference worker that consumed it.
//   - EmitOutput: consume the results of one inference.
//
// Plugins are either compiled into the host binary and registered
// explicitly, or built with -buildmode=plugin and expose an exported symbol
// named Plugin (see Symbol) holding a Plugin value or a func() Plugin factory.
package pluginapi
