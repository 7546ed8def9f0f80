// Package providers defines the generation backends the stage workers call:
// image generation, text-to-speech and music selection. Each family has a
// deterministic mock and a slot for a real backend, chosen by Registry.
package providers
