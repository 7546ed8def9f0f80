// Package render assembles a project's scenes into a single MP4: each scene's
// still is composited with its overlay text and encoded as a clip, clips are
// concatenated in index order, music and narration are mixed in, and the
// timeline is optionally exported as FCPXML and EDL.
package render
