// Package provider resolves clip source ids to decoded audio buffers.
//
// [Memory] serves buffers registered in process, [Files] decodes audio
// files under a root directory by extension (wav, mp3, ogg) and [Cached]
// keeps decoded buffers and collapses concurrent loads of one source.
package provider
