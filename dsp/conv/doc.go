// Package conv provides uniformly partitioned FFT convolution for long
// impulse responses in a streaming, fixed-latency setting.
//
// An impulse response is split into equal partitions whose spectra are
// computed once into a [Kernel]. A Kernel is immutable and can be shared by
// any number of [Convolver] instances, each of which keeps only its own
// frequency-domain delay line. Processing uses overlap-save with an FFT of
// twice the partition size; latency equals the partition size.
package conv
