// Package pitch provides the native pitch shifter of the effect chain.
//
// DelayShifter is a granular time-domain shifter: a 2^17-sample circular
// history, a phase accumulator advancing by 1 - 2^(semitones/12) per
// sample, and two linearly interpolated read taps one window apart that are
// crossfaded to mask the phase wrap. One instance serves one channel.
package pitch
