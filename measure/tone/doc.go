// Package tone measures the pitch and purity of rendered test tones.
//
// It backs the effect host's acceptance checks and the report printed by
// fxhost render --report:
//
//   - DominantFrequency: Hann-windowed FFT peak with parabolic refinement
//   - AutocorrelationFrequency: normalized autocorrelation peak in a lag range
//   - ResidualDB: energy of got-minus-want relative to want, in dB
package tone
