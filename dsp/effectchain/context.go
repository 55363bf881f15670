package effectchain

// Context provides environmental information that stages need.
type Context struct {
	SampleRate float64
	BlockSize  int
	Channels   int
}
