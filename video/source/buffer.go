package source

// Buffer is a Frame backed by a plain byte slice.
type Buffer struct {
	Width, Height, Chans int
	Data                 []byte
}

func NewBuffer(width, height, chans int) *Buffer {
	return &Buffer{
		Width:  width,
		Height: height,
		Chans:  chans,
		Data:   make([]byte, width*height*chans),
	}
}

func (b *Buffer) Rows() int       { return b.Height }
func (b *Buffer) Cols() int       { return b.Width }
func (b *Buffer) Channels() int   { return b.Chans }
func (b *Buffer) ToBytes() []byte { return b.Data }
func (b *Buffer) Close() error    { return nil }
