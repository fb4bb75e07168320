package extractor

// Source is a readable binary document with reset, satisfied by both real
// uploads and in-memory buffers.
type Source interface {
	Read() ([]byte, error)
	Reset() error
}

// BytesSource adapts an in-memory byte slice to the Source contract.
type BytesSource struct {
	Name    string
	Content []byte
}

func NewBytesSource(name string, content []byte) *BytesSource {
	return &BytesSource{Name: name, Content: content}
}

func (b *BytesSource) Read() ([]byte, error) { return b.Content, nil }

func (b *BytesSource) Reset() error { return nil }
