package models

// ImageFile is an image picked by the user. It is held in memory only and
// replaced as a whole whenever a new file is picked.
type ImageFile struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Size returns the content length in bytes
func (f *ImageFile) Size() int {
	if f == nil {
		return 0
	}
	return len(f.Data)
}

// Empty reports whether there is no usable content
func (f *ImageFile) Empty() bool {
	return f == nil || len(f.Data) == 0
}
