package models

// UploadedImage describes the image currently attached to a screen. The bytes are stored separately as an ImageFile.
type UploadedImage struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	// Version increases with every upload so that previews of a replaced image are never served again.
	Version int `json:"version"`
}

type ImageFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
