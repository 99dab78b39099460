package model

import (
	"encoding/json"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ImageKind discriminates the two representations an image reference can take:
// a path on the device that produced it, or a URL in remote object storage.
type ImageKind string

const (
	// ImageNone means the record has no associated image.
	ImageNone ImageKind = ""
	// ImageLocalPath means Value is a filesystem path on the local device.
	ImageLocalPath ImageKind = "local"
	// ImageRemoteURL means Value is an http(s) URL served by object storage.
	ImageRemoteURL ImageKind = "remote"
)

// ImageRef is a tagged image reference. Records store it opaquely; only the
// image-rendering side cares which variant it is.
type ImageRef struct {
	Kind  ImageKind `bson:"kind" json:"kind"`
	Value string    `bson:"value" json:"value"`
}

// LocalImage returns an ImageRef pointing at a device-local file path.
func LocalImage(path string) ImageRef {
	if path == "" {
		return ImageRef{}
	}
	return ImageRef{Kind: ImageLocalPath, Value: path}
}

// RemoteImage returns an ImageRef pointing at an object-storage URL.
func RemoteImage(url string) ImageRef {
	if url == "" {
		return ImageRef{}
	}
	return ImageRef{Kind: ImageRemoteURL, Value: url}
}

// ParseImageRef classifies a legacy untyped reference string: http(s) URLs
// become remote refs, anything else a local path. Empty input yields the
// zero ref.
func ParseImageRef(s string) ImageRef {
	switch {
	case s == "":
		return ImageRef{}
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return RemoteImage(s)
	default:
		return LocalImage(s)
	}
}

// IsZero reports whether the ref carries no image.
func (r ImageRef) IsZero() bool {
	return r.Kind == ImageNone || r.Value == ""
}

// UnmarshalJSON accepts the tagged object form and, for older clients, a
// plain reference string classified through [ParseImageRef].
func (r *ImageRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = ParseImageRef(s)
		return nil
	}
	type plain ImageRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = ImageRef(p)
	return nil
}

// UnmarshalBSONValue accepts the tagged sub-document form and, for remote
// documents written before the kind tag existed, a plain reference string.
func (r *ImageRef) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*r = ImageRef{}
		return nil
	case bsontype.String:
		var s string
		if err := (bson.RawValue{Type: t, Value: data}).Unmarshal(&s); err != nil {
			return err
		}
		*r = ParseImageRef(s)
		return nil
	default:
		type plain ImageRef
		var p plain
		if err := (bson.RawValue{Type: t, Value: data}).Unmarshal(&p); err != nil {
			return err
		}
		*r = ImageRef(p)
		return nil
	}
}
