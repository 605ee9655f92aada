// Package sticker holds the domain types shared by the export pipeline.
package sticker

import "strings"

// Kind classifies a downloaded asset by its byte signature.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindImage
	KindVideo
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unrecognized"
	}
}

// AssetRef identifies one exportable sticker.
// UniqueID is stable across bots and is used to name the exported file.
type AssetRef struct {
	FileID   string
	UniqueID string
	SetName  string
}

// InPack reports whether the sticker belongs to a named pack.
func (r AssetRef) InPack() bool {
	return strings.TrimSpace(r.SetName) != ""
}

// Detection is the result of sniffing an asset's header.
// MIME is empty when nothing more specific than a generic binary was found.
type Detection struct {
	Kind Kind
	MIME string
}

// Converted is the payload produced by the converter before it is named.
type Converted struct {
	Ext  string
	Data []byte
}

// ExportedAsset is one successfully converted sticker.
type ExportedAsset struct {
	Filename string
	Data     []byte
}

// Pack is a named, ordered collection of stickers.
type Pack struct {
	Name   string
	Title  string
	Assets []AssetRef
}
