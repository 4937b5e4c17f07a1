// Copyright 2024-2026 Aiku AI

package hydration

import (
	"github.com/tidwall/gjson"
)

// FileMetadata describes the content of an uploaded file.
type FileMetadata struct {
	Type   string
	Width  int
	Height int
}

// File is an uploaded attachment, avatar, icon or banner.
type File struct {
	ID          string
	Tag         string
	Filename    string
	ContentType string
	Size        int64
	Metadata    FileMetadata
}

var FileSpec = New[File]("file", nil).
	Require("_id").
	Map("_id", "ID", func(v gjson.Result, _ Context, f *File) { f.ID = v.String() }).
	Map("tag", "Tag", func(v gjson.Result, _ Context, f *File) { f.Tag = v.String() }).
	Map("filename", "Filename", func(v gjson.Result, _ Context, f *File) { f.Filename = v.String() }).
	Map("content_type", "ContentType", func(v gjson.Result, _ Context, f *File) { f.ContentType = v.String() }).
	Map("size", "Size", func(v gjson.Result, _ Context, f *File) { f.Size = v.Int() }).
	Map("metadata", "Metadata", func(v gjson.Result, _ Context, f *File) {
		f.Metadata = FileMetadata{
			Type:   v.Get("type").String(),
			Width:  int(v.Get("width").Int()),
			Height: int(v.Get("height").Int()),
		}
	})

// optFile hydrates an optional nested file. Absent, null or malformed values
// read as nil.
func optFile(v gjson.Result, ctx Context) *File {
	if !v.IsObject() {
		return nil
	}
	f, err := FileSpec.Create(v, ctx)
	if err != nil {
		return nil
	}
	return f
}

func fileList(v gjson.Result, ctx Context) []File {
	var out []File
	for _, item := range v.Array() {
		if f := optFile(item, ctx); f != nil {
			out = append(out, *f)
		}
	}
	return out
}
