package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/OneOfOne/xxhash"
	"github.com/dhowden/tag"

	"github.com/himanishpuri/landmark/internal/model"
)

type Metadata struct {
	Title  string
	Artist string
}

// Name joins artist and title, or returns "" when the file carried no title.
func (m Metadata) Name() string {
	switch {
	case m.Title == "":
		return ""
	case m.Artist == "":
		return m.Title
	default:
		return m.Artist + " - " + m.Title
	}
}

// ReadMetadata returns embedded tags if the stream has any. Untagged files
// yield an empty Metadata and no error.
func ReadMetadata(rs io.ReadSeeker) (Metadata, error) {
	m, err := tag.ReadFrom(rs)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return Metadata{}, nil
		}
		return Metadata{}, err
	}
	return Metadata{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
	}, nil
}

// Checksum hashes the whole stream with xxhash64.
func Checksum(r io.Reader) (uint64, error) {
	h := xxhash.New64()
	if _, err := io.Copy(h, r); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// File is a decoded WAV file plus what the catalog needs to know about it.
type File struct {
	*Buffer
	Path     string
	Name     string
	Checksum uint64
}

// Load checksums, reads tags from and decodes the file at path. Name falls
// back to the file name without extension when there are no tags.
func Load(path string, opts Options) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &model.InputError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	sum, err := Checksum(f)
	if err != nil {
		return nil, &model.InputError{Path: path, Op: "checksum", Err: err}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, &model.InputError{Path: path, Op: "seek", Err: err}
	}
	// Broken tags never stop a decodable file from being indexed.
	meta, _ := ReadMetadata(f)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, &model.InputError{Path: path, Op: "seek", Err: err}
	}
	buf, err := Decode(f, opts)
	if err != nil {
		var ie *model.InputError
		if errors.As(err, &ie) {
			ie.Path = path
			return nil, ie
		}
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	name := meta.Name()
	if name == "" {
		name = BaseName(path)
	}
	return &File{Buffer: buf, Path: path, Name: name, Checksum: sum}, nil
}

// BaseName strips directory and extension from path.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
