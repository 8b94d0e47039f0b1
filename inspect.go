package feedsync

import (
	"context"
	"errors"
	"io"
	"path"
	"sort"

	"github.com/gabriel-vasile/mimetype"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/validation"
)

// sniffLen is how much of a staged file is read for content detection.
const sniffLen = 3072

// StagedFile describes a file found in an entity's staging directory.
type StagedFile struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	MIME      string `json:"mime"`
	Extension string `json:"extension"`

	// Gzip reports whether the content is gzip, the format recorded in the parse hints
	Gzip bool `json:"gzip"`
}

// InspectStaging reports the detected content type of every file staged for
// entity id. It is a diagnostic: nothing is verified against the manifest and
// the entity's parse hints are left unchanged.
func (c *Client) InspectStaging(ctx context.Context, id string) ([]StagedFile, error) {
	if err := validation.ValidateLocalName(id); err != nil {
		return nil, ferrors.NewError("inspectStaging", err).WithEntity(id)
	}

	exists, err := c.area.Exists(id)
	if err != nil {
		return nil, ferrors.NewEntityError("inspectStaging", id, err)
	}
	if !exists {
		return []StagedFile{}, nil
	}

	infos, err := c.area.ReadDir(id)
	if err != nil {
		return nil, ferrors.NewEntityError("inspectStaging", id, err)
	}

	files := make([]StagedFile, 0, len(infos))
	buf := make([]byte, sniffLen)
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if info.IsDir() {
			continue
		}

		rel := path.Join(id, info.Name())
		n, err := c.sniff(rel, buf)
		if err != nil {
			return nil, ferrors.NewEntityError("inspectStaging", id, err).WithKey(rel)
		}

		mt := mimetype.Detect(buf[:n])
		files = append(files, StagedFile{
			Name:      info.Name(),
			Path:      c.area.Path(rel),
			Size:      info.Size(),
			MIME:      mt.String(),
			Extension: mt.Extension(),
			Gzip:      mt.Is("application/gzip"),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (c *Client) sniff(rel string, buf []byte) (int, error) {
	f, err := c.area.Open(rel)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := io.ReadFull(f, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	return n, err
}
