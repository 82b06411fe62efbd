// Package static serves files from a storage disk ahead of the route table.
//
// Only GET and HEAD requests are considered. A hit is answered with the
// file's bytes and a Content-Type inferred from its extension, ending the
// chain; a miss hands the request to the next stage.
package static

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/shashiranjanraj/webstart/pkg/httperr"
	"github.com/shashiranjanraj/webstart/pkg/metrics"
	"github.com/shashiranjanraj/webstart/pkg/pipeline"
	"github.com/shashiranjanraj/webstart/pkg/storage"
)

// Options configures the static stage.
type Options struct {
	// Index is served for directory requests. Empty disables it.
	Index string
	// Dotfiles allows serving paths with a segment starting with ".".
	Dotfiles bool
}

// DefaultOptions serves index.html for directories and hides dotfiles.
func DefaultOptions() Options {
	return Options{Index: "index.html"}
}

type server struct {
	disk storage.Disk
	opts Options
}

// New returns the static-file stage backed by disk.
func New(disk storage.Disk, opts Options) pipeline.Stage {
	return &server{disk: disk, opts: opts}
}

func (s *server) Name() string { return "static" }

func (s *server) Handle(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		next(w, r, nil)
		return
	}

	name := storage.Clean(r.URL.Path)
	if !s.opts.Dotfiles && hasDotSegment(name) {
		next(w, r, nil)
		return
	}

	isDirURL := name == "" || strings.HasSuffix(r.URL.Path, "/")
	if isDirURL {
		if s.opts.Index == "" {
			next(w, r, nil)
			return
		}
		name = path.Join(name, s.opts.Index)
	}

	ctx := r.Context()
	info, err := s.disk.Stat(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			next(w, r, nil)
			return
		}
		next(w, r, diskError(err))
		return
	}

	if info.IsDir {
		if s.opts.Index == "" {
			next(w, r, nil)
			return
		}
		target := r.URL.Path + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		return
	}

	rc, err := s.disk.Open(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			next(w, r, nil)
			return
		}
		next(w, r, diskError(err))
		return
	}
	defer rc.Close()

	content, ok := rc.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(rc)
		if err != nil {
			next(w, r, diskError(err))
			return
		}
		content = bytes.NewReader(data)
	}

	if ctype := mime.TypeByExtension(path.Ext(name)); ctype != "" {
		w.Header().Set("Content-Type", ctype)
	}

	metrics.RecordStatic(s.disk.Name())
	http.ServeContent(w, r, name, info.ModTime, content)
}

// diskError hides driver detail from the response message; the cause stays
// on the chain for logs and the development error view.
func diskError(err error) error {
	return &httperr.Error{
		Status:  http.StatusInternalServerError,
		Message: http.StatusText(http.StatusInternalServerError),
		Err:     err,
	}
}

func hasDotSegment(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
