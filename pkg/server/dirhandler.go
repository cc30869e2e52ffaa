package server

import (
	"net/http"
	"strings"

	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/projectionfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
)

// DirectoryHandler exposes a virtual filesystem below a URL prefix.
// It is used to offer read access to the artifact store of an engine,
// for example to download trained model files. Only read requests are
// accepted.
type DirectoryHandler struct {
	fs      vfs.FileSystem
	prefix  string
	handler http.Handler
}

var _ http.Handler = (*DirectoryHandler)(nil)

// NewDirectoryHandlerFor serves the given directory of the host
// filesystem.
func NewDirectoryHandlerFor(path, prefix string) (*DirectoryHandler, error) {
	fs, err := projectionfs.New(osfs.OsFs, path)
	if err != nil {
		return nil, err
	}
	return NewDirectoryHandler(fs, prefix), nil
}

func NewDirectoryHandler(fs vfs.FileSystem, prefix string) *DirectoryHandler {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &DirectoryHandler{
		fs:      fs,
		prefix:  prefix,
		handler: http.StripPrefix(prefix, http.FileServer(http.FS(vfs.AsIoFS(fs)))),
	}
}

func (d *DirectoryHandler) RegisterHandler(srv *Server) {
	srv.Handle(d.prefix, d)
}

func (d *DirectoryHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet && request.Method != http.MethodHead {
		http.Error(writer, "read-only", http.StatusMethodNotAllowed)
		return
	}
	log.Debug("{{method}} serving {{url}}", "method", request.Method, "url", request.URL)
	d.handler.ServeHTTP(writer, request)
}
