package resolver

import (
	"github.com/jward/embedload/internal/vpath"
)

// ReadResource returns the content of a data file relative to caller. The
// archive is tried first; otherwise path is read from disk exactly as given.
// A total miss yields "" and no error, so callers can treat the empty string
// as absence. ReadResource never records anything as loaded.
func (r *Resolver) ReadResource(path, caller string) string {
	id := vpath.Resolve(path, caller)
	if vpath.IsVirtual(id) && r.archive.Exists(id) {
		data, err := r.archive.ReadText(id)
		if err == nil {
			return string(data)
		}
		r.logger.Warn("archive read failed", "id", id, "err", err)
	}

	data, err := r.disk.ReadFile(path)
	if err != nil {
		r.logger.Debug("resource not found", "path", path, "id", id)
		return ""
	}
	return string(data)
}
