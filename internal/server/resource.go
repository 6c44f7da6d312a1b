package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/drive"
	"github.com/marmos91/dittodrive/pkg/resource"
)

// uploadFieldName is the multipart form field carrying the files.
const uploadFieldName = "files"

// handleResourceInfo dispatches on the trailing-slash convention: a path
// ending in "/" is a directory, anything else a file.
func (s *Server) handleResourceInfo(w http.ResponseWriter, r *http.Request) {
	sess, path, ok := s.sessionAndPath(w, r)
	if !ok {
		return
	}

	var (
		descriptor resource.Descriptor
		err        error
	)
	if resource.IsDir(path) {
		descriptor, err = s.dirs.Info(r.Context(), sess.ID, path)
	} else {
		descriptor, err = s.files.Info(r.Context(), sess.ID, path)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, descriptor)
}

// uploadResult reports a partial failure: the error plus the descriptors of
// the files that were written before it. The operation is not transactional,
// so callers must see which items made it.
type uploadResult struct {
	Message  string                `json:"message"`
	Uploaded []resource.Descriptor `json:"uploaded"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, path, ok := s.sessionAndPath(w, r)
	if !ok {
		return
	}
	if !resource.IsDir(path) {
		writeMessage(w, http.StatusBadRequest, "upload target must be a directory path")
		return
	}

	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeMessage(w, http.StatusBadRequest, "malformed multipart body")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.Warn("Failed to clean up multipart temp files: %v", err)
		}
	}()

	headers := r.MultipartForm.File[uploadFieldName]
	if len(headers) == 0 {
		writeMessage(w, http.StatusBadRequest, "no files in request")
		return
	}

	items := make([]drive.UploadItem, 0, len(headers))
	for _, header := range headers {
		if strings.TrimSpace(header.Filename) == "" {
			writeMessage(w, http.StatusBadRequest, "file name must not be blank")
			return
		}

		f, err := header.Open()
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "unreadable file in request")
			return
		}
		defer f.Close()

		items = append(items, drive.UploadItem{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Content:     f,
		})
	}

	written, err := s.files.Upload(r.Context(), sess.ID, path, items)
	if err != nil {
		status, message := statusFor(err)
		writeJSON(w, status, uploadResult{Message: message, Uploaded: written})
		return
	}

	writeJSON(w, http.StatusCreated, written)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, path, ok := s.sessionAndPath(w, r)
	if !ok {
		return
	}
	// Deleting the root would wipe the namespace, marker included, and brick
	// every later request for this user.
	if path == resource.Root {
		writeMessage(w, http.StatusBadRequest, "cannot delete the drive root")
		return
	}

	var err error
	if resource.IsDir(path) {
		err = s.dirs.Delete(r.Context(), sess.ID, path)
	} else {
		err = s.files.Delete(r.Context(), sess.ID, path)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDownload streams a single file as an attachment, or a whole
// directory as a zip archive assembled on the fly.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess, path, ok := s.sessionAndPath(w, r)
	if !ok {
		return
	}

	if resource.IsDir(path) {
		s.downloadDirectory(w, r, sess, path)
		return
	}

	body, err := s.files.Download(r.Context(), sess.ID, path)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resource.Name(path)))

	if _, err := io.Copy(w, body); err != nil {
		// Headers are out; all we can do is stop copying. A disconnecting
		// client lands here routinely.
		logger.Debug("Download of %s aborted: %v", path, err)
	}
}

func (s *Server) downloadDirectory(w http.ResponseWriter, r *http.Request, sess session, path string) {
	name := resource.Name(path)
	if name == resource.Root {
		name = "drive"
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))

	// A missing directory fails before any byte is written, so the error
	// response goes out clean. A failure mid-archive truncates the stream;
	// the client sees a corrupt zip, which is the honest outcome.
	if err := s.dirs.Download(r.Context(), sess.ID, path, w); err != nil {
		writeError(w, err)
	}
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	from, ok := s.queryPath(w, r, "from")
	if !ok {
		return
	}
	to, ok := s.queryPath(w, r, "to")
	if !ok {
		return
	}
	if from == resource.Root {
		writeMessage(w, http.StatusBadRequest, "cannot move the drive root")
		return
	}
	if !resource.IsDir(to) {
		writeMessage(w, http.StatusBadRequest, "move target must be a directory path")
		return
	}

	var (
		descriptor resource.Descriptor
		err        error
	)
	if resource.IsDir(from) {
		descriptor, err = s.dirs.Move(r.Context(), sess.ID, from, to)
	} else {
		descriptor, err = s.files.Move(r.Context(), sess.ID, from, to)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, descriptor)
}

// handleRename requires source and target to agree on kind; a mixed
// file/directory rename is rejected instead of being silently treated as
// either case.
func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	from, ok := s.queryPath(w, r, "from")
	if !ok {
		return
	}
	to, ok := s.queryPath(w, r, "to")
	if !ok {
		return
	}
	if from == resource.Root || to == resource.Root {
		writeMessage(w, http.StatusBadRequest, "cannot rename the drive root")
		return
	}

	if resource.IsDir(from) != resource.IsDir(to) {
		writeError(w, fmt.Errorf("rename %s to %s: %w", from, to, resource.ErrUnsupportedOperation))
		return
	}

	var (
		descriptor resource.Descriptor
		err        error
	)
	if resource.IsDir(from) {
		descriptor, err = s.dirs.Rename(r.Context(), sess.ID, from, to)
	} else {
		descriptor, err = s.files.Rename(r.Context(), sess.ID, from, to)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, descriptor)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	query := r.URL.Query().Get("query")
	if strings.TrimSpace(query) == "" {
		writeMessage(w, http.StatusBadRequest, "query must not be blank")
		return
	}

	matches, err := s.files.Search(r.Context(), sess.ID, query)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleDirectoryContent(w http.ResponseWriter, r *http.Request) {
	sess, path, ok := s.sessionAndPath(w, r)
	if !ok {
		return
	}
	if !resource.IsDir(path) {
		writeMessage(w, http.StatusBadRequest, "path must denote a directory")
		return
	}

	entries, err := s.dirs.Content(r.Context(), sess.ID, path)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDirectoryCreate(w http.ResponseWriter, r *http.Request) {
	sess, path, ok := s.sessionAndPath(w, r)
	if !ok {
		return
	}
	if !resource.IsDir(path) || path == resource.Root {
		writeMessage(w, http.StatusBadRequest, "path must denote a new directory")
		return
	}

	descriptor, err := s.dirs.Create(r.Context(), sess.ID, path)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, descriptor)
}

// session extracts the authenticated identity. The auth middleware put it
// there; a miss means a programming error, answered with 401 regardless.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (session, bool) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
	}
	return sess, ok
}

func (s *Server) sessionAndPath(w http.ResponseWriter, r *http.Request) (session, string, bool) {
	sess, ok := s.session(w, r)
	if !ok {
		return sess, "", false
	}

	path, ok := s.queryPath(w, r, "path")
	return sess, path, ok
}

// queryPath reads and validates a logical path parameter. Paths are always
// user-relative: a leading slash (other than the bare root "/") would break
// prefix composition and is rejected up front.
func (s *Server) queryPath(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	path := r.URL.Query().Get(param)
	if strings.TrimSpace(path) == "" {
		writeMessage(w, http.StatusBadRequest, param+" must not be blank")
		return "", false
	}
	if path != resource.Root && strings.HasPrefix(path, "/") {
		writeMessage(w, http.StatusBadRequest, param+" must be relative to the drive root")
		return "", false
	}

	return path, true
}
