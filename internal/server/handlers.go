package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danieljhkim/mosaic/internal/engine"
	"github.com/danieljhkim/mosaic/internal/locator"
	"github.com/danieljhkim/mosaic/internal/store"
)

const (
	atlasPrefix  = "/artifacts/atlas/"
	pixelsPrefix = "/artifacts/pixels/"

	maxBodyBytes = 1 << 20
)

// bucketView is one entry of the bucket listing.
type bucketView struct {
	Key   string   `json:"key"`
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}

// atlasResponse is returned by /image/atlas.
type atlasResponse struct {
	Bucket  string           `json:"bucket,omitempty"`
	Buckets []bucketView     `json:"buckets"`
	Atlas   *engine.Artifact `json:"atlas,omitempty"`
	URLs    []string         `json:"urls,omitempty"`
}

// pixelsResponse is returned by /image/pixels.
type pixelsResponse struct {
	Bucket  string               `json:"bucket,omitempty"`
	Buckets []bucketView         `json:"buckets"`
	Pixels  *engine.Artifact     `json:"pixels,omitempty"`
	URLs    []string             `json:"urls,omitempty"`
	Import  *engine.ImportResult `json:"import,omitempty"`
}

// handleAtlas lists buckets and, when a bucket is named, builds its atlas.
func (s *Server) handleAtlas(w http.ResponseWriter, r *http.Request) {
	params, err := readParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	buckets, err := s.svc.ListBuckets(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := atlasResponse{Bucket: params.Bucket, Buckets: views(buckets)}

	if params.Bucket != "" {
		b, ok := store.FindBucket(buckets, params.Bucket)
		if !ok {
			http.Error(w, "bucket not found", http.StatusNotFound)
			return
		}

		unlock := s.locks.Lock("atlas/" + b.Key)
		art, err := s.svc.BuildAtlas(r.Context(), b)
		unlock()
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Atlas = art
		resp.URLs = artifactURLs(atlasPrefix, art.Files)
	}

	writeJSON(w, http.StatusOK, resp)
}

// handlePixels lists buckets, builds the named bucket's pixel summary and
// imports colours for the bucket named by db.
func (s *Server) handlePixels(w http.ResponseWriter, r *http.Request) {
	params, err := readParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	buckets, err := s.svc.ListBuckets(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := pixelsResponse{Bucket: params.Bucket, Buckets: views(buckets)}

	if params.Bucket != "" {
		b, ok := store.FindBucket(buckets, params.Bucket)
		if !ok {
			http.Error(w, "bucket not found", http.StatusNotFound)
			return
		}

		unlock := s.locks.Lock("pixels/" + b.Key)
		art, err := s.svc.BuildPixels(r.Context(), b)
		unlock()
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Pixels = art
		resp.URLs = artifactURLs(pixelsPrefix, art.Files)
	}

	// An unknown db bucket is ignored.
	if params.DB != "" {
		if b, ok := store.FindBucket(buckets, params.DB); ok {
			unlock := s.locks.Lock("import/" + b.Key)
			res, err := s.svc.ImportColors(r.Context(), b)
			unlock()
			if err != nil {
				s.writeError(w, err)
				return
			}
			resp.Import = res
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleShardFile serves a full-size image addressed by shard and file name.
func (s *Server) handleShardFile(w http.ResponseWriter, r *http.Request) {
	shard, filename := r.PathValue("shard"), r.PathValue("filename")
	if isDotfile(shard) || isDotfile(filename) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	p, err := s.svc.Locator().ShardPath(shard, filename)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.sendFile(w, r, p)
}

// handleItemFile serves the image of one item; ?s=mini selects the
// thumbnail.
func (s *Server) handleItemFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	filename, err := s.svc.LookupFilename(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	p := s.svc.Locator().Path(filename, locator.ParseSize(r.URL.Query().Get("s")))
	if isDotfile(filepath.Base(p)) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	s.sendFile(w, r, p)
}

func (s *Server) sendFile(w http.ResponseWriter, r *http.Request, p string) {
	w.Header().Set("X-Timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	w.Header().Set("X-Sent", "true")
	http.ServeFile(w, r, p)
	s.logger.Debug("sent", zap.String("path", p))
}

// writeError maps engine errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		s.logger.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

type params struct {
	Bucket string `json:"bucket"`
	DB     string `json:"db"`
}

// readParams reads bucket and db from a JSON body, a form body or the
// query string.
func readParams(r *http.Request) (params, error) {
	var p params
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/json" {
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(&p); err != nil {
			return p, errors.New("invalid JSON body")
		}
	} else {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return p, errors.New("invalid form body")
		}
		p.Bucket = r.Form.Get("bucket")
		p.DB = r.Form.Get("db")
	}
	q := r.URL.Query()
	if p.Bucket == "" {
		p.Bucket = q.Get("bucket")
	}
	if p.DB == "" {
		p.DB = q.Get("db")
	}
	return p, nil
}

func views(buckets []store.Bucket) []bucketView {
	out := make([]bucketView, len(buckets))
	for i, b := range buckets {
		out[i] = bucketView{Key: b.Key, Count: b.Count(), IDs: b.IDs}
	}
	return out
}

func artifactURLs(prefix string, files []string) []string {
	urls := make([]string, len(files))
	for i, f := range files {
		urls[i] = path.Join(prefix, filepath.Base(f))
	}
	return urls
}

func isDotfile(name string) bool {
	return strings.HasPrefix(name, ".")
}

// writeJSON marshals v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
