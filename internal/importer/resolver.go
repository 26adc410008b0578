package importer

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/playperu/packimport/internal/archive"
	"github.com/playperu/packimport/internal/pack"
)

// mediaFolder is where pack editors place each kind of media.
var mediaFolder = map[pack.EventType]string{
	pack.EventImage: "Images",
	pack.EventVoice: "Audio",
	pack.EventVideo: "Video",
}

// resolver turns archive media references into stored file refs for one
// import. It lives exactly as long as the Import call that created it.
type resolver struct {
	archive  *archive.Archive
	files    FileStore
	packUUID string

	mu      sync.Mutex
	entries map[string]*resolved
	stored  []pack.FileRef
}

type resolved struct {
	once sync.Once
	ref  pack.FileRef
	err  error
}

func newResolver(a *archive.Archive, files FileStore, packUUID string) *resolver {
	return &resolver{
		archive:  a,
		files:    files,
		packUUID: packUUID,
		entries:  make(map[string]*resolved),
	}
}

// connect resolves ref, a media reference of the given kind. An empty ref
// yields nil. A ref whose target is absent yields errMediaMissing; any other
// error means the file could not be stored.
func (r *resolver) connect(ctx context.Context, kind pack.EventType, ref string) (*pack.FileRef, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}

	name, ok := r.locate(kind, ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errMediaMissing, ref)
	}

	r.mu.Lock()
	e, cached := r.entries[name]
	if !cached {
		e = &resolved{}
		r.entries[name] = e
	}
	r.mu.Unlock()

	if cached {
		resolverHitsTotal.Inc()
	} else {
		resolverMissesTotal.Inc()
	}

	e.once.Do(func() {
		e.ref, e.err = r.store(ctx, name)
	})
	if e.err != nil {
		return nil, e.err
	}
	fileRef := e.ref
	return &fileRef, nil
}

func (r *resolver) locate(kind pack.EventType, ref string) (string, bool) {
	name := strings.TrimPrefix(ref, "@")
	candidates := []string{ref, name}
	if folder, ok := mediaFolder[kind]; ok {
		candidates = append(candidates, path.Join(folder, name))
	}
	return r.archive.Lookup(candidates...)
}

func (r *resolver) store(ctx context.Context, name string) (pack.FileRef, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, ok, err := r.archive.Entry(name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", errMediaMissing, name)
	}

	ref, err := r.files.Store(ctx, r.packUUID, name, data)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", name, err)
	}
	mediaStoredBytes.Add(float64(len(data)))

	r.mu.Lock()
	r.stored = append(r.stored, ref)
	r.mu.Unlock()
	return ref, nil
}

// storedRefs returns every ref written during the session.
func (r *resolver) storedRefs() []pack.FileRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pack.FileRef(nil), r.stored...)
}
