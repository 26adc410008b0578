// Package importer converts pack archives into pack records, storing the
// embedded media along the way.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playperu/packimport/internal/archive"
	"github.com/playperu/packimport/internal/pack"
	"github.com/playperu/packimport/internal/pricing"
	"github.com/playperu/packimport/internal/xmldoc"
)

const contentEntry = "content.xml"

type PackStore interface {
	// Load returns pack.ErrNotFound when no pack has the uuid.
	Load(ctx context.Context, uuid string) (*pack.Pack, error)
	// Save inserts p, returning pack.ErrExists if the uuid is taken.
	Save(ctx context.Context, p *pack.Pack) error
}

type FileStore interface {
	Store(ctx context.Context, packUUID, name string, data []byte) (pack.FileRef, error)
	Delete(ctx context.Context, refs ...pack.FileRef) error
}

// Limits bounds what a single archive may make the importer do.
type Limits struct {
	Archive      archive.Limits
	MaxDepth     int
	MaxItems     int
	MaxQuestions int
}

var DefaultLimits = Limits{
	Archive:      archive.DefaultLimits,
	MaxDepth:     xmldoc.DefaultMaxDepth,
	MaxItems:     1_000,
	MaxQuestions: 5_000,
}

type Config struct {
	Limits Limits
	// Concurrency caps the sibling items parsed at once on each level.
	Concurrency int
}

type Importer struct {
	packs  PackStore
	files  FileStore
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
}

func New(packs PackStore, files FileStore, logger *slog.Logger, cfg Config) *Importer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Importer{
		packs:  packs,
		files:  files,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Result is a successful import. Warnings lists the items that were
// dropped or left incomplete, in document order.
type Result struct {
	Pack     *pack.Pack
	Warnings []Warning
}

// Skipped counts the items left out of the pack.
func (r *Result) Skipped() int {
	n := 0
	for _, w := range r.Warnings {
		if w.Skipped {
			n++
		}
	}
	return n
}

// Import reads a pack archive and saves the resulting pack. Failures that
// abort the import are returned as *Error and leave no pack or media behind.
func (im *Importer) Import(ctx context.Context, data []byte) (res *Result, err error) {
	start := time.Now()
	var session *resolver
	defer func() {
		if r := recover(); r != nil {
			if session != nil {
				im.discard(session)
			}
			res, err = nil, fail(CodeImportFailed, nil, fmt.Sprint("panic: ", r))
		}
		code := "ok"
		var ie *Error
		if errors.As(err, &ie) {
			code = string(ie.Code)
		}
		importsTotal.WithLabelValues(code).Inc()
		importDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			im.logger.Warn("pack import failed", "code", code, "error", err)
		}
	}()

	a, err := archive.Open(data, im.cfg.Limits.Archive)
	if errors.Is(err, archive.ErrTooManyFiles) {
		return nil, fail(CodeLimitExceeded, err, "")
	}
	if err != nil {
		return nil, fail(CodeCorruptArchive, err, "")
	}

	content, ok, err := a.Entry(contentEntry)
	if !ok {
		return nil, ErrNoContentXML
	}
	if errors.Is(err, archive.ErrEntryTooLarge) {
		return nil, fail(CodeLimitExceeded, err, "")
	}
	if err != nil {
		return nil, fail(CodeCorruptArchive, err, "")
	}

	root, err := xmldoc.Parse(content, im.cfg.Limits.MaxDepth)
	if errors.Is(err, xmldoc.ErrTooDeep) {
		return nil, fail(CodeLimitExceeded, err, "")
	}
	if err != nil {
		return nil, fail(CodeMalformedXML, err, "")
	}
	if root.Name != "package" {
		return nil, fail(CodeMalformedXML, nil, fmt.Sprintf("root element is %q, want package", root.Name))
	}
	id, _ := root.Attr("id")
	if id == "" {
		return nil, fail(CodeMalformedXML, nil, "package id is missing")
	}
	if err := checkLimits(root, im.cfg.Limits); err != nil {
		return nil, fail(CodeLimitExceeded, err, "")
	}

	// Nothing may touch the file store before this check passes.
	_, err = im.packs.Load(ctx, id)
	if err == nil {
		return nil, fail(CodePackExists, nil, id)
	}
	if !errors.Is(err, pack.ErrNotFound) {
		return nil, fail(CodeImportFailed, err, "")
	}

	im.logger.Info("importing pack", "pack", id, "entries", a.Len())

	session = newResolver(a, im.files, id)
	w := &walker{resolver: session, concurrency: im.cfg.Concurrency}

	p := im.assemble(ctx, w, root)

	if err := ctx.Err(); err != nil {
		im.discard(session)
		return nil, fail(CodeImportFailed, err, "")
	}

	if err := im.packs.Save(ctx, p); err != nil {
		im.discard(session)
		if errors.Is(err, pack.ErrExists) {
			return nil, fail(CodePackExists, err, id)
		}
		return nil, fail(CodeImportFailed, err, "")
	}

	im.prune(session, p)

	for _, wn := range w.warnings {
		warningsTotal.WithLabelValues(string(wn.Code)).Inc()
	}
	res = &Result{Pack: p, Warnings: w.warnings}
	im.logger.Info("pack imported",
		"pack", id,
		"rounds", len(p.Rounds),
		"questions", p.QuestionCount(),
		"warnings", len(res.Warnings),
		"skipped", res.Skipped(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (im *Importer) assemble(ctx context.Context, w *walker, root *xmldoc.Element) *pack.Pack {
	attr := func(name string) string {
		v, _ := root.Attr(name)
		return v
	}

	p := &pack.Pack{
		UUID:         attr("id"),
		Name:         attr("name"),
		Version:      intAttr(attr("version")),
		Difficulty:   intAttr(attr("difficulty")),
		CreationTime: im.now().UTC(),
		Over18:       attr("restriction") == "18+",
		Date:         attr("date"),
		Authors:      root.FirstChild("info").FirstChild("authors").ChildTexts(),
		Publisher:    attr("publisher"),
		Tags:         root.FirstChild("tags").ChildTexts(),
		Language:     attr("language"),
	}

	p.Rounds, w.warnings = w.rounds(ctx, root.FirstChild("rounds"))

	logo, err := w.resolver.connect(ctx, pack.EventImage, attr("logo"))
	switch {
	case errors.Is(err, errMediaMissing):
		w.warn(Warning{Code: CodeMediaMissing, Path: "logo", Detail: err.Error()})
	case err != nil:
		w.warn(Warning{Code: itemCode(err), Path: "logo", Detail: err.Error(), Skipped: true})
	default:
		p.Logo = logo
	}
	return p
}

// discard removes media written by an import that did not complete.
func (im *Importer) discard(session *resolver) {
	im.deleteMedia(session.packUUID, session.storedRefs())
}

// prune removes media stored for items that were later dropped from p, such
// as the sibling atoms of a question whose other media failed to store.
func (im *Importer) prune(session *resolver, p *pack.Pack) {
	used := make(map[pack.FileRef]bool)
	for _, ref := range p.FileRefs() {
		used[ref] = true
	}
	var unused []pack.FileRef
	for _, ref := range session.storedRefs() {
		if !used[ref] {
			unused = append(unused, ref)
		}
	}
	im.deleteMedia(session.packUUID, unused)
}

func (im *Importer) deleteMedia(packUUID string, refs []pack.FileRef) {
	if len(refs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := im.files.Delete(ctx, refs...); err != nil {
		im.logger.Error("discarding orphaned media", "pack", packUUID, "files", len(refs), "error", err)
		return
	}
	im.logger.Info("discarded orphaned media", "pack", packUUID, "files", len(refs))
}

func intAttr(s string) int {
	f, ok := pricing.ParseNumber(s)
	if !ok {
		return 0
	}
	return int(f)
}

// checkLimits rejects documents whose collections exceed the limits before
// any work is scheduled for them.
func checkLimits(root *xmldoc.Element, lim Limits) error {
	over := func(what string, n int) error {
		if lim.MaxItems > 0 && n > lim.MaxItems {
			return fmt.Errorf("%s has %d items, limit is %d", what, n, lim.MaxItems)
		}
		return nil
	}

	if err := over("authors", len(childrenOf(root.FirstChild("info").FirstChild("authors")))); err != nil {
		return err
	}
	if err := over("tags", len(childrenOf(root.FirstChild("tags")))); err != nil {
		return err
	}

	rounds := root.FirstChild("rounds")
	if err := over("rounds", len(childrenOf(rounds))); err != nil {
		return err
	}
	questions := 0
	for _, r := range childrenOf(rounds) {
		themes := r.FirstChild("themes")
		if err := over("themes", len(childrenOf(themes))); err != nil {
			return err
		}
		for _, t := range childrenOf(themes) {
			qs := childrenOf(t.FirstChild("questions"))
			if err := over("questions", len(qs)); err != nil {
				return err
			}
			questions += len(qs)
			for _, q := range qs {
				for _, list := range []string{"scenario", "right", "wrong"} {
					if err := over(list, len(childrenOf(q.FirstChild(list)))); err != nil {
						return err
					}
				}
			}
		}
	}
	if lim.MaxQuestions > 0 && questions > lim.MaxQuestions {
		return fmt.Errorf("pack has %d questions, limit is %d", questions, lim.MaxQuestions)
	}
	return nil
}

func childrenOf(e *xmldoc.Element) []*xmldoc.Element {
	if e == nil {
		return nil
	}
	return e.Children
}
