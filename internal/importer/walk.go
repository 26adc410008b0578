package importer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/packimport/internal/pack"
	"github.com/playperu/packimport/internal/pricing"
	"github.com/playperu/packimport/internal/xmldoc"
)

// walker builds the round/theme/question tree. Sibling items on every level
// are parsed concurrently; results keep document order.
type walker struct {
	resolver    *resolver
	concurrency int

	// warnings is only touched by the goroutine running Import.
	warnings []Warning
}

func (w *walker) warn(wn Warning) {
	w.warnings = append(w.warnings, wn)
}

type outcome[T any] struct {
	value    T
	warnings []Warning
	err      error
}

type parseFunc[T any] func(ctx context.Context, path string, el *xmldoc.Element) (T, []Warning, error)

// fanOut runs fn for every element and waits for all of them. A failing
// element never cancels its siblings. Outcomes are indexed like els.
func fanOut[T any](ctx context.Context, limit int, prefix string, els []*xmldoc.Element, fn parseFunc[T]) []outcome[T] {
	out := make([]outcome[T], len(els))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, el := range els {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					out[i].err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
				}
			}()
			path := itemPath(prefix, i)
			if err := ctx.Err(); err != nil {
				out[i].err = err
				return nil
			}
			out[i].value, out[i].warnings, out[i].err = fn(ctx, path, el)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// keep drops failed outcomes, turning each failure into a skipped-item
// warning at the failed item's position.
func keep[T any](prefix string, outs []outcome[T]) ([]T, []Warning) {
	values := make([]T, 0, len(outs))
	var warnings []Warning
	for i, o := range outs {
		if o.err != nil {
			warnings = append(warnings, Warning{
				Code:    itemCode(o.err),
				Path:    itemPath(prefix, i),
				Detail:  firstLine(o.err.Error()),
				Skipped: true,
			})
			continue
		}
		values = append(values, o.value)
		warnings = append(warnings, o.warnings...)
	}
	return values, warnings
}

func (w *walker) rounds(ctx context.Context, el *xmldoc.Element) ([]pack.Round, []Warning) {
	outs := fanOut(ctx, w.concurrency, "rounds", childrenOf(el), w.round)
	return keep("rounds", outs)
}

func (w *walker) round(ctx context.Context, path string, el *xmldoc.Element) (pack.Round, []Warning, error) {
	name, _ := el.Attr("name")
	prefix := path + "/themes"
	themes, warnings := keep(prefix, fanOut(ctx, w.concurrency, prefix, childrenOf(el.FirstChild("themes")), w.theme))
	return pack.Round{Name: name, Themes: themes}, warnings, nil
}

func (w *walker) theme(ctx context.Context, path string, el *xmldoc.Element) (pack.Theme, []Warning, error) {
	name, _ := el.Attr("name")
	prefix := path + "/questions"
	questions, warnings := keep(prefix, fanOut(ctx, w.concurrency, prefix, childrenOf(el.FirstChild("questions")), w.question))
	return pack.Theme{Name: name, Questions: questions}, warnings, nil
}

func (w *walker) question(ctx context.Context, path string, el *xmldoc.Element) (pack.Question, []Warning, error) {
	typeEl := el.FirstChild("type")
	typ := pack.QuestionSimple
	if name, ok := typeEl.Attr("name"); ok && strings.TrimSpace(name) != "" {
		typ = pack.QuestionType(strings.TrimSpace(name))
	}

	desc, err := pricing.Infer(typ, typeParams(typeEl))
	if err != nil {
		return pack.Question{}, nil, err
	}

	price, _ := el.Attr("price")
	q := pack.Question{
		Type:             typ,
		CorrectAnswers:   el.FirstChild("right").ChildTexts(),
		IncorrectAnswers: el.FirstChild("wrong").ChildTexts(),
	}
	q.Price, _ = pricing.ParseNumber(price)
	desc.Apply(&q)

	// One failing event fails the whole question; missing media does not.
	prefix := path + "/scenario"
	outs := fanOut(ctx, w.concurrency, prefix, childrenOf(el.FirstChild("scenario")), w.event)
	q.Scenario = make([]pack.ScenarioEvent, 0, len(outs))
	var warnings []Warning
	for i, o := range outs {
		if o.err != nil {
			return pack.Question{}, nil, fmt.Errorf("%s: %w", itemPath(prefix, i), o.err)
		}
		q.Scenario = append(q.Scenario, o.value)
		warnings = append(warnings, o.warnings...)
	}
	return q, warnings, nil
}

func (w *walker) event(ctx context.Context, path string, el *xmldoc.Element) (pack.ScenarioEvent, []Warning, error) {
	typ := pack.EventText
	if t, ok := el.Attr("type"); ok && strings.TrimSpace(t) != "" {
		typ = pack.EventType(strings.TrimSpace(t))
	}

	ev := pack.ScenarioEvent{Type: typ, Duration: pack.DefaultDuration}
	if t, ok := el.Attr("time"); ok {
		if d, ok := pricing.ParseNumber(t); ok && d > 0 {
			ev.Duration = d
		}
	}

	content := el.Text()
	switch typ {
	case pack.EventText:
		ev.Data.Text = &content
	case pack.EventSay:
		ev.Data.Say = &content
	case pack.EventImage, pack.EventVoice, pack.EventVideo:
		ref, err := w.resolver.connect(ctx, typ, content)
		if errors.Is(err, errMediaMissing) {
			return ev, []Warning{{Code: CodeMediaMissing, Path: path, Detail: content}}, nil
		}
		if err != nil {
			return ev, nil, err
		}
		switch typ {
		case pack.EventImage:
			ev.Data.ImageField = ref
		case pack.EventVoice:
			ev.Data.AudioField = ref
		case pack.EventVideo:
			ev.Data.VideoField = ref
		}
	default:
		ev.Type = pack.EventUnknown
	}
	return ev, nil, nil
}

// typeParams reads the parameters of a question's type block. A parameter
// is a child whose name attribute matches, or failing that a child element
// of that name.
func typeParams(typeEl *xmldoc.Element) pricing.Params {
	return func(name string) (string, bool) {
		for _, c := range childrenOf(typeEl) {
			if n, ok := c.Attr("name"); ok && n == name {
				return c.Text(), true
			}
		}
		if c := typeEl.FirstChild(name); c != nil {
			return c.Text(), true
		}
		return "", false
	}
}

func itemPath(prefix string, i int) string {
	return fmt.Sprintf("%s[%d]", prefix, i)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
