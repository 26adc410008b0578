// Package pricing derives the price descriptor of auction questions.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/playperu/packimport/internal/pack"
)

var ErrMalformedPriceRange = errors.New("malformed price range")

// DefaultRealPrice is used when a fixed-price question has no positive cost.
const DefaultRealPrice = 100

type Mode string

const (
	ModeFixed    Mode = "fixed"
	ModeMinMax   Mode = "minMax"
	ModeByPlayer Mode = "byPlayer"
)

// Params reads a named parameter of the question's type block.
type Params func(name string) (string, bool)

// Descriptor is empty for questions that are not cat or bagcat.
type Descriptor struct {
	Mode                 Mode
	PlayerSelectingPrice *bool
	RealPrice            *float64
	RealPriceFrom        *float64
	RealPriceTo          *float64
	RealPriceStep        *float64
	RealTheme            *string
	DetailsDisclosure    *string
	TransferToSelf       *bool
}

// Apply copies the populated fields onto q.
func (d Descriptor) Apply(q *pack.Question) {
	q.RealPrice = d.RealPrice
	q.RealPriceFrom = d.RealPriceFrom
	q.RealPriceTo = d.RealPriceTo
	q.RealPriceStep = d.RealPriceStep
	q.RealTheme = d.RealTheme
	q.DetailsDisclosure = d.DetailsDisclosure
	q.TransferToSelf = d.TransferToSelf
	q.PlayerSelectingPrice = d.PlayerSelectingPrice
}

// ParseNumber parses s as a finite number. Blank input is absent, not zero.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var rangeRe = regexp.MustCompile(`^\[\s*(\d+(?:\.\d+)?)\s*;\s*(\d+(?:\.\d+)?)\s*\]\s*/\s*(\d*(?:\.\d+)?)$`)

// Infer computes the pricing of a question of type typ.
func Infer(typ pack.QuestionType, params Params) (Descriptor, error) {
	if !typ.Auction() {
		return Descriptor{}, nil
	}

	cost, hasCost := params("cost")
	costNum, numeric := ParseNumber(cost)

	d := Descriptor{}
	switch {
	case !hasCost || !numeric:
		d.Mode = ModeByPlayer
	case costNum > 0:
		d.Mode = ModeFixed
	default:
		d.Mode = ModeMinMax
	}

	if typ == pack.QuestionBagCat && d.Mode == ModeByPlayer {
		from, to, step, err := parseRange(cost)
		if err != nil {
			return Descriptor{}, err
		}
		d.PlayerSelectingPrice = ptr(true)
		d.RealPriceFrom = &from
		d.RealPriceTo = &to
		d.RealPriceStep = &step
	}

	if typ == pack.QuestionCat || d.Mode == ModeFixed {
		price := float64(DefaultRealPrice)
		if numeric && costNum > 0 {
			price = costNum
		}
		d.RealPrice = &price
	}

	if v, ok := params("theme"); ok {
		d.RealTheme = &v
	}

	if typ == pack.QuestionBagCat {
		if v, ok := params("knows"); ok {
			d.DetailsDisclosure = &v
		}
		if v, ok := params("self"); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				d.TransferToSelf = &b
			}
		}
	}

	return d, nil
}

// parseRange reads "[from;to]/step". The step may be left empty, which
// reads as zero.
func parseRange(s string) (from, to, step float64, err error) {
	m := rangeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrMalformedPriceRange, s)
	}
	from, _ = ParseNumber(m[1])
	to, _ = ParseNumber(m[2])
	step, _ = ParseNumber(m[3])
	return from, to, step, nil
}

func ptr[T any](v T) *T { return &v }
