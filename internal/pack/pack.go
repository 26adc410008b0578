// Package pack defines the imported trivia pack model.
// It has no dependencies outside the standard library.
package pack

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("pack not found")
	ErrExists   = errors.New("pack already exists")
)

// FileRef is an opaque handle to media held by the file store.
type FileRef string

type Pack struct {
	UUID         string    `json:"uuid"`
	Name         string    `json:"name"`
	Version      int       `json:"version"`
	Difficulty   int       `json:"difficulty"`
	CreationTime time.Time `json:"creationTime"`
	Over18       bool      `json:"over18"`
	Date         string    `json:"date,omitempty"`
	Authors      []string  `json:"authors"`
	Publisher    string    `json:"publisher,omitempty"`
	Tags         []string  `json:"tags"`
	Logo         *FileRef  `json:"logo,omitempty"`
	Language     string    `json:"language"`
	Rounds       []Round   `json:"rounds"`
}

type Round struct {
	Name   string  `json:"name"`
	Themes []Theme `json:"themes"`
}

type Theme struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

type QuestionType string

const (
	QuestionSimple    QuestionType = "simple"
	QuestionCat       QuestionType = "cat"
	QuestionBagCat    QuestionType = "bagcat"
	QuestionAuction   QuestionType = "auction"
	QuestionSponsored QuestionType = "sponsored"
)

// Auction reports whether the price of q is chosen through a pricing mode
// rather than the flat question price.
func (q QuestionType) Auction() bool {
	return q == QuestionCat || q == QuestionBagCat
}

// Question fields after Scenario are only set for cat and bagcat questions.
type Question struct {
	Type             QuestionType    `json:"type"`
	Price            float64         `json:"price"`
	CorrectAnswers   []string        `json:"correctAnswers"`
	IncorrectAnswers []string        `json:"incorrectAnswers"`
	Scenario         []ScenarioEvent `json:"scenario"`

	RealPrice            *float64 `json:"realprice,omitempty"`
	RealPriceFrom        *float64 `json:"realpriceFrom,omitempty"`
	RealPriceTo          *float64 `json:"realpriceTo,omitempty"`
	RealPriceStep        *float64 `json:"realpriceStep,omitempty"`
	RealTheme            *string  `json:"realtheme,omitempty"`
	DetailsDisclosure    *string  `json:"detailsDisclosure,omitempty"`
	TransferToSelf       *bool    `json:"transferToSelf,omitempty"`
	PlayerSelectingPrice *bool    `json:"playerSelectingPrice,omitempty"`
}

type EventType string

const (
	EventText  EventType = "text"
	EventSay   EventType = "say"
	EventImage EventType = "image"
	EventVoice EventType = "voice"
	EventVideo EventType = "video"
	// EventUnknown replaces any type the importer does not recognise.
	EventUnknown EventType = "unknown"
)

// Media reports whether events of type t reference an archive file.
func (t EventType) Media() bool {
	return t == EventImage || t == EventVoice || t == EventVideo
}

// DefaultDuration is applied when an event declares no usable time.
const DefaultDuration = 3.0

type ScenarioEvent struct {
	Type     EventType `json:"type"`
	Duration float64   `json:"duration"`
	Data     EventData `json:"data"`
}

// EventData holds at most one field, matching the event type. Events of an
// unknown type carry no data.
type EventData struct {
	Text       *string  `json:"text,omitempty"`
	Say        *string  `json:"say,omitempty"`
	ImageField *FileRef `json:"imageField,omitempty"`
	AudioField *FileRef `json:"audioField,omitempty"`
	VideoField *FileRef `json:"videoField,omitempty"`
}

// Summary is the listing view of a stored pack.
type Summary struct {
	UUID          string    `json:"uuid"`
	Name          string    `json:"name"`
	Version       int       `json:"version"`
	Difficulty    int       `json:"difficulty"`
	CreationTime  time.Time `json:"creationTime"`
	Over18        bool      `json:"over18"`
	Language      string    `json:"language"`
	Logo          *FileRef  `json:"logo,omitempty"`
	RoundCount    int       `json:"roundCount"`
	QuestionCount int       `json:"questionCount"`
}

func (p *Pack) Summary() Summary {
	return Summary{
		UUID:          p.UUID,
		Name:          p.Name,
		Version:       p.Version,
		Difficulty:    p.Difficulty,
		CreationTime:  p.CreationTime,
		Over18:        p.Over18,
		Language:      p.Language,
		Logo:          p.Logo,
		RoundCount:    len(p.Rounds),
		QuestionCount: p.QuestionCount(),
	}
}

func (p *Pack) QuestionCount() int {
	n := 0
	for _, r := range p.Rounds {
		for _, t := range r.Themes {
			n += len(t.Questions)
		}
	}
	return n
}

// FileRefs returns every media reference in the pack, logo first, in
// document order. Shared files appear once.
func (p *Pack) FileRefs() []FileRef {
	seen := map[FileRef]bool{}
	var refs []FileRef
	add := func(r *FileRef) {
		if r == nil || seen[*r] {
			return
		}
		seen[*r] = true
		refs = append(refs, *r)
	}

	add(p.Logo)
	for _, r := range p.Rounds {
		for _, t := range r.Themes {
			for _, q := range t.Questions {
				for _, e := range q.Scenario {
					add(e.Data.ImageField)
					add(e.Data.AudioField)
					add(e.Data.VideoField)
				}
			}
		}
	}
	return refs
}
