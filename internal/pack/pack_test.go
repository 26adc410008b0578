package pack

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestQuestionOmitsInapplicableFields(t *testing.T) {
	q := Question{
		Type:             QuestionSimple,
		Price:            100,
		CorrectAnswers:   []string{"a"},
		IncorrectAnswers: []string{},
		Scenario:         []ScenarioEvent{},
	}
	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, field := range []string{"realprice", "realpriceFrom", "realtheme", "transferToSelf", "null"} {
		if strings.Contains(string(data), field) {
			t.Errorf("json %s contains %q", data, field)
		}
	}
}

func TestFileRefsDeduplicates(t *testing.T) {
	logo := FileRef("logo")
	shared := FileRef("shared")
	other := FileRef("other")

	p := Pack{
		Logo: &logo,
		Rounds: []Round{{Themes: []Theme{{Questions: []Question{
			{Scenario: []ScenarioEvent{
				{Type: EventImage, Data: EventData{ImageField: &shared}},
				{Type: EventVoice, Data: EventData{AudioField: &other}},
			}},
			{Scenario: []ScenarioEvent{
				{Type: EventImage, Data: EventData{ImageField: &shared}},
			}},
		}}}}},
	}

	got := p.FileRefs()
	want := []FileRef{logo, shared, other}
	if len(got) != len(want) {
		t.Fatalf("refs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("refs[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSummaryCounts(t *testing.T) {
	p := Pack{
		UUID: "p1",
		Rounds: []Round{
			{Themes: []Theme{{Questions: make([]Question, 3)}, {Questions: make([]Question, 2)}}},
			{Themes: []Theme{{Questions: make([]Question, 1)}}},
		},
	}
	s := p.Summary()
	if s.RoundCount != 2 {
		t.Errorf("RoundCount = %d, want 2", s.RoundCount)
	}
	if s.QuestionCount != 6 {
		t.Errorf("QuestionCount = %d, want 6", s.QuestionCount)
	}
}
