package section

import (
	"reflect"
	"testing"

	"github.com/pavelanni/exampaper/internal/model"
)

func rec(id string, typ model.QuestionType) model.QuestionRecord {
	return model.QuestionRecord{ID: id, Type: typ, Content: "q" + id}
}

func ids(g Group) []string {
	out := make([]string, len(g.Questions))
	for i, q := range g.Questions {
		out[i] = q.ID
	}
	return out
}

func TestPartitionOrderAndLetters(t *testing.T) {
	records := []model.QuestionRecord{
		rec("1", model.TypeCloze),
		rec("2", model.TypeSingleChoice),
		rec("3", model.TypeCloze),
		rec("4", model.TypeTrueFalse),
		rec("5", model.TypeSingleChoice),
	}

	tests := []struct {
		name        string
		order       []model.QuestionType
		enabled     func(model.QuestionType) bool
		wantTypes   []model.QuestionType
		wantLetters []string
	}{
		{
			name:        "default order skips empty types without gaps",
			order:       model.DefaultSectionOrder,
			wantTypes:   []model.QuestionType{model.TypeSingleChoice, model.TypeCloze, model.TypeTrueFalse},
			wantLetters: []string{"A", "B", "C"},
		},
		{
			name:        "custom order",
			order:       []model.QuestionType{model.TypeTrueFalse, model.TypeCloze, model.TypeSingleChoice},
			wantTypes:   []model.QuestionType{model.TypeTrueFalse, model.TypeCloze, model.TypeSingleChoice},
			wantLetters: []string{"A", "B", "C"},
		},
		{
			name:        "disabled section is omitted and letters close up",
			order:       model.DefaultSectionOrder,
			enabled:     func(t model.QuestionType) bool { return t != model.TypeCloze },
			wantTypes:   []model.QuestionType{model.TypeSingleChoice, model.TypeTrueFalse},
			wantLetters: []string{"A", "B"},
		},
		{
			name:        "types outside the order are dropped",
			order:       []model.QuestionType{model.TypeCloze},
			wantTypes:   []model.QuestionType{model.TypeCloze},
			wantLetters: []string{"A"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := Partition(records, tt.order, tt.enabled)
			var types []model.QuestionType
			var letters []string
			for _, g := range groups {
				types = append(types, g.Type)
				letters = append(letters, g.Letter)
			}
			if !reflect.DeepEqual(types, tt.wantTypes) {
				t.Errorf("types = %v, want %v", types, tt.wantTypes)
			}
			if !reflect.DeepEqual(letters, tt.wantLetters) {
				t.Errorf("letters = %v, want %v", letters, tt.wantLetters)
			}
		})
	}
}

func TestPartitionStable(t *testing.T) {
	records := []model.QuestionRecord{
		rec("b", model.TypeCloze),
		rec("a", model.TypeCloze),
		rec("c", model.TypeCloze),
	}
	groups := Partition(records, model.DefaultSectionOrder, nil)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if got := ids(groups[0]); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Errorf("order within group = %v", got)
	}
}

func TestPartitionDeterministic(t *testing.T) {
	var records []model.QuestionRecord
	for i, typ := range []model.QuestionType{model.TypeSequence, model.TypeCloze, model.TypeMatching, model.TypeSingleChoice} {
		records = append(records, rec(string(rune('a'+i)), typ))
	}
	first := Partition(records, model.DefaultSectionOrder, nil)
	for i := 0; i < 20; i++ {
		if again := Partition(records, model.DefaultSectionOrder, nil); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, again)
		}
	}
}

func TestPartitionEmpty(t *testing.T) {
	if groups := Partition(nil, model.DefaultSectionOrder, nil); len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
	if n := Count(nil); n != 0 {
		t.Errorf("Count(nil) = %d", n)
	}
}
