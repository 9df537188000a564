package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCategoryValid(t *testing.T) {
	tests := []struct {
		category Category
		want     bool
	}{
		{CategoryActualidad, true},
		{CategoryCronicas, true},
		{CategoryEntrevistas, true},
		{CategoryOpinion, true},
		{Category("Deportes"), false},
		{Category(""), false},
	}

	for _, tt := range tests {
		if got := tt.category.Valid(); got != tt.want {
			t.Errorf("Category(%q).Valid() = %v, want %v", tt.category, got, tt.want)
		}
	}
}

func TestAuthorValidate(t *testing.T) {
	tests := []struct {
		name    string
		author  Author
		wantErr string
	}{
		{
			name:   "valid admin",
			author: Author{ID: "1", Name: "Eduardo Elvira", Role: "Director", SystemRole: RoleAdmin},
		},
		{
			name:    "missing id",
			author:  Author{Name: "X", SystemRole: RoleEditor},
			wantErr: "id is required",
		},
		{
			name:    "missing name",
			author:  Author{ID: "1", SystemRole: RoleEditor},
			wantErr: "name is required",
		},
		{
			name:    "bad system role",
			author:  Author{ID: "1", Name: "X", SystemRole: "OWNER"},
			wantErr: "systemRole",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.author.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestArticleValidate(t *testing.T) {
	valid := Article{ID: "10", Title: "T", Category: CategoryActualidad, AuthorID: "1"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	bad := valid
	bad.Category = "Sucesos"
	if err := bad.Validate(); err == nil {
		t.Fatal("Validate() accepted unknown category")
	}
}

func TestSameID(t *testing.T) {
	if !SameID("10", " 10 ") {
		t.Error("SameID should ignore surrounding whitespace")
	}
	if SameID("10", "11") {
		t.Error("SameID matched distinct ids")
	}
}

func TestCanEditAuthor(t *testing.T) {
	admin := Author{ID: "1", Name: "A", SystemRole: RoleAdmin}
	editor := Author{ID: "2", Name: "B", SystemRole: RoleEditor}
	other := Author{ID: "3", Name: "C", SystemRole: RoleEditor}

	tests := []struct {
		name      string
		actor     Author
		target    Author
		imageOnly bool
		want      bool
	}{
		{"admin edits anyone", admin, other, false, true},
		{"editor edits own image", editor, editor, true, true},
		{"editor edits own full record", editor, editor, false, false},
		{"editor edits someone else", editor, other, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanEditAuthor(tt.actor, tt.target, tt.imageOnly); got != tt.want {
				t.Errorf("CanEditAuthor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArticleJSONRoundTrip(t *testing.T) {
	article := Article{
		ID:            "101",
		Title:         "Sábado en el Carnaval del Toro",
		Summary:       "Cuatro orejas en una tarde marcada por el viento.",
		Content:       "<p>Texto íntegro de la crónica…</p>",
		ImageURL:      "https://example.com/cover.jpg",
		ContentImages: []string{},
		Category:      CategoryCronicas,
		AuthorID:      "2",
		Date:          "2026-02-14T18:30:00Z",
		IsPublished:   true,

		BullfightLocation: "Plaza Mayor de Ciudad Rodrigo",
		BullfightCattle:   "Novillos de Talavante",
		BullfightResults: []ChronicleResult{
			{Bullfighter: "Diego Urdiales", Result: "una oreja"},
			{Bullfighter: "Alejandro Talavante", Result: "ovación"},
		},
	}

	data, err := json.Marshal(article)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	// Wire names must stay compatible with the published document.
	for _, key := range []string{`"imageUrl"`, `"authorId"`, `"isPublished"`, `"bullfightResults"`, `"bullfighter"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("marshaled article missing wire key %s", key)
		}
	}

	var back Article
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Title != article.Title || back.BullfightResults[1].Result != "ovación" {
		t.Errorf("round trip lost data: %+v", back)
	}
}
